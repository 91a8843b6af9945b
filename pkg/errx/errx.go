package errx

import (
	"errors"
	"fmt"
	"sync"
)

// Type classifies an error for callers that branch on kind rather than code.
type Type string

const (
	TypeValidation    Type = "VALIDATION"
	TypeNotFound      Type = "NOT_FOUND"
	TypeConflict      Type = "CONFLICT"
	TypeAuthorization Type = "AUTHORIZATION"
	TypeBusiness      Type = "BUSINESS"
	TypeExternal      Type = "EXTERNAL"
	TypeTimeout       Type = "TIMEOUT"
	TypeInternal      Type = "INTERNAL"
)

// Code uniquely identifies a registered error within a registry.
type Code string

type definition struct {
	code       Code
	errType    Type
	httpStatus int
	message    string
}

// Registry holds the error definitions for a package. Each package creates its
// own registry with a distinct prefix so codes stay globally unique.
type Registry struct {
	mu     sync.RWMutex
	prefix string
	defs   map[Code]definition
}

// NewRegistry creates a registry with the given code prefix.
func NewRegistry(prefix string) *Registry {
	return &Registry{
		prefix: prefix,
		defs:   make(map[Code]definition),
	}
}

// Register adds an error definition and returns its code.
func (r *Registry) Register(code string, errType Type, httpStatus int, message string) Code {
	full := Code(r.prefix + "_" + code)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.defs[full] = definition{
		code:       full,
		errType:    errType,
		httpStatus: httpStatus,
		message:    message,
	}
	return full
}

// Error is a structured error carrying a stable code, an HTTP status and
// optional details. It is the only error type the HTTP layer understands.
type Error struct {
	Code       Code           `json:"code"`
	Type       Type           `json:"type"`
	HTTPStatus int            `json:"status"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a key/value detail and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates an error from a registered code.
func (r *Registry) New(code Code) *Error {
	return r.build(code, "", nil)
}

// NewWithMessage creates an error from a registered code with a message
// overriding the registered default.
func (r *Registry) NewWithMessage(code Code, message string) *Error {
	return r.build(code, message, nil)
}

// NewWithCause creates an error from a registered code wrapping a cause.
func (r *Registry) NewWithCause(code Code, cause error) *Error {
	return r.build(code, "", cause)
}

func (r *Registry) build(code Code, message string, cause error) *Error {
	r.mu.RLock()
	def, ok := r.defs[code]
	r.mu.RUnlock()

	if !ok {
		// Unregistered codes indicate a programming error; fail loud but safe.
		return &Error{
			Code:       code,
			Type:       TypeInternal,
			HTTPStatus: 500,
			Message:    "unregistered error code",
			Cause:      cause,
		}
	}

	if message == "" {
		message = def.message
	}

	return &Error{
		Code:       def.code,
		Type:       def.errType,
		HTTPStatus: def.httpStatus,
		Message:    message,
		Cause:      cause,
	}
}

// IsCode reports whether err (or anything it wraps) is an *Error with the
// given code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsType reports whether err (or anything it wraps) is an *Error of the
// given type.
func IsType(err error, t Type) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}
