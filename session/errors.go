package session

import (
	"net/http"

	"github.com/avelasqz/chatd/pkg/errx"
)

var errRegistry = errx.NewRegistry("SESSION")

var (
	ErrCodeSessionExists = errRegistry.Register(
		"ALREADY_EXISTS",
		errx.TypeConflict,
		http.StatusConflict,
		"Chat already exists",
	)

	ErrCodeSessionNotFound = errRegistry.Register(
		"NOT_FOUND",
		errx.TypeNotFound,
		http.StatusNotFound,
		"Chat not found",
	)

	ErrCodeVersionConflict = errRegistry.Register(
		"VERSION_CONFLICT",
		errx.TypeConflict,
		http.StatusConflict,
		"Chat was modified concurrently",
	)

	ErrCodeStoreUnavailable = errRegistry.Register(
		"STORE_UNAVAILABLE",
		errx.TypeInternal,
		http.StatusInternalServerError,
		"Session store unavailable",
	)
)

func ErrSessionExists(id ChatID) *errx.Error {
	return errRegistry.New(ErrCodeSessionExists).WithDetail("chat_id", string(id))
}

func ErrSessionNotFound(id ChatID) *errx.Error {
	return errRegistry.New(ErrCodeSessionNotFound).WithDetail("chat_id", string(id))
}

func ErrVersionConflict(id ChatID, expected int64) *errx.Error {
	return errRegistry.New(ErrCodeVersionConflict).
		WithDetail("chat_id", string(id)).
		WithDetail("expected_version", expected)
}

func ErrStoreUnavailable(cause error) *errx.Error {
	return errRegistry.NewWithCause(ErrCodeStoreUnavailable, cause)
}

// IsVersionConflict reports whether err is a lost compare-and-swap append.
func IsVersionConflict(err error) bool {
	return errx.IsCode(err, ErrCodeVersionConflict)
}

// IsNotFound reports whether err is an unknown chat id.
func IsNotFound(err error) bool {
	return errx.IsCode(err, ErrCodeSessionNotFound)
}
