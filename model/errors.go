package model

import (
	"net/http"

	"github.com/avelasqz/chatd/pkg/errx"
)

var errRegistry = errx.NewRegistry("MODEL")

var (
	ErrCodeInvocationFailed = errRegistry.Register(
		"INVOCATION_FAILED",
		errx.TypeExternal,
		http.StatusBadGateway,
		"Model invocation failed",
	)

	ErrCodeTimeout = errRegistry.Register(
		"TIMEOUT",
		errx.TypeTimeout,
		http.StatusGatewayTimeout,
		"Model invocation timed out",
	)
)

func ErrInvocationFailed(cause error) *errx.Error {
	return errRegistry.NewWithCause(ErrCodeInvocationFailed, cause)
}

func ErrTimeout(cause error) *errx.Error {
	return errRegistry.NewWithCause(ErrCodeTimeout, cause)
}

// IsTimeout reports whether err is a model-call timeout.
func IsTimeout(err error) bool {
	return errx.IsCode(err, ErrCodeTimeout)
}
