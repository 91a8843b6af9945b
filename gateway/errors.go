package gateway

import (
	"net/http"

	"github.com/avelasqz/chatd/pkg/errx"
)

var errRegistry = errx.NewRegistry("GATEWAY")

var (
	ErrCodeInvalidBody = errRegistry.Register(
		"INVALID_BODY",
		errx.TypeValidation,
		http.StatusBadRequest,
		"Invalid request body",
	)

	ErrCodeMissingPrompt = errRegistry.Register(
		"MISSING_PROMPT",
		errx.TypeValidation,
		http.StatusBadRequest,
		"Prompt is required",
	)

	ErrCodeInvalidTimestamp = errRegistry.Register(
		"INVALID_TIMESTAMP",
		errx.TypeValidation,
		http.StatusBadRequest,
		"timestampUTC must be a valid ISO8601 timestamp",
	)

	ErrCodeUnauthorized = errRegistry.Register(
		"UNAUTHORIZED",
		errx.TypeAuthorization,
		http.StatusUnauthorized,
		"Missing or invalid credentials",
	)
)

func ErrInvalidBody() *errx.Error {
	return errRegistry.New(ErrCodeInvalidBody)
}

func ErrMissingPrompt() *errx.Error {
	return errRegistry.New(ErrCodeMissingPrompt)
}

func ErrInvalidTimestamp(raw string) *errx.Error {
	return errRegistry.New(ErrCodeInvalidTimestamp).WithDetail("timestampUTC", raw)
}

func ErrUnauthorized() *errx.Error {
	return errRegistry.New(ErrCodeUnauthorized)
}
