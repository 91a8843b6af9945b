package engine

import (
	"net/http"

	"github.com/avelasqz/chatd/pkg/errx"
)

var errRegistry = errx.NewRegistry("ENGINE")

var (
	ErrCodeInvalidRequest = errRegistry.Register(
		"INVALID_REQUEST",
		errx.TypeValidation,
		http.StatusBadRequest,
		"Invalid request",
	)

	ErrCodeConflict = errRegistry.Register(
		"CONFLICT",
		errx.TypeConflict,
		http.StatusConflict,
		"Chat is receiving concurrent updates, try again",
	)
)

func NewInvalidRequestError(reason string) *errx.Error {
	return errRegistry.NewWithMessage(ErrCodeInvalidRequest, reason)
}

func NewConflictError(chatID string, attempts int) *errx.Error {
	return errRegistry.New(ErrCodeConflict).
		WithDetail("chat_id", chatID).
		WithDetail("attempts", attempts)
}
