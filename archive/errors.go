package archive

import (
	"net/http"

	"github.com/avelasqz/chatd/pkg/errx"
)

var errRegistry = errx.NewRegistry("ARCHIVE")

var (
	ErrCodeUploadFailed = errRegistry.Register(
		"UPLOAD_FAILED",
		errx.TypeExternal,
		http.StatusBadGateway,
		"Failed to archive transcript",
	)

	ErrCodeNotConfigured = errRegistry.Register(
		"NOT_CONFIGURED",
		errx.TypeBusiness,
		http.StatusNotImplemented,
		"Transcript archiving is not configured",
	)
)

func ErrUploadFailed(cause error) *errx.Error {
	return errRegistry.NewWithCause(ErrCodeUploadFailed, cause)
}

func ErrNotConfigured() *errx.Error {
	return errRegistry.New(ErrCodeNotConfigured)
}
