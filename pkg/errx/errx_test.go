package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryNew(t *testing.T) {
	reg := NewRegistry("TEST")
	code := reg.Register("NOT_FOUND", TypeNotFound, http.StatusNotFound, "Thing not found")

	err := reg.New(code)
	assert.Equal(t, Code("TEST_NOT_FOUND"), err.Code)
	assert.Equal(t, TypeNotFound, err.Type)
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus)
	assert.Equal(t, "Thing not found", err.Message)
}

func TestNewWithCauseUnwraps(t *testing.T) {
	reg := NewRegistry("TEST")
	code := reg.Register("WRAPPED", TypeInternal, http.StatusInternalServerError, "boom")

	cause := errors.New("root cause")
	err := reg.NewWithCause(code, cause)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "root cause")
}

func TestNewWithMessageOverrides(t *testing.T) {
	reg := NewRegistry("TEST")
	code := reg.Register("BAD", TypeValidation, http.StatusBadRequest, "default message")

	err := reg.NewWithMessage(code, "specific message")
	assert.Equal(t, "specific message", err.Message)
}

func TestWithDetail(t *testing.T) {
	reg := NewRegistry("TEST")
	code := reg.Register("BAD", TypeValidation, http.StatusBadRequest, "bad")

	err := reg.New(code).WithDetail("field", "name").WithDetail("got", 42)
	assert.Equal(t, "name", err.Details["field"])
	assert.Equal(t, 42, err.Details["got"])
}

func TestIsCodeThroughWrapping(t *testing.T) {
	reg := NewRegistry("TEST")
	code := reg.Register("CONFLICT", TypeConflict, http.StatusConflict, "conflict")
	other := reg.Register("OTHER", TypeInternal, http.StatusInternalServerError, "other")

	err := fmt.Errorf("outer: %w", reg.New(code))
	assert.True(t, IsCode(err, code))
	assert.False(t, IsCode(err, other))
	assert.False(t, IsCode(errors.New("plain"), code))

	assert.True(t, IsType(err, TypeConflict))
	assert.False(t, IsType(err, TypeInternal))
}

func TestUnregisteredCode(t *testing.T) {
	reg := NewRegistry("TEST")

	err := reg.New("TEST_NEVER_REGISTERED")
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus)
	assert.Equal(t, TypeInternal, err.Type)
}
