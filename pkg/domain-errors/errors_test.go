package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesThroughWrapping(t *testing.T) {
	base := New(CodeTimeout, "too slow")
	wrapped := fmt.Errorf("outer: %w", base)

	assert.True(t, Is(wrapped, CodeTimeout))
	assert.False(t, Is(wrapped, CodeConflict))
	assert.False(t, Is(errors.New("plain"), CodeTimeout))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(cause, CodeUnavailable, "store down")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeUnavailable, CodeOf(err))
	assert.Contains(t, err.Error(), "root cause")
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("untyped")))
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(CodeBadRequest))
	assert.Equal(t, http.StatusConflict, ToHTTPStatus(CodeConflict))
	assert.Equal(t, http.StatusConflict, ToHTTPStatus(CodeSerialization))
	assert.Equal(t, http.StatusGatewayTimeout, ToHTTPStatus(CodeTimeout))
	assert.Equal(t, http.StatusServiceUnavailable, ToHTTPStatus(CodeUnavailable))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(CodeInternal))
}
