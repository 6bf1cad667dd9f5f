package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		wantType  ErrorType
		status    int
		retryable bool
	}{
		{"validation", NewValidationError("bad"), ErrorTypeValidation, http.StatusBadRequest, false},
		{"not found", NewNotFoundError("residue"), ErrorTypeNotFound, http.StatusNotFound, false},
		{"parse", NewParseError("empty"), ErrorTypeParse, http.StatusUnprocessableEntity, false},
		{"transport", NewTransportError("down", nil), ErrorTypeTransport, http.StatusBadGateway, true},
		{"remote", NewRemoteError("said no"), ErrorTypeRemote, http.StatusBadGateway, true},
		{"empty result", NewEmptyResultError("none"), ErrorTypeEmptyResult, http.StatusNotFound, true},
		{"timeout", NewTimeoutError("poll"), ErrorTypeTimeout, http.StatusGatewayTimeout, true},
		{"canceled", NewCanceledError("poll"), ErrorTypeCanceled, StatusClientClosedRequest, true},
		{"internal", NewInternalError("oops"), ErrorTypeInternal, http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			assert.NotEmpty(t, tt.err.StackTrace)
		})
	}
}

func TestGetAppError_ThroughWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("submit: %w", NewTransportError("ticket submission failed", cause))

	appErr := GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrorTypeTransport, appErr.Type)
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestFromContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background(), "op"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, ErrorTypeCanceled, FromContext(ctx, "op").Type)

	ctx, cancel = context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()
	assert.Equal(t, ErrorTypeTimeout, FromContext(ctx, "op").Type)
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ctx"))

	wrapped := Wrap(NewValidationError("too few residues"), "search")
	assert.True(t, IsValidation(wrapped))
	assert.Contains(t, wrapped.Error(), "search: too few residues")

	plain := Wrap(errors.New("disk"), "save")
	assert.True(t, IsType(plain, ErrorTypeInternal))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(plain))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("x")))
}

func TestWithDetail(t *testing.T) {
	err := NewValidationError("bad").WithDetail("field", "x").WithCode("BAD_FIELD")
	assert.Equal(t, "x", err.Details["field"])
	assert.Equal(t, "BAD_FIELD", err.Code)
}
