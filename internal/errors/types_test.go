package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeInvalidConfig,
				Message: "configuration is invalid",
			},
			expected: "INVALID_CONFIG: configuration is invalid",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeEngineAPI,
				Message: "send command failed",
				Cause:   errors.New("broken pipe"),
			},
			expected: "ENGINE_API: send command failed: broken pipe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &AppError{
		Code:    ErrCodeInternalError,
		Message: "something went wrong",
		Cause:   cause,
	}

	assert.Equal(t, cause, err.Unwrap())
}

func TestAppError_WithContext(t *testing.T) {
	err := New(ErrCodeValidationFailed, "validation failed")

	result := err.WithContext("field", "chat_id").WithContext("value", "abc")

	assert.Equal(t, err, result) // Should return same instance
	assert.Len(t, err.Context, 2)
	assert.Equal(t, "chat_id", err.Context["field"])
	assert.Equal(t, "abc", err.Context["value"])
}

func TestNewEngineError(t *testing.T) {
	tests := []struct {
		name       string
		engineCode int
		wantCode   ErrorCode
		retryable  bool
	}{
		{"not found is terminal", 404, ErrCodeFileNotFound, false},
		{"server error is retryable", 500, ErrCodeEngineAPI, true},
		{"client error is terminal", 400, ErrCodeEngineAPI, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewEngineError("downloadFile", tt.engineCode, "boom")
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.engineCode, err.Context["engine_code"])
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(WrapRetryable(errors.New("x"), ErrCodeEngineAPI, "transient")))
	assert.False(t, IsRetryable(New(ErrCodeFileNotFound, "gone")))
	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeTimeout, GetCode(NewTimeoutError("collect", "10s")))
	assert.Equal(t, ErrCodeInternalError, GetCode(errors.New("plain")))
}

func TestGetUserMessage(t *testing.T) {
	err := New(ErrCodeAuthentication, "auth failed").WithUserMessage("Please sign in again")
	assert.Equal(t, "Please sign in again", GetUserMessage(err))
	assert.Equal(t, "An internal error occurred", GetUserMessage(errors.New("plain")))
}
