package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryFromCode(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		category Category
	}{
		{"config code", ErrCodeConfigInvalid, CategoryConfig},
		{"io code", ErrCodeCorruptIndex, CategoryIO},
		{"network code", ErrCodeNetworkTimeout, CategoryNetwork},
		{"validation code", ErrCodeInvalidLimit, CategoryValidation},
		{"internal code", ErrCodeSearchUnavailable, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
		})
	}
}

func TestNew_DerivesSeverity(t *testing.T) {
	assert.Equal(t, SeverityFatal, New(ErrCodeSearchUnavailable, "down", nil).Severity)
	assert.Equal(t, SeverityWarning, New(ErrCodeRerankUnavailable, "degraded", nil).Severity)
	assert.Equal(t, SeverityWarning, New(ErrCodeAdapterUnavailable, "degraded", nil).Severity)
	assert.Equal(t, SeverityError, New(ErrCodeInvalidLimit, "bad limit", nil).Severity)
}

func TestNew_RetryableFlag(t *testing.T) {
	assert.True(t, New(ErrCodeNetworkTimeout, "timeout", nil).Retryable)
	assert.False(t, New(ErrCodeInvalidInput, "bad input", nil).Retryable)
}

func TestAppError_ErrorFormat(t *testing.T) {
	err := New(ErrCodeInvalidLimit, "limit must be positive", nil)
	assert.Equal(t, "[ERR_403_INVALID_LIMIT] limit must be positive", err.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("engine down")
	err := New(ErrCodeAdapterUnavailable, "lexical adapter failed", cause)

	require.ErrorIs(t, err, err)
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestAppError_IsMatchesByCode(t *testing.T) {
	a := New(ErrCodeSearchUnavailable, "first", nil)
	b := New(ErrCodeSearchUnavailable, "second", nil)
	c := New(ErrCodeInvalidInput, "other", nil)

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk error")
	err := Wrap(ErrCodeStoreFailed, cause)

	require.NotNil(t, err)
	assert.Equal(t, cause, err.Cause)
	assert.Contains(t, err.Message, "disk error")
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeInvalidMode, "unknown mode", nil).
		WithDetail("mode", "fuzzy")

	assert.Equal(t, "fuzzy", err.Details["mode"])
}

func TestHelpers(t *testing.T) {
	assert.True(t, IsFatal(SearchUnavailable(nil)))
	assert.False(t, IsFatal(InvalidArgument("nope")))
	assert.Equal(t, ErrCodeInvalidInput, GetCode(InvalidArgument("nope")))
	assert.Equal(t, "", GetCode(fmt.Errorf("plain")))
	assert.False(t, IsRetryable(nil))
}
