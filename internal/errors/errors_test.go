package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("original error")

	// When: wrapping with ServiceError
	svcErr := New(ErrCodeCollectionNotFound, "collection cordis not found", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, svcErr)
	assert.Equal(t, originalErr, errors.Unwrap(svcErr))
	assert.True(t, errors.Is(svcErr, originalErr))
}

func TestServiceError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "precondition error",
			code:     ErrCodeNotACorpus,
			message:  "collection mallet-25 is not a corpus",
			expected: "[ERR_302_NOT_A_CORPUS] collection mallet-25 is not a corpus",
		},
		{
			name:     "engine error",
			code:     ErrCodeEngineTimeout,
			message:  "request timed out",
			expected: "[ERR_501_ENGINE_TIMEOUT] request timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestServiceError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := New(ErrCodeNotACorpus, "collection A is not a corpus", nil)
	err2 := New(ErrCodeNotACorpus, "collection B is not a corpus", nil)

	// Then: they match by code
	assert.True(t, errors.Is(err1, err2))
}

func TestServiceError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	// Given: two errors with different codes
	err1 := New(ErrCodeNotACorpus, "not a corpus", nil)
	err2 := New(ErrCodeNotAModel, "not a model", nil)

	// Then: they don't match
	assert.False(t, errors.Is(err1, err2))
}

func TestServiceError_WithDetails_AddsContext(t *testing.T) {
	// Given: a base error
	err := New(ErrCodeRowIDMismatch, "row count mismatch", nil)

	// When: adding details
	err = err.WithDetail("rows", "1500")
	err = err.WithDetail("ids", "1499")

	// Then: details are available
	assert.Equal(t, "1500", err.Details["rows"])
	assert.Equal(t, "1499", err.Details["ids"])
}

func TestServiceError_WithSuggestion_AddsSuggestion(t *testing.T) {
	// Given: an engine error
	err := New(ErrCodeEngineUnavailable, "connection refused", nil)

	// When: adding suggestion
	err = err.WithSuggestion("Check that the search engine is running")

	// Then: suggestion is available
	assert.Equal(t, "Check that the search engine is running", err.Suggestion)
}

func TestServiceError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeCorpusSectionAbsent, CategoryConfig},
		{ErrCodeUnknownTrainer, CategoryConfig},
		{ErrCodeInvalidInput, CategoryInput},
		{ErrCodeMultipleDatasets, CategoryInput},
		{ErrCodeEngineDeniedRequest, CategoryInput},
		{ErrCodeEngineBadResponse, CategoryInput},
		{ErrCodeNotACorpus, CategoryNotFound},
		{ErrCodeModelFieldAbsent, CategoryNotFound},
		{ErrCodeAlreadyExists, CategoryConflict},
		{ErrCodeEngineTimeout, CategoryEngine},
		{ErrCodeEngineRejected, CategoryEngine},
		{ErrCodeInternal, CategoryInternal},
		{ErrCodeRowIDMismatch, CategoryInternal},
		{ErrCodeInvariantViolation, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestServiceError_SeverityFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		{ErrCodeRowIDMismatch, SeverityFatal},
		{ErrCodeMatrixCorrupt, SeverityFatal},
		{ErrCodeNotACorpus, SeverityError},
		{ErrCodeAlreadyExists, SeverityWarning}, // Logged, ingestion still succeeds
		{ErrCodeEngineTimeout, SeverityWarning}, // Retryable, so warning
		{ErrCodeEngineUnavailable, SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestServiceError_RetryableFromCode(t *testing.T) {
	tests := []struct {
		code          string
		wantRetryable bool
	}{
		{ErrCodeEngineTimeout, true},
		{ErrCodeEngineUnavailable, true},
		{ErrCodeEngineRejected, false},
		{ErrCodeNotACorpus, false},
		{ErrCodeConfigInvalid, false},
		{ErrCodeRowIDMismatch, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestServiceError_HTTPStatus(t *testing.T) {
	tests := []struct {
		code       string
		wantStatus int
	}{
		{ErrCodeConfigInvalid, http.StatusInternalServerError},
		{ErrCodeCorpusSectionAbsent, http.StatusInternalServerError},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeMissingParameter, http.StatusBadRequest},
		{ErrCodeEngineDeniedRequest, http.StatusBadRequest},
		{ErrCodeEngineBadResponse, http.StatusBadRequest},
		{ErrCodeNotACorpus, http.StatusNotFound},
		{ErrCodeModelFieldAbsent, http.StatusNotFound},
		{ErrCodeAlreadyExists, http.StatusConflict},
		{ErrCodeEngineTimeout, http.StatusServiceUnavailable},
		{ErrCodeEngineUnavailable, http.StatusServiceUnavailable},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeRowIDMismatch, http.StatusInternalServerError},
		{ErrCodeInvariantViolation, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantStatus, err.HTTPStatus())
		})
	}
}

func TestHTTPStatus_PlainErrorMapsToInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}

func TestWrap_CreatesServiceErrorFromError(t *testing.T) {
	// Given: a standard error
	originalErr := errors.New("something went wrong")

	// When: wrapping with a code
	svcErr := Wrap(ErrCodeInternal, originalErr)

	// Then: creates proper ServiceError
	require.NotNil(t, svcErr)
	assert.Equal(t, ErrCodeInternal, svcErr.Code)
	assert.Equal(t, "something went wrong", svcErr.Message)
	assert.Equal(t, originalErr, svcErr.Cause)
}

func TestWrap_NilErrorReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestConfigError_CreatesConfigCategoryError(t *testing.T) {
	err := ConfigError("invalid yaml syntax", nil)

	assert.Equal(t, CategoryConfig, err.Category)
	assert.Contains(t, err.Code, "CONFIG")
}

func TestInputError_CreatesInputCategoryError(t *testing.T) {
	err := InputError("parameter corpus_path is required", nil)

	assert.Equal(t, CategoryInput, err.Category)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
}

func TestConflictError_CreatesWarningConflict(t *testing.T) {
	err := ConflictError("collection cordis already exists")

	assert.Equal(t, CategoryConflict, err.Category)
	assert.Equal(t, SeverityWarning, err.Severity)
	assert.True(t, IsConflict(err))
}

func TestEngineError_CreatesRetryableError(t *testing.T) {
	err := EngineError("connection refused", nil)

	assert.Equal(t, CategoryEngine, err.Category)
	assert.True(t, err.Retryable)
}

func TestIsRetryable_ChecksRetryableFlag(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "retryable ServiceError",
			err:      New(ErrCodeEngineTimeout, "timeout", nil),
			expected: true,
		},
		{
			name:     "non-retryable ServiceError",
			err:      New(ErrCodeNotACorpus, "not a corpus", nil),
			expected: false,
		},
		{
			name:     "wrapped retryable error",
			err:      Wrap(ErrCodeEngineTimeout, errors.New("wrapped")),
			expected: true,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal_ChecksFatalSeverity(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "row/id mismatch is fatal",
			err:      New(ErrCodeRowIDMismatch, "row count mismatch", nil),
			expected: true,
		},
		{
			name:     "corrupt matrix is fatal",
			err:      New(ErrCodeMatrixCorrupt, "bad csr members", nil),
			expected: true,
		},
		{
			name:     "non-fatal error",
			err:      New(ErrCodeNotACorpus, "not a corpus", nil),
			expected: false,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFatal(tt.err))
		})
	}
}

func TestIsNotFound_ChecksCategory(t *testing.T) {
	assert.True(t, IsNotFound(New(ErrCodeNotAModel, "not a model", nil)))
	assert.False(t, IsNotFound(New(ErrCodeConfigInvalid, "bad config", nil)))
	assert.False(t, IsNotFound(errors.New("plain")))
}
