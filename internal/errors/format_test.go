package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI(t *testing.T) {
	err := New(ErrCodeNotACorpus, "collection cordis is not a corpus", nil).
		WithSuggestion("index the corpus first")

	result := FormatForCLI(err)

	assert.Contains(t, result, "Error: collection cordis is not a corpus")
	assert.Contains(t, result, "Hint: index the corpus first")
	assert.Contains(t, result, "Code: ERR_302_NOT_A_CORPUS")
}

func TestFormatForCLIWrapsPlainErrors(t *testing.T) {
	result := FormatForCLI(errors.New("something broke"))

	assert.Contains(t, result, "something broke")
	assert.Contains(t, result, ErrCodeInternal)
}

func TestFormatForCLIUnwrapsChains(t *testing.T) {
	inner := New(ErrCodeDocumentNotFound, "document p-404 not found", nil)
	wrapped := fmt.Errorf("running q1: %w", inner)

	result := FormatForCLI(wrapped)

	assert.Contains(t, result, "Code: ERR_305_DOCUMENT_NOT_FOUND")
}

func TestFormatForCLINilError(t *testing.T) {
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatJSON(t *testing.T) {
	err := New(ErrCodeEngineUnavailable, "engine unreachable", errors.New("dial refused")).
		WithDetail("url", "http://localhost:8983")

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "ERR_502_ENGINE_UNAVAILABLE", decoded["code"])
	assert.Equal(t, "dial refused", decoded["cause"])
	assert.Equal(t, true, decoded["retryable"])
	details := decoded["details"].(map[string]any)
	assert.Equal(t, "http://localhost:8983", details["url"])
}

func TestFormatForLog(t *testing.T) {
	err := New(ErrCodeMatrixCorrupt, "thetas indptr inconsistent", nil).
		WithDetail("file", "thetas.npz")

	attrs := FormatForLog(err)

	assert.Equal(t, "ERR_605_MATRIX_CORRUPT", attrs["error_code"])
	assert.Equal(t, "thetas indptr inconsistent", attrs["message"])
	assert.Equal(t, "thetas.npz", attrs["detail_file"])
}

func TestFormatForLogPlainError(t *testing.T) {
	attrs := FormatForLog(errors.New("boom"))
	assert.Equal(t, map[string]any{"error": "boom"}, attrs)
}
