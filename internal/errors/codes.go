// Package errors provides structured error handling for the topic-model
// search service.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Malformed input (bad request parameters, unparseable payloads,
//     requests the engine denied, responses it garbled)
//   - 3XX: Not-found errors (failed preconditions, missing assets)
//   - 4XX: Conflicts (collection or registry entry already exists)
//   - 5XX: Engine errors (timeouts, unreachability, engine-side failures)
//   - 6XX: Internal errors and invariant violations
package errors

import "net/http"

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryInput indicates malformed caller input.
	CategoryInput Category = "INPUT"
	// CategoryNotFound indicates a missing collection, document, or asset.
	CategoryNotFound Category = "NOT_FOUND"
	// CategoryConflict indicates an already-exists condition.
	CategoryConflict Category = "CONFLICT"
	// CategoryEngine indicates search-engine transport or engine-side errors.
	CategoryEngine Category = "ENGINE"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound      = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid       = "ERR_102_CONFIG_INVALID"
	ErrCodeCorpusSectionAbsent = "ERR_103_CORPUS_SECTION_ABSENT"
	ErrCodeUnknownTrainer      = "ERR_104_UNKNOWN_TRAINER"
	ErrCodeFieldTypeAbsent     = "ERR_105_FIELD_TYPE_ABSENT"

	// Malformed input (200-299)
	ErrCodeInvalidInput        = "ERR_201_INVALID_INPUT"
	ErrCodeMissingParameter    = "ERR_202_MISSING_PARAMETER"
	ErrCodeInvalidManifest     = "ERR_203_INVALID_MANIFEST"
	ErrCodeMultipleDatasets    = "ERR_204_MULTIPLE_DATASETS"
	ErrCodeUnknownQuery        = "ERR_205_UNKNOWN_QUERY"
	ErrCodeEngineDeniedRequest = "ERR_206_ENGINE_DENIED_REQUEST"
	ErrCodeEngineBadResponse   = "ERR_207_ENGINE_BAD_RESPONSE"

	// Not found (300-399)
	ErrCodeCollectionNotFound = "ERR_301_COLLECTION_NOT_FOUND"
	ErrCodeNotACorpus         = "ERR_302_NOT_A_CORPUS"
	ErrCodeNotAModel          = "ERR_303_NOT_A_MODEL"
	ErrCodeModelFieldAbsent   = "ERR_304_MODEL_FIELD_ABSENT"
	ErrCodeDocumentNotFound   = "ERR_305_DOCUMENT_NOT_FOUND"
	ErrCodeRegistryEntryGone  = "ERR_306_REGISTRY_ENTRY_GONE"

	// Conflicts (400-499)
	ErrCodeAlreadyExists = "ERR_401_ALREADY_EXISTS"

	// Engine errors (500-599)
	ErrCodeEngineTimeout     = "ERR_501_ENGINE_TIMEOUT"
	ErrCodeEngineUnavailable = "ERR_502_ENGINE_UNAVAILABLE"
	ErrCodeEngineRejected    = "ERR_503_ENGINE_REJECTED"

	// Internal errors (600-699)
	ErrCodeInternal           = "ERR_601_INTERNAL"
	ErrCodeRowIDMismatch      = "ERR_602_ROW_ID_MISMATCH"
	ErrCodeTemplateUnresolved = "ERR_603_TEMPLATE_UNRESOLVED"
	ErrCodeResultWriteFailed  = "ERR_604_RESULT_WRITE_FAILED"
	ErrCodeMatrixCorrupt      = "ERR_605_MATRIX_CORRUPT"
	ErrCodeInvariantViolation = "ERR_606_INVARIANT_VIOLATION"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryInput
	case '3':
		return CategoryNotFound
	case '4':
		return CategoryConflict
	case '5':
		return CategoryEngine
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeRowIDMismatch, ErrCodeMatrixCorrupt:
		return SeverityFatal
	case ErrCodeAlreadyExists:
		// Ingestion logs the conflict and returns success.
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// The service performs no automatic retries; the flag tells callers that
// re-issuing the request may succeed.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEngineTimeout, ErrCodeEngineUnavailable:
		return true
	default:
		return false
	}
}

// httpStatusFromCategory maps an error category to the HTTP status the
// service surfaces for it.
func httpStatusFromCategory(cat Category) int {
	switch cat {
	case CategoryConfig:
		return http.StatusInternalServerError
	case CategoryInput:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryConflict:
		return http.StatusConflict
	case CategoryEngine:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
