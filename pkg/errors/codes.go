package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes follow the "<MODULE>_<NNN>" convention.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeMessaging          ErrorCode = "COMMON_014"
	ErrCodeStorage            ErrorCode = "COMMON_015"
)

// Chemistry / search error codes.
const (
	ErrCodeInvalidGraph       ErrorCode = "CHEM_001"
	ErrCodeInvalidFingerprint ErrorCode = "CHEM_002"
	ErrCodeGraphDecodeFailed  ErrorCode = "CHEM_003"
	ErrCodeCodebookInvalid    ErrorCode = "CHEM_004"
	ErrCodeCodebookMismatch   ErrorCode = "CHEM_005"
	ErrCodeDocumentNotFound   ErrorCode = "CHEM_006"
	ErrCodeStoreError         ErrorCode = "CHEM_007"
	ErrCodeMatchAborted       ErrorCode = "CHEM_008"
	ErrCodeInvalidThreshold   ErrorCode = "CHEM_009"
	ErrCodeReadOnly           ErrorCode = "CHEM_010"
	ErrCodeSubstructureFailed ErrorCode = "CHEM_011"
	ErrCodeSimilarityFailed   ErrorCode = "CHEM_012"
)

// Short aliases used at call sites.
const (
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeValidation   = ErrCodeValidation
	CodeTimeout      = ErrCodeTimeout

	CodeInvalidGraph       = ErrCodeInvalidGraph
	CodeInvalidFingerprint = ErrCodeInvalidFingerprint
	CodeGraphDecodeFailed  = ErrCodeGraphDecodeFailed
	CodeCodebookInvalid    = ErrCodeCodebookInvalid
	CodeCodebookMismatch   = ErrCodeCodebookMismatch
	CodeDocumentNotFound   = ErrCodeDocumentNotFound
	CodeStoreError         = ErrCodeStoreError
	CodeMatchAborted       = ErrCodeMatchAborted
	CodeInvalidThreshold   = ErrCodeInvalidThreshold
	CodeReadOnly           = ErrCodeReadOnly
	CodeSubstructureFailed = ErrCodeSubstructureFailed
	CodeSimilarityFailed   = ErrCodeSimilarityFailed

	CodeSerialization = ErrCodeSerialization
	CodeCacheError    = ErrCodeCacheError
	CodeMessaging     = ErrCodeMessaging
	CodeStorage       = ErrCodeStorage
	CodeUnavailable   = ErrCodeServiceUnavailable
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeMessaging:          http.StatusInternalServerError,
	ErrCodeStorage:            http.StatusInternalServerError,

	ErrCodeInvalidGraph:       http.StatusBadRequest,
	ErrCodeInvalidFingerprint: http.StatusBadRequest,
	ErrCodeGraphDecodeFailed:  http.StatusInternalServerError,
	ErrCodeCodebookInvalid:    http.StatusInternalServerError,
	ErrCodeCodebookMismatch:   http.StatusConflict,
	ErrCodeDocumentNotFound:   http.StatusNotFound,
	ErrCodeStoreError:         http.StatusInternalServerError,
	ErrCodeMatchAborted:       http.StatusGatewayTimeout,
	ErrCodeInvalidThreshold:   http.StatusBadRequest,
	ErrCodeReadOnly:           http.StatusForbidden,
	ErrCodeSubstructureFailed: http.StatusInternalServerError,
	ErrCodeSimilarityFailed:   http.StatusInternalServerError,
}

// ErrorCodeMessage holds default messages per code.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "operation timed out",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeCacheError:         "cache failure",
	ErrCodeMessaging:          "messaging failure",
	ErrCodeStorage:            "object storage failure",

	ErrCodeInvalidGraph:       "invalid molecular graph",
	ErrCodeInvalidFingerprint: "invalid fingerprint",
	ErrCodeGraphDecodeFailed:  "failed to decode stored graph",
	ErrCodeCodebookInvalid:    "invalid codebook",
	ErrCodeCodebookMismatch:   "codebook ensemble does not match configuration",
	ErrCodeDocumentNotFound:   "document not found",
	ErrCodeStoreError:         "document store failure",
	ErrCodeMatchAborted:       "structure match aborted",
	ErrCodeInvalidThreshold:   "similarity threshold must be within [0, 1]",
	ErrCodeReadOnly:           "read-only violation",
	ErrCodeSubstructureFailed: "substructure search failed",
	ErrCodeSimilarityFailed:   "similarity search failed",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
