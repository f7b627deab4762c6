package errors_test

import (
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/molsearch/pkg/errors"
)

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "CHEM_006", errors.CodeDocumentNotFound.String())
}

func TestHTTPStatusForCode(t *testing.T) {
	cases := map[errors.ErrorCode]int{
		errors.CodeInvalidParam:      http.StatusBadRequest,
		errors.CodeValidation:        http.StatusUnprocessableEntity,
		errors.CodeInvalidGraph:      http.StatusBadRequest,
		errors.CodeInvalidThreshold:  http.StatusBadRequest,
		errors.CodeDocumentNotFound:  http.StatusNotFound,
		errors.CodeCodebookMismatch:  http.StatusConflict,
		errors.CodeReadOnly:          http.StatusForbidden,
		errors.CodeMatchAborted:      http.StatusGatewayTimeout,
		errors.CodeUnavailable:       http.StatusServiceUnavailable,
		errors.CodeStoreError:        http.StatusInternalServerError,
		errors.ErrorCode("NOPE_999"): http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, errors.HTTPStatusForCode(code), code)
	}
}

func TestDefaultMessageForCode(t *testing.T) {
	assert.Equal(t, "document not found", errors.DefaultMessageForCode(errors.CodeDocumentNotFound))
	assert.Equal(t, "unknown error", errors.DefaultMessageForCode(errors.ErrorCode("NOPE_999")))
}

func TestClientServerClassification(t *testing.T) {
	assert.True(t, errors.IsClientError(errors.CodeInvalidGraph))
	assert.False(t, errors.IsServerError(errors.CodeInvalidGraph))
	assert.True(t, errors.IsServerError(errors.CodeGraphDecodeFailed))
	assert.False(t, errors.IsClientError(errors.CodeGraphDecodeFailed))
}

func TestModuleForCode(t *testing.T) {
	assert.Equal(t, "CHEM", errors.ModuleForCode(errors.CodeMatchAborted))
	assert.Equal(t, "COMMON", errors.ModuleForCode(errors.CodeInternal))
	assert.Equal(t, "UNKNOWN", errors.ModuleForCode(errors.ErrorCode("plain")))
	assert.Equal(t, "UNKNOWN", errors.ModuleForCode(errors.ErrorCode("_001")))
}

func TestErrorCodeMappings_Completeness(t *testing.T) {
	convention := regexp.MustCompile(`^[A-Z]+_[0-9]{3}$`)
	for code := range errors.ErrorCodeHTTPStatus {
		assert.Regexp(t, convention, code.String())
		_, ok := errors.ErrorCodeMessage[code]
		assert.True(t, ok, "no default message for %s", code)
	}
	assert.Len(t, errors.ErrorCodeMessage, len(errors.ErrorCodeHTTPStatus))
}
