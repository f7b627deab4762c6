// Package handlers implements the HTTP endpoints of the search service.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/turtacn/molsearch/pkg/errors"
)

// DefaultMaxBodySize bounds request bodies when the server sets no limit.
const DefaultMaxBodySize = 8 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeAppError maps an error to its HTTP status.  Server-side failures
// are masked.
func writeAppError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = errors.DefaultMessageForCode(code)
	}
	writeJSON(w, status, ErrorResponse{Code: code.String(), Message: msg})
}

// decodeBody reads a JSON request body into dst.
func decodeBody(r *http.Request, dst interface{}) error {
	body := io.LimitReader(r.Body, DefaultMaxBodySize)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, errors.CodeInvalidParam, "malformed request body")
	}
	return nil
}
