// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/tinote/tinote/internal/handler/dto"
)

// Error codes in API error bodies.
const (
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeQuotaExceeded      = "QUOTA_EXCEEDED"
	CodeUnsupportedMedia   = "UNSUPPORTED_MEDIA"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeExtractionFailed   = "EXTRACTION_FAILED"
	CodeUpstream           = "UPSTREAM_ERROR"
	CodeCanceled           = "REQUEST_CANCELED"
	CodeInvalidJSON        = "INVALID_JSON"
	CodeValidation         = "VALIDATION_ERROR"
	CodeMissingFile        = "MISSING_FILE"
	CodeNoteNotFound       = "NOTE_NOT_FOUND"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeStudentIDTaken     = "STUDENT_ID_TAKEN"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeInternal           = "INTERNAL_ERROR"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// NotFound handles 404 responses.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, CodeNotFound, "resource not found")
}

// MethodNotAllowed handles 405 responses.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Debug("failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// decodeJSON decodes a request body into v and validates it. An empty body
// decodes to the zero value. On failure the error response is already written.
func decodeJSON(w http.ResponseWriter, r *http.Request, v validation.Validatable) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, CodeInvalidJSON, "invalid request body")
		return false
	}
	if err := v.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return false
	}
	return true
}

// pagination reads limit and offset query parameters, clamping them to
// the same bounds the services apply.
func pagination(r *http.Request) (limit, offset int) {
	query := r.URL.Query()

	limit = defaultPageLimit
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxPageLimit {
			limit = parsed
		}
	}
	if o := query.Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed > 0 {
			offset = parsed
		}
	}
	return limit, offset
}
