package middleware

import (
	"mime"
	"net/http"
)

// CodeBadRequest is written for malformed requests rejected before a handler runs.
const CodeBadRequest = "BAD_REQUEST"

// RequireMultipart rejects requests whose body is not multipart/form-data.
// Upload endpoints use it so handlers only see parseable bodies.
func RequireMultipart(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "request must be multipart/form-data with a file field")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON rejects bodies that do not declare a JSON content type.
// Requests without a body pass through.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength == 0 && r.Header.Get("Content-Type") == "" {
			next.ServeHTTP(w, r)
			return
		}
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			writeError(w, http.StatusUnsupportedMediaType, CodeBadRequest, "request body must be application/json")
			return
		}
		next.ServeHTTP(w, r)
	})
}
