package middleware

import (
	"net/http"
)

// RequestTooLargeMessage is the error body of every 413 response
const RequestTooLargeMessage = "request body too large"

// RequestSizeLimitMiddleware rejects requests whose declared body exceeds maxBytes
// and caps the body reader for requests that do not declare a length
func RequestSizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeJSONError(w, http.StatusRequestEntityTooLarge, RequestTooLargeMessage)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// writeJSONError writes a {"error": message} body without going through a handler
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
