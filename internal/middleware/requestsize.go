package middleware

import (
	"net/http"
)

// DefaultMaxRequestSize bounds request bodies. Setup and options forms are a few hundred bytes.
const DefaultMaxRequestSize int64 = 64 << 10

// MaxRequestSize rejects bodies larger than maxBytes. A declared Content-Length
// over the limit is refused up front; otherwise the body reader fails once the
// limit is crossed and the JSON decoder reports it.
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, r, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "Request body is too large", nil)
				return
			}
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
