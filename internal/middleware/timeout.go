package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds a handler. Host calls carry their own shorter timeout.
const DefaultRequestTimeout = 30 * time.Second

// Timeout answers 503 with a JSON error when the handler does not finish in time.
// The handler's context is cancelled at the deadline.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	body, _ := json.Marshal(ErrorResponse{
		Error:   "Request Timeout",
		Message: "The request did not complete in time",
	})

	return func(next http.Handler) http.Handler {
		th := http.TimeoutHandler(next, timeout, string(body))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			th.ServeHTTP(w, r)
		})
	}
}
