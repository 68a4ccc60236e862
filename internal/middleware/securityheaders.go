package middleware

import (
	"net/http"
	"strings"

	"github.com/benvon/todo-reset/internal/models"
)

var baseSecurityHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"Referrer-Policy":         "strict-origin-when-cross-origin",
	"Permissions-Policy":      "camera=(), microphone=(), geolocation=()",
	"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
}

const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeaders sets response hardening headers. Card assets under the
// frontend URL base are loaded as modules by the dashboard from another
// origin, so they are marked cross-origin readable.
func SecurityHeaders(enableHSTS bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range baseSecurityHeaders {
				h.Set(k, v)
			}

			if strings.HasPrefix(r.URL.Path, models.URLBase+"/") {
				h.Set("Cross-Origin-Resource-Policy", "cross-origin")
			} else {
				h.Set("Cross-Origin-Resource-Policy", "same-origin")
			}

			if enableHSTS && isHTTPS(r) {
				h.Set("Strict-Transport-Security", hstsValue)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isHTTPS reports whether the client connection is TLS, directly or through a
// terminating proxy.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
