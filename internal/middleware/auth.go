package middleware

import (
	"net/http"
	"strings"

	logpkg "github.com/benvon/todo-reset/internal/logger"
	"github.com/benvon/todo-reset/internal/models"
	"github.com/benvon/todo-reset/internal/request"
	"go.uber.org/zap"
)

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*models.APIClaims, error)
}

// Auth creates authentication middleware that validates bearer tokens
func Auth(verifier TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, r, "Missing Authorization header", logger)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w, r, "Invalid Authorization header format", logger)
				return
			}

			claims, err := verifier.Verify(parts[1])
			if err != nil {
				logger.Debug("token_verification_failed",
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("error", logpkg.SanitizeError(err)),
				)
				unauthorized(w, r, "Invalid or expired token", logger)
				return
			}

			logger.Debug("request_authenticated",
				zap.String("subject", logpkg.SanitizeString(claims.Sub, logpkg.MaxGeneralStringLength)),
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			)
			next.ServeHTTP(w, r.WithContext(request.WithClaims(r.Context(), claims)))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, message string, logger *zap.Logger) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="todo-reset"`)
	writeError(w, r, http.StatusUnauthorized, "Unauthorized", message, logger)
}
