package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// DefaultAllowedOrigin is used when no frontend origin is configured.
const DefaultAllowedOrigin = "http://localhost:8123"

// AllowedOrigins splits a comma-separated origin list, dropping blanks and duplicates.
func AllowedOrigins(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(raw, ",") {
		s := strings.TrimSpace(p)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// CORS creates CORS middleware for the comma-separated origins in frontendURL,
// typically the Home Assistant frontend that loads the card.
func CORS(frontendURL string) func(http.Handler) http.Handler {
	origins := AllowedOrigins(frontendURL)
	if len(origins) == 0 {
		origins = []string{DefaultAllowedOrigin}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		MaxAge:           86400,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
	})
	return c.Handler
}
