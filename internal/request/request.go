// Package request reads per-request values: the caller's claims and address.
package request

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/benvon/todo-reset/internal/models"
)

type contextKey string

const claimsContextKey contextKey = "api_claims"

// ClaimsContextKey returns the context key holding the caller's claims.
func ClaimsContextKey() contextKey { return claimsContextKey }

// ClientIP returns the caller's address without port. The first
// X-Forwarded-For hop wins, then X-Real-IP, then the connection's peer.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// WithClaims returns a context carrying the authenticated caller.
func WithClaims(ctx context.Context, claims *models.APIClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext returns the caller's claims, or nil for anonymous requests.
func ClaimsFromContext(r *http.Request) *models.APIClaims {
	c, _ := r.Context().Value(claimsContextKey).(*models.APIClaims)
	return c
}

// Subject returns the authenticated caller's subject, or "".
func Subject(r *http.Request) string {
	if c := ClaimsFromContext(r); c != nil {
		return c.Sub
	}
	return ""
}
