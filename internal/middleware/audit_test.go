package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAudit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		method    string
		status    int
		wantEvent string
	}{
		{name: "unauthorized", method: http.MethodGet, status: http.StatusUnauthorized, wantEvent: "security_event"},
		{name: "forbidden", method: http.MethodDelete, status: http.StatusForbidden, wantEvent: "security_event"},
		{name: "rate limited", method: http.MethodPost, status: http.StatusTooManyRequests, wantEvent: "rate_limit_violation"},
		{name: "mutation", method: http.MethodPost, status: http.StatusAccepted, wantEvent: "api_mutation"},
		{name: "plain read", method: http.MethodGet, status: http.StatusOK, wantEvent: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.InfoLevel)
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			req := httptest.NewRequest(tt.method, "/api/v1/entries", nil)
			Audit(zap.New(core))(handler).ServeHTTP(httptest.NewRecorder(), req)

			all := logs.All()
			if tt.wantEvent == "" {
				if len(all) != 0 {
					t.Errorf("Expected no audit log, got %d", len(all))
				}
				return
			}
			if len(all) != 1 || all[0].Message != tt.wantEvent {
				t.Errorf("Expected one %q log, got %v", tt.wantEvent, all)
			}
		})
	}
}
