// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func preflight(router http.Handler, origin, path, method, headers string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, path, nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", method)
	if headers != "" {
		req.Header.Set("Access-Control-Request-Headers", headers)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCORSPreflightForAppRequests(t *testing.T) {
	router := NewRouter(newTestDependencies(t))

	tests := []struct {
		name        string
		path        string
		method      string
		headers     string
		wantHeaders []string
	}{
		{
			name:        "follow an author",
			path:        "/api/users/u1/authors",
			method:      http.MethodPost,
			headers:     "x-api-key, content-type",
			wantHeaders: []string{"x-api-key", "content-type"},
		},
		{
			name:        "resume the event stream",
			path:        "/api/users/u1/events",
			method:      http.MethodGet,
			headers:     "last-event-id",
			wantHeaders: []string{"last-event-id"},
		},
		{
			name:        "mark a notification read",
			path:        "/api/users/u1/notifications/n1/read",
			method:      http.MethodPut,
			headers:     "x-api-key, x-requested-with",
			wantHeaders: []string{"x-api-key", "x-requested-with"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// preflights carry no API key and must not hit auth
			rec := preflight(router, "https://example.com", tt.path, tt.method, tt.headers)

			require.Equal(t, http.StatusNoContent, rec.Code)
			assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

			allowed := strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers"))
			for _, h := range tt.wantHeaders {
				assert.Contains(t, allowed, h)
			}
		})
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	router := NewRouter(newTestDependencies(t))

	rec := preflight(router, "https://evil.example", "/api/users/u1/authors", http.MethodGet, "")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSDisabledWithoutAllowedOrigins(t *testing.T) {
	deps := newTestDependencies(t)
	deps.Config.Config.CORSAllowedOrigins = nil
	router := NewRouter(deps)

	rec := preflight(router, "https://example.com", "/api/users/u1/authors", http.MethodGet, "x-api-key")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEqual(t, http.StatusNoContent, rec.Code)
}
