// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/bookimbiber/imbiber/internal/api/ctxkeys"
	"github.com/bookimbiber/imbiber/internal/domain"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name       string
		cfg        *domain.Config
		header     string
		remoteAddr string
		wantStatus int
	}{
		{
			name:       "rejects when config is nil",
			remoteAddr: "127.0.0.1:1",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "accepts matching key",
			cfg:        &domain.Config{APIKey: "secret"},
			header:     "secret",
			remoteAddr: "203.0.113.10:12345",
			wantStatus: http.StatusOK,
		},
		{
			name:       "rejects wrong key",
			cfg:        &domain.Config{APIKey: "secret"},
			header:     "nope",
			remoteAddr: "203.0.113.10:12345",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "rejects missing key",
			cfg:        &domain.Config{APIKey: "secret"},
			remoteAddr: "203.0.113.10:12345",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "rejects when no key is configured",
			cfg:        &domain.Config{},
			header:     "",
			remoteAddr: "127.0.0.1:1",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "auth disabled allows request from configured CIDR",
			cfg: &domain.Config{
				AuthDisabled:             true,
				AuthDisabledAllowedCIDRs: []string{"127.0.0.1/32"},
			},
			remoteAddr: "127.0.0.1:54321",
			wantStatus: http.StatusOK,
		},
		{
			name: "auth disabled blocks request outside CIDR",
			cfg: &domain.Config{
				AuthDisabled:             true,
				AuthDisabledAllowedCIDRs: []string{"127.0.0.1/32"},
			},
			remoteAddr: "203.0.113.10:54321",
			wantStatus: http.StatusForbidden,
		},
		{
			name: "auth disabled blocks when configured list is invalid",
			cfg: &domain.Config{
				AuthDisabled:             true,
				AuthDisabledAllowedCIDRs: []string{"invalid-cidr"},
			},
			remoteAddr: "127.0.0.1:54321",
			wantStatus: http.StatusForbidden,
		},
		{
			name: "auth disabled accepts bracketed ipv6",
			cfg: &domain.Config{
				AuthDisabled:             true,
				AuthDisabledAllowedCIDRs: []string{"::1"},
			},
			remoteAddr: "[::1]:8080",
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := RequireAuth(func() *domain.Config { return tc.cfg })(okHandler)

			req := httptest.NewRequest(http.MethodGet, "/api/users/u1/authors", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.header != "" {
				req.Header.Set(APIKeyHeader, tc.header)
			}
			resp := httptest.NewRecorder()

			handler.ServeHTTP(resp, req)
			assert.Equal(t, tc.wantStatus, resp.Code)
		})
	}
}

func TestAPIKeyFromQuery_AllowsQueryParam(t *testing.T) {
	cfg := &domain.Config{APIKey: "stream-key"}
	handler := APIKeyFromQuery("apikey")(RequireAuth(func() *domain.Config { return cfg })(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/api/users/u1/events?apikey=stream-key", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/users/u1/events?apikey=wrong", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	// an explicit header wins over the query param
	req = httptest.NewRequest(http.MethodGet, "/api/users/u1/events?apikey=wrong", nil)
	req.Header.Set(APIKeyHeader, "stream-key")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestUserContext(t *testing.T) {
	var seen string
	r := chi.NewRouter()
	r.With(UserContext).Get("/users/{userID}", func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(ctxkeys.UserID).(string)
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		path       string
		wantStatus int
		wantUser   string
	}{
		{"/users/reader-1", http.StatusOK, "reader-1"},
		{"/users/a.b@example.com", http.StatusOK, "a.b@example.com"},
		{"/users/bad%20id", http.StatusBadRequest, ""},
		{"/users/x%2Fy", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			seen = ""
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUser, seen)
		})
	}
}
