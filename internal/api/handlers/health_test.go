// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookimbiber/imbiber/internal/database"
)

type fakePinger struct {
	err   error
	calls int
}

func (f *fakePinger) PingContext(ctx context.Context) error {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("readiness ping without deadline")
	}
	return f.err
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealthReadinessPingsDatabase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		pinger     *fakePinger
		wantStatus int
		wantBody   map[string]string
	}{
		{
			name:       "database answers",
			pinger:     &fakePinger{},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"status": "ready", "database": "ok"},
		},
		{
			name:       "database down",
			pinger:     &fakePinger{err: database.ErrClosed},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"status": "unavailable", "database": "unreachable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealthHandler(tt.pinger)
			rec := httptest.NewRecorder()
			h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantBody, decodeStatus(t, rec))
			assert.Equal(t, 1, tt.pinger.calls)
		})
	}
}

func TestHealthReadinessWithoutDatabase(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewHealthHandler(nil).HandleReady(rec, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ready"}, decodeStatus(t, rec))
}

func TestHealthReadinessFollowsDatabaseLifecycle(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "imbiber.db"))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/health", NewHealthHandler(db).Routes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, db.Close())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// liveness does not depend on storage
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/liveness", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", decodeStatus(t, rec)["status"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeStatus(t, rec)["status"])
}
