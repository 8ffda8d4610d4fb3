// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package collector

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPCollectorMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewHTTPCollector(reg)

	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/api/users/{userID}/authors", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/teapot", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, path := range []string{"/api/users/u1/authors", "/api/users/u2/authors", "/teapot"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.InDelta(t, 2, testutil.ToFloat64(c.GetRequestsTotal(http.MethodGet, "/api/users/{userID}/authors", http.StatusOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.GetRequestsTotal(http.MethodGet, "/teapot", http.StatusTeapot)), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(c.RequestsTotal))
}
