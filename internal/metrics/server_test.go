// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookimbiber/imbiber/internal/services/catalog"
	"github.com/bookimbiber/imbiber/internal/services/releases"
	"github.com/bookimbiber/imbiber/pkg/apicache"
)

func scrape(t *testing.T, server *MetricsServer, user, pass string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	rec := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestMetricsServerExposesImbiberSeries(t *testing.T) {
	manager := NewManager(Sources{
		Cache:    fakeCache{apicache.Stats{Hits: 12, Misses: 4, Expired: 2}},
		Catalog:  fakeCatalog{catalog.Stats{Requests: 9, Failures: 1}},
		Releases: fakeReleases{releases.Stats{Checks: 3, CooldownSkips: 5, NotificationsSaved: 6}},
	})
	server := NewMetricsServer(manager, "127.0.0.1", 9074, "")

	rec := scrape(t, server, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	body := rec.Body.String()
	for _, line := range []string{
		`imbiber_cache_operations_total{result="hit"} 12`,
		`imbiber_cache_operations_total{result="miss"} 4`,
		`imbiber_cache_operations_total{result="expired"} 2`,
		`imbiber_catalog_requests_total 9`,
		`imbiber_catalog_failures_total 1`,
		`imbiber_release_checks_total 3`,
		`imbiber_release_cooldown_skips_total 5`,
		`imbiber_release_notifications_saved_total 6`,
	} {
		assert.Contains(t, body, line)
	}
	assert.NotContains(t, body, "imbiber_notifications_total", "dispatcher series need a notifications source")
}

func TestMetricsServerCountsAPIRoutesByPattern(t *testing.T) {
	manager := NewManager(Sources{})
	server := NewMetricsServer(manager, "127.0.0.1", 9074, "")

	api := chi.NewRouter()
	api.Use(manager.HTTP.Middleware)
	api.Get("/api/users/{userID}/notifications", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	api.Post("/api/users/{userID}/check", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	for _, user := range []string{"reader-1", "reader-2", "reader-3"} {
		api.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/users/"+user+"/notifications", nil))
	}
	api.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/users/reader-1/check", nil))

	body := scrape(t, server, "", "").Body.String()
	assert.Contains(t, body, `imbiber_http_requests_total{code="200",method="GET",route="/api/users/{userID}/notifications"} 3`)
	assert.Contains(t, body, `imbiber_http_requests_total{code="429",method="POST",route="/api/users/{userID}/check"} 1`)
	assert.NotContains(t, body, "reader-1")
}

func TestMetricsServerBasicAuth(t *testing.T) {
	manager := NewManager(Sources{Releases: fakeReleases{releases.Stats{Checks: 1}}})
	server := NewMetricsServer(manager, "127.0.0.1", 9074, "prometheus:scrape-secret, grafana:other")

	rec := scrape(t, server, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Basic realm="metrics"`, rec.Header().Get("WWW-Authenticate"))
	assert.NotContains(t, rec.Body.String(), "imbiber_release_checks_total")

	assert.Equal(t, http.StatusUnauthorized, scrape(t, server, "prometheus", "other").Code)

	rec = scrape(t, server, "grafana", "other")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "imbiber_release_checks_total 1")
}

func TestParseBasicAuthUsers(t *testing.T) {
	tests := []struct {
		raw  string
		want map[string]string
	}{
		{"", map[string]string{}},
		{"prometheus:secret", map[string]string{"prometheus": "secret"}},
		{" a:1 , b:2 ", map[string]string{"a": "1", "b": "2"}},
		{"a:1,malformed,:nouser,b:", map[string]string{"a": "1", "b": ""}},
		{"a:pass:with:colons", map[string]string{"a": "pass:with:colons"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, parseBasicAuthUsers(tt.raw))
		})
	}
}

func TestMetricsServerOnlyServesMetrics(t *testing.T) {
	server := NewMetricsServer(NewManager(Sources{}), "127.0.0.1", 9074, "")

	for _, path := range []string{"/", "/health", "/api/version"} {
		rec := httptest.NewRecorder()
		server.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestMetricsServerListenAndShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	server := NewMetricsServer(NewManager(Sources{Releases: fakeReleases{releases.Stats{Checks: 2}}}), "127.0.0.1", port, "")

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	url := "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port)) + "/metrics"
	var body []byte
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(resp.Body)
		return err == nil && resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	assert.Contains(t, string(body), "imbiber_release_checks_total 2")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))
	require.NoError(t, <-errCh)
}
