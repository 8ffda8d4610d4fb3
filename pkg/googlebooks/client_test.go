// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package googlebooks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const duneResponse = `{
  "kind": "books#volumes",
  "totalItems": 1,
  "items": [{
    "id": "B1m4AAAAQBAJ",
    "volumeInfo": {
      "title": "Dune",
      "authors": ["Frank Herbert"],
      "publishedDate": "1965-08-01",
      "industryIdentifiers": [
        {"type": "ISBN_10", "identifier": "0441013597"},
        {"type": "ISBN_13", "identifier": "9780441013593"}
      ],
      "imageLinks": {"thumbnail": "http://books.example/t?zoom=1"},
      "language": "en"
    }
  }]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:    srv.URL,
		APIKey:     "secret",
		UserAgent:  "imbiber-test",
		RetryDelay: time.Millisecond,
	})
}

func TestClient_Volumes(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, volumesPath, r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, `inauthor:"Frank Herbert"`, q.Get("q"))
		assert.Equal(t, "40", q.Get("maxResults"), "maxResults is clamped")
		assert.Equal(t, "de", q.Get("langRestrict"))
		assert.Equal(t, OrderNewest, q.Get("orderBy"))
		assert.Equal(t, "secret", q.Get("key"))
		assert.Equal(t, "imbiber-test", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(duneResponse))
	})

	resp, err := client.Volumes(context.Background(), VolumesQuery{
		Q:            `inauthor:"Frank Herbert"`,
		MaxResults:   100,
		LangRestrict: "de",
		OrderBy:      OrderNewest,
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)

	info := resp.Items[0].VolumeInfo
	assert.Equal(t, "Dune", info.Title)
	assert.Equal(t, "9780441013593", info.Identifier("ISBN_13"))
	assert.Equal(t, "0441013597", info.Identifier("ISBN_10"))
	assert.Empty(t, info.Identifier("OTHER"))
	require.NotNil(t, info.ImageLinks)
}

func TestClient_EmptyQuery(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := client.Volumes(context.Background(), VolumesQuery{Q: "  "})
	require.Error(t, err)
	assert.Zero(t, calls.Load())
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"totalItems":0}`))
	})

	resp, err := client.Volumes(context.Background(), VolumesQuery{Q: "dune"})
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_GivesUpAfterAttempts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Volumes(context.Background(), VolumesQuery{Q: "dune"})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.EqualValues(t, defaultAttempts, calls.Load())
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad query", http.StatusBadRequest)
	})

	_, err := client.Volumes(context.Background(), VolumesQuery{Q: "dune"})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Contains(t, statusErr.Error(), "bad query")
	assert.False(t, statusErr.Temporary())
	assert.EqualValues(t, 1, calls.Load())
}

func TestClient_ContextCanceled(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(duneResponse))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Volumes(ctx, VolumesQuery{Q: "dune"})
	require.Error(t, err)
}
