// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package googlebooks is a minimal client for the Google Books volumes API.
package googlebooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://www.googleapis.com"
	volumesPath    = "/books/v1/volumes"

	// MaxResultsLimit is the largest page the API accepts.
	MaxResultsLimit = 40

	defaultTimeout    = 15 * time.Second
	defaultAttempts   = 3
	defaultRetryDelay = 500 * time.Millisecond
	maxErrorBody      = 512
)

const (
	OrderRelevance = "relevance"
	OrderNewest    = "newest"
)

type Config struct {
	BaseURL           string
	APIKey            string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Attempts          uint
	RetryDelay        time.Duration
	HTTPClient        *http.Client
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
	limiter    *rate.Limiter
	attempts   uint
	retryDelay time.Duration
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = defaultAttempts
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		userAgent:  cfg.UserAgent,
		limiter:    rate.NewLimiter(limit, 1),
		attempts:   attempts,
		retryDelay: retryDelay,
	}
}

// VolumesQuery are the parameters of a volumes search.
type VolumesQuery struct {
	Q            string
	MaxResults   int
	LangRestrict string
	OrderBy      string
}

func (q VolumesQuery) values(apiKey string) url.Values {
	v := url.Values{}
	v.Set("q", q.Q)

	maxResults := q.MaxResults
	if maxResults > MaxResultsLimit {
		maxResults = MaxResultsLimit
	}
	if maxResults > 0 {
		v.Set("maxResults", strconv.Itoa(maxResults))
	}
	if q.LangRestrict != "" {
		v.Set("langRestrict", q.LangRestrict)
	}
	if q.OrderBy != "" {
		v.Set("orderBy", q.OrderBy)
	}
	if apiKey != "" {
		v.Set("key", apiKey)
	}
	return v
}

// Volumes runs a search. Network errors, 429 and 5xx responses are retried
// with exponential backoff; other non-2xx responses fail immediately with a
// *StatusError.
func (c *Client) Volumes(ctx context.Context, q VolumesQuery) (*VolumesResponse, error) {
	if strings.TrimSpace(q.Q) == "" {
		return nil, errors.New("google books: empty query")
	}

	endpoint := c.baseURL + volumesPath + "?" + q.values(c.apiKey).Encode()

	var out *VolumesResponse
	err := retry.Do(
		func() error {
			resp, err := c.fetch(ctx, endpoint)
			if err != nil {
				return err
			}
			out = resp
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Err(err).Uint("attempt", n+1).Str("q", q.Q).Msg("google books: retrying request")
		}),
	)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) (*VolumesResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google books request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out VolumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode google books response: %w", err)
	}

	return &out, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return false
	}

	return true
}
