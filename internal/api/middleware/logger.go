// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/bookimbiber/imbiber/internal/domain"
)

// APIKeyQueryParam is the query param the event stream accepts the key in.
const APIKeyQueryParam = "apikey"

var (
	RequestID       = chimiddleware.RequestID
	Recoverer       = chimiddleware.Recoverer
	RealIP          = chimiddleware.RealIP
	ThrottleBacklog = chimiddleware.ThrottleBacklog
)

// Logger writes one access line per request and turns panics into a 500.
// The API key query param never reaches the log.
func Logger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			uri := domain.RedactQueryParams(r.URL, APIKeyQueryParam)

			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}

					logger.Error().
						Str("type", "error").
						Str("method", r.Method).
						Str("url", uri).
						Str("panic", fmt.Sprint(rec)).
						Bytes("stack", debug.Stack()).
						Msg("Recovered from panic")

					if ww.Status() == 0 {
						http.Error(ww, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					}
					return
				}

				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				event := logger.Trace()
				if status >= http.StatusInternalServerError {
					event = logger.Warn()
				}

				event.
					Str("type", "access").
					Str("request_id", chimiddleware.GetReqID(r.Context())).
					Str("remote_ip", r.RemoteAddr).
					Str("url", uri).
					Str("method", r.Method).
					Str("proto", r.Proto).
					Str("route", routePattern(r)).
					Str("user", chi.URLParam(r, "userID")).
					Str("user_agent", r.UserAgent()).
					Int("status", status).
					Float64("latency_ms", float64(time.Since(start).Microseconds())/1000.0).
					Int64("bytes_in", r.ContentLength).
					Int("bytes_out", ww.BytesWritten()).
					Msg("incoming_request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
