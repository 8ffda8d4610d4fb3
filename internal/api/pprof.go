// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/bookimbiber/imbiber/internal/api/handlers"
	"github.com/bookimbiber/imbiber/internal/domain"
)

// StartPprofServer starts the profiling server when enabled. The returned
// server is nil when profiling is off.
func StartPprofServer(cfg *domain.Config) *http.Server {
	if cfg == nil || !cfg.PprofEnabled {
		return nil
	}

	addr := net.JoinHostPort(cfg.PprofHost, strconv.Itoa(cfg.PprofPort))

	r := chi.NewRouter()
	r.Route("/debug/pprof", func(r chi.Router) {
		handlers.NewPprofController().Routes(r)

		r.Get("/cmdline", pprof.Cmdline)
		r.Get("/profile", pprof.Profile)
		r.Get("/symbol", pprof.Symbol)
		r.Post("/symbol", pprof.Symbol)
		r.Get("/trace", pprof.Trace)
		r.Get("/", pprof.Index)
		r.Get("/{profile}", pprof.Index)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Msgf("Starting pprof server on %s", addr)
		log.Info().Msgf("  - CPU:        go tool pprof http://%s/debug/pprof/profile?seconds=30", addr)
		log.Info().Msgf("  - Heap:       go tool pprof http://%s/debug/pprof/heap", addr)
		log.Info().Msgf("  - Goroutines: go tool pprof http://%s/debug/pprof/goroutine", addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Profiling server failed")
		}
	}()

	return srv
}
