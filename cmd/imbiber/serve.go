// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bookimbiber/imbiber/internal/api"
	"github.com/bookimbiber/imbiber/internal/api/sse"
	"github.com/bookimbiber/imbiber/internal/buildinfo"
	"github.com/bookimbiber/imbiber/internal/database"
	"github.com/bookimbiber/imbiber/internal/domain"
	"github.com/bookimbiber/imbiber/internal/metrics"
	"github.com/bookimbiber/imbiber/internal/scheduler"
	"github.com/bookimbiber/imbiber/internal/services/releases"
)

const shutdownTimeout = 15 * time.Second

func RunServeCommand(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the release check scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, configPath())
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	a, err := newApp(configPath, appOptions{withNotifications: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("Error during cleanup")
		}
	}()

	cfg := a.cfg.Current()

	log.Info().Str("version", buildinfo.Version).Str("commit", buildinfo.Commit).Str("apiKey", domain.RedactString(cfg.APIKey)).Msg("Starting imbiber")

	a.notifications.Start(ctx)

	stream := sse.NewStreamManager()

	interval, err := cfg.CheckIntervalDuration()
	if err != nil {
		return err
	}

	sched, err := scheduler.New(scheduler.Config{
		Checker:  a.releases,
		Users:    a.authors,
		Library:  a.library,
		Notifier: a.notifier(),
		OnView: func(userID string, view []releases.ReleaseBatch) {
			stream.Publish(userID, sse.EventNewReleases, view, &sse.StreamMeta{
				UserID:    userID,
				Change:    "refreshed",
				Timestamp: time.Now().UTC(),
			})
		},
		Interval: interval,
	})
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	metricsManager := metrics.NewManager(metrics.Sources{
		Cache:         a.cache,
		Catalog:       a.catalog,
		Releases:      a.releases,
		Notifications: a.notifications,
		Brokers: map[string]metrics.BrokerSource{
			"authors":  a.authors.Broker(),
			"library":  a.library.Broker(),
			"releases": a.releases.Broker(),
		},
	})
	if err := metricsManager.Register(database.NewMetricsCollector(a.db)); err != nil {
		log.Warn().Err(err).Msg("Failed to register database metrics")
	}

	var metricsServer *metrics.MetricsServer
	if cfg.MetricsEnabled {
		metricsServer = metrics.NewMetricsServer(metricsManager, cfg.MetricsHost, cfg.MetricsPort, cfg.MetricsBasicAuthUsers)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	pprofServer := api.StartPprofServer(cfg)

	server := api.NewServer(&api.Dependencies{
		Config:   a.cfg,
		Catalog:  a.catalog,
		Series:   a.series,
		Authors:  a.authors,
		Library:  a.library,
		Releases: a.releases,
		Stream:   stream,
		Metrics:  metricsManager,
		Database: a.db,
	})
	server.PumpEvents()

	a.cfg.OnChange(func(next *domain.Config) {
		if next.Host != cfg.Host || next.Port != cfg.Port || next.BaseURL != cfg.BaseURL {
			log.Warn().Msg("Listen address or base URL changed; restart imbiber to apply")
		}
	})
	a.cfg.WatchConfig()

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	case err := <-errCh:
		if err != nil {
			sched.Stop()
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	sched.Stop()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if pprofServer != nil {
		if err := pprofServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("pprof server shutdown: %w", err))
		}
	}

	log.Info().Msg("Shutdown complete")
	return errors.Join(errs...)
}
