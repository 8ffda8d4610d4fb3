// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/bookimbiber/imbiber/internal/buildinfo"
	"github.com/bookimbiber/imbiber/internal/config"
	"github.com/bookimbiber/imbiber/internal/database"
	"github.com/bookimbiber/imbiber/internal/domain"
	"github.com/bookimbiber/imbiber/internal/models"
	"github.com/bookimbiber/imbiber/internal/services/authors"
	"github.com/bookimbiber/imbiber/internal/services/catalog"
	"github.com/bookimbiber/imbiber/internal/services/library"
	"github.com/bookimbiber/imbiber/internal/services/notifications"
	"github.com/bookimbiber/imbiber/internal/services/releases"
	"github.com/bookimbiber/imbiber/internal/services/series"
	"github.com/bookimbiber/imbiber/pkg/apicache"
	"github.com/bookimbiber/imbiber/pkg/debounce"
	"github.com/bookimbiber/imbiber/pkg/googlebooks"
)

// app holds every component shared by the server and the one-shot commands.
type app struct {
	cfg *config.AppConfig
	db  *database.DB

	kv            *models.KVStore
	cache         *apicache.Cache
	catalog       *catalog.Service
	series        *series.Service
	authors       *authors.Service
	library       *library.Service
	notifications *notifications.Service
	releases      *releases.Service

	logCloser io.Closer
}

type appOptions struct {
	// withNotifications builds the push dispatcher when it is enabled in
	// config. One-shot commands leave it off since they exit before the
	// queue drains.
	withNotifications bool
}

func newApp(configPath string, opts appOptions) (*app, error) {
	cfg, err := config.New(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logCloser, err := config.SetupLogging(cfg.Current())
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}

	dbPath := cfg.GetDatabasePath()
	db, err := database.New(dbPath)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}

	a := &app{cfg: cfg, db: db, logCloser: logCloser}
	a.wire(opts)

	log.Debug().Str("config", cfg.ConfigPath()).Str("database", dbPath).Msg("Components initialized")

	return a, nil
}

func (a *app) wire(opts appOptions) {
	current := a.cfg.Current()

	a.kv = models.NewKVStore(a.db)
	a.cache = apicache.New(a.kv)

	client := googlebooks.NewClient(googlebooks.Config{
		BaseURL:           current.GoogleBooksBaseURL,
		APIKey:            current.GoogleBooksAPIKey,
		UserAgent:         buildinfo.UserAgent,
		Timeout:           current.GoogleBooksRequestTimeout(),
		RequestsPerSecond: current.GoogleBooksRequestsPerSecond,
	})
	a.catalog = catalog.NewService(client, a.cache, current.DefaultLocale)
	a.series = series.NewService(a.catalog)

	a.authors = authors.NewService(models.NewFollowedAuthorStore(a.db))
	a.library = library.NewService(models.NewLibraryBookStore(a.db))

	if opts.withNotifications && current.NotificationsEnabled {
		targets := notifications.TargetsFromURLs(current.NotificationURLs, nil)
		if len(targets) == 0 {
			log.Warn().Msg("Notifications enabled but no notificationUrls configured")
		} else {
			for _, target := range targets {
				log.Info().Str("target", domain.RedactURL(target.URL)).Msg("Notification target configured")
			}
			a.notifications = notifications.NewService(targets, nil, log.With().Str("module", "notifications").Logger())
		}
	}

	cooldown := debounce.NewCooldown(current.CheckCooldown())
	if current.PersistCooldowns {
		cooldown = debounce.NewPersistentCooldown(current.CheckCooldown(), a.kv)
	}

	a.releases = releases.NewService(releases.Config{
		Catalog:  a.catalog,
		Library:  a.library,
		Authors:  a.authors,
		KV:       a.kv,
		Notifier: a.notifier(),
		Cooldown: cooldown,
	})
}

// notifier avoids handing a typed nil to an interface field.
func (a *app) notifier() notifications.Notifier {
	if a.notifications == nil {
		return nil
	}
	return a.notifications
}

func (a *app) Close() error {
	a.releases.Close()
	a.library.Close()
	a.authors.Close()

	var errs []error
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	if err := a.logCloser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close log file: %w", err))
	}
	return errors.Join(errs...)
}
