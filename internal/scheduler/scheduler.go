// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package scheduler runs periodic release checks and keeps each user's
// derived new-releases view fresh as their library changes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bookimbiber/imbiber/internal/services/library"
	"github.com/bookimbiber/imbiber/internal/services/notifications"
	"github.com/bookimbiber/imbiber/internal/services/releases"
	"github.com/bookimbiber/imbiber/pkg/debounce"
)

const (
	DefaultInterval      = 24 * time.Hour
	DefaultViewDebounce  = 2 * time.Second
	defaultCheckDeadline = 10 * time.Minute
)

type ReleaseChecker interface {
	CheckUser(ctx context.Context, userID string, force bool) ([]releases.ReleaseBatch, error)
	NewReleases(ctx context.Context, userID string) []releases.ReleaseBatch
}

type UserLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

type LibraryEvents interface {
	Subscribe() (<-chan library.ChangeEvent, func())
}

// ViewFunc receives a recomputed new-releases view.
type ViewFunc func(userID string, view []releases.ReleaseBatch)

type Config struct {
	Checker  ReleaseChecker
	Users    UserLister
	Library  LibraryEvents
	Notifier notifications.Notifier
	OnView   ViewFunc

	Interval     time.Duration
	ViewDebounce time.Duration
}

type Scheduler struct {
	cfg    Config
	cron   *cron.Cron
	logger zerolog.Logger

	mu         sync.Mutex
	started    bool
	entryID    cron.EntryID
	debouncers map[string]*debounce.Debouncer
	cancel     context.CancelFunc
	done       chan struct{}
}

func New(cfg Config) (*Scheduler, error) {
	if cfg.Checker == nil || cfg.Users == nil {
		return nil, errors.New("scheduler: checker and user lister are required")
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Interval < time.Minute {
		return nil, fmt.Errorf("scheduler: check interval %s is below one minute", cfg.Interval)
	}
	if cfg.ViewDebounce <= 0 {
		cfg.ViewDebounce = DefaultViewDebounce
	}

	logger := log.With().Str("module", "scheduler").Logger()

	return &Scheduler{
		cfg:        cfg,
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(&logger)))),
		logger:     logger,
		debouncers: make(map[string]*debounce.Debouncer),
	}, nil
}

// Spec is the cron schedule used for release checks.
func (s *Scheduler) Spec() string {
	return "@every " + s.cfg.Interval.String()
}

// Start schedules the periodic check and begins following library changes.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)

	id, err := s.cron.AddFunc(s.Spec(), func() {
		checkCtx, cancelCheck := context.WithTimeout(runCtx, defaultCheckDeadline)
		defer cancelCheck()
		s.RunOnce(checkCtx)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("add cron job: %w", err)
	}

	s.entryID = id
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true
	s.cron.Start()

	if s.cfg.Library != nil {
		events, unsubscribe := s.cfg.Library.Subscribe()
		go s.watchLibrary(runCtx, events, unsubscribe, s.done)
	} else {
		close(s.done)
	}

	s.logger.Info().Str("schedule", s.Spec()).Msg("release checks scheduled")
	return nil
}

// Stop halts the cron, waits for a running check and flushes pending view
// refreshes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.cron.Remove(s.entryID)
	stopCtx := s.cron.Stop()
	cancel := s.cancel
	done := s.done
	debouncers := s.debouncers
	s.debouncers = make(map[string]*debounce.Debouncer)
	s.mu.Unlock()

	<-stopCtx.Done()
	cancel()
	<-done

	for _, d := range debouncers {
		d.Stop()
	}
}

// NextRun reports when the next scheduled check fires.
func (s *Scheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return time.Time{}, false
	}
	return s.cron.Entry(s.entryID).Next, true
}

// RunOnce checks every user with followed authors. Users in cooldown are
// skipped quietly; other failures are logged and reported through the
// notifier.
func (s *Scheduler) RunOnce(ctx context.Context) {
	users, err := s.cfg.Users.ListUserIDs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users for release check")
		return
	}

	for _, userID := range users {
		if ctx.Err() != nil {
			s.logger.Warn().Err(ctx.Err()).Msg("release check run interrupted")
			return
		}

		found, err := s.cfg.Checker.CheckUser(ctx, userID, false)
		switch {
		case errors.Is(err, releases.ErrCooldown):
			s.logger.Debug().Str("user", userID).Msg("release check skipped, cooldown active")
			continue
		case err != nil:
			s.logger.Error().Err(err).Str("user", userID).Msg("release check failed")
			if s.cfg.Notifier != nil {
				s.cfg.Notifier.Notify(notifications.Event{
					Type:         notifications.EventReleaseCheckFailed,
					UserID:       userID,
					ErrorMessage: err.Error(),
				})
			}
			continue
		}

		s.logger.Debug().Str("user", userID).Int("authors", len(found)).Msg("release check done")
		s.refreshView(ctx, userID)
	}
}

func (s *Scheduler) watchLibrary(ctx context.Context, events <-chan library.ChangeEvent, unsubscribe func(), done chan struct{}) {
	defer close(done)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.scheduleRefresh(ctx, ev.UserID)
		}
	}
}

// scheduleRefresh coalesces bursts of library changes for a user into one
// view recomputation.
func (s *Scheduler) scheduleRefresh(ctx context.Context, userID string) {
	s.mu.Lock()
	d, ok := s.debouncers[userID]
	if !ok {
		d = debounce.New(s.cfg.ViewDebounce)
		s.debouncers[userID] = d
	}
	s.mu.Unlock()

	d.Do(func() {
		// ctx is canceled by Stop before flushing; recompute on a fresh one
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		s.refreshView(refreshCtx, userID)
	})
}

func (s *Scheduler) refreshView(ctx context.Context, userID string) {
	if s.cfg.OnView == nil {
		return
	}
	s.cfg.OnView(userID, s.cfg.Checker.NewReleases(ctx, userID))
}
