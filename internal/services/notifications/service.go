// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package notifications

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/rs/zerolog"
)

const (
	defaultQueueSize = 100
	defaultWorkers   = 2
)

type Notifier interface {
	Notify(event Event)
}

type Event struct {
	Type         EventType
	UserID       string
	Title        string
	Message      string
	Author       string
	BookTitles   []string
	ErrorMessage string
}

// Permission decides whether a user may receive push notifications.
type Permission interface {
	Allowed(ctx context.Context, userID string) bool
}

// TargetSource lists the destinations notifications are sent to.
type TargetSource interface {
	ListEnabled(ctx context.Context) ([]Target, error)
}

// StaticTargets is a fixed target list, typically built from config.
type StaticTargets []Target

func (t StaticTargets) ListEnabled(context.Context) ([]Target, error) {
	out := make([]Target, 0, len(t))
	for _, target := range t {
		if target.Enabled {
			out = append(out, target)
		}
	}
	return out, nil
}

// TargetsFromURLs builds enabled targets named after their shoutrrr scheme.
func TargetsFromURLs(urls []string, eventTypes []string) StaticTargets {
	targets := make(StaticTargets, 0, len(urls))
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		name := raw
		if i := strings.Index(raw, "://"); i > 0 {
			name = raw[:i]
		}
		targets = append(targets, Target{Name: name, URL: raw, EventTypes: eventTypes, Enabled: true})
	}
	return targets
}

type sender interface {
	Send(message string, params *types.Params) []error
}

func routerSender(rawURL string) (sender, error) {
	return router.New(nil, rawURL)
}

type Stats struct {
	Queued  uint64
	Dropped uint64
	Sent    uint64
	Failed  uint64
}

type Service struct {
	targets    TargetSource
	permission Permission
	logger     zerolog.Logger
	queue      chan Event
	startOnce  sync.Once
	newSender  func(rawURL string) (sender, error)

	queued  atomic.Uint64
	dropped atomic.Uint64
	sent    atomic.Uint64
	failed  atomic.Uint64
}

// NewService returns nil when targets is nil; a nil *Service ignores Notify.
// A nil permission allows everyone.
func NewService(targets TargetSource, permission Permission, logger zerolog.Logger) *Service {
	if targets == nil {
		return nil
	}

	return &Service{
		targets:    targets,
		permission: permission,
		logger:     logger,
		queue:      make(chan Event, defaultQueueSize),
		newSender:  routerSender,
	}
}

func ValidateURL(rawURL string) error {
	_, err := router.New(nil, rawURL)
	return err
}

func (s *Service) Start(ctx context.Context) {
	if s == nil {
		return
	}

	s.startOnce.Do(func() {
		for range defaultWorkers {
			go s.worker(ctx)
		}
	})
}

// Notify enqueues event without blocking. Events are dropped when the queue
// is full.
func (s *Service) Notify(event Event) {
	if s == nil || s.targets == nil {
		return
	}

	if s.queue == nil {
		go s.dispatch(context.Background(), event)
		return
	}

	select {
	case s.queue <- event:
		s.queued.Add(1)
	default:
		s.dropped.Add(1)
		s.logger.Warn().Str("event", string(event.Type)).Str("user", event.UserID).Msg("notifications: queue full, dropping event")
	}
}

func (s *Service) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		Queued:  s.queued.Load(),
		Dropped: s.dropped.Load(),
		Sent:    s.sent.Load(),
		Failed:  s.failed.Load(),
	}
}

func (s *Service) SendTest(ctx context.Context, target *Target, title, message string) error {
	if target == nil {
		return errors.New("notification target required")
	}

	return s.send(ctx, target, title, message)
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-s.queue:
			s.dispatch(ctx, event)
		}
	}
}

func (s *Service) dispatch(ctx context.Context, event Event) {
	if s == nil || s.targets == nil {
		return
	}

	if s.permission != nil && !s.permission.Allowed(ctx, event.UserID) {
		s.logger.Debug().Str("user", event.UserID).Msg("notifications: not permitted, skipping")
		return
	}

	targets, err := s.targets.ListEnabled(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("notifications: failed to list targets")
		return
	}
	if len(targets) == 0 {
		return
	}

	title, message := formatEvent(event)
	if strings.TrimSpace(message) == "" {
		return
	}

	for i := range targets {
		target := &targets[i]
		if !allowsEvent(target.EventTypes, event.Type) {
			continue
		}

		if err := s.send(ctx, target, title, message); err != nil {
			s.failed.Add(1)
			s.logger.Error().Err(err).Str("target", target.Name).Str("event", string(event.Type)).Msg("notifications: send failed")
			continue
		}
		s.sent.Add(1)
	}
}

func (s *Service) send(_ context.Context, target *Target, title, message string) error {
	newSender := s.newSender
	if newSender == nil {
		newSender = routerSender
	}

	snd, err := newSender(target.URL)
	if err != nil {
		return err
	}

	params := types.Params{}
	if trimmed := strings.TrimSpace(title); trimmed != "" {
		params.SetTitle(truncateMessage(trimmed, maxTitleLength))
	}

	trimmedMessage := truncateMessage(message, maxMessageLength)
	results := snd.Send(trimmedMessage, &params)
	var errs []error
	for _, sendErr := range results {
		if sendErr != nil {
			errs = append(errs, sendErr)
		}
	}
	if len(errs) == 0 {
		return nil
	}

	return errors.Join(errs...)
}

func formatEvent(event Event) (string, string) {
	customMessage := strings.TrimSpace(event.Message)

	switch event.Type {
	case EventNewReleases:
		title := fmt.Sprintf("%s has new releases", strings.TrimSpace(event.Author))
		if strings.TrimSpace(event.Title) != "" {
			title = strings.TrimSpace(event.Title)
		}
		if customMessage != "" {
			return title, customMessage
		}
		return title, formatBookTitles(event.BookTitles)
	case EventReleaseCheckFailed:
		title := "Release check failed"
		lines := []string{
			formatLine("User", event.UserID),
			formatLine("Author", event.Author),
			formatLine("Error", formatErrorMessage(event.ErrorMessage)),
		}
		return title, buildMessage(lines)
	default:
		return "", ""
	}
}

// formatBookTitles joins up to three titles and summarizes the rest.
func formatBookTitles(titles []string) string {
	clean := make([]string, 0, len(titles))
	for _, t := range titles {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) <= 3 {
		return strings.Join(clean, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(clean[:3], ", "), len(clean)-3)
}

func allowsEvent(eventTypes []string, eventType EventType) bool {
	if len(eventTypes) == 0 {
		return true
	}

	return slices.Contains(eventTypes, string(eventType))
}

func formatLine(label, value string) string {
	trimmedLabel := strings.TrimSpace(label)
	trimmedValue := strings.TrimSpace(value)
	if trimmedLabel == "" || trimmedValue == "" {
		return ""
	}
	return fmt.Sprintf("%s: %s", trimmedLabel, trimmedValue)
}

func buildMessage(lines []string) string {
	payload := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			payload = append(payload, trimmed)
		}
	}
	return strings.Join(payload, "\n")
}

const (
	maxMessageLength = 420
	maxTitleLength   = 80
)

func truncateMessage(value string, limit int) string {
	if limit <= 0 {
		return value
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if utf8.RuneCountInString(trimmed) <= limit {
		return trimmed
	}
	runes := []rune(trimmed)
	if limit <= 1 {
		return string(runes[:limit])
	}
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}

func formatErrorMessage(message string) string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return "Unknown error"
	}
	return trimmed
}
