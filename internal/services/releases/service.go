// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package releases detects recent books by followed authors, keeps a
// per-user notification history and derives the "new releases" view.
package releases

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bookimbiber/imbiber/internal/fingerprint"
	"github.com/bookimbiber/imbiber/internal/models"
	"github.com/bookimbiber/imbiber/internal/services/notifications"
	"github.com/bookimbiber/imbiber/pkg/debounce"
	"github.com/bookimbiber/imbiber/pkg/events"
)

const (
	DefaultCooldown   = time.Hour
	DefaultBatchSize  = 3
	DefaultBatchDelay = 500 * time.Millisecond

	authorSearchLimit = 10
	maxBooksPerNotice = 3
	maxSuggestions    = 5
)

// CooldownKey is the debounce key guarding a user's release check.
func CooldownKey(userID string) string {
	return "new-releases-refresh-" + userID
}

// AuthorCatalog finds an author's books, newest first.
type AuthorCatalog interface {
	LookupByAuthor(ctx context.Context, authorName string, maxResults int) ([]models.Book, error)
}

// Library returns the books a user owns.
type Library interface {
	Owned(ctx context.Context, userID string) ([]models.Book, error)
}

// Authors lists followed authors and records successful checks.
type Authors interface {
	List(ctx context.Context, userID string) ([]*models.FollowedAuthor, error)
	TouchLastChecked(ctx context.Context, userID, id string) error
}

type Config struct {
	Catalog  AuthorCatalog
	Library  Library
	Authors  Authors
	KV       KVStore
	Notifier notifications.Notifier
	Cooldown *debounce.Cooldown

	BatchSize  int
	BatchDelay time.Duration
	Now        func() time.Time
}

type Service struct {
	catalog  AuthorCatalog
	library  Library
	authors  Authors
	notifier notifications.Notifier
	cooldown *debounce.Cooldown
	history  *history
	broker   *events.Broker[ChangeEvent]

	batchSize  int
	batchDelay time.Duration
	now        func() time.Time

	checks             atomic.Uint64
	cooldownSkips      atomic.Uint64
	authorsChecked     atomic.Uint64
	authorFailures     atomic.Uint64
	notificationsSaved atomic.Uint64
	duplicatesSkipped  atomic.Uint64
	storageErrors      atomic.Uint64
}

func NewService(cfg Config) *Service {
	s := &Service{
		catalog:    cfg.Catalog,
		library:    cfg.Library,
		authors:    cfg.Authors,
		notifier:   cfg.Notifier,
		cooldown:   cfg.Cooldown,
		broker:     events.NewBroker[ChangeEvent](events.DefaultBuffer),
		batchSize:  cfg.BatchSize,
		batchDelay: cfg.BatchDelay,
		now:        cfg.Now,
	}

	if s.cooldown == nil {
		s.cooldown = debounce.NewCooldown(DefaultCooldown)
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.batchDelay < 0 {
		s.batchDelay = 0
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.history = newHistory(cfg.KV, func() { s.storageErrors.Add(1) })

	return s
}

func (s *Service) Subscribe() (<-chan ChangeEvent, func()) {
	return s.broker.Subscribe()
}

// Broker exposes the change stream for metrics.
func (s *Service) Broker() *events.Broker[ChangeEvent] {
	return s.broker
}

func (s *Service) Close() {
	s.broker.Close()
}

func (s *Service) Stats() Stats {
	return Stats{
		Checks:             s.checks.Load(),
		CooldownSkips:      s.cooldownSkips.Load(),
		AuthorsChecked:     s.authorsChecked.Load(),
		AuthorFailures:     s.authorFailures.Load(),
		NotificationsSaved: s.notificationsSaved.Load(),
		DuplicatesSkipped:  s.duplicatesSkipped.Load(),
		StorageErrors:      s.storageErrors.Load(),
	}
}

// CheckUser runs CheckForNewReleases over every author the user follows.
func (s *Service) CheckUser(ctx context.Context, userID string, force bool) ([]ReleaseBatch, error) {
	authors, err := s.authors.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list followed authors: %w", err)
	}
	return s.CheckForNewReleases(ctx, userID, authors, force)
}

// CheckForNewReleases searches the catalog for each author and records a
// notification for recent books the user does not own. Unless force is set
// the check is skipped with a *CooldownError while the user's cooldown is
// active. Authors are searched in small concurrent batches; one author
// failing does not affect the others. Results keep the input author order.
func (s *Service) CheckForNewReleases(ctx context.Context, userID string, authors []*models.FollowedAuthor, force bool) ([]ReleaseBatch, error) {
	key := CooldownKey(userID)
	if !force && !s.cooldown.CanProceed(key) {
		s.cooldownSkips.Add(1)
		remaining := s.cooldown.RemainingTime(key)
		log.Debug().Str("user", userID).Dur("remaining", remaining).Msg("releases: check skipped, cooldown active")
		return nil, &CooldownError{Remaining: remaining}
	}

	if len(authors) == 0 {
		return []ReleaseBatch{}, nil
	}

	owned, err := s.library.Owned(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load library: %w", err)
	}
	index := fingerprint.NewOwnershipIndex(owned)

	s.checks.Add(1)
	start := s.now()
	results := make([]*ReleaseBatch, len(authors))

	for begin := 0; begin < len(authors); begin += s.batchSize {
		if begin > 0 && s.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return collect(results), ctx.Err()
			case <-time.After(s.batchDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			return collect(results), err
		}

		end := min(begin+s.batchSize, len(authors))

		var wg sync.WaitGroup
		for i := begin; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = s.checkAuthor(ctx, userID, authors[i], index)
			}(i)
		}
		wg.Wait()
	}

	s.cooldown.MarkCalled(key)

	out := collect(results)
	log.Info().
		Str("user", userID).
		Int("authors", len(authors)).
		Int("withReleases", len(out)).
		Dur("took", s.now().Sub(start)).
		Msg("releases: check finished")

	return out, nil
}

func collect(results []*ReleaseBatch) []ReleaseBatch {
	out := make([]ReleaseBatch, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// checkAuthor never panics; failures are logged and yield nil.
func (s *Service) checkAuthor(ctx context.Context, userID string, author *models.FollowedAuthor, index *fingerprint.OwnershipIndex) (batch *ReleaseBatch) {
	if author == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			s.authorFailures.Add(1)
			log.Error().Str("user", userID).Str("author", author.AuthorName).Interface("panic", r).Msg("releases: author check panicked")
			batch = nil
		}
	}()

	s.authorsChecked.Add(1)

	books, err := s.catalog.LookupByAuthor(ctx, author.AuthorName, authorSearchLimit)
	if err != nil {
		s.authorFailures.Add(1)
		log.Warn().Err(err).Str("user", userID).Str("author", author.AuthorName).Msg("releases: author search failed")
		return nil
	}

	if author.ID != "" {
		if err := s.authors.TouchLastChecked(ctx, userID, author.ID); err != nil {
			log.Debug().Err(err).Str("author", author.AuthorName).Msg("releases: failed to update last checked")
		}
	}

	recent := filterRecent(books, s.now().Year()-1)
	unowned := index.FilterUnowned(recent)
	if len(unowned) == 0 {
		return nil
	}

	top := unowned[:min(maxBooksPerNotice, len(unowned))]
	batch = &ReleaseBatch{Author: author.AuthorName, AuthorID: author.ID, Books: top}

	n := Notification{
		ID:        notificationID(author),
		Author:    author.AuthorName,
		AuthorID:  author.ID,
		Books:     top,
		Timestamp: s.now().UTC(),
	}

	saved, err := s.SaveNotification(ctx, userID, n)
	if err != nil {
		log.Error().Err(err).Str("user", userID).Str("author", author.AuthorName).Msg("releases: failed to save notification")
		return batch
	}
	if !saved {
		return batch
	}

	titles := make([]string, len(top))
	for i, b := range top {
		titles[i] = b.Title
	}
	if s.notifier != nil {
		s.notifier.Notify(notifications.Event{
			Type:       notifications.EventNewReleases,
			UserID:     userID,
			Author:     author.AuthorName,
			BookTitles: titles,
		})
	}
	if err := s.adjustUnread(ctx, userID, 1); err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("releases: failed to increment unread count")
	}

	return batch
}

// filterRecent keeps books published in minYear or later, preserving order.
func filterRecent(books []models.Book, minYear int) []models.Book {
	out := make([]models.Book, 0, len(books))
	for _, b := range books {
		if year, ok := b.PublishYear(); ok && year >= minYear {
			out = append(out, b)
		}
	}
	return out
}

func notificationID(author *models.FollowedAuthor) string {
	prefix := author.ID
	if prefix == "" {
		prefix = author.AuthorName
	}
	return prefix + "-" + uuid.NewString()
}

// SaveNotification prepends n to the user's history unless a notification
// for the same author already holds exactly the same books. It reports
// whether n was stored.
func (s *Service) SaveNotification(ctx context.Context, userID string, n Notification) (bool, error) {
	unlock := s.history.lock(userID)
	defer unlock()

	list, err := s.history.read(ctx, userID)
	if err != nil {
		return false, err
	}

	set := fingerprint.NewSet(n.Books)
	for _, existing := range list {
		if existing.Author != n.Author {
			continue
		}
		if fingerprint.NewSet(existing.Books).Equal(set) {
			s.duplicatesSkipped.Add(1)
			log.Debug().Str("user", userID).Str("author", n.Author).Msg("releases: duplicate notification skipped")
			return false, nil
		}
	}

	if n.ID == "" {
		n.ID = n.Author + "-" + uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = s.now().UTC()
	}
	if n.Books == nil {
		n.Books = []models.Book{}
	}

	next := make([]Notification, 0, min(len(list)+1, MaxHistory))
	next = append(next, n)
	next = append(next, list...)
	if len(next) > MaxHistory {
		next = next[:MaxHistory]
	}

	if err := s.history.store(ctx, userID, next); err != nil {
		return false, err
	}

	s.notificationsSaved.Add(1)
	s.broker.Publish(ChangeEvent{Type: ChangeSaved, UserID: userID, NotificationID: n.ID})
	return true, nil
}

// ListNotifications returns the user's history, newest first.
func (s *Service) ListNotifications(ctx context.Context, userID string) []Notification {
	return s.history.load(ctx, userID)
}

func (s *Service) MarkNotificationRead(ctx context.Context, userID, id string) error {
	unlock := s.history.lock(userID)
	defer unlock()

	list, err := s.history.read(ctx, userID)
	if err != nil {
		return err
	}
	i := indexOf(list, id)
	if i < 0 {
		return ErrNotificationNotFound
	}
	if list[i].Read {
		return nil
	}

	list[i].Read = true
	if err := s.history.store(ctx, userID, list); err != nil {
		return err
	}

	if err := s.adjustUnreadLocked(ctx, userID, -1); err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("releases: failed to decrement unread count")
	}

	s.broker.Publish(ChangeEvent{Type: ChangeRead, UserID: userID, NotificationID: id})
	return nil
}

func (s *Service) DeleteNotification(ctx context.Context, userID, id string) error {
	unlock := s.history.lock(userID)
	defer unlock()

	list, err := s.history.read(ctx, userID)
	if err != nil {
		return err
	}
	i := indexOf(list, id)
	if i < 0 {
		return ErrNotificationNotFound
	}

	wasUnread := !list[i].Read
	next := append(list[:i:i], list[i+1:]...)
	if err := s.history.store(ctx, userID, next); err != nil {
		return err
	}

	if wasUnread {
		if err := s.adjustUnreadLocked(ctx, userID, -1); err != nil {
			log.Warn().Err(err).Str("user", userID).Msg("releases: failed to decrement unread count")
		}
	}

	s.broker.Publish(ChangeEvent{Type: ChangeDeleted, UserID: userID, NotificationID: id})
	return nil
}

func indexOf(list []Notification, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

// NewReleases derives the current view: unread notifications with books the
// user now owns removed, dropping notifications left empty.
func (s *Service) NewReleases(ctx context.Context, userID string) []ReleaseBatch {
	list := s.history.load(ctx, userID)

	owned, err := s.library.Owned(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("releases: failed to load library, showing unfiltered releases")
		owned = nil
	}
	index := fingerprint.NewOwnershipIndex(owned)

	out := make([]ReleaseBatch, 0, len(list))
	for _, n := range list {
		if n.Read {
			continue
		}
		books := index.FilterUnowned(n.Books)
		if len(books) == 0 {
			continue
		}
		out = append(out, ReleaseBatch{Author: n.Author, AuthorID: n.AuthorID, Books: books})
	}
	return out
}

// UnreadCount is the badge counter.
func (s *Service) UnreadCount(ctx context.Context, userID string) int {
	return s.history.unread(ctx, userID)
}

func (s *Service) ClearUnreadCount(ctx context.Context, userID string) error {
	unlock := s.history.lock(userID)
	defer unlock()

	return s.history.setUnread(ctx, userID, 0)
}

func (s *Service) adjustUnread(ctx context.Context, userID string, delta int) error {
	unlock := s.history.lock(userID)
	defer unlock()

	return s.adjustUnreadLocked(ctx, userID, delta)
}

func (s *Service) adjustUnreadLocked(ctx context.Context, userID string, delta int) error {
	n, err := s.history.readUnread(ctx, userID)
	if err != nil {
		return err
	}
	return s.history.setUnread(ctx, userID, n+delta)
}

// AuthorSuggestions returns up to five authors with at least two books in
// the library that the user does not follow yet, most books first.
func (s *Service) AuthorSuggestions(ctx context.Context, userID string) ([]Suggestion, error) {
	owned, err := s.library.Owned(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load library: %w", err)
	}
	followed, err := s.authors.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list followed authors: %w", err)
	}

	following := make(map[string]struct{}, len(followed))
	for _, a := range followed {
		following[strings.ToLower(a.AuthorName)] = struct{}{}
	}

	counts := make(map[string]int)
	var order []string
	for _, b := range owned {
		name := b.Author
		if name == "" || name == "Unknown" || name == "Unknown Author" {
			continue
		}
		if _, seen := counts[name]; !seen {
			order = append(order, name)
		}
		counts[name]++
	}

	suggestions := make([]Suggestion, 0, len(order))
	for _, name := range order {
		count := counts[name]
		if count < 2 {
			continue
		}
		if _, ok := following[strings.ToLower(name)]; ok {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Name:       name,
			BooksCount: count,
			Reason:     fmt.Sprintf("You have %d books by this author", count),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].BooksCount > suggestions[j].BooksCount
	})
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions, nil
}
