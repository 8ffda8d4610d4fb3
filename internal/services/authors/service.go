// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package authors manages followed authors and broadcasts changes to them.
package authors

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog/log"

	"github.com/bookimbiber/imbiber/internal/models"
	"github.com/bookimbiber/imbiber/pkg/events"
)

type ChangeType string

const (
	ChangeCreated ChangeType = "create"
	ChangeUpdated ChangeType = "update"
	ChangeDeleted ChangeType = "delete"
)

// ChangeEvent describes a change to a user's followed authors. Author is nil
// for deletes.
type ChangeEvent struct {
	Type     ChangeType             `json:"type"`
	UserID   string                 `json:"userId"`
	AuthorID string                 `json:"authorId"`
	Author   *models.FollowedAuthor `json:"author,omitempty"`
}

// Store is the persistence used by Service.
type Store interface {
	Create(ctx context.Context, userID string, in models.FollowedAuthorCreate) (*models.FollowedAuthor, error)
	Get(ctx context.Context, userID, id string) (*models.FollowedAuthor, error)
	List(ctx context.Context, userID string) ([]*models.FollowedAuthor, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, userID, id string) error
	TouchLastChecked(ctx context.Context, userID, id string, at time.Time) error
}

type Service struct {
	store  Store
	broker *events.Broker[ChangeEvent]
	now    func() time.Time
}

func NewService(store Store) *Service {
	return &Service{
		store:  store,
		broker: events.NewBroker[ChangeEvent](events.DefaultBuffer),
		now:    time.Now,
	}
}

// Subscribe streams change events until cancel is called.
func (s *Service) Subscribe() (<-chan ChangeEvent, func()) {
	return s.broker.Subscribe()
}

// Broker exposes the change stream for metrics.
func (s *Service) Broker() *events.Broker[ChangeEvent] {
	return s.broker
}

func (s *Service) Follow(ctx context.Context, userID string, in models.FollowedAuthorCreate) (*models.FollowedAuthor, error) {
	author, err := s.store.Create(ctx, userID, in)
	if err != nil {
		return nil, err
	}

	log.Info().Str("user", userID).Str("author", author.AuthorName).Msg("authors: followed")
	s.broker.Publish(ChangeEvent{Type: ChangeCreated, UserID: userID, AuthorID: author.ID, Author: author})

	return author, nil
}

func (s *Service) Unfollow(ctx context.Context, userID, id string) error {
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return err
	}

	log.Info().Str("user", userID).Str("authorId", id).Msg("authors: unfollowed")
	s.broker.Publish(ChangeEvent{Type: ChangeDeleted, UserID: userID, AuthorID: id})

	return nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*models.FollowedAuthor, error) {
	return s.store.Get(ctx, userID, id)
}

// List returns the user's followed authors, oldest first. It never returns a
// nil slice.
func (s *Service) List(ctx context.Context, userID string) ([]*models.FollowedAuthor, error) {
	authors, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if authors == nil {
		authors = []*models.FollowedAuthor{}
	}
	return authors, nil
}

// ListUserIDs returns every user with active followed authors.
func (s *Service) ListUserIDs(ctx context.Context) ([]string, error) {
	return s.store.ListUserIDs(ctx)
}

// IsFollowing reports whether the user follows name, ignoring case.
func (s *Service) IsFollowing(ctx context.Context, userID, name string) (bool, error) {
	authors, err := s.store.List(ctx, userID)
	if err != nil {
		return false, err
	}

	want := strings.ToLower(strings.TrimSpace(name))
	for _, a := range authors {
		if strings.ToLower(a.AuthorName) == want {
			return true, nil
		}
	}
	return false, nil
}

// Find returns followed authors whose names fuzzily match query, best match
// first. An empty query returns the full list.
func (s *Service) Find(ctx context.Context, userID, query string) ([]*models.FollowedAuthor, error) {
	authors, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return authors, nil
	}

	names := make([]string, len(authors))
	for i, a := range authors {
		names[i] = a.AuthorName
	}

	ranks := fuzzy.RankFindNormalizedFold(query, names)
	sort.Stable(ranks)

	out := make([]*models.FollowedAuthor, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, authors[r.OriginalIndex])
	}
	return out, nil
}

// TouchLastChecked records a successful release check for the author.
func (s *Service) TouchLastChecked(ctx context.Context, userID, id string) error {
	if err := s.store.TouchLastChecked(ctx, userID, id, s.now()); err != nil {
		return err
	}

	author, err := s.store.Get(ctx, userID, id)
	if err != nil {
		log.Debug().Err(err).Str("authorId", id).Msg("authors: reload after touch failed")
		author = nil
	}
	s.broker.Publish(ChangeEvent{Type: ChangeUpdated, UserID: userID, AuthorID: id, Author: author})

	return nil
}

// Close ends every subscription.
func (s *Service) Close() {
	s.broker.Close()
}
