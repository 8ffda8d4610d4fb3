// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package library manages the books a user owns.
package library

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bookimbiber/imbiber/internal/models"
	"github.com/bookimbiber/imbiber/internal/services/series"
	"github.com/bookimbiber/imbiber/pkg/events"
)

type ChangeType string

const (
	ChangeCreated ChangeType = "create"
	ChangeUpdated ChangeType = "update"
	ChangeDeleted ChangeType = "delete"
)

type ChangeEvent struct {
	Type   ChangeType          `json:"type"`
	UserID string              `json:"userId"`
	BookID string              `json:"bookId"`
	Book   *models.LibraryBook `json:"book,omitempty"`
}

type Store interface {
	Create(ctx context.Context, userID string, book models.Book) (*models.LibraryBook, error)
	Get(ctx context.Context, userID, id string) (*models.LibraryBook, error)
	List(ctx context.Context, userID string) ([]*models.LibraryBook, error)
	ListUnread(ctx context.Context, userID string) ([]*models.LibraryBook, error)
	ListRead(ctx context.Context, userID string) ([]*models.LibraryBook, error)
	MarkRead(ctx context.Context, userID, id string, at time.Time) (*models.LibraryBook, error)
	Delete(ctx context.Context, userID, id string) error
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

func (s *Service) Add(ctx context.Context, userID string, book models.Book) (*models.LibraryBook, error) {
	lb, err := s.store.Create(ctx, userID, book)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("user", userID).Str("title", lb.Title).Msg("library: book added")
	s.broker.Publish(ChangeEvent{Type: ChangeCreated, UserID: userID, BookID: lb.ID, Book: lb})

	return lb, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*models.LibraryBook, error) {
	return s.store.Get(ctx, userID, id)
}

// List returns owned books. filter is "unread", "read" or empty for all.
func (s *Service) List(ctx context.Context, userID, filter string) ([]*models.LibraryBook, error) {
	var (
		books []*models.LibraryBook
		err   error
	)

	switch filter {
	case "unread":
		books, err = s.store.ListUnread(ctx, userID)
	case "read":
		books, err = s.store.ListRead(ctx, userID)
	default:
		books, err = s.store.List(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []*models.LibraryBook{}
	}
	return books, nil
}

// Owned returns the union of the user's unread and read books.
func (s *Service) Owned(ctx context.Context, userID string) ([]models.Book, error) {
	books, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]models.Book, len(books))
	for i, lb := range books {
		out[i] = lb.Book
	}
	return out, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) (*models.LibraryBook, error) {
	lb, err := s.store.MarkRead(ctx, userID, id, s.now())
	if err != nil {
		return nil, err
	}

	s.broker.Publish(ChangeEvent{Type: ChangeUpdated, UserID: userID, BookID: id, Book: lb})
	return lb, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.broker.Publish(ChangeEvent{Type: ChangeDeleted, UserID: userID, BookID: id})
	return nil
}

// Series groups the whole library by detected series.
func (s *Service) Series(ctx context.Context, userID string) (series.Grouping, error) {
	owned, err := s.Owned(ctx, userID)
	if err != nil {
		return series.Grouping{}, err
	}
	return series.GroupBooksBySeries(owned), nil
}
