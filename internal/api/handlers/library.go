// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/bookimbiber/imbiber/internal/models"
	"github.com/bookimbiber/imbiber/internal/services/series"
)

const (
	defaultLibraryPageSize = 100
	maxLibraryPageSize     = 500
)

// LibraryService manages the books a user owns.
type LibraryService interface {
	Add(ctx context.Context, userID string, book models.Book) (*models.LibraryBook, error)
	List(ctx context.Context, userID, filter string) ([]*models.LibraryBook, error)
	MarkRead(ctx context.Context, userID, id string) (*models.LibraryBook, error)
	Delete(ctx context.Context, userID, id string) error
	Series(ctx context.Context, userID string) (series.Grouping, error)
}

type LibraryHandler struct {
	library LibraryService
}

func NewLibraryHandler(library LibraryService) *LibraryHandler {
	return &LibraryHandler{library: library}
}

// List handles GET /users/{userID}/library?filter=read|unread&limit=&offset=
func (h *LibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}

	filter := r.URL.Query().Get("filter")
	switch filter {
	case "", "all", "read", "unread":
	default:
		RespondError(w, http.StatusBadRequest, "filter must be one of all, read, unread")
		return
	}

	books, err := h.library.List(r.Context(), userID, filter)
	if err != nil {
		log.Error().Err(err).Str("user", userID).Msg("Failed to list library")
		RespondError(w, http.StatusInternalServerError, "Failed to list library")
		return
	}

	RespondJSON(w, http.StatusOK, paginate(books, ParsePagination(r, defaultLibraryPageSize, maxLibraryPageSize)))
}

func (h *LibraryHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}

	var book models.Book
	if !DecodeJSON(w, r, &book) {
		return
	}
	if strings.TrimSpace(book.Title) == "" {
		RespondError(w, http.StatusBadRequest, "title is required")
		return
	}

	lb, err := h.library.Add(r.Context(), userID, book)
	if err != nil {
		log.Error().Err(err).Str("user", userID).Str("title", book.Title).Msg("Failed to add library book")
		RespondError(w, http.StatusInternalServerError, "Failed to add book")
		return
	}

	RespondJSON(w, http.StatusCreated, lb)
}

func (h *LibraryHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}
	id, ok := ParseStringParam(w, r, "id", "Book ID")
	if !ok {
		return
	}

	lb, err := h.library.MarkRead(r.Context(), userID, id)
	if err != nil {
		h.respondStoreError(w, err, userID, id, "Failed to mark book as read")
		return
	}

	RespondJSON(w, http.StatusOK, lb)
}

func (h *LibraryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}
	id, ok := ParseStringParam(w, r, "id", "Book ID")
	if !ok {
		return
	}

	if err := h.library.Delete(r.Context(), userID, id); err != nil {
		h.respondStoreError(w, err, userID, id, "Failed to delete book")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Series handles GET /users/{userID}/library/series
func (h *LibraryHandler) Series(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}

	grouping, err := h.library.Series(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user", userID).Msg("Failed to group library by series")
		RespondError(w, http.StatusInternalServerError, "Failed to group library by series")
		return
	}

	RespondJSON(w, http.StatusOK, grouping)
}

func (h *LibraryHandler) respondStoreError(w http.ResponseWriter, err error, userID, id, message string) {
	if errors.Is(err, models.ErrLibraryBookNotFound) {
		RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	log.Error().Err(err).Str("user", userID).Str("bookId", id).Msg(message)
	RespondError(w, http.StatusInternalServerError, message)
}
