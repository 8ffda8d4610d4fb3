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
	"github.com/bookimbiber/imbiber/internal/services/releases"
)

// AuthorService manages a user's followed authors.
type AuthorService interface {
	Follow(ctx context.Context, userID string, in models.FollowedAuthorCreate) (*models.FollowedAuthor, error)
	Unfollow(ctx context.Context, userID, id string) error
	Find(ctx context.Context, userID, query string) ([]*models.FollowedAuthor, error)
}

// SuggestionSource proposes authors to follow from the user's library.
type SuggestionSource interface {
	AuthorSuggestions(ctx context.Context, userID string) ([]releases.Suggestion, error)
}

type AuthorsHandler struct {
	authors     AuthorService
	suggestions SuggestionSource
}

func NewAuthorsHandler(authors AuthorService, suggestions SuggestionSource) *AuthorsHandler {
	return &AuthorsHandler{authors: authors, suggestions: suggestions}
}

// List handles GET /users/{userID}/authors. An optional ?q= ranks the list
// by fuzzy name match.
func (h *AuthorsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}

	authors, err := h.authors.Find(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		log.Error().Err(err).Str("user", userID).Msg("Failed to list followed authors")
		RespondError(w, http.StatusInternalServerError, "Failed to list followed authors")
		return
	}

	RespondJSON(w, http.StatusOK, authors)
}

func (h *AuthorsHandler) Follow(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}

	var req models.FollowedAuthorCreate
	if !DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.AuthorName) == "" {
		RespondError(w, http.StatusBadRequest, "authorName is required")
		return
	}

	author, err := h.authors.Follow(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, models.ErrAlreadyFollowing) {
			RespondError(w, http.StatusConflict, err.Error())
			return
		}
		log.Error().Err(err).Str("user", userID).Str("author", req.AuthorName).Msg("Failed to follow author")
		RespondError(w, http.StatusInternalServerError, "Failed to follow author")
		return
	}

	RespondJSON(w, http.StatusCreated, author)
}

func (h *AuthorsHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}
	id, ok := ParseStringParam(w, r, "id", "Author ID")
	if !ok {
		return
	}

	if err := h.authors.Unfollow(r.Context(), userID, id); err != nil {
		if errors.Is(err, models.ErrAuthorNotFound) {
			RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Error().Err(err).Str("user", userID).Str("authorId", id).Msg("Failed to unfollow author")
		RespondError(w, http.StatusInternalServerError, "Failed to unfollow author")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthorsHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}

	suggestions, err := h.suggestions.AuthorSuggestions(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user", userID).Msg("Failed to build author suggestions")
		RespondError(w, http.StatusInternalServerError, "Failed to build author suggestions")
		return
	}

	RespondJSON(w, http.StatusOK, suggestions)
}
