// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bookimbiber/imbiber/internal/models"
	"github.com/bookimbiber/imbiber/internal/services/catalog"
	"github.com/bookimbiber/imbiber/internal/services/series"
)

const maxSearchResults = 40

// BookSearcher is the fail-open catalog surface used by the search endpoints.
type BookSearcher interface {
	SearchByQuery(ctx context.Context, query string, maxResults int, locale string) ([]models.Book, error)
	SearchByIdentifier(ctx context.Context, identifier string) (*models.Book, error)
}

// SeriesFinder looks up further volumes of a series in the catalog.
type SeriesFinder interface {
	FindMoreBooksInSeries(ctx context.Context, seriesName, author string) []series.Entry
}

type SearchHandler struct {
	catalog BookSearcher
	series  SeriesFinder
}

func NewSearchHandler(catalog BookSearcher, series SeriesFinder) *SearchHandler {
	return &SearchHandler{catalog: catalog, series: series}
}

// Search handles GET /api/search?q=&max=&locale=
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		RespondError(w, http.StatusBadRequest, "Query parameter q is required")
		return
	}

	maxResults := ParseQueryInt(r, "max", catalog.DefaultMaxResults, maxSearchResults)
	locale := r.URL.Query().Get("locale")

	books, err := h.catalog.SearchByQuery(r.Context(), query, maxResults, locale)
	if err != nil {
		if errors.Is(err, catalog.ErrEmptyQuery) {
			RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		RespondError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	RespondJSON(w, http.StatusOK, books)
}

// SearchISBN handles GET /api/search/isbn/{isbn}
func (h *SearchHandler) SearchISBN(w http.ResponseWriter, r *http.Request) {
	isbn, ok := ParseStringParam(w, r, "isbn", "ISBN")
	if !ok {
		return
	}

	book, err := h.catalog.SearchByIdentifier(r.Context(), isbn)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidIdentifier) {
			RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		RespondError(w, http.StatusInternalServerError, "Failed to look up ISBN")
		return
	}
	if book == nil {
		RespondError(w, http.StatusNotFound, "No book found for ISBN")
		return
	}

	RespondJSON(w, http.StatusOK, book)
}

// SearchSeries handles GET /api/search/series?name=&author=
func (h *SearchHandler) SearchSeries(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		RespondError(w, http.StatusBadRequest, "Query parameter name is required")
		return
	}
	author := strings.TrimSpace(r.URL.Query().Get("author"))

	RespondJSON(w, http.StatusOK, h.series.FindMoreBooksInSeries(r.Context(), name, author))
}
