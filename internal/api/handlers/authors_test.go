// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookimbiber/imbiber/internal/models"
	"github.com/bookimbiber/imbiber/internal/services/releases"
)

type fakeAuthorService struct {
	mu       sync.Mutex
	authors  map[string][]*models.FollowedAuthor
	gotQuery string
	listErr  error
}

func newFakeAuthorService() *fakeAuthorService {
	return &fakeAuthorService{authors: make(map[string][]*models.FollowedAuthor)}
}

func (f *fakeAuthorService) Follow(_ context.Context, userID string, in models.FollowedAuthorCreate) (*models.FollowedAuthor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range f.authors[userID] {
		if strings.EqualFold(a.AuthorName, in.AuthorName) {
			return nil, models.ErrAlreadyFollowing
		}
	}
	a := &models.FollowedAuthor{ID: "a" + in.AuthorName, UserID: userID, AuthorName: in.AuthorName, Genres: in.Genres, IsActive: true}
	f.authors[userID] = append(f.authors[userID], a)
	return a, nil
}

func (f *fakeAuthorService) Unfollow(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	list := f.authors[userID]
	for i, a := range list {
		if a.ID == id {
			f.authors[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return models.ErrAuthorNotFound
}

func (f *fakeAuthorService) Find(_ context.Context, userID, query string) ([]*models.FollowedAuthor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}
	f.gotQuery = query
	out := append([]*models.FollowedAuthor{}, f.authors[userID]...)
	return out, nil
}

type fakeSuggestions struct {
	suggestions []releases.Suggestion
	err         error
}

func (f fakeSuggestions) AuthorSuggestions(context.Context, string) ([]releases.Suggestion, error) {
	return f.suggestions, f.err
}

func TestAuthorsHandler_FollowListUnfollow(t *testing.T) {
	t.Parallel()

	svc := newFakeAuthorService()
	h := NewAuthorsHandler(svc, fakeSuggestions{})

	rec := httptest.NewRecorder()
	h.Follow(rec, newUserRequest(http.MethodPost, "/api/users/u1/authors", "u1", `{"authorName":"Ursula K. Le Guin","genres":["Fantasy"]}`, nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.FollowedAuthor
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "Ursula K. Le Guin", created.AuthorName)
	assert.Equal(t, "u1", created.UserID)

	rec = httptest.NewRecorder()
	h.Follow(rec, newUserRequest(http.MethodPost, "/api/users/u1/authors", "u1", `{"authorName":"ursula k. le guin"}`, nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	h.List(rec, newUserRequest(http.MethodGet, "/api/users/u1/authors?q=guin", "u1", "", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "guin", svc.gotQuery)

	var listed []models.FollowedAuthor
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listed))
	assert.Len(t, listed, 1)

	rec = httptest.NewRecorder()
	h.Unfollow(rec, newUserRequest(http.MethodDelete, "/", "u1", "", map[string]string{"id": created.ID}))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.Unfollow(rec, newUserRequest(http.MethodDelete, "/", "u1", "", map[string]string{"id": created.ID}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthorsHandler_FollowValidation(t *testing.T) {
	t.Parallel()

	h := NewAuthorsHandler(newFakeAuthorService(), fakeSuggestions{})

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{`},
		{name: "blank name", body: `{"authorName":"   "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Follow(rec, newUserRequest(http.MethodPost, "/", "u1", tt.body, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	h.Follow(rec, newUserRequest(http.MethodPost, "/", "", `{"authorName":"x"}`, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthorsHandler_ListError(t *testing.T) {
	t.Parallel()

	svc := newFakeAuthorService()
	svc.listErr = errors.New("db down")
	h := NewAuthorsHandler(svc, fakeSuggestions{})

	rec := httptest.NewRecorder()
	h.List(rec, newUserRequest(http.MethodGet, "/", "u1", "", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAuthorsHandler_Suggestions(t *testing.T) {
	t.Parallel()

	h := NewAuthorsHandler(newFakeAuthorService(), fakeSuggestions{suggestions: []releases.Suggestion{
		{Name: "Iain M. Banks", BooksCount: 3, Reason: "You have 3 books by this author"},
	}})

	rec := httptest.NewRecorder()
	h.Suggestions(rec, newUserRequest(http.MethodGet, "/", "u1", "", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []releases.Suggestion
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "Iain M. Banks", got[0].Name)

	failing := NewAuthorsHandler(newFakeAuthorService(), fakeSuggestions{err: errors.New("boom")})
	rec = httptest.NewRecorder()
	failing.Suggestions(rec, newUserRequest(http.MethodGet, "/", "u1", "", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
