// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bookimbiber/imbiber/internal/dbinterface"
)

var (
	ErrAlreadyFollowing = errors.New("already following this author")
	ErrAuthorNotFound   = errors.New("followed author not found")
)

// FollowedAuthor is a user's subscription to an author. Only LastChecked
// changes after creation.
type FollowedAuthor struct {
	ID          string     `json:"$id"`
	UserID      string     `json:"userId"`
	AuthorName  string     `json:"authorName"`
	AuthorID    string     `json:"authorId,omitempty"`
	BooksCount  int        `json:"booksCount"`
	Genres      []string   `json:"genres"`
	LastChecked *time.Time `json:"lastChecked"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// FollowedAuthorCreate is the input for FollowedAuthorStore.Create.
type FollowedAuthorCreate struct {
	AuthorName string   `json:"authorName"`
	AuthorID   string   `json:"authorId,omitempty"`
	BooksCount int      `json:"booksCount"`
	Genres     []string `json:"genres"`
}

type FollowedAuthorStore struct {
	db dbinterface.Querier
}

func NewFollowedAuthorStore(db dbinterface.Querier) *FollowedAuthorStore {
	return &FollowedAuthorStore{db: db}
}

const followedAuthorColumns = `id, user_id, author_name, author_id, books_count, genres, last_checked, is_active, created_at`

// Create follows an author for userID. Names are compared case-insensitively.
func (s *FollowedAuthorStore) Create(ctx context.Context, userID string, in FollowedAuthorCreate) (*FollowedAuthor, error) {
	name := strings.TrimSpace(in.AuthorName)
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	if name == "" {
		return nil, errors.New("author name is required")
	}

	genres := in.Genres
	if genres == nil {
		genres = []string{}
	}
	genresJSON, err := json.Marshal(genres)
	if err != nil {
		return nil, fmt.Errorf("marshal genres: %w", err)
	}

	author := &FollowedAuthor{
		ID:         uuid.NewString(),
		UserID:     userID,
		AuthorName: name,
		AuthorID:   strings.TrimSpace(in.AuthorID),
		BooksCount: in.BooksCount,
		Genres:     genres,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO followed_authors (id, user_id, author_name, author_key, author_id, books_count, genres, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
	`, author.ID, userID, name, normalizeLowerTrim(name), author.AuthorID, author.BooksCount, string(genresJSON), author.CreatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrAlreadyFollowing
		}
		return nil, fmt.Errorf("insert followed author: %w", err)
	}

	return author, nil
}

func (s *FollowedAuthorStore) Get(ctx context.Context, userID, id string) (*FollowedAuthor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+followedAuthorColumns+` FROM followed_authors WHERE user_id = ? AND id = ?`, userID, id)

	author, err := scanFollowedAuthor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAuthorNotFound
		}
		return nil, err
	}

	return author, nil
}

// List returns userID's followed authors, oldest first.
func (s *FollowedAuthorStore) List(ctx context.Context, userID string) ([]*FollowedAuthor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+followedAuthorColumns+`
		FROM followed_authors
		WHERE user_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list followed authors: %w", err)
	}
	defer rows.Close()

	var authors []*FollowedAuthor
	for rows.Next() {
		author, err := scanFollowedAuthor(rows)
		if err != nil {
			return nil, err
		}
		authors = append(authors, author)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return authors, nil
}

// ListUserIDs returns every user with at least one active followed author.
func (s *FollowedAuthorStore) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM followed_authors WHERE is_active = 1 ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (s *FollowedAuthorStore) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM followed_authors WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete followed author: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAuthorNotFound
	}

	return nil
}

// TouchLastChecked records the time of the last successful catalog search.
func (s *FollowedAuthorStore) TouchLastChecked(ctx context.Context, userID, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE followed_authors SET last_checked = ? WHERE user_id = ? AND id = ?`, at.UTC(), userID, id)
	if err != nil {
		return fmt.Errorf("update last checked: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAuthorNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFollowedAuthor(row rowScanner) (*FollowedAuthor, error) {
	var (
		a           FollowedAuthor
		genresJSON  string
		lastChecked sql.NullTime
	)

	if err := row.Scan(&a.ID, &a.UserID, &a.AuthorName, &a.AuthorID, &a.BooksCount, &genresJSON, &lastChecked, &a.IsActive, &a.CreatedAt); err != nil {
		return nil, err
	}

	if genresJSON != "" {
		if err := json.Unmarshal([]byte(genresJSON), &a.Genres); err != nil {
			return nil, fmt.Errorf("decode genres for %s: %w", a.ID, err)
		}
	}
	if a.Genres == nil {
		a.Genres = []string{}
	}
	if lastChecked.Valid {
		t := lastChecked.Time
		a.LastChecked = &t
	}

	return &a, nil
}
