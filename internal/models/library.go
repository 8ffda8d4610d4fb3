// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bookimbiber/imbiber/internal/dbinterface"
)

var ErrLibraryBookNotFound = errors.New("library book not found")

// LibraryBook is a book the user owns, read or unread.
type LibraryBook struct {
	ID     string `json:"$id"`
	UserID string `json:"userId"`
	Book
	CreatedAt time.Time `json:"createdAt"`
}

type LibraryBookStore struct {
	db dbinterface.Querier
}

func NewLibraryBookStore(db dbinterface.Querier) *LibraryBookStore {
	return &LibraryBookStore{db: db}
}

const libraryBookColumns = `id, user_id, catalog_id, title, subtitle, author, description, published_date,
	publisher, categories, language, page_count, isbn10, isbn13, thumbnail, cover_image, preview_link,
	info_link, average_rating, ratings_count, maturity_rating, read, read_at, created_at`

func (s *LibraryBookStore) Create(ctx context.Context, userID string, book Book) (*LibraryBook, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	if strings.TrimSpace(book.Title) == "" {
		return nil, errors.New("title is required")
	}
	if book.MaturityRating == "" {
		book.MaturityRating = "NOT_MATURE"
	}

	lb := &LibraryBook{
		ID:        uuid.NewString(),
		UserID:    userID,
		Book:      book,
		CreatedAt: time.Now().UTC(),
	}

	var readAt sql.NullTime
	if book.Read {
		at := time.Now().UTC()
		if book.ReadAt != nil {
			at = book.ReadAt.UTC()
		}
		readAt = sql.NullTime{Time: at, Valid: true}
		lb.ReadAt = &at
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO library_books (`+libraryBookColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		lb.ID, userID, book.CatalogID, book.Title, book.Subtitle, book.Author, book.Description, book.PublishedDate,
		book.Publisher, book.Categories, book.Language, book.PageCount, book.ISBN10, book.ISBN13,
		nullString(book.Thumbnail), nullString(book.CoverImage), nullString(book.PreviewLink), nullString(book.InfoLink),
		book.AverageRating, book.RatingsCount, book.MaturityRating, book.Read, readAt, lb.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert library book: %w", err)
	}

	return lb, nil
}

func (s *LibraryBookStore) Get(ctx context.Context, userID, id string) (*LibraryBook, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+libraryBookColumns+` FROM library_books WHERE user_id = ? AND id = ?`, userID, id)

	lb, err := scanLibraryBook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLibraryBookNotFound
		}
		return nil, err
	}

	return lb, nil
}

// List returns every owned book for userID, newest first.
func (s *LibraryBookStore) List(ctx context.Context, userID string) ([]*LibraryBook, error) {
	return s.list(ctx, `WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
}

func (s *LibraryBookStore) ListUnread(ctx context.Context, userID string) ([]*LibraryBook, error) {
	return s.list(ctx, `WHERE user_id = ? AND read = 0 ORDER BY created_at DESC, rowid DESC`, userID)
}

// ListRead returns read books, most recently read first.
func (s *LibraryBookStore) ListRead(ctx context.Context, userID string) ([]*LibraryBook, error) {
	return s.list(ctx, `WHERE user_id = ? AND read = 1 ORDER BY read_at DESC, rowid DESC`, userID)
}

func (s *LibraryBookStore) list(ctx context.Context, where string, args ...any) ([]*LibraryBook, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+libraryBookColumns+` FROM library_books `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list library books: %w", err)
	}
	defer rows.Close()

	var books []*LibraryBook
	for rows.Next() {
		lb, err := scanLibraryBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, lb)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return books, nil
}

// MarkRead flags a book as read at the given time.
func (s *LibraryBookStore) MarkRead(ctx context.Context, userID, id string, at time.Time) (*LibraryBook, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE library_books SET read = 1, read_at = ? WHERE user_id = ? AND id = ?`, at.UTC(), userID, id)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrLibraryBookNotFound
	}

	return s.Get(ctx, userID, id)
}

func (s *LibraryBookStore) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM library_books WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete library book: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrLibraryBookNotFound
	}

	return nil
}

func scanLibraryBook(row rowScanner) (*LibraryBook, error) {
	var lb LibraryBook
	var thumbnail, cover, previewLink, infoLink sql.NullString
	var readAt sql.NullTime

	err := row.Scan(
		&lb.ID, &lb.UserID, &lb.CatalogID, &lb.Title, &lb.Subtitle, &lb.Author, &lb.Description, &lb.PublishedDate,
		&lb.Publisher, &lb.Categories, &lb.Language, &lb.PageCount, &lb.ISBN10, &lb.ISBN13,
		&thumbnail, &cover, &previewLink, &infoLink,
		&lb.AverageRating, &lb.RatingsCount, &lb.MaturityRating, &lb.Read, &readAt, &lb.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	lb.Thumbnail = stringPtr(thumbnail)
	lb.CoverImage = stringPtr(cover)
	lb.PreviewLink = stringPtr(previewLink)
	lb.InfoLink = stringPtr(infoLink)
	if readAt.Valid {
		t := readAt.Time
		lb.ReadAt = &t
	}

	return &lb, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
