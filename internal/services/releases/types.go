// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package releases

import (
	"errors"
	"fmt"
	"time"

	"github.com/bookimbiber/imbiber/internal/models"
)

var (
	ErrCooldown             = errors.New("release check in cooldown")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrStorageUnavailable   = errors.New("notification storage unavailable")
)

// CooldownError is returned when a non-forced check runs inside the
// per-user cooldown window.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: %s remaining", ErrCooldown, e.Remaining.Round(time.Second))
}

func (e *CooldownError) Unwrap() error {
	return ErrCooldown
}

// Notification is one persisted "new releases" record for an author.
type Notification struct {
	ID        string        `json:"id"`
	Author    string        `json:"author"`
	AuthorID  string        `json:"authorId,omitempty"`
	Books     []models.Book `json:"books"`
	Timestamp time.Time     `json:"ts"`
	Read      bool          `json:"read"`
}

// ReleaseBatch is the set of recent unowned books found for one author.
type ReleaseBatch struct {
	Author   string        `json:"author"`
	AuthorID string        `json:"authorId,omitempty"`
	Books    []models.Book `json:"books"`
}

// Suggestion is an author the user might want to follow.
type Suggestion struct {
	Name       string `json:"name"`
	BooksCount int    `json:"booksCount"`
	Reason     string `json:"reason"`
}

type ChangeType string

const (
	ChangeSaved   ChangeType = "saved"
	ChangeRead    ChangeType = "read"
	ChangeDeleted ChangeType = "deleted"
)

// ChangeEvent reports a change to a user's notification history.
type ChangeEvent struct {
	Type           ChangeType `json:"type"`
	UserID         string     `json:"userId"`
	NotificationID string     `json:"notificationId"`
}

type Stats struct {
	Checks             uint64
	CooldownSkips      uint64
	AuthorsChecked     uint64
	AuthorFailures     uint64
	NotificationsSaved uint64
	DuplicatesSkipped  uint64
	StorageErrors      uint64
}
