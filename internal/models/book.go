// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"strconv"
	"time"
)

// Book is a catalog record. Identity is never stored on it; use the
// fingerprint package to derive one.
type Book struct {
	CatalogID      string     `json:"googleBooksId,omitempty"`
	Title          string     `json:"title"`
	Subtitle       string     `json:"subtitle"`
	Author         string     `json:"author"`
	Description    string     `json:"description"`
	PublishedDate  string     `json:"publishedDate"`
	Publisher      string     `json:"publisher"`
	Categories     string     `json:"categories"`
	Language       string     `json:"language"`
	PageCount      int        `json:"pageCount"`
	ISBN10         string     `json:"isbn10"`
	ISBN13         string     `json:"isbn13"`
	Thumbnail      *string    `json:"thumbnail"`
	CoverImage     *string    `json:"coverImage"`
	PreviewLink    *string    `json:"previewLink"`
	InfoLink       *string    `json:"infoLink"`
	AverageRating  float64    `json:"averageRating"`
	RatingsCount   int        `json:"ratingsCount"`
	MaturityRating string     `json:"maturityRating"`
	Read           bool       `json:"read,omitempty"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
}

// Year returns the first four characters of PublishedDate, or "" when the
// date is shorter than that.
func (b Book) Year() string {
	if len(b.PublishedDate) < 4 {
		return ""
	}
	return b.PublishedDate[:4]
}

// PublishYear parses Year as an integer.
func (b Book) PublishYear() (int, bool) {
	y := b.Year()
	if y == "" {
		return 0, false
	}
	n, err := strconv.Atoi(y)
	if err != nil {
		return 0, false
	}
	return n, true
}
