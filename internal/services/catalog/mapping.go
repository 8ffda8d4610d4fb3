// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package catalog

import (
	"strings"

	"github.com/bookimbiber/imbiber/internal/models"
	"github.com/bookimbiber/imbiber/pkg/googlebooks"
)

const (
	unknownTitle          = "Unknown Title"
	unknownAuthor         = "Unknown"
	defaultMaturityRating = "NOT_MATURE"
)

// mapVolume converts an API volume into a Book, filling the documented
// defaults for missing fields. lang is used when the volume has no language.
func mapVolume(v googlebooks.Volume, lang string) models.Book {
	info := v.VolumeInfo

	b := models.Book{
		CatalogID:      v.ID,
		Title:          info.Title,
		Subtitle:       info.Subtitle,
		Author:         strings.Join(info.Authors, ", "),
		Description:    info.Description,
		PublishedDate:  info.PublishedDate,
		Publisher:      info.Publisher,
		Categories:     strings.Join(info.Categories, ", "),
		Language:       info.Language,
		PageCount:      info.PageCount,
		ISBN10:         info.Identifier("ISBN_10"),
		ISBN13:         info.Identifier("ISBN_13"),
		PreviewLink:    optional(info.PreviewLink),
		InfoLink:       optional(info.InfoLink),
		AverageRating:  info.AverageRating,
		RatingsCount:   info.RatingsCount,
		MaturityRating: info.MaturityRating,
	}

	if b.Title == "" {
		b.Title = unknownTitle
	}
	if len(info.Authors) == 0 {
		b.Author = unknownAuthor
	}
	if b.Language == "" {
		b.Language = lang
	}
	if b.MaturityRating == "" {
		b.MaturityRating = defaultMaturityRating
	}

	if links := info.ImageLinks; links != nil {
		b.Thumbnail = optional(firstNonEmpty(links.Thumbnail, links.SmallThumbnail))
		b.CoverImage = optional(firstNonEmpty(links.Large, links.Medium, links.Thumbnail))
	}

	return b
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
