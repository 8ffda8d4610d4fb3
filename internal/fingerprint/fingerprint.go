// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package fingerprint derives stable identity strings for books coming from
// the catalog and from a user's library.
//
// A book with a catalog ID is identified by it ("id:<catalogID>"). Otherwise
// the identity is the composite "title:<t>|author:<a>|year:<yyyy>", where
// title and author are normalized. Because the same book may carry a catalog
// ID on one side only, comparisons also try the composite form of the side
// that has an ID.
package fingerprint

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/bookimbiber/imbiber/internal/models"
	"github.com/bookimbiber/imbiber/pkg/stringutils"
)

const (
	idPrefix = "id:"
)

// Normalize folds diacritics, replaces every non-alphanumeric run with a
// single space, trims and lowercases. It is total and idempotent.
func Normalize(s string) string {
	return stringutils.NormalizeAlnum(s)
}

// Fingerprint returns the identity string for b.
func Fingerprint(b models.Book) string {
	if id := strings.TrimSpace(b.CatalogID); id != "" {
		return idPrefix + id
	}
	return Fallback(b)
}

// Fallback returns the title/author/year composite regardless of catalog ID.
func Fallback(b models.Book) string {
	var sb strings.Builder
	sb.WriteString("title:")
	sb.WriteString(Normalize(b.Title))
	sb.WriteString("|author:")
	sb.WriteString(Normalize(b.Author))
	sb.WriteString("|year:")
	sb.WriteString(b.Year())
	return sb.String()
}

func hasID(b models.Book) bool {
	return strings.TrimSpace(b.CatalogID) != ""
}

// IsSameBook reports whether a and b are the same logical book: equal
// fingerprints, or, when exactly one side has a catalog ID, that side's
// fallback equal to the other side's fingerprint.
func IsSameBook(a, b models.Book) bool {
	fa, fb := Fingerprint(a), Fingerprint(b)
	if fa == fb {
		return true
	}

	switch {
	case hasID(a) && !hasID(b):
		return Fallback(a) == fb
	case !hasID(a) && hasID(b):
		return fa == Fallback(b)
	}

	return false
}

// Set is the sorted fingerprint list of a batch of books. Duplicates are
// kept so two batches are equal only if they list the same books the same
// number of times.
type Set []string

// NewSet fingerprints books and sorts the result.
func NewSet(books []models.Book) Set {
	s := make(Set, len(books))
	for i, b := range books {
		s[i] = Fingerprint(b)
	}
	sort.Strings(s)
	return s
}

func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Digest is a 64-bit hash of the set, usable as a map key.
func (s Set) Digest() uint64 {
	d := xxhash.New()
	for _, fp := range s {
		_, _ = d.WriteString(fp)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}
