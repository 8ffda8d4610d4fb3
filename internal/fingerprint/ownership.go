// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package fingerprint

import (
	"github.com/bookimbiber/imbiber/internal/models"
)

// OwnershipIndex answers "does the user already own this book" in constant
// time per candidate, with the same cross-check rules as IsSameBook.
type OwnershipIndex struct {
	// fingerprints of every owned book
	all map[string]struct{}
	// fingerprints of owned books without a catalog ID
	withoutID map[string]struct{}
	// fallbacks of owned books with a catalog ID
	idFallbacks map[string]struct{}
}

// NewOwnershipIndex indexes the given owned books, typically the union of the
// user's unread and read lists.
func NewOwnershipIndex(owned ...[]models.Book) *OwnershipIndex {
	idx := &OwnershipIndex{
		all:         make(map[string]struct{}),
		withoutID:   make(map[string]struct{}),
		idFallbacks: make(map[string]struct{}),
	}
	for _, list := range owned {
		for _, b := range list {
			idx.Add(b)
		}
	}
	return idx
}

func (idx *OwnershipIndex) Add(b models.Book) {
	fp := Fingerprint(b)
	idx.all[fp] = struct{}{}
	if hasID(b) {
		idx.idFallbacks[Fallback(b)] = struct{}{}
	} else {
		idx.withoutID[fp] = struct{}{}
	}
}

func (idx *OwnershipIndex) Len() int {
	return len(idx.all)
}

// Owns reports whether candidate matches any indexed book.
func (idx *OwnershipIndex) Owns(candidate models.Book) bool {
	fp := Fingerprint(candidate)
	if _, ok := idx.all[fp]; ok {
		return true
	}

	if hasID(candidate) {
		_, ok := idx.withoutID[Fallback(candidate)]
		return ok
	}

	_, ok := idx.idFallbacks[fp]
	return ok
}

// FilterUnowned returns the books not owned, preserving order.
func (idx *OwnershipIndex) FilterUnowned(books []models.Book) []models.Book {
	out := make([]models.Book, 0, len(books))
	for _, b := range books {
		if !idx.Owns(b) {
			out = append(out, b)
		}
	}
	return out
}
