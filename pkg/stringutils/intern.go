// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package stringutils holds the text normalization helpers shared by book
// fingerprinting and catalog lookups.
package stringutils

import (
	"strings"
	"unique"
)

// Intern returns a canonical copy of s so repeated author names and
// fingerprints share memory.
func Intern(s string) string {
	if s == "" {
		return ""
	}
	return unique.Make(s).Value()
}

// InternNormalized interns the trimmed, lowercased form of s.
func InternNormalized(s string) string {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" {
		return ""
	}
	return unique.Make(normalized).Value()
}
