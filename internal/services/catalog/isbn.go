// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package catalog

import (
	"strings"
)

// ISBNValidation is the result of ValidateISBN.
type ISBNValidation struct {
	IsValid   bool   `json:"isValid"`
	Clean     string `json:"cleanISBN"`
	Formatted string `json:"formattedISBN"`
}

var isbnSeparators = strings.NewReplacer("-", "", " ", "", "\t", "", "\n", "", "\r", "")

// CleanIdentifier strips hyphens and whitespace.
func CleanIdentifier(s string) string {
	return isbnSeparators.Replace(s)
}

// ValidateISBN checks that s is 10 or 13 digits once separators are removed
// and returns a hyphenated form: 1-3-5-1 for ISBN-10, 3-1-3-5-1 for ISBN-13.
// The hyphenation is positional and does not consult registration groups.
func ValidateISBN(s string) ISBNValidation {
	clean := CleanIdentifier(s)
	if !isDigits(clean) || (len(clean) != 10 && len(clean) != 13) {
		return ISBNValidation{Clean: clean, Formatted: clean}
	}

	var formatted string
	if len(clean) == 10 {
		formatted = strings.Join([]string{clean[0:1], clean[1:4], clean[4:9], clean[9:]}, "-")
	} else {
		formatted = strings.Join([]string{clean[0:3], clean[3:4], clean[4:7], clean[7:12], clean[12:]}, "-")
	}

	return ISBNValidation{IsValid: true, Clean: clean, Formatted: formatted}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// HighQualityCover asks the image server for the largest rendition of a
// catalog thumbnail.
func HighQualityCover(thumbnail string) string {
	return strings.Replace(thumbnail, "zoom=1", "zoom=0", 1)
}
