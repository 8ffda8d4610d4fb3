// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	foldNormalizer  = NewNormalizer(defaultNormalizerTTL, foldDiacritics)
	alnumNormalizer = NewNormalizer(defaultNormalizerTTL, alnumWords)
)

// letters NFKD leaves alone because they are distinct letters, not composed ones
var letterReplacer = strings.NewReplacer(
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O",
	"ß", "ss",
	"ð", "d", "Ð", "D",
	"þ", "th", "Þ", "TH",
)

func foldDiacritics(s string) string {
	if s == "" {
		return ""
	}
	s = letterReplacer.Replace(s)

	// transform.Chain keeps state, so build one per call.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

func alnumWords(s string) string {
	s = foldNormalizer.Normalize(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		space = true
	}
	return Intern(b.String())
}

// FoldDiacritics decomposes s and removes combining marks.
//   - "Shōgun" → "Shogun"
//   - "Amélie" → "Amelie"
//   - "Ærø" → "AEro"
func FoldDiacritics(s string) string {
	return foldNormalizer.Normalize(s)
}

// NormalizeAlnum reduces s to lowercase ASCII letters and digits separated by
// single spaces. It never fails and is idempotent.
//   - "Brontë, Charlotte" → "bronte charlotte"
//   - "  The  Hobbit: or There & Back " → "the hobbit or there back"
func NormalizeAlnum(s string) string {
	return alnumNormalizer.Normalize(s)
}
