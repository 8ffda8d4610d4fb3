// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package series infers series membership from book titles and groups a
// library by series.
package series

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bookimbiber/imbiber/internal/models"
)

type Confidence string

const (
	High   Confidence = "high"
	Medium Confidence = "medium"
	Low    Confidence = "low"
)

const (
	FromTitle    = "title"
	FromSubtitle = "subtitle"
)

// Info is a detected series membership.
type Info struct {
	SeriesName   string     `json:"seriesName"`
	BookNumber   int        `json:"bookNumber"`
	Confidence   Confidence `json:"confidence"`
	Author       string     `json:"author"`
	DetectedFrom string     `json:"detectedFrom"`
}

// ordinal is a number written as digits, a roman numeral or an English word.
const ordinal = `(\d+|[ivx]+|twenty|nineteen|eighteen|seventeen|sixteen|fifteen|fourteen|thirteen|twelve|eleven|ten|nine|eight|seven|six|five|four|three|two|one)\b`

type titlePattern struct {
	re         *regexp.Regexp
	confidence Confidence
}

// order matters: first match wins
var titlePatterns = []titlePattern{
	{regexp.MustCompile(`(?i)(.+?)\s*[:\-–]\s*Book\s+` + ordinal), High},
	{regexp.MustCompile(`(?i)(.+?)\s*[:\-–]\s*Volume\s+` + ordinal), High},
	{regexp.MustCompile(`(?i)(.+?)\s*[:\-–]\s*Part\s+` + ordinal), High},
	{regexp.MustCompile(`(?i)(.+?)\s+#(\d+)`), High},

	{regexp.MustCompile(`(?i)(.+?)\s+(\d+)$`), Medium},
	{regexp.MustCompile(`(?i)(.+?)\s+(\d+)[:\-–]`), Medium},
	{regexp.MustCompile(`(?i)(.+?)\s+(I{1,3}|IV|V|VI{1,3}|IX|X)$`), Medium},

	{regexp.MustCompile(`(?i)(.+?)\s*[:\-–]\s*(.+?)\s+(\d+)`), Low},
	{regexp.MustCompile(`(?i)(.+?)\s*[:\-–]\s*(A .+ Novel|The .+ Series|.+ Saga)`), Low},
}

var (
	subtitleOrdinalOf = regexp.MustCompile(`(?i)(?:Book|Vol|Volume|Part)\s+(\d+)\s+(?:of|in)\s+(?:the\s+)?(.+)`)
	subtitleNamedBook = regexp.MustCompile(`(?i)(.+)\s+(?:Book|Vol|Volume|Part)\s+(\d+)`)
	subtitleNovel     = regexp.MustCompile(`(?i)(?:A|An)\s+(.+)\s+Novel`)

	trailingPunct  = regexp.MustCompile(`\s*[:\-–]\s*$`)
	leadingArticle = regexp.MustCompile(`(?i)^(The|A|An)\s+`)
	romanNumeralRe = regexp.MustCompile(`(?i)^[IVX]+$`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
}

// DetectSeries matches title and subtitle against the series patterns and
// returns nil when none applies.
func DetectSeries(b models.Book) *Info {
	full := strings.TrimSpace(b.Title + " " + b.Subtitle)

	for _, p := range titlePatterns {
		m := p.re.FindStringSubmatch(full)
		if m == nil {
			continue
		}

		return &Info{
			SeriesName:   cleanSeriesName(m[1]),
			BookNumber:   parseOrdinal(m[2]),
			Confidence:   p.confidence,
			Author:       b.Author,
			DetectedFrom: FromTitle,
		}
	}

	if b.Subtitle != "" {
		return detectFromSubtitle(b.Subtitle, b.Author)
	}

	return nil
}

func detectFromSubtitle(subtitle, author string) *Info {
	info := func(name, number string) *Info {
		return &Info{
			SeriesName:   cleanSeriesName(name),
			BookNumber:   parseOrdinal(number),
			Confidence:   Medium,
			Author:       author,
			DetectedFrom: FromSubtitle,
		}
	}

	if m := subtitleOrdinalOf.FindStringSubmatch(subtitle); m != nil {
		return info(m[2], m[1])
	}
	if m := subtitleNamedBook.FindStringSubmatch(subtitle); m != nil {
		return info(m[1], m[2])
	}
	if m := subtitleNovel.FindStringSubmatch(subtitle); m != nil {
		return info(m[1], "")
	}

	return nil
}

func cleanSeriesName(name string) string {
	name = strings.TrimSpace(name)
	name = trailingPunct.ReplaceAllString(name, "")
	name = leadingArticle.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// parseOrdinal converts digits, roman numerals and number words. Anything
// unparseable, and zero, is book 1.
func parseOrdinal(s string) int {
	s = strings.TrimSpace(s)

	if n, ok := numberWords[strings.ToLower(s)]; ok {
		return n
	}

	var n int
	if romanNumeralRe.MatchString(s) {
		n = romanToNumber(s)
	} else {
		n = leadingInt(s)
	}

	if n <= 0 {
		return 1
	}
	return n
}

// leadingInt parses the digits at the start of s.
func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func romanToNumber(roman string) int {
	values := map[byte]int{'I': 1, 'V': 5, 'X': 10}

	result, prev := 0, 0
	upper := strings.ToUpper(roman)
	for i := len(upper) - 1; i >= 0; i-- {
		cur := values[upper[i]]
		if cur < prev {
			result -= cur
		} else {
			result += cur
		}
		prev = cur
	}
	return result
}
