// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package series

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/bookimbiber/imbiber/internal/models"
)

// Entry is a book with its detected position in a series.
type Entry struct {
	models.Book
	BookNumber int `json:"bookNumber"`
}

type Group struct {
	SeriesName string     `json:"seriesName"`
	Author     string     `json:"author"`
	Confidence Confidence `json:"confidence"`
	Books      []Entry    `json:"books"`
}

// Grouping splits a library into series and standalone books.
type Grouping struct {
	Series     []Group       `json:"series"`
	Standalone []models.Book `json:"standalone"`
}

// GroupBooksBySeries groups books with medium or high confidence detections
// by author and series name. Groups keep first-seen order; books inside a
// group are sorted by number. Everything else is standalone.
func GroupBooksBySeries(books []models.Book) Grouping {
	out := Grouping{Series: []Group{}, Standalone: []models.Book{}}
	index := make(map[string]int)

	for _, b := range books {
		info := DetectSeries(b)
		if info == nil || info.Confidence == Low {
			out.Standalone = append(out.Standalone, b)
			continue
		}

		key := strings.ToLower(info.Author + "_" + info.SeriesName)
		i, ok := index[key]
		if !ok {
			i = len(out.Series)
			index[key] = i
			out.Series = append(out.Series, Group{
				SeriesName: info.SeriesName,
				Author:     info.Author,
				Confidence: info.Confidence,
			})
		}
		out.Series[i].Books = append(out.Series[i].Books, Entry{Book: b, BookNumber: info.BookNumber})
	}

	for i := range out.Series {
		sortEntries(out.Series[i].Books)
	}

	return out
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].BookNumber < entries[j].BookNumber
	})
}

// Searcher is the fail-open catalog search used to find sibling volumes.
type Searcher interface {
	SearchByQuery(ctx context.Context, query string, maxResults int, locale string) ([]models.Book, error)
}

const moreInSeriesLimit = 20

type Service struct {
	searcher Searcher
}

func NewService(searcher Searcher) *Service {
	return &Service{searcher: searcher}
}

// FindMoreBooksInSeries searches the catalog for other volumes of a series
// and returns the ones whose detected series name contains seriesName,
// ordered by book number.
func (s *Service) FindMoreBooksInSeries(ctx context.Context, seriesName, author string) []Entry {
	seriesName = strings.TrimSpace(seriesName)
	if seriesName == "" {
		return []Entry{}
	}

	query := fmt.Sprintf("intitle:%q", seriesName)
	if a := strings.TrimSpace(author); a != "" {
		query = fmt.Sprintf("inauthor:%q %s", a, query)
	}

	books, err := s.searcher.SearchByQuery(ctx, query, moreInSeriesLimit, "")
	if err != nil {
		log.Warn().Err(err).Str("series", seriesName).Msg("series: catalog lookup rejected")
		return []Entry{}
	}

	want := strings.ToLower(seriesName)
	entries := make([]Entry, 0, len(books))
	for _, b := range books {
		info := DetectSeries(b)
		if info == nil || !strings.Contains(strings.ToLower(info.SeriesName), want) {
			continue
		}
		entries = append(entries, Entry{Book: b, BookNumber: info.BookNumber})
	}
	sortEntries(entries)

	log.Debug().Str("series", seriesName).Int("found", len(entries)).Msg("series: catalog lookup")

	return entries
}
