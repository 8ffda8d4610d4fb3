// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package series

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookimbiber/imbiber/internal/models"
)

func TestDetectSeries(t *testing.T) {
	tests := []struct {
		name string
		book models.Book
		want *Info
	}{
		{
			name: "no series",
			book: models.Book{Title: "Dune Messiah", Author: "Frank Herbert"},
			want: nil,
		},
		{
			name: "book word",
			book: models.Book{Title: "Mistborn: Book One", Author: "Brandon Sanderson"},
			want: &Info{SeriesName: "Mistborn", BookNumber: 1, Confidence: High, Author: "Brandon Sanderson", DetectedFrom: FromTitle},
		},
		{
			name: "book digits in subtitle",
			book: models.Book{Title: "The Way of Kings", Subtitle: "- Book 1", Author: "Brandon Sanderson"},
			want: &Info{SeriesName: "Way of Kings", BookNumber: 1, Confidence: High, Author: "Brandon Sanderson", DetectedFrom: FromTitle},
		},
		{
			name: "hash number",
			book: models.Book{Title: "The Expanse #3"},
			want: &Info{SeriesName: "Expanse", BookNumber: 3, Confidence: High, DetectedFrom: FromTitle},
		},
		{
			name: "volume roman",
			book: models.Book{Title: "Berserk - Volume IV"},
			want: &Info{SeriesName: "Berserk", BookNumber: 4, Confidence: High, DetectedFrom: FromTitle},
		},
		{
			name: "trailing number",
			book: models.Book{Title: "Foundation 2", Author: "Isaac Asimov"},
			want: &Info{SeriesName: "Foundation", BookNumber: 2, Confidence: Medium, Author: "Isaac Asimov", DetectedFrom: FromTitle},
		},
		{
			name: "trailing roman",
			book: models.Book{Title: "Rocky III"},
			want: &Info{SeriesName: "Rocky", BookNumber: 3, Confidence: Medium, DetectedFrom: FromTitle},
		},
		{
			name: "novel subtitle",
			book: models.Book{Title: "Leviathan Wakes: A Expanse Novel"},
			want: &Info{SeriesName: "Leviathan Wakes", BookNumber: 1, Confidence: Low, DetectedFrom: FromTitle},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectSeries(tt.book))
		})
	}
}

func TestParseOrdinal(t *testing.T) {
	assert.Equal(t, 12, parseOrdinal("12"))
	assert.Equal(t, 9, parseOrdinal("IX"))
	assert.Equal(t, 14, parseOrdinal("xiv"))
	assert.Equal(t, 17, parseOrdinal("Seventeen"))
	assert.Equal(t, 1, parseOrdinal("0"))
	assert.Equal(t, 1, parseOrdinal("Saga"))
}

func TestCleanSeriesName(t *testing.T) {
	assert.Equal(t, "Wheel of Time", cleanSeriesName("The Wheel of Time -"))
	assert.Equal(t, "Song of Ice", cleanSeriesName("A Song of Ice:"))
	assert.Equal(t, "Theory", cleanSeriesName("Theory"))
}

func TestGroupBooksBySeries(t *testing.T) {
	books := []models.Book{
		{Title: "Mistborn: Book Three", Author: "Brandon Sanderson"},
		{Title: "Dune Messiah", Author: "Frank Herbert"},
		{Title: "Mistborn: Book One", Author: "Brandon Sanderson"},
		{Title: "Foundation 2", Author: "Isaac Asimov"},
		{Title: "Leviathan Wakes: A Expanse Novel", Author: "James S. A. Corey"},
		{Title: "mistborn: book two", Author: "brandon sanderson"},
	}

	got := GroupBooksBySeries(books)

	require.Len(t, got.Series, 2)

	mistborn := got.Series[0]
	assert.Equal(t, "Mistborn", mistborn.SeriesName)
	assert.Equal(t, High, mistborn.Confidence)
	require.Len(t, mistborn.Books, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{mistborn.Books[0].BookNumber, mistborn.Books[1].BookNumber, mistborn.Books[2].BookNumber})
	assert.Equal(t, "Mistborn: Book One", mistborn.Books[0].Title)

	assert.Equal(t, "Foundation", got.Series[1].SeriesName)

	// low confidence detections stay standalone
	require.Len(t, got.Standalone, 2)
	assert.Equal(t, "Dune Messiah", got.Standalone[0].Title)
	assert.Equal(t, "Leviathan Wakes: A Expanse Novel", got.Standalone[1].Title)
}

func TestGroupBooksBySeries_Empty(t *testing.T) {
	got := GroupBooksBySeries(nil)
	assert.NotNil(t, got.Series)
	assert.NotNil(t, got.Standalone)
	assert.Empty(t, got.Series)
}

type stubSearcher struct {
	query string
	max   int
	books []models.Book
	err   error
}

func (s *stubSearcher) SearchByQuery(_ context.Context, query string, maxResults int, _ string) ([]models.Book, error) {
	s.query = query
	s.max = maxResults
	return s.books, s.err
}

func TestFindMoreBooksInSeries(t *testing.T) {
	searcher := &stubSearcher{books: []models.Book{
		{Title: "Mistborn: Book Three"},
		{Title: "Elantris"},
		{Title: "Mistborn: Book One"},
		{Title: "Wax and Wayne 2"},
	}}

	svc := NewService(searcher)
	got := svc.FindMoreBooksInSeries(context.Background(), "Mistborn", "Brandon Sanderson")

	assert.Equal(t, `inauthor:"Brandon Sanderson" intitle:"Mistborn"`, searcher.query)
	assert.Equal(t, 20, searcher.max)

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].BookNumber)
	assert.Equal(t, 3, got[1].BookNumber)

	assert.Empty(t, svc.FindMoreBooksInSeries(context.Background(), "  ", "x"))
}

func TestFindMoreBooksInSeriesRejectedQuery(t *testing.T) {
	searcher := &stubSearcher{
		books: []models.Book{{Title: "Mistborn: Book One"}},
		err:   errors.New("empty query"),
	}

	got := NewService(searcher).FindMoreBooksInSeries(context.Background(), "Mistborn", "")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
