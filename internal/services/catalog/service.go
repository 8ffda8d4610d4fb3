// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package catalog searches the external book catalog, maps volumes into
// models.Book and caches results.
//
// Lookup* methods report upstream failures as errors and never cache them.
// Search* methods are the fail-open edge used by UI-facing callers: they log
// and return an empty result instead.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/bookimbiber/imbiber/internal/fingerprint"
	"github.com/bookimbiber/imbiber/internal/models"
	"github.com/bookimbiber/imbiber/pkg/googlebooks"
)

var (
	ErrEmptyQuery        = errors.New("empty search query")
	ErrInvalidIdentifier = errors.New("invalid identifier format: must be 10 or 13 digits")
)

const (
	DefaultLanguage   = "en"
	DefaultMaxResults = 10

	searchTTL     = 24 * time.Hour
	authorTTL     = 24 * time.Hour
	identifierTTL = 7 * 24 * time.Hour
)

// VolumeSearcher is the raw catalog API.
type VolumeSearcher interface {
	Volumes(ctx context.Context, q googlebooks.VolumesQuery) (*googlebooks.VolumesResponse, error)
}

// Cache stores JSON-encodable results with a TTL.
type Cache interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration)
}

type Stats struct {
	Requests uint64
	Failures uint64
}

type Service struct {
	client        VolumeSearcher
	cache         Cache
	defaultLocale string
	group         singleflight.Group

	requests atomic.Uint64
	failures atomic.Uint64
}

// NewService returns a catalog service. cache may be nil to disable caching.
// defaultLocale is used when a search does not name one.
func NewService(client VolumeSearcher, cache Cache, defaultLocale string) *Service {
	return &Service{
		client:        client,
		cache:         cache,
		defaultLocale: normalizeLocale(defaultLocale),
	}
}

func (s *Service) Stats() Stats {
	return Stats{Requests: s.requests.Load(), Failures: s.failures.Load()}
}

// LookupByQuery runs a free-text search. With a non-English locale half of
// the budget goes to each language; local results come first.
func (s *Service) LookupByQuery(ctx context.Context, query string, maxResults int, locale string) ([]models.Book, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	lang := normalizeLocale(locale)
	if lang == "" {
		lang = s.defaultLocale
	}

	key := fmt.Sprintf("search_%s_%d_%s", strings.ToLower(query), maxResults, lang)

	return s.cached(ctx, key, searchTTL, func(ctx context.Context) ([]models.Book, bool, error) {
		return s.searchLocalized(ctx, query, maxResults, lang)
	})
}

// authorEntry is the cached value under author_<name>. MaxResults is the
// budget the books were fetched with.
type authorEntry struct {
	MaxResults int           `json:"maxResults"`
	Books      []models.Book `json:"books"`
}

// LookupByAuthor returns the author's books, newest first. The cache holds
// one entry per author: requests up to its budget are served from it, larger
// ones refetch and replace it.
func (s *Service) LookupByAuthor(ctx context.Context, authorName string, maxResults int) ([]models.Book, error) {
	name := strings.TrimSpace(authorName)
	if name == "" {
		return nil, ErrEmptyQuery
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	key := "author_" + fingerprint.Normalize(name)

	if s.cache != nil {
		var entry authorEntry
		if s.cache.Get(ctx, key, &entry) && entry.MaxResults >= maxResults {
			return firstN(entry.Books, maxResults), nil
		}
	}

	books, err := s.shared(ctx, fmt.Sprintf("%s#%d", key, maxResults), func(ctx context.Context) ([]models.Book, error) {
		books, err := s.volumes(ctx, googlebooks.VolumesQuery{
			Q:          fmt.Sprintf("inauthor:%q", name),
			MaxResults: maxResults,
			OrderBy:    googlebooks.OrderNewest,
		}, DefaultLanguage)
		if err != nil {
			return nil, err
		}
		if books == nil {
			books = []models.Book{}
		}
		if s.cache != nil {
			s.cache.Set(ctx, key, authorEntry{MaxResults: maxResults, Books: books}, authorTTL)
		}
		return books, nil
	})
	if err != nil {
		return nil, err
	}
	return firstN(books, maxResults), nil
}

// firstN copies at most n books.
func firstN(books []models.Book, n int) []models.Book {
	if len(books) > n {
		books = books[:n]
	}
	out := make([]models.Book, len(books))
	copy(out, books)
	return out
}

// LookupByIdentifier finds a single book by ISBN-10 or ISBN-13. It returns
// nil without error when the catalog has no match.
func (s *Service) LookupByIdentifier(ctx context.Context, identifier string) (*models.Book, error) {
	v := ValidateISBN(identifier)
	if !v.IsValid {
		return nil, ErrInvalidIdentifier
	}

	books, err := s.cached(ctx, "isbn_"+v.Clean, identifierTTL, func(ctx context.Context) ([]models.Book, bool, error) {
		books, err := s.volumes(ctx, googlebooks.VolumesQuery{
			Q:          "isbn:" + v.Clean,
			MaxResults: 1,
			OrderBy:    googlebooks.OrderRelevance,
		}, DefaultLanguage)
		return books, true, err
	})
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, nil
	}

	b := books[0]
	return &b, nil
}

// SearchByQuery is LookupByQuery that fails open: upstream failures are
// logged and yield an empty list. An empty query is still ErrEmptyQuery.
func (s *Service) SearchByQuery(ctx context.Context, query string, maxResults int, locale string) ([]models.Book, error) {
	books, err := s.LookupByQuery(ctx, query, maxResults, locale)
	if errors.Is(err, ErrEmptyQuery) {
		return nil, err
	}
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("catalog: search failed")
		return []models.Book{}, nil
	}
	return books, nil
}

// SearchByAuthor is LookupByAuthor that fails open like SearchByQuery.
func (s *Service) SearchByAuthor(ctx context.Context, authorName string, maxResults int) ([]models.Book, error) {
	books, err := s.LookupByAuthor(ctx, authorName, maxResults)
	if errors.Is(err, ErrEmptyQuery) {
		return nil, err
	}
	if err != nil {
		log.Warn().Err(err).Str("author", authorName).Msg("catalog: author search failed")
		return []models.Book{}, nil
	}
	return books, nil
}

// SearchByIdentifier returns nil for no match or failure. An invalid
// identifier is still reported so callers can tell the user.
func (s *Service) SearchByIdentifier(ctx context.Context, identifier string) (*models.Book, error) {
	book, err := s.LookupByIdentifier(ctx, identifier)
	if errors.Is(err, ErrInvalidIdentifier) {
		return nil, err
	}
	if err != nil {
		log.Warn().Err(err).Str("identifier", identifier).Msg("catalog: identifier lookup failed")
		return nil, nil
	}
	return book, nil
}

type fetchFunc func(ctx context.Context) (books []models.Book, cacheable bool, err error)

// cached serves key from the cache or runs fetch once for all concurrent
// callers. Results are stored only when fetch reports them cacheable.
func (s *Service) cached(ctx context.Context, key string, ttl time.Duration, fetch fetchFunc) ([]models.Book, error) {
	if s.cache != nil {
		var books []models.Book
		if s.cache.Get(ctx, key, &books) {
			if books == nil {
				books = []models.Book{}
			}
			return books, nil
		}
	}

	return s.shared(ctx, key, func(ctx context.Context) ([]models.Book, error) {
		books, cacheable, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if books == nil {
			books = []models.Book{}
		}
		if cacheable && s.cache != nil {
			s.cache.Set(ctx, key, books, ttl)
		}
		return books, nil
	})
}

// shared runs fetch once per key across concurrent callers. The fetch does
// not inherit the first caller's cancellation, so one caller giving up never
// fails the others; a cancelled caller stops waiting and gets ctx.Err().
func (s *Service) shared(ctx context.Context, key string, fetch func(ctx context.Context) ([]models.Book, error)) ([]models.Book, error) {
	detached := context.WithoutCancel(ctx)

	ch := s.group.DoChan(key, func() (val any, err error) {
		// DoChan re-panics on its own goroutine where nobody can recover
		defer func() {
			if r := recover(); r != nil {
				s.failures.Add(1)
				err = fmt.Errorf("catalog: fetch %s panicked: %v", key, r)
			}
		}()
		return fetch(detached)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		books, _ := res.Val.([]models.Book)
		// callers may modify the slice; singleflight shares it
		out := make([]models.Book, len(books))
		copy(out, books)
		return out, nil
	}
}

// searchLocalized runs the English query and, for other locales, a second
// query restricted to that language. A partial failure returns what
// succeeded but marks the result uncacheable.
func (s *Service) searchLocalized(ctx context.Context, query string, maxResults int, lang string) ([]models.Book, bool, error) {
	if lang == "" || lang == DefaultLanguage {
		books, err := s.volumes(ctx, googlebooks.VolumesQuery{
			Q:            query,
			MaxResults:   maxResults,
			LangRestrict: DefaultLanguage,
			OrderBy:      googlebooks.OrderRelevance,
		}, DefaultLanguage)
		return books, true, err
	}

	perLanguage := (maxResults + 1) / 2

	var (
		english, local       []models.Book
		englishErr, localErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		english, englishErr = s.volumes(gctx, googlebooks.VolumesQuery{
			Q:            query,
			MaxResults:   perLanguage,
			LangRestrict: DefaultLanguage,
			OrderBy:      googlebooks.OrderRelevance,
		}, DefaultLanguage)
		return nil
	})
	g.Go(func() error {
		local, localErr = s.volumes(gctx, googlebooks.VolumesQuery{
			Q:            query,
			MaxResults:   perLanguage,
			LangRestrict: lang,
			OrderBy:      googlebooks.OrderRelevance,
		}, lang)
		return nil
	})
	_ = g.Wait()

	if englishErr != nil && localErr != nil {
		return nil, false, errors.Join(englishErr, localErr)
	}
	if englishErr != nil {
		log.Warn().Err(englishErr).Str("query", query).Msg("catalog: english search failed, returning local results only")
	}
	if localErr != nil {
		log.Warn().Err(localErr).Str("query", query).Str("lang", lang).Msg("catalog: localized search failed, returning english results only")
	}

	merged := mergeUnique(maxResults, local, english)
	return merged, englishErr == nil && localErr == nil, nil
}

func (s *Service) volumes(ctx context.Context, q googlebooks.VolumesQuery, lang string) ([]models.Book, error) {
	s.requests.Add(1)

	resp, err := s.client.Volumes(ctx, q)
	if err != nil {
		s.failures.Add(1)
		return nil, err
	}

	books := make([]models.Book, 0, len(resp.Items))
	for _, item := range resp.Items {
		books = append(books, mapVolume(item, lang))
	}

	log.Debug().Str("q", q.Q).Str("lang", q.LangRestrict).Int("results", len(books)).Msg("catalog: upstream search")

	return books, nil
}

// mergeUnique concatenates lists in order, keeping the first occurrence of
// each fingerprint, and truncates to limit.
func mergeUnique(limit int, lists ...[]models.Book) []models.Book {
	seen := make(map[string]struct{})
	out := make([]models.Book, 0, limit)
	for _, list := range lists {
		for _, b := range list {
			if len(out) == limit {
				return out
			}
			fp := fingerprint.Fingerprint(b)
			if _, dup := seen[fp]; dup {
				continue
			}
			seen[fp] = struct{}{}
			out = append(out, b)
		}
	}
	return out
}

func normalizeLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	// "de-AT" and "de_AT" restrict to "de"
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	return locale
}
