// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package apicache stores JSON payloads with a write timestamp and a TTL in a
// persistent key-value store. Expired entries are treated as absent and are
// removed when read. Every storage or decoding error is logged and reported as
// a miss, so a broken cache never blocks a live fetch.
package apicache

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	ValuePrefix    = "api_cache_"
	MetadataPrefix = "cache_meta_"

	DefaultTTL = 24 * time.Hour
)

// Storage is the persistent key-value backend.
type Storage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	GetAllKeys(ctx context.Context) ([]string, error)
	MultiRemove(ctx context.Context, keys []string) error
}

// Metadata describes a stored entry. Timestamp and TTL are persisted in
// milliseconds; Age and IsExpired are computed on read.
type Metadata struct {
	Timestamp int64         `json:"timestamp"`
	TTL       int64         `json:"ttl"`
	Age       time.Duration `json:"-"`
	IsExpired bool          `json:"-"`
}

// WrittenAt returns the entry's write time.
func (m Metadata) WrittenAt() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Stats are cumulative lookup outcomes since the cache was created.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Expired uint64
	Errors  uint64
}

type Cache struct {
	store Storage
	now   func() time.Time

	hits    atomic.Uint64
	misses  atomic.Uint64
	expired atomic.Uint64
	errors  atomic.Uint64
}

type Option func(*Cache)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func New(store Storage, opts ...Option) *Cache {
	c := &Cache{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores value under key. ttl <= 0 means DefaultTTL.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.errors.Add(1)
		log.Error().Err(err).Str("key", key).Msg("apicache: failed to encode value")
		return
	}

	meta, err := json.Marshal(Metadata{Timestamp: c.now().UnixMilli(), TTL: ttl.Milliseconds()})
	if err != nil {
		c.errors.Add(1)
		log.Error().Err(err).Str("key", key).Msg("apicache: failed to encode metadata")
		return
	}

	if err := c.store.SetItem(ctx, ValuePrefix+key, string(data)); err != nil {
		c.errors.Add(1)
		log.Error().Err(err).Str("key", key).Msg("apicache: failed to store value")
		return
	}
	if err := c.store.SetItem(ctx, MetadataPrefix+key, string(meta)); err != nil {
		c.errors.Add(1)
		log.Error().Err(err).Str("key", key).Msg("apicache: failed to store metadata")
		return
	}

	log.Trace().Str("key", key).Dur("ttl", ttl).Msg("apicache: set")
}

// Get decodes the entry for key into dest and reports whether it was a hit.
// dest is left untouched on a miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	data, dataFound, err := c.store.GetItem(ctx, ValuePrefix+key)
	if err != nil {
		c.fail(err, key, "apicache: failed to read value")
		return false
	}
	metaRaw, metaFound, err := c.store.GetItem(ctx, MetadataPrefix+key)
	if err != nil {
		c.fail(err, key, "apicache: failed to read metadata")
		return false
	}

	if !dataFound || !metaFound {
		c.misses.Add(1)
		log.Trace().Str("key", key).Msg("apicache: miss")
		return false
	}

	meta, err := c.decodeMetadata(metaRaw)
	if err != nil {
		c.fail(err, key, "apicache: failed to decode metadata")
		return false
	}

	if meta.IsExpired {
		c.expired.Add(1)
		c.misses.Add(1)
		log.Trace().Str("key", key).Dur("age", meta.Age).Msg("apicache: expired")
		c.Remove(ctx, key)
		return false
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		c.fail(err, key, "apicache: failed to decode value")
		return false
	}

	c.hits.Add(1)
	log.Trace().Str("key", key).Dur("age", meta.Age).Msg("apicache: hit")
	return true
}

// Remove deletes the value and metadata for key. Missing keys are ignored.
func (c *Cache) Remove(ctx context.Context, key string) {
	if err := c.store.MultiRemove(ctx, []string{ValuePrefix + key, MetadataPrefix + key}); err != nil {
		c.errors.Add(1)
		log.Error().Err(err).Str("key", key).Msg("apicache: failed to remove entry")
	}
}

// ClearAll removes every key owned by the cache and returns how many storage
// keys were deleted.
func (c *Cache) ClearAll(ctx context.Context) int {
	keys, err := c.store.GetAllKeys(ctx)
	if err != nil {
		c.errors.Add(1)
		log.Error().Err(err).Msg("apicache: failed to list keys")
		return 0
	}

	owned := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, ValuePrefix) || strings.HasPrefix(k, MetadataPrefix) {
			owned = append(owned, k)
		}
	}
	if len(owned) == 0 {
		return 0
	}

	if err := c.store.MultiRemove(ctx, owned); err != nil {
		c.errors.Add(1)
		log.Error().Err(err).Msg("apicache: failed to clear entries")
		return 0
	}

	log.Info().Int("count", len(owned)).Msg("apicache: cleared entries")
	return len(owned)
}

// GetMetadata returns the metadata for key without touching the value or
// evicting it.
func (c *Cache) GetMetadata(ctx context.Context, key string) (*Metadata, bool) {
	raw, found, err := c.store.GetItem(ctx, MetadataPrefix+key)
	if err != nil {
		c.fail(err, key, "apicache: failed to read metadata")
		return nil, false
	}
	if !found {
		return nil, false
	}

	meta, err := c.decodeMetadata(raw)
	if err != nil {
		c.fail(err, key, "apicache: failed to decode metadata")
		return nil, false
	}

	return meta, true
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Expired: c.expired.Load(),
		Errors:  c.errors.Load(),
	}
}

func (c *Cache) decodeMetadata(raw string) (*Metadata, error) {
	var meta Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, err
	}

	ageMs := c.now().UnixMilli() - meta.Timestamp
	meta.Age = time.Duration(ageMs) * time.Millisecond
	meta.IsExpired = ageMs > meta.TTL

	return &meta, nil
}

func (c *Cache) fail(err error, key, msg string) {
	c.errors.Add(1)
	c.misses.Add(1)
	log.Warn().Err(err).Str("key", key).Msg(msg)
}
