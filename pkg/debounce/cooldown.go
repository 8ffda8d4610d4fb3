// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package debounce

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// Cooldown is a per-key gate: once a key is marked it stays closed until the
// cooldown has elapsed. State lives in memory unless a TimestampStore is set,
// so a restart clears every cooldown by default.
type Cooldown struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     map[string]time.Time
	now      Clock
	store    TimestampStore
}

// TimestampStore persists last-call times so cooldowns survive a restart.
type TimestampStore interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

const persistKeyPrefix = "debounce_"

// CooldownOption configures a Cooldown.
type CooldownOption func(*Cooldown)

// WithClock overrides time.Now.
func WithClock(now Clock) CooldownOption {
	return func(c *Cooldown) {
		if now != nil {
			c.now = now
		}
	}
}

// WithStore backs the cooldown with persistent storage.
func WithStore(store TimestampStore) CooldownOption {
	return func(c *Cooldown) {
		c.store = store
	}
}

// NewCooldown returns a gate with the given cooldown window.
func NewCooldown(cooldown time.Duration, opts ...CooldownOption) *Cooldown {
	c := &Cooldown{
		cooldown: cooldown,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewPersistentCooldown returns a gate whose timestamps are kept in store.
func NewPersistentCooldown(cooldown time.Duration, store TimestampStore, opts ...CooldownOption) *Cooldown {
	return NewCooldown(cooldown, append([]CooldownOption{WithStore(store)}, opts...)...)
}

// Window returns the configured cooldown duration.
func (c *Cooldown) Window() time.Duration {
	return c.cooldown
}

// CanProceed reports whether key is outside its cooldown. It has no side effects.
func (c *Cooldown) CanProceed(key string) bool {
	return c.RemainingTime(key) == 0
}

// RemainingTime returns how long until CanProceed(key) becomes true, or 0.
func (c *Cooldown) RemainingTime(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.lastLocked(key)
	if !ok {
		return 0
	}

	remaining := c.cooldown - c.now().Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MarkCalled records now as the last call time for key.
func (c *Cooldown) MarkCalled(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.last[key] = now

	if c.store != nil {
		value := strconv.FormatInt(now.UnixMilli(), 10)
		if err := c.store.SetItem(context.Background(), persistKeyPrefix+key, value); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cooldown: failed to persist timestamp")
		}
	}
}

// Reset clears the recorded call time for key.
func (c *Cooldown) Reset(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.last, key)

	if c.store != nil {
		if err := c.store.RemoveItem(context.Background(), persistKeyPrefix+key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cooldown: failed to remove timestamp")
		}
	}
}

func (c *Cooldown) lastLocked(key string) (time.Time, bool) {
	if last, ok := c.last[key]; ok {
		return last, true
	}
	if c.store == nil {
		return time.Time{}, false
	}

	raw, found, err := c.store.GetItem(context.Background(), persistKeyPrefix+key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cooldown: failed to load timestamp")
		return time.Time{}, false
	}
	if !found {
		return time.Time{}, false
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	last := time.UnixMilli(ms)
	c.last[key] = last
	return last, true
}
