// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
)

const defaultNormalizerTTL = 5 * time.Minute

// TransformFunc maps K to V.
type TransformFunc[K, V any] func(K) V

// Normalizer memoizes an expensive transform for a bounded time.
// The transform runs once per distinct key until the entry expires.
type Normalizer[K comparable, V any] struct {
	cache     *ttlcache.Cache[K, V]
	transform TransformFunc[K, V]
}

// NewNormalizer returns a normalizer that caches transform results for ttl.
func NewNormalizer[K comparable, V any](ttl time.Duration, transform TransformFunc[K, V]) *Normalizer[K, V] {
	if ttl <= 0 {
		ttl = defaultNormalizerTTL
	}
	cache := ttlcache.New(ttlcache.Options[K, V]{}.
		SetDefaultTTL(ttl))
	return &Normalizer[K, V]{
		cache:     cache,
		transform: transform,
	}
}

// NewDefaultNormalizer trims, lowercases and interns.
func NewDefaultNormalizer() *Normalizer[string, string] {
	return NewNormalizer(defaultNormalizerTTL, InternNormalized)
}

// Normalize returns the transformed value for key.
func (n *Normalizer[K, V]) Normalize(key K) V {
	if cached, ok := n.cache.Get(key); ok {
		return cached
	}

	transformed := n.transform(key)
	n.cache.Set(key, transformed, ttlcache.DefaultTTL)
	return transformed
}

// Clear drops the cached value for key.
func (n *Normalizer[K, V]) Clear(key K) {
	n.cache.Delete(key)
}
