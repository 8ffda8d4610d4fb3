// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package releases

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	MaxHistory = 50

	historyKeyPrefix = "notifications_"
	unreadKeyPrefix  = "unread_count_"
)

// KVStore is the key/value storage holding notification history.
type KVStore interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
}

// history owns every user's notification list. Writes for one user are
// serialized by that user's lock; the last successfully loaded or written
// list is kept in memory and served when storage reads fail.
type history struct {
	kv    KVStore
	locks sync.Map // userID -> *sync.Mutex

	mu   sync.RWMutex
	good map[string][]Notification

	storageErrors func()
}

func newHistory(kv KVStore, onStorageError func()) *history {
	if onStorageError == nil {
		onStorageError = func() {}
	}
	return &history{
		kv:            kv,
		good:          make(map[string][]Notification),
		storageErrors: onStorageError,
	}
}

func (h *history) lock(userID string) func() {
	m, _ := h.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// load returns the stored list, or the last known good copy when storage
// fails or holds garbage. Only read paths may use it.
func (h *history) load(ctx context.Context, userID string) []Notification {
	list, err := h.read(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("releases: failed to load notifications, using last known good")
		return h.lastKnownGood(userID)
	}
	return list
}

// read returns the list exactly as stored. Write paths build on it and must
// not fall back to memory: a stale copy written back would replace the
// stored history.
func (h *history) read(ctx context.Context, userID string) ([]Notification, error) {
	raw, found, err := h.kv.GetItem(ctx, historyKeyPrefix+userID)
	if err != nil {
		h.storageErrors()
		return nil, fmt.Errorf("%w: load notifications: %w", ErrStorageUnavailable, err)
	}
	if !found || raw == "" {
		h.remember(userID, nil)
		return []Notification{}, nil
	}

	var list []Notification
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		h.storageErrors()
		return nil, fmt.Errorf("%w: decode notifications: %w", ErrStorageUnavailable, err)
	}
	if list == nil {
		list = []Notification{}
	}

	h.remember(userID, list)
	return list, nil
}

func (h *history) store(ctx context.Context, userID string, list []Notification) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode notifications: %w", err)
	}
	if err := h.kv.SetItem(ctx, historyKeyPrefix+userID, string(data)); err != nil {
		h.storageErrors()
		return fmt.Errorf("persist notifications: %w", err)
	}

	h.remember(userID, list)
	return nil
}

func (h *history) remember(userID string, list []Notification) {
	cp := make([]Notification, len(list))
	copy(cp, list)

	h.mu.Lock()
	h.good[userID] = cp
	h.mu.Unlock()
}

func (h *history) lastKnownGood(userID string) []Notification {
	h.mu.RLock()
	defer h.mu.RUnlock()

	list := h.good[userID]
	cp := make([]Notification, len(list))
	copy(cp, list)
	return cp
}

// unread is the badge value for display; storage failures read as 0.
func (h *history) unread(ctx context.Context, userID string) int {
	n, err := h.readUnread(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("releases: failed to read unread count")
		return 0
	}
	return n
}

func (h *history) readUnread(ctx context.Context, userID string) (int, error) {
	raw, found, err := h.kv.GetItem(ctx, unreadKeyPrefix+userID)
	if err != nil {
		h.storageErrors()
		return 0, fmt.Errorf("%w: load unread count: %w", ErrStorageUnavailable, err)
	}
	if !found {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

func (h *history) setUnread(ctx context.Context, userID string, n int) error {
	if n < 0 {
		n = 0
	}
	if err := h.kv.SetItem(ctx, unreadKeyPrefix+userID, strconv.Itoa(n)); err != nil {
		h.storageErrors()
		return fmt.Errorf("persist unread count: %w", err)
	}
	return nil
}
