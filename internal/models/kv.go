// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bookimbiber/imbiber/internal/dbinterface"
)

// KVStore is a flat string key/value table. Values are opaque; callers
// encode JSON themselves.
type KVStore struct {
	db dbinterface.Querier
}

func NewKVStore(db dbinterface.Querier) *KVStore {
	return &KVStore{db: db}
}

// GetItem returns the value for key. found is false when the key is absent.
func (s *KVStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get item %q: %w", key, err)
	}

	return value, true, nil
}

func (s *KVStore) SetItem(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("set item %q: %w", key, err)
	}

	return nil
}

// RemoveItem deletes key. Removing a missing key is not an error.
func (s *KVStore) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove item %q: %w", key, err)
	}

	return nil
}

func (s *KVStore) GetAllKeys(ctx context.Context) ([]string, error) {
	return s.keys(ctx, `SELECT key FROM kv_store ORDER BY key`)
}

// KeysWithPrefix lists keys starting with prefix.
func (s *KVStore) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	return s.keys(ctx, `SELECT key FROM kv_store WHERE key LIKE ? ESCAPE '\' ORDER BY key`, escapeLike(prefix)+"%")
}

func (s *KVStore) keys(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return keys, nil
}

const multiRemoveChunk = 500

// MultiRemove deletes every key in keys.
func (s *KVStore) MultiRemove(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += multiRemoveChunk {
		end := min(start+multiRemoveChunk, len(keys))
		chunk := keys[start:end]

		args := make([]any, len(chunk))
		for i, k := range chunk {
			args[i] = k
		}

		query := fmt.Sprintf(`DELETE FROM kv_store WHERE key IN (%s)`, dbinterface.BuildInClause(len(chunk)))
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("remove %d items: %w", len(chunk), err)
		}
	}

	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
