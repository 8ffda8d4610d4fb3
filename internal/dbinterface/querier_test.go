// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package dbinterface

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

func TestBuildInClause(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{-1, ""},
		{0, ""},
		{1, "?"},
		{3, "?, ?, ?"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			assert.Equal(t, tt.want, BuildInClause(tt.n))
		})
	}
}

func TestBuildInClauseMatchesKVChunk(t *testing.T) {
	// cache eviction deletes up to 500 keys per statement
	clause := BuildInClause(500)
	assert.Equal(t, 500, strings.Count(clause, "?"))
	assert.False(t, strings.HasSuffix(clause, ", "))
}
