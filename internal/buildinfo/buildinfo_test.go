// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package buildinfo

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		info Info
		want string
	}{
		{
			name: "release build",
			info: Info{Version: "v0.4.0", Commit: "1a2b3c4", Date: "2026-09-30", GoVersion: "go1.25.1", Platform: "linux/arm64"},
			want: "Version: v0.4.0\nCommit: 1a2b3c4\nBuild date: 2026-09-30\nGo: go1.25.1 linux/arm64\n",
		},
		{
			name: "dev build without ldflags",
			info: Info{Version: "dev", GoVersion: "go1.25.1", Platform: "darwin/amd64"},
			want: "Version: dev\nCommit: unknown\nBuild date: unknown\nGo: go1.25.1 darwin/amd64\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.info.String())
		})
	}
}

func TestJSONOmitsEmptyLinkerFields(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Info{Version: "dev", GoVersion: "go1.25.1", Platform: "linux/amd64"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"dev","go_version":"go1.25.1","platform":"linux/amd64"}`, string(data))

	data, err = JSON()
	require.NoError(t, err)

	var current Info
	require.NoError(t, json.Unmarshal(data, &current))
	assert.Equal(t, Current(), current)
	assert.Equal(t, runtime.Version(), current.GoVersion)
}

func TestUserAgent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, userAgent(Version), UserAgent)
	assert.Equal(t, "imbiber/v0.4.0 ("+runtime.GOOS+"; "+runtime.GOARCH+")", userAgent("v0.4.0"))
}
