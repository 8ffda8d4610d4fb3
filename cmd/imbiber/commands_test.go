// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookimbiber/imbiber/internal/buildinfo"
	"github.com/bookimbiber/imbiber/internal/services/catalog"
	"github.com/bookimbiber/imbiber/internal/services/releases"
	"github.com/bookimbiber/imbiber/pkg/debounce"
)

func TestVersionCommand(t *testing.T) {
	output := mustRunCommand(t, "version")
	assert.Contains(t, output, "Version: dev\n")
	assert.Contains(t, output, "Go: "+runtime.Version())

	output = mustRunCommand(t, "version", "--json")
	var info buildinfo.Info
	require.NoError(t, json.Unmarshal([]byte(output), &info))
	assert.Equal(t, buildinfo.Current(), info)
}

func TestConfigLogCommandRewritesFile(t *testing.T) {
	configDir := t.TempDir()

	output := mustRunCommand(t, "config", "log", "--config", configDir, "--level", "debug", "--max-backups", "7")
	assert.Contains(t, output, "Updated log settings")
	assert.Contains(t, output, "level=DEBUG")

	raw, err := os.ReadFile(filepath.Join(configDir, "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `logLevel = "DEBUG"`)
	assert.Contains(t, string(raw), `logMaxBackups = 7`)
	// untouched flags keep the defaults
	assert.Contains(t, string(raw), `logMaxSize = 50`)
}

func TestConfigLogCommandRejectsUnknownLevel(t *testing.T) {
	_, err := runCommand("config", "log", "--config", t.TempDir(), "--level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestConfigPathCommand(t *testing.T) {
	configDir := t.TempDir()

	output := mustRunCommand(t, "config", "path", "--config", configDir)
	assert.Contains(t, output, filepath.Join(configDir, "config.toml"))
	assert.Contains(t, output, filepath.Join(configDir, "imbiber.db"))
}

func TestCacheClearCommand(t *testing.T) {
	configDir := t.TempDir()
	ctx := context.Background()

	a, err := newApp(configDir, appOptions{})
	require.NoError(t, err)
	a.cache.Set(ctx, "search_dune_10_en", []string{"Dune"}, time.Hour)
	require.NoError(t, a.kv.SetItem(ctx, "unrelated", "kept"))
	require.NoError(t, a.Close())

	output := mustRunCommand(t, "cache", "clear", "--config", configDir)
	assert.Contains(t, output, "Removed 2 cache entries")

	a, err = newApp(configDir, appOptions{})
	require.NoError(t, err)
	defer a.Close()

	_, found, err := a.kv.GetItem(ctx, "unrelated")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCheckCommandRequiresUser(t *testing.T) {
	_, err := runCommand("check", "--config", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user is required")
}

func TestCheckCommandWithoutFollowedAuthors(t *testing.T) {
	output := mustRunCommand(t, "check", "--config", t.TempDir(), "--user", "reader-1")
	assert.Contains(t, output, "No new releases found.")
}

func markCooldownInStore(t *testing.T, configDir, userID string) {
	t.Helper()

	a, err := newApp(configDir, appOptions{})
	require.NoError(t, err)
	debounce.NewPersistentCooldown(time.Hour, a.kv).MarkCalled(releases.CooldownKey(userID))
	require.NoError(t, a.Close())
}

func enablePersistentCooldowns(t *testing.T, configDir string) {
	t.Helper()

	path := filepath.Join(configDir, "config.toml")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	updated := strings.Replace(string(raw), "#persistCooldowns = false", "persistCooldowns = true", 1)
	require.NotEqual(t, string(raw), updated)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
}

func TestCheckCommandReportsPersistedCooldown(t *testing.T) {
	configDir := t.TempDir()
	markCooldownInStore(t, configDir, "reader-1")
	enablePersistentCooldowns(t, configDir)

	output := mustRunCommand(t, "check", "--config", configDir, "--user", "reader-1")
	assert.Contains(t, output, "cooldown active")

	output = mustRunCommand(t, "check", "--config", configDir, "--user", "reader-1", "--force")
	assert.Contains(t, output, "No new releases found.")
}

func TestCheckCommandCooldownIsInMemoryByDefault(t *testing.T) {
	configDir := t.TempDir()
	markCooldownInStore(t, configDir, "reader-1")

	// a new process starts with a clear cooldown
	output := mustRunCommand(t, "check", "--config", configDir, "--user", "reader-1")
	assert.Contains(t, output, "No new releases found.")
}

func TestISBNCommandRejectsInvalidIdentifier(t *testing.T) {
	_, err := runCommand("isbn", "--config", t.TempDir(), "12345")
	require.ErrorIs(t, err, catalog.ErrInvalidIdentifier)
}

func TestSearchCommandRequiresQuery(t *testing.T) {
	_, err := runCommand("search", "--config", t.TempDir())
	require.Error(t, err)
}

func TestNotifyEventsCommand(t *testing.T) {
	output := mustRunCommand(t, "notify", "events")
	assert.Contains(t, output, "new_releases")
	assert.Contains(t, output, "release_check_failed")
}

func TestNotifyTestCommandWithoutTargets(t *testing.T) {
	_, err := runCommand("notify", "test", "--config", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no notification URLs configured")
}

func TestNotifyTestCommandRejectsInvalidURL(t *testing.T) {
	_, err := runCommand("notify", "test", "--url", "notaservice://token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid notification URL")
}

func mustRunCommand(t *testing.T, args ...string) string {
	t.Helper()
	output, err := runCommand(args...)
	require.NoError(t, err, output)
	return output
}

func runCommand(args ...string) (string, error) {
	cmd := newRootCommand()

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
