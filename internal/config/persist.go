// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// UpdateLogSettings rewrites the log keys in the config file. A running
// server picks the change up through WatchConfig.
func (c *AppConfig) UpdateLogSettings(level, path string, maxSize, maxBackups int) error {
	raw, err := os.ReadFile(c.configPath)
	if err != nil {
		return errors.Wrapf(err, "could not read config file %s", c.configPath)
	}

	updated := updateLogSettingsInTOML(string(raw), level, path, maxSize, maxBackups)

	info, err := os.Stat(c.configPath)
	if err != nil {
		return errors.Wrapf(err, "could not stat config file %s", c.configPath)
	}
	if err := os.WriteFile(c.configPath, []byte(updated), info.Mode().Perm()); err != nil {
		return errors.Wrapf(err, "could not write config file %s", c.configPath)
	}
	return nil
}

// updateLogSettingsInTOML replaces each key in place, uncommenting it if
// needed. Keys that are absent are appended before the first table so they
// stay top level.
func updateLogSettingsInTOML(content, level, path string, maxSize, maxBackups int) string {
	settings := []struct {
		key   string
		value string
	}{
		{"logLevel", fmt.Sprintf("%q", level)},
		{"logPath", fmt.Sprintf("%q", path)},
		{"logMaxSize", fmt.Sprintf("%d", maxSize)},
		{"logMaxBackups", fmt.Sprintf("%d", maxBackups)},
	}

	var missing []string
	for _, s := range settings {
		re := regexp.MustCompile(`(?m)^[ \t]*#?[ \t]*` + regexp.QuoteMeta(s.key) + `[ \t]*=.*$`)
		line := s.key + " = " + s.value

		loc := re.FindStringIndex(content)
		if loc == nil {
			missing = append(missing, line)
			continue
		}
		content = content[:loc[0]] + line + content[loc[1]:]
	}

	if len(missing) == 0 {
		return content
	}

	block := "# Log settings\n" + strings.Join(missing, "\n") + "\n\n"

	table := regexp.MustCompile(`(?m)^\[`).FindStringIndex(content)
	if table == nil {
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		return content + "\n" + block
	}
	return content[:table[0]] + block + content[table[0]:]
}
