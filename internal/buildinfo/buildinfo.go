// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package buildinfo

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
)

// Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// UserAgent is sent on every catalog request.
var UserAgent string

func init() {
	UserAgent = userAgent(Version)
}

func userAgent(version string) string {
	return fmt.Sprintf("imbiber/%s (%s; %s)", version, runtime.GOOS, runtime.GOARCH)
}

// Info is what `imbiber version` prints and GET /api/version returns.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Date      string `json:"date,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func Current() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Version: %s\n", i.Version)
	fmt.Fprintf(&b, "Commit: %s\n", orUnknown(i.Commit))
	fmt.Fprintf(&b, "Build date: %s\n", orUnknown(i.Date))
	fmt.Fprintf(&b, "Go: %s %s\n", i.GoVersion, i.Platform)
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func String() string {
	return Current().String()
}

func JSON() ([]byte, error) {
	return json.Marshal(Current())
}
