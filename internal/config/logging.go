// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bookimbiber/imbiber/internal/domain"
)

// SetupLogging points the global zerolog logger at stdout and, when logPath
// is set, a lumberjack-rotated file. It returns a closer for the file.
func SetupLogging(cfg *domain.Config) (io.Closer, error) {
	var writers []io.Writer

	if term.IsTerminal(int(os.Stdout.Fd())) {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime})
	} else {
		writers = append(writers, os.Stdout)
	}

	var closer io.Closer = nopCloser{}
	if cfg.LogPath != "" {
		path := cfg.LogPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.DataDir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrapf(err, "could not create log dir for %s", path)
		}

		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.LogMaxSize,
			MaxBackups: cfg.LogMaxBackups,
		}
		writers = append(writers, rotator)
		closer = rotator
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	SetLogLevel(cfg.LogLevel)

	return closer, nil
}

// SetLogLevel applies level globally. Unknown levels fall back to INFO.
func SetLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
