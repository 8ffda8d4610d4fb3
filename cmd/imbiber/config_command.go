// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bookimbiber/imbiber/internal/config"
)

func RunConfigCommand(configPath func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the config file",
	}

	cmd.AddCommand(runConfigPathCommand(configPath), runConfigLogCommand(configPath))
	return cmd
}

func runConfigPathCommand(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the resolved config and database paths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New(configPath())
			if err != nil {
				return err
			}

			cmd.Printf("Config: %s\n", cfg.ConfigPath())
			cmd.Printf("Database: %s\n", cfg.GetDatabasePath())
			return nil
		},
	}
}

// runConfigLogCommand rewrites the log keys in place. Flags that are not
// given keep their current value.
func runConfigLogCommand(configPath func() string) *cobra.Command {
	var (
		level      string
		path       string
		maxSize    int
		maxBackups int
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Update log settings in the config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New(configPath())
			if err != nil {
				return err
			}
			current := cfg.Current()

			flags := cmd.Flags()
			if !flags.Changed("level") {
				level = current.LogLevel
			}
			if !flags.Changed("path") {
				path = current.LogPath
			}
			if !flags.Changed("max-size") {
				maxSize = current.LogMaxSize
			}
			if !flags.Changed("max-backups") {
				maxBackups = current.LogMaxBackups
			}

			level = strings.ToUpper(strings.TrimSpace(level))
			if _, err := zerolog.ParseLevel(strings.ToLower(level)); err != nil {
				return fmt.Errorf("invalid log level %q: %w", level, err)
			}
			if maxSize < 0 || maxBackups < 0 {
				return fmt.Errorf("max-size and max-backups must not be negative")
			}

			if err := cfg.UpdateLogSettings(level, path, maxSize, maxBackups); err != nil {
				return err
			}

			cmd.Printf("Updated log settings in %s\n", cfg.ConfigPath())
			cmd.Printf("  level=%s path=%q maxSize=%d maxBackups=%d\n", level, path, maxSize, maxBackups)
			return nil
		},
	}

	cmd.Flags().StringVar(&level, "level", "", "Log level: TRACE, DEBUG, INFO, WARN, ERROR")
	cmd.Flags().StringVar(&path, "path", "", "Log file path, relative to the data dir; empty logs to stdout only")
	cmd.Flags().IntVar(&maxSize, "max-size", 0, "Maximum log file size in MB before rotation")
	cmd.Flags().IntVar(&maxBackups, "max-backups", 0, "Number of rotated log files to keep")

	return cmd
}
