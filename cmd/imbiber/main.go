// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bookimbiber/imbiber/internal/buildinfo"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "imbiber",
		Short:         "Follow authors and get notified about their new books",
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file or directory (default: OS config dir)")

	configFlag := func() string { return configPath }

	root.AddCommand(
		RunServeCommand(configFlag),
		RunCheckCommand(configFlag),
		RunSearchCommand(configFlag),
		RunISBNCommand(configFlag),
		RunCacheCommand(configFlag),
		RunConfigCommand(configFlag),
		RunNotifyCommand(configFlag),
		RunVersionCommand(),
	)

	return root
}
