// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/spf13/cobra"
)

func RunCacheCommand(configPath func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Catalog response cache operations",
	}

	cmd.AddCommand(runCacheClearCommand(configPath))
	return cmd
}

func runCacheClearCommand(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached catalog response",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(configPath(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			removed := a.cache.ClearAll(cmd.Context())
			cmd.Printf("Removed %d cache entries\n", removed)
			return nil
		},
	}
}
