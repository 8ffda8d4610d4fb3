// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bookimbiber/imbiber/internal/services/releases"
)

func RunCheckCommand(configPath func() string) *cobra.Command {
	var (
		userID string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a new-release check for one user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID = strings.TrimSpace(userID)
			if userID == "" {
				return errors.New("--user is required")
			}

			a, err := newApp(configPath(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			batches, err := a.releases.CheckUser(cmd.Context(), userID, force)
			if err != nil {
				var cooldown *releases.CooldownError
				if errors.As(err, &cooldown) {
					cmd.Printf("Check skipped: cooldown active, retry in %s (use --force to override)\n", cooldown.Remaining.Round(time.Second))
					return nil
				}
				return err
			}

			if len(batches) == 0 {
				cmd.Println("No new releases found.")
				return nil
			}

			for _, batch := range batches {
				cmd.Printf("%s: %d new book(s)\n", batch.Author, len(batch.Books))
				for _, book := range batch.Books {
					if book.PublishedDate != "" {
						cmd.Printf("  - %s (%s)\n", book.Title, book.PublishedDate)
						continue
					}
					cmd.Printf("  - %s\n", book.Title)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID to check")
	cmd.Flags().BoolVar(&force, "force", false, "Ignore the check cooldown")

	return cmd
}
