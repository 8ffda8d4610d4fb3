// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bookimbiber/imbiber/internal/config"
	"github.com/bookimbiber/imbiber/internal/domain"
	"github.com/bookimbiber/imbiber/internal/services/notifications"
)

const notifyTestTimeout = 30 * time.Second

func RunNotifyCommand(configPath func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Push notification targets",
	}

	cmd.AddCommand(runNotifyEventsCommand(), runNotifyTestCommand(configPath))
	return cmd
}

func runNotifyEventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List the event types a target can subscribe to",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, def := range notifications.EventDefinitions() {
				cmd.Printf("%-22s %s\n", def.Type, def.Description)
			}
		},
	}
}

// runNotifyTestCommand sends a test message to every configured target, or
// only to the URLs given with --url.
func runNotifyTestCommand(configPath func() string) *cobra.Command {
	var urls []string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(urls) == 0 {
				cfg, err := config.New(configPath())
				if err != nil {
					return err
				}
				urls = cfg.Current().NotificationURLs
			}

			targets := notifications.TargetsFromURLs(urls, nil)
			if len(targets) == 0 {
				return errors.New("no notification URLs configured; set notificationUrls or pass --url")
			}

			for _, target := range targets {
				if err := notifications.ValidateURL(target.URL); err != nil {
					return fmt.Errorf("invalid notification URL for %s: %w", target.Name, err)
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), notifyTestTimeout)
			defer cancel()

			return sendTestNotifications(ctx, cmd, targets)
		},
	}

	cmd.Flags().StringSliceVar(&urls, "url", nil, "Shoutrrr URL to test instead of the configured ones (repeatable)")

	return cmd
}

func sendTestNotifications(ctx context.Context, cmd *cobra.Command, targets notifications.StaticTargets) error {
	svc := notifications.NewService(targets, nil, log.With().Str("module", "notifications").Logger())

	var errs []error
	for i := range targets {
		target := &targets[i]
		if err := svc.SendTest(ctx, target, "imbiber test", "Notifications from imbiber are working."); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target.Name, err))
			cmd.Printf("%s: failed: %v\n", domain.RedactURL(target.URL), err)
			continue
		}
		cmd.Printf("%s: sent\n", domain.RedactURL(target.URL))
	}

	return errors.Join(errs...)
}
