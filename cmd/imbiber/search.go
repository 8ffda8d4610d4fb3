// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bookimbiber/imbiber/internal/models"
	"github.com/bookimbiber/imbiber/internal/services/catalog"
	"github.com/bookimbiber/imbiber/internal/services/series"
)

func RunSearchCommand(configPath func() string) *cobra.Command {
	var (
		maxResults int
		locale     string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the book catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			a, err := newApp(configPath(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			books, err := a.catalog.LookupByQuery(cmd.Context(), query, maxResults, locale)
			if err != nil {
				return err
			}

			if len(books) == 0 {
				cmd.Println("No books found.")
				return nil
			}

			for _, book := range books {
				printBook(cmd, book)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxResults, "max", catalog.DefaultMaxResults, "Maximum number of results")
	cmd.Flags().StringVar(&locale, "locale", "", "Preferred language, e.g. de or pt-BR")

	return cmd
}

func RunISBNCommand(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "isbn <isbn>",
		Short: "Look up a book by ISBN-10 or ISBN-13",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if v := catalog.ValidateISBN(args[0]); !v.IsValid {
				return catalog.ErrInvalidIdentifier
			}

			a, err := newApp(configPath(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			book, err := a.catalog.LookupByIdentifier(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if book == nil {
				return errors.New("no book found for " + args[0])
			}

			printBook(cmd, *book)
			if info := series.DetectSeries(*book); info != nil {
				cmd.Printf("  series: %s #%d (%s confidence)\n", info.SeriesName, info.BookNumber, info.Confidence)
			}
			return nil
		},
	}
}

func printBook(cmd *cobra.Command, book models.Book) {
	line := book.Title
	if book.Author != "" {
		line += " by " + book.Author
	}
	if year := book.Year(); year != "" {
		line += " (" + year + ")"
	}
	cmd.Println(line)

	isbn := book.ISBN13
	if isbn == "" {
		isbn = book.ISBN10
	}
	if isbn != "" {
		cmd.Printf("  isbn: %s\n", isbn)
	}
}
