package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newTextbooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "textbooks",
		Short: "Browse the textbook catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "search [TERM...]",
		Short: "Search by title, author or ISBN",
		RunE:  runTextbooksSearch,
	})

	return cmd
}

func runTextbooksSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cc, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	if err := cc.read(ctx, "textbooks", cc.Session.Catalog().Fetch); err != nil {
		return err
	}

	books := cc.Session.Catalog().Search(strings.Join(args, " "))

	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), books)
	}

	if len(books) == 0 {
		cc.Statusf("No textbooks found.\n")
		return nil
	}

	rows := make([][]string, 0, len(books))
	for _, tb := range books {
		rows = append(rows, []string{strconv.Itoa(tb.ID), truncate(tb.Title, 40), truncate(tb.Author, 24), tb.ISBN})
	}

	printTable(cmd.OutOrStdout(), []string{"ID", "TITLE", "AUTHOR", "ISBN"}, rows)

	return nil
}
