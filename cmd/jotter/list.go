package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/jotter/pkg/core"
)

var (
	listJSON      bool
	listSearch    string
	listTags      []string
	listFavorites bool
	listArchived  bool
	listSort      string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the notes matching the filters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := listFilters()
		if err != nil {
			return err
		}

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.SetFilters(cmd.Context(), filters); err != nil {
			return err
		}
		view, err := awaitView(cmd.Context(), app)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if listJSON {
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			return encoder.Encode(view.Notes)
		}
		printView(out, view)
		return nil
	},
}

func listFilters() (core.NoteFilters, error) {
	sortBy, err := core.ParseSortOption(listSort)
	if err != nil {
		return core.NoteFilters{}, err
	}
	return core.NoteFilters{
		SearchQuery:   listSearch,
		SelectedTags:  core.NormalizeTags(listTags),
		ShowFavorites: listFavorites,
		ShowArchived:  listArchived,
		SortBy:        sortBy,
	}, nil
}

func printView(out io.Writer, view core.View) {
	fmt.Fprintf(out, "%s (%s)\n", view, view.Filters.SortBy.Label())
	for _, n := range view.Notes {
		marker := " "
		if n.IsFavorite {
			marker = "*"
		}
		line := fmt.Sprintf("%s %s - %s", marker, n.ID, n.Title)
		if len(n.Tags) > 0 {
			line += " [" + strings.Join(n.Tags, ", ") + "]"
		}
		fmt.Fprintln(out, line)
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().StringVar(&listSearch, "search", "", "Case-insensitive text search")
	listCmd.Flags().StringSliceVar(&listTags, "tag", nil, "Only notes carrying any of these tags")
	listCmd.Flags().BoolVar(&listFavorites, "favorites", false, "Only favorite notes")
	listCmd.Flags().BoolVar(&listArchived, "archived", false, "Only archived notes")
	listCmd.Flags().StringVar(&listSort, "sort", "dateUpdated", "Sort by dateCreated, dateUpdated or alphabetical")
}
