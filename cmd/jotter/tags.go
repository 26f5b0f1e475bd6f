package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var tagsJSON bool

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List every tag with the number of active notes carrying it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		view, err := awaitView(cmd.Context(), app)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if tagsJSON {
			return json.NewEncoder(out).Encode(view.TagCounts)
		}
		for _, tag := range view.Tags {
			fmt.Fprintf(out, "%s\t%d\n", tag, view.TagCounts[tag])
		}
		return nil
	},
}

var countsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Show the note counts used for navigation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		view, err := awaitView(cmd.Context(), app)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "All Notes\t%d\n", view.Counts.Total)
		fmt.Fprintf(out, "Favourites\t%d\n", view.Counts.Favorites)
		fmt.Fprintf(out, "Archived\t%d\n", view.Counts.Archived)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tagsCmd, countsCmd)
	tagsCmd.Flags().BoolVar(&tagsJSON, "json", false, "Output in JSON format")
}
