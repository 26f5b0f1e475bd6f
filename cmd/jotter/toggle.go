package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/jotter/internal/platform"
)

func toggleCommand(use, short, done string, toggle func(*platform.App, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			// The current flag is read from the live catalog.
			if _, err := awaitView(cmd.Context(), app); err != nil {
				return err
			}
			if err := toggle(app, cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Note '%s' %s.\n", args[0], done)
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(
		toggleCommand("favorite", "Toggle the favorite flag of a note", "favorite toggled",
			func(a *platform.App, ctx context.Context, id string) error { return a.ToggleFavorite(ctx, id) }),
		toggleCommand("archive", "Toggle the archived flag of a note", "archive toggled",
			func(a *platform.App, ctx context.Context, id string) error { return a.ToggleArchive(ctx, id) }),
	)
}
