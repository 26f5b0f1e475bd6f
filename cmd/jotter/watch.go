package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	jlifecycle "github.com/aretw0/jotter/pkg/adapters/lifecycle"
	"github.com/aretw0/jotter/pkg/core"
)

var watchLimit int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the filtered view every time it changes",
	Long: `Watch keeps a live query open and prints the view title, note count and
notes after every change, until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := listFilters()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()
		if err := app.SetFilters(ctx, filters); err != nil {
			return err
		}

		source := jlifecycle.NewSource(app.Watch(ctx))
		if err := source.Start(ctx); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printed := 0
		for ev := range source.Events() {
			view, ok := ev.(core.View)
			if !ok {
				continue
			}
			if view.Err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), ev)
				continue
			}
			if !view.Ready {
				continue
			}
			printView(out, view)
			printed++
			if watchLimit > 0 && printed >= watchLimit {
				cancel()
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&listSearch, "search", "", "Case-insensitive text search")
	watchCmd.Flags().StringSliceVar(&listTags, "tag", nil, "Only notes carrying any of these tags")
	watchCmd.Flags().BoolVar(&listFavorites, "favorites", false, "Only favorite notes")
	watchCmd.Flags().BoolVar(&listArchived, "archived", false, "Only archived notes")
	watchCmd.Flags().StringVar(&listSort, "sort", "dateUpdated", "Sort by dateCreated, dateUpdated or alphabetical")
	watchCmd.Flags().IntVar(&watchLimit, "limit", 0, "Exit after printing this many views (0 = never)")
}
