package main

import (
	"encoding/json"

	"github.com/aretw0/introspection"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the internal state of the session and its store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if _, err := awaitView(cmd.Context(), app); err != nil {
			return err
		}

		report := map[string]any{
			app.ComponentType(): app.State(),
		}
		if comp, ok := app.Store.(introspection.Component); ok {
			if in, ok := app.Store.(introspection.Introspectable); ok {
				report[comp.ComponentType()] = in.State()
			}
		}

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
