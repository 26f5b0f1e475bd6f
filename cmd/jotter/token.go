package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/jotter/internal/platform"
	"github.com/aretw0/jotter/pkg/auth"
	"github.com/aretw0/jotter/pkg/core"
)

var tokenEmail string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for --user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens, err := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.TokenTTL)
		if err != nil {
			return fmt.Errorf("auth.secret (or %sAUTH_SECRET) is required: %w", platform.EnvPrefix, err)
		}
		token, err := tokens.Issue(core.Identity{ID: userID, Email: tokenEmail})
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Email carried by the token")
}
