package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/jotter/pkg/core"
)

var (
	noteTitle    string
	noteContent  string
	noteTags     []string
	noteColor    string
	noteFavorite bool
)

// resolveColor accepts a palette name or value.
func resolveColor(key string) (string, error) {
	if key == "" {
		return "", nil
	}
	c, ok := core.LookupColor(key)
	if !ok {
		return "", fmt.Errorf("unknown color %q", key)
	}
	return c.Light, nil
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a note",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		color, err := resolveColor(noteColor)
		if err != nil {
			return err
		}
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		id, err := app.Create(cmd.Context(), core.NoteInput{
			Title:      noteTitle,
			Content:    noteContent,
			Tags:       noteTags,
			Color:      color,
			IsFavorite: noteFavorite,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change the given fields of a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch core.NotePatch
		flags := cmd.Flags()
		if flags.Changed("title") {
			patch.Title = &noteTitle
		}
		if flags.Changed("content") {
			patch.Content = &noteContent
		}
		if flags.Changed("tag") {
			patch.Tags = &noteTags
		}
		if flags.Changed("color") {
			color, err := resolveColor(noteColor)
			if err != nil {
				return err
			}
			patch.Color = &color
		}
		if patch.IsEmpty() {
			return fmt.Errorf("nothing to update: pass --title, --content, --tag or --color")
		}

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Update(cmd.Context(), args[0], patch); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Note '%s' updated.\n", args[0])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Note '%s' deleted.\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd, updateCmd, deleteCmd)
	for _, cmd := range []*cobra.Command{createCmd, updateCmd} {
		cmd.Flags().StringVar(&noteTitle, "title", "", "Note title")
		cmd.Flags().StringVar(&noteContent, "content", "", "Note content")
		cmd.Flags().StringSliceVar(&noteTags, "tag", nil, "Note tags")
		cmd.Flags().StringVar(&noteColor, "color", "", "Palette color name or value")
	}
	createCmd.Flags().BoolVar(&noteFavorite, "favorite", false, "Mark the note as favorite")
}
