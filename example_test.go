package jotter_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aretw0/jotter"
)

// Example_basic creates a store in a temporary directory, saves a note and
// waits for the live view to include it.
func Example_basic() {
	tmpDir, err := os.MkdirTemp("", "jotter-example-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	ctx := context.Background()
	app, err := jotter.New(ctx, tmpDir, jotter.WithFormat("yaml"))
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close()

	if err := app.SetUser(ctx, "gopher"); err != nil {
		log.Fatal(err)
	}
	if _, err := app.Create(ctx, jotter.NoteInput{Title: "Hello", Tags: []string{"example"}}); err != nil {
		log.Fatal(err)
	}

	for view := range app.Watch(ctx) {
		if view.Ready && len(view.Notes) == 1 {
			fmt.Println(view)
			fmt.Println(view.TagCounts["example"])
			break
		}
	}
	// Output:
	// All Notes: 1 note
	// 1
}

// Example_filters shows that filters narrow the view while the counts keep
// describing every note of the user.
func Example_filters() {
	ctx := context.Background()
	app, err := jotter.New(ctx, "", jotter.WithAdapter(jotter.AdapterMemory))
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close()

	_ = app.SetUser(ctx, "gopher")
	_, _ = app.Create(ctx, jotter.NoteInput{Title: "Standup", Tags: []string{"Work"}})
	_, _ = app.Create(ctx, jotter.NoteInput{Title: "Groceries", Tags: []string{"Home"}, IsFavorite: true})
	_ = app.SetFilters(ctx, jotter.NoteFilters{SelectedTags: []string{"Work"}})

	for view := range app.Watch(ctx) {
		if view.Ready && len(view.Notes) == 1 && view.Counts.Total == 2 {
			fmt.Println(view)
			fmt.Printf("total=%d favorites=%d\n", view.Counts.Total, view.Counts.Favorites)
			break
		}
	}
	// Output:
	// Work Notes: 1 note
	// total=2 favorites=1
}
