// Package jotter is the Composition Root for the jotter note-taking backend.
//
// It connects the session logic of pkg/core with the store adapters using the
// Hexagonal Architecture pattern.
//
// A session (core.Service) turns the user's filters into a live query on the
// selected store, keeps it open, and derives what a client displays (the
// filtered notes, badge counts and tag counts) every time the store pushes a
// new result. Changing a filter releases exactly one store listener and opens
// exactly one replacement.
//
// Adapters:
//
//   - **fs** (default): one JSON or YAML file per note, grouped by user directory,
//     optionally following edits made outside the process.
//   - **memory**: process-local, used by tests and demos.
//   - **redis**: notes in Redis, changes pushed over pub/sub.
//
// Usage:
//
//	app, err := jotter.New(ctx, "./notes",
//		jotter.WithFormat("yaml"),
//		jotter.WithLogger(logger),
//	)
//	defer app.Close()
//
//	_ = app.SetUser(ctx, "alice")
//	_ = app.SetFilters(ctx, jotter.NoteFilters{SelectedTags: []string{"Work"}})
//	for view := range app.Watch(ctx) {
//		fmt.Println(view)
//	}
package jotter
