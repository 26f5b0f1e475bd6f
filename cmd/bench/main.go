package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/jotter/internal/platform"
	"github.com/aretw0/jotter/pkg/adapters/fs"
	"github.com/aretw0/jotter/pkg/core"
)

func main() {
	count := flag.Int("count", 1000, "Number of notes to generate")
	format := flag.String("format", "json", "Note file format (json or yaml)")
	keep := flag.Bool("keep", false, "Keep the benchmark store after running")
	flag.Parse()

	benchDir, err := os.MkdirTemp("", "jotter_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	fmt.Printf("Generating %d notes in %s...\n", *count, benchDir)
	startGen := time.Now()
	if err := generate(benchDir, *format, *count); err != nil {
		panic(err)
	}
	fmt.Printf("Generation took: %v\n", time.Since(startGen))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := []platform.Option{
		platform.WithLogger(logger),
		platform.WithFormat(*format),
		platform.WithDevSafety(false),
	}
	ctx := context.Background()

	// Run 1: Cold (no index, every file is parsed)
	fmt.Println("Opening store (Run 1 - Cold)...")
	cold, coldNotes := firstView(ctx, benchDir, opts)

	// Run 2: Warm (a new process would find .jotter/index.json)
	fmt.Println("Opening store (Run 2 - Warm)...")
	warm, warmNotes := firstView(ctx, benchDir, opts)

	// Run 3: a filter change on an open session
	app, err := platform.New(ctx, benchDir, opts...)
	if err != nil {
		panic(err)
	}
	defer app.Close()
	if err := app.SetUser(ctx, "bench"); err != nil {
		panic(err)
	}
	if _, err := app.Await(ctx); err != nil {
		panic(err)
	}
	startFilter := time.Now()
	if err := app.SetFilters(ctx, core.NoteFilters{SelectedTags: []string{"even"}, SortBy: core.SortAlphabetical}); err != nil {
		panic(err)
	}
	view, err := app.Await(ctx)
	if err != nil {
		panic(err)
	}
	filter := time.Since(startFilter)

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d notes, %s):\n", *count, *format)
	fmt.Printf("  Cold:   %v (Items: %d)\n", cold, coldNotes)
	fmt.Printf("  Warm:   %v (Items: %d)\n", warm, warmNotes)
	fmt.Printf("  Filter: %v (Items: %d)\n", filter, len(view.Notes))
	fmt.Printf("--------------------------------------------------\n")
}

// generate writes count notes for the "bench" user directly to disk, as an
// existing store would look.
func generate(dir, format string, count int) error {
	ser, err := fs.SerializerFor(format, false)
	if err != nil {
		return err
	}
	userDir := filepath.Join(dir, "bench")
	if err := os.MkdirAll(userDir, 0755); err != nil {
		return err
	}
	now := time.Now()
	for i := 0; i < count; i++ {
		tag := "odd"
		if i%2 == 0 {
			tag = "even"
		}
		id := fmt.Sprintf("note_%d", i)
		n := core.NewNote(id, "bench", core.NoteInput{
			Title:   fmt.Sprintf("Benchmark Note %d", i),
			Content: "This is a test note.",
			Tags:    []string{"benchmark", tag},
		}, now.Add(time.Duration(i)*time.Second))
		data, err := ser.Marshal(n)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(userDir, id+ser.Ext()), data, 0644); err != nil {
			return err
		}
	}
	return nil
}

// firstView measures opening the store and receiving the first ready view.
func firstView(ctx context.Context, dir string, opts []platform.Option) (time.Duration, int) {
	start := time.Now()
	app, err := platform.New(ctx, dir, opts...)
	if err != nil {
		panic(err)
	}
	defer app.Close()
	if err := app.SetUser(ctx, "bench"); err != nil {
		panic(err)
	}
	view, err := app.Await(ctx)
	if err != nil {
		panic(err)
	}
	return time.Since(start), len(view.Notes)
}
