package jotter

import (
	"context"
	_ "embed"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/jotter/internal/platform"
	"github.com/aretw0/jotter/pkg/core"
)

//go:embed VERSION
var version string

// Version is the release of the library.
var Version = strings.TrimSpace(version)

// --- Types ---

// App is a session bundled with the store it was built on.
type App = platform.App

// Config is the file form of the options, read from jotter.yaml.
type Config = platform.Config

type (
	Note        = core.Note
	NoteInput   = core.NoteInput
	NotePatch   = core.NotePatch
	NoteFilters = core.NoteFilters
	View        = core.View
)

// Adapter names accepted by WithAdapter.
const (
	AdapterMemory = platform.AdapterMemory
	AdapterFS     = platform.AdapterFS
	AdapterRedis  = platform.AdapterRedis
)

// --- Configuration ---

// Option defines a functional option for configuring jotter.
type Option = platform.Option

// WithLogger sets the logger for the session and its store.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithStore allows injecting a custom store.
func WithStore(store core.Store) Option {
	return platform.WithStore(store)
}

// WithAdapter selects the store by name.
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithFormat sets the file format of new notes ("json" or "yaml").
func WithFormat(format string) Option {
	return platform.WithFormat(format)
}

// WithSystemDir sets the hidden directory name (e.g. ".jotter").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithMustExist ensures the store directory must already exist.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithReadOnly rejects every write.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithStrict rejects note files with unknown fields.
func WithStrict(strict bool) Option {
	return platform.WithStrict(strict)
}

// WithWatch follows edits made to the store directory by other processes.
func WithWatch(enabled bool) Option {
	return platform.WithWatch(enabled)
}

// WithWatcherErrorHandler receives runtime failures of the watcher.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithDevSafety controls the sandbox used under `go run` and `go test`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithRedisAuth sets the credentials and database of the redis adapter.
func WithRedisAuth(username, password string, db int) Option {
	return platform.WithRedisAuth(username, password, db)
}

// WithRedisPrefix namespaces redis keys and channels.
func WithRedisPrefix(prefix string) Option {
	return platform.WithRedisPrefix(prefix)
}

// WithOperationTimeout bounds each remote call.
func WithOperationTimeout(d time.Duration) Option {
	return platform.WithOperationTimeout(d)
}

// WithMaxTagValues caps how many tags one query may OR together.
func WithMaxTagValues(n int) Option {
	return platform.WithMaxTagValues(n)
}

// WithEventBuffer sets the capacity of each view listener.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// --- Factory ---

// New creates a session over the store selected by opts.
func New(ctx context.Context, uri string, opts ...Option) (*App, error) {
	return platform.New(ctx, uri, opts...)
}

// Init builds and initializes a store without a session.
func Init(ctx context.Context, uri string, opts ...Option) (core.Store, error) {
	return platform.Init(ctx, uri, opts...)
}

// LoadConfig reads jotter.yaml (or path) and the JOTTER_* environment.
func LoadConfig(path string) (Config, error) {
	return platform.LoadConfig(path)
}

// --- Safety & Utils ---

// ResolveStorePath determines the actual store directory based on safety rules.
func ResolveStorePath(userPath string, forceTemp bool) string {
	return platform.ResolveStorePath(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot looks upwards for a directory holding a store or a jotter.yaml.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
