package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/jotter/pkg/core"
)

// Adapter names accepted by WithAdapter.
const (
	AdapterMemory = "memory"
	AdapterFS     = "fs"
	AdapterRedis  = "redis"
)

// options holds the internal configuration for a jotter instance.
type options struct {
	store   core.Store
	logger  *slog.Logger
	adapter string
	config  map[string]interface{}
}

// Option defines a functional option for configuring jotter.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		adapter: AdapterFS,
		config:  make(map[string]interface{}),
	}
}

func apply(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger for the service and its store.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStore injects a store (e.g. a mock). The adapter option is ignored.
func WithStore(store core.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithAdapter selects the store by name: "fs" (default), "memory" or "redis".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithFormat sets the file format of new notes for the fs adapter ("json" or "yaml").
func WithFormat(format string) Option {
	return func(o *options) {
		o.config["format"] = format
	}
}

// WithSystemDir sets the hidden directory of the fs adapter. Defaults to ".jotter".
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.config["system_dir"] = name
	}
}

// WithMustExist requires the store directory to exist already.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.config["must_exist"] = must
	}
}

// WithReadOnly rejects every write with core.ErrReadOnly.
// It also bypasses the dev sandbox, since nothing can be damaged.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.config["read_only"] = enabled
	}
}

// WithStrict rejects note files carrying unknown fields.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.config["strict"] = strict
	}
}

// WithWatch makes the fs adapter follow edits made outside the process.
func WithWatch(enabled bool) Option {
	return func(o *options) {
		o.config["watch"] = enabled
	}
}

// WithWatcherErrorHandler receives runtime failures of the fs watcher,
// which are otherwise only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.config["watcher_error_handler"] = fn
	}
}

// WithForceTemp forces the fs store into a temporary directory.
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.config["temp_dir"] = force
	}
}

// WithDevSafety controls the sandbox used under `go run` and `go test`.
// By default (true) the fs store is re-rooted into a temporary directory.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.config["dev_safety"] = enabled
	}
}

// WithRedisAuth sets the credentials and database of the redis adapter.
func WithRedisAuth(username, password string, db int) Option {
	return func(o *options) {
		o.config["redis_username"] = username
		o.config["redis_password"] = password
		o.config["redis_db"] = db
	}
}

// WithRedisPrefix namespaces redis keys and channels. Defaults to "jotter".
func WithRedisPrefix(prefix string) Option {
	return func(o *options) {
		o.config["redis_prefix"] = prefix
	}
}

// WithOperationTimeout bounds each remote call of the redis adapter.
func WithOperationTimeout(d time.Duration) Option {
	return func(o *options) {
		o.config["operation_timeout"] = d
	}
}

// WithMaxTagValues caps how many tags one query may OR together.
// Zero means core.DefaultMaxTagValues.
func WithMaxTagValues(n int) Option {
	return func(o *options) {
		o.config["max_tag_values"] = n
	}
}

// WithEventBuffer sets the capacity of each view listener. Zero means 1.
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.config["event_buffer"] = size
	}
}
