package platform

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/jotter/pkg/adapters/fs"
	"github.com/aretw0/jotter/pkg/adapters/memory"
	"github.com/aretw0/jotter/pkg/adapters/redis"
	"github.com/aretw0/jotter/pkg/core"
)

// Init builds and initializes the store selected by the options.
// The uri is adapter-specific: a directory for "fs", an address for "redis",
// ignored for "memory".
func Init(ctx context.Context, uri string, opts ...Option) (core.Store, error) {
	o := apply(opts)

	if o.store != nil {
		return o.store, nil
	}

	var (
		store core.Store
		err   error
	)
	switch o.adapter {
	case AdapterFS, "":
		store, err = initFS(uri, o)
	case AdapterMemory:
		store = memory.New(o.log())
	case AdapterRedis:
		store, err = initRedis(uri, o)
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
	if err != nil {
		return nil, err
	}

	if init, ok := store.(core.Initializer); ok {
		if err := init.Initialize(ctx); err != nil {
			closeStore(store)
			return nil, err
		}
	}

	if watch, _ := o.config["watch"].(bool); watch {
		if fsStore, ok := store.(*fs.Store); ok {
			if err := fsStore.Watch(ctx); err != nil {
				closeStore(store)
				return nil, err
			}
		}
	}
	return store, nil
}

func (o *options) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func initFS(path string, o *options) (core.Store, error) {
	format, _ := o.config["format"].(string)
	systemDir, _ := o.config["system_dir"].(string)
	mustExist, _ := o.config["must_exist"].(bool)
	strict, _ := o.config["strict"].(bool)
	tempDir, _ := o.config["temp_dir"].(bool)
	readOnly, _ := o.config["read_only"].(bool)
	errorHandler, _ := o.config["watcher_error_handler"].(func(error))

	devSafety := true
	if val, ok := o.config["dev_safety"].(bool); ok {
		devSafety = val
	}
	bypassSafety := readOnly || !devSafety
	useTemp := tempDir || (IsDevRun() && !bypassSafety)
	resolved := ResolveStorePath(path, useTemp)

	logger := o.log()
	if useTemp && resolved != path {
		logger.Warn("running in SAFE MODE (dev sandbox)", "original_path", path, "resolved_path", resolved)
	}

	return fs.NewStore(fs.Config{
		Path:         resolved,
		Format:       format,
		SystemDir:    systemDir,
		MustExist:    mustExist || readOnly,
		ReadOnly:     readOnly,
		Strict:       strict,
		Logger:       logger,
		ErrorHandler: errorHandler,
	})
}

func initRedis(addr string, o *options) (core.Store, error) {
	username, _ := o.config["redis_username"].(string)
	password, _ := o.config["redis_password"].(string)
	db, _ := o.config["redis_db"].(int)
	prefix, _ := o.config["redis_prefix"].(string)
	timeout, _ := o.config["operation_timeout"].(time.Duration)

	return redis.New(redis.Config{
		Addr:             addr,
		Username:         username,
		Password:         password,
		DB:               db,
		Prefix:           prefix,
		OperationTimeout: timeout,
		Logger:           o.log(),
	})
}

func closeStore(store core.Store) {
	if c, ok := store.(io.Closer); ok {
		_ = c.Close()
	}
}
