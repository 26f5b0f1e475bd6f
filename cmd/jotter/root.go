package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/jotter/internal/platform"
	"github.com/aretw0/jotter/pkg/core"
)

var (
	verbose     bool
	configPath  string
	adapterName string
	storePath   string
	userID      string
	waitTimeout time.Duration

	// cfg is loaded once per invocation by the root PersistentPreRunE.
	cfg platform.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jotter",
	Short: "A live-query note store for the terminal and the web",
	Long: `Jotter keeps per-user notes in a directory, in memory or in Redis,
and serves filtered views that update as soon as the notes change.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = platform.ConfigFile
			if wd, err := os.Getwd(); err == nil {
				if root, err := platform.FindRoot(wd); err == nil {
					path = filepath.Join(root, platform.ConfigFile)
				}
			}
		}

		loaded, err := platform.LoadConfig(path)
		if err != nil {
			return err
		}
		cfg = loaded
		if adapterName != "" {
			cfg.Adapter = adapterName
		}
		if storePath != "" {
			if cfg.Adapter == platform.AdapterRedis {
				cfg.Redis.Addr = storePath
			} else {
				cfg.Path = storePath
			}
		}

		level := cfg.Level()
		if verbose {
			level = slog.LevelDebug
		}
		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), opts))
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: jotter.yaml at the store root)")
	rootCmd.PersistentFlags().StringVar(&adapterName, "adapter", "", "Store adapter: fs, memory or redis")
	rootCmd.PersistentFlags().StringVarP(&storePath, "path", "p", "", "Store directory (fs) or address (redis)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", os.Getenv(platform.EnvPrefix+"USER"), "User whose notes are used")
	rootCmd.PersistentFlags().DurationVar(&waitTimeout, "timeout", 10*time.Second, "How long to wait for the first view")
}

// openApp builds a session from the loaded configuration, signed in as --user.
func openApp(ctx context.Context) (*platform.App, error) {
	opts := append(cfg.Options(), platform.WithLogger(slog.Default()))
	app, err := platform.New(ctx, cfg.URI(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if userID == "" {
		_ = app.Close()
		return nil, fmt.Errorf("%w: pass --user or set %sUSER", core.ErrAuthRequired, platform.EnvPrefix)
	}
	if err := app.SetUser(ctx, userID); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

// awaitView waits for the first ready view of app.
func awaitView(ctx context.Context, app *platform.App) (core.View, error) {
	ctx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()
	v, err := app.Await(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return v, fmt.Errorf("no view after %s: %w", waitTimeout, err)
	}
	return v, err
}
