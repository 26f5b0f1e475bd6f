package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "JOTTER_"

// Config is the file form of the options, read from jotter.yaml.
type Config struct {
	Adapter      string        `yaml:"adapter"`
	Path         string        `yaml:"path"`
	Format       string        `yaml:"format"`
	SystemDir    string        `yaml:"system_dir"`
	ReadOnly     bool          `yaml:"read_only"`
	Strict       bool          `yaml:"strict"`
	Watch        bool          `yaml:"watch"`
	MaxTagValues int           `yaml:"max_tag_values"`
	EventBuffer  int           `yaml:"event_buffer"`
	LogLevel     string        `yaml:"log_level"`
	Redis        RedisConfig   `yaml:"redis"`
	HTTP         HTTPConfig    `yaml:"http"`
	Auth         AuthConfig    `yaml:"auth"`
	Timeout      time.Duration `yaml:"operation_timeout"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Adapter:  AdapterFS,
		Path:     ".",
		Format:   "json",
		LogLevel: "info",
		Redis:    RedisConfig{Addr: "localhost:6379"},
		HTTP:     HTTPConfig{Addr: ":8080"},
		Auth:     AuthConfig{TokenTTL: 24 * time.Hour},
	}
}

// LoadConfig reads path on top of DefaultConfig and applies the JOTTER_*
// environment, after loading a .env file next to it when one exists.
// A missing config file is not an error; an empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	envFile := ".env"
	if path != "" {
		envFile = filepath.Join(filepath.Dir(path), ".env")
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"ADAPTER":        &c.Adapter,
		"PATH":           &c.Path,
		"FORMAT":         &c.Format,
		"SYSTEM_DIR":     &c.SystemDir,
		"LOG_LEVEL":      &c.LogLevel,
		"REDIS_ADDR":     &c.Redis.Addr,
		"REDIS_USERNAME": &c.Redis.Username,
		"REDIS_PASSWORD": &c.Redis.Password,
		"REDIS_PREFIX":   &c.Redis.Prefix,
		"HTTP_ADDR":      &c.HTTP.Addr,
		"AUTH_SECRET":    &c.Auth.Secret,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"READ_ONLY": &c.ReadOnly,
		"STRICT":    &c.Strict,
		"WATCH":     &c.Watch,
	}
	for key, dst := range bools {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}

	ints := map[string]*int{
		"REDIS_DB":       &c.Redis.DB,
		"MAX_TAG_VALUES": &c.MaxTagValues,
		"EVENT_BUFFER":   &c.EventBuffer,
	}
	for key, dst := range ints {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"AUTH_TOKEN_TTL":    &c.Auth.TokenTTL,
		"OPERATION_TIMEOUT": &c.Timeout,
	}
	for key, dst := range durations {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = d
		}
	}
	return nil
}

// URI returns the store location for the configured adapter.
func (c Config) URI() string {
	if c.Adapter == AdapterRedis {
		return c.Redis.Addr
	}
	return c.Path
}

// Level parses LogLevel, falling back to info.
func (c Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Options converts the configuration into functional options.
func (c Config) Options() []Option {
	opts := []Option{
		WithAdapter(c.Adapter),
		WithReadOnly(c.ReadOnly),
		WithStrict(c.Strict),
		WithWatch(c.Watch),
	}
	if c.Format != "" {
		opts = append(opts, WithFormat(c.Format))
	}
	if c.SystemDir != "" {
		opts = append(opts, WithSystemDir(c.SystemDir))
	}
	if c.MaxTagValues > 0 {
		opts = append(opts, WithMaxTagValues(c.MaxTagValues))
	}
	if c.EventBuffer > 0 {
		opts = append(opts, WithEventBuffer(c.EventBuffer))
	}
	if c.Timeout > 0 {
		opts = append(opts, WithOperationTimeout(c.Timeout))
	}
	if c.Adapter == AdapterRedis {
		opts = append(opts, WithRedisAuth(c.Redis.Username, c.Redis.Password, c.Redis.DB))
		if c.Redis.Prefix != "" {
			opts = append(opts, WithRedisPrefix(c.Redis.Prefix))
		}
	}
	return opts
}
