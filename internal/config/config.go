// Package config loads tasklist configuration from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fentz26/tasklist/internal/logging"
	"github.com/fentz26/tasklist/internal/persist"
	"github.com/fentz26/tasklist/internal/scheduler"
	"github.com/fentz26/tasklist/internal/validate"
)

// EnvPrefix prefixes environment overrides, e.g. TASKLIST_STORAGE_DRIVER.
const EnvPrefix = "TASKLIST"

// DefaultListen is the daemon's default address.
const DefaultListen = "127.0.0.1:7466"

// Config holds all tasklist settings.
type Config struct {
	Storage     StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Persistence scheduler.Config `mapstructure:"persistence" yaml:"persistence"`
	Validation  ValidationConfig `mapstructure:"validation" yaml:"validation"`
	Server      ServerConfig     `mapstructure:"server" yaml:"server"`
	Log         LogConfig        `mapstructure:"log" yaml:"log"`
}

// StorageConfig selects where the collection is kept.
type StorageConfig struct {
	// Driver is one of file, sqlite, redis or memory.
	Driver string `mapstructure:"driver" yaml:"driver"`
	// Path is the data file for file and sqlite. Empty means the per-user
	// data directory.
	Path      string `mapstructure:"path" yaml:"path,omitempty"`
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr,omitempty"`
	RedisKey  string `mapstructure:"redis_key" yaml:"redis_key,omitempty"`
}

// ValidationConfig bounds task text.
type ValidationConfig struct {
	MaxLength int `mapstructure:"max_length" yaml:"max_length"`
}

// ServerConfig configures the daemon's HTTP API.
type ServerConfig struct {
	Listen         string   `mapstructure:"listen" yaml:"listen"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns the default configuration. The daemon flushes
// pending changes in the background by default.
func DefaultConfig() *Config {
	persistence := scheduler.DefaultConfig()
	persistence.AutoFlush = true

	return &Config{
		Storage: StorageConfig{
			Driver:   persist.DriverFile,
			RedisKey: persist.DefaultRedisKey,
		},
		Persistence: persistence,
		Validation: ValidationConfig{
			MaxLength: validate.DefaultMaxLength,
		},
		Server: ServerConfig{
			Listen:         DefaultListen,
			AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatJSON,
		},
	}
}

// Dir returns the per-user tasklist directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(base, "tasklist"), nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads path, falling back to DefaultPath when path is empty, and
// applies TASKLIST_ environment overrides. A missing default file is not an
// error; a missing explicit file is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if explicit || !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides apply to keys the
// file does not mention.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.redis_addr", d.Storage.RedisAddr)
	v.SetDefault("storage.redis_key", d.Storage.RedisKey)
	v.SetDefault("persistence.debounce", d.Persistence.Debounce)
	v.SetDefault("persistence.auto_flush", d.Persistence.AutoFlush)
	v.SetDefault("persistence.auto_flush_interval", d.Persistence.AutoFlushInterval)
	v.SetDefault("validation.max_length", d.Validation.MaxLength)
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case persist.DriverFile, persist.DriverSQLite, persist.DriverMemory:
	case persist.DriverRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if err := c.Persistence.Validate(); err != nil {
		return fmt.Errorf("persistence: %w", err)
	}
	if c.Validation.MaxLength < 1 {
		return fmt.Errorf("validation.max_length must be at least 1")
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// DataPath returns the storage path, resolving an empty one to the per-user
// data directory with a name matching the driver.
func (c *Config) DataPath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if c.Storage.Driver == persist.DriverSQLite {
		return filepath.Join(dir, "tasks.db"), nil
	}
	return filepath.Join(dir, "tasks.json"), nil
}

// StorageOptions converts the storage settings for persist.Open.
func (c *Config) StorageOptions() (persist.Options, error) {
	opts := persist.Options{
		Driver:    c.Storage.Driver,
		RedisAddr: c.Storage.RedisAddr,
		RedisKey:  c.Storage.RedisKey,
	}
	if c.Storage.Driver == persist.DriverFile || c.Storage.Driver == persist.DriverSQLite {
		path, err := c.DataPath()
		if err != nil {
			return persist.Options{}, err
		}
		opts.Path = path
	}
	return opts, nil
}

// Render returns cfg as YAML.
func Render(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// Save writes cfg to path, creating parent directories if needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := Render(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
