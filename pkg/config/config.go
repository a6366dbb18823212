// Package config provides YAML-based configuration loading for ejswitch.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	// AppName optional logical name of the node/application
	AppName string `mapstructure:"app_name"`

	// Log holds logging configuration
	Log LogConfig `mapstructure:"log"`

	// Router holds switch options
	Router RouterConfig `mapstructure:"router"`

	// Jacks lists the transport endpoints to bring up
	Jacks []JackConfig `mapstructure:"jacks"`

	// Identity controls the node's cryptographic identity
	Identity IdentityConfig `mapstructure:"identity"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// RouterConfig holds switch options.
type RouterConfig struct {
	// FrameLog enables the append-only activity log of observed frames.
	FrameLog bool `mapstructure:"frame_log"`
}

// JackConfig describes one transport endpoint.
// Example YAML:
//
//	jacks:
//	  - kind: udp
//	    host: "0.0.0.0"
//	    port: 6732
//	  - kind: tcp
//	    host: "0.0.0.0"
//	    port: 6733
//	  - kind: mem
//	    name: "local"
type JackConfig struct {
	Kind string `mapstructure:"kind"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Name is the endpoint name for mem jacks.
	Name string `mapstructure:"name"`
}

// IdentityConfig describes the node identity.
type IdentityConfig struct {
	// Name is the identity display name.
	Name string `mapstructure:"name"`
	// Location is the identity's routing address, e.g. ["local", null, "me"].
	Location []any `mapstructure:"location"`
	// Encryptor is the scheme descriptor, e.g. ["ed25519", "<key>"].
	// Empty means generate a fresh ed25519 key at startup.
	Encryptor []any `mapstructure:"encryptor"`
	// CacheFile optionally points at a serialized identity cache to preload.
	CacheFile string `mapstructure:"cache_file"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		AppName: "ejswitch-node",
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stdout"},
			Development: true,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/ejswitch.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Router: RouterConfig{FrameLog: true},
		Jacks: []JackConfig{
			{Kind: "udp", Host: "0.0.0.0", Port: 6732},
		},
	}
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix EJSWITCH and `.`/`-` are replaced
// with `_`. Example: EJSWITCH_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("EJSWITCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("app_name", cfg.AppName)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("router.frame_log", cfg.Router.FrameLog)
	v.SetDefault("jacks", cfg.Jacks)
	v.SetDefault("identity.name", cfg.Identity.Name)
	v.SetDefault("identity.cache_file", cfg.Identity.CacheFile)

	// Choose config file
	if path == "" {
		if envPath := os.Getenv("EJSWITCH_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search common locations with base name `ejswitch`
		v.SetConfigName("ejswitch")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".ejswitch"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch lvl {
	case "debug", "info", "warn", "warning", "error":
		// ok
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}

	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stdout"}
	}
	for i := range c.Jacks {
		j := &c.Jacks[i]
		j.Kind = strings.ToLower(strings.TrimSpace(j.Kind))
		switch j.Kind {
		case "udp", "tcp":
			if j.Host == "" {
				j.Host = "0.0.0.0"
			}
			if j.Port <= 0 || j.Port > 65535 {
				return fmt.Errorf("jack %d: invalid port %d", i, j.Port)
			}
		case "mem":
			if j.Name == "" {
				return fmt.Errorf("jack %d: mem jack needs a name", i)
			}
		default:
			return fmt.Errorf("jack %d: unknown kind %q", i, j.Kind)
		}
	}
	return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
