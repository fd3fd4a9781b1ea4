// Package kernelconfig loads the kernel's tuning knobs (tick interval,
// deadline grace, log level) from file and environment via spf13/viper,
// resolving the default config path with adrg/xdg and reloading on edit
// through viper's fsnotify-backed watch — the same trio the teacher wires
// for its own CLI configuration.
package kernelconfig

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/adrg/xdg"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds the engine tuning knobs loaded from file/env.
type Config struct {
	// TickInterval is the pacing between executor ticks, in milliseconds.
	TickInterval int `mapstructure:"tick_interval_ms"`
	// DeadlineGrace is how long past a missed deadline's instant the
	// executor waits before reporting it, in milliseconds.
	DeadlineGrace int `mapstructure:"deadline_grace_ms"`
	// LogLevel is "debug" or "info".
	LogLevel string `mapstructure:"log_level"`
	// LogFile, if set, is a path to additionally write JSON logs to.
	LogFile string `mapstructure:"log_file"`
}

func defaults() Config {
	return Config{
		TickInterval:  1000,
		DeadlineGrace: 0,
		LogLevel:      "info",
	}
}

// ConfigDir is the default directory config.yaml is resolved from, mirroring
// the teacher's $HOME/.config/<app>/ convention but rooted at xdg.ConfigHome.
var ConfigDir = func() string {
	dir, err := xdg.ConfigFile("taskkernel")
	if err != nil {
		return xdg.ConfigHome
	}
	return dir
}()

// Option configures Load.
type Option func(*viper.Viper)

// WithConfigFile pins an explicit config file path, bypassing the default
// search path (mirrors the teacher's --config flag override).
func WithConfigFile(path string) Option {
	return func(v *viper.Viper) {
		if path != "" {
			v.SetConfigFile(path)
		}
	}
}

// WithOnChange registers a callback fired whenever the underlying config
// file changes on disk, for live reload of tuning knobs between ticks.
func WithOnChange(fn func(Config)) Option {
	return func(v *viper.Viper) {
		v.OnConfigChange(func(_ fsnotify.Event) {
			var cfg Config
			if err := v.Unmarshal(&cfg); err == nil {
				fn(cfg)
			}
		})
		v.WatchConfig()
	}
}

// Load reads the configuration, from highest precedence down: environment
// variables prefixed TASKKERNEL_, then the config file (the explicit file
// when one is given, otherwise config.yaml under ConfigDir), then Config's
// defaults. A missing config file is not an error — defaults and
// environment overrides still apply.
func Load(opts ...Option) (Config, error) {
	v := viper.New()
	v.AddConfigPath(ConfigDir)
	v.SetConfigType("yaml")
	v.SetConfigName("config")

	v.SetEnvPrefix("taskkernel")
	v.AutomaticEnv()

	d := defaults()
	v.SetDefault("tick_interval_ms", d.TickInterval)
	v.SetDefault("deadline_grace_ms", d.DeadlineGrace)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", d.LogFile)

	for _, opt := range opts {
		opt(v)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
