// Package config loads console settings from defaults, an optional YAML
// file and ARMPILOT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gwillem/armpilot/pkg/robot"
)

const (
	DefaultServerURL      = "http://localhost:8000"
	DefaultTickInterval   = 50 * time.Millisecond
	DefaultDebounceFloor  = 40 * time.Millisecond
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultSliderSettle   = 300 * time.Millisecond
	DefaultReleaseAfter   = 600 * time.Millisecond
	DefaultRangeStep      = 2
	DefaultRequestTimeout = 5 * time.Second
	DefaultLogBuffer      = 200
	DefaultReconnectMin   = time.Second
	DefaultReconnectMax   = 5 * time.Second
)

// Config holds every tunable of the console.
type Config struct {
	ServerURL       string        `mapstructure:"server-url"`
	TickInterval    time.Duration `mapstructure:"tick-interval"`
	DebounceFloor   time.Duration `mapstructure:"debounce-floor"`
	PollInterval    time.Duration `mapstructure:"poll-interval"`
	SliderSettle    time.Duration `mapstructure:"slider-settle"`
	ReleaseAfter    time.Duration `mapstructure:"release-after"`
	RangeStep       int           `mapstructure:"range-step"`
	RequestTimeout  time.Duration `mapstructure:"request-timeout"`
	LogBuffer       int           `mapstructure:"log-buffer"`
	CalibrationFile string        `mapstructure:"calibration-file"`
	ReconnectMin    time.Duration `mapstructure:"reconnect-min"`
	ReconnectMax    time.Duration `mapstructure:"reconnect-max"`
}

// DefaultPath returns ~/.config/armpilot/config.yml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "armpilot", "config.yml"), nil
}

// Load reads the configuration. An empty path uses DefaultPath; a missing
// file is not an error.
func Load(path string) (Config, error) {
	var cfg Config

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	v := viper.New()
	v.SetEnvPrefix("ARMPILOT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("server-url", DefaultServerURL)
	v.SetDefault("tick-interval", DefaultTickInterval)
	v.SetDefault("debounce-floor", DefaultDebounceFloor)
	v.SetDefault("poll-interval", DefaultPollInterval)
	v.SetDefault("slider-settle", DefaultSliderSettle)
	v.SetDefault("release-after", DefaultReleaseAfter)
	v.SetDefault("range-step", DefaultRangeStep)
	v.SetDefault("request-timeout", DefaultRequestTimeout)
	v.SetDefault("log-buffer", DefaultLogBuffer)
	v.SetDefault("calibration-file", robot.DefaultCalibrationFile)
	v.SetDefault("reconnect-min", DefaultReconnectMin)
	v.SetDefault("reconnect-max", DefaultReconnectMax)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the timing relationships the dispatch loop relies on.
func (c Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server-url is empty")
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"tick-interval", c.TickInterval},
		{"debounce-floor", c.DebounceFloor},
		{"poll-interval", c.PollInterval},
		{"slider-settle", c.SliderSettle},
		{"release-after", c.ReleaseAfter},
		{"request-timeout", c.RequestTimeout},
		{"reconnect-min", c.ReconnectMin},
		{"reconnect-max", c.ReconnectMax},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", d.name, d.d)
		}
	}
	if c.DebounceFloor >= c.TickInterval {
		return fmt.Errorf("debounce-floor (%v) must be shorter than tick-interval (%v)", c.DebounceFloor, c.TickInterval)
	}
	if c.ReconnectMax < c.ReconnectMin {
		return fmt.Errorf("reconnect-max (%v) is below reconnect-min (%v)", c.ReconnectMax, c.ReconnectMin)
	}
	if c.RangeStep < 1 {
		return fmt.Errorf("range-step must be at least 1, got %d", c.RangeStep)
	}
	if c.LogBuffer < 1 {
		return fmt.Errorf("log-buffer must be at least 1, got %d", c.LogBuffer)
	}
	return nil
}
