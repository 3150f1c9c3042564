package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ServerURL != DefaultServerURL {
		t.Errorf("ServerURL = %q, want %q", cfg.ServerURL, DefaultServerURL)
	}
	if cfg.TickInterval != 50*time.Millisecond || cfg.DebounceFloor != 40*time.Millisecond {
		t.Errorf("tick/debounce = %v/%v, want 50ms/40ms", cfg.TickInterval, cfg.DebounceFloor)
	}
	if cfg.PollInterval != 100*time.Millisecond {
		t.Errorf("PollInterval = %v, want 100ms", cfg.PollInterval)
	}
	if cfg.RangeStep != 2 {
		t.Errorf("RangeStep = %d, want 2", cfg.RangeStep)
	}
	if cfg.CalibrationFile != "calibration.json" {
		t.Errorf("CalibrationFile = %q, want calibration.json", cfg.CalibrationFile)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := "server-url: http://arm.local:8000\npoll-interval: 250ms\nlog-buffer: 50\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ARMPILOT_RANGE_STEP", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ServerURL != "http://arm.local:8000" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v, want 250ms", cfg.PollInterval)
	}
	if cfg.LogBuffer != 50 {
		t.Errorf("LogBuffer = %d, want 50", cfg.LogBuffer)
	}
	if cfg.RangeStep != 3 {
		t.Errorf("RangeStep = %d, want 3 from env", cfg.RangeStep)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		ServerURL:      DefaultServerURL,
		TickInterval:   DefaultTickInterval,
		DebounceFloor:  DefaultDebounceFloor,
		PollInterval:   DefaultPollInterval,
		SliderSettle:   DefaultSliderSettle,
		ReleaseAfter:   DefaultReleaseAfter,
		RangeStep:      DefaultRangeStep,
		RequestTimeout: DefaultRequestTimeout,
		LogBuffer:      DefaultLogBuffer,
		ReconnectMin:   DefaultReconnectMin,
		ReconnectMax:   DefaultReconnectMax,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"debounce equals tick", func(c *Config) { c.DebounceFloor = c.TickInterval }, "debounce-floor"},
		{"zero poll", func(c *Config) { c.PollInterval = 0 }, "poll-interval"},
		{"negative tick", func(c *Config) { c.TickInterval = -time.Millisecond }, "tick-interval"},
		{"reconnect inverted", func(c *Config) { c.ReconnectMax = 500 * time.Millisecond }, "reconnect-max"},
		{"no server", func(c *Config) { c.ServerURL = "" }, "server-url"},
		{"range step", func(c *Config) { c.RangeStep = 0 }, "range-step"},
	}
	for _, tt := range tests {
		c := base
		tt.mutate(&c)
		err := c.Validate()
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: Validate() = %v, want error mentioning %q", tt.name, err, tt.want)
		}
	}
}
