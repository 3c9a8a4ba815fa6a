package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// BackendConfig describes how to reach the simulation backend service.
type BackendConfig struct {
	// BaseURL is the HTTP base URL of the backend, e.g. "http://localhost:8080".
	BaseURL string `yaml:"base_url" toml:"base_url"`
	// StreamURL is the push-channel (WebSocket) URL. If empty it is derived
	// from BaseURL by swapping the scheme and appending /api/simulation/stream.
	StreamURL string `yaml:"stream_url,omitempty" toml:"stream_url,omitempty"`
	// CommandTimeout bounds every REST command round trip. A hung backend
	// call otherwise leaves the UI pending forever.
	CommandTimeout Duration `yaml:"command_timeout,omitempty" toml:"command_timeout,omitempty"`
}

// TelemetryConfig tunes the synchronizer's timers.
type TelemetryConfig struct {
	// ClockTick is the real-time clock recompute cadence while running.
	ClockTick Duration `yaml:"clock_tick,omitempty" toml:"clock_tick,omitempty"`
	// ZoomPollInterval is the cadence of the authoritative zoom fetch
	// while a process is running or paused.
	ZoomPollInterval Duration `yaml:"zoom_poll_interval,omitempty" toml:"zoom_poll_interval,omitempty"`
}

// SessionsConfig configures the local saved-session archive.
type SessionsConfig struct {
	// ArchiveDir is where saved session metadata is written.
	// Defaults to ~/.flowdeck/sessions.
	ArchiveDir string `yaml:"archive_dir,omitempty" toml:"archive_dir,omitempty"`
}

// Config is the root of flowdeck.yml.
type Config struct {
	Version   string          `yaml:"version" toml:"version"`
	Backend   BackendConfig   `yaml:"backend" toml:"backend"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty" toml:"telemetry,omitempty"`
	Sessions  SessionsConfig  `yaml:"sessions,omitempty" toml:"sessions,omitempty"`

	// Extensions captures unknown top-level sections so other flowdeck
	// tools can carry their own configuration in the same file.
	Extensions map[string]interface{} `yaml:",inline" toml:"-"`
}

// Defaults used when flowdeck.yml omits a value.
const (
	DefaultCommandTimeout   = 15 * time.Second
	DefaultClockTick        = 1 * time.Second
	DefaultZoomPollInterval = 2 * time.Second
)

// ApplyDefaults fills zero-valued tunables with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Backend.CommandTimeout == 0 {
		c.Backend.CommandTimeout = Duration(DefaultCommandTimeout)
	}
	if c.Telemetry.ClockTick == 0 {
		c.Telemetry.ClockTick = Duration(DefaultClockTick)
	}
	if c.Telemetry.ZoomPollInterval == 0 {
		c.Telemetry.ZoomPollInterval = Duration(DefaultZoomPollInterval)
	}
}

// UnmarshalExtension decodes a custom top-level section of flowdeck.yml into
// the provided target struct. The target must be a pointer.
//
// Example:
//
//	var repCfg reports.Config
//	err := cfg.UnmarshalExtension("reports", &repCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// It's not an error if the key doesn't exist.
		// The target struct will simply remain zero-valued.
		return nil
	}

	// Use mapstructure to decode the generic map[string]interface{}
	// into the strongly-typed target struct, keyed by yaml tags.
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "yaml",
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
