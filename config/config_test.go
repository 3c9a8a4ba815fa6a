package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/core/errors"
)

func TestLoadFromBytes(t *testing.T) {
	yamlContent := []byte(`
version: "1.0"
backend:
  base_url: "http://localhost:8080"
  command_timeout: "5s"
telemetry:
  clock_tick: "1s"
  zoom_poll_interval: "2s"
`)

	cfg, err := LoadFromBytes(yamlContent)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Backend.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Backend.CommandTimeout.Std())
	assert.Equal(t, time.Second, cfg.Telemetry.ClockTick.Std())
	assert.Equal(t, 2*time.Second, cfg.Telemetry.ZoomPollInterval.Std())
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
backend:
  base_url: "http://localhost:8080"
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultCommandTimeout, cfg.Backend.CommandTimeout.Std())
	assert.Equal(t, DefaultClockTick, cfg.Telemetry.ClockTick.Std())
	assert.Equal(t, DefaultZoomPollInterval, cfg.Telemetry.ZoomPollInterval.Std())
}

func TestValidation(t *testing.T) {
	testCases := []struct {
		name    string
		yaml    string
		wantErr errors.ErrorCode
	}{
		{"missing base_url", `version: "1.0"`, errors.ErrCodeConfigInvalid},
		{"bad scheme", "backend:\n  base_url: \"ftp://host\"", errors.ErrCodeConfigInvalid},
		{"bad duration", "backend:\n  base_url: \"http://h\"\n  command_timeout: \"soon\"", errors.ErrCodeConfigInvalid},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tc.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.wantErr), "expected code %s, got %v", tc.wantErr, err)
		})
	}
}

func TestLoadFromTOML(t *testing.T) {
	tomlContent := []byte(`
version = "1.0"

[backend]
base_url = "http://localhost:9000"
command_timeout = "30s"
`)

	cfg, err := LoadFromTOML(tomlContent)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", cfg.Backend.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Backend.CommandTimeout.Std())
}

func TestExtensions(t *testing.T) {
	yamlContent := []byte(`
version: "1.0"
backend:
  base_url: "http://localhost:8080"

# Extension section owned by the reporting tool
reports:
  output_dir: "/tmp/reports"
  max_charts: 12
`)

	cfg, err := LoadFromBytes(yamlContent)
	require.NoError(t, err)
	require.Contains(t, cfg.Extensions, "reports")

	type ReportsConfig struct {
		OutputDir string `yaml:"output_dir"`
		MaxCharts int    `yaml:"max_charts"`
	}

	var repCfg ReportsConfig
	require.NoError(t, cfg.UnmarshalExtension("reports", &repCfg))
	assert.Equal(t, "/tmp/reports", repCfg.OutputDir)
	assert.Equal(t, 12, repCfg.MaxCharts)

	// Unknown key leaves the target zero-valued
	var missing ReportsConfig
	require.NoError(t, cfg.UnmarshalExtension("nope", &missing))
	assert.Zero(t, missing.MaxCharts)
}
