package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := Empty()
	assert.Equal(t, 0.7, cfg.GetMinSpeed())
	assert.Equal(t, 0.95, cfg.GetMaxSpeed())
	assert.Equal(t, 0.95, cfg.GetDefaultSpeed())
	assert.Equal(t, 90.0, cfg.GetMaxAngleDeg())
	assert.Equal(t, 3.0, cfg.GetStraightThresholdDeg())
	assert.True(t, cfg.GetDoubleStop())
	assert.Equal(t, 0.1, cfg.GetRampStep())
	assert.Equal(t, 10*time.Millisecond, cfg.GetRampTick())
	assert.Equal(t, 2600*time.Millisecond, cfg.GetNinetyDegreeTurn())
	assert.Equal(t, IndoorTapeColor, cfg.GetTapeColor())
	assert.Equal(t, 250*time.Millisecond, cfg.GetCaptureInterval())
	assert.Equal(t, "127.0.0.1:8088", cfg.GetCarAddress())
	assert.Equal(t, 5*time.Second, cfg.GetGamepadRetry())
	assert.Equal(t, time.Minute, cfg.GetGamepadTimeout())
	assert.Equal(t, 5, cfg.GetCameraFailureReset())
	require.NoError(t, cfg.Validate())
}

func TestDefaultConfigFileMatchesAccessors(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	empty := Empty()
	assert.Equal(t, empty.GetMinSpeed(), cfg.GetMinSpeed())
	assert.Equal(t, empty.GetMaxSpeed(), cfg.GetMaxSpeed())
	assert.Equal(t, empty.GetRampTick(), cfg.GetRampTick())
	assert.Equal(t, empty.GetNinetyDegreeTurn(), cfg.GetNinetyDegreeTurn())
	assert.Equal(t, empty.GetTapeColor(), cfg.GetTapeColor())
	assert.Equal(t, empty.GetMaxDeviationTwoSides(), cfg.GetMaxDeviationTwoSides())
	assert.Equal(t, empty.GetCarAddress(), cfg.GetCarAddress())
	assert.Equal(t, empty.GetTelemetryPath(), cfg.GetTelemetryPath())
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "car.json", `{"fps": 10, "tape_color": [54, 179, 254], "double_stop": false}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10.0, cfg.GetFPS())
	assert.Equal(t, 100*time.Millisecond, cfg.GetCaptureInterval())
	assert.Equal(t, OutdoorTapeColor, cfg.GetTapeColor())
	assert.False(t, cfg.GetDoubleStop())
	// Unset fields keep defaults.
	assert.Equal(t, 0.7, cfg.GetMinSpeed())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "car.yaml", "min_speed: 0.5\nmax_speed: 0.9\ndefault_speed: 0.8\nramp_tick: 20ms\nisolated: true\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.GetMinSpeed())
	assert.Equal(t, 0.8, cfg.GetDefaultSpeed())
	assert.Equal(t, 20*time.Millisecond, cfg.GetRampTick())
	assert.True(t, cfg.GetIsolated())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"wrong extension", "car.txt", `{}`},
		{"malformed json", "car.json", `{"fps":`},
		{"speed band inverted", "car.json", `{"min_speed": 0.9, "max_speed": 0.8, "default_speed": 0.85}`},
		{"default outside band", "car.json", `{"default_speed": 0.5}`},
		{"bad tape colour", "car.json", `{"tape_color": [1, 2]}`},
		{"tape colour range", "car.json", `{"tape_color": [1, 2, 300]}`},
		{"bad duration", "car.yml", "ramp_tick: soon\n"},
		{"zero fps", "car.json", `{"fps": 0}`},
		{"edge thresholds inverted", "car.json", `{"edge_low": 500, "edge_high": 100}`},
		{"car address on every interface", "car.json", `{"car_address": "0.0.0.0:8088"}`},
		{"car address without host", "car.yaml", "car_address: \":8088\"\n"},
		{"car address on the network", "car.json", `{"car_address": "192.168.1.20:8088"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
