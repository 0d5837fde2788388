// Package config loads the car's drive, perception, capture and network
// settings. Every field is optional: omitted values fall back to the defaults
// returned by the Get* accessors, so partial files are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/lanekeeper/internal/security"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/lanekeeper.defaults.json"

// Tape colour presets (RGB) measured under the two lighting conditions the
// car was tuned in.
var (
	IndoorTapeColor  = [3]uint8{105, 157, 252}
	OutdoorTapeColor = [3]uint8{54, 179, 254}
)

// Config is the root configuration. The JSON and YAML schemas are identical.
type Config struct {
	// Drive
	MinSpeed             *float64 `json:"min_speed,omitempty" yaml:"min_speed,omitempty"`
	MaxSpeed             *float64 `json:"max_speed,omitempty" yaml:"max_speed,omitempty"`
	DefaultSpeed         *float64 `json:"default_speed,omitempty" yaml:"default_speed,omitempty"`
	MaxAngleDeg          *float64 `json:"max_angle_deg,omitempty" yaml:"max_angle_deg,omitempty"`
	StraightThresholdDeg *float64 `json:"straight_threshold_deg,omitempty" yaml:"straight_threshold_deg,omitempty"`
	DoubleStop           *bool    `json:"double_stop,omitempty" yaml:"double_stop,omitempty"`
	RampStep             *float64 `json:"ramp_step,omitempty" yaml:"ramp_step,omitempty"`
	RampTick             *string  `json:"ramp_tick,omitempty" yaml:"ramp_tick,omitempty"`                   // duration string like "10ms"
	NinetyDegreeTurn     *string  `json:"ninety_degree_turn,omitempty" yaml:"ninety_degree_turn,omitempty"` // duration string like "2.6s"

	// Perception
	TapeColor            []int    `json:"tape_color,omitempty" yaml:"tape_color,omitempty"` // RGB
	EdgeLow              *float64 `json:"edge_low,omitempty" yaml:"edge_low,omitempty"`
	EdgeHigh             *float64 `json:"edge_high,omitempty" yaml:"edge_high,omitempty"`
	Stabilize            *bool    `json:"stabilize,omitempty" yaml:"stabilize,omitempty"`
	MaxDeviationOneSide  *float64 `json:"max_deviation_one_side,omitempty" yaml:"max_deviation_one_side,omitempty"`
	MaxDeviationTwoSides *float64 `json:"max_deviation_two_sides,omitempty" yaml:"max_deviation_two_sides,omitempty"`

	// Capture
	FPS                *float64 `json:"fps,omitempty" yaml:"fps,omitempty"`
	Isolated           *bool    `json:"isolated,omitempty" yaml:"isolated,omitempty"`
	CameraDevice       *int     `json:"camera_device,omitempty" yaml:"camera_device,omitempty"`
	CameraFailureReset *int     `json:"camera_failure_reset,omitempty" yaml:"camera_failure_reset,omitempty"`

	// Network
	CarAddress *string `json:"car_address,omitempty" yaml:"car_address,omitempty"`

	// Controller
	GamepadName    *string `json:"gamepad_name,omitempty" yaml:"gamepad_name,omitempty"`
	GamepadRetry   *string `json:"gamepad_retry,omitempty" yaml:"gamepad_retry,omitempty"`
	GamepadTimeout *string `json:"gamepad_timeout,omitempty" yaml:"gamepad_timeout,omitempty"`

	// Telemetry
	TelemetryPath *string `json:"telemetry_path,omitempty" yaml:"telemetry_path,omitempty"`
}

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a .json, .yaml or .yml file no larger than 1MB
// and validates it.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(cleanPath), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. It panics when the file cannot be found and is
// intended for test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	minSpeed, maxSpeed := c.GetMinSpeed(), c.GetMaxSpeed()
	if minSpeed <= 0 || minSpeed > 1 {
		return fmt.Errorf("min_speed must be in (0, 1], got %f", minSpeed)
	}
	if maxSpeed <= 0 || maxSpeed > 1 {
		return fmt.Errorf("max_speed must be in (0, 1], got %f", maxSpeed)
	}
	if minSpeed > maxSpeed {
		return fmt.Errorf("min_speed %f exceeds max_speed %f", minSpeed, maxSpeed)
	}
	if d := c.GetDefaultSpeed(); d < minSpeed || d > maxSpeed {
		return fmt.Errorf("default_speed %f outside [%f, %f]", d, minSpeed, maxSpeed)
	}
	if a := c.GetMaxAngleDeg(); a <= 0 || a > 90 {
		return fmt.Errorf("max_angle_deg must be in (0, 90], got %f", a)
	}
	if s := c.GetRampStep(); s <= 0 || s > 1 {
		return fmt.Errorf("ramp_step must be in (0, 1], got %f", s)
	}
	if c.TapeColor != nil {
		if len(c.TapeColor) != 3 {
			return fmt.Errorf("tape_color must have 3 components, got %d", len(c.TapeColor))
		}
		for _, v := range c.TapeColor {
			if v < 0 || v > 255 {
				return fmt.Errorf("tape_color component %d out of range 0-255", v)
			}
		}
	}
	if c.GetEdgeLow() > c.GetEdgeHigh() {
		return fmt.Errorf("edge_low %f exceeds edge_high %f", c.GetEdgeLow(), c.GetEdgeHigh())
	}
	if f := c.GetFPS(); f <= 0 {
		return fmt.Errorf("fps must be positive, got %f", f)
	}
	if err := security.ValidateLoopbackAddress(c.GetCarAddress()); err != nil {
		return fmt.Errorf("car_address: %w", err)
	}
	for name, v := range map[string]*string{
		"ramp_tick":          c.RampTick,
		"ninety_degree_turn": c.NinetyDegreeTurn,
		"gamepad_retry":      c.GamepadRetry,
		"gamepad_timeout":    c.GamepadTimeout,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}
	return nil
}
