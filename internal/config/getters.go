package config

import "time"

func getDuration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetMinSpeed returns the lowest non-zero wheel throttle magnitude.
func (c *Config) GetMinSpeed() float64 {
	if c.MinSpeed == nil {
		return 0.7
	}
	return *c.MinSpeed
}

// GetMaxSpeed returns the highest wheel throttle magnitude.
func (c *Config) GetMaxSpeed() float64 {
	if c.MaxSpeed == nil {
		return 0.95
	}
	return *c.MaxSpeed
}

// GetDefaultSpeed returns the forward magnitude the car starts with.
func (c *Config) GetDefaultSpeed() float64 {
	if c.DefaultSpeed == nil {
		return 0.95
	}
	return *c.DefaultSpeed
}

// GetMaxAngleDeg returns the steering angle used for full point turns.
func (c *Config) GetMaxAngleDeg() float64 {
	if c.MaxAngleDeg == nil {
		return 90
	}
	return *c.MaxAngleDeg
}

// GetStraightThresholdDeg returns the angle below which all wheels drive
// equally.
func (c *Config) GetStraightThresholdDeg() float64 {
	if c.StraightThresholdDeg == nil {
		return 3
	}
	return *c.StraightThresholdDeg
}

// GetDoubleStop returns whether point turns stop both inner wheels.
func (c *Config) GetDoubleStop() bool {
	if c.DoubleStop == nil {
		return true
	}
	return *c.DoubleStop
}

// GetRampStep returns the throttle increment per ramp tick.
func (c *Config) GetRampStep() float64 {
	if c.RampStep == nil {
		return 0.1
	}
	return *c.RampStep
}

// GetRampTick returns the delay between ramp increments.
func (c *Config) GetRampTick() time.Duration {
	return getDuration(c.RampTick, 10*time.Millisecond)
}

// GetNinetyDegreeTurn returns the measured time for a 90 degree timed
// rotation.
func (c *Config) GetNinetyDegreeTurn() time.Duration {
	return getDuration(c.NinetyDegreeTurn, 2600*time.Millisecond)
}

// GetTapeColor returns the lane tape colour as RGB.
func (c *Config) GetTapeColor() [3]uint8 {
	if len(c.TapeColor) != 3 {
		return IndoorTapeColor
	}
	return [3]uint8{uint8(c.TapeColor[0]), uint8(c.TapeColor[1]), uint8(c.TapeColor[2])}
}

// GetEdgeLow returns the lower Canny threshold.
func (c *Config) GetEdgeLow() float64 {
	if c.EdgeLow == nil {
		return 200
	}
	return *c.EdgeLow
}

// GetEdgeHigh returns the upper Canny threshold.
func (c *Config) GetEdgeHigh() float64 {
	if c.EdgeHigh == nil {
		return 400
	}
	return *c.EdgeHigh
}

// GetStabilize returns whether steering is rate-limited between frames.
func (c *Config) GetStabilize() bool {
	if c.Stabilize == nil {
		return true
	}
	return *c.Stabilize
}

// GetMaxDeviationOneSide returns the per-frame steering change bound with a
// single detected lane side.
func (c *Config) GetMaxDeviationOneSide() float64 {
	if c.MaxDeviationOneSide == nil {
		return 1
	}
	return *c.MaxDeviationOneSide
}

// GetMaxDeviationTwoSides returns the per-frame steering change bound with
// both lane sides detected.
func (c *Config) GetMaxDeviationTwoSides() float64 {
	if c.MaxDeviationTwoSides == nil {
		return 5
	}
	return *c.MaxDeviationTwoSides
}

// GetFPS returns the capture rate.
func (c *Config) GetFPS() float64 {
	if c.FPS == nil {
		return 4
	}
	return *c.FPS
}

// GetCaptureInterval returns 1/FPS as a duration.
func (c *Config) GetCaptureInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.GetFPS())
}

// GetIsolated returns whether the capture loop runs in a child process.
func (c *Config) GetIsolated() bool {
	if c.Isolated == nil {
		return false
	}
	return *c.Isolated
}

// GetCameraDevice returns the video device index.
func (c *Config) GetCameraDevice() int {
	if c.CameraDevice == nil {
		return 0
	}
	return *c.CameraDevice
}

// GetCameraFailureReset returns how many consecutive failed reads trigger a
// camera driver reset. Zero disables resets.
func (c *Config) GetCameraFailureReset() int {
	if c.CameraFailureReset == nil {
		return 5
	}
	return *c.CameraFailureReset
}

// GetCarAddress returns the car server address.
func (c *Config) GetCarAddress() string {
	if c.CarAddress == nil || *c.CarAddress == "" {
		return "127.0.0.1:8088"
	}
	return *c.CarAddress
}

// GetGamepadName returns the input device name to look for.
func (c *Config) GetGamepadName() string {
	if c.GamepadName == nil || *c.GamepadName == "" {
		return "Controller"
	}
	return *c.GamepadName
}

// GetGamepadRetry returns the delay between gamepad lookups.
func (c *Config) GetGamepadRetry() time.Duration {
	return getDuration(c.GamepadRetry, 5*time.Second)
}

// GetGamepadTimeout returns how long to look for a gamepad before giving up.
func (c *Config) GetGamepadTimeout() time.Duration {
	return getDuration(c.GamepadTimeout, time.Minute)
}

// GetTelemetryPath returns the sqlite drive log path.
func (c *Config) GetTelemetryPath() string {
	if c.TelemetryPath == nil || *c.TelemetryPath == "" {
		return "lanekeeper.db"
	}
	return *c.TelemetryPath
}
