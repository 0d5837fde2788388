// Package motor owns the four wheel motors: throttle commands, the speed band,
// the ramped motor bank and the serial motor board that drives the hardware.
package motor

import (
	"fmt"
	"math"
)

// Wheel indexes a WheelCommand.
type Wheel int

const (
	FrontLeft Wheel = iota
	FrontRight
	BackLeft
	BackRight
)

// Wheels lists every wheel in command order.
var Wheels = [4]Wheel{FrontLeft, FrontRight, BackLeft, BackRight}

func (w Wheel) String() string {
	switch w {
	case FrontLeft:
		return "front_left"
	case FrontRight:
		return "front_right"
	case BackLeft:
		return "back_left"
	case BackRight:
		return "back_right"
	default:
		return fmt.Sprintf("wheel(%d)", int(w))
	}
}

// WheelCommand is a throttle per wheel in FL, FR, BL, BR order. Sign is
// direction, magnitude is speed.
type WheelCommand [4]float64

// Stop is the all-zero command.
var Stop WheelCommand

// Uniform returns a command driving every wheel at v.
func Uniform(v float64) WheelCommand {
	return WheelCommand{v, v, v, v}
}

// IsZero reports whether every wheel is stopped.
func (c WheelCommand) IsZero() bool {
	return c == Stop
}

// SpeedBand is the allowed range of non-zero throttle magnitudes.
type SpeedBand struct {
	Min float64
	Max float64
}

// DefaultSpeedBand matches the calibrated motors.
var DefaultSpeedBand = SpeedBand{Min: 0.7, Max: 0.95}

// Clamp keeps zero as zero and moves any other value's magnitude into the
// band, keeping its sign.
func (b SpeedBand) Clamp(v float64) float64 {
	if v == 0 || math.IsNaN(v) {
		return 0
	}
	mag := math.Min(math.Max(math.Abs(v), b.Min), b.Max)
	return math.Copysign(mag, v)
}

// ClampCommand clamps every wheel of c.
func (b SpeedBand) ClampCommand(c WheelCommand) WheelCommand {
	for i := range c {
		c[i] = b.Clamp(c[i])
	}
	return c
}

// Contains reports whether v is zero or has a magnitude inside the band.
func (b SpeedBand) Contains(v float64) bool {
	if v == 0 {
		return true
	}
	mag := math.Abs(v)
	return mag >= b.Min && mag <= b.Max
}

// Valid reports whether every entry of c is zero or inside the band.
func (b SpeedBand) Valid(c WheelCommand) bool {
	for _, v := range c {
		if !b.Contains(v) {
			return false
		}
	}
	return true
}
