package lkas

import "math"

// Deviation is the maximum change of steering angle per control cycle. Two
// detected sides give a stronger fix than one, so they get the looser bound.
type Deviation struct {
	OneSide  float64
	TwoSides float64
}

// DefaultDeviation matches the tuning the car was driven with.
var DefaultDeviation = Deviation{OneSide: 1, TwoSides: 5}

// For returns the bound that applies when sides lane sides were detected.
func (d Deviation) For(sides int) float64 {
	if sides >= 2 {
		return d.TwoSides
	}
	return d.OneSide
}

// Stabilize limits the move from current to next to at most maxDeviation
// degrees in the direction of next.
func Stabilize(current, next, maxDeviation float64) float64 {
	delta := next - current
	if math.Abs(delta) > maxDeviation {
		return current + math.Copysign(maxDeviation, delta)
	}
	return next
}

// SteeringState is the steering command carried from one control cycle to
// the next. CurrentAngleDeg always stays inside (-90, 90).
type SteeringState struct {
	CurrentAngleDeg float64
}

// Update moves the state towards next, rate-limited when stabilize is set,
// and returns the new current angle.
func (s *SteeringState) Update(next float64, sides int, dev Deviation, stabilize bool) float64 {
	if stabilize {
		next = Stabilize(s.CurrentAngleDeg, next, dev.For(sides))
	}
	s.CurrentAngleDeg = ClampAngle(next)
	return s.CurrentAngleDeg
}

// Reset returns the state to straight ahead.
func (s *SteeringState) Reset() {
	s.CurrentAngleDeg = 0
}
