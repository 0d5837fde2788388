package drive

import (
	"fmt"
	"math"
)

// PolicyBand sets the outer-side throttle, as a fraction of the drive
// magnitude, for steering angles in [From, To).
type PolicyBand struct {
	From   float64
	To     float64
	Factor float64
}

// PolicyTable maps absolute steering angle to the throttle factor of the
// wheels on the inside of the turn. The last band includes its upper bound.
type PolicyTable []PolicyBand

// DefaultPolicy slows the inner wheels for gentle turns and reverses them
// progressively harder for sharp ones.
var DefaultPolicy = PolicyTable{
	{From: 3, To: 30, Factor: 0.75},
	{From: 30, To: 60, Factor: 0},
	{From: 60, To: 80, Factor: -0.75},
	{From: 80, To: 90, Factor: -1},
}

// Factor returns the inner-wheel factor for absDeg. Angles below the first
// band drive straight (1) and angles past the last band use its factor.
func (t PolicyTable) Factor(absDeg float64) float64 {
	absDeg = math.Abs(absDeg)
	if len(t) == 0 || absDeg < t[0].From {
		return 1
	}
	for i, b := range t {
		if absDeg < b.To || i == len(t)-1 {
			return b.Factor
		}
	}
	return t[len(t)-1].Factor
}

// Validate checks the bands are contiguous, ascending and never loosen the
// turn as the angle grows.
func (t PolicyTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("policy table is empty")
	}
	for i, b := range t {
		if b.To <= b.From {
			return fmt.Errorf("policy band %d: [%v, %v) is empty", i, b.From, b.To)
		}
		if b.Factor < -1 || b.Factor > 1 {
			return fmt.Errorf("policy band %d: factor %v outside [-1, 1]", i, b.Factor)
		}
		if i == 0 {
			continue
		}
		prev := t[i-1]
		if b.From != prev.To {
			return fmt.Errorf("policy band %d starts at %v, previous ends at %v", i, b.From, prev.To)
		}
		if b.Factor > prev.Factor {
			return fmt.Errorf("policy band %d loosens the turn: %v > %v", i, b.Factor, prev.Factor)
		}
	}
	return nil
}
