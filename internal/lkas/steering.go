// Package lkas is the lane keeping assist math: it turns a lane estimate into
// a bounded steering angle, rate-limits that angle against the previous
// command and builds the heading line used for debug overlays.
//
// Angles are in degrees; 0 is straight ahead, positive steers right.
package lkas

import (
	"math"

	"github.com/banshee-data/lanekeeper/internal/geometry"
)

// MaxSteeringAngle bounds every angle produced here so tan() of the heading
// line stays finite.
const MaxSteeringAngle = 89.99

// SteeringAngle computes the steering angle for a lane estimate of an image
// with the given size. ok is false when no lane line was detected; callers
// must stop the car rather than hold the last command.
//
// With one line the horizontal offset is that line's own lean (x2 - x1). With
// two lines it is the distance between the midpoint of their far ends and the
// image centre. The vertical reference is half the image height.
func SteeringAngle(est geometry.LaneEstimate, height, width int) (angle float64, ok bool) {
	lines := est.Lines()

	var offset float64
	switch len(lines) {
	case 0:
		return 0, false
	case 1:
		offset = float64(lines[0].X2 - lines[0].X1)
	default:
		mid := float64(lines[0].X2+lines[1].X2) / 2
		offset = mid - float64(width)/2
	}

	ref := float64(height / 2)
	if ref <= 0 {
		return 0, false
	}
	deg := math.Atan(offset/ref) * 180 / math.Pi
	return ClampAngle(deg), true
}

// ClampAngle limits deg to [-MaxSteeringAngle, MaxSteeringAngle].
func ClampAngle(deg float64) float64 {
	return math.Max(-MaxSteeringAngle, math.Min(MaxSteeringAngle, deg))
}

// HeadingLine returns the segment drawn from the bottom centre of the image
// up to half height, leaning by the steering angle. It is only used for
// visualisation.
func HeadingLine(width, height int, deg float64) geometry.Segment {
	rad := ClampAngle(deg) * math.Pi / 180
	x1 := width / 2
	y2 := height / 2
	return geometry.Segment{
		X1: x1,
		Y1: height,
		X2: x1 + int(math.Round(float64(y2)*math.Tan(rad))),
		Y2: y2,
	}
}
