package geometry

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// DetectedLine is a fitted lane line, y = Slope*x + Intercept, together with
// its endpoints projected onto the image bottom and the image mid-height.
type DetectedLine struct {
	Slope     float64
	Intercept float64
	Segment
}

// Fit returns the least-squares slope and intercept through the segment's
// endpoints. ok is false for vertical segments, which have no finite slope.
func Fit(s Segment) (slope, intercept float64, ok bool) {
	if s.Vertical() {
		return 0, 0, false
	}
	xs := []float64{float64(s.X1), float64(s.X2)}
	ys := []float64{float64(s.Y1), float64(s.Y2)}
	intercept, slope = stat.LinearRegression(xs, ys, nil, false)
	return slope, intercept, true
}

// Project builds a DetectedLine from slope/intercept for an image of the
// given size. The line runs from y = height to y = height/2; x is clamped to
// [-width, 2*width] so near-horizontal fits stay finite, then rounded to the
// nearest pixel.
func Project(slope, intercept float64, width, height int) DetectedLine {
	y1 := height
	y2 := height / 2
	return DetectedLine{
		Slope:     slope,
		Intercept: intercept,
		Segment: Segment{
			X1: clampX(xAt(slope, intercept, y1), width),
			Y1: y1,
			X2: clampX(xAt(slope, intercept, y2), width),
			Y2: y2,
		},
	}
}

func xAt(slope, intercept float64, y int) float64 {
	return (float64(y) - intercept) / slope
}

func clampX(x float64, width int) int {
	lo, hi := float64(-width), float64(2*width)
	if math.IsNaN(x) {
		return 2 * width
	}
	return int(math.Round(math.Max(lo, math.Min(hi, x))))
}
