package geometry

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// regionBoundary splits the frame into overlapping left and right regions:
// left-lane samples must lie left of width*(1-regionBoundary), right-lane
// samples right of width*regionBoundary.
const regionBoundary = 1.0 / 3.0

// comparableLength is the relative length difference under which two
// intersecting lane lines are considered equally long.
const comparableLength = 0.1

// LaneEstimate holds the fitted left and right lane lines. Either side may
// be nil when no sample supported it.
type LaneEstimate struct {
	Left  *DetectedLine
	Right *DetectedLine
}

// Sides returns the number of populated sides (0, 1 or 2).
func (e LaneEstimate) Sides() int {
	n := 0
	if e.Left != nil {
		n++
	}
	if e.Right != nil {
		n++
	}
	return n
}

// Lines returns the populated lines, left first.
func (e LaneEstimate) Lines() []DetectedLine {
	out := make([]DetectedLine, 0, 2)
	if e.Left != nil {
		out = append(out, *e.Left)
	}
	if e.Right != nil {
		out = append(out, *e.Right)
	}
	return out
}

// Segments returns the projected segments of the populated lines, left first.
func (e LaneEstimate) Segments() []Segment {
	lines := e.Lines()
	out := make([]Segment, len(lines))
	for i, l := range lines {
		out[i] = l.Segment
	}
	return out
}

// FitLanes classifies raw segments into left and right lane samples, averages
// the slope/intercept of each side, projects the averages and finally drops
// the less confident side if the two projected lines cross.
//
// Vertical and horizontal segments are skipped: neither yields a usable
// slope sign.
func FitLanes(segments []Segment, width, height int) LaneEstimate {
	leftLimit := float64(width) * (1 - regionBoundary)
	rightLimit := float64(width) * regionBoundary

	var leftSlopes, leftIntercepts, rightSlopes, rightIntercepts []float64
	for _, s := range segments {
		slope, intercept, ok := Fit(s)
		if !ok || slope == 0 {
			continue
		}
		x1, x2 := float64(s.X1), float64(s.X2)
		if slope < 0 {
			if x1 < leftLimit && x2 < leftLimit {
				leftSlopes = append(leftSlopes, slope)
				leftIntercepts = append(leftIntercepts, intercept)
			}
		} else if x1 > rightLimit && x2 > rightLimit {
			rightSlopes = append(rightSlopes, slope)
			rightIntercepts = append(rightIntercepts, intercept)
		}
	}

	var est LaneEstimate
	if len(leftSlopes) > 0 {
		l := Project(stat.Mean(leftSlopes, nil), stat.Mean(leftIntercepts, nil), width, height)
		est.Left = &l
	}
	if len(rightSlopes) > 0 {
		r := Project(stat.Mean(rightSlopes, nil), stat.Mean(rightIntercepts, nil), width, height)
		est.Right = &r
	}
	return ResolveIntersection(est)
}

// ResolveIntersection keeps both sides unless their projected segments
// intersect, in which case the less confident side is discarded: the shorter
// one, or the steeper one when both lengths are within comparableLength of
// each other.
func ResolveIntersection(est LaneEstimate) LaneEstimate {
	if est.Left == nil || est.Right == nil {
		return est
	}
	if !Intersects(est.Left.Segment, est.Right.Segment) {
		return est
	}

	ll, rl := est.Left.Length(), est.Right.Length()
	dropLeft := ll < rl
	if math.Abs(ll-rl) <= comparableLength*math.Max(ll, rl) {
		dropLeft = math.Abs(est.Left.Slope) > math.Abs(est.Right.Slope)
	}
	if dropLeft {
		return LaneEstimate{Right: est.Right}
	}
	return LaneEstimate{Left: est.Left}
}
