// Package geometry holds the lane geometry shared by the frame pipeline and
// the steering engine: raw line segments, fitted lane lines and the
// left/right lane estimate.
package geometry

import "math"

// Segment is a line segment in image pixel coordinates (y grows downward).
type Segment struct {
	X1, Y1, X2, Y2 int
}

// Length returns the euclidean length of the segment.
func (s Segment) Length() float64 {
	return math.Hypot(float64(s.X2-s.X1), float64(s.Y2-s.Y1))
}

// Vertical reports whether both endpoints share the same x.
func (s Segment) Vertical() bool {
	return s.X1 == s.X2
}

// Intersects reports whether segments a and b share at least one point,
// including touching endpoints and collinear overlap. It is symmetric.
func Intersects(a, b Segment) bool {
	p1, q1 := point{a.X1, a.Y1}, point{a.X2, a.Y2}
	p2, q2 := point{b.X1, b.Y1}, point{b.X2, b.Y2}

	o1 := orientation(p1, q1, p2)
	o2 := orientation(p1, q1, q2)
	o3 := orientation(p2, q2, p1)
	o4 := orientation(p2, q2, q1)

	if o1 != o2 && o3 != o4 {
		return true
	}

	// collinear cases: an endpoint lying on the other segment
	switch {
	case o1 == 0 && onSegment(p1, p2, q1):
		return true
	case o2 == 0 && onSegment(p1, q2, q1):
		return true
	case o3 == 0 && onSegment(p2, p1, q2):
		return true
	case o4 == 0 && onSegment(p2, q1, q2):
		return true
	}
	return false
}

type point struct{ x, y int }

// orientation returns 0 for collinear, 1 for clockwise, 2 for
// counter-clockwise turns of p -> q -> r.
func orientation(p, q, r point) int {
	v := int64(q.y-p.y)*int64(r.x-q.x) - int64(q.x-p.x)*int64(r.y-q.y)
	switch {
	case v == 0:
		return 0
	case v > 0:
		return 1
	default:
		return 2
	}
}

// onSegment reports whether q lies within the bounding box of p and r.
// Only meaningful when p, q, r are collinear.
func onSegment(p, q, r point) bool {
	return q.x <= max(p.x, r.x) && q.x >= min(p.x, r.x) &&
		q.y <= max(p.y, r.y) && q.y >= min(p.y, r.y)
}
