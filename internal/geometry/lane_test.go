package geometry

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitSkipsVertical(t *testing.T) {
	_, _, ok := Fit(Segment{X1: 10, Y1: 0, X2: 10, Y2: 100})
	assert.False(t, ok)

	est := FitLanes([]Segment{
		{X1: 10, Y1: 400, X2: 10, Y2: 300},
		{X1: 600, Y1: 400, X2: 600, Y2: 300},
	}, 640, 480)
	assert.Equal(t, 0, est.Sides())
}

func TestFit(t *testing.T) {
	slope, intercept, ok := Fit(Segment{X1: 100, Y1: 480, X2: 150, Y2: 240})
	require.True(t, ok)
	assert.InDelta(t, -4.8, slope, 1e-9)
	assert.InDelta(t, 960.0, intercept, 1e-6)
}

func TestProjectClampsX(t *testing.T) {
	// nearly horizontal line: x would shoot far off screen
	l := Project(0.0001, 0, 640, 480)
	assert.Equal(t, 1280, l.X1)
	assert.Equal(t, 1280, l.X2)

	l = Project(-0.0001, 0, 640, 480)
	assert.Equal(t, -640, l.X1)
	assert.Equal(t, -640, l.X2)

	l = Project(-0.8, 400, 640, 480)
	want := Segment{X1: -100, Y1: 480, X2: 200, Y2: 240}
	if diff := cmp.Diff(want, l.Segment); diff != "" {
		t.Errorf("projected segment mismatch (-want +got):\n%s", diff)
	}
}

func TestFitLanesTwoParallelLines(t *testing.T) {
	segments := []Segment{
		{X1: 100, Y1: 480, X2: 150, Y2: 240}, // left, slope -4.8
		{X1: 540, Y1: 480, X2: 490, Y2: 240}, // right, slope 4.8
	}
	est := FitLanes(segments, 640, 480)
	require.Equal(t, 2, est.Sides())

	assert.Equal(t, Segment{X1: 100, Y1: 480, X2: 150, Y2: 240}, est.Left.Segment)
	assert.Equal(t, Segment{X1: 540, Y1: 480, X2: 490, Y2: 240}, est.Right.Segment)
}

func TestFitLanesRegionMembership(t *testing.T) {
	// negative slope but entirely in the right third: not a left sample
	est := FitLanes([]Segment{{X1: 500, Y1: 480, X2: 550, Y2: 240}}, 640, 480)
	assert.Nil(t, est.Left)
	assert.Nil(t, est.Right)

	// positive slope but entirely in the left third: not a right sample
	est = FitLanes([]Segment{{X1: 150, Y1: 480, X2: 100, Y2: 240}}, 640, 480)
	assert.Equal(t, 0, est.Sides())
}

func TestFitLanesAveragesPerSide(t *testing.T) {
	segments := []Segment{
		{X1: 100, Y1: 480, X2: 150, Y2: 240},
		{X1: 110, Y1: 480, X2: 160, Y2: 240},
	}
	est := FitLanes(segments, 640, 480)
	require.NotNil(t, est.Left)
	assert.Nil(t, est.Right)
	assert.InDelta(t, -4.8, est.Left.Slope, 1e-9)
	assert.Equal(t, 105, est.Left.X1)
	assert.Equal(t, 155, est.Left.X2)
}

func TestResolveIntersectionDropsShorter(t *testing.T) {
	left := DetectedLine{Slope: -1, Segment: Segment{X1: 0, Y1: 480, X2: 400, Y2: 80}}
	right := DetectedLine{Slope: 2, Segment: Segment{X1: 300, Y1: 480, X2: 200, Y2: 280}}
	require.True(t, Intersects(left.Segment, right.Segment))

	got := ResolveIntersection(LaneEstimate{Left: &left, Right: &right})
	require.Equal(t, 1, got.Sides())
	assert.NotNil(t, got.Left, "the longer left line should survive")
}

func TestResolveIntersectionComparableLengthDropsSteeper(t *testing.T) {
	left := DetectedLine{Slope: -1, Segment: Segment{X1: 0, Y1: 400, X2: 200, Y2: 200}}
	right := DetectedLine{Slope: 3, Segment: Segment{X1: 150, Y1: 400, X2: 60, Y2: 130}}
	require.True(t, Intersects(left.Segment, right.Segment))
	ll, rl := left.Length(), right.Length()
	require.LessOrEqual(t, math.Abs(ll-rl), comparableLength*math.Max(ll, rl))

	got := ResolveIntersection(LaneEstimate{Left: &left, Right: &right})
	require.Equal(t, 1, got.Sides())
	assert.NotNil(t, got.Left, "the steeper right line should be dropped")
}

func TestLaneEstimateLinesOrder(t *testing.T) {
	l := Project(-1, 600, 640, 480)
	r := Project(1, -100, 640, 480)
	est := LaneEstimate{Left: &l, Right: &r}

	lines := est.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, -1.0, lines[0].Slope)
	assert.Equal(t, []Segment{l.Segment, r.Segment}, est.Segments())
	assert.Empty(t, LaneEstimate{}.Lines())
}
