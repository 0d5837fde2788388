// Package vision turns camera frames into lane geometry through an ordered
// pipeline of gocv filter stages.
package vision

import (
	"fmt"
	"image/color"

	"github.com/banshee-data/lanekeeper/internal/geometry"
)

// Kind tags the stage that produced a pipeline output.
type Kind int

const (
	KindSource Kind = iota
	KindHSV
	KindColorBand
	KindEdges
	KindRegion
	KindLineDetect
	KindLaneDetect
	KindFlip
	KindLines
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindHSV:
		return "hsv"
	case KindColorBand:
		return "color_band"
	case KindEdges:
		return "edges"
	case KindRegion:
		return "region"
	case KindLineDetect:
		return "line_detect"
	case KindLaneDetect:
		return "lane_detect"
	case KindFlip:
		return "flip"
	case KindLines:
		return "lines"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Stage is one filter step. The set of stages is closed to this package.
type Stage interface {
	Kind() Kind
	stage()
}

// HSV converts a BGR image to HSV.
type HSV struct{}

// ColorBand thresholds an HSV image into a binary mask. When Target is set
// the bounds are derived from it, otherwise Lower and Upper are used as is.
type ColorBand struct {
	Target *color.RGBA
	Lower  HSVColor
	Upper  HSVColor
}

// Edges runs Canny edge detection. Zero thresholds take 200/400.
type Edges struct {
	Low  float64
	High float64
}

// Area selects the half of the image a Region stage keeps.
type Area int

const (
	Bottom Area = iota
	Top
	Left
	Right
)

// Region zeroes every pixel outside Area.
type Region struct {
	Area Area
}

// LineDetect finds raw line segments with a probabilistic Hough transform and
// draws them on a copy of the Overlay stage.
type LineDetect struct {
	Overlay int
}

// LaneDetect fits left and right lane lines from the raw segments of the
// preceding line stage and draws the survivors on a copy of the Overlay
// stage. A LineDetect stage is added first when the top stage is not one.
type LaneDetect struct {
	Overlay int
}

// FlipMode selects the mirror axis.
type FlipMode int

// Values match OpenCV flip codes.
const (
	FlipVertical   FlipMode = 0
	FlipHorizontal FlipMode = 1
	FlipBoth       FlipMode = -1
)

// Flip mirrors the image.
type Flip struct {
	Mode FlipMode
}

// Lines draws arbitrary segments on a copy of the top image. A zero
// Thickness draws 10px lines.
type Lines struct {
	Segments  []geometry.Segment
	Color     color.RGBA
	Thickness int
}

func (HSV) Kind() Kind        { return KindHSV }
func (ColorBand) Kind() Kind  { return KindColorBand }
func (Edges) Kind() Kind      { return KindEdges }
func (Region) Kind() Kind     { return KindRegion }
func (LineDetect) Kind() Kind { return KindLineDetect }
func (LaneDetect) Kind() Kind { return KindLaneDetect }
func (Flip) Kind() Kind       { return KindFlip }
func (Lines) Kind() Kind      { return KindLines }

func (HSV) stage()        {}
func (ColorBand) stage()  {}
func (Edges) stage()      {}
func (Region) stage()     {}
func (LineDetect) stage() {}
func (LaneDetect) stage() {}
func (Flip) stage()       {}
func (Lines) stage()      {}

// Debug colours drawn on overlays.
var (
	RawLineColor  = color.RGBA{R: 50, G: 205, B: 50, A: 255}
	LaneLineColor = color.RGBA{R: 255, G: 255, B: 0, A: 255}
)

const defaultThickness = 10
