package vision

import (
	"image/color"

	"gocv.io/x/gocv"

	"github.com/banshee-data/lanekeeper/internal/geometry"
)

// Detector runs the standard lane pipeline: HSV, tape colour band, edges,
// bottom region, lane fit drawn over the source frame.
type Detector struct {
	Tape     color.RGBA
	EdgeLow  float64
	EdgeHigh float64
	Area     Area
}

// Detect builds a pipeline over frame and returns it with the fitted lanes.
// The caller must Close the pipeline.
func (d Detector) Detect(frame gocv.Mat) (*Pipeline, geometry.LaneEstimate, error) {
	p := New(frame)
	tape := d.Tape
	stages := []Stage{
		HSV{},
		ColorBand{Target: &tape},
		Edges{Low: d.EdgeLow, High: d.EdgeHigh},
		Region{Area: d.Area},
		LaneDetect{Overlay: 0},
	}
	for _, s := range stages {
		if _, _, err := p.Add(s); err != nil {
			p.Close()
			return nil, geometry.LaneEstimate{}, err
		}
	}
	return p, p.Top().Lanes, nil
}
