package vision

import (
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// HSVColor is a colour in OpenCV's 8-bit HSV space: hue 0-180, saturation
// and value 0-255.
type HSVColor struct {
	H, S, V float64
}

func (c HSVColor) scalar() gocv.Scalar {
	return gocv.NewScalar(c.H, c.S, c.V, 0)
}

// Bounds used to widen a target colour into a threshold band.
const (
	hueBelow = 5
	hueAbove = 20
	satLow   = 0.4
	satHigh  = 1.2
	valLow   = 0.2
	valHigh  = 1.5
)

// ToHSV converts an RGB colour with the same conversion the pipeline
// applies to frames.
func ToHSV(c color.RGBA) HSVColor {
	px := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0), 1, 1, gocv.MatTypeCV8UC3)
	defer px.Close()
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(px, &hsv, gocv.ColorBGRToHSV)
	v := hsv.GetVecbAt(0, 0)
	return HSVColor{H: float64(v[0]), S: float64(v[1]), V: float64(v[2])}
}

// BandFor returns the HSV threshold band around target.
func BandFor(target color.RGBA) (lower, upper HSVColor) {
	c := ToHSV(target)
	lower = HSVColor{
		H: clamp(c.H-hueBelow, 0, 180),
		S: clamp(c.S*satLow, 0, 255),
		V: clamp(c.V*valLow, 0, 255),
	}
	upper = HSVColor{
		H: clamp(c.H+hueAbove, 0, 180),
		S: clamp(c.S*satHigh, 0, 255),
		V: clamp(c.V*valHigh, 0, 255),
	}
	return lower, upper
}

// TapeColor builds an RGBA from an RGB triple.
func TapeColor(rgb [3]uint8) color.RGBA {
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
