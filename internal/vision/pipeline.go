package vision

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/banshee-data/lanekeeper/internal/geometry"
	"github.com/banshee-data/lanekeeper/internal/security"
)

// ErrClosed is returned by operations on a closed Pipeline.
var ErrClosed = errors.New("vision: pipeline closed")

// Output is the result of one stage. Lines is nil except for line and lane
// stages, where it is never nil. Lanes is only set by lane stages.
type Output struct {
	Kind  Kind
	Image gocv.Mat
	Lines []geometry.Segment
	Lanes geometry.LaneEstimate
}

// Pipeline owns an ordered list of stage outputs. Output 0 is the source
// image and is never replaced. The list only shrinks when the pipeline is
// closed. Pipelines are not safe for concurrent use.
type Pipeline struct {
	outputs []Output
	closed  bool
}

// New starts a pipeline from a copy of src.
func New(src gocv.Mat) *Pipeline {
	return &Pipeline{outputs: []Output{{Kind: KindSource, Image: src.Clone()}}}
}

// LoadImage starts a pipeline from an image file.
func LoadImage(path string) (*Pipeline, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return nil, fmt.Errorf("failed to read image %s", path)
	}
	return &Pipeline{outputs: []Output{{Kind: KindSource, Image: img}}}, nil
}

// Len returns the number of outputs, source included.
func (p *Pipeline) Len() int { return len(p.outputs) }

// Get returns output i. Negative indexes count back from the top.
func (p *Pipeline) Get(i int) (Output, error) {
	if p.closed {
		return Output{}, ErrClosed
	}
	if i < 0 {
		i += len(p.outputs)
	}
	if i < 0 || i >= len(p.outputs) {
		return Output{}, fmt.Errorf("stage index %d out of range [0, %d)", i, len(p.outputs))
	}
	return p.outputs[i], nil
}

// Top returns the most recent output.
func (p *Pipeline) Top() Output { return p.outputs[len(p.outputs)-1] }

// Bottom returns the source image output.
func (p *Pipeline) Bottom() Output { return p.outputs[0] }

// Add applies s to the top output and appends the result.
func (p *Pipeline) Add(s Stage) (gocv.Mat, []geometry.Segment, error) {
	if p.closed {
		return gocv.Mat{}, nil, ErrClosed
	}
	if lane, ok := s.(LaneDetect); ok && p.Top().Kind != KindLineDetect {
		if _, _, err := p.Add(LineDetect{Overlay: lane.Overlay}); err != nil {
			return gocv.Mat{}, nil, err
		}
	}
	out, err := p.apply(s, len(p.outputs)-1)
	if err != nil {
		return gocv.Mat{}, nil, err
	}
	p.outputs = append(p.outputs, out)
	return out.Image, out.Lines, nil
}

// Replace applies s to output idx-1 and stores the result at idx, freeing
// the image it replaces. The source at index 0 cannot be replaced.
func (p *Pipeline) Replace(idx int, s Stage) (gocv.Mat, []geometry.Segment, error) {
	if p.closed {
		return gocv.Mat{}, nil, ErrClosed
	}
	if idx <= 0 || idx >= len(p.outputs) {
		return gocv.Mat{}, nil, fmt.Errorf("cannot replace stage %d of %d", idx, len(p.outputs))
	}
	out, err := p.apply(s, idx-1)
	if err != nil {
		return gocv.Mat{}, nil, err
	}
	p.outputs[idx].Image.Close()
	p.outputs[idx] = out
	return out.Image, out.Lines, nil
}

// Save writes output idx as an image file inside dir.
func (p *Pipeline) Save(idx int, dir, name string) (string, error) {
	out, err := p.Get(idx)
	if err != nil {
		return "", err
	}
	path, err := security.JoinWithinDirectory(dir, name)
	if err != nil {
		return "", err
	}
	if !gocv.IMWrite(path, out.Image) {
		return "", fmt.Errorf("failed to write %s", path)
	}
	return path, nil
}

// Close frees every image. It is safe to call more than once.
func (p *Pipeline) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	for _, o := range p.outputs {
		if err := o.Image.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.outputs = nil
	return errors.Join(errs...)
}

func (p *Pipeline) overlay(idx int) (gocv.Mat, error) {
	if idx < 0 || idx >= len(p.outputs) {
		return gocv.Mat{}, fmt.Errorf("overlay stage %d out of range [0, %d)", idx, len(p.outputs))
	}
	return p.outputs[idx].Image, nil
}

// apply runs s against output in.
func (p *Pipeline) apply(s Stage, in int) (Output, error) {
	input := p.outputs[in]
	switch st := s.(type) {
	case HSV:
		return Output{Kind: KindHSV, Image: toHSV(input.Image)}, nil
	case ColorBand:
		return Output{Kind: KindColorBand, Image: colorBand(input.Image, st)}, nil
	case Edges:
		return Output{Kind: KindEdges, Image: edges(input.Image, st)}, nil
	case Region:
		return Output{Kind: KindRegion, Image: region(input.Image, st.Area)}, nil
	case LineDetect:
		canvas, err := p.overlay(st.Overlay)
		if err != nil {
			return Output{}, err
		}
		segs, err := houghSegments(input.Image)
		if err != nil {
			return Output{}, err
		}
		return Output{Kind: KindLineDetect, Image: draw(canvas, segs, RawLineColor, defaultThickness), Lines: segs}, nil
	case LaneDetect:
		canvas, err := p.overlay(st.Overlay)
		if err != nil {
			return Output{}, err
		}
		raw := input.Lines
		if input.Kind != KindLineDetect {
			if raw, err = houghSegments(input.Image); err != nil {
				return Output{}, err
			}
		}
		est := geometry.FitLanes(raw, input.Image.Cols(), input.Image.Rows())
		segs := est.Segments()
		return Output{Kind: KindLaneDetect, Image: draw(canvas, segs, LaneLineColor, defaultThickness), Lines: segs, Lanes: est}, nil
	case Flip:
		out := gocv.NewMat()
		gocv.Flip(input.Image, &out, int(st.Mode))
		return Output{Kind: KindFlip, Image: out}, nil
	case Lines:
		thickness := st.Thickness
		if thickness <= 0 {
			thickness = defaultThickness
		}
		return Output{Kind: KindLines, Image: draw(input.Image, st.Segments, st.Color, thickness), Lines: st.Segments}, nil
	default:
		panic(fmt.Sprintf("vision: unknown stage %T", s))
	}
}

func toHSV(src gocv.Mat) gocv.Mat {
	out := gocv.NewMat()
	gocv.CvtColor(src, &out, gocv.ColorBGRToHSV)
	return out
}

func colorBand(src gocv.Mat, st ColorBand) gocv.Mat {
	lower, upper := st.Lower, st.Upper
	if st.Target != nil {
		lower, upper = BandFor(*st.Target)
	}
	out := gocv.NewMat()
	gocv.InRangeWithScalar(src, lower.scalar(), upper.scalar(), &out)
	return out
}

func edges(src gocv.Mat, st Edges) gocv.Mat {
	low, high := st.Low, st.High
	if low == 0 && high == 0 {
		low, high = 200, 400
	}
	out := gocv.NewMat()
	gocv.Canny(src, &out, float32(low), float32(high))
	return out
}

func regionPolygon(area Area, width, height int) []image.Point {
	switch area {
	case Top:
		return []image.Point{{0, 0}, {width, 0}, {width, height / 2}, {0, height / 2}}
	case Right:
		return []image.Point{{width / 2, 0}, {width, 0}, {width, height}, {width / 2, height}}
	case Left:
		return []image.Point{{0, 0}, {width / 2, 0}, {width / 2, height}, {0, height}}
	default:
		return []image.Point{{0, height / 2}, {width, height / 2}, {width, height}, {0, height}}
	}
}

func region(src gocv.Mat, area Area) gocv.Mat {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), src.Rows(), src.Cols(), src.Type())
	defer mask.Close()
	pts := gocv.NewPointsVectorFromPoints([][]image.Point{regionPolygon(area, src.Cols(), src.Rows())})
	defer pts.Close()
	gocv.FillPoly(&mask, pts, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	out := gocv.NewMat()
	gocv.BitwiseAnd(src, mask, &out)
	return out
}

// Hough parameters: 1px distance, 1 degree angle, 10 votes, 4px minimum
// length and gap.
const (
	houghRho       = 1
	houghTheta     = math.Pi / 180
	houghThreshold = 10
	houghMinLength = 4
	houghMaxGap    = 4
)

func houghSegments(src gocv.Mat) ([]geometry.Segment, error) {
	if src.Channels() != 1 {
		return nil, fmt.Errorf("line detection needs a single channel edge image, got %d channels", src.Channels())
	}
	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLinesPWithParams(src, &lines, houghRho, houghTheta, houghThreshold, houghMinLength, houghMaxGap)

	segs := make([]geometry.Segment, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		v := lines.GetVeciAt(i, 0)
		segs = append(segs, geometry.Segment{X1: int(v[0]), Y1: int(v[1]), X2: int(v[2]), Y2: int(v[3])})
	}
	return segs, nil
}

func draw(canvas gocv.Mat, segs []geometry.Segment, c color.RGBA, thickness int) gocv.Mat {
	out := canvas.Clone()
	for _, s := range segs {
		gocv.Line(&out, image.Pt(s.X1, s.Y1), image.Pt(s.X2, s.Y2), c, thickness)
	}
	return out
}
