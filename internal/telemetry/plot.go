package telemetry

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/lanekeeper/internal/security"
)

// PlotSteering renders raw and stabilised steering angles over time to a
// PNG (or any extension gonum/plot supports) at path.
func PlotSteering(samples []Sample, path string) error {
	if len(samples) == 0 {
		return fmt.Errorf("no samples to plot")
	}
	if err := security.ValidateOutputPath(path); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Steering - run %s", samples[0].RunID)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Angle (deg)"

	start := samples[0].RecordedAt
	raw := make(plotter.XYs, 0, len(samples))
	applied := make(plotter.XYs, 0, len(samples))
	for _, s := range samples {
		if s.Sides == 0 {
			continue
		}
		x := s.RecordedAt.Sub(start).Seconds()
		raw = append(raw, plotter.XY{X: x, Y: s.RawAngle})
		applied = append(applied, plotter.XY{X: x, Y: s.Angle})
	}

	if len(raw) == 0 {
		return fmt.Errorf("no samples with detected lanes")
	}

	rawLine, err := plotter.NewLine(raw)
	if err != nil {
		return fmt.Errorf("raw angle line: %w", err)
	}
	rawLine.Color = color.RGBA{R: 180, G: 180, B: 180, A: 255}
	rawLine.Width = vg.Points(1)

	appliedLine, err := plotter.NewLine(applied)
	if err != nil {
		return fmt.Errorf("applied angle line: %w", err)
	}
	appliedLine.Color = color.RGBA{R: 30, G: 90, B: 200, A: 255}
	appliedLine.Width = vg.Points(1.5)

	p.Add(plotter.NewGrid(), rawLine, appliedLine)
	p.Legend.Add("raw", rawLine)
	p.Legend.Add("applied", appliedLine)

	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
