// Package autopilot is the capture callback that closes the loop: read a
// frame, find the lane, steer.
package autopilot

import (
	"context"
	"fmt"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/banshee-data/lanekeeper/internal/geometry"
	"github.com/banshee-data/lanekeeper/internal/lkas"
	"github.com/banshee-data/lanekeeper/internal/monitoring"
	"github.com/banshee-data/lanekeeper/internal/motor"
	"github.com/banshee-data/lanekeeper/internal/telemetry"
	"github.com/banshee-data/lanekeeper/internal/vision"
)

// FrameSource yields camera frames. *camera.Camera implements it.
type FrameSource interface {
	Read(ctx context.Context, m *gocv.Mat) (bool, error)
}

// Driver is the part of *drive.Car the autopilot uses.
type Driver interface {
	ApplyAngle(ctx context.Context, deg, magnitude float64) (motor.WheelCommand, error)
	StopAll(ctx context.Context) error
	Speed() float64
}

// Recorder receives one sample per cycle. *telemetry.Recorder implements it.
type Recorder interface {
	Record(s telemetry.Sample) error
}

// Config configures an Autopilot.
type Config struct {
	Camera    FrameSource
	Car       Driver
	Detector  vision.Detector
	Deviation lkas.Deviation
	Stabilize bool
	Recorder  Recorder
	Metrics   *monitoring.Metrics
	// DumpDir, when set, receives the annotated frame of every cycle.
	DumpDir string
}

// Autopilot holds the steering state between frames.
type Autopilot struct {
	cfg      Config
	steering lkas.SteeringState
	frames   int
}

// New builds an Autopilot.
func New(cfg Config) *Autopilot {
	if cfg.Metrics == nil {
		cfg.Metrics = monitoring.NewMetrics()
	}
	if cfg.Deviation == (lkas.Deviation{}) {
		cfg.Deviation = lkas.DefaultDeviation
	}
	return &Autopilot{cfg: cfg}
}

// Angle returns the steering angle of the last cycle.
func (a *Autopilot) Angle() float64 { return a.steering.CurrentAngleDeg }

// Reset forgets the steering history.
func (a *Autopilot) Reset() { a.steering.Reset() }

// Tick runs one control cycle. Camera failures are logged and skipped
// without touching the wheels. No lane stops the car and straightens the
// steering.
func (a *Autopilot) Tick(ctx context.Context) {
	frame := gocv.NewMat()
	defer frame.Close()

	ok, err := a.cfg.Camera.Read(ctx, &frame)
	if err != nil || !ok {
		if err == nil {
			err = fmt.Errorf("no frame")
		}
		monitoring.Logf("camera read failed: %v", err)
		a.cfg.Metrics.Frames.WithLabelValues(monitoring.FrameReadError).Inc()
		a.record(telemetry.Sample{Result: monitoring.FrameReadError})
		return
	}
	a.frames++

	p, est, err := a.cfg.Detector.Detect(frame)
	if err != nil {
		monitoring.Logf("lane pipeline failed: %v", err)
		a.cfg.Metrics.Frames.WithLabelValues(monitoring.FrameError).Inc()
		a.record(telemetry.Sample{Result: monitoring.FrameError})
		return
	}
	defer p.Close()

	sides := est.Sides()
	a.cfg.Metrics.LanesDetected.Observe(float64(sides))

	raw, found := lkas.SteeringAngle(est, frame.Rows(), frame.Cols())
	if !found {
		a.steering.Reset()
		if err := a.cfg.Car.StopAll(ctx); err != nil {
			monitoring.Logf("stop on lost lane failed: %v", err)
		}
		a.cfg.Metrics.Frames.WithLabelValues(monitoring.FrameNoLanes).Inc()
		a.record(telemetry.Sample{Result: monitoring.FrameNoLanes})
		a.dump(p, nil)
		return
	}

	angle := a.steering.Update(raw, sides, a.cfg.Deviation, a.cfg.Stabilize)
	cmd, err := a.cfg.Car.ApplyAngle(ctx, angle, a.cfg.Car.Speed())
	if err != nil {
		monitoring.Logf("apply steering %.1f failed: %v", angle, err)
	}
	a.cfg.Metrics.SteeringAngle.Set(angle)
	a.cfg.Metrics.Frames.WithLabelValues(monitoring.FrameOK).Inc()
	a.record(telemetry.Sample{
		Result:   monitoring.FrameOK,
		RawAngle: raw,
		Angle:    angle,
		Sides:    sides,
		Command:  cmd,
	})
	heading := lkas.HeadingLine(frame.Cols(), frame.Rows(), angle)
	a.dump(p, &heading)
}

func (a *Autopilot) record(s telemetry.Sample) {
	if a.cfg.Recorder == nil {
		return
	}
	if err := a.cfg.Recorder.Record(s); err != nil {
		monitoring.Logf("telemetry: %v", err)
	}
}

var headingColor = color.RGBA{R: 255, A: 255}

func (a *Autopilot) dump(p *vision.Pipeline, heading *geometry.Segment) {
	if a.cfg.DumpDir == "" {
		return
	}
	if heading != nil {
		if _, _, err := p.Add(vision.Lines{Segments: []geometry.Segment{*heading}, Color: headingColor}); err != nil {
			monitoring.Logf("draw heading: %v", err)
			return
		}
	}
	if _, err := p.Save(-1, a.cfg.DumpDir, fmt.Sprintf("%06d.png", a.frames)); err != nil {
		monitoring.Logf("dump frame: %v", err)
	}
}
