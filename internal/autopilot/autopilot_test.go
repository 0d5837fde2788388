package autopilot

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/banshee-data/lanekeeper/internal/camera"
	"github.com/banshee-data/lanekeeper/internal/lkas"
	"github.com/banshee-data/lanekeeper/internal/monitoring"
	"github.com/banshee-data/lanekeeper/internal/motor"
	"github.com/banshee-data/lanekeeper/internal/scheduler"
	"github.com/banshee-data/lanekeeper/internal/telemetry"
	"github.com/banshee-data/lanekeeper/internal/timeutil"
	"github.com/banshee-data/lanekeeper/internal/vision"
)

var tape = color.RGBA{R: 105, G: 157, B: 252, A: 255}

type fakeCar struct {
	mu     sync.Mutex
	angles []float64
	stops  int
}

func (c *fakeCar) ApplyAngle(_ context.Context, deg, magnitude float64) (motor.WheelCommand, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.angles = append(c.angles, deg)
	return motor.Uniform(magnitude), nil
}

func (c *fakeCar) StopAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	return nil
}

func (c *fakeCar) Speed() float64 { return 0.9 }

func (c *fakeCar) calls() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.angles), c.stops
}

type memRecorder struct {
	samples []telemetry.Sample
}

func (r *memRecorder) Record(s telemetry.Sample) error {
	r.samples = append(r.samples, s)
	return nil
}

type logCapture struct {
	mu    sync.Mutex
	lines []string
}

func captureLogs(t *testing.T) *logCapture {
	t.Helper()
	lc := &logCapture{}
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lc.mu.Lock()
		defer lc.mu.Unlock()
		lc.lines = append(lc.lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(prev) })
	return lc
}

func (lc *logCapture) count(substr string) int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	n := 0
	for _, l := range lc.lines {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

func newFrame(t *testing.T, lanes bool) *gocv.Mat {
	t.Helper()
	if !lanes {
		m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
		t.Cleanup(func() { m.Close() })
		return &m
	}
	return newShiftedFrame(t, 0)
}

// newShiftedFrame draws both tape stripes moved dx pixels to the right.
func newShiftedFrame(t *testing.T, dx int) *gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })
	gocv.Line(&m, image.Pt(100+dx, 480), image.Pt(200+dx, 0), tape, 20)
	gocv.Line(&m, image.Pt(540+dx, 480), image.Pt(440+dx, 0), tape, 20)
	return &m
}

func newCamera(t *testing.T, frames ...*gocv.Mat) *camera.Camera {
	t.Helper()
	dev := &camera.FakeDevice{Frames: frames}
	cam := camera.New(camera.Options{
		Opener:       func(int) (camera.Device, error) { return dev, nil },
		Runner:       func(context.Context, string, ...string) error { return nil },
		FailureReset: 5,
	})
	require.NoError(t, cam.Acquire())
	return cam
}

func TestCameraFailuresKeepSchedulerRunning(t *testing.T) {
	logs := captureLogs(t)
	car := &fakeCar{}
	metrics := monitoring.NewMetrics()
	ap := New(Config{
		Camera:   newCamera(t),
		Car:      car,
		Detector: vision.Detector{Tape: tape},
		Metrics:  metrics,
	})

	clock := timeutil.NewMockClock(time.Unix(0, 0))
	ticked := make(chan struct{}, 3)
	sched, err := scheduler.New(scheduler.Options{
		Name:      "capture",
		Interval:  250 * time.Millisecond,
		Repeating: true,
		Clock:     clock,
		Callback: func(ctx context.Context) {
			ap.Tick(ctx)
			ticked <- struct{}{}
		},
	})
	require.NoError(t, err)
	require.NoError(t, sched.Start())
	defer sched.Stop()

	for i := 0; i < 3; i++ {
		require.True(t, clock.WaitForTimers(1, time.Second))
		clock.Advance(250 * time.Millisecond)
		<-ticked
	}

	assert.True(t, sched.Running())
	applied, stops := car.calls()
	assert.Zero(t, applied)
	assert.Zero(t, stops)
	assert.Equal(t, 3, logs.count("camera read failed"))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.Frames.WithLabelValues(monitoring.FrameReadError)))
}

func TestTickSteersOnLanes(t *testing.T) {
	t.Cleanup(monitoring.Discard())
	car := &fakeCar{}
	rec := &memRecorder{}
	metrics := monitoring.NewMetrics()
	ap := New(Config{
		Camera:    newCamera(t, newFrame(t, true)),
		Car:       car,
		Detector:  vision.Detector{Tape: tape},
		Deviation: lkas.DefaultDeviation,
		Stabilize: true,
		Recorder:  rec,
		Metrics:   metrics,
	})

	ap.Tick(context.Background())

	applied, stops := car.calls()
	require.Equal(t, 1, applied)
	assert.Zero(t, stops)
	assert.Less(t, math.Abs(car.angles[0]), 5.0)
	require.Len(t, rec.samples, 1)
	assert.Equal(t, monitoring.FrameOK, rec.samples[0].Result)
	assert.Equal(t, 2, rec.samples[0].Sides)
	assert.Equal(t, motor.Uniform(0.9), rec.samples[0].Command)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Frames.WithLabelValues(monitoring.FrameOK)))
}

func TestTickStopsWithoutLanes(t *testing.T) {
	t.Cleanup(monitoring.Discard())
	car := &fakeCar{}
	ap := New(Config{
		Camera:   newCamera(t, newFrame(t, false)),
		Car:      car,
		Detector: vision.Detector{Tape: tape},
	})
	ap.Tick(context.Background())

	applied, stops := car.calls()
	assert.Zero(t, applied)
	assert.Equal(t, 1, stops)
}

func TestTickDumpsFrames(t *testing.T) {
	t.Cleanup(monitoring.Discard())
	dir := t.TempDir()
	ap := New(Config{
		Camera:   newCamera(t, newFrame(t, true), newFrame(t, false)),
		Car:      &fakeCar{},
		Detector: vision.Detector{Tape: tape},
		DumpDir:  dir,
	})
	ap.Tick(context.Background())
	ap.Tick(context.Background())

	for _, name := range []string{"000001.png", "000002.png"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestLostLaneStraightensSteering(t *testing.T) {
	t.Cleanup(monitoring.Discard())
	car := &fakeCar{}
	ap := New(Config{
		Camera:   newCamera(t, newShiftedFrame(t, 60), newFrame(t, false)),
		Car:      car,
		Detector: vision.Detector{Tape: tape},
	})

	ap.Tick(context.Background())
	applied, _ := car.calls()
	require.Equal(t, 1, applied)
	require.NotZero(t, ap.Angle())

	ap.Tick(context.Background())
	_, stops := car.calls()
	assert.Equal(t, 1, stops)
	assert.Zero(t, ap.Angle())
}
