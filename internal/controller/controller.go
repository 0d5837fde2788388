package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/lanekeeper/internal/monitoring"
	"github.com/banshee-data/lanekeeper/internal/scheduler"
	"github.com/banshee-data/lanekeeper/internal/timeutil"
)

// Defaults for the gamepad search.
const (
	DefaultDeviceName = "Controller"
	DefaultRetry      = 5 * time.Second
	DefaultTimeout    = time.Minute
)

// Car is the part of *drive.Car the handlers drive.
type Car interface {
	MoveForward(ctx context.Context) error
	MoveBackward(ctx context.Context) error
	MoveLeft(ctx context.Context) error
	MoveRight(ctx context.Context) error
	ChangeSpeed(ctx context.Context, delta int) (float64, error)
	StopAll(ctx context.Context) error
	Reset(ctx context.Context) error
	ToggleDoubleStop() bool
}

// Toggler flips something on or off and reports the new state.
// *telemetry.Recorder implements it.
type Toggler interface {
	Toggle() (bool, error)
}

// Options configures a Controller.
type Options struct {
	Car    Car
	Finder Finder
	// Autonomy is the capture scheduler running the lane follower.
	Autonomy scheduler.Scheduler
	// Recorder is toggled by OnToggleRecording. Optional.
	Recorder Toggler
	// Schedulers are killed together with Autonomy on a full reset.
	Schedulers []scheduler.Scheduler

	DeviceName string
	// Retry is the wait between device searches and before restarting a
	// failed event loop.
	Retry time.Duration
	// Timeout bounds the device search.
	Timeout time.Duration
	Clock   timeutil.Clock
}

// Controller maps gamepad events to car commands.
type Controller struct {
	opts Options
}

// New returns a Controller with defaults filled in.
func New(opts Options) *Controller {
	if opts.DeviceName == "" {
		opts.DeviceName = DefaultDeviceName
	}
	if opts.Retry <= 0 {
		opts.Retry = DefaultRetry
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Finder == nil {
		opts.Finder = EvdevFinder{}
	}
	return &Controller{opts: opts}
}

func (c *Controller) OnForward(ctx context.Context) error  { return c.opts.Car.MoveForward(ctx) }
func (c *Controller) OnBackward(ctx context.Context) error { return c.opts.Car.MoveBackward(ctx) }
func (c *Controller) OnTurnLeft(ctx context.Context) error { return c.opts.Car.MoveLeft(ctx) }
func (c *Controller) OnTurnRight(ctx context.Context) error {
	return c.opts.Car.MoveRight(ctx)
}

// OnRelease runs when the d-pad returns to centre.
func (c *Controller) OnRelease(ctx context.Context) error { return c.opts.Car.StopAll(ctx) }

func (c *Controller) OnStop(ctx context.Context) error { return c.opts.Car.StopAll(ctx) }

func (c *Controller) OnSpeedUp(ctx context.Context) error {
	s, err := c.opts.Car.ChangeSpeed(ctx, 1)
	if err == nil {
		monitoring.Logf("speed %.2f", s)
	}
	return err
}

func (c *Controller) OnSpeedDown(ctx context.Context) error {
	s, err := c.opts.Car.ChangeSpeed(ctx, -1)
	if err == nil {
		monitoring.Logf("speed %.2f", s)
	}
	return err
}

func (c *Controller) OnToggleDoubleStop(context.Context) error {
	monitoring.Logf("double stop %t", c.opts.Car.ToggleDoubleStop())
	return nil
}

// OnReset stops the car and restores its default speed and flags.
func (c *Controller) OnReset(ctx context.Context) error {
	if err := c.opts.Car.StopAll(ctx); err != nil {
		return err
	}
	return c.opts.Car.Reset(ctx)
}

// OnToggleAutonomy starts or stops the lane follower. The car is stopped
// when autonomy turns off so it does not coast on the last command.
func (c *Controller) OnToggleAutonomy(ctx context.Context) error {
	if c.opts.Autonomy == nil {
		return nil
	}
	on, err := c.opts.Autonomy.Toggle()
	if err != nil {
		return fmt.Errorf("toggle autonomy: %w", err)
	}
	monitoring.Logf("autonomy %t", on)
	if !on {
		return c.opts.Car.StopAll(ctx)
	}
	return nil
}

func (c *Controller) OnToggleRecording(context.Context) error {
	if c.opts.Recorder == nil {
		return nil
	}
	on, err := c.opts.Recorder.Toggle()
	if err != nil {
		return fmt.Errorf("toggle recording: %w", err)
	}
	monitoring.Logf("recording %t", on)
	return nil
}

// Dispatch routes one event to its handler. Unknown codes are logged and
// ignored.
func (c *Controller) Dispatch(ctx context.Context, e Event) error {
	switch e.Type {
	case EventKey:
		if e.Value != KeyPressed {
			return nil
		}
		return c.button(ctx, Button(e.Code))
	case EventAbs:
		return c.axis(ctx, e.Code, e.Value)
	case EventSync:
		return nil
	default:
		monitoring.Logf("ignoring event type %d code %d", e.Type, e.Code)
		return nil
	}
}

func (c *Controller) button(ctx context.Context, b Button) error {
	switch b {
	case ButtonA:
		return c.OnToggleRecording(ctx)
	case ButtonB:
		return c.OnStop(ctx)
	case ButtonX:
		return nil
	case ButtonY:
		return c.OnToggleDoubleStop(ctx)
	case ButtonLeftTrigger:
		return c.OnSpeedDown(ctx)
	case ButtonRightTrigger:
		return c.OnSpeedUp(ctx)
	case ButtonSelect:
		return c.OnReset(ctx)
	case ButtonStart:
		return c.OnToggleAutonomy(ctx)
	default:
		monitoring.Logf("ignoring unknown %v", b)
		return nil
	}
}

func (c *Controller) axis(ctx context.Context, code uint16, value int32) error {
	if value == AxisReleased {
		return c.OnRelease(ctx)
	}
	switch {
	case code == AxisHorizontal && value == AxisLow:
		return c.OnTurnLeft(ctx)
	case code == AxisHorizontal && value == AxisHigh:
		return c.OnTurnRight(ctx)
	case code == AxisVertical && value == AxisLow:
		return c.OnForward(ctx)
	case code == AxisVertical && value == AxisHigh:
		return c.OnBackward(ctx)
	default:
		monitoring.Logf("ignoring axis %d value %d", code, value)
		return nil
	}
}

// FindDevice searches for the gamepad every Retry until Timeout has passed.
func (c *Controller) FindDevice(ctx context.Context) (EventSource, error) {
	var waited time.Duration
	for {
		dev, err := c.opts.Finder.Find(c.opts.DeviceName)
		if err == nil {
			monitoring.Logf("gamepad found: %s", dev.Name())
			return dev, nil
		}
		if !errors.Is(err, ErrDeviceNotFound) {
			monitoring.Logf("gamepad search failed: %v", err)
		}
		if waited >= c.opts.Timeout {
			return nil, fmt.Errorf("%w after %v", ErrDeviceNotFound, waited)
		}
		monitoring.Logf("gamepad %q not found, retrying in %v", c.opts.DeviceName, c.opts.Retry)
		if err := timeutil.SleepContext(ctx, c.opts.Clock, c.opts.Retry); err != nil {
			return nil, err
		}
		waited += c.opts.Retry
	}
}

// Run handles gamepad events until ctx is done. A failing or panicking
// event loop resets the car and schedulers, waits Retry and starts over.
// When the gamepad cannot be found everything is released and Run returns
// ErrDeviceNotFound.
func (c *Controller) Run(ctx context.Context) error {
	for {
		dev, err := c.FindDevice(ctx)
		if err != nil {
			c.Release()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		err = c.serve(ctx, dev)
		if cerr := dev.Close(); cerr != nil {
			monitoring.Logf("close gamepad: %v", cerr)
		}
		if ctx.Err() != nil {
			c.Release()
			return nil
		}
		monitoring.Logf("event loop failed: %v; restarting in %v", err, c.opts.Retry)
		c.Release()
		if err := timeutil.SleepContext(ctx, c.opts.Clock, c.opts.Retry); err != nil {
			return nil
		}
	}
}

func (c *Controller) serve(ctx context.Context, dev EventSource) error {
	for {
		e, err := dev.ReadEvent(ctx)
		if err != nil {
			return err
		}
		if err := c.dispatchSafe(ctx, e); err != nil {
			return err
		}
	}
}

func (c *Controller) dispatchSafe(ctx context.Context, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic handling event %+v: %v", e, r)
		}
	}()
	return c.Dispatch(ctx, e)
}

// Release stops the car and kills every scheduler.
func (c *Controller) Release() {
	if err := c.opts.Car.StopAll(context.Background()); err != nil {
		monitoring.Logf("stop on release: %v", err)
	}
	scheds := c.opts.Schedulers
	if c.opts.Autonomy != nil {
		scheds = append([]scheduler.Scheduler{c.opts.Autonomy}, scheds...)
	}
	for _, s := range scheds {
		if err := s.Kill(); err != nil {
			monitoring.Logf("kill scheduler: %v", err)
		}
	}
}
