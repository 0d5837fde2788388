// Package drive turns steering angles and driver intents into wheel
// commands for a four-wheel skid-steer car.
package drive

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/lanekeeper/internal/config"
	"github.com/banshee-data/lanekeeper/internal/monitoring"
	"github.com/banshee-data/lanekeeper/internal/motor"
	"github.com/banshee-data/lanekeeper/internal/timeutil"
)

// Transport delivers wheel commands to whatever owns the motors.
type Transport interface {
	Drive(ctx context.Context, cmd motor.WheelCommand) error
}

// Local drives an in-process motor bank.
type Local struct {
	Bank *motor.Bank
}

// Drive ramps the bank to cmd.
func (l Local) Drive(ctx context.Context, cmd motor.WheelCommand) error {
	_, err := l.Bank.Apply(ctx, cmd)
	return err
}

// Config holds the drive calibration. Only DoubleStop changes at runtime,
// and it does so on the Car.
type Config struct {
	Band              motor.SpeedBand
	DefaultSpeed      float64
	MaxAngleDeg       float64
	StraightThreshold float64
	DoubleStop        bool
	NinetyDegreeTurn  time.Duration
	Policy            PolicyTable
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return ConfigFrom(config.Empty())
}

// ConfigFrom extracts the drive settings from c.
func ConfigFrom(c *config.Config) Config {
	return Config{
		Band:              motor.SpeedBand{Min: c.GetMinSpeed(), Max: c.GetMaxSpeed()},
		DefaultSpeed:      c.GetDefaultSpeed(),
		MaxAngleDeg:       c.GetMaxAngleDeg(),
		StraightThreshold: c.GetStraightThresholdDeg(),
		DoubleStop:        c.GetDoubleStop(),
		NinetyDegreeTurn:  c.GetNinetyDegreeTurn(),
		Policy:            DefaultPolicy,
	}
}

// Car is the drive state: forward magnitude, last steering angle, the
// double-stop flag and the last command sent. Methods are safe for
// concurrent use; commands are sent in call order.
type Car struct {
	mu         sync.Mutex
	cfg        Config
	transport  Transport
	clock      timeutil.Clock
	speed      float64
	angle      float64
	doubleStop bool
	wheels     motor.WheelCommand
}

// New builds a Car sending through t. A nil clock uses real time.
func New(t Transport, cfg Config, clock timeutil.Clock) *Car {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.Policy == nil {
		cfg.Policy = DefaultPolicy
	}
	return &Car{
		cfg:        cfg,
		transport:  t,
		clock:      clock,
		speed:      cfg.Band.Clamp(cfg.DefaultSpeed),
		doubleStop: cfg.DoubleStop,
	}
}

// Speed returns the current drive magnitude.
func (c *Car) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// Angle returns the last steering angle applied.
func (c *Car) Angle() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.angle
}

// DoubleStop reports whether point turns stop both inner wheels.
func (c *Car) DoubleStop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doubleStop
}

// Wheels returns the last command sent.
func (c *Car) Wheels() motor.WheelCommand {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wheels
}

// send clamps cmd into the speed band and hands it to the transport.
// c.mu must be held.
func (c *Car) send(ctx context.Context, cmd motor.WheelCommand) (motor.WheelCommand, error) {
	cmd = c.cfg.Band.ClampCommand(cmd)
	if err := c.transport.Drive(ctx, cmd); err != nil {
		return cmd, fmt.Errorf("drive %v: %w", cmd, err)
	}
	c.wheels = cmd
	return cmd, nil
}

// Steer computes the command for deg at magnitude without sending it.
// Positive angles turn right. A negative magnitude drives backward.
func (c *Car) Steer(deg, magnitude float64) motor.WheelCommand {
	if math.Abs(deg) < c.cfg.StraightThreshold {
		return motor.Uniform(magnitude)
	}
	abs := math.Min(math.Abs(deg), c.cfg.MaxAngleDeg)
	outer := magnitude
	factor := c.cfg.Policy.Factor(abs)
	inner := c.cfg.Band.Clamp(magnitude * factor)
	// Near the bottom of the band a gentle turn clamps up to the outer
	// speed; coast the inner side instead so the car still turns.
	if factor > 0 && inner == c.cfg.Band.Clamp(outer) {
		inner = 0
	}
	if deg > 0 {
		return motor.WheelCommand{outer, inner, outer, inner}
	}
	return motor.WheelCommand{inner, outer, inner, outer}
}

// ApplyAngle steers toward deg at magnitude and returns the command sent.
func (c *Car) ApplyAngle(ctx context.Context, deg, magnitude float64) (motor.WheelCommand, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.angle = deg
	return c.send(ctx, c.Steer(deg, magnitude))
}

// ChangeSpeed adjusts the drive magnitude by delta tenths, clamped into the
// speed band, and re-sends every running wheel at the new magnitude.
func (c *Car) ChangeSpeed(ctx context.Context, delta int) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = math.Min(math.Max(c.speed+float64(delta)/10, c.cfg.Band.Min), c.cfg.Band.Max)
	monitoring.Logf("speed set to %.2f", c.speed)
	if c.wheels.IsZero() {
		return c.speed, nil
	}
	cmd := c.wheels
	for i, v := range cmd {
		if v != 0 {
			cmd[i] = math.Copysign(c.speed, v)
		}
	}
	_, err := c.send(ctx, cmd)
	return c.speed, err
}

// StopAll stops every wheel and clears the steering angle.
func (c *Car) StopAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.send(ctx, motor.Stop); err != nil {
		return err
	}
	c.angle = 0
	return nil
}

// MoveForward drives every wheel forward at the current magnitude.
func (c *Car) MoveForward(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.send(ctx, motor.Uniform(c.speed))
	return err
}

// MoveBackward drives every wheel backward at the current magnitude.
func (c *Car) MoveBackward(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.send(ctx, motor.Uniform(-c.speed))
	return err
}

// MoveRight pivots right: left wheels drive, front right stops and back
// right drives unless double stop is on.
func (c *Car) MoveRight(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.send(ctx, c.pivot(true))
	return err
}

// MoveLeft pivots left, mirroring MoveRight.
func (c *Car) MoveLeft(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.send(ctx, c.pivot(false))
	return err
}

func (c *Car) pivot(right bool) motor.WheelCommand {
	rear := c.speed
	if c.doubleStop {
		rear = 0
	}
	if right {
		return motor.WheelCommand{c.speed, 0, c.speed, rear}
	}
	return motor.WheelCommand{0, c.speed, rear, c.speed}
}

// ToggleDoubleStop flips the double-stop flag and returns the new value.
func (c *Car) ToggleDoubleStop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doubleStop = !c.doubleStop
	monitoring.Logf("double stop %v", c.doubleStop)
	return c.doubleStop
}

// Reset restores the configured speed, angle and double-stop flag and stops
// the car.
func (c *Car) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = c.cfg.Band.Clamp(c.cfg.DefaultSpeed)
	c.angle = 0
	c.doubleStop = c.cfg.DoubleStop
	_, err := c.send(ctx, motor.Stop)
	return err
}

// RotationDuration returns how long to pivot for deg degrees, rounded to
// 10ms.
func (c *Car) RotationDuration(deg float64) time.Duration {
	d := time.Duration(float64(c.cfg.NinetyDegreeTurn) * math.Abs(deg) / 90)
	return d.Round(10 * time.Millisecond)
}

// Rotate turns on the spot by deg (positive right) by driving one side's
// wheels for a calibrated time, then restores the previous command. The
// wait can be cancelled through ctx; the previous command is restored
// either way.
func (c *Car) Rotate(ctx context.Context, deg float64) error {
	d := c.RotationDuration(deg)
	if d == 0 {
		return nil
	}

	c.mu.Lock()
	prev := c.wheels
	var turn motor.WheelCommand
	if deg > 0 {
		turn = motor.WheelCommand{c.speed, 0, c.speed, 0}
	} else {
		turn = motor.WheelCommand{0, c.speed, 0, c.speed}
	}
	if _, err := c.send(ctx, motor.Stop); err != nil {
		c.mu.Unlock()
		return err
	}
	if _, err := c.send(ctx, turn); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	waitErr := timeutil.SleepContext(ctx, c.clock, d)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.send(context.WithoutCancel(ctx), prev); err != nil {
		return err
	}
	return waitErr
}
