package motor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/lanekeeper/internal/monitoring"
	"github.com/banshee-data/lanekeeper/internal/timeutil"
)

// DefaultRampStep is the throttle change applied to a wheel per tick.
const DefaultRampStep = 0.1

// DefaultRampTick is the delay between ramp steps.
const DefaultRampTick = 10 * time.Millisecond

// snapEpsilon absorbs float drift so a wheel exactly one step away snaps
// instead of taking an extra tick.
const snapEpsilon = 1e-9

// BankOptions configures a Bank. Zero values take defaults.
type BankOptions struct {
	Band    SpeedBand
	Step    float64
	Tick    time.Duration
	Clock   timeutil.Clock
	Metrics *monitoring.Metrics
}

// Bank drives four motors together, ramping each wheel toward its target.
type Bank struct {
	mu      sync.Mutex
	motors  [4]Motor
	band    SpeedBand
	step    float64
	tick    time.Duration
	clock   timeutil.Clock
	metrics *monitoring.Metrics
}

// NewBank builds a Bank over motors in FL, FR, BL, BR order.
func NewBank(motors [4]Motor, opts BankOptions) *Bank {
	if opts.Band == (SpeedBand{}) {
		opts.Band = DefaultSpeedBand
	}
	if opts.Step <= 0 {
		opts.Step = DefaultRampStep
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultRampTick
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Bank{
		motors:  motors,
		band:    opts.Band,
		step:    opts.Step,
		tick:    opts.Tick,
		clock:   opts.Clock,
		metrics: opts.Metrics,
	}
}

// Band returns the speed band targets are clamped into.
func (b *Bank) Band() SpeedBand { return b.band }

// Throttle returns the current throttle of every wheel.
func (b *Bank) Throttle() WheelCommand {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current()
}

func (b *Bank) current() WheelCommand {
	var c WheelCommand
	for i, m := range b.motors {
		c[i] = m.Throttle()
	}
	return c
}

// Apply moves the wheels to target and returns the number of ramp ticks it
// took. Non-zero targets are clamped into the speed band first. A zero target
// stops its wheel at once. Every other wheel moves by at most one step per
// tick, all wheels stepping in the same loop, and snaps to its target once it
// is within one step. Calls are serialised.
func (b *Bank) Apply(ctx context.Context, target WheelCommand) (int, error) {
	target = b.band.ClampCommand(target)

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, v := range target {
		if v == 0 && b.motors[i].Throttle() != 0 {
			if err := b.set(Wheels[i], 0); err != nil {
				return 0, err
			}
		}
	}

	ticks := 0
	for {
		cur := b.current()
		if cur == target {
			return ticks, nil
		}
		if ticks > 0 {
			b.clock.Sleep(b.tick)
		}
		if err := ctx.Err(); err != nil {
			return ticks, err
		}
		for i := range cur {
			next := b.stepToward(cur[i], target[i])
			if next == cur[i] {
				continue
			}
			if err := b.set(Wheels[i], next); err != nil {
				return ticks, err
			}
		}
		ticks++
	}
}

func (b *Bank) stepToward(cur, target float64) float64 {
	diff := target - cur
	if math.Abs(diff) <= b.step+snapEpsilon {
		return target
	}
	return cur + math.Copysign(b.step, diff)
}

func (b *Bank) set(w Wheel, v float64) error {
	if err := b.motors[w].SetThrottle(v); err != nil {
		return fmt.Errorf("set %s throttle: %w", w, err)
	}
	if b.metrics != nil {
		b.metrics.WheelThrottle.WithLabelValues(w.String()).Set(v)
	}
	return nil
}

// StepsNeeded returns ceil(|to-from| / step), the tick bound Apply honours for
// a single wheel.
func StepsNeeded(from, to, step float64) int {
	if from == to {
		return 0
	}
	return int(math.Ceil(math.Abs(to-from)/step - snapEpsilon))
}
