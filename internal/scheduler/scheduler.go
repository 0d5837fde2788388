// Package scheduler runs a capture callback periodically, either on a
// goroutine in this process or inside an isolated worker process.
//
// Both strategies wait a full interval before each invocation and start the
// next wait only after the callback returns, so invocations never overlap and
// slow callbacks lower the effective rate instead of queueing.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/banshee-data/lanekeeper/internal/monitoring"
	"github.com/banshee-data/lanekeeper/internal/timeutil"
)

// ErrNoCommand is returned by New when an isolated scheduler has no worker
// command.
var ErrNoCommand = errors.New("scheduler: isolated scheduler needs a worker command")

// Scheduler is the lifecycle shared by both strategies.
type Scheduler interface {
	// Start begins scheduling. It is a no-op when already running.
	Start() error
	// Stop cancels scheduling and returns once no further invocation can
	// happen. It is safe to call repeatedly.
	Stop() error
	// Kill stops the scheduler and runs the teardown hook, at most once over
	// the scheduler's lifetime.
	Kill() error
	// Toggle starts a stopped scheduler or stops a running one and reports
	// whether it is now running.
	Toggle() (bool, error)
	// Running reports whether invocations may still happen.
	Running() bool
}

// Options configures New.
type Options struct {
	Name      string
	Interval  time.Duration
	Repeating bool

	// Callback runs in process when Isolated is false.
	Callback func(ctx context.Context)

	// Isolated selects the worker process strategy. Command builds the
	// worker; the worker is expected to call RunLoop and to exit on
	// SIGINT.
	Isolated bool
	Command  func() *exec.Cmd
	// StopTimeout bounds how long Stop waits for the worker after the
	// interrupt before killing it. Defaults to 2s.
	StopTimeout time.Duration

	Teardown func()
	Clock    timeutil.Clock
	Metrics  *monitoring.Metrics
}

// New picks the strategy described by opts.
func New(opts Options) (Scheduler, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("scheduler %q: interval must be positive, got %v", opts.Name, opts.Interval)
	}
	if opts.Isolated {
		if opts.Command == nil {
			return nil, ErrNoCommand
		}
		return NewProcess(opts), nil
	}
	if opts.Callback == nil {
		return nil, fmt.Errorf("scheduler %q: no callback", opts.Name)
	}
	return NewTimer(opts), nil
}

// RunLoop waits interval on clock, runs fn, and repeats until ctx is done.
// With repeating false it runs fn at most once. It returns nil when stopped
// by ctx.
func RunLoop(ctx context.Context, clock timeutil.Clock, interval time.Duration, repeating bool, fn func(ctx context.Context)) error {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	for {
		if err := timeutil.SleepContext(ctx, clock, interval); err != nil {
			return nil
		}
		fn(ctx)
		if !repeating {
			return nil
		}
	}
}
