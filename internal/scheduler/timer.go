package scheduler

import (
	"context"
	"sync"

	"github.com/banshee-data/lanekeeper/internal/timeutil"
)

// Timer runs the callback on a goroutine in this process.
type Timer struct {
	opts  Options
	clock timeutil.Clock

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	teardown sync.Once
}

// NewTimer builds an in-process scheduler.
func NewTimer(opts Options) *Timer {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Timer{opts: opts, clock: clock}
}

// Start launches the loop goroutine unless one is running.
func (t *Timer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.runningLocked() {
		return nil
	}
	if t.cancel != nil {
		t.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel, t.done = cancel, done

	go func() {
		defer close(done)
		_ = RunLoop(ctx, t.clock, t.opts.Interval, t.opts.Repeating, func(ctx context.Context) {
			if t.opts.Metrics != nil {
				t.opts.Metrics.SchedulerTicks.WithLabelValues(t.opts.Name).Inc()
			}
			t.opts.Callback(ctx)
		})
	}()
	return nil
}

// Stop cancels the loop and waits for an in-flight callback to return.
func (t *Timer) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel == nil {
		return nil
	}
	t.cancel()
	<-t.done
	t.cancel = nil
	return nil
}

// Kill stops the loop and runs the teardown hook once.
func (t *Timer) Kill() error {
	err := t.Stop()
	t.teardown.Do(func() {
		if t.opts.Teardown != nil {
			t.opts.Teardown()
		}
	})
	return err
}

// Toggle flips between running and stopped.
func (t *Timer) Toggle() (bool, error) {
	if t.Running() {
		return false, t.Stop()
	}
	return true, t.Start()
}

// Running reports whether the loop goroutine is alive. A one-shot timer
// stops running after its single invocation.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runningLocked()
}

func (t *Timer) runningLocked() bool {
	if t.done == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}
