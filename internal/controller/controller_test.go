package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lanekeeper/internal/monitoring"
	"github.com/banshee-data/lanekeeper/internal/timeutil"
)

type fakeCar struct {
	mu         sync.Mutex
	calls      []string
	panicOn    string
	doubleStop bool
}

func (c *fakeCar) call(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
	if name == c.panicOn {
		panic("wheel jammed")
	}
	return nil
}

func (c *fakeCar) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *fakeCar) MoveForward(context.Context) error  { return c.call("forward") }
func (c *fakeCar) MoveBackward(context.Context) error { return c.call("backward") }
func (c *fakeCar) MoveLeft(context.Context) error     { return c.call("left") }
func (c *fakeCar) MoveRight(context.Context) error    { return c.call("right") }
func (c *fakeCar) StopAll(context.Context) error      { return c.call("stop") }
func (c *fakeCar) Reset(context.Context) error        { return c.call("reset") }

func (c *fakeCar) ChangeSpeed(_ context.Context, delta int) (float64, error) {
	return 0.9, c.call(fmt.Sprintf("speed%+d", delta))
}

func (c *fakeCar) ToggleDoubleStop() bool {
	_ = c.call("double_stop")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doubleStop = !c.doubleStop
	return c.doubleStop
}

type fakeScheduler struct {
	mu      sync.Mutex
	running bool
	kills   int
}

func (s *fakeScheduler) Start() error { s.set(true); return nil }
func (s *fakeScheduler) Stop() error  { s.set(false); return nil }

func (s *fakeScheduler) set(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = v
}

func (s *fakeScheduler) Kill() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.kills++
	return nil
}

func (s *fakeScheduler) Toggle() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = !s.running
	return s.running, nil
}

func (s *fakeScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *fakeScheduler) Kills() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kills
}

type fakeToggler struct{ on bool }

func (t *fakeToggler) Toggle() (bool, error) {
	t.on = !t.on
	return t.on, nil
}

// scriptedSource replays events and then returns err, or blocks until the
// context is done when err is nil.
type scriptedSource struct {
	events []Event
	err    error
	closed bool
}

func (s *scriptedSource) Name() string { return "Wireless Controller" }

func (s *scriptedSource) ReadEvent(ctx context.Context) (Event, error) {
	if len(s.events) > 0 {
		e := s.events[0]
		s.events = s.events[1:]
		return e, nil
	}
	if s.err != nil {
		return Event{}, s.err
	}
	<-ctx.Done()
	return Event{}, ctx.Err()
}

func (s *scriptedSource) Close() error {
	s.closed = true
	return nil
}

type fakeFinder struct {
	mu      sync.Mutex
	sources []*scriptedSource
	calls   int
}

func (f *fakeFinder) Find(name string) (EventSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.sources) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
	}
	s := f.sources[0]
	f.sources = f.sources[1:]
	return s, nil
}

func (f *fakeFinder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func key(b Button) Event                 { return Event{Type: EventKey, Code: uint16(b), Value: KeyPressed} }
func pad(code uint16, value int32) Event { return Event{Type: EventAbs, Code: code, Value: value} }

func TestDispatch(t *testing.T) {
	t.Cleanup(monitoring.Discard())
	tests := []struct {
		event Event
		want  []string
	}{
		{pad(AxisVertical, AxisLow), []string{"forward"}},
		{pad(AxisVertical, AxisHigh), []string{"backward"}},
		{pad(AxisHorizontal, AxisLow), []string{"left"}},
		{pad(AxisHorizontal, AxisHigh), []string{"right"}},
		{pad(AxisHorizontal, AxisReleased), []string{"stop"}},
		{pad(AxisVertical, AxisReleased), []string{"stop"}},
		{key(ButtonB), []string{"stop"}},
		{key(ButtonY), []string{"double_stop"}},
		{key(ButtonLeftTrigger), []string{"speed-1"}},
		{key(ButtonRightTrigger), []string{"speed+1"}},
		{key(ButtonSelect), []string{"stop", "reset"}},
		{key(ButtonX), nil},
		{Event{Type: EventKey, Code: uint16(ButtonB), Value: 0}, nil},
		{Event{Type: EventSync}, nil},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d/%d", tt.event.Type, tt.event.Code, tt.event.Value), func(t *testing.T) {
			car := &fakeCar{}
			c := New(Options{Car: car})
			require.NoError(t, c.Dispatch(context.Background(), tt.event))
			assert.Equal(t, tt.want, car.Calls())
		})
	}
}

func TestDispatchIgnoresUnknownCodes(t *testing.T) {
	var lines []string
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(prev) })

	car := &fakeCar{}
	c := New(Options{Car: car})
	require.NoError(t, c.Dispatch(context.Background(), key(Button(999))))
	require.NoError(t, c.Dispatch(context.Background(), pad(5, AxisLow)))
	require.NoError(t, c.Dispatch(context.Background(), Event{Type: 4, Code: 4}))

	assert.Empty(t, car.Calls())
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "button(999)")
}

func TestToggleAutonomyStopsCarWhenTurnedOff(t *testing.T) {
	t.Cleanup(monitoring.Discard())
	car := &fakeCar{}
	sched := &fakeScheduler{}
	c := New(Options{Car: car, Autonomy: sched})
	ctx := context.Background()

	require.NoError(t, c.Dispatch(ctx, key(ButtonStart)))
	assert.True(t, sched.Running())
	assert.Empty(t, car.Calls())

	require.NoError(t, c.Dispatch(ctx, key(ButtonStart)))
	assert.False(t, sched.Running())
	assert.Equal(t, []string{"stop"}, car.Calls())
}

func TestToggleRecording(t *testing.T) {
	t.Cleanup(monitoring.Discard())
	rec := &fakeToggler{}
	c := New(Options{Car: &fakeCar{}, Recorder: rec})
	require.NoError(t, c.Dispatch(context.Background(), key(ButtonA)))
	assert.True(t, rec.on)
	require.NoError(t, c.Dispatch(context.Background(), key(ButtonA)))
	assert.False(t, rec.on)

	// Without a recorder the button does nothing.
	c = New(Options{Car: &fakeCar{}})
	assert.NoError(t, c.OnToggleRecording(context.Background()))
}

func TestFindDeviceGivesUpAfterTimeout(t *testing.T) {
	t.Cleanup(monitoring.Discard())
	car := &fakeCar{}
	sched := &fakeScheduler{running: true}
	finder := &fakeFinder{}
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c := New(Options{
		Car:      car,
		Finder:   finder,
		Autonomy: sched,
		Retry:    5 * time.Second,
		Timeout:  time.Minute,
		Clock:    clock,
	})

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	for i := 0; i < 12; i++ {
		require.True(t, clock.WaitForTimers(1, time.Second))
		clock.Advance(5 * time.Second)
	}

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrDeviceNotFound)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not give up")
	}
	assert.Equal(t, 13, finder.Calls())
	assert.Equal(t, []string{"stop"}, car.Calls())
	assert.Equal(t, 1, sched.Kills())
	assert.False(t, sched.Running())
}

func TestFindDeviceRetriesUntilFound(t *testing.T) {
	t.Cleanup(monitoring.Discard())
	src := &scriptedSource{}
	finder := &fakeFinder{}
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c := New(Options{Car: &fakeCar{}, Finder: finder, Clock: clock})

	found := make(chan EventSource, 1)
	go func() {
		dev, err := c.FindDevice(context.Background())
		assert.NoError(t, err)
		found <- dev
	}()

	require.True(t, clock.WaitForTimers(1, time.Second))
	finder.mu.Lock()
	finder.sources = append(finder.sources, src)
	finder.mu.Unlock()
	clock.Advance(DefaultRetry)

	select {
	case dev := <-found:
		assert.Same(t, src, dev)
	case <-time.After(2 * time.Second):
		t.Fatal("device not found")
	}
	assert.Equal(t, 2, finder.Calls())
}

func TestRunRestartsAfterPanic(t *testing.T) {
	t.Cleanup(monitoring.Discard())
	car := &fakeCar{panicOn: "forward"}
	sched := &fakeScheduler{}
	first := &scriptedSource{events: []Event{key(ButtonY), pad(AxisVertical, AxisLow)}}
	second := &scriptedSource{events: []Event{pad(AxisHorizontal, AxisHigh)}}
	finder := &fakeFinder{sources: []*scriptedSource{first, second}}
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c := New(Options{Car: car, Finder: finder, Autonomy: sched, Clock: clock})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// The panic resets everything and the loop waits out the backoff.
	require.True(t, clock.WaitForTimers(1, time.Second))
	assert.True(t, first.closed)
	assert.Equal(t, []string{"double_stop", "forward", "stop"}, car.Calls())
	assert.Equal(t, 1, sched.Kills())
	clock.Advance(DefaultRetry)

	require.Eventually(t, func() bool {
		return len(car.Calls()) == 4
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, "right", car.Calls()[3])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.True(t, second.closed)
	assert.Equal(t, 2, sched.Kills())
}

func TestRunRestartsAfterReadError(t *testing.T) {
	t.Cleanup(monitoring.Discard())
	car := &fakeCar{}
	broken := &scriptedSource{err: errors.New("device unplugged")}
	finder := &fakeFinder{sources: []*scriptedSource{broken}}
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c := New(Options{Car: car, Finder: finder, Clock: clock, Timeout: 5 * time.Second})

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	// backoff, then one failed search and one retry before giving up
	for i := 0; i < 2; i++ {
		require.True(t, clock.WaitForTimers(1, time.Second))
		clock.Advance(DefaultRetry)
	}
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrDeviceNotFound)
		assert.True(t, strings.Contains(err.Error(), "5s"))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not give up")
	}
	assert.True(t, broken.closed)
	assert.Equal(t, []string{"stop", "stop"}, car.Calls())
}
