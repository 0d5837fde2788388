package motor

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lanekeeper/internal/monitoring"
	"github.com/banshee-data/lanekeeper/internal/timeutil"
)

func newTestBank(t *testing.T) (*Bank, [4]*MemoryMotor, *timeutil.MockClock) {
	t.Helper()
	mem := NewMemoryMotors()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	bank := NewBank([4]Motor{mem[0], mem[1], mem[2], mem[3]}, BankOptions{Clock: clock})
	return bank, mem, clock
}

func TestBankApplyRampsToTarget(t *testing.T) {
	bank, mem, clock := newTestBank(t)

	ticks, err := bank.Apply(context.Background(), Uniform(0.8))
	require.NoError(t, err)
	assert.Equal(t, Uniform(0.8), bank.Throttle())
	assert.LessOrEqual(t, ticks, StepsNeeded(0, 0.8, DefaultRampStep))
	assert.Len(t, clock.Sleeps(), ticks-1)

	// Every wheel steps in the same loop, so histories line up.
	for _, m := range mem[1:] {
		assert.Equal(t, mem[0].History(), m.History())
	}
}

func TestBankApplyNeverOvershoots(t *testing.T) {
	bank, mem, _ := newTestBank(t)
	_, err := bank.Apply(context.Background(), WheelCommand{0.9, -0.9, 0.7, -0.7})
	require.NoError(t, err)

	targets := []float64{0.9, -0.9, 0.7, -0.7}
	for i, m := range mem {
		prev := 0.0
		for _, v := range m.History() {
			assert.LessOrEqual(t, math.Abs(v-prev), DefaultRampStep+1e-9, "wheel %d jumped", i)
			assert.LessOrEqual(t, math.Abs(v), math.Abs(targets[i])+1e-9)
			prev = v
		}
		assert.Equal(t, targets[i], m.Throttle())
	}
}

func TestBankApplyZeroBypassesRamp(t *testing.T) {
	bank, mem, _ := newTestBank(t)
	_, err := bank.Apply(context.Background(), Uniform(0.9))
	require.NoError(t, err)

	ticks, err := bank.Apply(context.Background(), WheelCommand{0, 0.9, 0, 0.9})
	require.NoError(t, err)
	assert.Equal(t, 0, ticks)
	assert.Equal(t, 0.0, mem[FrontLeft].Throttle())
	assert.Equal(t, 0.0, mem[BackLeft].Throttle())
	assert.Equal(t, 0.9, mem[FrontRight].Throttle())
}

func TestBankApplyClampsIntoBand(t *testing.T) {
	bank, _, _ := newTestBank(t)
	_, err := bank.Apply(context.Background(), WheelCommand{0.2, 1, -0.3, -1})
	require.NoError(t, err)
	assert.Equal(t, WheelCommand{0.7, 0.95, -0.7, -0.95}, bank.Throttle())
}

func TestBankApplyConvergenceBound(t *testing.T) {
	tests := []struct {
		from, to float64
	}{
		{0, 0.7},
		{0.7, 0.95},
		{0.95, -0.95},
		{-0.8, 0.8},
		{0.9, 0.8},
	}
	for _, tt := range tests {
		bank, _, _ := newTestBank(t)
		_, err := bank.Apply(context.Background(), Uniform(tt.from))
		require.NoError(t, err)

		ticks, err := bank.Apply(context.Background(), Uniform(tt.to))
		require.NoError(t, err)
		assert.LessOrEqual(t, ticks, StepsNeeded(tt.from, tt.to, DefaultRampStep), "%v -> %v", tt.from, tt.to)
		assert.Equal(t, Uniform(tt.to), bank.Throttle())
	}
}

func TestBankApplyCancelled(t *testing.T) {
	bank, _, _ := newTestBank(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := bank.Apply(ctx, Uniform(0.8))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBankRecordsMetrics(t *testing.T) {
	mem := NewMemoryMotors()
	metrics := monitoring.NewMetrics()
	bank := NewBank([4]Motor{mem[0], mem[1], mem[2], mem[3]}, BankOptions{
		Clock:   timeutil.NewMockClock(time.Unix(0, 0)),
		Metrics: metrics,
	})
	_, err := bank.Apply(context.Background(), WheelCommand{0.8, 0, 0, 0})
	require.NoError(t, err)

	assert.Equal(t, 0.8, testutil.ToFloat64(metrics.WheelThrottle.WithLabelValues(FrontLeft.String())))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.WheelThrottle.WithLabelValues(FrontRight.String())))
}
