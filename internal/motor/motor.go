package motor

import (
	"fmt"
	"sync"
)

// Motor is a single wheel motor accepting throttle in [-1, 1].
type Motor interface {
	Throttle() float64
	SetThrottle(v float64) error
}

// MemoryMotor is a Motor that only remembers its throttle. It backs the car
// server when no motor board is attached and is used throughout the tests.
type MemoryMotor struct {
	mu       sync.Mutex
	throttle float64
	history  []float64
}

// Throttle returns the last value set.
func (m *MemoryMotor) Throttle() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.throttle
}

// SetThrottle stores v.
func (m *MemoryMotor) SetThrottle(v float64) error {
	if v < -1 || v > 1 {
		return fmt.Errorf("throttle %v out of range [-1, 1]", v)
	}
	m.mu.Lock()
	m.throttle = v
	m.history = append(m.history, v)
	m.mu.Unlock()
	return nil
}

// History returns every value set so far.
func (m *MemoryMotor) History() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.history))
	copy(out, m.history)
	return out
}

// NewMemoryMotors returns four fresh in-memory motors.
func NewMemoryMotors() [4]*MemoryMotor {
	return [4]*MemoryMotor{{}, {}, {}, {}}
}
