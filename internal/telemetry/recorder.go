package telemetry

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/lanekeeper/internal/monitoring"
	"github.com/banshee-data/lanekeeper/internal/timeutil"
)

// Recorder writes samples to a Store while recording is toggled on. Each
// recording session gets its own run id.
type Recorder struct {
	store *Store
	clock timeutil.Clock

	mu    sync.Mutex
	runID string
}

// NewRecorder returns a stopped recorder. A nil clock uses real time.
func NewRecorder(store *Store, clock timeutil.Clock) *Recorder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Recorder{store: store, clock: clock}
}

// Toggle starts a new run or stops the current one and reports whether
// recording is now on.
func (r *Recorder) Toggle() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	if r.runID != "" {
		id := r.runID
		r.runID = ""
		monitoring.Logf("recording stopped (run %s)", id)
		return false, r.store.StopRun(id, now)
	}
	id := uuid.NewString()
	if err := r.store.StartRun(id, now); err != nil {
		return false, err
	}
	r.runID = id
	monitoring.Logf("recording started (run %s)", id)
	return true, nil
}

// Recording reports whether samples are being stored.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID != ""
}

// RunID returns the current run, empty when stopped.
func (r *Recorder) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

// Record stores s in the current run. It does nothing while stopped.
func (r *Recorder) Record(s Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runID == "" {
		return nil
	}
	s.RunID = r.runID
	if s.RecordedAt.IsZero() {
		s.RecordedAt = r.clock.Now()
	}
	if err := r.store.Insert(s); err != nil {
		return fmt.Errorf("record sample: %w", err)
	}
	return nil
}
