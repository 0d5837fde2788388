package camera

import (
	"sync"

	"gocv.io/x/gocv"
)

// FakeDevice replays frames for tests and the dev car. Each Read takes the
// next entry of Frames; a nil entry or running out of frames fails the read.
// With Loop set the frames repeat.
type FakeDevice struct {
	mu     sync.Mutex
	Frames []*gocv.Mat
	Loop   bool
	next   int
	reads  int
	closed bool
}

// Read copies the next frame into m.
func (d *FakeDevice) Read(m *gocv.Mat) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if d.closed || len(d.Frames) == 0 {
		return false
	}
	if d.next >= len(d.Frames) {
		if !d.Loop {
			return false
		}
		d.next = 0
	}
	f := d.Frames[d.next]
	d.next++
	if f == nil {
		return false
	}
	f.CopyTo(m)
	return true
}

// Close marks the device closed.
func (d *FakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Reads returns the number of Read calls.
func (d *FakeDevice) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

// Closed reports whether Close was called.
func (d *FakeDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
