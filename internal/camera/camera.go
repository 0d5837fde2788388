// Package camera owns the single video device. Reads, releases and driver
// resets are serialised so nothing reads while the driver is reloading.
package camera

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"gocv.io/x/gocv"

	"github.com/banshee-data/lanekeeper/internal/monitoring"
)

// ErrNotAcquired is returned by Read when the device cannot be opened.
var ErrNotAcquired = errors.New("camera: not acquired")

// Device is an open video source. *gocv.VideoCapture implements it.
type Device interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Opener opens the device with the given index.
type Opener func(id int) (Device, error)

// Runner runs a system command.
type Runner func(ctx context.Context, name string, args ...string) error

// OpenVideo opens a V4L device through gocv.
func OpenVideo(id int) (Device, error) {
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("open video device %d: %w", id, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("video device %d did not open", id)
	}
	return vc, nil
}

// RunCommand runs name with args and waits for it.
func RunCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, out)
	}
	return nil
}

// driverReload unloads and reloads the UVC driver with options that keep
// cheap webcams from dropping frames.
var driverReload = [][]string{
	{"sudo", "rmmod", "uvcvideo"},
	{"sudo", "modprobe", "uvcvideo", "nodrop=1", "timeout=10000", "quirks=0x80"},
}

// Options configures a Camera. Zero values take defaults.
type Options struct {
	DeviceID int
	Opener   Opener
	Runner   Runner
	// FailureReset is the number of consecutive failed reads that triggers
	// Reset. Zero disables automatic resets.
	FailureReset int
	Metrics      *monitoring.Metrics
}

// Camera is the process-wide camera resource.
type Camera struct {
	mu       sync.Mutex
	opts     Options
	dev      Device
	failures int
}

// New builds a Camera. It does not open the device.
func New(opts Options) *Camera {
	if opts.Opener == nil {
		opts.Opener = OpenVideo
	}
	if opts.Runner == nil {
		opts.Runner = RunCommand
	}
	return &Camera{opts: opts}
}

// Acquire opens the device if it is not already open.
func (c *Camera) Acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquireLocked()
}

func (c *Camera) acquireLocked() error {
	if c.dev != nil {
		return nil
	}
	dev, err := c.opts.Opener(c.opts.DeviceID)
	if err != nil {
		return err
	}
	c.dev = dev
	c.failures = 0
	return nil
}

// Release closes the device.
func (c *Camera) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releaseLocked()
}

func (c *Camera) releaseLocked() error {
	if c.dev == nil {
		return nil
	}
	err := c.dev.Close()
	c.dev = nil
	return err
}

// Reset releases the device, reloads the driver and reacquires.
func (c *Camera) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetLocked(ctx)
}

func (c *Camera) resetLocked(ctx context.Context) error {
	if err := c.releaseLocked(); err != nil {
		monitoring.Logf("camera release before reset: %v", err)
	}
	for _, argv := range driverReload {
		if err := c.opts.Runner(ctx, argv[0], argv[1:]...); err != nil {
			monitoring.Logf("camera driver reload: %v", err)
		}
	}
	if c.opts.Metrics != nil {
		c.opts.Metrics.CameraResets.Inc()
	}
	if err := c.acquireLocked(); err != nil {
		return fmt.Errorf("reacquire camera after reset: %w", err)
	}
	monitoring.Logf("camera reset")
	return nil
}

// Read grabs a frame into m, opening the device first if it was released.
// A failed read returns false with a nil error; after FailureReset
// consecutive failures the camera is reset.
func (c *Camera) Read(ctx context.Context, m *gocv.Mat) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil {
		if err := c.acquireLocked(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrNotAcquired, err)
		}
	}
	if c.dev.Read(m) && !m.Empty() {
		c.failures = 0
		return true, nil
	}
	c.failures++
	if c.opts.FailureReset > 0 && c.failures >= c.opts.FailureReset {
		monitoring.Logf("camera failed %d reads in a row, resetting", c.failures)
		c.failures = 0
		if err := c.resetLocked(ctx); err != nil {
			return false, err
		}
	}
	return false, nil
}

// Failures returns the current run of consecutive failed reads.
func (c *Camera) Failures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures
}
