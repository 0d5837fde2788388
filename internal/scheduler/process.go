package scheduler

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/banshee-data/lanekeeper/internal/monitoring"
)

// Process runs the loop inside a child process so blocking camera I/O or a
// driver crash cannot take down the controller.
type Process struct {
	opts Options

	mu      sync.Mutex
	cmd     *exec.Cmd
	exited  chan struct{}
	waitErr error

	teardown sync.Once
}

// NewProcess builds an isolated scheduler.
func NewProcess(opts Options) *Process {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 2 * time.Second
	}
	return &Process{opts: opts}
}

// Start launches the worker unless one is running.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.runningLocked() {
		return nil
	}
	cmd := p.opts.Command()
	if cmd == nil {
		return ErrNoCommand
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s worker: %w", p.opts.Name, err)
	}
	monitoring.Logf("%s worker started (pid %d)", p.opts.Name, cmd.Process.Pid)

	exited := make(chan struct{})
	p.cmd, p.exited = cmd, exited
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.waitErr = err
		p.mu.Unlock()
		close(exited)
	}()
	return nil
}

// Stop interrupts the worker and waits for it to exit, killing it if it
// does not exit within StopTimeout.
func (p *Process) Stop() error {
	p.mu.Lock()
	cmd, exited := p.cmd, p.exited
	p.mu.Unlock()
	if cmd == nil {
		return nil
	}

	select {
	case <-exited:
	default:
		if err := cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
			monitoring.Logf("%s worker interrupt failed: %v", p.opts.Name, err)
		}
		select {
		case <-exited:
		case <-time.After(p.opts.StopTimeout):
			monitoring.Logf("%s worker did not exit after %v, killing", p.opts.Name, p.opts.StopTimeout)
			_ = cmd.Process.Kill()
			<-exited
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == cmd {
		p.cmd = nil
	}
	return nil
}

// Kill stops the worker and runs the teardown hook once.
func (p *Process) Kill() error {
	err := p.Stop()
	p.teardown.Do(func() {
		if p.opts.Teardown != nil {
			p.opts.Teardown()
		}
	})
	return err
}

// Toggle flips between running and stopped.
func (p *Process) Toggle() (bool, error) {
	if p.Running() {
		return false, p.Stop()
	}
	return true, p.Start()
}

// Running reports whether the worker process is alive.
func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runningLocked()
}

// ExitErr returns the error from the last worker's exit, if any.
func (p *Process) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

func (p *Process) runningLocked() bool {
	if p.cmd == nil {
		return false
	}
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}
