package controller

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Default locations of the evdev character devices and their sysfs entries.
const (
	DefaultInputDir = "/dev/input"
	DefaultSysDir   = "/sys/class/input"
)

// rawEvent mirrors struct input_event on 64-bit linux.
type rawEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// eventSize is the wire size of rawEvent.
const eventSize = 24

// DecodeEvent reads one input_event record from r.
func DecodeEvent(r io.Reader) (Event, error) {
	var raw rawEvent
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return Event{}, err
	}
	return Event{
		Time:  time.Unix(raw.Sec, raw.Usec*int64(time.Microsecond)),
		Type:  raw.Type,
		Code:  raw.Code,
		Value: raw.Value,
	}, nil
}

// EncodeEvent writes e as an input_event record.
func EncodeEvent(w io.Writer, e Event) error {
	raw := rawEvent{Type: e.Type, Code: e.Code, Value: e.Value}
	if !e.Time.IsZero() {
		raw.Sec = e.Time.Unix()
		raw.Usec = int64(e.Time.Nanosecond()) / int64(time.Microsecond)
	}
	return binary.Write(w, binary.LittleEndian, raw)
}

// EvdevFinder finds gamepads among the evdev devices of the host.
type EvdevFinder struct {
	InputDir string
	SysDir   string
}

func (f EvdevFinder) dirs() (string, string) {
	in, sys := f.InputDir, f.SysDir
	if in == "" {
		in = DefaultInputDir
	}
	if sys == "" {
		sys = DefaultSysDir
	}
	return in, sys
}

// Devices lists the event devices and their names.
func (f EvdevFinder) Devices() (map[string]string, error) {
	in, sys := f.dirs()
	paths, err := filepath.Glob(filepath.Join(in, "event*"))
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		node := filepath.Base(p)
		name, err := os.ReadFile(filepath.Join(sys, node, "device", "name"))
		if err != nil {
			continue
		}
		out[p] = strings.TrimSpace(string(name))
	}
	return out, nil
}

// Find opens the first device, in path order, whose name contains name.
func (f EvdevFinder) Find(name string) (EventSource, error) {
	devices, err := f.Devices()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}
	paths := make([]string, 0, len(devices))
	for p := range devices {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if !strings.Contains(devices[p], name) {
			continue
		}
		file, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", p, err)
		}
		return &evdevDevice{name: devices[p], f: file}, nil
	}
	return nil, fmt.Errorf("%w: no device named %q", ErrDeviceNotFound, name)
}

type evdevDevice struct {
	name string
	f    *os.File
	buf  [eventSize]byte
}

func (d *evdevDevice) Name() string { return d.name }

// ReadEvent reads the next record. Cancelling ctx expires the read deadline
// so a blocked read returns.
func (d *evdevDevice) ReadEvent(ctx context.Context) (Event, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = d.f.SetReadDeadline(time.Now())
	})
	defer stop()

	if _, err := io.ReadFull(d.f, d.buf[:]); err != nil {
		if ctx.Err() != nil {
			return Event{}, ctx.Err()
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			_ = d.f.SetReadDeadline(time.Time{})
		}
		return Event{}, fmt.Errorf("read %s: %w", d.f.Name(), err)
	}
	return DecodeEvent(bytes.NewReader(d.buf[:]))
}

func (d *evdevDevice) Close() error { return d.f.Close() }
