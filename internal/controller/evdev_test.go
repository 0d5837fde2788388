package controller

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	var buf bytes.Buffer
	want := Event{
		Time:  time.Unix(1700000000, 250000*int64(time.Microsecond)),
		Type:  EventKey,
		Code:  uint16(ButtonStart),
		Value: KeyPressed,
	}
	require.NoError(t, EncodeEvent(&buf, want))
	assert.Equal(t, eventSize, buf.Len())

	got, err := DecodeEvent(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DecodeEvent mismatch (-want +got):\n%s", diff)
	}

	_, err = DecodeEvent(bytes.NewReader(make([]byte, 10)))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

// fakeInput lays out an input dir and a sysfs dir with the given devices.
func fakeInput(t *testing.T, names map[string]string, events map[string][]Event) EvdevFinder {
	t.Helper()
	root := t.TempDir()
	f := EvdevFinder{
		InputDir: filepath.Join(root, "dev"),
		SysDir:   filepath.Join(root, "sys"),
	}
	require.NoError(t, os.MkdirAll(f.InputDir, 0o755))
	for node, name := range names {
		dir := filepath.Join(f.SysDir, node, "device")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "name"), []byte(name+"\n"), 0o644))

		var buf bytes.Buffer
		for _, e := range events[node] {
			require.NoError(t, EncodeEvent(&buf, e))
		}
		require.NoError(t, os.WriteFile(filepath.Join(f.InputDir, node), buf.Bytes(), 0o644))
	}
	return f
}

func TestEvdevFinder(t *testing.T) {
	f := fakeInput(t, map[string]string{
		"event0": "Power Button",
		"event3": "Wireless Controller",
		"event4": "Wireless Controller Motion Sensors",
	}, map[string][]Event{
		"event3": {key(ButtonA), pad(AxisVertical, AxisLow)},
	})

	devices, err := f.Devices()
	require.NoError(t, err)
	assert.Len(t, devices, 3)
	assert.Equal(t, "Power Button", devices[filepath.Join(f.InputDir, "event0")])

	dev, err := f.Find("Controller")
	require.NoError(t, err)
	defer dev.Close()
	assert.Equal(t, "Wireless Controller", dev.Name())

	ctx := context.Background()
	e, err := dev.ReadEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, key(ButtonA).Code, e.Code)
	e, err = dev.ReadEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, AxisVertical, e.Code)
	assert.Equal(t, AxisLow, e.Value)

	_, err = dev.ReadEvent(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestEvdevFinderNotFound(t *testing.T) {
	f := fakeInput(t, map[string]string{"event0": "Power Button"}, nil)
	_, err := f.Find("Controller")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestEvdevReadCancelled(t *testing.T) {
	f := fakeInput(t, map[string]string{"event1": "Controller"}, nil)
	dev, err := f.Find("Controller")
	require.NoError(t, err)
	defer dev.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = dev.ReadEvent(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
