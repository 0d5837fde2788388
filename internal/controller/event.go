// Package controller turns gamepad input into drive commands. It finds the
// gamepad, reads its event stream and dispatches each event to a named
// handler on the Controller.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDeviceNotFound is returned when no input device matches the gamepad
// name, and by Run once the search times out.
var ErrDeviceNotFound = errors.New("controller: gamepad not found")

// Event types from linux/input-event-codes.h.
const (
	EventSync uint16 = 0
	EventKey  uint16 = 1
	EventAbs  uint16 = 3
)

// Button is a key code reported with EventKey.
type Button uint16

const (
	ButtonX            Button = 304
	ButtonA            Button = 305
	ButtonB            Button = 306
	ButtonY            Button = 307
	ButtonLeftTrigger  Button = 308
	ButtonRightTrigger Button = 309
	ButtonSelect       Button = 312
	ButtonStart        Button = 313
)

func (b Button) String() string {
	switch b {
	case ButtonX:
		return "X"
	case ButtonA:
		return "A"
	case ButtonB:
		return "B"
	case ButtonY:
		return "Y"
	case ButtonLeftTrigger:
		return "LT"
	case ButtonRightTrigger:
		return "RT"
	case ButtonSelect:
		return "SELECT"
	case ButtonStart:
		return "START"
	default:
		return fmt.Sprintf("button(%d)", uint16(b))
	}
}

// D-pad axes and their values. The pad reports 0 or 255 while a direction
// is held and 128 when it is released.
const (
	AxisHorizontal uint16 = 0
	AxisVertical   uint16 = 1

	AxisLow      int32 = 0
	AxisReleased int32 = 128
	AxisHigh     int32 = 255
)

// KeyPressed is the EventKey value of a button press.
const KeyPressed int32 = 1

// Event is one decoded input event.
type Event struct {
	Time  time.Time
	Type  uint16
	Code  uint16
	Value int32
}

// EventSource is an open input device.
type EventSource interface {
	// Name is the device name reported by the kernel.
	Name() string
	// ReadEvent blocks until the next event arrives or ctx is done.
	ReadEvent(ctx context.Context) (Event, error)
	Close() error
}

// Finder opens the input device whose name contains name. It returns an
// error wrapping ErrDeviceNotFound when there is none.
type Finder interface {
	Find(name string) (EventSource, error)
}
