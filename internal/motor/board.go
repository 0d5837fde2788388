package motor

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// Port is the minimal serial port surface the motor board needs.
type Port interface {
	io.ReadWriter
	io.Closer
}

// PortOptions describes the serial link to the motor board.
type PortOptions struct {
	BaudRate int    `json:"baud_rate" yaml:"baud_rate"`
	DataBits int    `json:"data_bits" yaml:"data_bits"`
	StopBits int    `json:"stop_bits" yaml:"stop_bits"`
	Parity   string `json:"parity" yaml:"parity"`
}

// Normalize validates the options and fills defaults (115200 8N1).
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}
	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	return opts, nil
}

// SerialMode converts the options for go.bug.st/serial.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// Board is a serial motor controller. Each wheel is addressed by its 1-based
// motor number with a line of the form "M<n> <throttle>\n".
type Board struct {
	mu       sync.Mutex
	port     Port
	throttle [4]float64
}

// NewBoard wraps an already open port.
func NewBoard(port Port) *Board {
	return &Board{port: port}
}

// OpenBoard opens the serial device at path.
func OpenBoard(path string, opts PortOptions) (*Board, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open motor board %s: %w", path, err)
	}
	return NewBoard(port), nil
}

// Motors returns the four wheel motors in FL, FR, BL, BR order.
func (b *Board) Motors() [4]Motor {
	var out [4]Motor
	for i := range out {
		out[i] = &boardMotor{board: b, wheel: Wheels[i]}
	}
	return out
}

// Close stops every wheel and closes the port.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, v := range b.throttle {
		if v != 0 {
			_ = b.write(Wheels[i], 0)
		}
	}
	return b.port.Close()
}

func (b *Board) write(w Wheel, v float64) error {
	if _, err := fmt.Fprintf(b.port, "M%d %.2f\n", int(w)+1, v); err != nil {
		return fmt.Errorf("write %s: %w", w, err)
	}
	b.throttle[w] = v
	return nil
}

type boardMotor struct {
	board *Board
	wheel Wheel
}

func (m *boardMotor) Throttle() float64 {
	m.board.mu.Lock()
	defer m.board.mu.Unlock()
	return m.board.throttle[m.wheel]
}

func (m *boardMotor) SetThrottle(v float64) error {
	if v < -1 || v > 1 {
		return fmt.Errorf("throttle %v out of range [-1, 1]", v)
	}
	m.board.mu.Lock()
	defer m.board.mu.Unlock()
	return m.board.write(m.wheel, v)
}
