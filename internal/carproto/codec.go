// Package carproto is the localhost actuation protocol between the process
// that decides wheel throttle and the car server that owns the motors.
//
// A request is four comma-separated floats in FL, FR, BL, BR order, sent in a
// single write. The server answers with the request text on success or
// "err: <reason>" when the request cannot be parsed.
package carproto

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/lanekeeper/internal/motor"
)

// DefaultAddress is where the car server listens.
const DefaultAddress = "127.0.0.1:8088"

// BufferSize is the server read buffer. A request must be shorter than this;
// a read that fills the buffer is a protocol violation.
const BufferSize = 128

// ErrorPrefix starts every error reply.
const ErrorPrefix = "err: "

var (
	// ErrProtocol marks a request that broke framing. The server drops the
	// connection.
	ErrProtocol = errors.New("carproto: protocol violation")
	// ErrMalformed marks a request that could not be parsed. The connection
	// stays open.
	ErrMalformed = errors.New("carproto: malformed request")
	// ErrRejected is returned by the client when the server answers with an
	// error reply.
	ErrRejected = errors.New("carproto: request rejected")
)

// EncodeCommand formats cmd as a request.
func EncodeCommand(cmd motor.WheelCommand) string {
	parts := make([]string, len(cmd))
	for i, v := range cmd {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// DecodeCommand parses a request. Whitespace around values is ignored.
func DecodeCommand(req string) (motor.WheelCommand, error) {
	var cmd motor.WheelCommand
	fields := strings.Split(strings.TrimSpace(req), ",")
	if len(fields) != len(cmd) {
		return cmd, fmt.Errorf("%w: want %d values, got %d", ErrMalformed, len(cmd), len(fields))
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return motor.WheelCommand{}, fmt.Errorf("%w: value %d: %v", ErrMalformed, i+1, err)
		}
		if math.IsNaN(v) || v < -1 || v > 1 {
			return motor.WheelCommand{}, fmt.Errorf("%w: value %d (%v) outside [-1, 1]", ErrMalformed, i+1, v)
		}
		cmd[i] = v
	}
	return cmd, nil
}

func errorReply(err error) string {
	return ErrorPrefix + err.Error()
}
