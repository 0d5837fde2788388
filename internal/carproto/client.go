package carproto

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/lanekeeper/internal/motor"
)

// Client sends wheel commands to a car server and waits for each ack. It
// dials lazily and redials after a failed exchange.
type Client struct {
	address string
	timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

// NewClient returns a client for address. A zero timeout uses 5s per
// exchange when the context has no deadline.
func NewClient(address string, timeout time.Duration) *Client {
	if address == "" {
		address = DefaultAddress
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{address: address, timeout: timeout}
}

// Send writes cmd and returns the server's reply. An error reply is returned
// along with an error wrapping ErrRejected.
func (c *Client) Send(ctx context.Context, cmd motor.WheelCommand) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", c.address)
		if err != nil {
			return "", fmt.Errorf("dial car server %s: %w", c.address, err)
		}
		c.conn = conn
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	_ = c.conn.SetDeadline(deadline)

	if _, err := io.WriteString(c.conn, EncodeCommand(cmd)); err != nil {
		c.drop()
		return "", fmt.Errorf("send command: %w", err)
	}
	buf := make([]byte, BufferSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		c.drop()
		return "", fmt.Errorf("read ack: %w", err)
	}
	reply := string(buf[:n])
	if strings.HasPrefix(reply, ErrorPrefix) {
		return reply, fmt.Errorf("%w: %s", ErrRejected, strings.TrimPrefix(reply, ErrorPrefix))
	}
	return reply, nil
}

// Drive sends cmd and discards the ack so the client can act as a drive
// transport.
func (c *Client) Drive(ctx context.Context, cmd motor.WheelCommand) error {
	_, err := c.Send(ctx, cmd)
	return err
}

// Close closes the connection. The client can still be used afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) drop() {
	_ = c.conn.Close()
	c.conn = nil
}
