package carproto

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/lanekeeper/internal/monitoring"
	"github.com/banshee-data/lanekeeper/internal/motor"
	"github.com/banshee-data/lanekeeper/internal/security"
)

// Actuator applies wheel commands to the motors. *motor.Bank implements it.
type Actuator interface {
	Apply(ctx context.Context, cmd motor.WheelCommand) (int, error)
	Throttle() motor.WheelCommand
}

// ServerConfig configures a Server.
type ServerConfig struct {
	Address      string
	Actuator     Actuator
	OnDisconnect func()
	Metrics      *monitoring.Metrics
	// PollInterval bounds how long a blocked read waits before checking for
	// shutdown. Defaults to 100ms.
	PollInterval time.Duration
}

// Server accepts one client at a time and applies its requests.
type Server struct {
	address      string
	act          Actuator
	onDisconnect func()
	metrics      *monitoring.Metrics
	poll         time.Duration

	mu sync.Mutex
	ln net.Listener
}

// NewServer builds a Server. It does not listen until Listen or Serve.
func NewServer(cfg ServerConfig) *Server {
	addr := cfg.Address
	if addr == "" {
		addr = DefaultAddress
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	onDisconnect := cfg.OnDisconnect
	if onDisconnect == nil {
		onDisconnect = func() {}
	}
	return &Server{
		address:      addr,
		act:          cfg.Actuator,
		onDisconnect: onDisconnect,
		metrics:      cfg.Metrics,
		poll:         poll,
	}
}

// Listen binds the listening socket. Serve calls it when needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}
	if err := security.ValidateLoopbackAddress(s.address); err != nil {
		return fmt.Errorf("refusing to listen: %w", err)
	}
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	s.ln = nil
	return err
}

// Serve accepts and handles connections one after another until ctx is done
// or the server is closed.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	monitoring.Logf("car server listening on %s", ln.Addr())

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	session := uuid.NewString()
	monitoring.Logf("car client %s connected from %s", session, conn.RemoteAddr())

	buf := make([]byte, BufferSize)
	for {
		if ctx.Err() != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.poll))
		n, err := conn.Read(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if !errors.Is(err, io.EOF) {
				monitoring.Logf("car client %s read error: %v", session, err)
			}
			monitoring.Logf("car client %s disconnected", session)
			s.onDisconnect()
			return
		}
		if n == 0 {
			s.onDisconnect()
			return
		}
		if n == len(buf) {
			s.count("violation")
			s.reply(conn, errorReply(fmt.Errorf("%w: request must be shorter than %d bytes", ErrProtocol, BufferSize)))
			monitoring.Logf("car client %s dropped: oversized request", session)
			s.onDisconnect()
			return
		}

		req := string(buf[:n])
		cmd, err := DecodeCommand(req)
		if err != nil {
			s.count("malformed")
			s.reply(conn, errorReply(err))
			continue
		}
		if _, err := s.act.Apply(ctx, cmd); err != nil {
			s.count("apply_error")
			s.reply(conn, errorReply(err))
			continue
		}
		s.count("ok")
		s.reply(conn, req)
	}
}

func (s *Server) reply(conn net.Conn, msg string) {
	if _, err := io.WriteString(conn, msg); err != nil {
		monitoring.Logf("car server reply failed: %v", err)
	}
}

func (s *Server) count(status string) {
	if s.metrics != nil {
		s.metrics.ProtocolRequests.WithLabelValues(status).Inc()
	}
}
