// Package session implements the per-connection actor shared by the TCP and
// WebSocket transports: registration, heartbeat, command routing and teardown.
package session

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adwski/trust-chat/backend/command"
	"github.com/adwski/trust-chat/backend/model"
	"github.com/adwski/trust-chat/backend/service"
	"github.com/rs/zerolog"
)

const (
	defaultOutboxSize = 256

	defaultHeartbeatInterval = 5 * time.Second
	defaultClientTimeout     = 10 * time.Second
)

var (
	ErrHeartbeatTimeout = errors.New("client heartbeat timed out")
	ErrConnect          = errors.New("unable to connect to registry")
)

type State int32

const (
	StateConnecting State = iota
	StateActive
	StateDisconnecting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateDisconnecting:
		return "disconnecting"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type (
	Registry interface {
		Connect(wire model.Wire) (string, error)
		Disconnect(connID string)
		Join(connID, roomName, username string) error
		Broadcast(connID, text string) error
		DirectMessage(connID, text string) error
	}

	// Transport is the connection-specific half of a session. Read returns the
	// frames decoded from one underlying read, possibly none. Write and Probe
	// are only ever called from a single goroutine.
	Transport interface {
		Read() ([]string, error)
		Write(msg string) error
		Probe() error
		Close() error
		RemoteAddr() string
	}

	// ActivityNotifier is implemented by transports that observe peer activity
	// outside of Read, e.g. WebSocket pong frames.
	ActivityNotifier interface {
		NotifyActivity(func())
	}

	Heartbeat struct {
		Interval time.Duration
		Timeout  time.Duration
	}

	Config struct {
		Registry   Registry
		Logger     *zerolog.Logger
		Heartbeat  Heartbeat
		OutboxSize int
	}

	Session struct {
		reg        Registry
		transport  Transport
		heartbeat  Heartbeat
		outboxSize int
		logger     zerolog.Logger

		id       string
		state    atomic.Int32
		lastSeen atomic.Int64
		now      func() time.Time
	}
)

func New(cfg Config, transport Transport) *Session {
	outboxSize := cfg.OutboxSize
	if outboxSize <= 0 {
		outboxSize = defaultOutboxSize
	}
	hb := cfg.Heartbeat
	if hb.Interval <= 0 {
		hb.Interval = defaultHeartbeatInterval
	}
	if hb.Timeout <= 0 {
		hb.Timeout = defaultClientTimeout
	}
	return &Session{
		reg:        cfg.Registry,
		transport:  transport,
		heartbeat:  hb,
		outboxSize: outboxSize,
		logger:     cfg.Logger.With().Str("remote", transport.RemoteAddr()).Logger(),
		now:        time.Now,
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// ID returns the connection id assigned by the registry, empty until Active.
func (s *Session) ID() string {
	if s.State() < StateActive {
		return ""
	}
	return s.id
}

// Run drives the session until the transport closes, the heartbeat expires
// or ctx is canceled. The registry is told about the disconnect exactly once
// and the transport is released before Run returns. Normal peer closure
// yields a nil error.
func (s *Session) Run(ctx context.Context) error {
	s.setState(StateConnecting)
	s.touch()

	wire := model.NewWire(s.outboxSize)
	defer wire.Close()

	connID, err := s.connect(wire)
	if err != nil {
		s.logger.Error().Err(err).Msg("registration failed")
		s.release()
		s.setState(StateTerminated)
		return errors.Join(ErrConnect, err)
	}
	s.id = connID
	s.logger = s.logger.With().Str("connID", connID).Logger()

	if n, ok := s.transport.(ActivityNotifier); ok {
		n.NotifyActivity(s.touch)
	}
	s.setState(StateActive)
	s.logger.Debug().Msg("session started")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errc <- s.receive(ctx)
		cancel()
	}()
	go func() {
		defer wg.Done()
		errc <- s.send(ctx, wire)
		cancel()
	}()

	<-ctx.Done()
	s.setState(StateDisconnecting)
	s.reg.Disconnect(connID)
	s.release()
	wg.Wait()
	s.setState(StateTerminated)

	cause := <-errc
	if cause == nil || errors.Is(cause, io.EOF) || errors.Is(cause, net.ErrClosed) {
		s.logger.Debug().Msg("session ended")
		return nil
	}
	s.logger.Debug().Err(cause).Msg("session ended")
	return cause
}

func (s *Session) connect(wire model.Wire) (string, error) {
	connID, err := s.reg.Connect(wire)
	if errors.Is(err, service.ErrRegistration) {
		s.logger.Warn().Err(err).Msg("registration collided, retrying")
		connID, err = s.reg.Connect(wire)
	}
	return connID, err
}

func (s *Session) receive(ctx context.Context) error {
	for {
		frames, err := s.transport.Read()
		if err != nil {
			return err
		}
		s.touch()
		for _, frame := range frames {
			if ctx.Err() != nil {
				return nil
			}
			s.handle(frame)
		}
	}
}

func (s *Session) handle(line string) {
	cmd, err := command.Parse(line)
	if err != nil {
		s.logger.Debug().Err(err).Msg("malformed command")
		s.replyError()
		return
	}

	switch c := cmd.(type) {
	case command.JoinRoom:
		err = s.reg.Join(s.id, c.Room, c.Username)
	case command.BroadcastMessage:
		err = s.reg.Broadcast(s.id, c.Text)
	}

	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidConnection):
		s.logger.Debug().Err(err).Msg("command dropped")
	case errors.Is(err, service.ErrDuplicateMembership), errors.Is(err, service.ErrMalformedCommand):
		s.logger.Debug().Err(err).Msg("command rejected")
		s.replyError()
	default:
		s.logger.Error().Err(err).Msg("command failed")
	}
}

// replyError answers this connection only.
func (s *Session) replyError() {
	if err := s.reg.DirectMessage(s.id, model.ErrorMessage()); err != nil {
		s.logger.Error().Err(err).Msg("failed to send error reply")
	}
}

func (s *Session) send(ctx context.Context, wire model.Wire) error {
	ticker := time.NewTicker(s.heartbeat.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if gap := s.now().Sub(s.lastSeenTime()); gap > s.heartbeat.Timeout {
				s.logger.Warn().Dur("gap", gap).Msg("heartbeat failed, disconnecting")
				return ErrHeartbeatTimeout
			}
			if err := s.transport.Probe(); err != nil {
				return err
			}
			s.logger.Trace().Msg("probe sent")
		case msg := <-wire.TX:
			if err := s.transport.Write(msg); err != nil {
				return err
			}
		}
	}
}

func (s *Session) release() {
	if err := s.transport.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Error().Err(err).Msg("failed to close transport")
	}
}

func (s *Session) touch() {
	s.lastSeen.Store(s.now().UnixNano())
}

func (s *Session) lastSeenTime() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}
