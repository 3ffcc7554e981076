// Package tcp serves the raw line-oriented chat protocol over TCP.
package tcp

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/adwski/trust-chat/backend/session"
	"github.com/rs/zerolog"
)

const (
	defaultHeartbeatInterval = 60 * time.Second
	defaultClientTimeout     = 300 * time.Second

	defaultReadBufferSize = 4096
	defaultMaxFrameSize   = 64 * 1024
	defaultWriteDeadline  = 5 * time.Second
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type (
	Config struct {
		Logger       *zerolog.Logger
		Registry     session.Registry
		ListenAddr   string
		Heartbeat    session.Heartbeat
		MaxFrameSize int
	}

	Server struct {
		reg          session.Registry
		heartbeat    session.Heartbeat
		maxFrameSize int
		listenAddr   string

		mx       *sync.Mutex
		listener net.Listener
		ready    chan struct{}

		logger zerolog.Logger
	}
)

func NewServer(cfg Config) *Server {
	hb := cfg.Heartbeat
	if hb.Interval <= 0 {
		hb.Interval = defaultHeartbeatInterval
	}
	if hb.Timeout <= 0 {
		hb.Timeout = defaultClientTimeout
	}
	maxFrameSize := cfg.MaxFrameSize
	if maxFrameSize <= 0 {
		maxFrameSize = defaultMaxFrameSize
	}
	return &Server{
		logger:       cfg.Logger.With().Str("component", "tcp-server").Logger(),
		reg:          cfg.Registry,
		heartbeat:    hb,
		maxFrameSize: maxFrameSize,
		listenAddr:   cfg.ListenAddr,
		mx:           &sync.Mutex{},
		ready:        make(chan struct{}),
	}
}

// Ready is closed once the listener is bound.
func (srv *Server) Ready() <-chan struct{} {
	return srv.ready
}

// Addr returns the bound listener address, empty before Ready.
func (srv *Server) Addr() string {
	srv.mx.Lock()
	defer srv.mx.Unlock()
	if srv.listener == nil {
		return ""
	}
	return srv.listener.Addr().String()
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	ln, err := net.Listen("tcp", srv.listenAddr)
	if err != nil {
		errc <- errors.Join(ErrUnexpected, err)
		return
	}
	srv.mx.Lock()
	srv.listener = ln
	srv.mx.Unlock()
	close(srv.ready)

	srv.logger.Info().Str("addr", ln.Addr().String()).Msg("server started")

	var (
		sessions = &sync.WaitGroup{}
		errAcc   = make(chan error, 1)
	)
	go func() {
		errAcc <- srv.acceptLoop(ctx, ln, sessions)
	}()

	select {
	case err = <-errAcc:
		if err != nil {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		if err = ln.Close(); err != nil {
			srv.logger.Error().Err(err).Msg("failed to close listener")
		}
		<-errAcc
	}
	sessions.Wait()
}

func (srv *Server) acceptLoop(ctx context.Context, ln net.Listener, sessions *sync.WaitGroup) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var nErr net.Error
			if errors.As(err, &nErr) && nErr.Timeout() {
				srv.logger.Warn().Err(err).Msg("accept timeout")
				continue
			}
			return err
		}

		sessions.Add(1)
		go func() {
			defer sessions.Done()
			srv.handleConn(ctx, c)
		}()
	}
}

func (srv *Server) handleConn(ctx context.Context, c net.Conn) {
	logger := srv.logger.With().Str("transport", "tcp").Logger()
	sess := session.New(session.Config{
		Registry:  srv.reg,
		Logger:    &logger,
		Heartbeat: srv.heartbeat,
	}, newConn(c, defaultReadBufferSize, srv.maxFrameSize, defaultWriteDeadline, &logger))

	srv.logger.Debug().Str("remote", c.RemoteAddr().String()).Msg("connection accepted")
	if err := sess.Run(ctx); err != nil {
		srv.logger.Warn().Err(err).Str("remote", c.RemoteAddr().String()).Msg("session terminated")
	}
}
