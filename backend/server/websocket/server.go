package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/adwski/trust-chat/backend/session"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultShutdownDeadline = 10 * time.Second

	defaultWebsocketReadBufferSize     = 4096
	defaultWebsocketWriteBufferSize    = 4096
	defaultWebSocketMaxMessageSize     = 9000
	defaultWebSocketHandshakeTimeout   = 3 * time.Second
	defaultWebSocketCloseWriteDeadline = 2 * time.Second
	defaultWebSocketWriteDeadline      = 5 * time.Second

	defaultPath              = "/ws"
	defaultHeartbeatInterval = 5 * time.Second
	defaultClientTimeout     = 10 * time.Second
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type (
	Config struct {
		Logger         *zerolog.Logger
		Registry       session.Registry
		ListenAddr     string
		Path           string
		Heartbeat      session.Heartbeat
		MaxMessageSize int64
	}

	Server struct {
		reg            session.Registry
		heartbeat      session.Heartbeat
		maxMessageSize int64
		ws             *websocket.Upgrader
		*http.Server

		mx       *sync.Mutex
		listener net.Listener
		ready    chan struct{}
		sessions *sync.WaitGroup
		baseCtx  context.Context

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
	maxMessageSize := cfg.MaxMessageSize
	if maxMessageSize <= 0 {
		maxMessageSize = defaultWebSocketMaxMessageSize
	}
	path := cfg.Path
	if path == "" {
		path = defaultPath
	}

	srv := &Server{
		logger:         cfg.Logger.With().Str("component", "websocket-server").Logger(),
		reg:            cfg.Registry,
		heartbeat:      hb,
		maxMessageSize: maxMessageSize,
		ws: &websocket.Upgrader{
			HandshakeTimeout: defaultWebSocketHandshakeTimeout,
			ReadBufferSize:   defaultWebsocketReadBufferSize,
			WriteBufferSize:  defaultWebsocketWriteBufferSize,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
		mx:       &sync.Mutex{},
		ready:    make(chan struct{}),
		sessions: &sync.WaitGroup{},
		baseCtx:  context.Background(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+path, srv.chat)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}
	return srv
}

// Ready is closed once the listener is bound.
func (srv *Server) Ready() <-chan struct{} {
	return srv.ready
}

// ListenerAddr returns the bound listener address, empty before Ready.
func (srv *Server) ListenerAddr() string {
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

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		errc <- errors.Join(ErrUnexpected, err)
		return
	}
	srv.mx.Lock()
	srv.listener = ln
	srv.baseCtx = ctx
	srv.mx.Unlock()
	close(srv.ready)

	errSrv := make(chan error, 1)
	go func() {
		errSrv <- srv.Serve(ln)
	}()

	srv.logger.Info().Str("addr", ln.Addr().String()).Msg("server started")

	select {
	case err = <-errSrv:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err = srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
	// hijacked connections are not tracked by http.Server
	srv.sessions.Wait()
}

func (srv *Server) chat(w http.ResponseWriter, r *http.Request) {
	// counted before the connection is hijacked
	srv.sessions.Add(1)
	conn, err := srv.ws.Upgrade(w, r, nil)
	if err != nil {
		srv.sessions.Done()
		// Upgrade has already replied to the client
		srv.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	srv.mx.Lock()
	ctx := srv.baseCtx
	srv.mx.Unlock()

	go srv.handleWSConn(ctx, conn)
}

func (srv *Server) handleWSConn(ctx context.Context, conn *websocket.Conn) {
	defer srv.sessions.Done()

	logger := srv.logger.With().Str("transport", "websocket").Logger()
	sess := session.New(session.Config{
		Registry:  srv.reg,
		Logger:    &logger,
		Heartbeat: srv.heartbeat,
	}, newConn(conn, srv.maxMessageSize, &logger))

	if err := sess.Run(ctx); err != nil {
		srv.logger.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("session terminated")
	}
}
