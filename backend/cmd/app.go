package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	httpServer "github.com/adwski/trust-chat/backend/server/http"
	tcpServer "github.com/adwski/trust-chat/backend/server/tcp"
	websocketServer "github.com/adwski/trust-chat/backend/server/websocket"
	"github.com/adwski/trust-chat/backend/service"
	"github.com/adwski/trust-chat/backend/session"
	store "github.com/adwski/trust-chat/backend/storage/memory"
	sw "github.com/adwski/trust-chat/backend/switch"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

const envPrefix = "TRUST_"

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Fatal().Err(err).Msg("failed to load .env file")
	}

	fs := pflag.NewFlagSet("main", pflag.ContinueOnError)
	var (
		tcpListenAddr = fs.StringP("tcp-listen-addr", "t", env("TCP_LISTEN_ADDR", "127.0.0.1:1238"), "raw tcp chat listen address")
		wsListenAddr  = fs.StringP("ws-listen-addr", "w", env("WS_LISTEN_ADDR", "127.0.0.1:8086"), "websocket chat listen address")
		wsPath        = fs.String("ws-path", env("WS_PATH", "/ws"), "websocket chat endpoint path")
		apiListenAddr = fs.StringP("api-listen-addr", "a", env("API_LISTEN_ADDR", "127.0.0.1:8080"), "stats api listen address")
		logLevel      = fs.StringP("log-level", "l", env("LOG_LEVEL", "debug"), "log level")

		tcpInterval = fs.Duration("tcp-heartbeat-interval", envDuration("TCP_HEARTBEAT_INTERVAL", 60*time.Second), "tcp keepalive interval")
		tcpTimeout  = fs.Duration("tcp-client-timeout", envDuration("TCP_CLIENT_TIMEOUT", 300*time.Second), "tcp client inactivity timeout")
		wsInterval  = fs.Duration("ws-heartbeat-interval", envDuration("WS_HEARTBEAT_INTERVAL", 5*time.Second), "websocket ping interval")
		wsTimeout   = fs.Duration("ws-client-timeout", envDuration("WS_CLIENT_TIMEOUT", 10*time.Second), "websocket client inactivity timeout")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	registry := service.NewRegistry(service.Config{
		RoomStore: store.NewMemStore(&logger),
		Switch:    sw.NewSwitch(&logger),
		Logger:    &logger,
	})
	tcpSrv := tcpServer.NewServer(tcpServer.Config{
		Logger:     &logger,
		Registry:   registry,
		ListenAddr: *tcpListenAddr,
		Heartbeat:  session.Heartbeat{Interval: *tcpInterval, Timeout: *tcpTimeout},
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:     &logger,
		Registry:   registry,
		ListenAddr: *wsListenAddr,
		Path:       *wsPath,
		Heartbeat:  session.Heartbeat{Interval: *wsInterval, Timeout: *wsTimeout},
	})
	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger:      &logger,
		RoomService: registry,
		ListenAddr:  *apiListenAddr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 3)
	)
	wg.Add(3)
	go tcpSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)
	go httpSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(env(key, ""))
	if err != nil {
		return def
	}
	return d
}
