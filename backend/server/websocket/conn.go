package websocket

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/adwski/trust-chat/backend/model"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// conn is the WebSocket transport of a chat session. Fragmented messages are
// reassembled by gorilla before ReadMessage returns.
type conn struct {
	ws     *websocket.Conn
	logger *zerolog.Logger
}

func newConn(ws *websocket.Conn, maxMessageSize int64, logger *zerolog.Logger) *conn {
	ws.SetReadLimit(maxMessageSize)
	return &conn{ws: ws, logger: logger}
}

func (c *conn) Read() ([]string, error) {
	_, msg, err := c.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err,
			websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
			websocket.CloseNoStatusReceived) {
			return nil, io.EOF
		}
		return nil, err
	}
	return splitFrames(string(msg)), nil
}

// splitFrames breaks a text frame into commands. Clients may still terminate
// commands with the TCP marker, blank pieces around it are ignored. A frame
// without any content is kept as one empty command so it gets rejected.
func splitFrames(text string) []string {
	parts := strings.Split(text, model.LineMarker)
	frames := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			frames = append(frames, part)
		}
	}
	if len(frames) == 0 {
		return []string{""}
	}
	return frames
}

func (c *conn) Write(msg string) error {
	wsErr := c.ws.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline))
	if wsErr != nil {
		return wsErr
	}
	wsW, wsErr := c.ws.NextWriter(websocket.TextMessage)
	if wsErr != nil {
		return wsErr
	}
	if _, wsErr = io.WriteString(wsW, msg); wsErr != nil {
		return wsErr
	}
	return wsW.Close()
}

func (c *conn) Probe() error {
	return c.ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(defaultWebSocketWriteDeadline))
}

// NotifyActivity makes control frames count as peer activity. Pings are
// still answered with pongs as the default handler does.
func (c *conn) NotifyActivity(fn func()) {
	c.ws.SetPongHandler(func(string) error {
		c.logger.Trace().Msg("got pong")
		fn()
		return nil
	})
	c.ws.SetPingHandler(func(appData string) error {
		fn()
		err := c.ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(defaultWebSocketWriteDeadline))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
}

// Close may run concurrently with Write, so the close frame goes out as a
// control message.
func (c *conn) Close() error {
	wsErr := c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(defaultWebSocketCloseWriteDeadline))
	if wsErr != nil && !errors.Is(wsErr, websocket.ErrCloseSent) {
		c.logger.Debug().Err(wsErr).Msg("failed to send close frame")
	}
	return c.ws.Close()
}

func (c *conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}
