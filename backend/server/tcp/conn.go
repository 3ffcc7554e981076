package tcp

import (
	"net"
	"time"

	"github.com/adwski/trust-chat/backend/codec"
	"github.com/rs/zerolog"
)

const lineTerminator = "\n"

// conn is the raw TCP transport of a chat session.
type conn struct {
	c            net.Conn
	dec          *codec.Decoder
	enc          *codec.Encoder
	buf          []byte
	pendingErr   error
	writeTimeout time.Duration
	logger       *zerolog.Logger
}

func newConn(c net.Conn, readBufferSize, maxFrameSize int, writeTimeout time.Duration, logger *zerolog.Logger) *conn {
	return &conn{
		logger:       logger,
		c:            c,
		dec:          codec.NewDecoder(maxFrameSize),
		enc:          codec.NewEncoder(c),
		buf:          make([]byte, readBufferSize),
		writeTimeout: writeTimeout,
	}
}

func (tc *conn) Read() ([]string, error) {
	if tc.pendingErr != nil {
		return nil, tc.fail(tc.pendingErr)
	}
	n, err := tc.c.Read(tc.buf)
	if n == 0 {
		if err != nil {
			return nil, tc.fail(err)
		}
		return nil, nil
	}
	// bytes that arrived together with an error are still delivered
	tc.pendingErr = err

	if _, err = tc.dec.Write(tc.buf[:n]); err != nil {
		return nil, err
	}
	var frames []string
	for {
		line, ok := tc.dec.Decode()
		if !ok {
			return frames, nil
		}
		frames = append(frames, line)
	}
}

// fail reports a terminal read error, noting any unterminated input left behind.
func (tc *conn) fail(err error) error {
	if pending := tc.dec.Buffered(); pending > 0 {
		tc.logger.Debug().Err(err).Int("pending", pending).Msg("incomplete frame discarded")
	}
	return err
}

func (tc *conn) Write(msg string) error {
	if err := tc.c.SetWriteDeadline(time.Now().Add(tc.writeTimeout)); err != nil {
		return err
	}
	if err := tc.enc.Encode(msg); err != nil {
		return err
	}
	return tc.enc.Encode(lineTerminator)
}

// Probe writes an empty keepalive. It only fails once the socket is broken.
func (tc *conn) Probe() error {
	if err := tc.c.SetWriteDeadline(time.Now().Add(tc.writeTimeout)); err != nil {
		return err
	}
	return tc.enc.Encode("")
}

func (tc *conn) Close() error {
	return tc.c.Close()
}

func (tc *conn) RemoteAddr() string {
	return tc.c.RemoteAddr().String()
}
