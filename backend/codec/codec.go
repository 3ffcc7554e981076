// Package codec implements framing of the raw TCP chat protocol where every
// logical message is terminated by the literal <NL> marker.
package codec

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/adwski/trust-chat/backend/model"
)

const defaultMaxPending = 64 * 1024

var (
	ErrFrameTooLarge = errors.New("pending frame exceeds maximum size")

	marker = []byte(model.LineMarker)
)

// Decoder accumulates inbound bytes and splits them into lines.
// It is not safe for concurrent use.
type Decoder struct {
	buf        []byte
	maxPending int
}

func NewDecoder(maxPending int) *Decoder {
	if maxPending <= 0 {
		maxPending = defaultMaxPending
	}
	return &Decoder{maxPending: maxPending}
}

// Write appends p to the pending buffer. It fails when the buffer grows past
// the limit without containing a complete frame.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	if len(d.buf) > d.maxPending && bytes.Index(d.buf, marker) < 0 {
		return len(p), ErrFrameTooLarge
	}
	return len(p), nil
}

// Decode returns the next complete line with surrounding whitespace trimmed.
// The second return value is false when no marker has been seen yet, in which
// case the pending bytes are kept intact.
func (d *Decoder) Decode() (string, bool) {
	idx := bytes.Index(d.buf, marker)
	if idx < 0 {
		return "", false
	}
	line := strings.ToValidUTF8(string(d.buf[:idx]), "�")

	rest := d.buf[idx+len(marker):]
	d.buf = append(d.buf[:0], rest...)
	return strings.TrimSpace(line), true
}

// Buffered returns the number of bytes waiting for a marker.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Encoder writes messages as is. Framing markers are part of the message
// templates, not of the encoder.
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) Encode(msg string) error {
	_, err := io.WriteString(e.w, msg)
	return err
}
