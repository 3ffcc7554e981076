package model

import "sync"

// LineMarker terminates every logical frame of the text protocol.
const LineMarker = "<NL>"

type Room struct {
	Name    string            `json:"name"`
	Members map[string]string `json:"members"` // connection id -> display name
}

type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

func JoinedMessage(username string) string {
	return username + " has joined" + LineMarker
}

func LeftMessage(username string) string {
	return username + " has left" + LineMarker
}

func ChatMessage(username, text string) string {
	return username + ": " + text + LineMarker
}

func ErrorMessage() string {
	return "ERROR" + LineMarker
}

// Wire is the delivery handle of one connection. The registry pushes outbound
// lines into TX, the owning connection drains it and closes the wire when it stops.
type Wire struct {
	TX chan string

	done chan struct{}
	once *sync.Once
}

func NewWire(size int) Wire {
	return Wire{
		TX:   make(chan string, size),
		done: make(chan struct{}),
		once: &sync.Once{},
	}
}

// Close marks the wire as dead. TX is never closed so late senders cannot panic.
func (w Wire) Close() {
	w.once.Do(func() { close(w.done) })
}

func (w Wire) Done() <-chan struct{} {
	return w.done
}

func (w Wire) Closed() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}
