package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemplates(t *testing.T) {
	assert.Equal(t, "alice has joined<NL>", JoinedMessage("alice"))
	assert.Equal(t, "alice has left<NL>", LeftMessage("alice"))
	assert.Equal(t, "alice: hi there<NL>", ChatMessage("alice", "hi there"))
	assert.Equal(t, "ERROR<NL>", ErrorMessage())
}

func TestWire_Close(t *testing.T) {
	w := NewWire(1)
	assert.False(t, w.Closed())

	w.Close()
	w.Close()
	assert.True(t, w.Closed())

	select {
	case <-w.Done():
	default:
		t.Fatal("done channel is not closed")
	}

	// copies share the state
	cp := w
	assert.True(t, cp.Closed())
}
