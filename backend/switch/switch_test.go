package _switch

import (
	"testing"

	"github.com/adwski/trust-chat/backend/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSwitch() *Switch {
	logger := zerolog.Nop()
	return NewSwitch(&logger)
}

func TestSwitch_Connect(t *testing.T) {
	sw := newTestSwitch()

	require.NoError(t, sw.Connect("c1", model.NewWire(1)))
	assert.ErrorIs(t, sw.Connect("c1", model.NewWire(1)), ErrConnectionExists)
	assert.Equal(t, 1, sw.Len())

	room, ok := sw.Room("c1")
	assert.True(t, ok)
	assert.Empty(t, room)
}

func TestSwitch_SetRoom(t *testing.T) {
	sw := newTestSwitch()
	require.NoError(t, sw.Connect("c1", model.NewWire(1)))

	require.NoError(t, sw.SetRoom("c1", "lobby"))
	room, ok := sw.Room("c1")
	assert.True(t, ok)
	assert.Equal(t, "lobby", room)

	assert.ErrorIs(t, sw.SetRoom("c2", "lobby"), ErrConnectionNotFound)
}

func TestSwitch_Disconnect(t *testing.T) {
	sw := newTestSwitch()
	require.NoError(t, sw.Connect("c1", model.NewWire(1)))
	require.NoError(t, sw.SetRoom("c1", "lobby"))

	room, ok := sw.Disconnect("c1")
	assert.True(t, ok)
	assert.Equal(t, "lobby", room)
	assert.Zero(t, sw.Len())

	_, ok = sw.Disconnect("c1")
	assert.False(t, ok)
	_, ok = sw.Room("c1")
	assert.False(t, ok)
}

func TestSwitch_Deliver(t *testing.T) {
	sw := newTestSwitch()

	full := model.NewWire(1)
	full.TX <- "queued"
	closed := model.NewWire(1)
	closed.Close()
	ok := model.NewWire(1)

	require.NoError(t, sw.Connect("full", full))
	require.NoError(t, sw.Connect("closed", closed))
	require.NoError(t, sw.Connect("ok", ok))

	tests := []struct {
		name    string
		connID  string
		wantErr error
	}{
		{name: "delivered", connID: "ok"},
		{name: "unknown connection", connID: "missing", wantErr: ErrConnectionNotFound},
		{name: "full wire", connID: "full", wantErr: ErrDeliveryFailure},
		{name: "closed wire", connID: "closed", wantErr: ErrDeliveryFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sw.Deliver(tt.connID, "hi<NL>")
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrDeliveryFailure)
		})
	}

	assert.Equal(t, "hi<NL>", <-ok.TX)
	assert.Equal(t, "queued", <-full.TX)
	assert.Empty(t, closed.TX)
}
