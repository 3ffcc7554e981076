package _switch

import (
	"errors"
	"sync"

	"github.com/adwski/trust-chat/backend/model"
	"github.com/rs/zerolog"
)

var (
	ErrDeliveryFailure    = errors.New("delivery failed")
	ErrConnectionNotFound = errors.New("connection is not found")
	ErrConnectionExists   = errors.New("connection id is already taken")

	errWireClosed = errors.New("wire is closed")
	errWireFull   = errors.New("wire buffer is full")
)

type endpoint struct {
	wire model.Wire
	room string
}

// Switch is the connection table. It maps connection ids to delivery handles
// and to the room each connection is currently in.
type Switch struct {
	logger zerolog.Logger
	mx     *sync.RWMutex
	fwd    map[string]*endpoint
}

func NewSwitch(logger *zerolog.Logger) *Switch {
	return &Switch{
		logger: logger.With().Str("component", "switch").Logger(),
		mx:     &sync.RWMutex{},
		fwd:    make(map[string]*endpoint),
	}
}

func (sw *Switch) Connect(connID string, wire model.Wire) error {
	sw.mx.Lock()
	defer sw.mx.Unlock()

	if _, ok := sw.fwd[connID]; ok {
		return ErrConnectionExists
	}
	sw.fwd[connID] = &endpoint{wire: wire}

	sw.logger.Debug().Str("connID", connID).Msg("endpoint connected")
	return nil
}

// Disconnect removes the connection and reports the room it was in.
func (sw *Switch) Disconnect(connID string) (string, bool) {
	sw.mx.Lock()
	defer sw.mx.Unlock()

	ep, ok := sw.fwd[connID]
	if !ok {
		return "", false
	}
	delete(sw.fwd, connID)

	sw.logger.Debug().Str("connID", connID).Msg("endpoint disconnected")
	return ep.room, true
}

func (sw *Switch) SetRoom(connID, room string) error {
	sw.mx.Lock()
	defer sw.mx.Unlock()

	ep, ok := sw.fwd[connID]
	if !ok {
		return ErrConnectionNotFound
	}
	ep.room = room
	return nil
}

// Room returns the current room of the connection. The second value is false
// when the connection is unknown; an empty room means it joined none.
func (sw *Switch) Room(connID string) (string, bool) {
	sw.mx.RLock()
	defer sw.mx.RUnlock()

	ep, ok := sw.fwd[connID]
	if !ok {
		return "", false
	}
	return ep.room, true
}

func (sw *Switch) Len() int {
	sw.mx.RLock()
	defer sw.mx.RUnlock()
	return len(sw.fwd)
}

// Deliver pushes one line to the connection without blocking.
func (sw *Switch) Deliver(connID, text string) error {
	sw.mx.RLock()
	ep, ok := sw.fwd[connID]
	var wire model.Wire
	if ok {
		wire = ep.wire
	}
	sw.mx.RUnlock()

	if !ok {
		return errors.Join(ErrDeliveryFailure, ErrConnectionNotFound)
	}
	return send(wire, text)
}

func send(wire model.Wire, text string) error {
	if wire.Closed() {
		return errors.Join(ErrDeliveryFailure, errWireClosed)
	}
	select {
	case wire.TX <- text:
		return nil
	default:
		return errors.Join(ErrDeliveryFailure, errWireFull)
	}
}
