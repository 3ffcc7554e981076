package service

import (
	"errors"
	"sync"

	"github.com/adwski/trust-chat/backend/command"
	"github.com/adwski/trust-chat/backend/model"
	"github.com/adwski/trust-chat/backend/storage/memory"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidConnection   = errors.New("invalid connection")
	ErrDuplicateMembership = errors.New("connection is already a member of this room")
	ErrRegistration        = errors.New("unable to register connection")
	ErrMalformedCommand    = command.ErrMalformed
)

type (
	RoomStore interface {
		CreateOrJoinRoom(roomName, connID, username string) (*memory.Room, error)
		LeaveRoom(roomName, connID string) (*memory.Room, string, bool)
		GetRoom(roomName string) (*memory.Room, error)
		ListRooms() []model.Room
		Len() int
	}

	Switch interface {
		Connect(connID string, wire model.Wire) error
		Disconnect(connID string) (string, bool)
		SetRoom(connID, room string) error
		Room(connID string) (string, bool)
		Deliver(connID, text string) error
		Len() int
	}

	// Registry is the single owner of connection and room state. Every state
	// transition runs under seq, so observers of one room see joins, messages
	// and departures in the order they were processed. Deliveries never block.
	Registry struct {
		store  RoomStore
		sw     Switch
		newID  func() string
		logger zerolog.Logger
		seq    sync.Mutex
	}

	Config struct {
		RoomStore   RoomStore
		Switch      Switch
		Logger      *zerolog.Logger
		IDGenerator func() string
	}
)

func NewRegistry(cfg Config) *Registry {
	newID := cfg.IDGenerator
	if newID == nil {
		newID = uuid.NewString
	}
	return &Registry{
		store:  cfg.RoomStore,
		sw:     cfg.Switch,
		newID:  newID,
		logger: cfg.Logger.With().Str("component", "registry").Logger(),
	}
}

// Connect registers a delivery handle and returns the new connection id.
func (r *Registry) Connect(wire model.Wire) (string, error) {
	connID := r.newID()

	r.seq.Lock()
	defer r.seq.Unlock()

	if err := r.sw.Connect(connID, wire); err != nil {
		return "", errors.Join(ErrRegistration, err)
	}
	r.logger.Debug().Str("connID", connID).Msg("connection registered")
	return connID, nil
}

// Disconnect evicts the connection. Calling it for an unknown id is a no-op.
func (r *Registry) Disconnect(connID string) {
	r.seq.Lock()
	defer r.seq.Unlock()

	roomName, ok := r.sw.Room(connID)
	if !ok {
		return
	}
	if roomName != "" {
		r.leave(roomName, connID)
	}
	r.sw.Disconnect(connID)
	r.logger.Debug().Str("connID", connID).Msg("connection evicted")
}

// Join places the connection into roomName under the given display name.
// Joining another room while already in one moves the connection.
func (r *Registry) Join(connID, roomName, username string) error {
	r.seq.Lock()
	defer r.seq.Unlock()

	current, ok := r.sw.Room(connID)
	if !ok {
		return ErrInvalidConnection
	}
	if !command.ValidName(roomName) || !command.ValidName(username) {
		return ErrMalformedCommand
	}
	if current == roomName {
		return ErrDuplicateMembership
	}

	room, err := r.store.CreateOrJoinRoom(roomName, connID, username)
	if err != nil {
		if errors.Is(err, memory.ErrDuplicateMember) {
			return ErrDuplicateMembership
		}
		return err
	}
	if current != "" {
		r.leave(current, connID)
	}
	if err = r.sw.SetRoom(connID, roomName); err != nil {
		// cannot happen while seq is held
		r.store.LeaveRoom(roomName, connID)
		return errors.Join(ErrInvalidConnection, err)
	}

	r.logger.Debug().
		Str("connID", connID).
		Str("room", roomName).
		Str("username", username).
		Msg("joined room")

	room.BroadcastExcluding(model.JoinedMessage(username), nil, r.sw)
	return nil
}

// Broadcast sends text from the connection to everyone in its room, sender
// included. A sender outside of any room gets an error line instead.
func (r *Registry) Broadcast(connID, text string) error {
	r.seq.Lock()
	defer r.seq.Unlock()

	roomName, ok := r.sw.Room(connID)
	if !ok {
		return ErrInvalidConnection
	}

	var (
		room     *memory.Room
		username string
	)
	if roomName != "" {
		if rm, err := r.store.GetRoom(roomName); err == nil {
			room = rm
			username, ok = rm.DisplayName(connID)
		}
	}
	if room == nil || !ok {
		r.logger.Debug().Str("connID", connID).Msg("broadcast from connection without room")
		r.deliver(connID, model.ErrorMessage())
		return nil
	}

	room.BroadcastExcluding(model.ChatMessage(username, text), nil, r.sw)
	return nil
}

// DirectMessage delivers text to exactly one connection.
func (r *Registry) DirectMessage(connID, text string) error {
	r.seq.Lock()
	defer r.seq.Unlock()

	if _, ok := r.sw.Room(connID); !ok {
		return ErrInvalidConnection
	}
	return r.sw.Deliver(connID, text)
}

func (r *Registry) Stats() model.Stats {
	return model.Stats{
		Rooms:       r.store.Len(),
		Connections: r.sw.Len(),
	}
}

func (r *Registry) Rooms() []model.Room {
	return r.store.ListRooms()
}

// leave removes the member from the room and notifies whoever stays.
// Must be called with seq held.
func (r *Registry) leave(roomName, connID string) {
	room, username, empty := r.store.LeaveRoom(roomName, connID)
	r.logger.Debug().
		Str("connID", connID).
		Str("room", roomName).
		Msg("left room")
	if empty || username == "" {
		return
	}
	room.BroadcastExcluding(model.LeftMessage(username), nil, r.sw)
}

func (r *Registry) deliver(connID, text string) {
	if err := r.sw.Deliver(connID, text); err != nil {
		r.logger.Error().Err(err).Str("connID", connID).Msg("direct delivery failed")
	}
}
