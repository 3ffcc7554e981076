package memory

import (
	"errors"
	"sort"
	"sync"

	"github.com/adwski/trust-chat/backend/model"
	"github.com/rs/zerolog"
)

var (
	ErrRoomNotFound = errors.New("room is not found")
)

// MemStore is the room table. Rooms are created on first join and removed as
// soon as their last member leaves.
type MemStore struct {
	logger zerolog.Logger
	mx     *sync.RWMutex
	db     map[string]*Room
}

func NewMemStore(logger *zerolog.Logger) *MemStore {
	return &MemStore{
		logger: logger.With().Str("component", "room-store").Logger(),
		mx:     &sync.RWMutex{},
		db:     make(map[string]*Room),
	}
}

// CreateOrJoinRoom adds connID to the named room creating it if needed.
// A duplicate membership leaves the room untouched.
func (ms *MemStore) CreateOrJoinRoom(roomName, connID, username string) (*Room, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.db[roomName]
	if !ok {
		room = newRoom(roomName, &ms.logger)
	}
	if err := room.AddMember(connID, username); err != nil {
		return nil, err
	}
	if !ok {
		ms.db[roomName] = room
		ms.logger.Debug().Str("room", roomName).Msg("room created")
	}
	return room, nil
}

// LeaveRoom removes connID from the named room and returns the room together
// with the display name the member had. The room is deleted when it becomes
// empty, which is reported by the last return value.
func (ms *MemStore) LeaveRoom(roomName, connID string) (*Room, string, bool) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.db[roomName]
	if !ok {
		return nil, "", true
	}
	username, _ := room.DisplayName(connID)
	room.RemoveMember(connID)
	if room.IsEmpty() {
		delete(ms.db, roomName)
		ms.logger.Debug().Str("room", roomName).Msg("room deleted")
		return room, username, true
	}
	return room, username, false
}

func (ms *MemStore) GetRoom(roomName string) (*Room, error) {
	ms.mx.RLock()
	defer ms.mx.RUnlock()

	room, ok := ms.db[roomName]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// ListRooms returns a snapshot of all rooms ordered by name.
func (ms *MemStore) ListRooms() []model.Room {
	ms.mx.RLock()
	rooms := make([]*Room, 0, len(ms.db))
	for _, room := range ms.db {
		rooms = append(rooms, room)
	}
	ms.mx.RUnlock()

	out := make([]model.Room, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, model.Room{
			Name:    room.Name(),
			Members: room.Members(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (ms *MemStore) Len() int {
	ms.mx.RLock()
	defer ms.mx.RUnlock()
	return len(ms.db)
}
