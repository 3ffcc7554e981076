package memory

import (
	"errors"
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrDuplicateMember = errors.New("connection is already a member of the room")
)

// Resolver delivers a line to a connection by its id.
type Resolver interface {
	Deliver(connID, text string) error
}

type Room struct {
	name    string
	logger  zerolog.Logger
	mx      *sync.RWMutex
	members map[string]string
}

func newRoom(name string, logger *zerolog.Logger) *Room {
	return &Room{
		name:    name,
		logger:  logger.With().Str("room", name).Logger(),
		mx:      &sync.RWMutex{},
		members: make(map[string]string),
	}
}

func (r *Room) Name() string {
	return r.name
}

func (r *Room) AddMember(connID, username string) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if _, ok := r.members[connID]; ok {
		return ErrDuplicateMember
	}
	r.members[connID] = username
	return nil
}

func (r *Room) RemoveMember(connID string) {
	r.mx.Lock()
	defer r.mx.Unlock()
	delete(r.members, connID)
}

func (r *Room) IsEmpty() bool {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return len(r.members) == 0
}

func (r *Room) DisplayName(connID string) (string, bool) {
	r.mx.RLock()
	defer r.mx.RUnlock()
	username, ok := r.members[connID]
	return username, ok
}

// Members returns a copy of the membership.
func (r *Room) Members() map[string]string {
	r.mx.RLock()
	defer r.mx.RUnlock()

	out := make(map[string]string, len(r.members))
	for id, username := range r.members {
		out[id] = username
	}
	return out
}

// BroadcastExcluding delivers text to every member not listed in excluded and
// returns the number of successful deliveries. The membership is copied
// before delivery starts, so the room lock is never held while delivering.
func (r *Room) BroadcastExcluding(text string, excluded []string, res Resolver) int {
	r.mx.RLock()
	targets := make([]string, 0, len(r.members))
	for id := range r.members {
		if !slices.Contains(excluded, id) {
			targets = append(targets, id)
		}
	}
	r.mx.RUnlock()

	var sent int
	for _, id := range targets {
		if err := res.Deliver(id, text); err != nil {
			r.logger.Error().Err(err).Str("dst", id).Msg("delivery failed")
			continue
		}
		sent++
	}
	r.logger.Trace().Int("targets", len(targets)).Int("sent", sent).Msg("broadcast done")
	return sent
}
