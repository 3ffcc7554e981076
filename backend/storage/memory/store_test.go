package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/adwski/trust-chat/backend/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *MemStore {
	logger := zerolog.Nop()
	return NewMemStore(&logger)
}

func TestMemStore_CreateOrJoinRoom(t *testing.T) {
	ms := newTestStore()

	room, err := ms.CreateOrJoinRoom("lobby", "c1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "lobby", room.Name())
	assert.Equal(t, 1, ms.Len())

	same, err := ms.CreateOrJoinRoom("lobby", "c2", "bob")
	require.NoError(t, err)
	assert.Same(t, room, same)
	assert.Equal(t, 1, ms.Len())

	_, err = ms.CreateOrJoinRoom("lobby", "c1", "alice")
	assert.ErrorIs(t, err, ErrDuplicateMember)
	assert.Equal(t, map[string]string{"c1": "alice", "c2": "bob"}, room.Members())
}

func TestMemStore_CreateOrJoinRoom_Concurrent(t *testing.T) {
	ms := newTestStore()

	const n = 50
	wg := &sync.WaitGroup{}
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := ms.CreateOrJoinRoom("lobby", fmt.Sprintf("c%d", i), fmt.Sprintf("user%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, ms.Len())
	room, err := ms.GetRoom("lobby")
	require.NoError(t, err)
	assert.Len(t, room.Members(), n)
}

func TestMemStore_LeaveRoom(t *testing.T) {
	ms := newTestStore()
	_, err := ms.CreateOrJoinRoom("lobby", "c1", "alice")
	require.NoError(t, err)
	_, err = ms.CreateOrJoinRoom("lobby", "c2", "bob")
	require.NoError(t, err)

	room, username, empty := ms.LeaveRoom("lobby", "c1")
	require.NotNil(t, room)
	assert.Equal(t, "alice", username)
	assert.False(t, empty)
	assert.Equal(t, 1, ms.Len())

	_, username, empty = ms.LeaveRoom("lobby", "c2")
	assert.Equal(t, "bob", username)
	assert.True(t, empty)
	assert.Zero(t, ms.Len())

	_, err = ms.GetRoom("lobby")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	room, username, empty = ms.LeaveRoom("lobby", "c2")
	assert.Nil(t, room)
	assert.Empty(t, username)
	assert.True(t, empty)
}

func TestMemStore_LeaveRoom_NonMember(t *testing.T) {
	ms := newTestStore()
	_, err := ms.CreateOrJoinRoom("lobby", "c1", "alice")
	require.NoError(t, err)

	_, username, empty := ms.LeaveRoom("lobby", "stranger")
	assert.Empty(t, username)
	assert.False(t, empty)
	assert.Equal(t, 1, ms.Len())
}

func TestMemStore_ListRooms(t *testing.T) {
	ms := newTestStore()
	assert.Empty(t, ms.ListRooms())

	_, err := ms.CreateOrJoinRoom("zoo", "c1", "alice")
	require.NoError(t, err)
	_, err = ms.CreateOrJoinRoom("attic", "c2", "bob")
	require.NoError(t, err)

	assert.Equal(t, []model.Room{
		{Name: "attic", Members: map[string]string{"c2": "bob"}},
		{Name: "zoo", Members: map[string]string{"c1": "alice"}},
	}, ms.ListRooms())
}
