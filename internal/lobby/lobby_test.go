package lobby

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/liarsdeck/liars-server-go/internal/broadcast"
	"github.com/liarsdeck/liars-server-go/internal/protocol"
)

type fakeTransport struct {
	mu     sync.Mutex
	id     string
	events []string
}

func (f *fakeTransport) Send(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeTransport) Open() bool            { return true }
func (f *fakeTransport) ParticipantID() string { return f.id }

func (f *fakeTransport) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e == event {
			n++
		}
	}
	return n
}

type fixedLister struct {
	rooms []protocol.RoomSummary
}

func (f *fixedLister) ListRooms() []protocol.RoomSummary { return f.rooms }

func newTestLobby() *Manager {
	m := NewManager(broadcast.New(zap.NewNop()), zap.NewNop())
	m.SetRoomLister(&fixedLister{rooms: []protocol.RoomSummary{{Code: "AAAA11"}}})
	return m
}

func TestConnectSendsListingsAndPresence(t *testing.T) {
	m := newTestLobby()
	a := &fakeTransport{id: "alice"}
	b := &fakeTransport{id: "bob"}

	m.Connect("alice", "alice", "", a)
	m.Connect("bob", "bob", "", b)

	assert.Equal(t, 2, m.OnlineCount())
	assert.GreaterOrEqual(t, a.count(protocol.EventOnlineUsers), 2, "initial plus bob's arrival")
	assert.Equal(t, 1, b.count(protocol.EventRoomList))
}

func TestDisconnectUpdatesPresence(t *testing.T) {
	m := newTestLobby()
	a := &fakeTransport{id: "alice"}
	b := &fakeTransport{id: "bob"}
	m.Connect("alice", "alice", "", a)
	m.Connect("bob", "bob", "", b)

	before := a.count(protocol.EventOnlineUsers)
	m.Disconnect("bob", nil)

	assert.Equal(t, 1, m.OnlineCount())
	assert.Equal(t, before+1, a.count(protocol.EventOnlineUsers))
}

func TestRoomOccupantsExcludedFromLobbyTraffic(t *testing.T) {
	m := newTestLobby()
	a := &fakeTransport{id: "alice"}
	b := &fakeTransport{id: "bob"}
	m.Connect("alice", "alice", "", a)
	m.Connect("bob", "bob", "", b)

	m.MemberChanged("alice", "AAAA11", true)
	require.True(t, m.InRoom("alice"))

	before := a.count(protocol.EventChatBroadcast)
	m.Chat("bob", "anyone around?")

	assert.Equal(t, before, a.count(protocol.EventChatBroadcast), "room occupant never sees lobby chat")
	assert.Equal(t, 1, b.count(protocol.EventChatBroadcast))
}

func TestLeavingRoomRestoresLobbyTraffic(t *testing.T) {
	m := newTestLobby()
	a := &fakeTransport{id: "alice"}
	m.Connect("alice", "alice", "", a)

	m.MemberChanged("alice", "AAAA11", true)
	m.MemberChanged("alice", "AAAA11", false)
	require.False(t, m.InRoom("alice"))

	m.Chat("alice", "back in the lobby")
	assert.Equal(t, 1, a.count(protocol.EventChatBroadcast))
}

func TestRoomLifecycleRebroadcastsRoomList(t *testing.T) {
	m := newTestLobby()
	a := &fakeTransport{id: "alice"}
	m.Connect("alice", "alice", "", a)

	before := a.count(protocol.EventRoomList)
	m.RoomOpened("BBBB22")
	m.RoomClosed("BBBB22")

	require.Eventually(t, func() bool {
		return a.count(protocol.EventRoomList) >= before+2
	}, time.Second, 5*time.Millisecond)
}
