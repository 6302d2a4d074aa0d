// Package lobby tracks every connected identity regardless of room
// membership. Identities outside a room receive the online-user list,
// the available-room list and global chat; room occupants get none of
// that, their traffic is room-scoped.
package lobby

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/liarsdeck/liars-server-go/internal/broadcast"
	"github.com/liarsdeck/liars-server-go/internal/protocol"
)

// RoomLister supplies the current room summaries. The game manager
// implements it.
type RoomLister interface {
	ListRooms() []protocol.RoomSummary
}

type presence struct {
	displayName string
	avatarURL   string
	transport   broadcast.Transport
	roomCode    string
}

// Manager is the global presence registry.
type Manager struct {
	mu     sync.RWMutex
	online map[string]*presence

	bc     *broadcast.Broadcaster
	rooms  RoomLister
	logger *zap.Logger
}

// NewManager creates an empty presence registry. The room lister is
// attached later with SetRoomLister because the game manager is built
// after the lobby it notifies.
func NewManager(bc *broadcast.Broadcaster, logger *zap.Logger) *Manager {
	return &Manager{
		online: make(map[string]*presence),
		bc:     bc,
		logger: logger,
	}
}

// SetRoomLister attaches the source of room summaries.
func (m *Manager) SetRoomLister(rooms RoomLister) {
	m.mu.Lock()
	m.rooms = rooms
	m.mu.Unlock()
}

// Connect registers a connected identity and sends it the current
// lobby listings.
func (m *Manager) Connect(id, displayName, avatarURL string, t broadcast.Transport) {
	m.mu.Lock()
	m.online[id] = &presence{
		displayName: displayName,
		avatarURL:   avatarURL,
		transport:   t,
	}
	m.mu.Unlock()

	m.logger.Info("identity online", zap.String("participant_id", id))

	m.broadcastOnlineUsers()
	m.bc.SendTo(t, protocol.EventRoomList, protocol.RoomListPayload{Rooms: m.listRooms()})
}

// Disconnect removes an identity from the presence registry. The
// dropped transport is passed so a teardown racing a reconnection does
// not evict the replacement; pass nil to remove unconditionally.
func (m *Manager) Disconnect(id string, dropped broadcast.Transport) {
	m.mu.Lock()
	p, ok := m.online[id]
	if ok && dropped != nil && p.transport != dropped {
		m.mu.Unlock()
		return // superseded by a reconnection
	}
	delete(m.online, id)
	m.mu.Unlock()

	if !ok {
		return
	}
	m.logger.Info("identity offline", zap.String("participant_id", id))
	m.broadcastOnlineUsers()
}

// InRoom reports whether the identity currently occupies a room.
func (m *Manager) InRoom(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.online[id]
	return ok && p.roomCode != ""
}

// OnlineCount returns the number of connected identities.
func (m *Manager) OnlineCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.online)
}

// Chat relays a global chat line to every identity outside a room.
// Room occupants talk through their room instead.
func (m *Manager) Chat(senderID, text string) {
	m.mu.RLock()
	sender, ok := m.online[senderID]
	m.mu.RUnlock()
	if !ok || text == "" {
		return
	}

	m.bc.ToRoom(m.lobbyRoster(""), protocol.EventChatBroadcast, protocol.ChatBroadcastPayload{
		SenderID:   senderID,
		SenderName: sender.displayName,
		Text:       text,
		SentAtUnix: time.Now().Unix(),
	})
}

// RoomOpened implements game.Lifecycle.
func (m *Manager) RoomOpened(code string) { m.scheduleRoomList() }

// RoomClosed implements game.Lifecycle.
func (m *Manager) RoomClosed(code string) { m.scheduleRoomList() }

// MemberChanged implements game.Lifecycle. It runs with the affected
// room's lock held, so the room-list rebuild (which takes room locks)
// is deferred to its own goroutine.
func (m *Manager) MemberChanged(participantID, roomCode string, joined bool) {
	m.mu.Lock()
	if p, ok := m.online[participantID]; ok {
		if joined {
			p.roomCode = roomCode
		} else if p.roomCode == roomCode {
			p.roomCode = ""
		}
	}
	m.mu.Unlock()

	m.scheduleRoomList()
}

func (m *Manager) scheduleRoomList() {
	go func() {
		m.bc.ToRoom(m.lobbyRoster(""), protocol.EventRoomList, protocol.RoomListPayload{Rooms: m.listRooms()})
	}()
}

func (m *Manager) broadcastOnlineUsers() {
	m.mu.RLock()
	users := make([]protocol.OnlineUser, 0, len(m.online))
	for id, p := range m.online {
		users = append(users, protocol.OnlineUser{
			ID:          id,
			DisplayName: p.displayName,
			AvatarURL:   p.avatarURL,
		})
	}
	m.mu.RUnlock()

	m.bc.ToRoom(m.lobbyRoster(""), protocol.EventOnlineUsers, protocol.OnlineUsersPayload{Users: users})
}

// lobbyRoster snapshots the transports of identities outside any room,
// excluding excludeID when non-empty.
func (m *Manager) lobbyRoster(excludeID string) roster {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(roster, 0, len(m.online))
	for id, p := range m.online {
		if p.roomCode != "" || id == excludeID || p.transport == nil {
			continue
		}
		out = append(out, p.transport)
	}
	return out
}

func (m *Manager) listRooms() []protocol.RoomSummary {
	m.mu.RLock()
	rooms := m.rooms
	m.mu.RUnlock()
	if rooms == nil {
		return nil
	}
	return rooms.ListRooms()
}

type roster []broadcast.Transport

func (r roster) Transports() []broadcast.Transport { return r }
