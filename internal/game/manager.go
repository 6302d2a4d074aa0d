package game

import (
	"math/rand"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/liarsdeck/liars-server-go/internal/auth"
	"github.com/liarsdeck/liars-server-go/internal/broadcast"
	"github.com/liarsdeck/liars-server-go/internal/config"
	"github.com/liarsdeck/liars-server-go/internal/protocol"
)

// Lifecycle receives room open/close notifications. The lobby
// implements it to keep its room list current.
type Lifecycle interface {
	RoomOpened(code string)
	RoomClosed(code string)
	MemberChanged(participantID, roomCode string, joined bool)
}

// Manager is the registry of live rooms, keyed by room code, with a
// secondary index from participant identity to room code so a
// reconnecting socket finds its room in O(1).
type Manager struct {
	mu          sync.RWMutex
	rooms       map[string]*Room
	memberIndex map[string]string // participantID -> room code

	cfg       config.GameConfig
	bc        *broadcast.Broadcaster
	lifecycle Lifecycle
	logger    *zap.Logger
}

// NewManager creates an empty room registry. lifecycle may be nil.
func NewManager(cfg config.GameConfig, bc *broadcast.Broadcaster, lifecycle Lifecycle, logger *zap.Logger) *Manager {
	return &Manager{
		rooms:       make(map[string]*Room),
		memberIndex: make(map[string]string),
		cfg:         cfg,
		bc:          bc,
		lifecycle:   lifecycle,
		logger:      logger,
	}
}

const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func randomRoomCode(rng *rand.Rand) string {
	var b strings.Builder
	for i := 0; i < 6; i++ {
		var n int
		if rng != nil {
			n = rng.Intn(len(roomCodeAlphabet))
		} else {
			n = rand.Intn(len(roomCodeAlphabet))
		}
		b.WriteByte(roomCodeAlphabet[n])
	}
	return b.String()
}

// CreateRoom registers a new room owned by ownerID. The password may be
// empty for an open room. rng is optional and is forwarded to the room
// for deterministic tests.
func (m *Manager) CreateRoom(name, ownerID, password string, rng *rand.Rand) (*Room, error) {
	hash, err := auth.HashRoomPassword(password)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	var code string
	for {
		code = randomRoomCode(rng)
		if _, taken := m.rooms[code]; !taken {
			break
		}
	}

	room := NewRoom(code, name, ownerID, hash, m.cfg, m.bc, m.logger, rng)
	room.onMember = func(participantID string, joined bool) {
		m.memberChanged(participantID, code, joined)
	}
	room.onEmpty = func(code string) {
		// Runs with the room lock held; take only the registry lock.
		go m.RemoveRoom(code)
	}
	m.rooms[code] = room
	m.mu.Unlock()

	m.logger.Info("room created",
		zap.String("room_code", code),
		zap.String("owner_id", ownerID),
		zap.Bool("has_password", hash != ""),
	)

	if m.lifecycle != nil {
		m.lifecycle.RoomOpened(code)
	}
	return room, nil
}

func (m *Manager) memberChanged(participantID, code string, joined bool) {
	m.mu.Lock()
	if joined {
		m.memberIndex[participantID] = code
	} else if m.memberIndex[participantID] == code {
		delete(m.memberIndex, participantID)
	}
	m.mu.Unlock()

	if m.lifecycle != nil {
		m.lifecycle.MemberChanged(participantID, code, joined)
	}
}

// GetRoom looks a room up by code. Missing rooms and rooms the caller
// has no business knowing about are indistinguishable to clients; the
// single ErrRoomUnavailable covers both.
func (m *Manager) GetRoom(code string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[code]
	if !ok {
		return nil, ErrRoomUnavailable
	}
	return room, nil
}

// RoomOfParticipant returns the room the identity is currently a member
// of, if any.
func (m *Manager) RoomOfParticipant(participantID string) (*Room, bool) {
	m.mu.RLock()
	code, ok := m.memberIndex[participantID]
	if !ok {
		m.mu.RUnlock()
		return nil, false
	}
	room, ok := m.rooms[code]
	m.mu.RUnlock()
	return room, ok
}

// Join verifies the room password and admits the identity.
func (m *Manager) Join(code, password, participantID, displayName, avatarURL string, t broadcast.Transport) (*Room, Role, error) {
	room, err := m.GetRoom(code)
	if err != nil {
		return nil, "", err
	}

	// Returning members skip the password check; their credentials were
	// verified on first entry.
	if !room.HasMember(participantID) {
		if !auth.CheckRoomPassword(room.PasswordHash, password) {
			return nil, "", ErrWrongPassword
		}
	}

	role, err := room.Join(participantID, displayName, avatarURL, t)
	if err != nil {
		return nil, "", err
	}
	return room, role, nil
}

// ListRooms returns lobby summaries for every live room. Summaries are
// taken outside the registry lock; room callbacks acquire the registry
// lock while holding a room lock, so the reverse order here would
// deadlock.
func (m *Manager) ListRooms() []protocol.RoomSummary {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mu.RUnlock()

	out := make([]protocol.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Summary())
	}
	return out
}

// RemoveRoom unregisters a room. The room's own destroy path clears its
// members; this only clears the registry.
func (m *Manager) RemoveRoom(code string) {
	m.mu.Lock()
	_, ok := m.rooms[code]
	delete(m.rooms, code)
	for id, c := range m.memberIndex {
		if c == code {
			delete(m.memberIndex, id)
		}
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	m.logger.Info("room removed", zap.String("room_code", code))
	if m.lifecycle != nil {
		m.lifecycle.RoomClosed(code)
	}
}

// CloseAll destroys every room, used at shutdown.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	for _, room := range rooms {
		room.mu.Lock()
		room.destroyLocked("server shutting down")
		room.mu.Unlock()
	}
}
