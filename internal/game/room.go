// Package game owns the per-room session state machine: membership,
// dealt hands, turn order, timers, challenges and win resolution. All
// mutation of a room flows through the exported operations of Room,
// serialized by the room's mutex; timers re-acquire the same mutex and
// validate an epoch before acting, so a stale fire can never interleave
// with a player action.
package game

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/liarsdeck/liars-server-go/internal/broadcast"
	"github.com/liarsdeck/liars-server-go/internal/config"
	"github.com/liarsdeck/liars-server-go/internal/deck"
	"github.com/liarsdeck/liars-server-go/internal/protocol"
)

// Role distinguishes seated players from spectators.
type Role string

const (
	RolePlayer    Role = "Player"
	RoleSpectator Role = "Spectator"
)

// Status is the coarse room state. Phase refines it.
type Status string

const (
	StatusWaiting Status = "Waiting"
	StatusPlaying Status = "Playing"
)

// Phase is the fine-grained game phase. Challenge is transient and
// always resolves within the same action; Finished is a sub-state of
// StatusWaiting reached briefly before the next-game reset.
type Phase string

const (
	PhaseWaiting   Phase = "Waiting"
	PhasePlaying   Phase = "Playing"
	PhaseChallenge Phase = "Challenge"
	PhaseFinished  Phase = "Finished"
)

// Participant is one identity's seat in a room. The transport is nil
// while disconnected; the record survives until the grace period
// elapses or the participant leaves.
type Participant struct {
	ID          string
	DisplayName string
	AvatarURL   string
	Role        Role

	transport  broadcast.Transport
	graceTimer *time.Timer
	graceEpoch int
}

// Connected reports whether the participant has a live, open transport.
func (p *Participant) Connected() bool {
	return p.transport != nil && p.transport.Open()
}

// Hand is one player's per-game record.
type Hand struct {
	Cards             []deck.Card
	HasPlayedThisTurn bool
	IsReady           bool
	Score             int
	RiskLevel         int
	IsEliminated      bool
	IsInactive        bool
}

func (h *Hand) removeCard(cardID string) (deck.Card, bool) {
	for i, c := range h.Cards {
		if c.ID == cardID {
			h.Cards = append(h.Cards[:i], h.Cards[i+1:]...)
			return c, true
		}
	}
	return deck.Card{}, false
}

// round is the embedded per-game state.
type round struct {
	phase            Phase
	number           int
	currentIndex     int
	direction        int
	currentCardType  deck.Rank
	playedCards      []deck.Card
	lastPlayedCard   *deck.Card
	lastDeclaredType deck.Rank
	lastPlayerID     string
}

// Room is the single state-owning type for one game table. Every
// exported method acquires the room mutex; nothing outside this
// package mutates room fields directly.
type Room struct {
	Code         string
	Name         string
	OwnerID      string
	PasswordHash string

	mu         sync.Mutex
	status     Status
	players    []*Participant // insertion order = turn order, stable for the room's lifetime
	spectators map[string]*Participant
	hands      map[string]*Hand
	drawPile   []deck.Card
	round      round

	turnTimer  *time.Timer
	turnEpoch  int
	resetTimer *time.Timer
	generation int
	closed     bool

	cfg    config.GameConfig
	bc     *broadcast.Broadcaster
	logger *zap.Logger
	rng    *rand.Rand

	// registry hooks, set by the Manager that owns this room
	onMember func(participantID string, joined bool)
	onEmpty  func(code string)
}

// NewRoom creates an empty room in the waiting state. rng may be nil,
// in which case a time-seeded source is used; tests inject a seeded one.
func NewRoom(code, name, ownerID, passwordHash string, cfg config.GameConfig, bc *broadcast.Broadcaster, logger *zap.Logger, rng *rand.Rand) *Room {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Room{
		Code:         code,
		Name:         name,
		OwnerID:      ownerID,
		PasswordHash: passwordHash,
		status:       StatusWaiting,
		spectators:   make(map[string]*Participant),
		hands:        make(map[string]*Hand),
		round:        round{phase: PhaseWaiting, direction: 1},
		cfg:          cfg,
		bc:           bc,
		logger:       logger.With(zap.String("room_code", code)),
		rng:          rng,
	}
}

// roster is a point-in-time snapshot of live transports, built under
// the room lock so the Broadcaster never has to reach back into the
// room.
type roster []broadcast.Transport

func (r roster) Transports() []broadcast.Transport { return r }

func (r *Room) rosterLocked() roster {
	out := make(roster, 0, len(r.players)+len(r.spectators))
	for _, p := range r.players {
		if p.transport != nil {
			out = append(out, p.transport)
		}
	}
	for _, s := range r.spectators {
		if s.transport != nil {
			out = append(out, s.transport)
		}
	}
	return out
}

func (r *Room) playerLocked(id string) (*Participant, int) {
	for i, p := range r.players {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

func (r *Room) participantLocked(id string) *Participant {
	if p, _ := r.playerLocked(id); p != nil {
		return p
	}
	return r.spectators[id]
}

// Status returns the coarse room status.
func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// PlayerCount returns the number of seated players, connected or not.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// HasMember reports whether the identity is a player or spectator.
func (r *Room) HasMember(participantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.participantLocked(participantID) != nil
}

// Summary returns the lobby listing entry for this room.
func (r *Room) Summary() protocol.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return protocol.RoomSummary{
		Code:        r.Code,
		Name:        r.Name,
		PlayerCount: len(r.players),
		Capacity:    r.cfg.RoomCapacity,
		HasPassword: r.PasswordHash != "",
		Status:      string(r.status),
	}
}

// Join admits an identity into the room, seating it as a player while
// the room is waiting and has a free seat, otherwise as a spectator.
// A returning identity is treated as a reconnection instead.
func (r *Room) Join(id, displayName, avatarURL string, t broadcast.Transport) (Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", ErrRoomUnavailable
	}

	if existing := r.participantLocked(id); existing != nil {
		r.reconnectLocked(existing, t)
		return existing.Role, nil
	}

	p := &Participant{
		ID:          id,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		transport:   t,
	}

	if r.status == StatusWaiting && len(r.players) < r.cfg.RoomCapacity {
		p.Role = RolePlayer
		r.players = append(r.players, p)
		r.hands[id] = &Hand{}
	} else {
		p.Role = RoleSpectator
		r.spectators[id] = p
	}

	if r.onMember != nil {
		r.onMember(id, true)
	}

	r.logger.Info("participant joined",
		zap.String("participant_id", id),
		zap.String("role", string(p.Role)),
	)

	r.bc.SendTo(t, protocol.EventJoinedRoom, protocol.JoinedRoomPayload{
		RoomCode: r.Code,
		Role:     string(p.Role),
	})
	r.broadcastStateLocked()

	if p.Role == RolePlayer && len(r.players) == r.cfg.RoomCapacity {
		r.startGameLocked()
	}
	return p.Role, nil
}

func (r *Room) reconnectLocked(p *Participant, t broadcast.Transport) {
	if p.graceTimer != nil {
		p.graceTimer.Stop()
		p.graceTimer = nil
	}
	p.graceEpoch++
	p.transport = t

	// The transport layer re-registers every connection with the lobby
	// before joining, which resets the identity's room scope. Re-assert
	// membership so lobby traffic keeps excluding this participant.
	if r.onMember != nil {
		r.onMember(p.ID, true)
	}

	r.logger.Info("participant reconnected", zap.String("participant_id", p.ID))

	r.bc.SendTo(t, protocol.EventJoinedRoom, protocol.JoinedRoomPayload{
		RoomCode:    r.Code,
		Role:        string(p.Role),
		Reconnected: true,
	})
	if hand, ok := r.hands[p.ID]; ok && r.status == StatusPlaying {
		r.bc.SendTo(t, protocol.EventHandUpdate, protocol.HandPayload{Cards: hand.Cards})
	}
	r.bc.SendTo(t, protocol.EventRoomStateUpdate, r.snapshotLocked(p.ID))
	r.bc.ToOthers(r.rosterLocked(), p.ID, protocol.EventPlayerReconnected, protocol.PresencePayload{
		PlayerID:    p.ID,
		DisplayName: p.DisplayName,
	})
}

// HandleDisconnect detaches a participant's transport and starts the
// reconnection grace timer. The dropped transport is passed so a
// teardown racing a reconnection cannot detach the replacement; pass
// nil to detach unconditionally. If the disconnecting player held the
// active turn the table advances immediately rather than waiting out
// the turn timer.
func (r *Room) HandleDisconnect(participantID string, dropped broadcast.Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.participantLocked(participantID)
	if p == nil || r.closed {
		return
	}
	if p.transport == nil {
		return // already handled
	}
	if dropped != nil && p.transport != dropped {
		return // superseded by a reconnection
	}
	p.transport = nil

	r.logger.Info("participant disconnected", zap.String("participant_id", participantID))

	r.bc.ToRoom(r.rosterLocked(), protocol.EventPlayerDisconnected, protocol.PresencePayload{
		PlayerID:    p.ID,
		DisplayName: p.DisplayName,
	})

	if r.status == StatusPlaying && r.round.phase == PhasePlaying {
		if _, idx := r.playerLocked(participantID); idx == r.round.currentIndex {
			r.cancelTurnTimerLocked()
			r.advanceTurnLocked()
		}
	}

	r.armGraceTimerLocked(p)
}

func (r *Room) armGraceTimerLocked(p *Participant) {
	if p.graceTimer != nil {
		p.graceTimer.Stop()
	}
	p.graceEpoch++
	epoch := p.graceEpoch
	id := p.ID

	p.graceTimer = time.AfterFunc(r.cfg.DisconnectGrace, func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		target := r.participantLocked(id)
		if r.closed || target == nil || target.graceEpoch != epoch || target.transport != nil {
			return // reconnected or superseded; stale fire
		}
		r.logger.Info("grace period elapsed, removing participant",
			zap.String("participant_id", id),
		)
		r.removeParticipantLocked(target)
	})
}

// removeParticipantLocked drops a participant entirely: seat, hand and
// registry index. Destroys the room if it empties.
func (r *Room) removeParticipantLocked(p *Participant) {
	if p.graceTimer != nil {
		p.graceTimer.Stop()
		p.graceTimer = nil
	}
	p.graceEpoch++

	if p.Role == RoleSpectator {
		delete(r.spectators, p.ID)
	} else {
		_, idx := r.playerLocked(p.ID)
		if idx >= 0 {
			r.players = append(r.players[:idx], r.players[idx+1:]...)
			delete(r.hands, p.ID)
			// keep currentIndex pointing at the same participant's slot
			if r.round.currentIndex > idx {
				r.round.currentIndex--
			} else if r.round.currentIndex >= len(r.players) {
				r.round.currentIndex = 0
			}
		}
	}

	if r.onMember != nil {
		r.onMember(p.ID, false)
	}

	r.broadcastStateLocked()

	if len(r.players) == 0 && len(r.spectators) == 0 {
		r.destroyLocked("room empty")
		return
	}

	if r.status == StatusPlaying && p.Role == RolePlayer {
		if r.eligibleCountLocked() <= 1 {
			r.resolveWinLocked(nil)
		}
	}
}

// Leave removes a participant at their own request, with no grace
// period. The owner leaving does not close the room; only CLOSE_ROOM
// does that.
func (r *Room) Leave(participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.participantLocked(participantID)
	if p == nil || r.closed {
		return ErrRoomUnavailable
	}

	r.logger.Info("participant left", zap.String("participant_id", participantID))

	wasCurrent := false
	if _, idx := r.playerLocked(participantID); idx >= 0 && idx == r.round.currentIndex {
		wasCurrent = r.status == StatusPlaying && r.round.phase == PhasePlaying
	}

	r.removeParticipantLocked(p)
	if r.closed {
		return nil
	}

	if wasCurrent && r.status == StatusPlaying && r.round.phase == PhasePlaying {
		r.cancelTurnTimerLocked()
		r.advanceTurnLocked()
	}
	return nil
}

// Close tears the room down at the owner's request, regardless of
// game phase.
func (r *Room) Close(participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomUnavailable
	}
	if participantID != r.OwnerID {
		return ErrNotOwner
	}
	r.destroyLocked("closed by owner")
	return nil
}

// destroyLocked cancels every timer, notifies participants and
// unregisters the room.
func (r *Room) destroyLocked(reason string) {
	if r.closed {
		return
	}
	r.closed = true

	r.cancelTurnTimerLocked()
	if r.resetTimer != nil {
		r.resetTimer.Stop()
		r.resetTimer = nil
	}
	r.generation++

	for _, p := range r.players {
		if p.graceTimer != nil {
			p.graceTimer.Stop()
			p.graceTimer = nil
		}
		p.graceEpoch++
	}

	r.bc.ToRoom(r.rosterLocked(), protocol.EventRoomClosed, protocol.RoomClosedPayload{
		RoomCode: r.Code,
		Reason:   reason,
	})

	r.logger.Info("room destroyed", zap.String("reason", reason))

	if r.onMember != nil {
		for _, p := range r.players {
			r.onMember(p.ID, false)
		}
		for id := range r.spectators {
			r.onMember(id, false)
		}
	}
	if r.onEmpty != nil {
		r.onEmpty(r.Code)
	}
}

// Chat relays a room-scoped chat line to every participant.
func (r *Room) Chat(participantID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.participantLocked(participantID)
	if p == nil || r.closed {
		return ErrRoomUnavailable
	}
	if text == "" {
		return ErrEmptyChatMessage
	}

	r.bc.ToRoom(r.rosterLocked(), protocol.EventChatBroadcast, protocol.ChatBroadcastPayload{
		SenderID:   p.ID,
		SenderName: p.DisplayName,
		Text:       text,
		SentAtUnix: time.Now().Unix(),
	})
	return nil
}

// snapshotLocked builds the per-viewer room snapshot. Only the viewer's
// own cards are ever included; other hands appear as sizes.
func (r *Room) snapshotLocked(viewerID string) protocol.RoomStatePayload {
	players := make([]protocol.PlayerView, 0, len(r.players))
	for _, p := range r.players {
		hand := r.hands[p.ID]
		players = append(players, protocol.PlayerView{
			ID:           p.ID,
			DisplayName:  p.DisplayName,
			AvatarURL:    p.AvatarURL,
			HandSize:     len(hand.Cards),
			Score:        hand.Score,
			RiskLevel:    hand.RiskLevel,
			IsReady:      hand.IsReady,
			IsEliminated: hand.IsEliminated,
			IsConnected:  p.Connected(),
		})
	}

	spectators := make([]protocol.SpectatorView, 0, len(r.spectators))
	for _, s := range r.spectators {
		spectators = append(spectators, protocol.SpectatorView{
			ID:          s.ID,
			DisplayName: s.DisplayName,
			AvatarURL:   s.AvatarURL,
		})
	}

	snap := protocol.RoomStatePayload{
		RoomCode:        r.Code,
		RoomName:        r.Name,
		OwnerID:         r.OwnerID,
		Status:          string(r.status),
		Phase:           string(r.round.phase),
		RoundNumber:     r.round.number,
		CurrentCardType: r.round.currentCardType,
		PlayedCount:     len(r.round.playedCards),
		Players:         players,
		Spectators:      spectators,
		YourRole:        string(RoleSpectator),
	}
	if r.status == StatusPlaying && r.round.currentIndex < len(r.players) {
		snap.CurrentPlayerID = r.players[r.round.currentIndex].ID
	}

	if viewer, _ := r.playerLocked(viewerID); viewer != nil {
		snap.YourRole = string(RolePlayer)
		snap.YourHand = r.hands[viewerID].Cards
	}
	return snap
}

// broadcastStateLocked sends each connected participant their own view
// of the room.
func (r *Room) broadcastStateLocked() {
	for _, p := range r.players {
		if p.Connected() {
			r.bc.SendTo(p.transport, protocol.EventRoomStateUpdate, r.snapshotLocked(p.ID))
		}
	}
	for _, s := range r.spectators {
		if s.Connected() {
			r.bc.SendTo(s.transport, protocol.EventRoomStateUpdate, r.snapshotLocked(s.ID))
		}
	}
}
