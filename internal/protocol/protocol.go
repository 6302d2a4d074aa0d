// Package protocol defines the JSON wire format spoken over the
// persistent websocket channel: a typed envelope for inbound actions
// and the payload shapes for every outbound event.
package protocol

import (
	"encoding/json"

	"github.com/liarsdeck/liars-server-go/internal/deck"
)

// Envelope is the frame every inbound message arrives in.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OutboundEnvelope frames every event the server emits.
type OutboundEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Inbound action types.
const (
	ActionPlayCard         = "PLAY_CARD"
	ActionChallengePlayer  = "CHALLENGE_PLAYER"
	ActionReadyForNextGame = "READY_FOR_NEXT_GAME"
	ActionCloseRoom        = "CLOSE_ROOM"
	ActionChatMessage      = "CHAT_MESSAGE"
	ActionLeaveRoom        = "LEAVE_ROOM"
)

// Outbound event types.
const (
	EventJoinedRoom         = "JOINED_ROOM"
	EventRoomStateUpdate    = "ROOM_STATE_UPDATE"
	EventHandDealt          = "HAND_DEALT"
	EventHandUpdate         = "HAND_UPDATE"
	EventYourTurn           = "YOUR_TURN"
	EventPlayerTurn         = "PLAYER_TURN"
	EventTurnTimeout        = "TURN_TIMEOUT"
	EventPlayerTimeout      = "PLAYER_TIMEOUT"
	EventCardPlayed         = "CARD_PLAYED"
	EventOpponentPlayedCard = "OPPONENT_PLAYED_CARD"
	EventPlayerChallenged   = "PLAYER_CHALLENGED"
	EventChallengeResult    = "CHALLENGE_RESULT"
	EventGameStarted        = "GAME_STARTED"
	EventGameFinished       = "GAME_FINISHED"
	EventNextGameReady      = "NEXT_GAME_READY"
	EventPlayerDisconnected = "PLAYER_DISCONNECTED"
	EventPlayerReconnected  = "PLAYER_RECONNECTED"
	EventChatBroadcast      = "CHAT_BROADCAST"
	EventRoomClosed         = "ROOM_CLOSED"
	EventOnlineUsers        = "ONLINE_USERS"
	EventRoomList           = "ROOM_LIST"
	EventError              = "ERROR"
)

// PlayCardPayload carries a PLAY_CARD action. DeclaredType is required
// when the card is wild and ignored otherwise.
type PlayCardPayload struct {
	CardID       string    `json:"cardId"`
	DeclaredType deck.Rank `json:"declaredType,omitempty"`
}

// ChallengePayload carries a CHALLENGE_PLAYER action.
type ChallengePayload struct {
	TargetPlayerID string `json:"targetPlayerId"`
}

// ChatPayload carries a CHAT_MESSAGE action.
type ChatPayload struct {
	Text string `json:"text"`
}

// ErrorPayload is the only shape ever sent back for a rejected action.
type ErrorPayload struct {
	Message string `json:"message"`
}

// PlayerView is the public projection of a seated player: hand sizes
// only, never card faces.
type PlayerView struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	AvatarURL    string `json:"avatarUrl,omitempty"`
	HandSize     int    `json:"handSize"`
	Score        int    `json:"score"`
	RiskLevel    int    `json:"riskLevel"`
	IsReady      bool   `json:"isReady"`
	IsEliminated bool   `json:"isEliminated"`
	IsConnected  bool   `json:"isConnected"`
}

// SpectatorView is the public projection of a spectator.
type SpectatorView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// RoomStatePayload is the full per-viewer room snapshot. YourHand is
// populated only with the viewing participant's own cards.
type RoomStatePayload struct {
	RoomCode        string          `json:"roomCode"`
	RoomName        string          `json:"roomName"`
	OwnerID         string          `json:"ownerId"`
	Status          string          `json:"status"`
	Phase           string          `json:"phase"`
	RoundNumber     int             `json:"roundNumber"`
	CurrentPlayerID string          `json:"currentPlayerId,omitempty"`
	CurrentCardType deck.Rank       `json:"currentCardType,omitempty"`
	PlayedCount     int             `json:"playedCount"`
	Players         []PlayerView    `json:"players"`
	Spectators      []SpectatorView `json:"spectators"`
	YourHand        []deck.Card     `json:"yourHand,omitempty"`
	YourRole        string          `json:"yourRole"`
}

// JoinedRoomPayload confirms room entry to the joining participant.
type JoinedRoomPayload struct {
	RoomCode    string `json:"roomCode"`
	Role        string `json:"role"`
	Reconnected bool   `json:"reconnected"`
}

// GameStartedPayload announces a new game along with the rule constants
// so clients need not hard-code them.
type GameStartedPayload struct {
	RoomCode        string `json:"roomCode"`
	RoomCapacity    int    `json:"roomCapacity"`
	HandSize        int    `json:"handSize"`
	DeckSize        int    `json:"deckSize"`
	TurnTimeLimitMs int64  `json:"turnTimeLimitMs"`
}

// HandPayload privately delivers a player their own cards.
type HandPayload struct {
	Cards []deck.Card `json:"cards"`
}

// YourTurnPayload privately notifies the active player.
type YourTurnPayload struct {
	TimeLimitMs  int64     `json:"timeLimitMs"`
	OpeningPlay  bool      `json:"openingPlay"`
	RequiredType deck.Rank `json:"requiredType,omitempty"`
	CanChallenge bool      `json:"canChallenge"`
}

// PlayerTurnPayload publicly announces whose turn it is.
type PlayerTurnPayload struct {
	PlayerID     string    `json:"playerId"`
	RequiredType deck.Rank `json:"requiredType,omitempty"`
}

// TimeoutPayload reports a turn that expired.
type TimeoutPayload struct {
	PlayerID string `json:"playerId"`
}

// CardPlayedPayload privately echoes a successful play to the actor,
// including the true card.
type CardPlayedPayload struct {
	Card         deck.Card `json:"card"`
	DeclaredType deck.Rank `json:"declaredType"`
	HandSize     int       `json:"handSize"`
}

// OpponentPlayedPayload publicly reports a play. Only the declared
// type is visible; the true card identity stays face down.
type OpponentPlayedPayload struct {
	PlayerID     string    `json:"playerId"`
	DeclaredType deck.Rank `json:"declaredType"`
	HandSize     int       `json:"handSize"`
	PlayedCount  int       `json:"playedCount"`
}

// ChallengeAnnouncedPayload reports that a challenge was raised.
type ChallengeAnnouncedPayload struct {
	ChallengerID string `json:"challengerId"`
	AccusedID    string `json:"accusedId"`
}

// ChallengeResultPayload reveals the challenged card and the outcome.
type ChallengeResultPayload struct {
	ChallengerID string    `json:"challengerId"`
	AccusedID    string    `json:"accusedId"`
	RevealedCard deck.Card `json:"revealedCard"`
	DeclaredType deck.Rank `json:"declaredType"`
	Lied         bool      `json:"lied"`
	PunishedID   string    `json:"punishedId"`
	RiskLevel    int       `json:"riskLevel"`
	Eliminated   bool      `json:"eliminated"`
}

// GameFinishedPayload names the winner.
type GameFinishedPayload struct {
	WinnerID   string `json:"winnerId"`
	WinnerName string `json:"winnerName"`
	Score      int    `json:"score"`
}

// ReadyPayload reports a player readying up for the next game.
type ReadyPayload struct {
	PlayerID string `json:"playerId"`
	ReadyAll bool   `json:"readyAll"`
}

// PresencePayload reports a participant connecting or disconnecting.
type PresencePayload struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
}

// ChatBroadcastPayload relays a chat line.
type ChatBroadcastPayload struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	SentAtUnix int64  `json:"sentAt"`
}

// RoomClosedPayload announces room teardown.
type RoomClosedPayload struct {
	RoomCode string `json:"roomCode"`
	Reason   string `json:"reason"`
}

// OnlineUser is one entry of the lobby's who's-online list.
type OnlineUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// OnlineUsersPayload is the lobby-wide presence list.
type OnlineUsersPayload struct {
	Users []OnlineUser `json:"users"`
}

// RoomSummary is one entry of the lobby's available-rooms list.
type RoomSummary struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	PlayerCount int    `json:"playerCount"`
	Capacity    int    `json:"capacity"`
	HasPassword bool   `json:"hasPassword"`
	Status      string `json:"status"`
}

// RoomListPayload is the lobby-wide room list.
type RoomListPayload struct {
	Rooms []RoomSummary `json:"rooms"`
}
