// Package server exposes the engine over websocket: one room-scoped
// connection per participant, upgraded after off-band identity
// verification, plus a small JSON API for room creation and listing.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/liarsdeck/liars-server-go/internal/broadcast"
	"github.com/liarsdeck/liars-server-go/internal/config"
	"github.com/liarsdeck/liars-server-go/internal/game"
	"github.com/liarsdeck/liars-server-go/internal/lobby"
	"github.com/liarsdeck/liars-server-go/internal/protocol"
	"github.com/liarsdeck/liars-server-go/internal/repository"
	"github.com/liarsdeck/liars-server-go/internal/session"
)

// Server owns the HTTP listener and routes inbound websocket traffic
// into the game and lobby managers.
type Server struct {
	cfg      *config.Config
	rooms    *game.Manager
	lobby    *lobby.Manager
	sessions *session.Manager
	profiles *repository.ProfileRepository
	logger   *zap.Logger

	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New wires a Server. profiles may be nil when the database is
// disabled; avatars are then empty.
func New(cfg *config.Config, rooms *game.Manager, lb *lobby.Manager, sessions *session.Manager, profiles *repository.ProfileRepository, logger *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		rooms:    rooms,
		lobby:    lb,
		sessions: sessions,
		profiles: profiles,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Identity verification happens off-band before the
			// upgrade; origin policy belongs to the proxy in front.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/rooms", s.handleRooms)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpSrv = &http.Server{
		Addr:    cfg.Server.WebSocket.Address,
		Handler: mux,
	}
	return s
}

// ListenAndServe blocks serving connections until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("websocket server listening", zap.String("address", s.httpSrv.Addr))
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

type healthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"activeSessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status:         "ok",
		ActiveSessions: s.sessions.ActiveCount(),
	})
}

type createRoomRequest struct {
	Name          string `json:"name"`
	ParticipantID string `json:"participantId"`
	Password      string `json:"password,omitempty"`
}

type createRoomResponse struct {
	Code string `json:"code"`
}

// handleRooms creates a room (POST) or lists the open ones (GET).
// Joining happens over the websocket upgrade, never here.
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParticipantID == "" {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			req.Name = req.ParticipantID + "'s table"
		}
		room, err := s.rooms.CreateRoom(req.Name, req.ParticipantID, req.Password, nil)
		if err != nil {
			s.logger.Error("room creation failed", zap.Error(err))
			http.Error(w, "could not create room", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(createRoomResponse{Code: room.Code})

	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(protocol.RoomListPayload{Rooms: s.rooms.ListRooms()})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleWebSocket upgrades a verified identity's connection. roomCode
// and password arrive as query parameters; an empty roomCode yields a
// lobby-only connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	participantID := q.Get("participantId")
	displayName := q.Get("displayName")
	roomCode := q.Get("roomCode")
	password := q.Get("password")

	if participantID == "" {
		http.Error(w, "participantId required", http.StatusBadRequest)
		return
	}
	if displayName == "" {
		displayName = participantID
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	client := newClient(participantID, conn, s.cfg.Server.WebSocket, s.logger)
	go client.writePump()

	avatarURL := s.profiles.GetProfile(r.Context(), participantID).AvatarURL

	// The session directory classifies the connection: a known identity
	// is resuming, anything else gets a fresh record.
	sess, resuming := s.sessions.GetByParticipant(participantID)
	if resuming {
		s.logger.Info("session resumed", zap.String("participant_id", participantID))
	} else {
		sess = s.sessions.CreateSession(participantID, displayName)
	}
	sess.SetTransport(client)

	s.lobby.Connect(participantID, displayName, avatarURL, client)

	if roomCode != "" {
		if _, _, err := s.rooms.Join(roomCode, password, participantID, displayName, avatarURL, client); err != nil {
			client.Send(protocol.EventError, protocol.ErrorPayload{Message: clientMessage(err)})
			client.close()
			s.lobby.Disconnect(participantID, client)
			return
		}
	}

	client.readPump(func(env protocol.Envelope) {
		s.route(client, sess, env)
	})

	// Read loop ended: the connection is gone. Room membership enters
	// the grace window; lobby presence drops immediately. Each teardown
	// names the dropped transport so a reconnection that already
	// replaced it is left untouched.
	if sess.Transport() == broadcast.Transport(client) {
		sess.SetTransport(nil)
	}
	s.lobby.Disconnect(participantID, client)
	if room, ok := s.rooms.RoomOfParticipant(participantID); ok {
		room.HandleDisconnect(participantID, client)
	}
}

// route dispatches one inbound action. Rejections go back to the actor
// only and never mutate state.
func (s *Server) route(client *Client, sess *session.Session, env protocol.Envelope) {
	sess.Touch()
	id := client.ParticipantID()

	var err error
	switch env.Type {
	case protocol.ActionPlayCard:
		var p protocol.PlayCardPayload
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = s.withRoom(id, func(room *game.Room) error {
				return room.PlayCard(id, p.CardID, p.DeclaredType)
			})
		}

	case protocol.ActionChallengePlayer:
		var p protocol.ChallengePayload
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = s.withRoom(id, func(room *game.Room) error {
				return room.Challenge(id, p.TargetPlayerID)
			})
		}

	case protocol.ActionReadyForNextGame:
		err = s.withRoom(id, func(room *game.Room) error {
			return room.Ready(id)
		})

	case protocol.ActionCloseRoom:
		err = s.withRoom(id, func(room *game.Room) error {
			return room.Close(id)
		})

	case protocol.ActionLeaveRoom:
		err = s.withRoom(id, func(room *game.Room) error {
			return room.Leave(id)
		})

	case protocol.ActionChatMessage:
		var p protocol.ChatPayload
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			if room, ok := s.rooms.RoomOfParticipant(id); ok {
				err = room.Chat(id, p.Text)
			} else {
				s.lobby.Chat(id, p.Text)
			}
		}

	default:
		s.logger.Debug("unknown action", zap.String("type", env.Type))
		err = errUnknownAction
	}

	if err != nil {
		client.Send(protocol.EventError, protocol.ErrorPayload{Message: clientMessage(err)})
	}
}

func (s *Server) withRoom(participantID string, fn func(*game.Room) error) error {
	room, ok := s.rooms.RoomOfParticipant(participantID)
	if !ok {
		return game.ErrRoomUnavailable
	}
	return fn(room)
}
