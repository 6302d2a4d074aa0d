// Package session tracks live connections by participant identity.
// The directory is what lets the transport layer classify an incoming
// connection as new or as a reconnection before any room state is
// touched.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liarsdeck/liars-server-go/internal/broadcast"
)

// Session is one participant's connection record. The transport handle
// is nil while the participant is disconnected; the record itself
// survives until removed or expired.
type Session struct {
	ID            string
	ParticipantID string
	DisplayName   string

	mu           sync.Mutex
	transport    broadcast.Transport
	lastActivity time.Time
}

// SetTransport attaches (or detaches, with nil) the live transport.
func (s *Session) SetTransport(t broadcast.Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport = t
	s.lastActivity = time.Now()
}

// Transport returns the current transport handle, nil if disconnected.
func (s *Session) Transport() broadcast.Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}

// Connected reports whether the session has a live, open transport.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport != nil && s.transport.Open()
}

// Touch records activity on the session.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// LastActivity returns the time of the most recent activity.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Manager is the process-wide session directory, indexed by session ID
// and by participant identity.
type Manager struct {
	mu            sync.RWMutex
	sessions      map[string]*Session
	byParticipant map[string]*Session

	lease  time.Duration
	logger *zap.Logger
}

// NewManager creates a session directory. Sessions with no transport
// and no activity for the lease period are reaped by the cleanup loop.
func NewManager(lease time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		sessions:      make(map[string]*Session),
		byParticipant: make(map[string]*Session),
		lease:         lease,
		logger:        logger,
	}
}

// CreateSession registers a session for a participant identity. If the
// participant already has a session it is reused, so a reconnection
// resolves to the same record.
func (m *Manager) CreateSession(participantID, displayName string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byParticipant[participantID]; ok {
		existing.Touch()
		return existing
	}

	sess := &Session{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		DisplayName:   displayName,
		lastActivity:  time.Now(),
	}
	m.sessions[sess.ID] = sess
	m.byParticipant[participantID] = sess

	m.logger.Debug("session created",
		zap.String("session_id", sess.ID),
		zap.String("participant_id", participantID),
	)
	return sess
}

// GetByParticipant retrieves a session by participant identity. This
// is how the transport layer classifies an incoming connection as new
// or resuming, and is O(1) in the number of sessions.
func (m *Manager) GetByParticipant(participantID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.byParticipant[participantID]
	return sess, ok
}

// ActiveCount returns the number of sessions with a live transport.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, sess := range m.sessions {
		if sess.Connected() {
			count++
		}
	}
	return count
}

// CleanupExpiredSessions reaps disconnected sessions whose lease has
// elapsed. Runs until ctx is cancelled.
func (m *Manager) CleanupExpiredSessions(ctx context.Context) {
	ticker := time.NewTicker(m.lease / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reapExpired()
		}
	}
}

func (m *Manager) reapExpired() {
	cutoff := time.Now().Add(-m.lease)

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, sess := range m.sessions {
		if sess.Connected() || sess.LastActivity().After(cutoff) {
			continue
		}
		delete(m.sessions, id)
		delete(m.byParticipant, sess.ParticipantID)
		m.logger.Info("expired session reaped",
			zap.String("session_id", id),
			zap.String("participant_id", sess.ParticipantID),
		)
	}
}

// CloseAll detaches every transport, used during shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sess := range m.sessions {
		sess.SetTransport(nil)
	}
	m.sessions = make(map[string]*Session)
	m.byParticipant = make(map[string]*Session)
}
