package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubTransport struct {
	id   string
	open bool
}

func (s *stubTransport) Send(event string, payload any) error { return nil }
func (s *stubTransport) Open() bool                           { return s.open }
func (s *stubTransport) ParticipantID() string                { return s.id }

func TestCreateSessionReusedOnReconnect(t *testing.T) {
	m := NewManager(time.Minute, zap.NewNop())

	first := m.CreateSession("p1", "Alice")
	second := m.CreateSession("p1", "Alice")

	assert.Same(t, first, second, "same participant resolves to the same session")
	assert.Equal(t, 0, countSessions(m)-1)
}

func TestGetByParticipant(t *testing.T) {
	m := NewManager(time.Minute, zap.NewNop())
	sess := m.CreateSession("p1", "Alice")

	got, ok := m.GetByParticipant("p1")
	require.True(t, ok)
	assert.Same(t, sess, got)

	_, ok = m.GetByParticipant("p2")
	assert.False(t, ok)
}

func TestTransportLifecycle(t *testing.T) {
	m := NewManager(time.Minute, zap.NewNop())
	sess := m.CreateSession("p1", "Alice")

	assert.False(t, sess.Connected())

	tr := &stubTransport{id: "p1", open: true}
	sess.SetTransport(tr)
	assert.True(t, sess.Connected())
	assert.Equal(t, 1, m.ActiveCount())

	sess.SetTransport(nil)
	assert.False(t, sess.Connected())
	assert.Equal(t, 0, m.ActiveCount())

	// The record survives disconnection until removed or reaped.
	_, ok := m.GetByParticipant("p1")
	assert.True(t, ok)
}

func TestReapExpiredSkipsConnected(t *testing.T) {
	m := NewManager(10*time.Millisecond, zap.NewNop())

	m.CreateSession("idle", "Idle")
	live := m.CreateSession("live", "Live")
	live.SetTransport(&stubTransport{id: "live", open: true})

	time.Sleep(20 * time.Millisecond)
	m.reapExpired()

	_, ok := m.GetByParticipant("idle")
	assert.False(t, ok, "idle disconnected session should be reaped")
	_, ok = m.GetByParticipant("live")
	assert.True(t, ok, "connected session must survive the reaper")
}

func countSessions(m *Manager) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
