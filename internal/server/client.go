package server

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/liarsdeck/liars-server-go/internal/config"
	"github.com/liarsdeck/liars-server-go/internal/protocol"
)

var errSendBufferFull = errors.New("send buffer full")

// Client wraps one websocket connection. It implements
// broadcast.Transport: Send enqueues without blocking and the write
// pump owns the connection's write side exclusively.
type Client struct {
	participantID string
	conn          *websocket.Conn
	send          chan protocol.OutboundEnvelope
	cfg           config.WebSocketConfig
	logger        *zap.Logger

	mu     sync.Mutex
	closed bool
}

func newClient(participantID string, conn *websocket.Conn, cfg config.WebSocketConfig, logger *zap.Logger) *Client {
	return &Client{
		participantID: participantID,
		conn:          conn,
		send:          make(chan protocol.OutboundEnvelope, cfg.SendBufferSize),
		cfg:           cfg,
		logger:        logger.With(zap.String("participant_id", participantID)),
	}
}

// Send queues an event for delivery. A full buffer closes the client;
// a peer that cannot drain its events is indistinguishable from a dead
// one.
func (c *Client) Send(event string, payload any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return websocket.ErrCloseSent
	}
	select {
	case c.send <- protocol.OutboundEnvelope{Type: event, Payload: payload}:
		c.mu.Unlock()
		return nil
	default:
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		c.logger.Warn("send buffer full, closing client")
		return errSendBufferFull
	}
}

// Open reports whether the client can still deliver events.
func (c *Client) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// ParticipantID identifies who is behind the connection.
func (c *Client) ParticipantID() string {
	return c.participantID
}

func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
}

// writePump drains the send channel onto the wire and keeps the
// connection alive with periodic pings. It is the sole writer.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads inbound envelopes sequentially and hands each to the
// router. It returns when the connection drops; the caller runs the
// disconnect path.
func (c *Client) readPump(handle func(protocol.Envelope)) {
	defer c.close()

	c.conn.SetReadLimit(c.cfg.MaxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
		return nil
	})

	for {
		var env protocol.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("connection dropped", zap.Error(err))
			}
			return
		}
		handle(env)
	}
}
