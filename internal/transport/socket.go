// Package transport owns the single shared socket connection to the
// platform's real-time gateway. Inbound events are published onto the bus
// exactly once each; components never attach their own listeners to the
// connection.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Nexta12/propertify-client-sub000/internal/bus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Redial backoff bounds.
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Emitter is the outbound half of the transport. Components that only send
// events depend on this instead of the full Socket.
type Emitter interface {
	Emit(event string, payload any)
}

// Socket is the shared bidirectional event channel. Emit is safe to call
// from any goroutine and is silently skipped while disconnected: there is no
// queueing or retry, callers re-emit when the connection comes back (the
// bus publishes transport.connected for exactly that purpose).
type Socket struct {
	url    string
	header http.Header
	bus    *bus.Bus
	logger *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// New creates a socket for the given gateway URL. token may be empty.
func New(url, token string, b *bus.Bus, logger *zap.Logger) *Socket {
	if logger == nil {
		logger = zap.NewNop()
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return &Socket{url: url, header: header, bus: b, logger: logger}
}

// Start runs the dial/read/redial loop until the context is cancelled.
func (s *Socket) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

// Stop tears the connection down and stops redialing.
func (s *Socket) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()
}

// Connected reports whether a live connection is currently held.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Emit sends a named event. While disconnected the emission is dropped
// without error; this is a normal startup state, not a failure.
func (s *Socket) Emit(event string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		s.logger.Debug("emit skipped, not connected", zap.String("event", event))
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("encode event payload", zap.String("event", event), zap.Error(err))
		return
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(Envelope{Event: event, Payload: raw}); err != nil {
		s.logger.Warn("emit failed", zap.String("event", event), zap.Error(err))
	}
}

func (s *Socket) run(ctx context.Context) {
	backoff := minBackoff
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, s.header)
		if err != nil {
			s.logger.Warn("dial failed", zap.String("url", s.url), zap.Error(err))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		s.logger.Info("socket connected", zap.String("url", s.url))
		s.bus.Publish(bus.TransportConnected, nil)

		s.readLoop(ctx, conn)

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		s.bus.Publish(bus.TransportDisconnected, nil)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// readLoop pumps inbound envelopes onto the bus until the connection dies.
func (s *Socket) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go s.pingLoop(ctx, conn, pingDone)

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("socket closed", zap.Error(err))
			}
			return
		}
		if env.Event == "" {
			continue
		}

		payload, err := decodePayload(env.Event, env.Payload)
		if err != nil {
			s.logger.Warn("bad event payload", zap.String("event", env.Event), zap.Error(err))
			continue
		}
		s.bus.Publish("socket."+env.Event, payload)
	}
}

func (s *Socket) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			s.mu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}
