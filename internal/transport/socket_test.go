package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
	"github.com/Nexta12/propertify-client-sub000/internal/bus"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// testGateway is a minimal socket server that records received envelopes and
// can push envelopes to the connected client.
type testGateway struct {
	t        *testing.T
	mu       sync.Mutex
	conn     *websocket.Conn
	received []Envelope
	connUp   chan struct{}
}

func newTestGateway(t *testing.T) (*testGateway, string) {
	g := &testGateway{t: t, connUp: make(chan struct{}, 1)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		g.mu.Lock()
		g.conn = conn
		g.mu.Unlock()
		g.connUp <- struct{}{}
		for {
			var env Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			g.mu.Lock()
			g.received = append(g.received, env)
			g.mu.Unlock()
		}
	}))
	t.Cleanup(srv.Close)
	return g, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (g *testGateway) push(event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		g.t.Fatal(err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.conn.WriteJSON(Envelope{Event: event, Payload: raw}); err != nil {
		g.t.Fatal(err)
	}
}

func (g *testGateway) envelopes() []Envelope {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Envelope(nil), g.received...)
}

func TestEmitSkippedWhileDisconnected(t *testing.T) {
	b := bus.New()
	s := New("ws://127.0.0.1:1/never", "", b, nil)

	// Must not panic, block or error.
	s.Emit(EventJoinChat, JoinChatPayload{ChatID: "abc"})
	if s.Connected() {
		t.Error("Connected() = true without a connection")
	}
}

func TestInboundEventFanOut(t *testing.T) {
	g, url := newTestGateway(t)
	b := bus.New()

	ch, unsub := b.Subscribe("socket.newMessage", 10)
	defer unsub()
	connCh, unsubConn := b.Subscribe("transport.connected", 1)
	defer unsubConn()

	s := New(url, "", b, nil)
	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-connCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for transport.connected")
	}
	<-g.connUp

	g.push(EventNewMessage, api.ChatMessage{ID: "m1", ChatID: "abc", Message: "hi"})

	select {
	case evt := <-ch:
		msg, ok := evt.Payload.(*api.ChatMessage)
		if !ok {
			t.Fatalf("payload type = %T, want *api.ChatMessage", evt.Payload)
		}
		if msg.ID != "m1" || msg.ChatID != "abc" {
			t.Errorf("msg = %+v, want m1/abc", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for fan-out")
	}
}

func TestEmitReachesServer(t *testing.T) {
	g, url := newTestGateway(t)
	b := bus.New()
	connCh, unsubConn := b.Subscribe("transport.connected", 1)
	defer unsubConn()

	s := New(url, "", b, nil)
	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-connCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for connection")
	}
	<-g.connUp

	s.Emit(EventJoinChat, JoinChatPayload{ChatID: "abc123"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, env := range g.envelopes() {
			if env.Event == EventJoinChat {
				var p JoinChatPayload
				if err := json.Unmarshal(env.Payload, &p); err != nil {
					t.Fatal(err)
				}
				if p.ChatID != "abc123" {
					t.Errorf("chatId = %q, want abc123", p.ChatID)
				}
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("joinChat never reached the server")
}

func TestDecodePayloadTyped(t *testing.T) {
	raw := json.RawMessage(`{"chatId":"abc","user":{"id":"u1","firstName":"Ada"}}`)
	v, err := decodePayload(EventTyping, raw)
	if err != nil {
		t.Fatal(err)
	}
	p, ok := v.(*TypingPayload)
	if !ok {
		t.Fatalf("type = %T, want *TypingPayload", v)
	}
	if p.ChatID != "abc" || p.User.FirstName != "Ada" {
		t.Errorf("payload = %+v", p)
	}

	// Unknown events pass raw JSON through.
	v, err = decodePayload("somethingElse", json.RawMessage(`{"x":1}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.(json.RawMessage); !ok {
		t.Errorf("unknown event type = %T, want json.RawMessage", v)
	}
}
