package outbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
	"github.com/Nexta12/propertify-client-sub000/internal/bus"
	"github.com/Nexta12/propertify-client-sub000/internal/identity"
	"github.com/Nexta12/propertify-client-sub000/internal/store"
	"github.com/Nexta12/propertify-client-sub000/internal/thread"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEmitter) Emit(event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) emitted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	return db
}

func newSender(t *testing.T, baseURL string, id *identity.Identity) (*Sender, *thread.Thread, *recordingEmitter, *bus.Bus) {
	t.Helper()
	th := thread.New()
	th.Reset("abc")
	b := bus.New()
	em := &recordingEmitter{}
	s := NewSender(api.New(baseURL, ""), testDB(t), th, b, em, nil, nil, id, nil)
	s.Interval = 20 * time.Millisecond
	return s, th, em, b
}

func waitStatus(t *testing.T, th *thread.Thread, id, status string) api.ChatMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, m := range th.Messages() {
			if m.ID == id && m.Status == status {
				return m
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no message %q with status %q; thread: %v", id, status, th.Messages())
	return api.ChatMessage{}
}

func TestQueueRendersImmediately(t *testing.T) {
	s, th, _, b := newSender(t, "http://127.0.0.1:1", &identity.Identity{Role: identity.RoleVisitor})
	updates, unsub := b.Subscribe("thread.updated", 10)
	defer unsub()

	localID, err := s.Queue("abc", "hello")
	if err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-updates:
		if up, ok := evt.Payload.(*thread.Update); !ok || up.MsgID != localID {
			t.Errorf("payload = %#v, want *thread.Update for %q", evt.Payload, localID)
		}
	case <-time.After(time.Second):
		t.Fatal("no thread.updated for optimistic append")
	}
	msgs := th.Messages()
	if len(msgs) != 1 {
		t.Fatalf("thread len = %d, want 1 before any delivery", len(msgs))
	}
	if msgs[0].ID != localID || msgs[0].Status != api.StatusSending {
		t.Errorf("optimistic entry = %+v", msgs[0])
	}
	if msgs[0].SenderType != identity.SenderVisitor {
		t.Errorf("senderType = %q, want visitor", msgs[0].SenderType)
	}
}

func TestDeliveryConfirmsAndEchoes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg api.ChatMessage
		_ = json.NewDecoder(r.Body).Decode(&msg)
		msg.ID = "srv-1"
		msg.CreatedAt = 1700000000000
		_ = json.NewEncoder(w).Encode(&msg)
	}))
	defer srv.Close()

	s, th, em, _ := newSender(t, srv.URL, &identity.Identity{ID: "v1", Role: identity.RoleVisitor})
	s.Start(context.Background())
	defer s.Stop()

	localID, err := s.Queue("abc", "hello")
	if err != nil {
		t.Fatal(err)
	}

	sent := waitStatus(t, th, "srv-1", api.StatusSent)
	if sent.CreatedAt != 1700000000000 {
		t.Errorf("confirmed message lost server fields: %+v", sent)
	}
	if th.Len() != 1 {
		t.Errorf("thread len = %d, want 1 after confirm", th.Len())
	}
	for _, m := range th.Messages() {
		if m.ID == localID {
			t.Errorf("optimistic id %q still present after confirm", localID)
		}
	}

	events := em.emitted()
	if len(events) != 1 || events[0] != "visitorReply" {
		t.Errorf("emitted %v, want [visitorReply]", events)
	}
}

func TestAdminEchoUsesAdminReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg api.ChatMessage
		_ = json.NewDecoder(r.Body).Decode(&msg)
		msg.ID = "srv-1"
		_ = json.NewEncoder(w).Encode(&msg)
	}))
	defer srv.Close()

	s, th, em, _ := newSender(t, srv.URL, &identity.Identity{ID: "a1", Role: identity.RoleAdmin})
	s.Start(context.Background())
	defer s.Stop()

	if _, err := s.Queue("abc", "hi"); err != nil {
		t.Fatal(err)
	}
	waitStatus(t, th, "srv-1", api.StatusSent)

	events := em.emitted()
	if len(events) != 1 || events[0] != "adminReply" {
		t.Errorf("emitted %v, want [adminReply]", events)
	}
}

func TestFailedSendStaysVisible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream unavailable"}`))
	}))
	defer srv.Close()

	s, th, em, b := newSender(t, srv.URL, &identity.Identity{Role: identity.RoleVisitor})
	flash, unsub := b.Subscribe("flash.", 10)
	defer unsub()
	s.Start(context.Background())
	defer s.Stop()

	localID, err := s.Queue("abc", "hello")
	if err != nil {
		t.Fatal(err)
	}

	waitStatus(t, th, localID, api.StatusFailed)
	if got := em.emitted(); len(got) != 0 {
		t.Errorf("failed send still echoed %v", got)
	}
	select {
	case evt := <-flash:
		if notice, _ := evt.Payload.(string); notice != "upstream unavailable" {
			t.Errorf("flash = %q, want server message", notice)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no flash for failed send")
	}
}

func TestRetryRedelivers(t *testing.T) {
	var fail = true
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		shouldFail := fail
		mu.Unlock()
		if shouldFail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var msg api.ChatMessage
		_ = json.NewDecoder(r.Body).Decode(&msg)
		msg.ID = "srv-1"
		_ = json.NewEncoder(w).Encode(&msg)
	}))
	defer srv.Close()

	s, th, _, _ := newSender(t, srv.URL, &identity.Identity{Role: identity.RoleVisitor})
	s.Start(context.Background())
	defer s.Stop()

	localID, err := s.Queue("abc", "hello")
	if err != nil {
		t.Fatal(err)
	}
	waitStatus(t, th, localID, api.StatusFailed)

	mu.Lock()
	fail = false
	mu.Unlock()
	if err := s.Retry(localID); err != nil {
		t.Fatal(err)
	}
	waitStatus(t, th, "srv-1", api.StatusSent)
}
