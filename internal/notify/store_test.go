package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
	"github.com/Nexta12/propertify-client-sub000/internal/bus"
)

func testServer(t *testing.T, recs []api.NotificationRecord) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var seenCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(recs)
		case http.MethodPatch:
			seenCalls.Add(1)
		case http.MethodDelete:
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &seenCalls
}

func unseen(id string) api.NotificationRecord {
	return api.NotificationRecord{ID: id, Type: "chat", Message: "new chat message"}
}

func TestLoadReducesCounts(t *testing.T) {
	srv, _ := testServer(t, []api.NotificationRecord{
		unseen("n1"),
		unseen("n2"),
		{ID: "n3", Type: "chat", IsSeen: true},
		{ID: "n4", Type: "listing"},
	})

	s := NewStore(api.New(srv.URL, ""), bus.New(), nil)
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := s.Count("chat"); got != 2 {
		t.Errorf("Count(chat) = %d, want 2", got)
	}
	if got := s.Count("listing"); got != 1 {
		t.Errorf("Count(listing) = %d, want 1", got)
	}
	if got := s.Count("unknown"); got != 0 {
		t.Errorf("Count(unknown) = %d, want 0 for absent type", got)
	}
	if got := s.TotalUnread(); got != 3 {
		t.Errorf("TotalUnread() = %d, want 3", got)
	}
	if got := len(s.Records()); got != 4 {
		t.Errorf("Records() len = %d, want 4", got)
	}
}

// Full lifecycle: 3 unseen -> push arrives -> 4 -> one marked seen -> 3 ->
// a still-unseen one deleted remotely -> 2.
func TestNotificationLifecycle(t *testing.T) {
	srv, _ := testServer(t, []api.NotificationRecord{
		unseen("n1"), unseen("n2"), unseen("n3"),
	})

	s := NewStore(api.New(srv.URL, ""), bus.New(), nil)
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := s.Count("chat"); got != 3 {
		t.Fatalf("after load: Count = %d, want 3", got)
	}

	s.ApplyNew(unseen("n4"))
	if got := s.Count("chat"); got != 4 {
		t.Errorf("after new: Count = %d, want 4", got)
	}
	if recs := s.Records(); recs[0].ID != "n4" {
		t.Errorf("new record not prepended: %v", recs[0])
	}

	if err := s.MarkSeen(context.Background(), "n1"); err != nil {
		t.Fatal(err)
	}
	if got := s.Count("chat"); got != 3 {
		t.Errorf("after seen: Count = %d, want 3", got)
	}
	if got := len(s.Records()); got != 4 {
		t.Errorf("seen record was removed; len = %d, want 4", got)
	}

	s.ApplyDelete(unseen("n2"))
	if got := s.Count("chat"); got != 2 {
		t.Errorf("after delete: Count = %d, want 2", got)
	}
	if got := len(s.Records()); got != 3 {
		t.Errorf("deleted record still held; len = %d, want 3", got)
	}
}

// Repeatedly marking the same record seen must never push a count negative.
func TestCountFloor(t *testing.T) {
	srv, seenCalls := testServer(t, []api.NotificationRecord{unseen("n1")})

	s := NewStore(api.New(srv.URL, ""), bus.New(), nil)
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := s.MarkSeen(context.Background(), "n1"); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.Count("chat"); got != 0 {
		t.Errorf("Count = %d, want 0 (floored)", got)
	}
	if seenCalls.Load() != 3 {
		t.Errorf("server calls = %d, want 3", seenCalls.Load())
	}

	// Deleting an unheld, unseen record with a zero count stays at zero.
	s.ApplyDelete(unseen("ghost"))
	if got := s.Count("chat"); got != 0 {
		t.Errorf("Count = %d, want 0 after ghost delete", got)
	}
}

// A failed initial fetch must not be silent: the user sees a flash notice.
func TestLoadFailureFlashes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"notifications unavailable"}`))
	}))
	defer srv.Close()

	b := bus.New()
	flash, unsub := b.Subscribe("flash.", 10)
	defer unsub()

	s := NewStore(api.New(srv.URL, ""), b, nil)
	if err := s.Load(context.Background()); err == nil {
		t.Fatal("Load returned nil for a failing server")
	}

	select {
	case evt := <-flash:
		if notice, _ := evt.Payload.(string); notice != "notifications unavailable" {
			t.Errorf("flash = %q, want server message", notice)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no flash for failed load")
	}
	if got := s.TotalUnread(); got != 0 {
		t.Errorf("TotalUnread = %d after failed load, want 0", got)
	}
}

func TestBusDrivenUpdates(t *testing.T) {
	b := bus.New()
	s := NewStore(nil, b, nil)
	s.Start(context.Background())
	defer s.Stop()

	updated, unsub := b.Subscribe("notify.", 10)
	defer unsub()

	rec := unseen("n1")
	b.Publish(bus.SocketNewNotification, &rec)

	select {
	case <-updated:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notify.updated")
	}
	if got := s.Count("chat"); got != 1 {
		t.Errorf("Count = %d, want 1", got)
	}

	b.Publish(bus.SocketDeletedNotice, &rec)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && s.Count("chat") != 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if got := s.Count("chat"); got != 0 {
		t.Errorf("Count = %d, want 0 after remote delete", got)
	}
}
