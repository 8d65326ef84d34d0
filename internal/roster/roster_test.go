package roster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
	"github.com/Nexta12/propertify-client-sub000/internal/bus"
)

func conv(id, name string) api.Conversation {
	return api.Conversation{ID: id, Visitor: api.Sender{FirstName: name}}
}

func waitLen(t *testing.T, r *Roster, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(r.Conversations()) == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("roster len = %d, want %d", len(r.Conversations()), n)
}

func TestSearchPopulatesRoster(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q != "smith" {
			t.Errorf("query = %q, want smith", q)
		}
		_ = json.NewEncoder(w).Encode([]api.Conversation{conv("c1", "John")})
	}))
	defer srv.Close()

	r := New(api.New(srv.URL, ""), bus.New(), nil)
	r.Search(context.Background(), "smith")
	waitLen(t, r, 1)

	if got := r.Conversations()[0].ID; got != "c1" {
		t.Errorf("first conversation = %q, want c1", got)
	}
	if r.Query() != "smith" {
		t.Errorf("Query = %q, want smith", r.Query())
	}
}

// A superseded search must not clobber the newer one's results, even when
// its response lands later.
func TestStaleSearchDiscarded(t *testing.T) {
	slow := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "slow" {
			select {
			case <-slow:
			case <-r.Context().Done():
				return
			}
			_ = json.NewEncoder(w).Encode([]api.Conversation{conv("stale", "Old")})
			return
		}
		_ = json.NewEncoder(w).Encode([]api.Conversation{conv("fresh", "New")})
	}))
	defer srv.Close()

	r := New(api.New(srv.URL, ""), bus.New(), nil)
	r.Search(context.Background(), "slow")
	time.Sleep(50 * time.Millisecond)
	r.Search(context.Background(), "fast")
	waitLen(t, r, 1)
	close(slow)
	time.Sleep(100 * time.Millisecond)

	convs := r.Conversations()
	if len(convs) != 1 || convs[0].ID != "fresh" {
		t.Fatalf("roster = %v, want the fresh result only", convs)
	}
}

func TestApplyNewPrependsOnce(t *testing.T) {
	b := bus.New()
	r := New(nil, b, nil)
	r.ApplyNew(conv("c1", "John"))

	updated, unsub := b.Subscribe("roster.", 10)
	defer unsub()

	r.ApplyNew(conv("c2", "Jane"))
	select {
	case <-updated:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for roster.updated")
	}

	convs := r.Conversations()
	if len(convs) != 2 || convs[0].ID != "c2" {
		t.Fatalf("roster = %v, want c2 prepended", convs)
	}

	r.ApplyNew(conv("c2", "Jane"))
	if got := len(r.Conversations()); got != 2 {
		t.Errorf("duplicate announcement grew roster to %d", got)
	}
}

func TestBusDrivenNewChat(t *testing.T) {
	b := bus.New()
	r := New(nil, b, nil)
	r.Start(context.Background())
	defer r.Stop()

	c := conv("c1", "John")
	b.Publish(bus.SocketFetchNewChat, &c)
	waitLen(t, r, 1)
}

func TestDeleteRemovesLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
	}))
	defer srv.Close()

	r := New(api.New(srv.URL, ""), bus.New(), nil)
	r.ApplyNew(conv("c1", "John"))
	r.ApplyNew(conv("c2", "Jane"))

	if err := r.Delete(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	convs := r.Conversations()
	if len(convs) != 1 || convs[0].ID != "c2" {
		t.Fatalf("roster = %v, want only c2", convs)
	}
}
