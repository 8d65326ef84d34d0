package typing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
	"github.com/Nexta12/propertify-client-sub000/internal/bus"
	"github.com/Nexta12/propertify-client-sub000/internal/transport"
)

// recordingEmitter captures emitted events for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEmitter) Emit(event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func newNotifier(delay time.Duration) (*Notifier, *recordingEmitter) {
	rec := &recordingEmitter{}
	n := NewNotifier(rec, api.Sender{ID: "u1", FirstName: "Uche"})
	n.StopDelay = delay
	n.SetChat("abc")
	return n, rec
}

func TestKeystrokesWithinDelayNeverEmitStop(t *testing.T) {
	n, rec := newNotifier(80 * time.Millisecond)

	for i := 0; i < 5; i++ {
		n.Keystroke()
		time.Sleep(20 * time.Millisecond)
	}

	if got := rec.count(transport.EventStopTyping); got != 0 {
		t.Errorf("stopTyping emitted %d times during activity, want 0", got)
	}
	if got := rec.count(transport.EventTyping); got != 5 {
		t.Errorf("typing emitted %d times, want 5 (once per keystroke)", got)
	}
}

func TestStopEmittedOnceAfterInactivity(t *testing.T) {
	n, rec := newNotifier(50 * time.Millisecond)

	n.Keystroke()
	n.Keystroke()
	time.Sleep(150 * time.Millisecond)

	if got := rec.count(transport.EventStopTyping); got != 1 {
		t.Errorf("stopTyping emitted %d times, want exactly 1", got)
	}
}

func TestSendEmitsStopImmediately(t *testing.T) {
	n, rec := newNotifier(time.Hour)

	n.Keystroke()
	n.Stop()

	if got := rec.count(transport.EventStopTyping); got != 1 {
		t.Errorf("stopTyping emitted %d times, want 1 without waiting for the timer", got)
	}

	// The cancelled timer must not fire a second stop.
	time.Sleep(50 * time.Millisecond)
	if got := rec.count(transport.EventStopTyping); got != 1 {
		t.Errorf("stopTyping emitted %d times after Stop, want 1", got)
	}
}

func TestStopWithoutTypingIsSilent(t *testing.T) {
	n, rec := newNotifier(50 * time.Millisecond)
	n.Stop()
	if got := rec.count(transport.EventStopTyping); got != 0 {
		t.Errorf("stopTyping emitted %d times with no prior typing, want 0", got)
	}
}

func TestKeystrokeWithoutRoomIsNoop(t *testing.T) {
	rec := &recordingEmitter{}
	n := NewNotifier(rec, api.Sender{ID: "u1"})
	n.Keystroke()
	if len(rec.events) != 0 {
		t.Errorf("events = %v, want none without a chat id", rec.events)
	}
}

func TestSetChatCancelsPendingStop(t *testing.T) {
	n, rec := newNotifier(50 * time.Millisecond)
	n.Keystroke()
	n.SetChat("other")

	time.Sleep(120 * time.Millisecond)
	if got := rec.count(transport.EventStopTyping); got != 0 {
		t.Errorf("stopTyping fired for an abandoned conversation (%d times)", got)
	}
}

func TestTrackerLastEventWins(t *testing.T) {
	b := bus.New()
	tr := NewTracker(b)
	tr.SetChat("abc")
	tr.Start(context.Background())
	defer tr.Stop()

	b.Publish(bus.SocketTyping, &transport.TypingPayload{ChatID: "abc", User: api.Sender{ID: "u1", FirstName: "Ada"}})
	waitFor(t, func() bool {
		a := tr.Actor()
		return a != nil && a.ID == "u1"
	})

	b.Publish(bus.SocketTyping, &transport.TypingPayload{ChatID: "abc", User: api.Sender{ID: "u2", FirstName: "Bola"}})
	waitFor(t, func() bool {
		a := tr.Actor()
		return a != nil && a.ID == "u2"
	})

	b.Publish(bus.SocketStopTyping, &transport.TypingPayload{ChatID: "abc"})
	waitFor(t, func() bool { return tr.Actor() == nil })
}

func TestTrackerIgnoresOtherRooms(t *testing.T) {
	b := bus.New()
	tr := NewTracker(b)
	tr.SetChat("abc")
	tr.Start(context.Background())
	defer tr.Stop()

	b.Publish(bus.SocketTyping, &transport.TypingPayload{ChatID: "other", User: api.Sender{ID: "u9"}})
	time.Sleep(100 * time.Millisecond)
	if tr.Actor() != nil {
		t.Error("typing actor set from another room")
	}
}

func TestTrackerPresence(t *testing.T) {
	b := bus.New()
	tr := NewTracker(b)
	tr.SetChat("abc")
	tr.Start(context.Background())
	defer tr.Stop()

	if tr.Online() {
		t.Error("online before any presence event")
	}

	b.Publish(bus.SocketChatStarted, &transport.ChatStartedPayload{FullName: "Ada Okafor"})
	waitFor(t, func() bool { return tr.Online() })

	b.Publish(bus.SocketChatEnded, &transport.ChatEndedPayload{SelectedChat: "abc"})
	waitFor(t, func() bool { return !tr.Online() })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never satisfied")
}
