// Package typing tracks who is typing in the active room and emits the
// local user's own typing state without flooding the transport.
package typing

import (
	"context"
	"sync"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
	"github.com/Nexta12/propertify-client-sub000/internal/bus"
	"github.com/Nexta12/propertify-client-sub000/internal/transport"
)

// Tracker derives the single rendered "X is typing" value and the passive
// online flag from the socket event stream. At most one typing actor is
// tracked; the last event wins.
type Tracker struct {
	mu     sync.RWMutex
	chatID string
	actor  *api.Sender
	online bool

	bus    *bus.Bus
	cancel context.CancelFunc
}

// NewTracker creates a tracker bound to the bus.
func NewTracker(b *bus.Bus) *Tracker {
	return &Tracker{bus: b}
}

// Start subscribes to typing and presence events.
func (tr *Tracker) Start(ctx context.Context) {
	ctx, tr.cancel = context.WithCancel(ctx)
	ch, unsub := tr.bus.Subscribe("socket.", 64)
	roomCh, unsubRoom := tr.bus.Subscribe("room.", 16)

	go func() {
		defer unsub()
		defer unsubRoom()
		for {
			select {
			case evt := <-ch:
				tr.handleSocket(evt)
			case evt := <-roomCh:
				if chatID, ok := evt.Payload.(string); ok {
					tr.SetChat(chatID)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the tracker.
func (tr *Tracker) Stop() {
	if tr.cancel != nil {
		tr.cancel()
	}
}

func (tr *Tracker) handleSocket(evt bus.Event) {
	switch evt.Kind {
	case bus.SocketTyping:
		p, ok := evt.Payload.(*transport.TypingPayload)
		if !ok || !tr.inRoom(p.ChatID) {
			return
		}
		tr.mu.Lock()
		user := p.User
		tr.actor = &user
		tr.mu.Unlock()
		tr.bus.Publish(bus.TypingChanged, &user)
	case bus.SocketStopTyping:
		// Only one actor is tracked, so any stop clears it.
		p, ok := evt.Payload.(*transport.TypingPayload)
		if ok && !tr.inRoom(p.ChatID) {
			return
		}
		tr.clearActor()
	case bus.SocketChatStarted:
		tr.setOnline(true)
	case bus.SocketChatEnded:
		tr.setOnline(false)
		tr.clearActor()
	}
}

func (tr *Tracker) inRoom(chatID string) bool {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return chatID == "" || chatID == tr.chatID
}

// SetChat switches the tracked room, clearing any stale actor.
func (tr *Tracker) SetChat(chatID string) {
	tr.mu.Lock()
	tr.chatID = chatID
	tr.actor = nil
	tr.mu.Unlock()
	tr.bus.Publish(bus.TypingChanged, (*api.Sender)(nil))
}

// Actor returns who is typing, or nil when nobody is.
func (tr *Tracker) Actor() *api.Sender {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	if tr.actor == nil {
		return nil
	}
	actor := *tr.actor
	return &actor
}

// Online reports the passive presence flag. It is only ever moved by
// explicit presence events, never inferred from activity.
func (tr *Tracker) Online() bool {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.online
}

// ClearLocal clears the displayed actor immediately. Used when the local
// user sends a message: sending implies typing has ended.
func (tr *Tracker) ClearLocal() {
	tr.clearActor()
}

func (tr *Tracker) clearActor() {
	tr.mu.Lock()
	tr.actor = nil
	tr.mu.Unlock()
	tr.bus.Publish(bus.TypingChanged, (*api.Sender)(nil))
}

func (tr *Tracker) setOnline(v bool) {
	tr.mu.Lock()
	tr.online = v
	tr.mu.Unlock()
}
