package typing

import (
	"sync"
	"time"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
	"github.com/Nexta12/propertify-client-sub000/internal/transport"
)

// DefaultStopDelay is how long after the last keystroke the stopTyping
// signal fires.
const DefaultStopDelay = 2 * time.Second

// Notifier emits the local user's typing state. Every keystroke emits a
// typing event immediately; stopTyping fires on the trailing edge, only
// after StopDelay of inactivity. A send cancels the timer and emits
// stopTyping at once.
type Notifier struct {
	emitter   transport.Emitter
	user      api.Sender
	StopDelay time.Duration

	mu     sync.Mutex
	chatID string
	timer  *time.Timer
	typing bool
}

// NewNotifier creates a notifier for the local user.
func NewNotifier(e transport.Emitter, user api.Sender) *Notifier {
	return &Notifier{emitter: e, user: user, StopDelay: DefaultStopDelay}
}

// SetChat retargets the notifier to a new room. Any pending stop timer is
// cancelled so it cannot fire for a conversation the user already left.
func (n *Notifier) SetChat(chatID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelTimer()
	n.chatID = chatID
	n.typing = false
}

// Keystroke is called on every composer keystroke. Without an active room
// it is a no-op.
func (n *Notifier) Keystroke() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.chatID == "" {
		return
	}

	n.typing = true
	n.emitter.Emit(transport.EventTyping, transport.TypingPayload{ChatID: n.chatID, User: n.user})

	// Trailing-edge debounce: each keystroke restarts the inactivity timer.
	n.cancelTimer()
	n.timer = time.AfterFunc(n.StopDelay, n.timerFired)
}

func (n *Notifier) timerFired() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.typing {
		return
	}
	n.typing = false
	n.timer = nil
	n.emitter.Emit(transport.EventStopTyping, transport.TypingPayload{ChatID: n.chatID, User: n.user})
}

// Stop cancels any pending timer and, if a typing event was outstanding,
// emits stopTyping immediately. Called on send and on teardown.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelTimer()
	if !n.typing {
		return
	}
	n.typing = false
	n.emitter.Emit(transport.EventStopTyping, transport.TypingPayload{ChatID: n.chatID, User: n.user})
}

func (n *Notifier) cancelTimer() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}
