// Package thread maintains the ordered, de-duplicated message list for the
// active conversation, merged from REST history, optimistic local sends and
// socket pushes.
package thread

import (
	"fmt"
	"sync"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
	"github.com/Nexta12/propertify-client-sub000/internal/identity"
)

// WelcomeID is the synthetic id of the one-time greeting message. It is
// never persisted server-side.
const WelcomeID = "welcome"

// Thread is the in-memory message list for one conversation. Insertion
// order is preserved; duplicate ids collapse to the earliest-inserted entry.
type Thread struct {
	mu       sync.RWMutex
	chatID   string
	messages []api.ChatMessage
	index    map[string]int // id -> position in messages
}

// New creates an empty thread with no active conversation.
func New() *Thread {
	return &Thread{index: make(map[string]int)}
}

// Reset drops all messages and switches the thread to a new conversation.
// An empty chatID leaves the thread without an active conversation, in which
// case all appends are rejected.
func (t *Thread) Reset(chatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chatID = chatID
	t.messages = nil
	t.index = make(map[string]int)
}

// ChatID returns the active conversation id, or "" when none.
func (t *Thread) ChatID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.chatID
}

// Append adds a message if its id is not already present. It reports whether
// the message was inserted; a duplicate arrival is a no-op and keeps the
// earliest-inserted position. Messages for a different conversation than the
// active one are rejected.
func (t *Thread) Append(msg api.ChatMessage) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.append(msg)
}

func (t *Thread) append(msg api.ChatMessage) bool {
	if t.chatID == "" || (msg.ChatID != "" && msg.ChatID != t.chatID) {
		return false
	}
	if _, dup := t.index[msg.ID]; dup {
		return false
	}
	t.index[msg.ID] = len(t.messages)
	t.messages = append(t.messages, msg)
	return true
}

// Seed merges a batch (typically the REST history) into the thread,
// skipping ids that already arrived from the socket. Whichever source
// delivered an id first keeps its position. Returns how many entries were
// inserted.
func (t *Thread) Seed(msgs []api.ChatMessage) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	added := 0
	for _, m := range msgs {
		if t.append(m) {
			added++
		}
	}
	return added
}

// Confirm replaces the optimistic entry keyed by localID with the
// authoritative server record, in place. The entry keeps its insertion
// position; the index is re-keyed so a later socket echo of the server id
// is dropped as a duplicate.
func (t *Thread) Confirm(localID string, saved api.ChatMessage) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	pos, ok := t.index[localID]
	if !ok {
		return false
	}
	if _, dup := t.index[saved.ID]; dup && saved.ID != localID {
		// The socket echo already landed under the server id; the optimistic
		// entry is now the duplicate and is removed.
		t.removeAt(pos)
		return true
	}
	delete(t.index, localID)
	saved.Status = api.StatusSent
	t.messages[pos] = saved
	t.index[saved.ID] = pos
	return true
}

func (t *Thread) removeAt(pos int) {
	delete(t.index, t.messages[pos].ID)
	t.messages = append(t.messages[:pos], t.messages[pos+1:]...)
	for i := pos; i < len(t.messages); i++ {
		t.index[t.messages[i].ID] = i
	}
}

// MarkFailed tags an optimistic entry as failed so the view can offer a
// retry. The message stays in the list; there is no automatic rollback.
func (t *Thread) MarkFailed(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	pos, ok := t.index[id]
	if !ok {
		return false
	}
	t.messages[pos].Status = api.StatusFailed
	return true
}

// Messages returns a copy of the current list in insertion order.
func (t *Thread) Messages() []api.ChatMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]api.ChatMessage(nil), t.messages...)
}

// Len returns the number of messages.
func (t *Thread) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Welcome builds the synthetic greeting shown at the top of a visitor's
// first conversation. It has no timestamp, so no relative time is rendered.
func Welcome(chatID, agentFirstName string) api.ChatMessage {
	name := agentFirstName
	if name == "" {
		name = "our team"
	}
	return api.ChatMessage{
		ID:         WelcomeID,
		ChatID:     chatID,
		SenderType: identity.SenderAdmin,
		Message:    fmt.Sprintf("Hello! You are chatting with %s. How can we help you today?", name),
		Sender:     api.Sender{FirstName: agentFirstName},
	}
}
