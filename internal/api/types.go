package api

import "github.com/Nexta12/propertify-client-sub000/internal/identity"

// Sender is a point-in-time snapshot of a message author. It is embedded in
// messages at send time and never updated afterwards.
type Sender struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// FullName returns the display name for a sender.
func (s Sender) FullName() string {
	if s.FirstName == "" {
		return s.LastName
	}
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// Delivery states for locally originated messages. Remote and historical
// messages carry an empty status.
const (
	StatusSending = "sending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// ChatMessage is one entry in a conversation. CreatedAt is unix milliseconds;
// zero means the message is synthetic (the welcome greeting) and no relative
// time is rendered for it.
type ChatMessage struct {
	ID         string              `json:"id"`
	ChatID     string              `json:"chatId"`
	SenderType identity.SenderType `json:"senderType"`
	Message    string              `json:"message"`
	Sender     Sender              `json:"sender"`
	CreatedAt  int64               `json:"createdAt,omitempty"`

	// Status is local delivery state, never sent to or read from the server.
	Status string `json:"-"`
}

// ChatSession is the conversation record returned by the chat endpoints.
// Agent is the support/admin user assigned to the conversation.
type ChatSession struct {
	ID        string `json:"id"`
	Visitor   Sender `json:"visitor"`
	Agent     Sender `json:"sender"`
	IsOnline  bool   `json:"isOnline"`
	CreatedAt int64  `json:"createdAt,omitempty"`
}

// NotificationRecord is a single notification. Type is the category tag the
// per-section badge counts are grouped by.
type NotificationRecord struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	IsSeen    bool   `json:"isSeen"`
	CreatedAt int64  `json:"createdAt,omitempty"`
}

// Conversation is an entry in the admin's conversation roster.
type Conversation struct {
	ID          string `json:"id"`
	Visitor     Sender `json:"visitor"`
	LastMessage string `json:"lastMessage"`
	Unread      int    `json:"unread"`
	UpdatedAt   int64  `json:"updatedAt,omitempty"`
}
