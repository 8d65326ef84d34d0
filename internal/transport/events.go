package transport

import (
	"encoding/json"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
)

// Event names on the wire. These match the server's socket event names and
// must not be renamed independently.
const (
	// Inbound.
	EventNewMessage      = "newMessage"
	EventTyping          = "typing"
	EventStopTyping      = "stopTyping"
	EventChatStarted     = "chatStarted"
	EventChatEnded       = "chatEnded"
	EventNewNotification = "newNotification"
	EventDeletedNotice   = "deletedNotice"
	EventFetchNewChat    = "fetchNewChat"

	// Outbound.
	EventJoinChat        = "joinChat"
	EventVisitorReply    = "visitorReply"
	EventAdminReply      = "adminReply"
	EventSetUserOffline  = "setUserOffline"
	EventAdminJoinedChat = "AdminJoinedChat"
)

// Envelope is the wire framing: a named event plus its JSON payload.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// TypingPayload accompanies typing and stopTyping in both directions.
type TypingPayload struct {
	ChatID string     `json:"chatId"`
	User   api.Sender `json:"user"`
}

// ChatStartedPayload carries the display info of the admin who joined.
type ChatStartedPayload struct {
	FullName   string `json:"fullName"`
	ProfilePic string `json:"profilePic"`
}

// ChatEndedPayload identifies which conversation was ended.
type ChatEndedPayload struct {
	SelectedChat string `json:"selectedChat"`
}

// JoinChatPayload binds the client to a room.
type JoinChatPayload struct {
	ChatID string `json:"chatId"`
}

// AdminJoinedPayload announces an admin selecting a conversation.
type AdminJoinedPayload struct {
	User         api.Sender `json:"user"`
	SelectedChat string     `json:"selectedChat"`
}

// decodePayload parses an inbound payload into the typed value for its
// event. Unknown events pass the raw JSON through untouched.
func decodePayload(event string, raw json.RawMessage) (any, error) {
	switch event {
	case EventNewMessage:
		var msg api.ChatMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return &msg, nil
	case EventTyping, EventStopTyping:
		var p TypingPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case EventChatStarted:
		var p ChatStartedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case EventChatEnded:
		var p ChatEndedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case EventNewNotification, EventDeletedNotice:
		var rec api.NotificationRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		return &rec, nil
	case EventFetchNewChat:
		var conv api.Conversation
		if err := json.Unmarshal(raw, &conv); err != nil {
			return nil, err
		}
		return &conv, nil
	default:
		return raw, nil
	}
}
