package bus

import "time"

// Event kinds are dotted names grouped by namespace. The "socket." namespace
// mirrors the server's transport event names one-to-one; the remaining
// namespaces are local projections derived from them.
const (
	// Inbound transport events, republished verbatim by the read pump.
	SocketNewMessage      = "socket.newMessage"
	SocketTyping          = "socket.typing"
	SocketStopTyping      = "socket.stopTyping"
	SocketChatStarted     = "socket.chatStarted"
	SocketChatEnded       = "socket.chatEnded"
	SocketNewNotification = "socket.newNotification"
	SocketDeletedNotice   = "socket.deletedNotice"
	SocketFetchNewChat    = "socket.fetchNewChat"

	// Transport lifecycle.
	TransportConnected    = "transport.connected"
	TransportDisconnected = "transport.disconnected"

	// Local state changes consumed by the views.
	ThreadReset   = "thread.reset"
	ThreadUpdated = "thread.updated"
	TypingChanged = "typing.changed"
	NotifyUpdated = "notify.updated"
	RosterUpdated = "roster.updated"
	RoomChanged   = "room.changed"
	RoomEnded     = "room.ended"
	RoomAdmin     = "room.admin"
	OutboxSent    = "outbox.sent"
	OutboxFailed  = "outbox.failed"
	StatusChanged = "session.status_changed"

	// FlashError carries a short user-facing notice string. Transient and
	// non-blocking; nothing listens for acknowledgement.
	FlashError = "flash.error"
)

// Event is a single entry on the bus.
type Event struct {
	Kind    string
	At      time.Time
	Payload any
}
