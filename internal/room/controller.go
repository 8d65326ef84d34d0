// Package room binds the client to exactly one server-side chat room for
// the lifetime of the active chat id.
package room

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
	"github.com/Nexta12/propertify-client-sub000/internal/bus"
	"github.com/Nexta12/propertify-client-sub000/internal/identity"
	"github.com/Nexta12/propertify-client-sub000/internal/store"
	"github.com/Nexta12/propertify-client-sub000/internal/transport"
)

// Conn is the slice of the socket the controller needs.
type Conn interface {
	Emit(event string, payload any)
	Connected() bool
}

// AdminInfo is the display info of the admin currently joined to the room,
// as announced by the server.
type AdminInfo struct {
	FullName   string
	ProfilePic string
}

// Controller owns the active chat id. It re-emits joinChat on every change
// of the id, announces the admin's presence when the admin role selects a
// conversation, and tears the room down on chat end. Joins are fire and
// forget: a join attempted while disconnected is dropped and replayed when
// the transport comes back.
type Controller struct {
	conn   Conn
	db     *store.DB
	bus    *bus.Bus
	id     *identity.Identity
	logger *zap.Logger

	mu     sync.Mutex
	chatID string
	admin  *AdminInfo
	cancel context.CancelFunc
}

// NewController creates a controller. The db may be nil for roles that do
// not persist their chat id.
func NewController(conn Conn, db *store.DB, b *bus.Bus, id *identity.Identity, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{conn: conn, db: db, bus: b, id: id, logger: logger}
}

// Start subscribes to presence and transport lifecycle events.
func (c *Controller) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	sockCh, unsubSock := c.bus.Subscribe("socket.", 64)
	transCh, unsubTrans := c.bus.Subscribe("transport.", 8)

	go func() {
		defer unsubSock()
		defer unsubTrans()
		for {
			select {
			case evt := <-sockCh:
				c.handleSocket(evt)
			case evt := <-transCh:
				if evt.Kind == bus.TransportConnected {
					c.rejoin()
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the controller's subscriptions.
func (c *Controller) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// SetChat switches the active room. Setting the id already active is a
// no-op; any other value, including the first one, emits a fresh joinChat.
// Visitors persist the id so a restart resumes the same conversation.
func (c *Controller) SetChat(chatID string) {
	c.mu.Lock()
	if chatID == c.chatID {
		c.mu.Unlock()
		return
	}
	c.chatID = chatID
	c.admin = nil
	c.mu.Unlock()

	if chatID == "" {
		c.bus.Publish(bus.RoomEnded, "")
		return
	}

	if c.db != nil && c.id.Role != identity.RoleAdmin {
		if err := c.db.SetChatID(chatID); err != nil {
			c.logger.Warn("failed to persist chat id", zap.Error(err))
		}
	}

	c.join(chatID)
	c.bus.Publish(bus.RoomChanged, chatID)
}

// EndChat abandons the active room. The server is told the user went
// offline, local state is cleared synchronously, and nothing waits for an
// acknowledgement.
func (c *Controller) EndChat() {
	c.mu.Lock()
	chatID := c.chatID
	c.chatID = ""
	c.admin = nil
	c.mu.Unlock()

	if chatID == "" {
		return
	}

	c.conn.Emit(transport.EventSetUserOffline, transport.JoinChatPayload{ChatID: chatID})
	if c.db != nil {
		if err := c.db.ClearChatID(); err != nil {
			c.logger.Warn("failed to clear chat id", zap.Error(err))
		}
	}
	c.bus.Publish(bus.RoomEnded, "")
}

// ChatID returns the active chat id, or "" when no chat is active.
func (c *Controller) ChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

// Admin returns the joined admin's display info, or nil when no admin has
// joined the active room.
func (c *Controller) Admin() *AdminInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.admin == nil {
		return nil
	}
	admin := *c.admin
	return &admin
}

func (c *Controller) handleSocket(evt bus.Event) {
	switch evt.Kind {
	case bus.SocketChatStarted:
		p, ok := evt.Payload.(*transport.ChatStartedPayload)
		if !ok {
			return
		}
		c.mu.Lock()
		c.admin = &AdminInfo{FullName: p.FullName, ProfilePic: p.ProfilePic}
		admin := *c.admin
		c.mu.Unlock()
		c.bus.Publish(bus.RoomAdmin, &admin)
	case bus.SocketChatEnded:
		p, ok := evt.Payload.(*transport.ChatEndedPayload)
		if !ok {
			return
		}
		c.mu.Lock()
		// Stale end events for a room we already left are ignored.
		if p.SelectedChat != "" && p.SelectedChat != c.chatID {
			c.mu.Unlock()
			return
		}
		c.admin = nil
		c.mu.Unlock()
		c.bus.Publish(bus.RoomAdmin, (*AdminInfo)(nil))
	}
}

// rejoin replays the join for the active room after a reconnect. Without
// this the server would never re-add the client to the room it was in.
func (c *Controller) rejoin() {
	c.mu.Lock()
	chatID := c.chatID
	c.mu.Unlock()
	if chatID != "" {
		c.join(chatID)
	}
}

func (c *Controller) join(chatID string) {
	if !c.conn.Connected() {
		return
	}
	c.conn.Emit(transport.EventJoinChat, transport.JoinChatPayload{ChatID: chatID})
	if c.id.Role == identity.RoleAdmin {
		c.conn.Emit(transport.EventAdminJoinedChat, transport.AdminJoinedPayload{
			User: api.Sender{
				ID:        c.id.ID,
				FirstName: c.id.FirstName,
				LastName:  c.id.LastName,
			},
			SelectedChat: chatID,
		})
	}
}
