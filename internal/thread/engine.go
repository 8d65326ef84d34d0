package thread

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
	"github.com/Nexta12/propertify-client-sub000/internal/bus"
	"github.com/Nexta12/propertify-client-sub000/internal/identity"
)

// Update is the payload published on thread.updated.
type Update struct {
	ChatID string
	MsgID  string
}

// Engine feeds the thread from the bus: socket pushes append incrementally,
// room changes reset the thread and trigger a history load. History loading
// runs concurrently with push handling; the id index makes the race safe,
// whichever source delivers a message first keeps its position.
type Engine struct {
	client *api.Client
	bus    *bus.Bus
	thread *Thread
	me     identity.Identity
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewEngine creates an engine over the given thread.
func NewEngine(client *api.Client, b *bus.Bus, th *Thread, me identity.Identity, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{client: client, bus: b, thread: th, me: me, logger: logger}
}

// Start subscribes to socket pushes and room lifecycle events.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	msgCh, unsubMsg := e.bus.Subscribe(bus.SocketNewMessage, 256)
	roomCh, unsubRoom := e.bus.Subscribe("room.", 16)

	go func() {
		defer unsubMsg()
		defer unsubRoom()
		for {
			select {
			case evt := <-msgCh:
				e.handlePush(evt)
			case evt := <-roomCh:
				e.handleRoom(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handlePush(evt bus.Event) {
	msg, ok := evt.Payload.(*api.ChatMessage)
	if !ok {
		return
	}
	// Duplicate delivery (the sender's own echo included) is a no-op here.
	if e.thread.Append(*msg) {
		e.bus.Publish(bus.ThreadUpdated, &Update{ChatID: msg.ChatID, MsgID: msg.ID})
	}
}

func (e *Engine) handleRoom(ctx context.Context, evt bus.Event) {
	chatID, ok := evt.Payload.(string)
	if !ok {
		return
	}
	switch evt.Kind {
	case bus.RoomChanged:
		e.thread.Reset(chatID)
		e.bus.Publish(bus.ThreadReset, chatID)
		// Load in the background so pushes keep flowing while the fetch is
		// in flight.
		go func() {
			if err := e.LoadHistory(ctx, chatID); err != nil {
				e.logger.Error("load history", zap.String("chat_id", chatID), zap.Error(err))
				e.bus.Publish(bus.FlashError, api.Notice(err))
			}
		}()
	case bus.RoomEnded:
		e.thread.Reset("")
		e.bus.Publish(bus.ThreadReset, "")
	}
}

// LoadHistory seeds the thread with the conversation's REST history. For a
// visitor whose history is empty (a first-ever session) the list is prefixed
// with the synthetic welcome greeting built from the assigned agent's name.
func (e *Engine) LoadHistory(ctx context.Context, chatID string) error {
	msgs, err := e.client.ListMessages(ctx, chatID)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}

	if e.me.Role == identity.RoleVisitor && len(msgs) == 0 {
		session, err := e.client.GetChat(ctx, chatID)
		if err != nil {
			return fmt.Errorf("fetch chat: %w", err)
		}
		msgs = append([]api.ChatMessage{Welcome(chatID, session.Agent.FirstName)}, msgs...)
	}

	if e.thread.Seed(msgs) > 0 {
		e.bus.Publish(bus.ThreadUpdated, &Update{ChatID: chatID})
	}
	return nil
}
