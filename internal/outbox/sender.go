// Package outbox implements the optimistic send pipeline: a queued message
// is rendered immediately, persisted, delivered over REST, then confirmed
// or failed in place.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
	"github.com/Nexta12/propertify-client-sub000/internal/bus"
	"github.com/Nexta12/propertify-client-sub000/internal/identity"
	"github.com/Nexta12/propertify-client-sub000/internal/store"
	"github.com/Nexta12/propertify-client-sub000/internal/thread"
	"github.com/Nexta12/propertify-client-sub000/internal/transport"
	"github.com/Nexta12/propertify-client-sub000/internal/typing"
)

// DefaultInterval is how often the drain loop looks for queued messages.
const DefaultInterval = 500 * time.Millisecond

// Sender drains the persistent outbox. Queue renders and persists the
// message synchronously; delivery happens on the drain loop so a dead
// network never blocks the composer.
type Sender struct {
	client   *api.Client
	db       *store.DB
	thread   *thread.Thread
	bus      *bus.Bus
	emitter  transport.Emitter
	notifier *typing.Notifier
	tracker  *typing.Tracker
	id       *identity.Identity
	logger   *zap.Logger

	Interval time.Duration

	wake   chan struct{}
	cancel context.CancelFunc
}

// NewSender creates a sender. Notifier and tracker may be nil when typing
// signals are not wired (chatctl).
func NewSender(client *api.Client, db *store.DB, th *thread.Thread, b *bus.Bus,
	e transport.Emitter, n *typing.Notifier, tr *typing.Tracker,
	id *identity.Identity, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		client:   client,
		db:       db,
		thread:   th,
		bus:      b,
		emitter:  e,
		notifier: n,
		tracker:  tr,
		id:       id,
		logger:   logger,
		Interval: DefaultInterval,
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the drain loop.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

// Stop stops the drain loop. Queued messages stay in the store and are
// picked up on the next start.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Queue stages a message for delivery. The message is appended to the
// thread and persisted before this returns, so the composer can clear
// immediately. Sending also ends the local typing signal.
func (s *Sender) Queue(chatID, text string) (string, error) {
	if s.notifier != nil {
		s.notifier.Stop()
	}
	if s.tracker != nil {
		s.tracker.ClearLocal()
	}

	msg := api.ChatMessage{
		ID:         uuid.NewString(),
		ChatID:     chatID,
		SenderType: identity.ClassifySender(s.id),
		Message:    text,
		CreatedAt:  time.Now().UnixMilli(),
		Status:     api.StatusSending,
	}
	if s.id != nil {
		msg.Sender = api.Sender{ID: s.id.ID, FirstName: s.id.FirstName, LastName: s.id.LastName}
	}

	if err := s.db.QueueOutbox(msg.ID, chatID, text); err != nil {
		return "", err
	}
	s.thread.Append(msg)
	s.bus.Publish(bus.ThreadUpdated, &thread.Update{ChatID: chatID, MsgID: msg.ID})

	// Nudge the loop so the happy path does not wait for the tick.
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return msg.ID, nil
}

// Retry re-queues a failed message for another delivery attempt.
func (s *Sender) Retry(clientMsgID string) error {
	if err := s.db.RetryOutbox(clientMsgID); err != nil {
		return err
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *Sender) run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.drain(ctx)
		case <-s.wake:
			s.drain(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) drain(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}
	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		s.deliver(ctx, entry)
	}
}

func (s *Sender) deliver(ctx context.Context, entry store.OutboxEntry) {
	if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
		s.logger.Error("failed to mark sending", zap.Error(err))
		return
	}

	msg := api.ChatMessage{
		ID:         entry.ClientMsgID,
		ChatID:     entry.ChatID,
		SenderType: identity.ClassifySender(s.id),
		Message:    entry.Body,
	}
	if s.id != nil {
		msg.Sender = api.Sender{ID: s.id.ID, FirstName: s.id.FirstName, LastName: s.id.LastName}
	}

	saved, err := s.client.SendMessage(ctx, msg)
	if err != nil {
		s.logger.Warn("send failed",
			zap.String("client_msg_id", entry.ClientMsgID),
			zap.Error(err))
		if dbErr := s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error()); dbErr != nil {
			s.logger.Error("failed to mark failed", zap.Error(dbErr))
		}
		s.thread.MarkFailed(entry.ClientMsgID)
		s.bus.Publish(bus.OutboxFailed, entry.ClientMsgID)
		s.bus.Publish(bus.ThreadUpdated, &thread.Update{ChatID: entry.ChatID, MsgID: entry.ClientMsgID})
		s.bus.Publish(bus.FlashError, api.Notice(err))
		return
	}

	saved.Status = api.StatusSent
	if err := s.db.MarkOutboxSent(entry.ClientMsgID, saved.ID); err != nil {
		s.logger.Error("failed to mark sent", zap.Error(err))
	}
	s.thread.Confirm(entry.ClientMsgID, *saved)

	// Fan the authoritative record out to the other party. The server only
	// persists on the REST call; this is the realtime echo.
	event := transport.EventVisitorReply
	if s.id != nil && s.id.Role == identity.RoleAdmin {
		event = transport.EventAdminReply
	}
	s.emitter.Emit(event, saved)

	s.bus.Publish(bus.OutboxSent, saved.ID)
	s.bus.Publish(bus.ThreadUpdated, &thread.Update{ChatID: entry.ChatID, MsgID: saved.ID})
}
