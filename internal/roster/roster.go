// Package roster maintains the admin's conversation list: the searchable
// roster of visitor sessions an admin picks from.
package roster

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
	"github.com/Nexta12/propertify-client-sub000/internal/bus"
)

// Roster holds the conversation list and the in-flight fetch that produced
// it. A new search cancels the previous fetch so a slow stale response can
// never overwrite fresher results.
type Roster struct {
	client *api.Client
	bus    *bus.Bus
	logger *zap.Logger

	mu       sync.Mutex
	convs    []api.Conversation
	query    string
	seq      int
	inflight context.CancelFunc
	cancel   context.CancelFunc
}

// New creates a roster backed by the REST client.
func New(client *api.Client, b *bus.Bus, logger *zap.Logger) *Roster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Roster{client: client, bus: b, logger: logger}
}

// Start subscribes to new-chat announcements from the transport.
func (r *Roster) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	ch, unsub := r.bus.Subscribe("socket.", 64)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if evt.Kind != bus.SocketFetchNewChat {
					continue
				}
				if conv, ok := evt.Payload.(*api.Conversation); ok {
					r.ApplyNew(*conv)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the subscription and any in-flight fetch.
func (r *Roster) Stop() {
	r.mu.Lock()
	if r.inflight != nil {
		r.inflight()
	}
	r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// Search fetches the roster filtered by query. Each call supersedes the
// previous one: the prior request is cancelled and its response, should it
// still arrive, is discarded. An empty query returns the full roster.
func (r *Roster) Search(ctx context.Context, query string) {
	r.mu.Lock()
	if r.inflight != nil {
		r.inflight()
	}
	ctx, cancel := context.WithCancel(ctx)
	r.inflight = cancel
	r.seq++
	seq := r.seq
	r.query = query
	r.mu.Unlock()

	go func() {
		defer cancel()
		convs, err := r.client.ListConversations(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return // superseded
			}
			r.logger.Warn("conversation fetch failed", zap.Error(err))
			r.bus.Publish(bus.FlashError, api.Notice(err))
			return
		}

		r.mu.Lock()
		if seq != r.seq {
			r.mu.Unlock()
			return
		}
		r.convs = convs
		r.mu.Unlock()
		r.bus.Publish(bus.RosterUpdated, len(convs))
	}()
}

// Load fetches the unfiltered roster. Equivalent to Search with an empty
// query.
func (r *Roster) Load(ctx context.Context) {
	r.Search(ctx, "")
}

// ApplyNew prepends a freshly started conversation. Already-known ids are
// ignored so a duplicate announcement cannot double an entry.
func (r *Roster) ApplyNew(conv api.Conversation) {
	r.mu.Lock()
	for _, c := range r.convs {
		if c.ID == conv.ID {
			r.mu.Unlock()
			return
		}
	}
	r.convs = append([]api.Conversation{conv}, r.convs...)
	n := len(r.convs)
	r.mu.Unlock()
	r.bus.Publish(bus.RosterUpdated, n)
}

// Delete removes a conversation record on the server and locally.
func (r *Roster) Delete(ctx context.Context, chatID string) error {
	if err := r.client.DeleteConversation(ctx, chatID); err != nil {
		return err
	}
	r.mu.Lock()
	for i, c := range r.convs {
		if c.ID == chatID {
			r.convs = append(r.convs[:i], r.convs[i+1:]...)
			break
		}
	}
	n := len(r.convs)
	r.mu.Unlock()
	r.bus.Publish(bus.RosterUpdated, n)
	return nil
}

// Conversations returns a snapshot of the current list.
func (r *Roster) Conversations() []api.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.Conversation(nil), r.convs...)
}

// Query returns the query the current list was produced for.
func (r *Roster) Query() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.query
}
