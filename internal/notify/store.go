// Package notify reconciles notification state from a REST snapshot plus
// incremental socket events. One store holds both projections the UI needs:
// the full record list (dropdown) and the per-type unread counts (sidebar
// badges) — both views read the same store instead of keeping parallel
// subscriptions.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
	"github.com/Nexta12/propertify-client-sub000/internal/bus"
)

// Store is the shared notification state.
type Store struct {
	client *api.Client
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc

	mu      sync.RWMutex
	records []api.NotificationRecord // newest first
	counts  map[string]int           // type -> unread count; absent key == 0
}

// NewStore creates an empty store.
func NewStore(client *api.Client, b *bus.Bus, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, bus: b, logger: logger, counts: make(map[string]int)}
}

// Start subscribes to incremental notification events.
func (s *Store) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	ch, unsub := s.bus.Subscribe("socket.", 128)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				switch evt.Kind {
				case bus.SocketNewNotification:
					if rec, ok := evt.Payload.(*api.NotificationRecord); ok {
						s.ApplyNew(*rec)
					}
				case bus.SocketDeletedNotice:
					if rec, ok := evt.Payload.(*api.NotificationRecord); ok {
						s.ApplyDelete(*rec)
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the store's subscription.
func (s *Store) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Load fetches the full notification list once and reduces it into the
// counts projection. Incremental events keep both projections current from
// then on; the list is never re-fetched. A fetch failure is surfaced as a
// flash notice in addition to being returned.
func (s *Store) Load(ctx context.Context) error {
	recs, err := s.client.ListNotifications(ctx)
	if err != nil {
		s.logger.Warn("notification fetch failed", zap.Error(err))
		s.bus.Publish(bus.FlashError, api.Notice(err))
		return err
	}

	counts := make(map[string]int)
	for _, r := range recs {
		if !r.IsSeen {
			counts[r.Type]++
		}
	}

	s.mu.Lock()
	s.records = recs
	s.counts = counts
	s.mu.Unlock()
	s.bus.Publish(bus.NotifyUpdated, nil)
	return nil
}

// ApplyNew prepends a freshly arrived record. A new notification is unseen
// by construction, so its type's count always increments.
func (s *Store) ApplyNew(rec api.NotificationRecord) {
	s.mu.Lock()
	rec.IsSeen = false
	s.records = append([]api.NotificationRecord{rec}, s.records...)
	s.counts[rec.Type]++
	s.mu.Unlock()
	s.bus.Publish(bus.NotifyUpdated, nil)
}

// MarkSeen flips a record seen server-side and locally. The record stays in
// the list; only the unread count moves. Marking an already-seen record
// again never decrements twice.
func (s *Store) MarkSeen(ctx context.Context, id string) error {
	if err := s.client.MarkNotificationSeen(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	for i := range s.records {
		if s.records[i].ID != id {
			continue
		}
		if !s.records[i].IsSeen {
			s.records[i].IsSeen = true
			s.decrement(s.records[i].Type)
		}
		break
	}
	s.mu.Unlock()
	s.bus.Publish(bus.NotifyUpdated, nil)
	return nil
}

// ApplyDelete removes a record. The count only drops if the record was
// still unseen.
func (s *Store) ApplyDelete(rec api.NotificationRecord) {
	s.mu.Lock()
	found := false
	for i := range s.records {
		if s.records[i].ID == rec.ID {
			if !s.records[i].IsSeen {
				s.decrement(s.records[i].Type)
			}
			s.records = append(s.records[:i], s.records[i+1:]...)
			found = true
			break
		}
	}
	// The record may not be held locally (counts-only startup); fall back
	// to the event's own seen flag.
	if !found && !rec.IsSeen {
		s.decrement(rec.Type)
	}
	s.mu.Unlock()
	s.bus.Publish(bus.NotifyUpdated, nil)
}

// Delete removes a notification server-side and locally.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.DeleteNotification(ctx, id); err != nil {
		return err
	}
	s.ApplyDelete(api.NotificationRecord{ID: id, IsSeen: true})
	return nil
}

// decrement lowers a type's count, floored at zero. Caller holds the lock.
func (s *Store) decrement(typ string) {
	if s.counts[typ] > 0 {
		s.counts[typ]--
	}
}

// Records returns a copy of the full list, newest first.
func (s *Store) Records() []api.NotificationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]api.NotificationRecord(nil), s.records...)
}

// Count returns the unread count for a type; an absent type is zero.
func (s *Store) Count(typ string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[typ]
}

// TotalUnread sums unread counts across all types.
func (s *Store) TotalUnread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, n := range s.counts {
		total += n
	}
	return total
}
