// Package notify is the live-update channel: lead row changes are
// published to a Redis channel and consumed by notification UIs in near
// real time. The channel may deliver the same underlying change to more
// than one open session, so consumers deduplicate by a derived id.
package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leadforge/crm/internal/pkg/logger"
)

const channel = "crm:lead-events"

// Event kinds published on the channel.
const (
	EventCreated       = "created"
	EventStatusChanged = "status_changed"
	EventConverted     = "converted"
	EventReassigned    = "reassigned"
)

// LeadEvent is one row-level change notification.
type LeadEvent struct {
	ID     string    `json:"id"` // derived, for consumer-side dedup
	Table  string    `json:"table"`
	LeadID string    `json:"lead_id"`
	Event  string    `json:"event"`
	Status string    `json:"status,omitempty"`
	At     time.Time `json:"at"`
}

// DeriveID computes the deduplication id for an event. Two deliveries of
// the same underlying change always derive the same id.
func DeriveID(table, leadID, event string, at time.Time) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", table, leadID, event, at.Unix())))
	return hex.EncodeToString(h[:16])
}

// Hub publishes and subscribes lead events over Redis.
type Hub struct {
	rdb *redis.Client
}

// NewHub creates a hub over the given Redis client.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{rdb: rdb}
}

// Publish emits one lead event. Publish failures are logged and swallowed;
// the live channel is best-effort and never fails the operation that
// triggered it.
func (h *Hub) Publish(ctx context.Context, ev LeadEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if ev.ID == "" {
		ev.ID = DeriveID(ev.Table, ev.LeadID, ev.Event, ev.At)
	}

	data, _ := json.Marshal(ev)
	if err := h.rdb.Publish(ctx, channel, data).Err(); err != nil {
		logger.Warn("notify: publish failed", "event", ev.Event, "error", err)
	}
}

// Subscribe consumes lead events until ctx is canceled, invoking handler
// once per unique event. Redeliveries of an already-seen id are dropped.
func (h *Hub) Subscribe(ctx context.Context, handler func(LeadEvent)) error {
	sub := h.rdb.Subscribe(ctx, channel)
	defer sub.Close()

	seen := newSeenSet(4096)
	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev LeadEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn("notify: dropping malformed event", "error", err)
				continue
			}
			if !seen.add(ev.ID) {
				continue
			}
			handler(ev)
		}
	}
}

// seenSet is a bounded set of recently seen event ids. When full, the
// oldest half is discarded.
type seenSet struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	max   int
}

func newSeenSet(max int) *seenSet {
	return &seenSet{ids: make(map[string]struct{}, max), max: max}
}

// add records an id and reports whether it was new.
func (s *seenSet) add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.ids[id]; dup {
		return false
	}
	if len(s.order) >= s.max {
		drop := s.order[:s.max/2]
		s.order = append([]string(nil), s.order[s.max/2:]...)
		for _, old := range drop {
			delete(s.ids, old)
		}
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}
