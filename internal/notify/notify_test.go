package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewHub(rdb)
}

func TestDeriveIDStable(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := DeriveID("leads", "abc", EventCreated, at)
	b := DeriveID("leads", "abc", EventCreated, at)
	if a != b {
		t.Errorf("same change derived different ids: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("id length = %d, want 32 hex chars", len(a))
	}

	if DeriveID("leads", "abc", EventStatusChanged, at) == a {
		t.Error("different events derived the same id")
	}
	if DeriveID("leads", "abc", EventCreated, at.Add(time.Second)) == a {
		t.Error("different times derived the same id")
	}
}

func TestPublishSubscribe(t *testing.T) {
	hub := testHub(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan LeadEvent, 4)
	go hub.Subscribe(ctx, func(ev LeadEvent) { got <- ev })

	// Give the subscriber a moment to attach.
	time.Sleep(100 * time.Millisecond)

	hub.Publish(ctx, LeadEvent{Table: "leads", LeadID: "l1", Event: EventCreated})

	select {
	case ev := <-got:
		if ev.Event != EventCreated || ev.LeadID != "l1" {
			t.Errorf("event = %+v", ev)
		}
		if ev.ID == "" {
			t.Error("published event has no derived id")
		}
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}

// A redelivered event id reaches the handler once.
func TestSubscribeDeduplicates(t *testing.T) {
	hub := testHub(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan LeadEvent, 8)
	go hub.Subscribe(ctx, func(ev LeadEvent) { got <- ev })
	time.Sleep(100 * time.Millisecond)

	at := time.Now().UTC()
	dup := LeadEvent{Table: "leads", LeadID: "l1", Event: EventConverted, At: at}
	hub.Publish(ctx, dup)
	hub.Publish(ctx, dup)
	hub.Publish(ctx, LeadEvent{Table: "leads", LeadID: "l2", Event: EventCreated, At: at})

	var events []LeadEvent
	deadline := time.After(2 * time.Second)
collect:
	for {
		select {
		case ev := <-got:
			events = append(events, ev)
			if len(events) >= 2 {
				// Drain window for a possible spurious third delivery.
				select {
				case ev := <-got:
					events = append(events, ev)
				case <-time.After(300 * time.Millisecond):
				}
				break collect
			}
		case <-deadline:
			break collect
		}
	}

	if len(events) != 2 {
		t.Fatalf("handler ran %d times, want 2 (duplicate dropped)", len(events))
	}
}

func TestSeenSetEviction(t *testing.T) {
	s := newSeenSet(4)

	for _, id := range []string{"a", "b", "c", "d"} {
		if !s.add(id) {
			t.Fatalf("fresh id %q reported as duplicate", id)
		}
	}
	if s.add("a") {
		t.Error("retained id accepted twice")
	}

	// Adding past capacity evicts the oldest half.
	if !s.add("e") {
		t.Error("id rejected after eviction should have room")
	}
	if !s.add("a") {
		t.Error("evicted id not re-admitted")
	}
	if s.add("d") {
		t.Error("recent id should still be retained")
	}
}
