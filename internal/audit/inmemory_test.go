package audit

import (
	"context"
	"testing"
)

func TestNewStoreWithEmptyDatabaseURLReturnsInMemory(t *testing.T) {
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, ok := store.(*InMemoryStore); !ok {
		t.Fatalf("want *InMemoryStore for empty databaseURL, got %T", store)
	}
}

func TestInMemoryStoreRecordAndRecentEvents(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	if err := store.RecordEvent(ctx, Event{Kind: "session_created", SessionID: "a"}); err != nil {
		t.Fatalf("record event: %v", err)
	}
	if err := store.RecordEvent(ctx, Event{Kind: "session_ended", SessionID: "a"}); err != nil {
		t.Fatalf("record event: %v", err)
	}
	if err := store.RecordEvent(ctx, Event{Kind: "session_created", SessionID: "b"}); err != nil {
		t.Fatalf("record event: %v", err)
	}

	events, err := store.RecentEvents(ctx, "a", 10)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("want 2 events for session a, got %d", len(events))
	}
	for _, e := range events {
		if e.ID == "" {
			t.Fatal("want auto-assigned event id")
		}
		if e.CreatedAt.IsZero() {
			t.Fatal("want auto-assigned created_at")
		}
	}
}

func TestInMemoryStoreRecentEventsRespectsLimit(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := store.RecordEvent(ctx, Event{Kind: "packet_accepted", SessionID: "a"}); err != nil {
			t.Fatal(err)
		}
	}

	events, err := store.RecentEvents(ctx, "a", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("want 2 events with limit 2, got %d", len(events))
	}
}

func TestInMemoryStoreRecentEventsUnknownSessionIsEmpty(t *testing.T) {
	store := NewInMemoryStore()
	events, err := store.RecentEvents(context.Background(), "nope", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("want no events for unknown session, got %d", len(events))
	}
}
