package memory

import (
	"context"
	"testing"

	"github.com/Imziyasser00/calis-blog-sub001/internal/analytics"
)

func TestEventStoreAppendsAndUpserts(t *testing.T) {
	t.Parallel()

	store := NewEventStore()
	ctx := context.Background()
	md := map[string]any{"slug": "pullups"}
	if err := store.InsertEvent(ctx, analytics.Event{SessionID: "s1", EventType: "blog_view", Metadata: md}); err != nil {
		t.Fatalf("InsertEvent() error = %v", err)
	}
	if err := store.InsertEvent(ctx, analytics.Event{SessionID: "s1", EventType: "exercise_open"}); err != nil {
		t.Fatalf("InsertEvent() error = %v", err)
	}
	md["slug"] = "changed"

	events := store.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Metadata["slug"] != "pullups" {
		t.Fatalf("expected metadata copy, got %v", events[0].Metadata)
	}

	first, second := "/blog/a", "/blog/b"
	if err := store.UpsertSession(ctx, analytics.Session{SessionID: "s1", LandingPath: &first}); err != nil {
		t.Fatalf("UpsertSession() error = %v", err)
	}
	if err := store.UpsertSession(ctx, analytics.Session{SessionID: "s1", LandingPath: &second}); err != nil {
		t.Fatalf("UpsertSession() error = %v", err)
	}
	sess, ok := store.Session("s1")
	if !ok || sess.LandingPath == nil || *sess.LandingPath != "/blog/b" {
		t.Fatalf("expected last write to win, got %+v", sess)
	}
}
