package memory

import (
	"context"
	"sync"

	"github.com/Imziyasser00/calis-blog-sub001/internal/analytics"
)

// EventStore appends events to a slice and keeps one session per id.
type EventStore struct {
	mu       sync.RWMutex
	events   []analytics.Event
	sessions map[string]analytics.Session
}

// NewEventStore constructs an EventStore.
func NewEventStore() *EventStore {
	return &EventStore{
		sessions: make(map[string]analytics.Session),
	}
}

// InsertEvent appends ev.
func (s *EventStore) InsertEvent(_ context.Context, ev analytics.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, cloneEvent(ev))
	return nil
}

// UpsertSession replaces the session row for sess.SessionID.
func (s *EventStore) UpsertSession(_ context.Context, sess analytics.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.SessionID] = sess
	return nil
}

// Events returns a copy of the recorded events.
func (s *EventStore) Events() []analytics.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]analytics.Event, len(s.events))
	for i, ev := range s.events {
		out[i] = cloneEvent(ev)
	}
	return out
}

// Session returns the stored session row.
func (s *EventStore) Session(id string) (analytics.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func cloneEvent(ev analytics.Event) analytics.Event {
	if ev.Metadata != nil {
		md := make(map[string]any, len(ev.Metadata))
		for k, v := range ev.Metadata {
			md[k] = v
		}
		ev.Metadata = md
	}
	return ev
}
