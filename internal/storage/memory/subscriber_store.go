// Package memory provides in-memory store implementations for development/testing.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Imziyasser00/calis-blog-sub001/internal/analytics"
)

// ErrSubscriberNotFound is returned by Patch for an unknown id.
var ErrSubscriberNotFound = fmt.Errorf("subscriber: %w", analytics.ErrNotFound)

// SubscriberStore keeps subscriber documents in a map guarded by a mutex.
type SubscriberStore struct {
	mu   sync.RWMutex
	subs map[string]analytics.Subscriber
}

// NewSubscriberStore constructs a SubscriberStore.
func NewSubscriberStore() *SubscriberStore {
	return &SubscriberStore{
		subs: make(map[string]analytics.Subscriber),
	}
}

// CreateIfAbsent stores sub unless its id is already present.
func (s *SubscriberStore) CreateIfAbsent(
	_ context.Context,
	sub analytics.Subscriber,
) (analytics.Subscriber, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.subs[sub.ID]; ok {
		return cloneSubscriber(existing), false, nil
	}
	s.subs[sub.ID] = cloneSubscriber(sub)
	return cloneSubscriber(sub), true, nil
}

// Patch applies the non-nil fields of patch.
func (s *SubscriberStore) Patch(_ context.Context, id string, patch analytics.SubscriberPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return ErrSubscriberNotFound
	}
	if patch.IP != nil {
		sub.IP = *patch.IP
	}
	if patch.UserAgent != nil {
		sub.UserAgent = *patch.UserAgent
	}
	if patch.WelcomeSentAt != nil {
		sub.WelcomeSentAt = pointerTime(*patch.WelcomeSentAt)
	}
	s.subs[id] = sub
	return nil
}

// Get returns a copy of the stored subscriber.
func (s *SubscriberStore) Get(_ context.Context, id string) (analytics.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[id]
	if !ok {
		return analytics.Subscriber{}, ErrSubscriberNotFound
	}
	return cloneSubscriber(sub), nil
}

// Len reports how many subscribers are stored.
func (s *SubscriberStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func cloneSubscriber(sub analytics.Subscriber) analytics.Subscriber {
	if sub.WelcomeSentAt != nil {
		sub.WelcomeSentAt = pointerTime(*sub.WelcomeSentAt)
	}
	return sub
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
