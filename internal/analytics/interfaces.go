package analytics

import (
	"context"
	"io"
	"time"
)

// SubscriberStore persists subscriber documents.
type SubscriberStore interface {
	// CreateIfAbsent atomically inserts sub unless a document with sub.ID exists.
	// It returns the stored document either way and whether this call created it.
	CreateIfAbsent(ctx context.Context, sub Subscriber) (Subscriber, bool, error)
	// Patch applies the non-nil fields of patch to the subscriber with the given id.
	Patch(ctx context.Context, id string, patch SubscriberPatch) error
}

// EventStore persists events and sessions.
type EventStore interface {
	InsertEvent(ctx context.Context, ev Event) error
	// UpsertSession replaces the session row on conflict.
	UpsertSession(ctx context.Context, s Session) error
}

// Mailer delivers the newsletter welcome message.
type Mailer interface {
	SendWelcome(ctx context.Context, email string) error
}

// Publisher fans recorded events out to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore holds static assets such as Open Graph images.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
	GetObject(ctx context.Context, path string) (Object, error)
}

// Object is a blob read back from a BlobStore. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces event IDs.
type IDGenerator interface {
	NewID() (string, error)
}
