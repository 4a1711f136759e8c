// Package redis stores subscriber documents as Redis hashes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Imziyasser00/calis-blog-sub001/internal/analytics"
)

const (
	fieldEmail         = "email"
	fieldCreatedAt     = "created_at"
	fieldSource        = "source"
	fieldIP            = "ip"
	fieldUserAgent     = "user_agent"
	fieldWelcomeSentAt = "welcome_sent_at"
)

// createIfAbsentLua writes the hash only when the key is new and returns 1 if it did.
const createIfAbsentLua = `
if redis.call("EXISTS", KEYS[1]) == 1 then
    return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV))
return 1
`

// patchExistingLua applies field updates only to an existing hash.
const patchExistingLua = `
if redis.call("EXISTS", KEYS[1]) == 0 then
    return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV))
return 1
`

// SubscriberStore implements analytics.SubscriberStore on Redis.
type SubscriberStore struct {
	client    redis.UniversalClient
	keyPrefix string
	create    *redis.Script
	patch     *redis.Script
}

// NewSubscriberStore wraps client. Keys are keyPrefix + subscriber id.
func NewSubscriberStore(client redis.UniversalClient, keyPrefix string) (*SubscriberStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if keyPrefix == "" {
		keyPrefix = "calis:"
	}
	return &SubscriberStore{
		client:    client,
		keyPrefix: keyPrefix,
		create:    redis.NewScript(createIfAbsentLua),
		patch:     redis.NewScript(patchExistingLua),
	}, nil
}

// CreateIfAbsent atomically stores sub unless its key exists, then reads
// back the stored document.
func (s *SubscriberStore) CreateIfAbsent(
	ctx context.Context,
	sub analytics.Subscriber,
) (analytics.Subscriber, bool, error) {
	key := s.key(sub.ID)
	created, err := s.create.Run(ctx, s.client, []string{key}, encode(sub)...).Int()
	if err != nil {
		return analytics.Subscriber{}, false, fmt.Errorf("create subscriber: %w", err)
	}
	stored, err := s.get(ctx, sub.ID)
	if err != nil {
		return analytics.Subscriber{}, false, err
	}
	return stored, created == 1, nil
}

// Patch sets the non-nil fields of patch on an existing subscriber.
func (s *SubscriberStore) Patch(ctx context.Context, id string, patch analytics.SubscriberPatch) error {
	var args []any
	if patch.IP != nil {
		args = append(args, fieldIP, *patch.IP)
	}
	if patch.UserAgent != nil {
		args = append(args, fieldUserAgent, *patch.UserAgent)
	}
	if patch.WelcomeSentAt != nil {
		args = append(args, fieldWelcomeSentAt, patch.WelcomeSentAt.UTC().Format(time.RFC3339Nano))
	}
	if len(args) == 0 {
		return nil
	}
	ok, err := s.patch.Run(ctx, s.client, []string{s.key(id)}, args...).Int()
	if err != nil {
		return fmt.Errorf("patch subscriber: %w", err)
	}
	if ok == 0 {
		return fmt.Errorf("subscriber %s: %w", id, analytics.ErrNotFound)
	}
	return nil
}

// Get reads one subscriber.
func (s *SubscriberStore) Get(ctx context.Context, id string) (analytics.Subscriber, error) {
	return s.get(ctx, id)
}

// Ping checks connectivity for readiness probes.
func (s *SubscriberStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (s *SubscriberStore) get(ctx context.Context, id string) (analytics.Subscriber, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return analytics.Subscriber{}, fmt.Errorf("read subscriber: %w", err)
	}
	if len(fields) == 0 {
		return analytics.Subscriber{}, fmt.Errorf("subscriber %s: %w", id, analytics.ErrNotFound)
	}
	return decode(id, fields)
}

func (s *SubscriberStore) key(id string) string {
	return s.keyPrefix + id
}

func encode(sub analytics.Subscriber) []any {
	args := []any{
		fieldEmail, sub.Email,
		fieldCreatedAt, sub.CreatedAt.UTC().Format(time.RFC3339Nano),
		fieldSource, sub.Source,
	}
	if sub.IP != "" {
		args = append(args, fieldIP, sub.IP)
	}
	if sub.UserAgent != "" {
		args = append(args, fieldUserAgent, sub.UserAgent)
	}
	if sub.WelcomeSentAt != nil {
		args = append(args, fieldWelcomeSentAt, sub.WelcomeSentAt.UTC().Format(time.RFC3339Nano))
	}
	return args
}

func decode(id string, fields map[string]string) (analytics.Subscriber, error) {
	sub := analytics.Subscriber{
		ID:        id,
		Email:     fields[fieldEmail],
		Source:    fields[fieldSource],
		IP:        fields[fieldIP],
		UserAgent: fields[fieldUserAgent],
	}
	if raw := fields[fieldCreatedAt]; raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return analytics.Subscriber{}, fmt.Errorf("parse created_at: %w", err)
		}
		sub.CreatedAt = ts
	}
	if raw := fields[fieldWelcomeSentAt]; raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return analytics.Subscriber{}, fmt.Errorf("parse welcome_sent_at: %w", err)
		}
		sub.WelcomeSentAt = &ts
	}
	return sub, nil
}
