// Package analytics defines the core types and ports shared by the subscription
// and tracking workflows.
package analytics

import "time"

// SubscriberSource tags every subscriber created through the newsletter form.
const SubscriberSource = "newsletter"

// DefaultEventSource is stored when a tracking call does not name a source.
const DefaultEventSource = "web"

// MaxUserAgentLen caps the stored user agent.
const MaxUserAgentLen = 500

// Subscriber is one newsletter recipient keyed by a hash of the normalized email.
type Subscriber struct {
	ID            string     `json:"id" dynamodbav:"id"`
	Email         string     `json:"email" dynamodbav:"email"`
	CreatedAt     time.Time  `json:"created_at" dynamodbav:"created_at"`
	Source        string     `json:"source" dynamodbav:"source"`
	IP            string     `json:"ip,omitempty" dynamodbav:"ip,omitempty"`
	UserAgent     string     `json:"user_agent,omitempty" dynamodbav:"user_agent,omitempty"`
	WelcomeSentAt *time.Time `json:"welcome_sent_at,omitempty" dynamodbav:"welcome_sent_at,omitempty"`
}

// SubscriberPatch sets only the non-nil fields on an existing subscriber.
type SubscriberPatch struct {
	IP            *string
	UserAgent     *string
	WelcomeSentAt *time.Time
}

// Empty reports whether the patch would change nothing.
func (p SubscriberPatch) Empty() bool {
	return p.IP == nil && p.UserAgent == nil && p.WelcomeSentAt == nil
}

// UTM holds campaign attribution parameters. Nil fields are stored as NULL.
type UTM struct {
	Source   *string `json:"source,omitempty"`
	Medium   *string `json:"medium,omitempty"`
	Campaign *string `json:"campaign,omitempty"`
	Content  *string `json:"content,omitempty"`
	Term     *string `json:"term,omitempty"`
}

// Event is an immutable record of one tracked user action.
type Event struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	EventType  string         `json:"event_type"`
	Source     string         `json:"source"`
	Path       *string        `json:"path"`
	Referrer   *string        `json:"referrer"`
	UTM        UTM            `json:"utm"`
	Metadata   map[string]any `json:"metadata"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Session is the per-session row. Every tracking call overwrites it.
type Session struct {
	SessionID   string    `json:"session_id"`
	LastSeen    time.Time `json:"last_seen"`
	LandingPath *string   `json:"landing_path"`
	UTM         UTM       `json:"utm"`
}
