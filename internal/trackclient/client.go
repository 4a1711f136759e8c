// Package trackclient sends tracking events to the analytics endpoint on
// behalf of a client whose session id and first-seen UTM parameters live in
// an injected key-value store.
package trackclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Imziyasser00/calis-blog-sub001/internal/analytics"
	"github.com/Imziyasser00/calis-blog-sub001/internal/track"
)

// Keys used in the KV store.
const (
	SessionKey = "calis_sid"
	UTMKey     = "calis_utm"
)

// SessionIDGenerator creates new session ids.
type SessionIDGenerator interface {
	NewSessionID() (string, error)
}

// Client posts events to a tracking endpoint.
type Client struct {
	endpoint string
	source   string
	kv       KV
	ids      SessionIDGenerator
	http     *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSource sets the event source sent with every call.
func WithSource(source string) Option {
	return func(c *Client) { c.source = source }
}

// New constructs a Client posting to baseURL + "/api/track".
func New(baseURL string, kv KV, ids SessionIDGenerator, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if kv == nil || ids == nil {
		return nil, fmt.Errorf("kv store and id generator are required")
	}
	c := &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/track",
		kv:       kv,
		ids:      ids,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SessionID returns the stored session id, creating it on first access.
func (c *Client) SessionID(ctx context.Context) (string, error) {
	if v, ok, err := c.kv.Get(ctx, SessionKey); err != nil {
		return "", err
	} else if ok && v != "" {
		return v, nil
	}
	id, err := c.ids.NewSessionID()
	if err != nil {
		return "", err
	}
	if _, err := c.kv.SetIfAbsent(ctx, SessionKey, id); err != nil {
		return "", err
	}
	// Another writer may have won; the stored value is authoritative.
	v, _, err := c.kv.Get(ctx, SessionKey)
	if err != nil {
		return "", err
	}
	return v, nil
}

// CaptureUTM stores the utm_* parameters of rawURL unless a set is already
// stored. It reports whether anything was stored.
func (c *Client) CaptureUTM(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parse url: %w", err)
	}
	utm, ok := utmFromQuery(u.Query())
	if !ok {
		return false, nil
	}
	data, err := json.Marshal(utm)
	if err != nil {
		return false, fmt.Errorf("marshal utm: %w", err)
	}
	return c.kv.SetIfAbsent(ctx, UTMKey, string(data))
}

// StoredUTM returns the captured UTM parameters, if any.
func (c *Client) StoredUTM(ctx context.Context) (*analytics.UTM, error) {
	raw, ok, err := c.kv.Get(ctx, UTMKey)
	if err != nil || !ok {
		return nil, err
	}
	var utm analytics.UTM
	if err := json.Unmarshal([]byte(raw), &utm); err != nil {
		return nil, fmt.Errorf("decode stored utm: %w", err)
	}
	return &utm, nil
}

// Event is one call to Track.
type Event struct {
	Type     string
	Path     string
	Referrer string
	Metadata map[string]any
}

// Track posts ev using the stored session and UTM parameters.
func (c *Client) Track(ctx context.Context, ev Event) error {
	sessionID, err := c.SessionID(ctx)
	if err != nil {
		return err
	}
	utm, err := c.StoredUTM(ctx)
	if err != nil {
		return err
	}
	payload := track.Input{
		SessionID: sessionID,
		EventType: ev.Type,
		Source:    c.source,
		UTM:       utm,
		Metadata:  ev.Metadata,
	}
	if ev.Path != "" {
		payload.Path = &ev.Path
	}
	if ev.Referrer != "" {
		payload.Referrer = &ev.Referrer
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // body fully drained below

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return nil
}

// StatusError is returned when the endpoint rejects an event.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("track endpoint returned %d: %s", e.Code, e.Body)
}

func utmFromQuery(q url.Values) (analytics.UTM, bool) {
	var (
		utm   analytics.UTM
		found bool
	)
	pick := func(key string) *string {
		v := strings.TrimSpace(q.Get(key))
		if v == "" {
			return nil
		}
		found = true
		return &v
	}
	utm.Source = pick("utm_source")
	utm.Medium = pick("utm_medium")
	utm.Campaign = pick("utm_campaign")
	utm.Content = pick("utm_content")
	utm.Term = pick("utm_term")
	return utm, found
}
