package trackclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Imziyasser00/calis-blog-sub001/internal/track"
)

type seqSessions struct {
	mu sync.Mutex
	n  int
}

func (s *seqSessions) NewSessionID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return []string{"sess-a", "sess-b", "sess-c"}[s.n-1], nil
}

func TestClient_SessionIDCreatedOnce(t *testing.T) {
	t.Parallel()

	ids := &seqSessions{}
	c, err := New("http://unused", NewMemoryKV(), ids)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := c.SessionID(ctx)
	require.NoError(t, err)
	second, err := c.SessionID(ctx)
	require.NoError(t, err)
	require.Equal(t, "sess-a", first)
	require.Equal(t, first, second)
	require.Equal(t, 1, ids.n)
}

func TestClient_CaptureUTMFirstTouch(t *testing.T) {
	t.Parallel()

	c, err := New("http://unused", NewMemoryKV(), &seqSessions{})
	require.NoError(t, err)
	ctx := context.Background()

	stored, err := c.CaptureUTM(ctx, "https://calis.example/blog/x")
	require.NoError(t, err)
	require.False(t, stored)

	stored, err = c.CaptureUTM(ctx, "https://calis.example/?utm_source=twitter&utm_campaign=spring")
	require.NoError(t, err)
	require.True(t, stored)

	stored, err = c.CaptureUTM(ctx, "https://calis.example/?utm_source=reddit")
	require.NoError(t, err)
	require.False(t, stored)

	utm, err := c.StoredUTM(ctx)
	require.NoError(t, err)
	require.Equal(t, "twitter", *utm.Source)
	require.Equal(t, "spring", *utm.Campaign)
	require.Nil(t, utm.Medium)
}

func TestClient_TrackPostsPayload(t *testing.T) {
	t.Parallel()

	var got track.Input
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/track", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/", NewMemoryKV(), &seqSessions{}, WithSource("cli"))
	require.NoError(t, err)
	ctx := context.Background()
	_, err = c.CaptureUTM(ctx, "/?utm_medium=email")
	require.NoError(t, err)

	require.NoError(t, c.Track(ctx, Event{Type: "blog_view", Path: "/blog/x", Metadata: map[string]any{"slug": "x"}}))
	require.Equal(t, "sess-a", got.SessionID)
	require.Equal(t, "blog_view", got.EventType)
	require.Equal(t, "cli", got.Source)
	require.Equal(t, "/blog/x", *got.Path)
	require.Nil(t, got.Referrer)
	require.Equal(t, "email", *got.UTM.Medium)
	require.Equal(t, "x", got.Metadata["slug"])
}

func TestClient_TrackRejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error":"Invalid payload"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, NewMemoryKV(), &seqSessions{})
	require.NoError(t, err)
	err = c.Track(context.Background(), Event{Type: "Bad"})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadRequest, statusErr.Code)
	require.Contains(t, statusErr.Body, "Invalid payload")
}

func TestRedisKV_SetIfAbsent(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close() //nolint:errcheck // test cleanup

	kv := NewRedisKV(client, "tc:")
	ctx := context.Background()
	_, ok, err := kv.Get(ctx, SessionKey)
	require.NoError(t, err)
	require.False(t, ok)

	wrote, err := kv.SetIfAbsent(ctx, SessionKey, "one")
	require.NoError(t, err)
	require.True(t, wrote)
	wrote, err = kv.SetIfAbsent(ctx, SessionKey, "two")
	require.NoError(t, err)
	require.False(t, wrote)

	v, ok, err := kv.Get(ctx, SessionKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "one", v)
	require.True(t, mr.Exists("tc:"+SessionKey))
}

func TestNew_Validates(t *testing.T) {
	t.Parallel()

	_, err := New("", NewMemoryKV(), &seqSessions{})
	require.Error(t, err)
	_, err = New("http://x", nil, &seqSessions{})
	require.Error(t, err)
}
