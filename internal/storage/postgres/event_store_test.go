package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/Imziyasser00/calis-blog-sub001/internal/analytics"
)

func strPtr(s string) *string { return &s }

func TestInsertEventWritesRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewEventStoreWithPool(mock, "events", "sessions")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	ev := analytics.Event{
		ID:         "0190f5d2-uuid-v7",
		SessionID:  "s1",
		EventType:  "blog_view",
		Source:     "web",
		Path:       strPtr("/blog/x"),
		UTM:        analytics.UTM{Source: strPtr("newsletter")},
		OccurredAt: now,
	}

	mock.ExpectExec("INSERT INTO events").
		WithArgs(
			ev.ID,
			ev.SessionID,
			ev.EventType,
			ev.Source,
			ev.Path,
			ev.Referrer,
			ev.UTM.Source,
			ev.UTM.Medium,
			ev.UTM.Campaign,
			ev.UTM.Content,
			ev.UTM.Term,
			[]byte(`{}`),
			ev.OccurredAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.InsertEvent(context.Background(), ev))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEventWrapsError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewEventStoreWithPool(mock, "", "")
	require.NoError(t, err)

	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO events").WillReturnError(boom)

	err = store.InsertEvent(context.Background(), analytics.Event{
		ID:        "e1",
		SessionID: "s1",
		EventType: "blog_view",
		Metadata:  map[string]any{"slug": "pullups"},
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEventRequiresID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewEventStoreWithPool(mock, "", "")
	require.NoError(t, err)
	require.Error(t, store.InsertEvent(context.Background(), analytics.Event{SessionID: "s1"}))
}

func TestUpsertSessionReplacesOnConflict(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewEventStoreWithPool(mock, "events", "sessions")
	require.NoError(t, err)

	sess := analytics.Session{
		SessionID:   "s1",
		LastSeen:    time.Unix(1700000100, 0).UTC(),
		LandingPath: strPtr("/exercises/dips"),
		UTM:         analytics.UTM{Campaign: strPtr("spring")},
	}
	mock.ExpectExec(`(?s)INSERT INTO sessions.*ON CONFLICT \(session_id\) DO UPDATE`).
		WithArgs(
			sess.SessionID,
			sess.LastSeen,
			sess.LandingPath,
			sess.UTM.Source,
			sess.UTM.Medium,
			sess.UTM.Campaign,
			sess.UTM.Content,
			sess.UTM.Term,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.UpsertSession(context.Background(), sess))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateCreatesTables(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewEventStoreWithPool(mock, "events", "sessions")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS events").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS events_session_idx").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sessions").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPingDelegatesToPool(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewEventStoreWithPool(mock, "", "")
	require.NoError(t, err)

	mock.ExpectPing()
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewEventStoreWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewEventStoreWithPool(mock, "events; DROP TABLE x", "sessions")
	require.Error(t, err)
	_, err = NewEventStoreWithPool(nil, "", "")
	require.Error(t, err)
}

func TestNewEventStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewEventStore(context.Background(), EventStoreConfig{})
	require.Error(t, err)
}
