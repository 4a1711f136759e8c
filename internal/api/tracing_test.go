package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Imziyasser00/calis-blog-sub001/internal/track"
)

type spanContextTracker struct {
	got trace.SpanContext
	err error
}

func (s *spanContextTracker) Track(ctx context.Context, _ track.Input) (track.Result, error) {
	s.got = trace.SpanContextFromContext(ctx)
	return track.Result{EventID: "evt-1"}, s.err
}

func TestServer_ContinuesIncomingTrace(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	tracker := &spanContextTracker{}
	s := NewServer(Deps{Tracker: tracker, TracerProvider: tp}, testConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/track", strings.NewReader(`{"sessionId":"s","eventType":"page_view"}`))
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	resp, _ := do(t, s, req)
	require.Equal(t, http.StatusOK, resp.Code)

	require.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", tracker.got.TraceID().String())

	spans := rec.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	require.Equal(t, "POST /api/track", span.Name())
	require.Equal(t, trace.SpanKindServer, span.SpanKind())
	require.True(t, span.Parent().IsRemote())
	require.Equal(t, "00f067aa0ba902b7", span.Parent().SpanID().String())
	require.Equal(t, span.SpanContext().SpanID(), tracker.got.SpanID())
	require.Equal(t, codes.Unset, span.Status().Code)
}

func TestServer_TracingMarksServerErrors(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s := NewServer(Deps{
		Tracker:        failingTracker{err: context.DeadlineExceeded},
		TracerProvider: tp,
	}, testConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/track", strings.NewReader(`{"sessionId":"s","eventType":"page_view"}`))
	resp, _ := do(t, s, req)
	require.Equal(t, http.StatusInternalServerError, resp.Code)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	require.False(t, spans[0].Parent().IsValid())
	require.Equal(t, codes.Error, spans[0].Status().Code)
}
