package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveSecondaryWriteFailure(t *testing.T) {
	before := testutil.ToFloat64(secondaryWriteFailuresTotal.WithLabelValues("session_upsert"))
	ObserveSecondaryWriteFailure("session_upsert")
	after := testutil.ToFloat64(secondaryWriteFailuresTotal.WithLabelValues("session_upsert"))
	require.InDelta(t, 1, after-before, 0.0001)
}

func TestObserveTrackCountsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(trackEventsTotal.WithLabelValues(OutcomeInvalid))
	ObserveTrack(OutcomeInvalid)
	after := testutil.ToFloat64(trackEventsTotal.WithLabelValues(OutcomeInvalid))
	require.InDelta(t, 1, after-before, 0.0001)
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/og/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "404"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/og/home.png", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "404"))
	require.InDelta(t, 1, after-before, 0.0001)
}

func TestHandlerExposesCalisMetrics(t *testing.T) {
	ObserveSubscribe(OutcomeCreated)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "calis_subscribe_total"))
}

func TestInitTracerProviderIsIdempotent(t *testing.T) {
	tp1, err := InitTracerProvider(context.Background(), "calis-blog", "test")
	require.NoError(t, err)
	tp2, err := InitTracerProvider(context.Background(), "other", "test")
	require.NoError(t, err)
	require.Same(t, tp1, tp2)
}
