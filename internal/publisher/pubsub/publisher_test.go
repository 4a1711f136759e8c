package pubsub

import (
	"context"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Imziyasser00/calis-blog-sub001/internal/analytics"
)

func TestAttributesForEvent(t *testing.T) {
	t.Parallel()

	attrs := attributesFor(analytics.Event{EventType: "blog_view", Source: "web"})
	require.Equal(t, map[string]string{"event_type": "blog_view", "source": "web"}, attrs)
	require.Empty(t, attributesFor("plain"))
}

func TestCarrierRoundTrip(t *testing.T) {
	t.Parallel()

	c := &pubsubCarrier{attrs: map[string]string{}}
	var _ propagation.TextMapCarrier = c
	c.Set("traceparent", "00-abc-def-01")
	require.Equal(t, "00-abc-def-01", c.Get("traceparent"))
	require.Equal(t, []string{"traceparent"}, c.Keys())
}

func TestPublisher_Publish_FakeServer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	const topic = "projects/calis-test/topics/calis-events"
	_, err := srv.GServer.CreateTopic(ctx, &pubsubpb.Topic{Name: topic})
	require.NoError(t, err)

	client, err := pubsub.NewClient(ctx, "calis-test",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	require.NoError(t, err)

	pub := New(client)
	id, err := pub.Publish(ctx, topic, analytics.Event{ID: "e1", SessionID: "s1", EventType: "blog_view", Source: "web"})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.NoError(t, pub.Close())

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "blog_view", msgs[0].Attributes["event_type"])
	require.Contains(t, string(msgs[0].Data), `"session_id":"s1"`)
}

func TestPublisher_Publish_InjectsTraceContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	const topic = "projects/calis-test/topics/calis-traced"
	_, err := srv.GServer.CreateTopic(ctx, &pubsubpb.Topic{Name: topic})
	require.NoError(t, err)

	client, err := pubsub.NewClient(ctx, "calis-test",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	require.NoError(t, err)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	parentCtx, parent := tp.Tracer("test").Start(ctx, "track")
	pub := New(client, WithTracerProvider(tp))
	_, err = pub.Publish(parentCtx, topic, analytics.Event{ID: "e2", SessionID: "s2", EventType: "blog_view", Source: "web"})
	require.NoError(t, err)
	parent.End()
	require.NoError(t, pub.Close())

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	traceparent := msgs[0].Attributes["traceparent"]
	require.NotEmpty(t, traceparent)
	require.Contains(t, traceparent, parent.SpanContext().TraceID().String())

	var publishSpan sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		if s.Name() == "pubsub.publish" {
			publishSpan = s
		}
	}
	require.NotNil(t, publishSpan)
	require.Equal(t, trace.SpanKindProducer, publishSpan.SpanKind())
	require.Equal(t, parent.SpanContext().SpanID(), publishSpan.Parent().SpanID())
	require.Contains(t, traceparent, publishSpan.SpanContext().SpanID().String())
}

func TestPublisher_Publish_NoClient(t *testing.T) {
	t.Parallel()

	_, err := (&Publisher{}).Publish(context.Background(), "t", "x")
	require.Error(t, err)
}
