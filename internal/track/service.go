// Package track implements the first-party analytics workflow: one event row
// per call plus a last-write-wins session row.
package track

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Imziyasser00/calis-blog-sub001/internal/analytics"
	"github.com/Imziyasser00/calis-blog-sub001/internal/telemetry"
)

// Input is the tracking payload. Both camelCase and snake_case keys are
// accepted for the session id and event type; camelCase wins when both are set.
type Input struct {
	SessionID    string         `json:"sessionId,omitempty"`
	SessionIDAlt string         `json:"session_id,omitempty"`
	EventType    string         `json:"eventType,omitempty"`
	EventTypeAlt string         `json:"event_type,omitempty"`
	Path         *string        `json:"path,omitempty"`
	Referrer     *string        `json:"referrer,omitempty"`
	Source       string         `json:"source,omitempty"`
	UTM          *analytics.UTM `json:"utm,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Result separates the primary insert from the secondary writes that follow it.
type Result struct {
	EventID    string
	SessionErr error
	PublishErr error
}

// Service records tracking events.
type Service struct {
	store     analytics.EventStore
	publisher analytics.Publisher
	topic     string
	ids       analytics.IDGenerator
	clock     analytics.Clock
	logger    *zap.Logger
	tracer    trace.Tracer
}

const tracerName = "github.com/Imziyasser00/calis-blog-sub001/internal/track"

// Option customizes a Service.
type Option func(*Service)

// WithPublisher fans each recorded event out to topic.
func WithPublisher(p analytics.Publisher, topic string) Option {
	return func(s *Service) {
		s.publisher = p
		s.topic = topic
	}
}

// WithTracerProvider records spans on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(tracerName) }
}

// New constructs a Service.
func New(
	store analytics.EventStore,
	ids analytics.IDGenerator,
	clock analytics.Clock,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:  store,
		ids:    ids,
		clock:  clock,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconcile resolves the aliased keys and reports what validation saw.
func Reconcile(in Input) (sessionID, eventType string, diag analytics.TrackDiagnostics) {
	sessionID = analytics.FirstNonEmpty(in.SessionID, in.SessionIDAlt)
	eventType = analytics.FirstNonEmpty(in.EventType, in.EventTypeAlt)
	diag.SessionIDPresent = sessionID != ""
	if eventType != "" {
		et := eventType
		diag.EventType = &et
	}
	diag.EventTypeValid = analytics.IsValidEventType(eventType)
	return sessionID, eventType, diag
}

// Track validates in, inserts one event and then overwrites the session row.
// Only a failed event insert is returned as an error.
func (s *Service) Track(ctx context.Context, in Input) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "track.Track")
	defer span.End()

	sessionID, eventType, diag := Reconcile(in)
	if !diag.SessionIDPresent || !diag.EventTypeValid {
		telemetry.ObserveTrack(telemetry.OutcomeInvalid)
		span.SetStatus(codes.Error, "invalid payload")
		return Result{}, &analytics.TrackValidationError{Details: diag}
	}
	span.SetAttributes(attribute.String("calis.event_type", eventType))

	id, err := s.ids.NewID()
	if err != nil {
		telemetry.ObserveTrack(telemetry.OutcomeError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate event id")
		return Result{}, analytics.Internal("generate event id", err)
	}
	span.SetAttributes(attribute.String("calis.event_id", id))
	now := s.clock.Now()
	ev := analytics.Event{
		ID:         id,
		SessionID:  sessionID,
		EventType:  eventType,
		Source:     analytics.FirstNonEmpty(in.Source, analytics.DefaultEventSource),
		Path:       in.Path,
		Referrer:   in.Referrer,
		Metadata:   in.Metadata,
		OccurredAt: now,
	}
	if in.UTM != nil {
		ev.UTM = *in.UTM
	}
	if ev.Metadata == nil {
		ev.Metadata = map[string]any{}
	}

	logger := s.logger.With(zap.String("session_id", sessionID), zap.String("event_type", eventType))
	if err := s.store.InsertEvent(ctx, ev); err != nil {
		telemetry.ObserveTrack(telemetry.OutcomeError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert event")
		return Result{}, analytics.Internal("insert event", err)
	}
	res := Result{EventID: id}

	if err := s.store.UpsertSession(ctx, analytics.Session{
		SessionID:   sessionID,
		LastSeen:    now,
		LandingPath: in.Path,
		UTM:         ev.UTM,
	}); err != nil {
		res.SessionErr = err
		span.RecordError(err)
		telemetry.ObserveSecondaryWriteFailure("session_upsert")
		logger.Warn("session upsert failed", zap.Error(err))
	}

	if s.publisher != nil && s.topic != "" {
		if _, err := s.publisher.Publish(ctx, s.topic, ev); err != nil {
			res.PublishErr = err
			span.RecordError(err)
			telemetry.ObserveSecondaryWriteFailure("event_publish")
			logger.Warn("event publish failed", zap.Error(err))
		}
	}

	telemetry.ObserveTrack(telemetry.OutcomeRecorded)
	logger.Debug("event recorded", zap.String("event_id", id))
	return res, nil
}
