// Package subscribe implements the newsletter subscription workflow:
// idempotent subscriber creation, one-time telemetry backfill, and a single
// welcome email per subscriber.
package subscribe

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Imziyasser00/calis-blog-sub001/internal/analytics"
	"github.com/Imziyasser00/calis-blog-sub001/internal/logging"
	"github.com/Imziyasser00/calis-blog-sub001/internal/telemetry"
)

// Input is one subscription request as received at the HTTP boundary.
type Input struct {
	Email     string
	ClientIP  string
	UserAgent string
}

// Result describes what a Subscribe call did. BackfillErr is a secondary
// failure: it is logged and reported here but never returned as the error.
type Result struct {
	ID          string
	Created     bool
	Backfilled  bool
	WelcomeSent bool
	BackfillErr error
}

// Service orchestrates the subscriber store and mailer.
type Service struct {
	store  analytics.SubscriberStore
	mailer analytics.Mailer
	clock  analytics.Clock
	logger *zap.Logger
	tracer trace.Tracer
}

const tracerName = "github.com/Imziyasser00/calis-blog-sub001/internal/subscribe"

// Option customizes a Service.
type Option func(*Service)

// WithTracerProvider records spans on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(tracerName) }
}

// New constructs a Service.
func New(
	store analytics.SubscriberStore,
	mailer analytics.Mailer,
	clock analytics.Clock,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:  store,
		mailer: mailer,
		clock:  clock,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe records the address and sends the welcome email if it has never
// been sent. Repeated calls for the same address return the same id.
func (s *Service) Subscribe(ctx context.Context, in Input) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "subscribe.Subscribe")
	defer span.End()

	trimmed := strings.TrimSpace(in.Email)
	if !analytics.IsValidEmail(trimmed) {
		telemetry.ObserveSubscribe(telemetry.OutcomeInvalid)
		span.SetStatus(codes.Error, "invalid email")
		return Result{}, fmt.Errorf("email %q: %w", logging.RedactEmail(trimmed), analytics.ErrInvalidInput)
	}
	email := analytics.NormalizeEmail(trimmed)
	id := analytics.DeriveSubscriberID(email)
	ip := analytics.MaskIP(in.ClientIP)
	ua := analytics.TruncateUserAgent(in.UserAgent)
	logger := s.logger.With(zap.String("subscriber_id", id))
	span.SetAttributes(attribute.String("calis.subscriber_id", id))

	sub, created, err := s.store.CreateIfAbsent(ctx, analytics.Subscriber{
		ID:        id,
		Email:     email,
		CreatedAt: s.clock.Now(),
		Source:    analytics.SubscriberSource,
		IP:        ip,
		UserAgent: ua,
	})
	if err != nil {
		telemetry.ObserveSubscribe(telemetry.OutcomeError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "create subscriber")
		return Result{}, analytics.Internal("create subscriber", err)
	}
	res := Result{ID: id, Created: created}
	if created {
		logger.Info("subscriber created", zap.String("email", logging.RedactEmail(email)))
	}

	if patch := backfillPatch(sub, ip, ua); !patch.Empty() {
		if err := s.store.Patch(ctx, id, patch); err != nil {
			res.BackfillErr = err
			span.RecordError(err)
			telemetry.ObserveSecondaryWriteFailure("subscriber_backfill")
			logger.Warn("subscriber backfill failed", zap.Error(err))
		} else {
			res.Backfilled = true
		}
	}

	if sub.WelcomeSentAt == nil {
		if err := s.mailer.SendWelcome(ctx, email); err != nil {
			telemetry.ObserveSubscribe(telemetry.OutcomeError)
			span.RecordError(err)
			span.SetStatus(codes.Error, "send welcome email")
			return Result{}, analytics.Internal("send welcome email", err)
		}
		sentAt := s.clock.Now()
		if err := s.store.Patch(ctx, id, analytics.SubscriberPatch{WelcomeSentAt: &sentAt}); err != nil {
			telemetry.ObserveSubscribe(telemetry.OutcomeError)
			span.RecordError(err)
			span.SetStatus(codes.Error, "mark welcome sent")
			return Result{}, analytics.Internal("mark welcome sent", err)
		}
		res.WelcomeSent = true
		telemetry.ObserveWelcomeSent()
		logger.Info("welcome email sent")
	}

	span.SetAttributes(
		attribute.Bool("calis.created", created),
		attribute.Bool("calis.welcome_sent", res.WelcomeSent),
	)
	if created {
		telemetry.ObserveSubscribe(telemetry.OutcomeCreated)
	} else {
		telemetry.ObserveSubscribe(telemetry.OutcomeExisting)
	}
	return res, nil
}

// backfillPatch fills ip and user agent only where the stored document lacks them.
func backfillPatch(sub analytics.Subscriber, ip, ua string) analytics.SubscriberPatch {
	var patch analytics.SubscriberPatch
	if sub.IP == "" && ip != "" {
		patch.IP = &ip
	}
	if sub.UserAgent == "" && ua != "" {
		patch.UserAgent = &ua
	}
	return patch
}
