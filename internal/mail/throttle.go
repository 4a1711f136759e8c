package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/Imziyasser00/calis-blog-sub001/internal/analytics"
	"github.com/Imziyasser00/calis-blog-sub001/internal/telemetry"
)

// Waiter blocks until a send for key is allowed.
type Waiter interface {
	Wait(ctx context.Context, key string) (time.Duration, error)
}

// throttleKey is the single bucket every welcome mail draws from. The
// provider quota is account-wide, so recipients must not widen it.
const throttleKey = "welcome"

// Throttled delays each send until the limiter grants a token.
type Throttled struct {
	next    analytics.Mailer
	limiter Waiter
}

// NewThrottled wraps next.
func NewThrottled(next analytics.Mailer, limiter Waiter) *Throttled {
	return &Throttled{next: next, limiter: limiter}
}

// SendWelcome waits for a token and then delegates.
func (t *Throttled) SendWelcome(ctx context.Context, email string) error {
	waited, err := t.limiter.Wait(ctx, throttleKey)
	if err != nil {
		return fmt.Errorf("mail throttle: %w", err)
	}
	if waited > time.Millisecond {
		telemetry.ObserveMailThrottleDelay(waited)
	}
	return t.next.SendWelcome(ctx, email)
}
