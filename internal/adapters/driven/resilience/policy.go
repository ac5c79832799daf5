// Package resilience wraps collaborators with rate limiting and retry.
//
// Every call first waits on a shared token bucket, then runs. Failures that
// wrap domain.ErrTransient are retried with exponential backoff; any other
// failure is returned at once. Callers see the last error after the retries
// are spent.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/logger"
)

// MaxBackoff caps the delay between two attempts.
const MaxBackoff = 10 * time.Second

// Policy decides how often and how fast a collaborator is called.
type Policy struct {
	// Retries is the number of extra attempts after the first failure.
	Retries int

	// Backoff is the delay before the first retry. It doubles on each retry.
	Backoff time.Duration

	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewPolicy builds a policy. A non-positive perSecond disables rate limiting.
func NewPolicy(retries int, backoff time.Duration, perSecond float64) *Policy {
	p := &Policy{
		Retries: max(retries, 0),
		Backoff: backoff,
		sleep:   sleepCtx,
	}
	if perSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
	}
	return p
}

// PolicyFromSettings builds a policy from the orchestrator settings.
func PolicyFromSettings(s domain.Settings, perSecond float64) *Policy {
	return NewPolicy(s.CollaboratorRetries, s.RetryBackoff, perSecond)
}

// Do runs fn under the policy. op names the call in logs.
func (p *Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := p.Backoff
	var err error
	for attempt := 0; ; attempt++ {
		if p.limiter != nil {
			if werr := p.limiter.Wait(ctx); werr != nil {
				return fmt.Errorf("%s: rate limit wait: %w", op, werr)
			}
		}

		err = fn(ctx)
		if err == nil || !errors.Is(err, domain.ErrTransient) || attempt >= p.Retries {
			return err
		}

		logger.Debug("%s failed (attempt %d/%d), retrying in %s: %v", op, attempt+1, p.Retries+1, backoff, err)
		if serr := p.sleep(ctx, backoff); serr != nil {
			return errors.Join(err, serr)
		}
		backoff = min(backoff*2, MaxBackoff)
	}
}

// call runs fn under the policy and returns its value.
func call[T any](ctx context.Context, p *Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
