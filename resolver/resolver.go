// Package resolver turns a Google News link into its publisher URL by
// running bounded, backed-off attempts of load-and-extract.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/gnresolver/browser"
	"github.com/use-agent/gnresolver/extractor"
	"github.com/use-agent/gnresolver/gate"
	"github.com/use-agent/gnresolver/metrics"
	"github.com/use-agent/gnresolver/models"
	"github.com/use-agent/gnresolver/normalizer"
)

// Resolver runs the resolution pipeline:
// gate -> (normalize -> [backoff] -> load -> extract) * attempts.
// It is safe for concurrent use.
type Resolver struct {
	loader  browser.Loader
	gate    *gate.Gate
	policy  Policy
	metrics *metrics.Metrics

	// Overridable in tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(n int64) int64
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithMetrics records attempts and resolutions into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithSleep replaces the backoff sleep.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Resolver) { r.sleep = sleep }
}

// WithJitter replaces the jitter source; it must return a value in [0, n).
func WithJitter(jitter func(n int64) int64) Option {
	return func(r *Resolver) { r.jitter = jitter }
}

// New creates a Resolver. A nil gate disables concurrency limiting.
func New(loader browser.Loader, g *gate.Gate, policy Policy, opts ...Option) *Resolver {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	r := &Resolver{
		loader: loader,
		gate:   g,
		policy: policy,
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve waits for the gate, then runs up to MaxAttempts attempts.
//
// It stops on the first attempt that yields a URL, on the first attempt
// whose upstream status is not retryable, or when the budget is spent. The
// last attempt's result is returned; earlier ones are only logged.
//
// A page-load error ends the resolution with that error unless the policy
// retries navigation errors, in which case only an error on the final
// attempt is returned.
func (r *Resolver) Resolve(ctx context.Context, googleNewsURL string) (*models.ResolveOutcome, error) {
	if r.gate != nil {
		waitStart := time.Now()
		release, err := r.gate.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		r.metrics.ObserveGateWait(time.Since(waitStart))
		r.metrics.SetGateActive(r.gate.Active())
		defer func() {
			release()
			r.metrics.SetGateActive(r.gate.Active())
		}()
	}

	outcome, err := r.attempts(ctx, normalizer.Normalize(googleNewsURL))
	if err != nil {
		r.metrics.ObserveResolution("error", "error")
		return nil, err
	}
	r.metrics.ObserveResolution(string(outcome.Method), outcomeLabel(outcome))
	return outcome, nil
}

func (r *Resolver) attempts(ctx context.Context, targetURL string) (*models.ResolveOutcome, error) {
	var last models.AttemptResult

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.policy.Backoff(attempt, r.jitter)
			slog.InfoContext(ctx, "backing off before next attempt",
				"attempt", attempt,
				"delay", delay,
			)
			if err := r.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("resolver: backoff interrupted: %w", err)
			}
		}

		start := time.Now()
		state, err := r.loader.Load(ctx, targetURL)
		if err != nil {
			r.metrics.ObserveAttempt("error", nil, time.Since(start))
			slog.WarnContext(ctx, "attempt failed",
				"attempt", attempt,
				"target", targetURL,
				"error", err,
			)
			if r.policy.RetryNavigationErrors && attempt < r.policy.MaxAttempts && !isCanceled(err) {
				continue
			}
			return nil, err
		}

		last = extractor.Extract(state)
		outcome := &models.ResolveOutcome{AttemptResult: last, Attempt: attempt, TargetURL: targetURL}

		switch {
		case last.Resolved():
			r.metrics.ObserveAttempt("resolved", last.HTTPStatus, time.Since(start))
			slog.InfoContext(ctx, "resolved",
				"attempt", attempt,
				"method", last.Method,
				"resolved_url", *last.ResolvedURL,
			)
			return outcome, nil

		case r.policy.Retryable(last.HTTPStatus) && attempt < r.policy.MaxAttempts:
			r.metrics.ObserveAttempt("retry", last.HTTPStatus, time.Since(start))
			slog.WarnContext(ctx, "upstream throttled, will retry",
				"attempt", attempt,
				"status", *last.HTTPStatus,
			)

		default:
			r.metrics.ObserveAttempt("stop", last.HTTPStatus, time.Since(start))
			slog.InfoContext(ctx, "no outbound link found",
				"attempt", attempt,
				"status", statusAttr(last.HTTPStatus),
				"final_url", strAttr(last.FinalURL),
			)
			return outcome, nil
		}
	}

	// The final attempt always returns from inside the loop.
	return &models.ResolveOutcome{AttemptResult: last, Attempt: r.policy.MaxAttempts, TargetURL: targetURL}, nil
}

func outcomeLabel(o *models.ResolveOutcome) string {
	switch {
	case o.Resolved():
		return "resolved"
	case o.Blocked():
		return "blocked"
	default:
		return "unresolved"
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func statusAttr(s *int) any {
	if s == nil {
		return nil
	}
	return *s
}

func strAttr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
