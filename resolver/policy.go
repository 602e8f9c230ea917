package resolver

import (
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/use-agent/gnresolver/config"
)

// Policy holds the retry/backoff constants.
type Policy struct {
	// MaxAttempts is the attempt budget (>= 1).
	MaxAttempts int

	// BaseDelay is the backoff unit; the wait before attempt n is
	// BaseDelay * 2^(n-1) plus jitter.
	BaseDelay time.Duration

	// MaxJitter is the exclusive upper bound of the uniform jitter.
	MaxJitter time.Duration

	// RetryStatuses are the upstream statuses worth another attempt.
	RetryStatuses []int

	// RetryNavigationErrors retries attempts whose page load returned an
	// error instead of treating the error as fatal.
	RetryNavigationErrors bool
}

// DefaultPolicy returns 4 attempts, 800ms base delay, 400ms jitter and
// retries on 429/503 only.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   4,
		BaseDelay:     800 * time.Millisecond,
		MaxJitter:     400 * time.Millisecond,
		RetryStatuses: []int{http.StatusTooManyRequests, http.StatusServiceUnavailable},
	}
}

// PolicyFromConfig builds a Policy from the resolver config.
func PolicyFromConfig(cfg config.ResolverConfig) Policy {
	p := DefaultPolicy()
	p.MaxAttempts = cfg.MaxAttempts
	p.BaseDelay = cfg.BaseDelay
	p.MaxJitter = cfg.MaxJitter
	p.RetryNavigationErrors = cfg.RetryNavigationErrors
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	return p
}

// Retryable reports whether status is one of the retryable statuses.
// A nil status (no response observed) is not retryable.
func (p Policy) Retryable(status *int) bool {
	if status == nil {
		return false
	}
	for _, s := range p.RetryStatuses {
		if *status == s {
			return true
		}
	}
	return false
}

// BaseBackoff is the jitter-free delay before attempt (1-based).
// Attempt 1 never waits. The result saturates instead of overflowing.
func (p Policy) BaseBackoff(attempt int) time.Duration {
	if attempt <= 1 || p.BaseDelay <= 0 {
		return 0
	}
	shift := attempt - 1
	if shift >= 63 || p.BaseDelay > math.MaxInt64>>shift {
		return math.MaxInt64
	}
	return p.BaseDelay << shift
}

// Backoff is BaseBackoff plus a jitter drawn uniformly from [0, MaxJitter).
func (p Policy) Backoff(attempt int, jitter func(n int64) int64) time.Duration {
	base := p.BaseBackoff(attempt)
	if attempt <= 1 || p.MaxJitter <= 0 {
		return base
	}
	if jitter == nil {
		jitter = rand.Int64N
	}
	j := time.Duration(jitter(int64(p.MaxJitter)))
	if base > math.MaxInt64-j {
		return math.MaxInt64
	}
	return base + j
}
