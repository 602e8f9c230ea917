package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Resolver  ResolverConfig
	Gate      GateConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3000
	Mode string // "debug", "release", "test"; default: "release"

	// MaxBodyBytes caps the request body size.
	MaxBodyBytes int64 // default: 1MB

	// ShutdownTimeout is how long in-flight resolutions may drain on
	// SIGINT/SIGTERM before they are aborted.
	ShutdownTimeout time.Duration // default: 30s
}

// BrowserConfig controls each per-attempt Chromium session.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in containers).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is an optional upstream proxy for the browser.
	Proxy string

	// UserAgent is the fixed desktop user agent presented to the upstream.
	UserAgent string

	// Locale is the navigator language and Accept-Language value.
	Locale string // default: "en-US"

	// Timezone is the emulated IANA timezone.
	Timezone string // default: "America/New_York"

	// BlockedResourceTypes lists resource types aborted before they load.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// ResolverConfig controls page loading and the retry/backoff loop.
type ResolverConfig struct {
	// NavigationTimeout bounds page.Navigate plus DOMContentLoaded.
	NavigationTimeout time.Duration // default: 30s

	// RedirectPause is the unconditional wait for client-side redirect scripts.
	RedirectPause time.Duration // default: 1.5s

	// IdleTimeout bounds the best-effort network idle wait.
	IdleTimeout time.Duration // default: 8s

	// MaxAttempts is the attempt budget per resolution.
	MaxAttempts int // default: 4

	// BaseDelay is the backoff unit; attempt n waits BaseDelay*2^(n-1).
	BaseDelay time.Duration // default: 800ms

	// MaxJitter is the exclusive upper bound of the random jitter.
	MaxJitter time.Duration // default: 400ms

	// RetryNavigationErrors retries attempts whose navigation failed outright.
	RetryNavigationErrors bool // default: false
}

// GateConfig controls the in-process concurrency gate.
type GateConfig struct {
	// Capacity is the number of resolutions allowed in flight.
	Capacity int // default: 1
}

// RateLimitConfig controls opt-in per-client rate limiting on /resolve.
// The gate already queues resolutions, so by default nothing is rejected.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client IP. 0 disables.
	RequestsPerSecond float64 // default: 0 (disabled)

	// Burst is the maximum burst size per client IP.
	Burst int // default: 5
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// MaxAttemptsLimit bounds RESOLVER_MAX_ATTEMPTS so exponential backoff
// stays representable.
const MaxAttemptsLimit = 16

// DefaultUserAgent is a current desktop Chrome on Windows.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         envOr("HOST", "0.0.0.0"),
			Port:         envIntOr("PORT", 3000),
			Mode:         envOr("GIN_MODE", "release"),
			MaxBodyBytes: int64(envIntOr("MAX_BODY_BYTES", 1<<20)),

			ShutdownTimeout: envDurationOr("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("BROWSER_HEADLESS", true),
			NoSandbox:  envBoolOr("BROWSER_NO_SANDBOX", true),
			BrowserBin: os.Getenv("BROWSER_BIN"),
			Proxy:      os.Getenv("BROWSER_PROXY"),
			UserAgent:  envOr("BROWSER_USER_AGENT", DefaultUserAgent),
			Locale:     envOr("BROWSER_LOCALE", "en-US"),
			Timezone:   envOr("BROWSER_TIMEZONE", "America/New_York"),
			BlockedResourceTypes: envSliceOr("BROWSER_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Resolver: ResolverConfig{
			NavigationTimeout:     envDurationOr("RESOLVER_NAV_TIMEOUT", 30*time.Second),
			RedirectPause:         envDurationOr("RESOLVER_REDIRECT_PAUSE", 1500*time.Millisecond),
			IdleTimeout:           envDurationOr("RESOLVER_IDLE_TIMEOUT", 8*time.Second),
			MaxAttempts:           envIntOr("RESOLVER_MAX_ATTEMPTS", 4),
			BaseDelay:             envDurationOr("RESOLVER_BASE_DELAY", 800*time.Millisecond),
			MaxJitter:             envDurationOr("RESOLVER_MAX_JITTER", 400*time.Millisecond),
			RetryNavigationErrors: envBoolOr("RESOLVER_RETRY_NAV_ERRORS", false),
		},
		Gate: GateConfig{
			Capacity: envIntOr("GATE_CAPACITY", 1),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("RESOLVER_RATE_RPS", 0),
			Burst:             envIntOr("RESOLVER_RATE_BURST", 5),
		},
		Log: LogConfig{
			Level:  envOr("LOG_LEVEL", "info"),
			Format: envOr("LOG_FORMAT", "json"),
		},
	}
}

// Validate rejects configurations the resolver cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Server.Port))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", c.Server.MaxBodyBytes))
	}
	if c.Resolver.MaxAttempts < 1 || c.Resolver.MaxAttempts > MaxAttemptsLimit {
		errs = append(errs, fmt.Errorf("RESOLVER_MAX_ATTEMPTS must be in [1, %d], got %d", MaxAttemptsLimit, c.Resolver.MaxAttempts))
	}
	if c.Resolver.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("RESOLVER_NAV_TIMEOUT must be positive"))
	}
	if c.Resolver.BaseDelay < 0 || c.Resolver.MaxJitter < 0 {
		errs = append(errs, errors.New("RESOLVER_BASE_DELAY and RESOLVER_MAX_JITTER must not be negative"))
	}
	if c.Gate.Capacity < 1 {
		errs = append(errs, fmt.Errorf("GATE_CAPACITY must be >= 1, got %d", c.Gate.Capacity))
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("RESOLVER_RATE_RPS must not be negative"))
	}
	return errors.Join(errs...)
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
