package browser

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/gnresolver/models"
	"github.com/ysmood/gson"
)

// session is everything one attempt acquires. Fields are filled in as
// resources are acquired so close can release a partially opened session.
// launcher is only set once the process has started.
type session struct {
	launcher  *launcher.Launcher
	browser   *rod.Browser
	incognito *rod.Browser
	page      *rod.Page
	router    *rod.HijackRouter

	// onClose, if set, runs after everything has been released.
	onClose func()
}

// close releases the session in reverse acquisition order. It never
// returns an error: each failure goes through bestEffort so a teardown
// problem cannot mask the attempt's result.
func (s *session) close(ctx context.Context) {
	if s.router != nil {
		bestEffort(ctx, "stop hijack router", s.router.Stop())
	}
	if s.page != nil {
		bestEffort(ctx, "close page", s.page.Close())
	}
	if s.incognito != nil {
		bestEffort(ctx, "dispose incognito context", s.incognito.Close())
	}
	closed := false
	if s.browser != nil {
		err := s.browser.Close()
		bestEffort(ctx, "close browser", err)
		closed = err == nil
	}
	if s.launcher != nil {
		// Cleanup blocks until the process exits, so make sure it will.
		if !closed {
			s.launcher.Kill()
		}
		s.launcher.Cleanup()
	}
	if s.onClose != nil {
		s.onClose()
	}
}

// bestEffort is the single place where sub-operation errors are dropped on
// purpose: the error is logged and discarded, never propagated.
func bestEffort(ctx context.Context, op string, err error) {
	if err == nil {
		return
	}
	slog.WarnContext(ctx, "best-effort operation failed", "op", op, "error", err)
}

// categorizeError wraps raw errors into typed ResolveErrors so callers can
// tell timeouts from other navigation failures.
func categorizeError(err error, msg string) *models.ResolveError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewResolveError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewResolveError(models.ErrCodeTimeout, "attempt canceled", err)
	default:
		return models.NewResolveError(models.ErrCodeNavigation, msg, err)
	}
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// acceptLanguage builds an Accept-Language value that prefers locale and
// then its base language, e.g. "en-US" -> "en-US,en;q=0.9".
func acceptLanguage(locale string) string {
	if locale == "" {
		return "en-US,en;q=0.9"
	}
	base, _, found := strings.Cut(locale, "-")
	if !found || base == "" {
		return locale
	}
	return locale + "," + base + ";q=0.9"
}
