// Package browser drives one isolated Chromium session per resolution
// attempt and reports what the page did.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/gnresolver/config"
	"github.com/use-agent/gnresolver/extractor"
	"github.com/use-agent/gnresolver/models"
)

// Loader loads a target URL and returns the observed page state.
type Loader interface {
	Load(ctx context.Context, targetURL string) (*models.PageState, error)
}

const (
	// idleWindow is how long the network must stay quiet to count as idle.
	idleWindow = 500 * time.Millisecond

	// domStableWindow and domStableDiff drive WaitDOMStable when requests
	// are hijacked.
	domStableWindow = 300 * time.Millisecond
	domStableDiff   = 0.1
)

// statusJS reads the HTTP status of the document's navigation response.
const statusJS = `() => {
	try {
		const entries = performance.getEntriesByType("navigation");
		if (entries.length > 0) return entries[0].responseStatus || 0;
	} catch(e) {}
	return 0;
}`

// RodLoader launches a fresh browser process for every Load call.
// Nothing is shared between calls.
type RodLoader struct {
	browserCfg  config.BrowserConfig
	resolverCfg config.ResolverConfig
	blocked     map[proto.NetworkResourceType]struct{}

	// released is called once per session after teardown.
	released func()
}

// NewRodLoader creates a RodLoader. No browser is started until Load.
func NewRodLoader(browserCfg config.BrowserConfig, resolverCfg config.ResolverConfig) *RodLoader {
	return &RodLoader{
		browserCfg:  browserCfg,
		resolverCfg: resolverCfg,
		blocked:     blockedSet(browserCfg.BlockedResourceTypes),
	}
}

// Load runs one attempt against targetURL.
//
// Lifecycle:
//
//  1. Launch          – new Chromium process + incognito context + page
//  2. DEFER: release  – page, context, connection, process (always)
//  3. Emulation       – user agent, locale, timezone, Accept-Language
//  4. Hijack mount    – abort image/font/media loads (before navigation!)
//  5. Navigate        – bounded by NavigationTimeout, waits for DOMContentLoaded
//  6. Status          – initial navigation response status (best-effort)
//  7. Redirect pause  – unconditional, lets client-side redirects run
//  8. Idle wait       – best-effort network idle or DOM stable, bounded by IdleTimeout
//  9. Capture         – final URL + DOM snapshot
//
// A navigation failure is returned as a *models.ResolveError. Failures in
// steps 6–9 and in the release step are logged and discarded.
func (l *RodLoader) Load(ctx context.Context, targetURL string) (*models.PageState, error) {
	// ── 1. Launch ────────────────────────────────────────────────────
	s, err := l.open(ctx)
	if err != nil {
		return nil, err
	}

	// ── 2. CRITICAL DEFER: release every session resource ───────────
	defer s.close(ctx)

	page := s.page

	// ── 3. Emulation ─────────────────────────────────────────────────
	if err := l.emulate(page); err != nil {
		return nil, models.NewResolveError(models.ErrCodeBrowserLaunch, "failed to configure page emulation", err)
	}

	// ── 4. Hijack ────────────────────────────────────────────────────
	s.router = setupHijack(page, l.blocked)

	// ── 5. Navigate ──────────────────────────────────────────────────
	navCtx, navCancel := context.WithTimeout(ctx, l.resolverCfg.NavigationTimeout)
	defer navCancel()
	navPage := page.Context(navCtx)

	// Must be registered before Navigate or the lifecycle event is missed.
	waitDOM := navPage.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := navPage.Navigate(targetURL); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}
	waitDOM()
	if err := navCtx.Err(); err != nil {
		return nil, categorizeError(err, "timed out waiting for DOMContentLoaded")
	}

	p := page.Context(ctx)

	// ── 6. Status (best-effort) ──────────────────────────────────────
	status := navigationStatus(p)

	// ── 7. Redirect pause ────────────────────────────────────────────
	if err := sleepCtx(ctx, l.resolverCfg.RedirectPause); err != nil {
		return nil, categorizeError(err, "canceled during redirect pause")
	}

	// ── 8. Idle wait (best-effort) ───────────────────────────────────
	l.waitIdle(ctx, page, s.router != nil)

	// ── 9. Capture ───────────────────────────────────────────────────
	finalURL := currentURL(p, targetURL)
	state := &models.PageState{
		FinalURL:   finalURL,
		HTTPStatus: status,
	}
	if rawHTML, err := p.HTML(); err != nil {
		bestEffort(ctx, "snapshot DOM", err)
	} else if doc, err := extractor.NewDocument(rawHTML, finalURL); err != nil {
		bestEffort(ctx, "parse DOM snapshot", err)
	} else {
		state.Links = doc
	}

	slog.DebugContext(ctx, "page loaded",
		"target", targetURL,
		"final_url", finalURL,
		"status", derefStatus(status),
	)
	return state, nil
}

// open launches the browser and creates an isolated page. On failure every
// resource acquired so far is released before returning.
func (l *RodLoader) open(ctx context.Context) (*session, error) {
	s := &session{onClose: l.released}
	opened := false
	defer func() {
		if !opened {
			s.close(ctx)
		}
	}()

	lc := launcher.New().
		Context(ctx).
		Headless(l.browserCfg.Headless).
		NoSandbox(l.browserCfg.NoSandbox)

	if l.browserCfg.BrowserBin != "" {
		lc = lc.Bin(l.browserCfg.BrowserBin)
	}
	if l.browserCfg.Proxy != "" {
		lc = lc.Proxy(l.browserCfg.Proxy)
	}

	lc.Set(flags.Flag("disable-dev-shm-usage"))
	lc.Set(flags.Flag("disable-gpu"))
	lc.Set(flags.Flag("disable-extensions"))
	lc.Set(flags.Flag("disable-component-update"))
	lc.Set(flags.Flag("disable-default-apps"))
	lc.Set(flags.Flag("no-first-run"))
	if l.browserCfg.Locale != "" {
		lc.Set(flags.Flag("lang"), l.browserCfg.Locale)
	}

	controlURL, err := lc.Launch()
	if err != nil {
		return nil, models.NewResolveError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
	}
	s.launcher = lc

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, models.NewResolveError(models.ErrCodeBrowserLaunch, "failed to connect to browser", err)
	}
	s.browser = b

	incognito, err := b.Incognito()
	if err != nil {
		return nil, models.NewResolveError(models.ErrCodeBrowserLaunch, "failed to create incognito context", err)
	}
	s.incognito = incognito

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewResolveError(models.ErrCodeBrowserLaunch, "failed to open page", err)
	}
	s.page = page

	opened = true
	return s, nil
}

// emulate applies the fixed user agent, locale, timezone and headers.
func (l *RodLoader) emulate(page *rod.Page) error {
	lang := acceptLanguage(l.browserCfg.Locale)
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      l.browserCfg.UserAgent,
		AcceptLanguage: lang,
	}); err != nil {
		return err
	}
	if l.browserCfg.Locale != "" {
		if err := (proto.EmulationSetLocaleOverride{Locale: l.browserCfg.Locale}).Call(page); err != nil {
			return err
		}
	}
	if l.browserCfg.Timezone != "" {
		if err := (proto.EmulationSetTimezoneOverride{TimezoneID: l.browserCfg.Timezone}).Call(page); err != nil {
			return err
		}
	}
	return proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{"Accept-Language": lang}),
	}.Call(page)
}

// waitIdle waits for the page to settle, giving up after IdleTimeout.
// Reaching the timeout is expected on busy pages and is not an error.
//
// WaitRequestIdle and HijackRequests both claim the Fetch domain, which
// recent Chromium rejects, so with a hijack router mounted the wait falls
// back to WaitDOMStable.
func (l *RodLoader) waitIdle(ctx context.Context, page *rod.Page, hijacked bool) {
	if l.resolverCfg.IdleTimeout <= 0 {
		return
	}
	idleCtx, cancel := context.WithTimeout(ctx, l.resolverCfg.IdleTimeout)
	defer cancel()
	p := page.Context(idleCtx)

	if hijacked {
		if err := p.WaitDOMStable(domStableWindow, domStableDiff); err != nil {
			slog.DebugContext(ctx, "DOM did not settle, proceeding with current page",
				"error", err,
			)
		}
		return
	}

	wait := p.WaitRequestIdle(idleWindow, nil, nil, nil)
	wait()
	if errors.Is(idleCtx.Err(), context.DeadlineExceeded) {
		slog.DebugContext(ctx, "network idle wait timed out, proceeding with current page",
			"timeout", l.resolverCfg.IdleTimeout,
		)
	}
}

// navigationStatus returns the document's response status, nil if unknown.
func navigationStatus(p *rod.Page) *int {
	res, err := p.Eval(statusJS)
	if err != nil {
		slog.Debug("navigation status unavailable", "error", err)
		return nil
	}
	if code := res.Value.Int(); code > 0 {
		return &code
	}
	return nil
}

// currentURL reads window.location.href, falling back to the target info
// and finally to the URL that was requested.
func currentURL(p *rod.Page, fallback string) string {
	if href := evalStringOrEmpty(p, `() => window.location.href`); href != "" {
		return href
	}
	if info, err := p.Info(); err == nil && info.URL != "" {
		return info.URL
	}
	return fallback
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
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

func derefStatus(s *int) int {
	if s == nil {
		return 0
	}
	return *s
}
