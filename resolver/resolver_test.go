package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/gnresolver/gate"
	"github.com/use-agent/gnresolver/metrics"
	"github.com/use-agent/gnresolver/models"
)

// staticLinks serves the same hrefs for every selector.
type staticLinks []string

func (s staticLinks) Hrefs(string) []string { return s }

// scriptedLoader returns one scripted step per Load call.
type scriptedLoader struct {
	mu    sync.Mutex
	steps []step
	calls int
	urls  []string
}

type step struct {
	state *models.PageState
	err   error
}

func (l *scriptedLoader) Load(_ context.Context, targetURL string) (*models.PageState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.urls = append(l.urls, targetURL)
	i := l.calls
	l.calls++
	if i >= len(l.steps) {
		i = len(l.steps) - 1
	}
	return l.steps[i].state, l.steps[i].err
}

func (l *scriptedLoader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

const wrapperURL = "https://news.google.com/rss/articles/CBMiXYZ?oc=5"

func googlePage(status int) step {
	return step{state: &models.PageState{
		FinalURL:   "https://news.google.com/articles/CBMiXYZ?oc=5",
		HTTPStatus: models.IntPtr(status),
		Links:      staticLinks(nil),
	}}
}

// recordSleep captures backoff delays without waiting.
type recordSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordSleep) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func newTestResolver(l *scriptedLoader, p Policy, sl *recordSleep) *Resolver {
	return New(l, gate.New(1), p,
		WithSleep(sl.sleep),
		WithJitter(func(int64) int64 { return 0 }),
		WithMetrics(metrics.New()),
	)
}

func TestResolve_RetriesThrottledThenStops(t *testing.T) {
	l := &scriptedLoader{steps: []step{googlePage(429), googlePage(503), googlePage(200)}}
	sl := &recordSleep{}
	r := newTestResolver(l, DefaultPolicy(), sl)

	out, err := r.Resolve(context.Background(), wrapperURL)
	require.NoError(t, err)

	assert.Equal(t, 3, l.Calls())
	assert.Equal(t, 3, out.Attempt)
	assert.Equal(t, models.MethodNone, out.Method)
	assert.Nil(t, out.ResolvedURL)
	require.NotNil(t, out.HTTPStatus)
	assert.Equal(t, 200, *out.HTTPStatus)
	assert.False(t, out.Blocked())
	assert.Equal(t, []time.Duration{1600 * time.Millisecond, 3200 * time.Millisecond}, sl.delays)
}

func TestResolve_ExhaustsBudgetOnPersistent429(t *testing.T) {
	l := &scriptedLoader{steps: []step{googlePage(429)}}
	sl := &recordSleep{}
	r := newTestResolver(l, DefaultPolicy(), sl)

	out, err := r.Resolve(context.Background(), wrapperURL)
	require.NoError(t, err)

	assert.Equal(t, 4, l.Calls(), "no fifth attempt")
	assert.Equal(t, 4, out.Attempt)
	assert.True(t, out.Blocked())
	assert.Len(t, sl.delays, 3)
}

func TestResolve_FastPathFirstAttempt(t *testing.T) {
	l := &scriptedLoader{steps: []step{{state: &models.PageState{
		FinalURL:   "https://www.example.com/story",
		HTTPStatus: models.IntPtr(200),
	}}}}
	sl := &recordSleep{}
	r := newTestResolver(l, DefaultPolicy(), sl)

	out, err := r.Resolve(context.Background(), wrapperURL)
	require.NoError(t, err)

	assert.Equal(t, 1, out.Attempt)
	assert.Equal(t, models.MethodFinalURL, out.Method)
	require.NotNil(t, out.ResolvedURL)
	assert.Equal(t, "https://www.example.com/story", *out.ResolvedURL)
	assert.Empty(t, sl.delays)
}

func TestResolve_DOMLinkAfterThrottle(t *testing.T) {
	ok := googlePage(200)
	ok.state.Links = staticLinks{"https://publisher.example/a"}
	l := &scriptedLoader{steps: []step{googlePage(429), ok}}
	r := newTestResolver(l, DefaultPolicy(), &recordSleep{})

	out, err := r.Resolve(context.Background(), wrapperURL)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Attempt)
	assert.Equal(t, models.MethodDOMLink, out.Method)
	assert.Equal(t, "https://publisher.example/a", *out.ResolvedURL)
}

func TestResolve_NormalizesOnce(t *testing.T) {
	l := &scriptedLoader{steps: []step{googlePage(429), googlePage(404)}}
	r := newTestResolver(l, DefaultPolicy(), &recordSleep{})

	out, err := r.Resolve(context.Background(), wrapperURL)
	require.NoError(t, err)

	want := "https://news.google.com/articles/CBMiXYZ?oc=5"
	assert.Equal(t, want, out.TargetURL)
	assert.Equal(t, []string{want, want}, l.urls)
}

func TestResolve_NavigationErrorIsFatalByDefault(t *testing.T) {
	navErr := models.NewResolveError(models.ErrCodeNavigation, "navigation to target URL failed", errors.New("net::ERR_NAME_NOT_RESOLVED"))
	l := &scriptedLoader{steps: []step{{err: navErr}, googlePage(200)}}
	r := newTestResolver(l, DefaultPolicy(), &recordSleep{})

	out, err := r.Resolve(context.Background(), wrapperURL)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 1, l.Calls())

	var re *models.ResolveError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, models.ErrCodeNavigation, re.Code)
}

func TestResolve_NavigationErrorRetriedWhenEnabled(t *testing.T) {
	navErr := errors.New("net::ERR_CONNECTION_RESET")
	ok := step{state: &models.PageState{FinalURL: "https://publisher.example/b"}}
	l := &scriptedLoader{steps: []step{{err: navErr}, ok}}
	p := DefaultPolicy()
	p.RetryNavigationErrors = true
	r := newTestResolver(l, p, &recordSleep{})

	out, err := r.Resolve(context.Background(), wrapperURL)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Attempt)
	assert.Equal(t, models.MethodFinalURL, out.Method)
}

func TestResolve_NavigationErrorOnLastAttemptIsReturned(t *testing.T) {
	navErr := errors.New("boom")
	l := &scriptedLoader{steps: []step{{err: navErr}}}
	p := DefaultPolicy()
	p.RetryNavigationErrors = true
	r := newTestResolver(l, p, &recordSleep{})

	_, err := r.Resolve(context.Background(), wrapperURL)
	require.ErrorIs(t, err, navErr)
	assert.Equal(t, 4, l.Calls())
}

func TestResolve_CanceledBackoff(t *testing.T) {
	l := &scriptedLoader{steps: []step{googlePage(429)}}
	r := New(l, gate.New(1), DefaultPolicy(),
		WithSleep(func(context.Context, time.Duration) error { return context.Canceled }),
	)

	_, err := r.Resolve(context.Background(), wrapperURL)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, l.Calls())
}

// blockingLoader tracks how many loads overlap.
type blockingLoader struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	hold     time.Duration
}

func (b *blockingLoader) Load(context.Context, string) (*models.PageState, error) {
	n := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		cur := b.maxSeen.Load()
		if n <= cur || b.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(b.hold)
	return &models.PageState{FinalURL: "https://publisher.example/c"}, nil
}

func TestResolve_GateSerializesResolutions(t *testing.T) {
	l := &blockingLoader{hold: 30 * time.Millisecond}
	r := New(l, gate.New(1), DefaultPolicy())

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve(context.Background(), wrapperURL)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), l.maxSeen.Load())
}

func TestResolve_GateAcquireCanceled(t *testing.T) {
	g := gate.New(1)
	release, err := g.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	l := &scriptedLoader{steps: []step{googlePage(200)}}
	r := New(l, g, DefaultPolicy())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Resolve(ctx, wrapperURL)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, l.Calls())
}
