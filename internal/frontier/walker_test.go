package frontier

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakePage is the content a fakeDriver serves for one URL.
type fakePage struct {
	text    string
	anchors []Anchor
	noBody  bool
	navErr  error
}

// fakeDriver serves canned pages and records every navigation.
type fakeDriver struct {
	mu       sync.Mutex
	pages    map[string]fakePage
	fallback fakePage
	current  fakePage
	visited  []string
	started  bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{pages: map[string]fakePage{}}
}

func (d *fakeDriver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = true
	d.visited = append(d.visited, url)
	page, ok := d.pages[url]
	if !ok {
		page = d.fallback
	}
	if page.navErr != nil {
		return page.navErr
	}
	d.current = page
	return nil
}

func (d *fakeDriver) TextSlice(_ context.Context, offset, length int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current.noBody || offset >= len(d.current.text) {
		return "", nil
	}
	end := min(offset+length, len(d.current.text))
	return d.current.text[offset:end], nil
}

func (d *fakeDriver) Anchors(context.Context) ([]Anchor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current.noBody {
		return nil, nil
	}
	return d.current.anchors, nil
}

func (d *fakeDriver) Started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

func (d *fakeDriver) navigations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.visited...)
}

func newTestWalker(t *testing.T, driver *fakeDriver, cfg WalkerConfig) *Walker {
	t.Helper()
	w, err := NewWalker(zaptest.NewLogger(t), New(100), newTestExplorer(t, 0, 3), driver, cfg)
	require.NoError(t, err)
	w.sleep = func(context.Context, time.Duration) {}
	return w
}

func TestWalker_EndToEndExplorationThenEstimate(t *testing.T) {
	driver := newFakeDriver()
	driver.fallback = fakePage{
		text: "Welcome to our developer portal.",
		anchors: []Anchor{
			{Href: "https://portal.example/openapi.yaml", Text: "API\n   schema"},
			{Href: "https://portal.example/about", Text: "About"},
		},
	}
	w := newTestWalker(t, driver, WalkerConfig{PageSize: 500, MaxPages: 5})
	ctx := context.Background()

	visit, err := w.Step(ctx, map[string]LinkRecord{})
	require.NoError(t, err)

	navs := driver.navigations()
	require.Len(t, navs, 1)
	assert.Regexp(t, regexp.MustCompile(`^http://[a-z]+\.(com|org|io)$`), navs[0])
	assert.Equal(t, navs[0], visit.URL)
	assert.Equal(t, "Welcome to our developer portal.", visit.Text)
	require.Len(t, visit.Links, 2)
	assert.Equal(t, LinkRecord{URL: "https://portal.example/openapi.yaml", AnchorText: "API schema", Relevance: 0}, visit.Links[0])

	u := visit.Links[0].URL
	w.Merge(map[string]LinkRecord{u: {Relevance: 90}})
	assert.Equal(t, u, w.SelectNext())

	status := w.Status()
	assert.True(t, status.AutomationActive)
	assert.True(t, status.PageLoaded)
	assert.Equal(t, navs[0], status.CurrentURL)
}

func TestWalker_TextPagination(t *testing.T) {
	driver := newFakeDriver()
	long := make([]byte, 1234)
	for i := range long {
		long[i] = byte('a' + i%26)
	}
	driver.pages["https://long.example/"] = fakePage{text: string(long)}
	driver.pages["https://short.example/"] = fakePage{text: "tiny"}

	w := newTestWalker(t, driver, WalkerConfig{PageSize: 100, MaxPages: 5})

	visit, err := w.Visit(context.Background(), "https://long.example/")
	require.NoError(t, err)
	assert.Equal(t, string(long[:500]), visit.Text, "text is capped at MaxPages pages")

	visit, err = w.Visit(context.Background(), "https://short.example/")
	require.NoError(t, err)
	assert.Equal(t, "tiny", visit.Text, "extraction stops at the first empty page")
}

func TestWalker_AbsentBody(t *testing.T) {
	driver := newFakeDriver()
	driver.pages["https://blank.example/"] = fakePage{noBody: true}
	w := newTestWalker(t, driver, WalkerConfig{PageSize: 500, MaxPages: 5})

	visit, err := w.Visit(context.Background(), "https://blank.example/")
	require.NoError(t, err)
	assert.Equal(t, "", visit.Text)
	require.NotNil(t, visit.Links)
	assert.Empty(t, visit.Links)
}

func TestWalker_NavigationTimeout(t *testing.T) {
	driver := newFakeDriver()
	driver.pages["https://slow.example/"] = fakePage{navErr: fmt.Errorf("load: %w", context.DeadlineExceeded)}
	driver.pages["https://slower.example/"] = fakePage{navErr: fmt.Errorf("%w after 60s", ErrNavigationTimeout)}
	w := newTestWalker(t, driver, WalkerConfig{PageSize: 500, MaxPages: 5})

	_, err := w.Visit(context.Background(), "https://slow.example/")
	assert.ErrorIs(t, err, ErrNavigationTimeout, "a bare deadline is reported as a navigation timeout")
	assert.ErrorIs(t, err, context.DeadlineExceeded, "the deadline stays in the chain")

	_, err = w.Visit(context.Background(), "https://slower.example/")
	assert.ErrorIs(t, err, ErrNavigationTimeout)

	assert.False(t, w.Status().PageLoaded)
	_, visited, ok := w.Frontier().Lookup("https://slow.example/")
	require.True(t, ok)
	assert.True(t, visited, "a failed URL is not selected again")
}

func TestWalker_NavigationErrorIsNotATimeout(t *testing.T) {
	driver := newFakeDriver()
	driver.pages["https://gone.example/"] = fakePage{navErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	w := newTestWalker(t, driver, WalkerConfig{PageSize: 500, MaxPages: 5})

	_, err := w.Visit(context.Background(), "https://gone.example/")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNavigationTimeout)
}

func TestWalker_StepPrefersEstimates(t *testing.T) {
	driver := newFakeDriver()
	w := newTestWalker(t, driver, WalkerConfig{PageSize: 500, MaxPages: 1})

	_, err := w.Step(context.Background(), map[string]LinkRecord{
		"https://low.example/":  {Relevance: 10},
		"https://high.example/": {Relevance: 80},
	})
	require.NoError(t, err)
	_, err = w.Step(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://high.example/", "https://low.example/"}, driver.navigations())
}

func TestWalker_SettleDelayBounded(t *testing.T) {
	driver := newFakeDriver()
	w := newTestWalker(t, driver, WalkerConfig{PageSize: 10, MaxPages: 1, SettleMax: 30 * time.Millisecond})

	var slept []time.Duration
	w.sleep = func(_ context.Context, d time.Duration) { slept = append(slept, d) }

	for i := 0; i < 50; i++ {
		_, err := w.Visit(context.Background(), fmt.Sprintf("https://p%d.example/", i))
		require.NoError(t, err)
	}
	for _, d := range slept {
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 30*time.Millisecond)
	}
}

func TestNewWalker_Validation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	explorer := newTestExplorer(t, 0, 1)

	_, err := NewWalker(logger, nil, explorer, newFakeDriver(), WalkerConfig{PageSize: 1, MaxPages: 1})
	assert.Error(t, err)

	_, err = NewWalker(logger, New(0), explorer, newFakeDriver(), WalkerConfig{PageSize: 0, MaxPages: 1})
	assert.ErrorContains(t, err, "must be positive")
}

func TestLinksFromAnchors(t *testing.T) {
	links := linksFromAnchors([]Anchor{
		{Href: "https://a.example/x#top", Text: " A "},
		{Href: "https://a.example/x", Text: "dup"},
		{Href: "mailto:x@example.com", Text: "mail"},
		{Href: "javascript:void(0)", Text: "js"},
		{Href: "http://b.example/", Text: "B"},
	})
	assert.Equal(t, []LinkRecord{
		{URL: "https://a.example/x", AnchorText: "A"},
		{URL: "http://b.example/", AnchorText: "B"},
	}, links)
}
