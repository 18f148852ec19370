package frontier

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNavigationTimeout is returned when a page does not finish loading in time.
// It is recoverable: the caller may simply try another URL.
var ErrNavigationTimeout = errors.New("navigation timeout")

// Anchor is an <a> element found on a page. Href is absolute.
type Anchor struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// PageDriver is the browser session the Walker steers. Only the Walker calls
// it, and never concurrently for navigation.
type PageDriver interface {
	// Navigate loads url. A load that runs past the driver's timeout must
	// return an error wrapping ErrNavigationTimeout.
	Navigate(ctx context.Context, url string) error
	// TextSlice returns up to length characters of the page's visible text
	// starting at offset, or "" past the end or when there is no body.
	TextSlice(ctx context.Context, offset, length int) (string, error)
	// Anchors lists the page's links, or nothing when there is no body.
	Anchors(ctx context.Context) ([]Anchor, error)
	// Started reports whether the underlying browser is running.
	Started() bool
}

// PageVisit is the bounded content extracted from one page.
type PageVisit struct {
	URL   string       `json:"url"`
	Text  string       `json:"text"`
	Links []LinkRecord `json:"links"`
}

// Status is the part of the context snapshot the Walker owns.
type Status struct {
	AutomationActive bool   `json:"automation_active"`
	PageLoaded       bool   `json:"page_loaded"`
	CurrentURL       string `json:"current_url,omitempty"`
}

// WalkerConfig bounds extraction and pacing.
type WalkerConfig struct {
	PageSize  int
	MaxPages  int
	SettleMax time.Duration
}

// Walker composes the frontier, the explorer and the page driver into the
// merge, select and visit cycle. It is the only owner of the driver.
type Walker struct {
	logger   *zap.Logger
	frontier *Frontier
	explorer *Explorer
	driver   PageDriver
	cfg      WalkerConfig

	visitMu sync.Mutex // one visit in flight

	stateMu    sync.RWMutex
	pageLoaded bool
	currentURL string

	rngMu sync.Mutex
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration)
}

// NewWalker wires a Walker. The driver is owned by the Walker from here on.
func NewWalker(logger *zap.Logger, f *Frontier, explorer *Explorer, driver PageDriver, cfg WalkerConfig) (*Walker, error) {
	if f == nil || explorer == nil || driver == nil {
		return nil, fmt.Errorf("frontier, explorer and driver are all required")
	}
	if cfg.PageSize <= 0 || cfg.MaxPages <= 0 {
		return nil, fmt.Errorf("page size and max pages must be positive (got %d, %d)", cfg.PageSize, cfg.MaxPages)
	}
	return &Walker{
		logger:   logger.Named("walker"),
		frontier: f,
		explorer: explorer,
		driver:   driver,
		cfg:      cfg,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		sleep:    sleepContext,
	}, nil
}

// Frontier exposes the underlying frontier.
func (w *Walker) Frontier() *Frontier { return w.frontier }

// Merge folds relevance estimates into the frontier.
func (w *Walker) Merge(estimations map[string]LinkRecord) int {
	n := w.frontier.Merge(estimations)
	if n > 0 {
		w.logger.Debug("Merged relevance estimates", zap.Int("applied", n), zap.Int("known", w.frontier.Len()))
	}
	return n
}

// SelectNext returns the best unvisited URL, or an exploration candidate when
// there is none.
func (w *Walker) SelectNext() string {
	if best, ok := w.frontier.Best(); ok {
		return best.URL
	}
	c := w.explorer.Next()
	w.logger.Info("Frontier exhausted, exploring.", zap.String("url", c.URL), zap.String("kind", string(c.Kind)))
	return c.URL
}

// Step merges estimations, selects the next URL and visits it.
func (w *Walker) Step(ctx context.Context, estimations map[string]LinkRecord) (*PageVisit, error) {
	w.Merge(estimations)
	return w.Visit(ctx, w.SelectNext())
}

// Visit navigates to rawURL, waits a random settle delay, and extracts up to
// MaxPages pages of text plus every anchor. Discovered links are added to the
// frontier unscored.
func (w *Walker) Visit(ctx context.Context, rawURL string) (*PageVisit, error) {
	w.visitMu.Lock()
	defer w.visitMu.Unlock()

	logger := w.logger.With(zap.String("url", rawURL), zap.String("site", SiteOf(rawURL)))
	start := time.Now()

	// A URL that fails to load is still marked visited so it is not selected again.
	w.frontier.MarkVisited(rawURL)

	if err := w.driver.Navigate(ctx, rawURL); err != nil {
		w.setLoaded(false, "")
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrNavigationTimeout) {
			err = fmt.Errorf("%w: %s: %w", ErrNavigationTimeout, rawURL, err)
		}
		logger.Warn("Navigation failed", zap.Error(err))
		return nil, err
	}
	w.setLoaded(true, rawURL)

	if d := w.settleDelay(); d > 0 {
		logger.Debug("Settling", zap.Duration("delay", d))
		w.sleep(ctx, d)
	}

	var (
		text    string
		anchors []Anchor
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		text, err = w.extractText(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		anchors, err = w.driver.Anchors(gctx)
		if err != nil {
			return fmt.Errorf("failed to list anchors: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Warn("Extraction failed", zap.Error(err))
		return nil, err
	}

	links := linksFromAnchors(anchors)
	added := w.frontier.Observe(links)

	logger.Info("Page visited",
		zap.Int("text_len", len(text)),
		zap.Int("links", len(links)),
		zap.Int("new_links", added),
		zap.Duration("duration", time.Since(start)),
	)
	return &PageVisit{URL: rawURL, Text: text, Links: links}, nil
}

// Status reports browser liveness and whether a page is loaded.
func (w *Walker) Status() Status {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return Status{
		AutomationActive: w.driver.Started(),
		PageLoaded:       w.pageLoaded,
		CurrentURL:       w.currentURL,
	}
}

func (w *Walker) extractText(ctx context.Context) (string, error) {
	var sb strings.Builder
	for page := 0; page < w.cfg.MaxPages; page++ {
		chunk, err := w.driver.TextSlice(ctx, page*w.cfg.PageSize, w.cfg.PageSize)
		if err != nil {
			return "", fmt.Errorf("failed to read text page %d: %w", page, err)
		}
		if chunk == "" {
			break
		}
		sb.WriteString(chunk)
	}
	return sb.String(), nil
}

func (w *Walker) setLoaded(loaded bool, current string) {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	w.pageLoaded = loaded
	w.currentURL = current
}

func (w *Walker) settleDelay() time.Duration {
	if w.cfg.SettleMax <= 0 {
		return 0
	}
	w.rngMu.Lock()
	defer w.rngMu.Unlock()
	return time.Duration(w.rng.Int64N(int64(w.cfg.SettleMax) + 1))
}

// linksFromAnchors keeps http(s) anchors once each, in page order.
func linksFromAnchors(anchors []Anchor) []LinkRecord {
	links := make([]LinkRecord, 0, len(anchors))
	seen := make(map[string]struct{}, len(anchors))
	for _, a := range anchors {
		key, ok := Normalize(a.Href)
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		links = append(links, LinkRecord{
			URL:        key,
			AnchorText: strings.Join(strings.Fields(a.Text), " "),
			Relevance:  MinRelevance,
		})
	}
	return links
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
