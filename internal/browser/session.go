// Package browser drives a single Chrome tab through chromedp for the walker.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/openapi-seeker/internal/config"
	"github.com/xkilldash9x/openapi-seeker/internal/frontier"
)

const textSliceJS = `(() => {
	const body = document.body;
	if (!body) { return ""; }
	const text = body.innerText || "";
	return text.substring(%d, %d);
})()`

const anchorsJS = `(() => {
	if (!document.body) { return []; }
	return Array.from(document.querySelectorAll("a[href]")).map(a => ({
		href: a.href,
		text: (a.innerText || a.textContent || "").trim(),
	}));
})()`

// Session is one lazily started browser tab. It satisfies frontier.PageDriver.
type Session struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	startMu       sync.Mutex
	started       atomic.Bool
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc

	pageMu     sync.Mutex
	currentURL string
	snapshot   *Document // parsed page, used when page scripts are disabled
}

var _ frontier.PageDriver = (*Session)(nil)

// NewSession returns a session that starts Chrome on first use.
func NewSession(cfg config.BrowserConfig, logger *zap.Logger) *Session {
	return &Session{
		logger: logger.Named("browser"),
		cfg:    cfg,
	}
}

// Started reports whether Chrome is running.
func (s *Session) Started() bool {
	return s.started.Load()
}

// CurrentURL is the URL of the loaded page, or "" while none is loaded
// or after a navigation failed.
func (s *Session) CurrentURL() string {
	s.pageMu.Lock()
	defer s.pageMu.Unlock()
	return s.currentURL
}

// Navigate loads url, bounded by the configured navigation timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.ensureStarted(); err != nil {
		return err
	}

	runCtx, cancel := CombineContext(s.browserCtx, ctx)
	defer cancel()
	navCtx, cancelNav := context.WithTimeout(runCtx, s.cfg.NavigationTimeout)
	defer cancelNav()

	// A failed navigation leaves the tab on an unknown page.
	s.pageMu.Lock()
	s.snapshot = nil
	s.currentURL = ""
	s.pageMu.Unlock()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %s", frontier.ErrNavigationTimeout, s.cfg.NavigationTimeout, url)
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	s.pageMu.Lock()
	s.currentURL = url
	s.pageMu.Unlock()
	return nil
}

// TextSlice returns length characters of the body's visible text from offset.
func (s *Session) TextSlice(ctx context.Context, offset, length int) (string, error) {
	if s.cfg.DisableScripts {
		doc, err := s.parsedPage(ctx)
		if err != nil {
			return "", err
		}
		return sliceRunes(doc.Text, offset, length), nil
	}

	var text string
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(textSliceJS, offset, offset+length), &text)); err != nil {
		return "", fmt.Errorf("failed to read page text: %w", err)
	}
	return text, nil
}

// Anchors lists every link on the page with an absolute href.
func (s *Session) Anchors(ctx context.Context) ([]frontier.Anchor, error) {
	if s.cfg.DisableScripts {
		doc, err := s.parsedPage(ctx)
		if err != nil {
			return nil, err
		}
		return doc.Anchors, nil
	}

	var anchors []frontier.Anchor
	if err := s.run(ctx, chromedp.Evaluate(anchorsJS, &anchors)); err != nil {
		return nil, fmt.Errorf("failed to list anchors: %w", err)
	}
	return anchors, nil
}

// HTML returns the serialized document of the current page.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var outer string
	if err := s.run(ctx, chromedp.OuterHTML("html", &outer, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page html: %w", err)
	}
	return outer, nil
}

// ReadArticle extracts the readable main content of the current page.
func (s *Session) ReadArticle(ctx context.Context) (*Article, error) {
	current := s.CurrentURL()
	if current == "" {
		return nil, fmt.Errorf("no page is loaded")
	}
	raw, err := s.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return ExtractArticle(raw, current)
}

// Close shuts Chrome down. The session can be started again afterwards.
func (s *Session) Close() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if !s.started.Load() {
		return
	}
	s.cancelBrowser()
	s.cancelAlloc()
	s.started.Store(false)
	s.logger.Info("Browser closed.")
}

func (s *Session) ensureStarted() error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.started.Load() {
		return nil
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), s.allocatorOptions()...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(s.logger.Sugar().Debugf),
		chromedp.WithErrorf(s.logger.Sugar().Debugf),
	)

	// The first Run allocates the browser and ties its lifetime to the context
	// it receives, so it must be browserCtx itself and not a derived context.
	if err := chromedp.Run(browserCtx, s.setupTasks()); err != nil {
		cancelBrowser()
		cancelAlloc()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	s.browserCtx = browserCtx
	s.cancelBrowser = cancelBrowser
	s.cancelAlloc = cancelAlloc
	s.started.Store(true)
	s.logger.Info("Browser started.",
		zap.Bool("headless", s.cfg.Headless),
		zap.Bool("scripts_disabled", s.cfg.DisableScripts),
	)
	return nil
}

func (s *Session) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", s.cfg.Headless))
	if s.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.cfg.UserAgent))
	}
	if s.cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(s.cfg.UserDataDir))
	}
	if s.cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.IgnoreCertErrors)
	}
	for name, value := range parseFlags(s.cfg.Args) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

func (s *Session) setupTasks() chromedp.Tasks {
	tasks := chromedp.Tasks{network.Enable()}
	if len(s.cfg.Headers) > 0 {
		headers := make(network.Headers, len(s.cfg.Headers))
		for k, v := range s.cfg.Headers {
			headers[k] = v
		}
		tasks = append(tasks, network.SetExtraHTTPHeaders(headers))
	}
	if s.cfg.DisableScripts {
		tasks = append(tasks, emulation.SetScriptExecutionDisabled(true))
	}
	return tasks
}

func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if !s.started.Load() {
		return fmt.Errorf("browser is not started")
	}
	runCtx, cancel := CombineContext(s.browserCtx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// parsedPage parses the current document once per navigation.
func (s *Session) parsedPage(ctx context.Context) (*Document, error) {
	s.pageMu.Lock()
	cached, current := s.snapshot, s.currentURL
	s.pageMu.Unlock()
	if cached != nil {
		return cached, nil
	}

	raw, err := s.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := ParseDocument(raw, current)
	if err != nil {
		return nil, err
	}

	s.pageMu.Lock()
	s.snapshot = doc
	s.pageMu.Unlock()
	return doc, nil
}

// parseFlags turns "--name=value" and "--name" arguments into chromedp flags.
func parseFlags(args []string) map[string]interface{} {
	flags := make(map[string]interface{}, len(args))
	for _, arg := range args {
		arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
		if arg == "" {
			continue
		}
		name, value, hasValue := strings.Cut(arg, "=")
		if !hasValue {
			flags[name] = true
			continue
		}
		flags[name] = value
	}
	return flags
}

func sliceRunes(s string, offset, length int) string {
	r := []rune(s)
	if offset >= len(r) || length <= 0 {
		return ""
	}
	end := offset + length
	if end > len(r) {
		end = len(r)
	}
	return string(r[offset:end])
}
