package browser

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/openapi-seeker/internal/config"
)

func TestParseFlags(t *testing.T) {
	flags := parseFlags([]string{"--disable-gpu", "--window-size=1280,800", "  ", "lang=en-US"})
	assert.Equal(t, map[string]interface{}{
		"disable-gpu": true,
		"window-size": "1280,800",
		"lang":        "en-US",
	}, flags)
}

func TestAllocatorOptions(t *testing.T) {
	base := NewSession(config.BrowserConfig{}, zaptest.NewLogger(t)).allocatorOptions()

	full := NewSession(config.BrowserConfig{
		Headless:        true,
		UserAgent:       config.DefaultUserAgent,
		UserDataDir:     t.TempDir(),
		IgnoreTLSErrors: true,
		Args:            []string{"--disable-gpu"},
	}, zaptest.NewLogger(t)).allocatorOptions()

	assert.Len(t, full, len(base)+4)
}

func TestSetupTasks(t *testing.T) {
	plain := NewSession(config.BrowserConfig{}, zaptest.NewLogger(t)).setupTasks()
	assert.Len(t, plain, 1)

	full := NewSession(config.BrowserConfig{
		Headers:        map[string]string{"X-Seeker": "1"},
		DisableScripts: true,
	}, zaptest.NewLogger(t)).setupTasks()
	assert.Len(t, full, 3)
}

func TestSession_NotStarted(t *testing.T) {
	s := NewSession(config.BrowserConfig{NavigationTimeout: time.Second}, zaptest.NewLogger(t))
	assert.False(t, s.Started())
	assert.Equal(t, "", s.CurrentURL())

	_, err := s.TextSlice(context.Background(), 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser is not started")

	_, err = s.ReadArticle(context.Background())
	assert.ErrorContains(t, err, "no page is loaded")

	s.Close()
}

func TestSession_FailedNavigationClearsPage(t *testing.T) {
	s := NewSession(config.BrowserConfig{NavigationTimeout: time.Second}, zaptest.NewLogger(t))
	// A browser context without a chromedp target makes every Run fail.
	s.browserCtx = context.Background()
	s.started.Store(true)
	s.currentURL = "https://docs.example/"
	s.snapshot = &Document{Text: "stale"}

	err := s.Navigate(context.Background(), "https://gone.example/")
	require.Error(t, err)
	assert.ErrorIs(t, err, chromedp.ErrInvalidContext)
	assert.Contains(t, err.Error(), "navigation to https://gone.example/ failed")

	assert.Equal(t, "", s.CurrentURL())
	assert.Nil(t, s.snapshot)
	_, err = s.ReadArticle(context.Background())
	assert.ErrorContains(t, err, "no page is loaded")
}
