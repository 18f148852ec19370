package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/openapi-seeker/internal/browser"
	"github.com/xkilldash9x/openapi-seeker/internal/config"
	"github.com/xkilldash9x/openapi-seeker/internal/credentials"
	"github.com/xkilldash9x/openapi-seeker/internal/frontier"
	"github.com/xkilldash9x/openapi-seeker/internal/store"
)

type mockCrawler struct {
	mock.Mock
	frontier *frontier.Frontier
}

func (m *mockCrawler) Step(ctx context.Context, est map[string]frontier.LinkRecord) (*frontier.PageVisit, error) {
	args := m.Called(ctx, est)
	v, _ := args.Get(0).(*frontier.PageVisit)
	return v, args.Error(1)
}

func (m *mockCrawler) Visit(ctx context.Context, rawURL string) (*frontier.PageVisit, error) {
	args := m.Called(ctx, rawURL)
	v, _ := args.Get(0).(*frontier.PageVisit)
	return v, args.Error(1)
}

func (m *mockCrawler) Frontier() *frontier.Frontier { return m.frontier }

type mockReader struct{ mock.Mock }

func (m *mockReader) ReadArticle(ctx context.Context) (*browser.Article, error) {
	args := m.Called(ctx)
	a, _ := args.Get(0).(*browser.Article)
	return a, args.Error(1)
}

type stubDelegator struct {
	answer string
	err    error
	tasks  []string
}

func (d *stubDelegator) Delegate(_ context.Context, task string) (string, error) {
	d.tasks = append(d.tasks, task)
	return d.answer, d.err
}

type builtinFixture struct {
	surface   *Surface
	crawler   *mockCrawler
	reader    *mockReader
	reports   *store.MemoryStore
	delegator *stubDelegator
}

func newBuiltinFixture(t *testing.T) *builtinFixture {
	t.Helper()
	fx := &builtinFixture{
		crawler:   &mockCrawler{frontier: frontier.New(0)},
		reader:    &mockReader{},
		reports:   store.NewMemoryStore(),
		delegator: &stubDelegator{answer: "delegated answer"},
	}
	fx.surface = newTestSurface(t, nil)
	err := RegisterBuiltins(fx.surface, Deps{
		Logger:      zaptest.NewLogger(t),
		Crawler:     fx.crawler,
		Reader:      fx.reader,
		Reports:     fx.reports,
		Credentials: credentials.NewStatic(map[string]config.CredentialConfig{"portal": {Username: "u", Password: "p"}}, nil),
		Delegator:   fx.delegator,
		Instruction: "find schemas",
	})
	require.NoError(t, err)
	return fx
}

func names(ds []Descriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Name
	}
	return out
}

func TestRegisterBuiltins_Listing(t *testing.T) {
	fx := newBuiltinFixture(t)
	assert.Equal(t, []string{ToolProceed, ToolNavigate, ToolReadPage, ToolReport, ToolDelegate, ToolGreet}, names(fx.surface.List(KindTool)))
	assert.Equal(t, []string{ResourceContext, ResourceCredentials, ResourceFrontierTop}, names(fx.surface.List(KindResource)))
	assert.Equal(t, []string{PromptCrawlGoal, PromptSummarize, PromptEstimateLinks}, names(fx.surface.List(KindPrompt)))
}

func TestRegisterBuiltins_OptionalDeps(t *testing.T) {
	s := newTestSurface(t, nil)
	require.NoError(t, RegisterBuiltins(s, Deps{Crawler: &mockCrawler{frontier: frontier.New(0)}}))
	assert.Equal(t, []string{ToolProceed, ToolNavigate, ToolGreet}, names(s.List(KindTool)))

	assert.Error(t, RegisterBuiltins(newTestSurface(t, nil), Deps{}))
}

func TestBuiltin_Proceed(t *testing.T) {
	fx := newBuiltinFixture(t)
	visit := &frontier.PageVisit{URL: "https://a.com/", Text: "hello"}
	want := map[string]frontier.LinkRecord{"https://a.com/": {URL: "https://a.com/", Relevance: 90}}
	fx.crawler.On("Step", mock.Anything, want).Return(visit, nil).Once()

	res, err := fx.surface.Invoke(context.Background(), KindTool, ToolProceed, map[string]any{
		ParamEstimations: map[string]any{"https://a.com/": float64(90)},
	})
	require.NoError(t, err)
	assert.Same(t, visit, res.Data)
	fx.crawler.AssertExpectations(t)
}

func TestBuiltin_ProceedWithoutEstimations(t *testing.T) {
	fx := newBuiltinFixture(t)
	fx.crawler.On("Step", mock.Anything, map[string]frontier.LinkRecord(nil)).Return(&frontier.PageVisit{}, nil).Once()

	_, err := fx.surface.Invoke(context.Background(), KindTool, ToolProceed, nil)
	require.NoError(t, err)
	fx.crawler.AssertExpectations(t)
}

func TestBuiltin_NavigateTimeout(t *testing.T) {
	fx := newBuiltinFixture(t)
	fx.crawler.On("Visit", mock.Anything, "https://slow.example/").Return(nil, frontier.ErrNavigationTimeout).Once()

	_, err := fx.surface.Invoke(context.Background(), KindTool, ToolNavigate, map[string]any{"url": "https://slow.example/"})
	assert.ErrorIs(t, err, frontier.ErrNavigationTimeout)
	assert.ErrorIs(t, err, ErrCapability)
}

func TestBuiltin_ReadPageTruncates(t *testing.T) {
	fx := newBuiltinFixture(t)
	long := make([]rune, 500)
	for i := range long {
		long[i] = 'x'
	}
	fx.reader.On("ReadArticle", mock.Anything).Return(&browser.Article{Title: "Docs", Text: string(long)}, nil).Once()

	res, err := fx.surface.Invoke(context.Background(), KindTool, ToolReadPage, map[string]any{"max_chars": 100})
	require.NoError(t, err)
	article := res.Data.(*browser.Article)
	assert.Len(t, article.Text, 100)

	_, err = fx.surface.Invoke(context.Background(), KindTool, ToolReadPage, map[string]any{"max_chars": 5})
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestBuiltin_ReportFlipsSchemaFound(t *testing.T) {
	fx := newBuiltinFixture(t)
	ctx := context.Background()
	assert.False(t, fx.surface.Snapshot().SchemaFound)

	res, err := fx.surface.Invoke(ctx, KindTool, ToolReport, map[string]any{"url": "https://api.example.com/openapi.json", "note": "looks right"})
	require.NoError(t, err)
	ack := res.Data.(ReportAck)
	assert.True(t, ack.Acknowledged)
	assert.False(t, ack.Duplicate)
	assert.True(t, fx.surface.Snapshot().SchemaFound)

	res, err = fx.surface.Invoke(ctx, KindTool, ToolReport, map[string]any{"url": "https://api.example.com/openapi.json"})
	require.NoError(t, err)
	assert.True(t, res.Data.(ReportAck).Duplicate)

	stored, err := fx.reports.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "looks right", stored[0].Note)
}

func TestBuiltin_Delegate(t *testing.T) {
	fx := newBuiltinFixture(t)
	res, err := fx.surface.Invoke(context.Background(), KindTool, ToolDelegate, map[string]any{"task": "classify"})
	require.NoError(t, err)
	assert.True(t, res.Delegate)
	assert.Equal(t, "delegated answer", res.Text())
	assert.Equal(t, []string{"classify"}, fx.delegator.tasks)

	fx.delegator.err = errors.New("model down")
	_, err = fx.surface.Invoke(context.Background(), KindTool, ToolDelegate, map[string]any{"task": "again"})
	assert.ErrorIs(t, err, ErrCapability)
}

func TestBuiltin_GreetAndPrompts(t *testing.T) {
	fx := newBuiltinFixture(t)
	ctx := context.Background()

	res, err := fx.surface.Invoke(ctx, KindTool, ToolGreet, map[string]any{"name": "World"})
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!", res.Text())

	res, err = fx.surface.Invoke(ctx, KindPrompt, PromptSummarize, map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Summarize the following message please: hi", res.Text())

	res, err = fx.surface.Invoke(ctx, KindPrompt, PromptCrawlGoal, nil)
	require.NoError(t, err)
	assert.Equal(t, "find schemas", res.Text())
}

func TestBuiltin_EstimateLinks(t *testing.T) {
	fx := newBuiltinFixture(t)
	f := fx.crawler.frontier
	f.Observe([]frontier.LinkRecord{
		{URL: "https://a.com/api", AnchorText: "API"},
		{URL: "https://b.com/blog"},
	})
	f.Merge(map[string]frontier.LinkRecord{"https://c.com/": {Relevance: 70}})

	res, err := fx.surface.Invoke(context.Background(), KindPrompt, PromptEstimateLinks, map[string]any{"limit": 1})
	require.NoError(t, err)
	text := res.Text()
	assert.Contains(t, text, "- https://a.com/api (API)")
	assert.NotContains(t, text, "https://b.com/blog")
	assert.NotContains(t, text, "https://c.com/")

	empty := newBuiltinFixture(t)
	res, err = empty.surface.Invoke(context.Background(), KindPrompt, PromptEstimateLinks, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Text(), "(no unscored links)")
}

func TestBuiltin_Resources(t *testing.T) {
	fx := newBuiltinFixture(t)
	ctx := context.Background()

	res, err := fx.surface.Invoke(ctx, KindResource, "credentials://portal", nil)
	require.NoError(t, err)
	assert.Equal(t, credentials.Credentials{Username: "u", Password: "p"}, res.Data)

	_, err = fx.surface.Invoke(ctx, KindResource, "credentials://nobody", nil)
	assert.ErrorIs(t, err, credentials.ErrNotFound)
	assert.ErrorIs(t, err, ErrCapability)

	res, err = fx.surface.Invoke(ctx, KindResource, ResourceContext, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"automation_active":false,"page_loaded":false,"schema_found":false}`, res.Text())

	fx.crawler.frontier.Merge(map[string]frontier.LinkRecord{"https://x.com/": {Relevance: 5}})
	res, err = fx.surface.Invoke(ctx, KindResource, ResourceFrontierTop, nil)
	require.NoError(t, err)
	view := res.Data.(FrontierView)
	assert.Equal(t, 1, view.Stats.Known)
	require.Len(t, view.Top, 1)
	assert.Equal(t, "https://x.com/", view.Top[0].URL)
}
