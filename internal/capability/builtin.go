// internal/capability/builtin.go
package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/openapi-seeker/internal/browser"
	"github.com/xkilldash9x/openapi-seeker/internal/credentials"
	"github.com/xkilldash9x/openapi-seeker/internal/frontier"
	"github.com/xkilldash9x/openapi-seeker/internal/store"
)

// Names of the built-in capabilities.
const (
	ToolProceed  = "proceed"
	ToolNavigate = "navigate"
	ToolReadPage = "read_page"
	ToolReport   = "report"
	ToolDelegate = "delegate"
	ToolGreet    = "greet"

	ResourceContext     = "context://current"
	ResourceCredentials = "credentials://{name}"
	ResourceFrontierTop = "frontier://top"

	PromptCrawlGoal     = "crawl_goal"
	PromptSummarize     = "summarize"
	PromptEstimateLinks = "estimate_links"
)

// ParamEstimations is the argument of the crawl-advance tool.
const ParamEstimations = "estimations"

// Crawler is the slice of the Walker the built-ins drive.
type Crawler interface {
	Step(ctx context.Context, estimations map[string]frontier.LinkRecord) (*frontier.PageVisit, error)
	Visit(ctx context.Context, rawURL string) (*frontier.PageVisit, error)
	Frontier() *frontier.Frontier
}

// PageReader returns the readable article of the loaded page.
type PageReader interface {
	ReadArticle(ctx context.Context) (*browser.Article, error)
}

// Delegator answers a sub-task with a second model.
type Delegator interface {
	Delegate(ctx context.Context, task string) (string, error)
}

// Deps are the collaborators of the built-in capabilities. Nil members leave
// the corresponding capabilities unregistered, except Crawler which is required.
type Deps struct {
	Logger      *zap.Logger
	Crawler     Crawler
	Reader      PageReader
	Reports     store.Store
	Credentials credentials.Store
	Delegator   Delegator
	Instruction string
}

// ReportAck is the acknowledgement returned by the report tool.
type ReportAck struct {
	Acknowledged bool   `json:"acknowledged"`
	ID           string `json:"id"`
	URL          string `json:"url"`
	Duplicate    bool   `json:"duplicate"`
}

// FrontierView is the content of frontier://top.
type FrontierView struct {
	Stats frontier.Stats        `json:"stats"`
	Top   []frontier.LinkRecord `json:"top"`
}

const (
	defaultReadChars = 4000
	frontierTopSize  = 20
)

// RegisterBuiltins installs the standard tools, resources and prompts on s.
func RegisterBuiltins(s *Surface, d Deps) error {
	if d.Crawler == nil {
		return errors.New("a crawler is required")
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("builtins")

	var errs []error
	add := func(err error) { errs = append(errs, err) }

	add(s.AddTool(ToolProceed,
		"Merge relevance estimates for known links into the frontier, then visit the most relevant unvisited URL and return its text and links.",
		[]Param{{Name: ParamEstimations, Type: TypeEstimations, Description: "Map of URL to relevance (0-100), or to {relevance, anchor_text}."}},
		func(ctx context.Context, a Args) (any, error) {
			return d.Crawler.Step(ctx, a.Estimations(ParamEstimations))
		}))

	add(s.AddTool(ToolNavigate,
		"Visit a specific URL and return its text and links.",
		[]Param{{Name: "url", Type: TypeURL, Required: true, Description: "Absolute http(s) URL."}},
		func(ctx context.Context, a Args) (any, error) {
			return d.Crawler.Visit(ctx, a.String("url"))
		}))

	if d.Reader != nil {
		add(s.AddTool(ToolReadPage,
			"Return the main readable text of the currently loaded page.",
			[]Param{{Name: "max_chars", Type: TypeInteger, Default: defaultReadChars, Min: Bound(100), Max: Bound(20000),
				Description: "Maximum number of characters of text to return."}},
			func(ctx context.Context, a Args) (any, error) {
				article, err := d.Reader.ReadArticle(ctx)
				if err != nil {
					return nil, err
				}
				if r := []rune(article.Text); len(r) > a.Int("max_chars") {
					article.Text = string(r[:a.Int("max_chars")])
				}
				return article, nil
			}))
	}

	if d.Reports != nil {
		add(s.AddTool(ToolReport,
			"Report a URL believed to serve an OpenAPI or Swagger schema document.",
			[]Param{
				{Name: "url", Type: TypeURL, Required: true, Description: "URL of the schema document."},
				{Name: "note", Type: TypeString, Description: "Why this URL looks like a schema."},
			},
			func(ctx context.Context, a Args) (any, error) {
				saved, created, err := d.Reports.Save(ctx, store.Report{URL: a.String("url"), Note: a.String("note")})
				if err != nil {
					return nil, fmt.Errorf("failed to store report: %w", err)
				}
				s.MarkSchemaFound()
				logger.Info("Schema candidate reported", zap.String("url", saved.URL), zap.Bool("duplicate", !created))
				return ReportAck{Acknowledged: true, ID: saved.ID, URL: saved.URL, Duplicate: !created}, nil
			}))
	}

	if d.Delegator != nil {
		add(s.AddTool(ToolDelegate,
			"Hand a self-contained sub-task to a faster assistant model and return its answer.",
			[]Param{{Name: "task", Type: TypeString, Required: true, Description: "The sub-task, stated completely."}},
			func(ctx context.Context, a Args) (any, error) {
				answer, err := d.Delegator.Delegate(ctx, a.String("task"))
				if err != nil {
					return nil, err
				}
				return DelegateResult{Text: answer}, nil
			}))
	}

	add(s.AddTool(ToolGreet,
		"Connectivity check. Returns a greeting.",
		[]Param{{Name: "name", Type: TypeString, Required: true}},
		func(_ context.Context, a Args) (any, error) {
			return fmt.Sprintf("Hello, %s!", a.String("name")), nil
		}))

	add(s.AddResource(ResourceContext,
		"Browser and session status: automation_active, page_loaded, schema_found.",
		"application/json", nil,
		func(context.Context, Args) (any, error) {
			return s.Snapshot(), nil
		}))

	if d.Credentials != nil {
		add(s.AddResource(ResourceCredentials,
			"Username and password stored under a name.",
			"application/json", nil,
			func(_ context.Context, a Args) (any, error) {
				return d.Credentials.Lookup(a.String("name"))
			}))
	}

	add(s.AddResource(ResourceFrontierTop,
		"Frontier statistics and the highest ranked unvisited links.",
		"application/json", nil,
		func(context.Context, Args) (any, error) {
			f := d.Crawler.Frontier()
			return FrontierView{Stats: f.Stats(), Top: f.Top(frontierTopSize)}, nil
		}))

	add(s.AddPrompt(PromptCrawlGoal,
		"The crawl goal for this session.",
		nil,
		func(context.Context, Args) (any, error) {
			return d.Instruction, nil
		}))

	add(s.AddPrompt(PromptSummarize,
		"Ask for a summary of a message.",
		[]Param{{Name: "message", Type: TypeString, Required: true}},
		func(_ context.Context, a Args) (any, error) {
			return "Summarize the following message please: " + a.String("message"), nil
		}))

	add(s.AddPrompt(PromptEstimateLinks,
		"Ask for relevance estimates of unscored frontier links.",
		[]Param{{Name: "limit", Type: TypeInteger, Default: frontierTopSize, Min: Bound(1), Max: Bound(200)}},
		func(_ context.Context, a Args) (any, error) {
			return estimatePrompt(d.Crawler.Frontier(), a.Int("limit")), nil
		}))

	return errors.Join(errs...)
}

func estimatePrompt(f *frontier.Frontier, limit int) string {
	var sb strings.Builder
	sb.WriteString("Estimate, as an integer from 0 to 100, how likely each link below leads to an OpenAPI or Swagger schema document. ")
	sb.WriteString("Call the proceed tool with an estimations object keyed by URL.\n")
	n := 0
	for _, rec := range f.Top(-1) {
		if n == limit {
			break
		}
		if rec.Relevance != frontier.MinRelevance {
			continue
		}
		if rec.AnchorText != "" {
			fmt.Fprintf(&sb, "- %s (%s)\n", rec.URL, rec.AnchorText)
		} else {
			fmt.Fprintf(&sb, "- %s\n", rec.URL)
		}
		n++
	}
	if n == 0 {
		sb.WriteString("(no unscored links)\n")
	}
	return sb.String()
}
