// File: cmd/app.go
package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/openapi-seeker/internal/agent"
	"github.com/xkilldash9x/openapi-seeker/internal/browser"
	"github.com/xkilldash9x/openapi-seeker/internal/capability"
	"github.com/xkilldash9x/openapi-seeker/internal/config"
	"github.com/xkilldash9x/openapi-seeker/internal/credentials"
	"github.com/xkilldash9x/openapi-seeker/internal/frontier"
	"github.com/xkilldash9x/openapi-seeker/internal/llmclient"
	"github.com/xkilldash9x/openapi-seeker/internal/store"
)

// storeOpener creates the report store and a cleanup function releasing it.
type storeOpener func(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (store.Store, func(), error)

// modelFactory builds the model client from configuration.
type modelFactory func(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (llmclient.Client, error)

// defaultStoreOpener connects to PostgreSQL when configured and otherwise
// keeps reports in memory for the life of the process.
func defaultStoreOpener(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (store.Store, func(), error) {
	switch cfg.Type {
	case config.StorePostgres:
		pg, cleanup, err := store.Connect(ctx, cfg.Postgres.URL, logger)
		if err != nil {
			return nil, nil, err
		}
		return pg, cleanup, nil
	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}

// app holds every long-lived component of a seeker process.
type app struct {
	logger  *zap.Logger
	cfg     *config.Config
	session *browser.Session
	walker  *frontier.Walker
	reports store.Store
	model   llmclient.Client
	surface *capability.Surface

	cleanups []func()
}

// newApp wires configuration into a ready capability surface. The browser is
// started lazily on the first navigation.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, openStore storeOpener, newModel modelFactory) (*app, error) {
	a := &app{logger: logger, cfg: cfg}
	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}

	reports, cleanup, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to open report store: %w", err))
	}
	a.reports = reports
	a.cleanups = append(a.cleanups, cleanup)

	explorer, err := frontier.NewExplorer(frontier.ExplorerConfig{
		TLDs:              cfg.Frontier.TLDs,
		SearchURL:         cfg.Frontier.SearchURL,
		SearchProbability: cfg.Frontier.SearchProbability,
	}, nil)
	if err != nil {
		return fail(fmt.Errorf("failed to configure exploration: %w", err))
	}

	a.session = browser.NewSession(cfg.Browser, logger)
	a.cleanups = append(a.cleanups, a.session.Close)

	a.walker, err = frontier.NewWalker(logger, frontier.New(cfg.Frontier.MaxEntries), explorer, a.session, frontier.WalkerConfig{
		PageSize:  cfg.Frontier.PageSize,
		MaxPages:  cfg.Frontier.MaxPages,
		SettleMax: cfg.Frontier.SettleMax,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to create walker: %w", err))
	}

	a.model, err = newModel(ctx, cfg.Agent.LLM, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize model client: %w", err))
	}

	a.surface = capability.NewSurface(logger, a.walker.Status)
	err = capability.RegisterBuiltins(a.surface, capability.Deps{
		Logger:      logger,
		Crawler:     a.walker,
		Reader:      a.session,
		Reports:     a.reports,
		Credentials: credentials.NewStatic(cfg.Credentials, credentialResolver(ctx)),
		Delegator:   agent.NewModelDelegate(logger, a.model, cfg.Agent.TurnTimeout),
		Instruction: cfg.Agent.Instruction,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to register capabilities: %w", err))
	}
	return a, nil
}

// Close releases components in reverse order of creation.
func (a *app) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}
