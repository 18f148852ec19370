// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/openapi-seeker/internal/agent"
	"github.com/xkilldash9x/openapi-seeker/internal/llmclient"
	"github.com/xkilldash9x/openapi-seeker/internal/observability"
	"github.com/xkilldash9x/openapi-seeker/internal/transcript"
)

// Allows for mocking in tests.
var (
	runStoreOpener  storeOpener  = defaultStoreOpener
	runModelFactory modelFactory = llmclient.NewFromConfig
	progressEvery                = time.Minute
)

// newRunCmd creates the `run` command, which drives the decision loop until
// interrupted or the turn budget is spent.
func newRunCmd() *cobra.Command {
	var turns int

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the autonomous crawl loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}
			if turns < 0 {
				return fmt.Errorf("--turns must not be negative")
			}
			logger := observability.GetLogger()

			a, err := newApp(ctx, cfg, logger, runStoreOpener, runModelFactory)
			if err != nil {
				return err
			}
			defer a.Close()

			loop, err := agent.NewLoop(logger, a.model, a.surface, transcript.New(cfg.Agent.TranscriptCapacity), agent.LoopConfig{
				Instruction: cfg.Agent.Instruction,
				PacingDelay: cfg.Agent.PacingDelay,
				TurnTimeout: cfg.Agent.TurnTimeout,
				MaxTurns:    turns,
			})
			if err != nil {
				return fmt.Errorf("failed to create decision loop: %w", err)
			}

			logger.Info("Starting crawl loop",
				zap.String("provider", cfg.Agent.LLM.Provider),
				zap.String("model", cfg.Agent.LLM.Model),
				zap.Int("max_turns", turns),
				zap.String("store", cfg.Store.Type),
			)

			loopCtx, stopProgress := context.WithCancel(ctx)
			g, gctx := errgroup.WithContext(loopCtx)
			g.Go(func() error {
				defer stopProgress()
				return loop.Run(gctx)
			})
			g.Go(func() error {
				logProgress(gctx, a, progressEvery)
				return nil
			})
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("crawl loop failed: %w", err)
			}

			reports, err := a.reports.List(context.WithoutCancel(ctx))
			if err != nil {
				return fmt.Errorf("failed to list reports: %w", err)
			}
			logger.Info("Crawl loop stopped",
				zap.Int("reports", len(reports)),
				zap.Bool("schema_found", a.surface.Snapshot().SchemaFound),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Crawl stopped. %d schema candidate(s) reported.\n", len(reports))
			return nil
		},
	}

	runCmd.Flags().IntVarP(&turns, "turns", "n", 0, "stop after this many turns (0 runs until interrupted)")
	return runCmd
}

// logProgress periodically logs frontier statistics until ctx is done.
func logProgress(ctx context.Context, a *app, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := a.walker.Frontier().Stats()
			status := a.walker.Status()
			a.logger.Info("Crawl progress",
				zap.Any("frontier", stats),
				zap.String("current_url", status.CurrentURL),
				zap.Bool("page_loaded", status.PageLoaded),
			)
		}
	}
}
