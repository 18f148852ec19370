// File: cmd/serve.go
package cmd

import (
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/openapi-seeker/internal/capability"
	"github.com/xkilldash9x/openapi-seeker/internal/llmclient"
	"github.com/xkilldash9x/openapi-seeker/internal/mcp"
	"github.com/xkilldash9x/openapi-seeker/internal/observability"
)

// Allows for mocking in tests.
var (
	serveStoreOpener  storeOpener  = defaultStoreOpener
	serveModelFactory modelFactory = llmclient.NewFromConfig
	serveTransport                 = func() mcpsdk.Transport { return &mcpsdk.StdioTransport{} }
)

// newServeCmd creates the `serve` command, which exposes the capability
// surface to an external MCP client over stdio.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serves the crawl capabilities over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			a, err := newApp(ctx, cfg, logger, serveStoreOpener, serveModelFactory)
			if err != nil {
				return err
			}
			defer a.Close()

			server := mcp.NewServer(logger, a.surface, cfg.MCP.Name, cfg.MCP.Version)
			logger.Info("Serving capabilities over MCP",
				zap.String("name", cfg.MCP.Name),
				zap.Int("tools", len(a.surface.List(capability.KindTool))),
				zap.Int("resources", len(a.surface.List(capability.KindResource))),
				zap.Int("prompts", len(a.surface.List(capability.KindPrompt))),
			)
			return server.Run(ctx, serveTransport())
		},
	}
}
