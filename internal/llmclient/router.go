package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Router implements Client and dispatches each request to the client of its tier.
type Router struct {
	logger  *zap.Logger
	clients map[Tier]Client
}

var _ Client = (*Router)(nil)

// NewRouter creates a router with the specified clients for each tier.
func NewRouter(logger *zap.Logger, fastClient, powerfulClient Client) (*Router, error) {
	if fastClient == nil || powerfulClient == nil {
		return nil, fmt.Errorf("both fast and powerful tier clients must be provided")
	}

	return &Router{
		logger: logger.Named("llm_router"),
		clients: map[Tier]Client{
			TierFast:     fastClient,
			TierPowerful: powerfulClient,
		},
	}, nil
}

// Chat selects the client based on the request's Tier. An empty tier means powerful.
func (r *Router) Chat(ctx context.Context, req Request) (string, error) {
	tier := req.Tier
	if tier == "" {
		tier = TierPowerful
	}

	client, ok := r.clients[tier]
	if !ok {
		return "", fmt.Errorf("no LLM client configured for tier: %s", tier)
	}

	r.logger.Debug("Routing LLM request", zap.String("tier", string(tier)))
	return client.Chat(ctx, req)
}
