package llmclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/openapi-seeker/internal/config"
)

// MockClient is a mock implementation of Client for testing.
type MockClient struct {
	mock.Mock
	Name string
}

// Chat mocks the Chat method.
func (m *MockClient) Chat(ctx context.Context, req Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// setupTestLogger returns a logger backed by an observer.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

// getValidLLMConfig returns an LLMConfig pointed at endpoint.
func getValidLLMConfig(provider, endpoint string) config.LLMConfig {
	return config.LLMConfig{
		Provider:    provider,
		Endpoint:    endpoint,
		APIKey:      "test-api-key",
		Model:       "test-model",
		FastModel:   "test-model-fast",
		APITimeout:  5 * time.Second,
		Temperature: 0.2,
	}
}
