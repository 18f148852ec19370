// File: cmd/run_test.go
package cmd

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/openapi-seeker/internal/config"
	"github.com/xkilldash9x/openapi-seeker/internal/llmclient"
)

// scriptedModel answers Chat calls from a fixed list, repeating the last answer.
type scriptedModel struct {
	mu      sync.Mutex
	answers []string
	calls   int
}

func (m *scriptedModel) Chat(_ context.Context, _ llmclient.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	if i >= len(m.answers) {
		i = len(m.answers) - 1
	}
	m.calls++
	return m.answers[i], nil
}

func (m *scriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func modelReturning(m llmclient.Client) modelFactory {
	return func(context.Context, config.LLMConfig, *zap.Logger) (llmclient.Client, error) {
		return m, nil
	}
}

const fastAgentConfig = "agent:\n  pacing_delay: 0s\n  turn_timeout: 5s\n"

func TestRunCmd_ReportsSchemaCandidate(t *testing.T) {
	resetForTest(t)
	opener, mem := storeWith(t)
	runStoreOpener = opener
	model := &scriptedModel{answers: []string{
		`{"kind":"call_tool","name":"report","arguments":{"url":"https://api.example.com/openapi.json","note":"served as application/json"}}`,
		`{"kind":"query_tools","explanation":"look around"}`,
	}}
	runModelFactory = modelReturning(model)
	path := writeConfig(t, fastAgentConfig)

	out, err := executeCommand(t, "--config", path, "run", "--turns", "3")
	require.NoError(t, err)

	assert.Equal(t, 3, model.Calls())
	assert.Contains(t, out, "Crawl stopped. 1 schema candidate(s) reported.")

	reports, err := mem.List(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "https://api.example.com/openapi.json", reports[0].URL)
	assert.Equal(t, "served as application/json", reports[0].Note)
}

func TestRunCmd_TurnFailuresDoNotStopTheLoop(t *testing.T) {
	resetForTest(t)
	runStoreOpener, _ = storeWith(t)
	model := &scriptedModel{answers: []string{"this is not json", `{"kind":"teleport"}`}}
	runModelFactory = modelReturning(model)
	path := writeConfig(t, fastAgentConfig)

	out, err := executeCommand(t, "--config", path, "run", "-n", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, model.Calls())
	assert.Contains(t, out, "0 schema candidate(s)")
}

func TestRunCmd_CancelledContextStopsCleanly(t *testing.T) {
	resetForTest(t)
	runStoreOpener, _ = storeWith(t)
	model := &scriptedModel{answers: []string{`{"kind":"query_tools"}`}}
	runModelFactory = modelReturning(model)
	path := writeConfig(t, fastAgentConfig)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	root := NewRootCommand()
	root.SetArgs([]string{"--config", path, "run"})

	require.NoError(t, root.ExecuteContext(ctx))
	assert.Zero(t, model.Calls())
}

func TestRunCmd_ModelFactoryError(t *testing.T) {
	resetForTest(t)
	runStoreOpener, _ = storeWith(t)
	runModelFactory = func(context.Context, config.LLMConfig, *zap.Logger) (llmclient.Client, error) {
		return nil, errors.New("no route to model host")
	}
	path := writeConfig(t, "")

	_, err := executeCommand(t, "--config", path, "run", "-n", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize model client")
}

func TestRunCmd_NegativeTurns(t *testing.T) {
	resetForTest(t)
	path := writeConfig(t, "")

	_, err := executeCommand(t, "--config", path, "run", "--turns", "-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--turns must not be negative")
}
