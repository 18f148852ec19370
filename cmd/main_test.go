// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/openapi-seeker/internal/config"
	"github.com/xkilldash9x/openapi-seeker/internal/llmclient"
	"github.com/xkilldash9x/openapi-seeker/internal/observability"
	"github.com/xkilldash9x/openapi-seeker/internal/store"
)

// resetForTest provides the single source of truth for resetting test state.
func resetForTest(t *testing.T) {
	t.Helper()

	cfgFile = ""
	runStoreOpener = defaultStoreOpener
	runModelFactory = llmclient.NewFromConfig
	serveStoreOpener = defaultStoreOpener
	serveModelFactory = llmclient.NewFromConfig
	reportsStoreOpener = defaultStoreOpener
	observability.ResetForTest()

	rootCmd = NewRootCommand()
	t.Cleanup(func() {
		cfgFile = ""
		runStoreOpener = defaultStoreOpener
		runModelFactory = llmclient.NewFromConfig
		serveStoreOpener = defaultStoreOpener
		serveModelFactory = llmclient.NewFromConfig
		reportsStoreOpener = defaultStoreOpener
		observability.ResetForTest()
	})
}

// writeConfig writes a config file that keeps the log file inside the test's
// temp dir, followed by any extra YAML.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "logger:\n  level: error\n  log_file: " + filepath.Join(dir, "seeker.log") + "\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// executeCommand runs a fresh root command with args and returns its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// storeWith returns an opener serving a memory store seeded with urls.
func storeWith(t *testing.T, urls ...string) (storeOpener, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	for _, u := range urls {
		_, _, err := mem.Save(context.Background(), store.Report{URL: u, Note: "seeded"})
		require.NoError(t, err)
	}
	return func(context.Context, config.StoreConfig, *zap.Logger) (store.Store, func(), error) {
		return mem, func() {}, nil
	}, mem
}
