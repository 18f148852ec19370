// File: cmd/frontier_test.go
package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExploreCmd(t *testing.T) {
	t.Run("prints synthetic candidates", func(t *testing.T) {
		resetForTest(t)
		path := writeConfig(t, "frontier:\n  tlds: [\"io\"]\n  search_probability: 0\n")

		out, err := executeCommand(t, "--config", path, "frontier", "explore", "-n", "5")
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 5)
		for _, line := range lines {
			assert.True(t, strings.HasPrefix(line, "synthetic"), line)
			assert.Contains(t, line, "http://")
			assert.True(t, strings.HasSuffix(line, ".io"), line)
		}
	})

	t.Run("prints search candidates", func(t *testing.T) {
		resetForTest(t)
		path := writeConfig(t, "frontier:\n  search_probability: 1\n  search_url: \"https://search.example/?q=%s\"\n")

		out, err := executeCommand(t, "--config", path, "frontier", "explore", "-n", "3")
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 3)
		for _, line := range lines {
			assert.True(t, strings.HasPrefix(line, "search"), line)
			assert.Contains(t, line, "https://search.example/?q=")
		}
	})

	t.Run("rejects non-positive count", func(t *testing.T) {
		resetForTest(t)
		path := writeConfig(t, "")

		_, err := executeCommand(t, "--config", path, "frontier", "explore", "-n", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "-n must be a positive integer")
	})

	t.Run("rejects unusable tlds", func(t *testing.T) {
		resetForTest(t)
		path := writeConfig(t, "frontier:\n  tlds: [\"notarealtld\"]\n")

		_, err := executeCommand(t, "--config", path, "frontier", "explore")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no usable top-level domains")
	})
}
