package main

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"SupplyGuard/internal/fallback"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestAskHistoryClear(t *testing.T) {
	dir := t.TempDir()
	common := []string{
		"--config", filepath.Join(dir, "none.toml"),
		"--endpoint", "",
		"--storage", "file",
		"--storage-path", dir,
		"--log-dir", filepath.Join(dir, "logs"),
	}

	out, err := run(t, append([]string{"ask", "How", "do", "I", "filter", "suppliers", "by", "risk", "level?"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, fallback.SupplierResponse+"\n", out)

	out, err = run(t, append([]string{"history"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "You: How do I filter suppliers by risk level?")
	assert.Contains(t, out, "SupplyGuard AI: "+fallback.SupplierResponse)

	out, err = run(t, append([]string{"clear"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, "Conversation cleared.\n", out)

	out, err = run(t, append([]string{"history"}, common...)...)
	require.NoError(t, err)
	assert.NotContains(t, out, "You:")
	assert.Contains(t, out, "Welcome to SupplyGuard AI.")
}

func TestAskExample(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "ask", "--example", "2", "--ephemeral", "--endpoint", "",
		"--config", filepath.Join(dir, "none.toml"), "--log-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, fallback.DashboardResponse+"\n", out)

	_, err = run(t, "ask", "--example", "9", "--ephemeral", "--log-dir", dir)
	assert.ErrorContains(t, err, "no example query 9")

	_, err = run(t, "ask", "--ephemeral", "--log-dir", dir)
	assert.ErrorContains(t, err, "a question or --example is required")
}

func TestInvalidStorageFlag(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "history", "--storage", "redis", "--config", filepath.Join(dir, "none.toml"), "--log-dir", dir)
	assert.ErrorContains(t, err, "unknown storage backend")
}
