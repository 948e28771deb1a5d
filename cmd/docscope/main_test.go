package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/barekit/docscope/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DOCUMENT_STORE", "sqlite")
	t.Setenv("DOCUMENT_DSN", filepath.Join(dir, "documents.db"))
	t.Setenv("SELECTION_STORE", "sqlite")
	t.Setenv("SELECTION_DSN", filepath.Join(dir, "selections.db"))
	t.Setenv("EMBEDDING_PROVIDER", "fake")
	t.Setenv("RANKER", "exact")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "console")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ingestTitle, ingestFile = "", ""
	selectUser, selectClear = "", false
	askUser, askK, askJSON = "", 5, false
	backfillSeed = 0

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCommandsRegistered(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "ingest", "delete", "select", "ask", "backfill"} {
		assert.Contains(t, names, want)
	}
}

func TestAskCmd_Flags(t *testing.T) {
	flag := askCmd.Flags().Lookup("k")
	require.NotNil(t, flag)
	assert.Equal(t, "5", flag.DefValue)
	assert.NotNil(t, askCmd.Flags().Lookup("user"))
}

func TestIngestSelectAsk(t *testing.T) {
	dir := testEnv(t)

	goFile := writeFile(t, dir, "go.txt", "Go has goroutines and channels")
	rustFile := writeFile(t, dir, "rust.txt", "Rust has ownership and borrowing")

	out, err := execute(t, "ingest", "--title", "Go", "--file", goFile)
	require.NoError(t, err)
	goID := strings.TrimSpace(out)
	assert.NotEmpty(t, goID)

	_, err = execute(t, "ingest", "--title", "Rust", "--file", rustFile)
	require.NoError(t, err)

	out, err = execute(t, "select", "--user", "alice", "Go", "Rust")
	require.NoError(t, err)
	assert.Contains(t, out, "Selected 2 document(s).")

	out, err = execute(t, "ask", "--user", "alice", "--json", "Go has goroutines and channels")
	require.NoError(t, err)
	var results []askResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, goID, results[0].ID)
	assert.InDelta(t, 0, results[0].Distance, 1e-5)

	_, err = execute(t, "ask", "--user", "bob", "anything")
	assert.ErrorContains(t, err, "no documents selected")

	_, err = execute(t, "delete", goID)
	require.NoError(t, err)

	out, err = execute(t, "select", "--user", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Rust")
	assert.NotContains(t, out, goID)

	out, err = execute(t, "select", "--user", "alice", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Selection cleared.")
}

func TestSelectNoMatch(t *testing.T) {
	testEnv(t)

	_, err := execute(t, "select", "--user", "alice", "Missing")
	assert.ErrorContains(t, err, "select failed")
}

func TestIngestMissingFile(t *testing.T) {
	dir := testEnv(t)

	_, err := execute(t, "ingest", "--title", "Go", "--file", filepath.Join(dir, "absent.txt"))
	assert.ErrorContains(t, err, "failed to read")
}

func TestBackfillNothingToDo(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "backfill")
	require.NoError(t, err)
	assert.Contains(t, out, "Embedded 0 of 0 document(s), 0 failed.")
}

func TestBackfillSeed(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "backfill", "--seed", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 3 sample document(s).")
	assert.Contains(t, out, "Embedded 3 of 3 document(s), 0 failed.")

	out, err = execute(t, "backfill")
	require.NoError(t, err)
	assert.Contains(t, out, "Embedded 0 of 0 document(s), 0 failed.")

	_, err = execute(t, "backfill", "--seed", "-1")
	assert.ErrorContains(t, err, "must not be negative")
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(config.ObservabilityConfig{LogLevel: "debug", LogFormat: "json"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = newLogger(config.ObservabilityConfig{LogLevel: "loud"})
	assert.Error(t, err)
}
