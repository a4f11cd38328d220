package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// documentPath returns a fixture under testdata/documents.
func documentPath(name string) string {
	return filepath.Join("testdata", "documents", name)
}

// executeCommand runs the root command with args and returns stdout,
// stderr and the command error.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommand()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// requireExitCode asserts err is an ExitError with the given code.
func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()

	require.Error(t, err)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected *ExitError, got %T: %v", err, err)
	require.Equal(t, code, exitErr.Code, "exit code for %v", err)
}

// decodeResponse decodes a CLIResponse and its Data into data.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()

	var raw struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)
	if data != nil {
		require.NoError(t, json.Unmarshal(raw.Data, data), "data: %s", raw.Data)
	}
	return raw.CLIResponse
}

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// logRuns runs each document with --db and fails on command errors.
// Run failures (exit code 1) are logged too and are expected by callers.
func logRuns(t *testing.T, db string, docs ...string) {
	t.Helper()

	for _, doc := range docs {
		_, _, err := executeCommand(t, "run", "--db", db, doc)
		if err != nil {
			requireExitCode(t, err, ExitFailure)
		}
	}
}
