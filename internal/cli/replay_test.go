package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/akl/internal/engine"
	"github.com/roach88/akl/internal/store"
)

func TestReplayAllRunsDeterministic(t *testing.T) {
	db := filepath.Join(t.TempDir(), "akl.db")
	logRuns(t, db, documentPath("greeting.yaml"), documentPath("forward.cue"))

	out, _, err := executeCommand(t, "replay", "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "Replay Summary: 2 run(s)")
	assert.Contains(t, out, "\u2713 Run 1:")
	assert.Contains(t, out, "\u2713 Run 2:")
	assert.Contains(t, out, "\u2713 All runs verified deterministic")
}

func TestReplayFailedRunsAreDeterministic(t *testing.T) {
	db := filepath.Join(t.TempDir(), "akl.db")
	logRuns(t, db, documentPath("empty_scope.yaml"), documentPath("oscillating.yaml"))

	out, _, err := executeCommand(t, "replay", "--db", db, "--format", "json")
	require.NoError(t, err)

	var result ReplayResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.AllDeterministic)
	require.Len(t, result.Runs, 2)
	for _, run := range result.Runs {
		assert.True(t, run.DocumentMatch, run.RunID)
		assert.True(t, run.OutputMatch, run.RunID)
		assert.Empty(t, run.Mismatch)
	}
	assert.Equal(t, 0, result.Runs[0].PassCount, "aborted pass has no summary")
	assert.Equal(t, engine.DefaultMaxPasses, result.Runs[1].PassCount)
}

func TestReplaySingleRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "akl.db")
	logRuns(t, db, documentPath("greeting.yaml"), documentPath("forward.cue"))

	runs := listRuns(t, db)
	out, _, err := executeCommand(t, "replay", "--db", db, "--run", runs[1].ID, "--format", "json")
	require.NoError(t, err)

	var result ReplayResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Runs, 1)
	assert.Equal(t, runs[1].ID, result.Runs[0].RunID)
	assert.Equal(t, 5, result.Runs[0].Ops)
	assert.Equal(t, 2, result.Runs[0].PassCount)
}

func TestReplayUnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "akl.db")
	logRuns(t, db, documentPath("greeting.yaml"))

	_, _, err := executeCommand(t, "replay", "--db", db, "--run", "no-such-run")
	requireExitCode(t, err, ExitCommandError)
	assert.Contains(t, err.Error(), "run not found: no-such-run")
}

func TestReplayEmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "akl.db")

	out, _, err := executeCommand(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found in database.")

	out, _, err = executeCommand(t, "replay", "--db", db, "--format", "json")
	require.NoError(t, err)
	var result ReplayResult
	decodeResponse(t, out, &result)
	assert.True(t, result.AllDeterministic)
	assert.Empty(t, result.Runs)
}

func TestReplayDetectsTamperedLog(t *testing.T) {
	tests := []struct {
		name         string
		update       string
		wantMismatch string
		wantDocMatch bool
	}{
		{
			name:         "output fingerprint",
			update:       `UPDATE runs SET output_fingerprint = 'deadbeefdeadbeef'`,
			wantMismatch: "output fingerprint",
			wantDocMatch: true,
		},
		{
			name:         "pass count",
			update:       `UPDATE runs SET pass_count = 4`,
			wantMismatch: "pass count",
			wantDocMatch: true,
		},
		{
			name:         "operations",
			update:       `UPDATE operations SET args = '{"kind":"text","value":"Salut: "}' WHERE idx = 3`,
			wantMismatch: "document hash",
			wantDocMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := filepath.Join(t.TempDir(), "akl.db")
			logRuns(t, db, documentPath("greeting.yaml"))

			st, err := store.Open(db)
			require.NoError(t, err)
			_, err = st.DB().Exec(tt.update)
			require.NoError(t, err)
			require.NoError(t, st.Close())

			out, _, err := executeCommand(t, "replay", "--db", db, "--format", "json")
			requireExitCode(t, err, ExitFailure)

			var result ReplayResult
			resp := decodeResponse(t, out, &result)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(engine.ErrCodeNonDeterministicReplay), resp.Error.Code)
			require.Len(t, result.Runs, 1)
			assert.False(t, result.Runs[0].Deterministic)
			assert.Equal(t, tt.wantDocMatch, result.Runs[0].DocumentMatch)
			assert.Contains(t, result.Runs[0].Mismatch, tt.wantMismatch)
		})
	}
}

func TestReplayTamperedText(t *testing.T) {
	db := filepath.Join(t.TempDir(), "akl.db")
	logRuns(t, db, documentPath("greeting.yaml"))

	st, err := store.Open(db)
	require.NoError(t, err)
	_, err = st.DB().Exec(`UPDATE runs SET output_fingerprint = 'deadbeef'`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, _, err := executeCommand(t, "replay", "--db", db)
	requireExitCode(t, err, ExitFailure)
	assert.Contains(t, out, "Warning: Non-deterministic replay detected!")
	assert.Contains(t, out, "\u2717 Determinism verification failed")
}

func TestReplayRequiresRunLog(t *testing.T) {
	_, _, err := executeCommand(t, "replay")
	requireExitCode(t, err, ExitCommandError)
	assert.Contains(t, err.Error(), "no run log")
}

func TestReplayDatabaseFromConfig(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "akl.db")
	logRuns(t, db, documentPath("greeting.yaml"))
	cfgPath := writeFile(t, dir, "akl.yaml", "database:\n  path: "+db+"\n")

	out, _, err := executeCommand(t, "replay", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Replay Summary: 1 run(s)")
}

func listRuns(t *testing.T, db string) []store.Run {
	t.Helper()

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	return runs
}
