package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/akl/internal/ir"
)

func TestCompileText(t *testing.T) {
	out, _, err := executeCommand(t, "compile", documentPath("greeting.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, "\u2713 Compiled 8 op(s)")
	doc, err := LoadDocument(documentPath("greeting.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Document hash: "+ir.MustDocumentHash(doc.Ops))
}

func TestCompileVerboseListsOps(t *testing.T) {
	out, _, err := executeCommand(t, "compile", "--verbose", documentPath("greeting.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, `push("Colcombet")`)
	assert.Contains(t, out, `get("", "salut")`)
	assert.Contains(t, out, "pop()")
}

func TestCompileJSON(t *testing.T) {
	out, _, err := executeCommand(t, "compile", "--format", "json", documentPath("forward.cue"))
	require.NoError(t, err)

	var result CompilationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, result.Ops, 5)
	assert.Equal(t, ir.OpRef, result.Ops[1].Kind)
	assert.Equal(t, "thm", result.Ops[1].Name)
	assert.Equal(t, ir.IRVersion, result.IRVersion)
	assert.Equal(t, ir.MustDocumentHash(result.Ops), result.DocumentHash, "ops survive the JSON round trip")
}

func TestCompileWritesCanonicalIR(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "greeting.ir.json")

	out, _, err := executeCommand(t, "compile", "-o", outFile, documentPath("greeting.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote canonical IR to "+outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	s := string(data)
	assert.True(t, strings.HasPrefix(s, `{"document_hash":"`), "keys are sorted: %s", s)
	assert.Contains(t, s, `"ir_version":"1"`)
	assert.Contains(t, s, `{"alias":"Colcombet","kind":"synonym","name":"Thomas Colcombet"}`)
	assert.NotContains(t, s, "\n")
}

func TestCompilePackageDirectory(t *testing.T) {
	out, _, err := executeCommand(t, "compile", "testdata/package")
	require.NoError(t, err)
	assert.Contains(t, out, "Compiled 4 op(s)")
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantCode string
	}{
		{"not found", documentPath("missing.cue"), ErrCodeNotFound},
		{"unsupported", documentPath("notes.txt"), ErrCodeUnsupported},
		{"malformed entry", documentPath("invalid.yaml"), ErrCodeInvalidEntry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := executeCommand(t, "compile", "--format", "json", tt.path)
			requireExitCode(t, err, ExitCommandError)

			resp := decodeResponse(t, out, nil)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestCompileErrorText(t *testing.T) {
	out, _, err := executeCommand(t, "compile", documentPath("invalid.yaml"))
	requireExitCode(t, err, ExitCommandError)

	assert.Contains(t, out, "\u2717 Loading document failed")
	assert.Contains(t, out, "invalid.yaml:3:")
	assert.Contains(t, out, "frobnicate")
}

func TestCompileWriteFailure(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "no", "such", "dir", "out.json")

	out, _, err := executeCommand(t, "compile", "--format", "json", "-o", outFile, documentPath("greeting.yaml"))
	requireExitCode(t, err, ExitCommandError)

	resp := decodeResponse(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeWriteFailed, resp.Error.Code)
}
