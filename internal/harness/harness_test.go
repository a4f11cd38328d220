package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioFiles(t *testing.T) {
	tests := []string{
		"colcombet_greeting",
		"forward_reference",
		"lookup_misses",
		"empty_scope",
		"redefined_label",
		"cue_source",
	}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"colcombet_greeting", "forward_reference"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "forward_reference.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, first.Passes, second.Passes)
	assert.Equal(t, "scenario-forward_reference", first.Run.RunID)
}

func TestRun_UnexpectedRunErrorFails(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: unexpected
description: "pop without push, no run_error assertion"
document:
  - pop: ~
assertions:
  - type: output_equals
    expect: ""
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, "EMPTY_SCOPE", result.RunErrorCode)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "unexpected run error")
}

func TestRun_FailingAssertions(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: failing
description: "every assertion is wrong"
document:
  - create: a
  - set: {name: a, key: k, value: v}
  - get: {name: a, key: k}
assertions:
  - type: output_equals
    expect: "w"
  - type: output_contains
    text: "zzz"
  - type: resolve
    name: a
    entity: 2
  - type: resolve
    name: a
    missing: true
  - type: attribute
    name: a
    key: k
    value: w
  - type: attribute
    name: a
    key: k
    missing: true
  - type: entities_with
    key: k
    entities: [2]
  - type: passes
    count: 2
  - type: converged
    value: "false"
  - type: fragment_error
    name: a
    code: NAME_NOT_FOUND
  - type: run_error
    code: EMPTY_SCOPE
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 11)
	assert.Contains(t, result.Errors[0], "Assertion failed: output_equals")
	assert.Contains(t, result.Errors[1], "Output:\nv")
	assert.Contains(t, result.Errors[10], "run succeeded")
}

func TestRun_CompileError(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: bad_doc
description: "unknown op kind"
document:
  - frobnicate: x
assertions:
  - type: output_equals
    expect: ""
`))
	require.NoError(t, err)

	_, err = Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile document")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: x\ndescription: d\ndocument: [{text: a}]\nassertion: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			yaml:    "description: d\ndocument: [{text: a}]\nassertions: [{type: output_equals}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: x\ndocument: [{text: a}]\nassertions: [{type: output_equals}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no document",
			yaml:    "name: x\ndescription: d\nassertions: [{type: output_equals}]\n",
			wantErr: "exactly one of document or source",
		},
		{
			name:    "document and source",
			yaml:    "name: x\ndescription: d\nsource: a.cue\ndocument: [{text: a}]\nassertions: [{type: output_equals}]\n",
			wantErr: "exactly one of document or source",
		},
		{
			name:    "no assertions",
			yaml:    "name: x\ndescription: d\ndocument: [{text: a}]\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "bad rebind",
			yaml:    "name: x\ndescription: d\nconfig: {rebind: merge}\ndocument: [{text: a}]\nassertions: [{type: output_equals}]\n",
			wantErr: "config.rebind",
		},
		{
			name:    "bad style",
			yaml:    "name: x\ndescription: d\nconfig: {style: html}\ndocument: [{text: a}]\nassertions: [{type: output_equals}]\n",
			wantErr: "config.style",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\ndescription: d\ndocument: [{text: a}]\nassertions: [{type: trace_order}]\n",
			wantErr: `unknown assertion type "trace_order"`,
		},
		{
			name:    "resolve without target",
			yaml:    "name: x\ndescription: d\ndocument: [{text: a}]\nassertions: [{type: resolve, name: a}]\n",
			wantErr: "entity or missing",
		},
		{
			name:    "converged not bool",
			yaml:    "name: x\ndescription: d\ndocument: [{text: a}]\nassertions: [{type: converged, value: maybe}]\n",
			wantErr: "true or false",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"name: x\ndescription: d\nsource: missing.cue\nassertions: [{type: output_equals}]\n"), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source file not found")
}

func TestFindScenarios(t *testing.T) {
	paths, err := FindScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	assert.Len(t, paths, 6)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "colcombet_greeting.yaml"), paths[0])

	single, err := FindScenarios(paths[0])
	require.NoError(t, err)
	assert.Equal(t, []string{paths[0]}, single)

	_, err = FindScenarios(filepath.Join("testdata", "nope"))
	assert.Error(t, err)
}

func TestRunSuite(t *testing.T) {
	paths, err := FindScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(
		"name: bad\ndescription: d\ndocument: [{text: a}]\nassertions: [{type: output_equals, expect: b}]\n"), 0o644))
	paths = append(paths, bad)

	result := RunSuite(context.Background(), paths)
	assert.Equal(t, 7, result.Total)
	assert.Equal(t, 6, result.Passed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "bad", result.Failures[0].Scenario)
	assert.Equal(t, bad, result.Failures[0].Path)
}
