package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Reports, len(scenario.Runs))
		})
	}
}

func TestRun_IsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/cable_sections.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	second, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Snapshots, second.Snapshots)
	assert.Equal(t, first.Reports[0].StartedAt, second.Reports[0].StartedAt)
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_expectations
description: "every expectation is off by one"
sources:
  campus:
    - {name: North}
runs:
  - expect:
      status: failed
      totals: {just_imported: 2}
    assertions:
      - {type: record_count, kind: campus, count: 2}
      - {type: call_count, op: create, kind: campus, count: 0}
      - {type: outcome, layer: campus, seq: 1, outcome: already_exists}
      - {type: outcome, layer: building, seq: 1, outcome: created}
      - {type: route, cable: H-1, hops: [T-1]}
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 7)

	joined := strings.Join(result.Errors, "\n")
	assert.Contains(t, joined, "status: expected failed, got complete")
	assert.Contains(t, joined, "totals.just_imported: expected 2, got 1")
	assert.Contains(t, joined, "record_count: expected 2 campus record(s), got 1")
	assert.Contains(t, joined, "call_count: expected 0 create call(s) on campus, got 1")
	assert.Contains(t, joined, "outcome: expected campus item 1 already_exists, got created")
	assert.Contains(t, joined, "layer building to have run")
	assert.Contains(t, joined, "route: expected cable H-1, got no such cable")
}

func TestRun_Only(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: only_nodes
description: "a run restricted to one layer leaves the others alone"
sources:
  campus:
    - {name: North}
  node:
    - {id: P-1}
runs:
  - only: [node]
    expect:
      totals: {total: 1, just_imported: 1}
    assertions:
      - {type: record_count, kind: campus, count: 0}
      - {type: record_count, kind: node, count: 1}
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Snapshots, 1)
	require.Len(t, result.Snapshots[0].Layers, 1)
	assert.Equal(t, "node", result.Snapshots[0].Layers[0].Name)
}

func TestRun_BadConfig(t *testing.T) {
	scenario := &Scenario{
		Name:   "bad_config",
		Config: `layers: [{name: "pole", entity: "pole"}]`,
		Runs:   []RunStep{{}},
	}
	_, err := Run(context.Background(), scenario)
	assert.ErrorContains(t, err, "scenario bad_config: config")
}
