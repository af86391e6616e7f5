package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/topoload/internal/importer"
	"github.com/roach88/topoload/internal/inventory"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/cable_sections.yaml")
	require.NoError(t, err)

	assert.Equal(t, "cable_sections", s.Name)
	assert.Contains(t, s.Config, "dataCable")
	assert.Equal(t, SeedRecord{Kind: inventory.KindNode, Attrs: map[string]any{"elid": "N-A", "id": "A"}}, s.Seed[0])
	require.Len(t, s.Sources["cable"], 4)
	assert.Equal(t, 24, s.Sources["cable"][0]["cable_size"])
	require.Len(t, s.Runs, 3)
	assert.True(t, s.Runs[2].Cleanup)
	assert.Equal(t, Assertion{Type: AssertRoute, Cable: "H-1", Hops: []string{"T-AC", "T-CB"}}, s.Runs[0].Assertions[3])
	assert.Equal(t, importer.OutcomeFailedCreate, s.Runs[0].Assertions[5].Outcome)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: x\ndescription: y\nrun: []\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			yaml: "description: y\nruns: [{}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: x\nruns: [{}]\n",
			want: "description is required",
		},
		{
			name: "no runs",
			yaml: "name: x\ndescription: y\n",
			want: "runs list is required",
		},
		{
			name: "unknown seed kind",
			yaml: "name: x\ndescription: y\nseed: [{kind: pole, attrs: {}}]\nruns: [{}]\n",
			want: `seed[0]: unknown kind "pole"`,
		},
		{
			name: "unknown status",
			yaml: "name: x\ndescription: y\nruns: [{expect: {status: done}}]\n",
			want: `runs[0].expect: unknown status "done"`,
		},
		{
			name: "unknown count",
			yaml: "name: x\ndescription: y\nruns: [{expect: {totals: {imported: 1}}}]\n",
			want: `unknown count "imported"`,
		},
		{
			name: "assertion without type",
			yaml: "name: x\ndescription: y\nruns: [{assertions: [{kind: node}]}]\n",
			want: "runs[0].assertions[0]: type is required",
		},
		{
			name: "record_count without kind",
			yaml: "name: x\ndescription: y\nruns: [{assertions: [{type: record_count, count: 1}]}]\n",
			want: "kind is required for record_count",
		},
		{
			name: "call_count with bad op",
			yaml: "name: x\ndescription: y\nruns: [{assertions: [{type: call_count, op: query}]}]\n",
			want: "op must be create, delete, connect or update",
		},
		{
			name: "route without cable",
			yaml: "name: x\ndescription: y\nruns: [{assertions: [{type: route, hops: [T-1]}]}]\n",
			want: "cable is required for route",
		},
		{
			name: "outcome without seq",
			yaml: "name: x\ndescription: y\nruns: [{assertions: [{type: outcome, layer: node, outcome: created}]}]\n",
			want: "positive seq",
		},
		{
			name: "unknown outcome",
			yaml: "name: x\ndescription: y\nruns: [{assertions: [{type: outcome, layer: node, seq: 1, outcome: made}]}]\n",
			want: `unknown outcome "made"`,
		},
		{
			name: "unknown assertion type",
			yaml: "name: x\ndescription: y\nruns: [{assertions: [{type: trace_order}]}]\n",
			want: `unknown assertion type "trace_order"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
