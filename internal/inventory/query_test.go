package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_WhereChoosesOperator(t *testing.T) {
	q := Query{}.Where("id", "C-100*").Where("zoneElid", "Z1")

	r, ok := q.Lookup("id")
	require.True(t, ok)
	assert.Equal(t, OpLike, r.Operator)

	r, ok = q.Lookup("zoneElid")
	require.True(t, ok)
	assert.Equal(t, OpEquals, r.Operator)
}

func TestQuery_WhereReplacesSameField(t *testing.T) {
	q := Query{}.Where("id", "a").Where("id", "b")

	require.Len(t, q.Restrictions, 1)
	assert.Equal(t, "b", q.Restrictions[0].Value)
}

func TestQuery_WireShape(t *testing.T) {
	q := Query{}.Equals("fromNodeElid", "N1").Equals("toNodeElid", "N2")

	got, err := MarshalCanonical(q.Wire())
	require.NoError(t, err)
	assert.Equal(t,
		`{"restrictions":{"fromNodeElid":{"operator":"=","value":"N1"},"toNodeElid":{"operator":"=","value":"N2"}},"returnAttributes":[]}`,
		string(got))
}

func TestQuery_AllUsesElidWildcard(t *testing.T) {
	r, ok := All().Lookup("elid")
	require.True(t, ok)
	assert.Equal(t, "*", r.Value)
	assert.Equal(t, OpLike, r.Operator)
}

func TestQuery_Matches(t *testing.T) {
	rec := NewRecord(map[string]any{"elid": "E1", "id": "C-100-2", "zoneElid": "Z1"})

	tests := []struct {
		name string
		q    Query
		want bool
	}{
		{"all", All(), true},
		{"prefix like", Query{}.Where("id", "C-100*"), true},
		{"other prefix", Query{}.Where("id", "C-101*"), false},
		{"equals", Query{}.Equals("zoneElid", "Z1"), true},
		{"equals mismatch", Query{}.Equals("zoneElid", "Z2"), false},
		{"inner wildcard", Query{}.Like("id", "C*-2"), true},
		{"conjunction", Query{}.Where("id", "C-100*").Equals("zoneElid", "Z2"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.Matches(rec))
		})
	}
}

func TestMatchWildcard(t *testing.T) {
	assert.True(t, matchWildcard("*", ""))
	assert.True(t, matchWildcard("a*b", "ab"))
	assert.False(t, matchWildcard("a*a", "a"))
	assert.True(t, matchWildcard("a*b*c", "a-x-b-y-c"))
	assert.False(t, matchWildcard("abc", "abcd"))
}
