package inventory

import (
	"fmt"
	"strings"
)

// Operator is a restriction comparison understood by the REST gateway.
type Operator string

const (
	OpEquals Operator = "="
	OpLike   Operator = "like"
)

// Restriction filters one field.
type Restriction struct {
	Field    string
	Value    string
	Operator Operator
}

// Query is an entity query: all restrictions must hold.
//
// Semantics:
//
//	POST entity/{kind}/query
//	{"restrictions": {field: {"value": v, "operator": op}}, "returnAttributes": []}
//
// Restrictions keep insertion order; a later restriction on the same field
// replaces the earlier one, matching the object form on the wire.
type Query struct {
	Restrictions     []Restriction
	ReturnAttributes []string
}

// All returns the query matching every record of a type.
func All() Query {
	return Query{}.Where("elid", "*")
}

// Where adds a restriction. The operator is like when value contains a
// wildcard and equality otherwise.
func (q Query) Where(field, value string) Query {
	op := OpEquals
	if strings.Contains(value, "*") {
		op = OpLike
	}
	return q.with(Restriction{Field: field, Value: value, Operator: op})
}

// Equals adds an equality restriction regardless of wildcards.
func (q Query) Equals(field, value string) Query {
	return q.with(Restriction{Field: field, Value: value, Operator: OpEquals})
}

// Like adds a pattern restriction.
func (q Query) Like(field, pattern string) Query {
	return q.with(Restriction{Field: field, Value: pattern, Operator: OpLike})
}

func (q Query) with(r Restriction) Query {
	out := Query{
		Restrictions:     make([]Restriction, 0, len(q.Restrictions)+1),
		ReturnAttributes: q.ReturnAttributes,
	}
	for _, existing := range q.Restrictions {
		if existing.Field != r.Field {
			out.Restrictions = append(out.Restrictions, existing)
		}
	}
	out.Restrictions = append(out.Restrictions, r)
	return out
}

// Lookup returns the restriction on field, if any.
func (q Query) Lookup(field string) (Restriction, bool) {
	for _, r := range q.Restrictions {
		if r.Field == field {
			return r, true
		}
	}
	return Restriction{}, false
}

// Matches evaluates the query against a record in memory. Like patterns
// support '*' as a multi-character wildcard.
func (q Query) Matches(r Record) bool {
	for _, res := range q.Restrictions {
		v := r.String(res.Field)
		if res.Field == "elid" {
			v = r.Elid
		}
		switch res.Operator {
		case OpLike:
			if !matchWildcard(res.Value, v) {
				return false
			}
		default:
			if v != res.Value {
				return false
			}
		}
	}
	return true
}

// Wire renders the query as its REST request body.
func (q Query) Wire() map[string]any {
	restrictions := make(map[string]any, len(q.Restrictions))
	for _, r := range q.Restrictions {
		restrictions[r.Field] = map[string]any{
			"value":    r.Value,
			"operator": string(r.Operator),
		}
	}
	attrs := make([]any, 0, len(q.ReturnAttributes))
	for _, a := range q.ReturnAttributes {
		attrs = append(attrs, a)
	}
	return map[string]any{
		"restrictions":     restrictions,
		"returnAttributes": attrs,
	}
}

func (q Query) String() string {
	parts := make([]string, 0, len(q.Restrictions))
	for _, r := range q.Restrictions {
		parts = append(parts, fmt.Sprintf("%s %s %q", r.Field, r.Operator, r.Value))
	}
	return strings.Join(parts, " AND ")
}

// RelationQueryWire is the body of a relation query such as node DevicesAll,
// with no restrictions on either side.
func RelationQueryWire() map[string]any {
	return map[string]any{
		"relationRestrictions":     map[string]any{},
		"entityRestrictions":       map[string]any{},
		"returnRelationAttributes": []any{},
		"returnEntityAttributes":   []any{},
	}
}

// matchWildcard reports whether s matches pattern, where '*' matches any run
// of characters.
func matchWildcard(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, p := range parts[1 : len(parts)-1] {
		i := strings.Index(s, p)
		if i < 0 {
			return false
		}
		s = s[i+len(p):]
	}
	return strings.HasSuffix(s, last)
}
