// Package inventory holds the domain model shared by every import layer:
// records read from the inventory system, candidates about to be written,
// the per-entity capability interface and the pure wire transforms that turn
// domain values into REST request bodies.
package inventory

import (
	"fmt"
	"sort"
	"strconv"
)

// Kind names an entity type as the REST gateway knows it.
type Kind string

const (
	KindCampus          Kind = "campus"
	KindBuilding        Kind = "building"
	KindZone            Kind = "zone"
	KindDevice          Kind = "device"
	KindJunctionBox     Kind = "junctionBox"
	KindJunctionBoxFist Kind = "junctionBoxFist"
	KindNode            Kind = "node"
	KindTraySection     Kind = "traySection"
	KindDataCable       Kind = "dataCable"
	KindCableMaster     Kind = "cableMaster"

	KindJunctionBoxMaster     Kind = "deviceMasterJunctionBox"
	KindJunctionBoxFistMaster Kind = "deviceMasterJunctionBoxFist"
)

// Kinds lists every entity type.
var Kinds = []Kind{
	KindCampus, KindBuilding, KindZone, KindDevice, KindJunctionBox, KindJunctionBoxFist,
	KindNode, KindTraySection, KindDataCable, KindCableMaster,
	KindJunctionBoxMaster, KindJunctionBoxFistMaster,
}

// Valid reports whether k is a known entity type.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Record is an entity as read back from the inventory system.
// Records are immutable for the duration of a run.
type Record struct {
	Elid  string
	Attrs map[string]any
}

// NewRecord builds a Record from a decoded returnData object. The elid is
// taken from the "elid" attribute.
func NewRecord(attrs map[string]any) Record {
	r := Record{Attrs: attrs}
	if r.Attrs == nil {
		r.Attrs = map[string]any{}
	}
	r.Elid = r.String("elid")
	return r
}

// String returns the attribute as a string. Numbers are formatted without
// exponent; missing or null attributes yield "".
func (r Record) String(field string) string {
	return stringValue(r.Attrs[field])
}

// Candidate is a not-yet-persisted entity produced by a collector.
//
// Attrs holds plain attribute values keyed by their REST name. Links holds
// resolved relations (relation name → target elid) which serialize as
// createLink objects.
type Candidate struct {
	Kind  Kind
	Attrs map[string]any
	Links map[string]string
}

// NewCandidate returns a candidate of the given kind with a copy of attrs.
func NewCandidate(kind Kind, attrs map[string]any) Candidate {
	c := Candidate{Kind: kind, Attrs: make(map[string]any, len(attrs))}
	for k, v := range attrs {
		c.Attrs[k] = v
	}
	return c
}

// String returns the attribute as a string, "" when absent.
func (c Candidate) String(field string) string {
	return stringValue(c.Attrs[field])
}

// WithLink returns a copy of the candidate with the relation set.
func (c Candidate) WithLink(name, elid string) Candidate {
	links := make(map[string]string, len(c.Links)+1)
	for k, v := range c.Links {
		links[k] = v
	}
	links[name] = elid
	c.Links = links
	return c
}

// Describe renders a short, stable description used in logs and reports.
func (c Candidate) Describe() string {
	keys := make([]string, 0, len(c.Attrs))
	for k := range c.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range []string{"id", "handle", "name"} {
		if v := c.String(k); v != "" {
			return fmt.Sprintf("%s %s=%s", c.Kind, k, v)
		}
	}
	return fmt.Sprintf("%s %v", c.Kind, keys)
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
