package inventory

import "fmt"

// EndpointKind tags what an endpoint descriptor refers to.
type EndpointKind string

const (
	EndpointBuilding EndpointKind = "building"
	EndpointNode     EndpointKind = "node"
)

// EndpointDescriptor is an abstract topology reference taken from a cable
// feature: {type: building|node, id}.
type EndpointDescriptor struct {
	Kind EndpointKind `json:"type" yaml:"type"`
	ID   string       `json:"id" yaml:"id"`
}

func (d EndpointDescriptor) String() string {
	return fmt.Sprintf("%s:%s", d.Kind, d.ID)
}

// Valid reports whether the descriptor has a known kind and an id.
func (d EndpointDescriptor) Valid() bool {
	return d.ID != "" && (d.Kind == EndpointBuilding || d.Kind == EndpointNode)
}

// ResolvedEndpoint is the connectable entity found at an endpoint.
type ResolvedEndpoint struct {
	Elid          string
	TypeElid      string
	JunctionBox   bool
	SpliceClosure bool
}

// LinkDescription is the relation tag stored on every route row.
const LinkDescription = "STCTRM_TRAY_SECTION_STCCLI_CABLE"

// Hop is one ordered assignment of a cable to a tray section.
//
// Swapped is true when the tray section's stored (from, to) is the reverse
// of the cable's direction of travel. Sequence starts at 1.
type Hop struct {
	TraySectionElid string `json:"tray_section_elid" yaml:"tray_section_elid"`
	Swapped         bool   `json:"swapped" yaml:"swapped"`
	Sequence        int    `json:"sequence" yaml:"sequence"`
}

// SwapFlag renders Swapped as the Y/N column value.
func (h Hop) SwapFlag() string {
	if h.Swapped {
		return "Y"
	}
	return "N"
}

// ValidateHops checks that hops form the contiguous sequence 1..N.
func ValidateHops(hops []Hop) error {
	if len(hops) == 0 {
		return fmt.Errorf("route has no hops")
	}
	for i, h := range hops {
		if h.Sequence != i+1 {
			return fmt.Errorf("hop %d has sequence %d, want %d", i, h.Sequence, i+1)
		}
		if h.TraySectionElid == "" {
			return fmt.Errorf("hop %d has no tray section", h.Sequence)
		}
	}
	return nil
}
