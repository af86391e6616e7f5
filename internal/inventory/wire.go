package inventory

import (
	"fmt"
	"strings"
)

// Wire serializes a candidate into its REST create body.
//
// Plain attributes are copied as-is, nil values are dropped, and each link
// becomes a createLink{Name} object of the form {"linkedElid": elid}. The
// transform is pure: the candidate is not modified.
func (c Candidate) Wire() map[string]any {
	body := make(map[string]any, len(c.Attrs)+len(c.Links))
	for k, v := range c.Attrs {
		if v == nil {
			continue
		}
		body[k] = v
	}
	for name, elid := range c.Links {
		body[LinkField(name)] = LinkObject(elid)
	}
	return body
}

// LinkField returns the wire field for a relation: "campus" → "createLinkCampus".
func LinkField(name string) string {
	if name == "" {
		return "createLink"
	}
	return "createLink" + strings.ToUpper(name[:1]) + name[1:]
}

// LinkObject is the wire form of a reference to an existing record.
func LinkObject(elid string) map[string]any {
	return map[string]any{"linkedElid": elid}
}

// PortIdentifier addresses one network port of a device.
func PortIdentifier(deviceElid, side string, port int) string {
	return fmt.Sprintf("%s|NETWORK|%s|%d", deviceElid, side, port)
}

// ConnectRequest describes a connect call issued against a junction box.
type ConnectRequest struct {
	// JunctionBoxElid is the box the cable starts from.
	JunctionBoxElid string

	// SpliceClosure selects the junctionBoxFist sub-resource.
	SpliceClosure bool

	// DeviceElid is the far end the cable terminates on.
	DeviceElid string

	CableTypeElid string
	Wires         int
}

// Entity returns the REST entity the connect call targets.
func (r ConnectRequest) Entity() Kind {
	if r.SpliceClosure {
		return KindJunctionBoxFist
	}
	return KindJunctionBox
}

// Wire renders the connect request body.
func (r ConnectRequest) Wire() map[string]any {
	return map[string]any{
		"cableLength":    0,
		"useBundleCable": true,
		"geoDirection":   "EAST",
		"startWire":      1,
		"numberOfWires":  r.Wires,
		"cableTypeElid":  r.CableTypeElid,
		"connectToDeviceAll": map[string]any{
			"portIdentifier": PortIdentifier(r.DeviceElid, "B", 1),
		},
	}
}

// CableUpdateWire is the body renaming a data cable.
func CableUpdateWire(id, visibleID string) map[string]any {
	return map[string]any{"id": id, "visibleId": visibleID}
}

// CableDeleteWire is the body deleting a data cable and releasing whatever
// still references it.
func CableDeleteWire() map[string]any {
	return map[string]any{
		"releaseService":    "true",
		"releaseSignalpath": "true",
		"releaseTrmRoute":   "true",
	}
}
