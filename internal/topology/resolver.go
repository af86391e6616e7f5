package topology

import (
	"context"
	"fmt"

	"github.com/roach88/topoload/internal/inventory"
)

// DeviceLister enumerates the devices physically present at a location.
type DeviceLister interface {
	DevicesInNode(ctx context.Context, nodeElid string) ([]inventory.Record, error)
	DevicesInZone(ctx context.Context, zoneElid string) ([]inventory.Record, error)
}

// Resolver finds the connectable entity at a cable endpoint.
type Resolver struct {
	cache   *Cache
	devices DeviceLister
}

// NewResolver creates a resolver over the run's cache.
func NewResolver(cache *Cache, devices DeviceLister) *Resolver {
	return &Resolver{cache: cache, devices: devices}
}

// Resolve returns the entity a cable can terminate on at ep.
//
// Node endpoints resolve to the first attached device whose type is in the
// junction-box catalog. Building endpoints resolve to the single device in
// the building's zone: none is ENDPOINT_NOT_FOUND and several is
// DATA_INTEGRITY, since there is no rule to pick one.
func (r *Resolver) Resolve(ctx context.Context, ep inventory.EndpointDescriptor) (inventory.ResolvedEndpoint, error) {
	switch ep.Kind {
	case inventory.EndpointNode:
		return r.resolveNode(ctx, ep)
	case inventory.EndpointBuilding:
		return r.resolveBuilding(ctx, ep)
	}
	return inventory.ResolvedEndpoint{}, inventory.NewEndpointNotFoundError(ep, fmt.Sprintf("unknown endpoint type %q", ep.Kind))
}

func (r *Resolver) resolveNode(ctx context.Context, ep inventory.EndpointDescriptor) (inventory.ResolvedEndpoint, error) {
	nodeElid, err := r.cache.NodeElid(ep)
	if err != nil {
		return inventory.ResolvedEndpoint{}, err
	}
	devices, err := r.devices.DevicesInNode(ctx, nodeElid)
	if err != nil {
		return inventory.ResolvedEndpoint{}, fmt.Errorf("resolve %s: %w", ep, err)
	}
	for _, d := range devices {
		if jt, ok := r.cache.JunctionBox(d.String("typeElid")); ok {
			return inventory.ResolvedEndpoint{
				Elid:          d.Elid,
				TypeElid:      jt.Elid,
				JunctionBox:   true,
				SpliceClosure: jt.Fist,
			}, nil
		}
	}
	return inventory.ResolvedEndpoint{}, inventory.NewEndpointNotFoundError(ep,
		fmt.Sprintf("no junction box among %d devices in node", len(devices)))
}

func (r *Resolver) resolveBuilding(ctx context.Context, ep inventory.EndpointDescriptor) (inventory.ResolvedEndpoint, error) {
	buildingElid, err := r.cache.BuildingElid(ep)
	if err != nil {
		return inventory.ResolvedEndpoint{}, err
	}
	devices, err := r.devices.DevicesInZone(ctx, buildingElid)
	if err != nil {
		return inventory.ResolvedEndpoint{}, fmt.Errorf("resolve %s: %w", ep, err)
	}
	switch len(devices) {
	case 0:
		return inventory.ResolvedEndpoint{}, inventory.NewEndpointNotFoundError(ep, "no device in building zone")
	case 1:
	default:
		return inventory.ResolvedEndpoint{}, inventory.NewDataIntegrityError(inventory.KindBuilding, ep.ID, len(devices), "device in building zone")
	}

	d := devices[0]
	res := inventory.ResolvedEndpoint{Elid: d.Elid, TypeElid: d.String("typeElid")}
	if jt, ok := r.cache.JunctionBox(res.TypeElid); ok {
		res.JunctionBox = true
		res.SpliceClosure = jt.Fist
	}
	return res, nil
}
