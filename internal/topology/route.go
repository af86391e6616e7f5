package topology

import (
	"context"
	"fmt"

	"github.com/roach88/topoload/internal/inventory"
)

// TrayFinder looks up tray sections by their stored orientation.
type TrayFinder interface {
	TraySectionsBetween(ctx context.Context, fromNode, toNode string) ([]inventory.Record, error)
}

// Router orders existing tray sections along a cable's waypoints. It never
// searches for paths; it only confirms that each consecutive pair of
// waypoints is joined by exactly one tray section.
type Router struct {
	cache *Cache
	trays TrayFinder
}

// NewRouter creates a router over the run's cache.
func NewRouter(cache *Cache, trays TrayFinder) *Router {
	return &Router{cache: cache, trays: trays}
}

// FindRoute walks waypoints pairwise in cable order and returns one hop per
// pair, numbered from 1.
//
// Each pair is first looked up as stored (current, next); when that finds
// nothing, as (next, current), which yields a swapped hop. A pair with no
// tray section fails the whole route with ROUTE_NOT_FOUND: no partial route
// is ever returned. More than one tray section for a pair is DATA_INTEGRITY.
//
// Waypoint ids are looked up in the node table whatever their type, since a
// building's entry point is a node with the building's id.
func (r *Router) FindRoute(ctx context.Context, waypoints []inventory.EndpointDescriptor) ([]inventory.Hop, error) {
	if len(waypoints) < 2 {
		return nil, &inventory.Error{
			Code:    inventory.ErrCodeRouteNotFound,
			Message: fmt.Sprintf("route needs at least two waypoints, got %d", len(waypoints)),
		}
	}

	nodes := make([]string, len(waypoints))
	for i, wp := range waypoints {
		elid, err := r.cache.NodeElid(wp)
		if err != nil {
			if inventory.IsEndpointNotFound(err) {
				return nil, routeGap(waypoints, i, err.Error())
			}
			return nil, err
		}
		nodes[i] = elid
	}

	hops := make([]inventory.Hop, 0, len(waypoints)-1)
	for i := 0; i+1 < len(nodes); i++ {
		from, to := waypoints[i], waypoints[i+1]
		tray, swapped, err := r.traySection(ctx, nodes[i], nodes[i+1])
		if err != nil {
			if inventory.IsDataIntegrityError(err) {
				return nil, err
			}
			return nil, fmt.Errorf("route %s -> %s: %w", from, to, err)
		}
		if tray == "" {
			return nil, inventory.NewRouteNotFoundError(from, to, "no tray section in either orientation")
		}
		hops = append(hops, inventory.Hop{TraySectionElid: tray, Swapped: swapped, Sequence: i + 1})
	}
	return hops, nil
}

// traySection returns the tray section joining two nodes and whether it is
// stored against the direction of travel. "" means none.
func (r *Router) traySection(ctx context.Context, from, to string) (string, bool, error) {
	forward, err := r.trays.TraySectionsBetween(ctx, from, to)
	if err != nil {
		return "", false, err
	}
	if elid, err := single(forward, from, to); err != nil || elid != "" {
		return elid, false, err
	}

	reverse, err := r.trays.TraySectionsBetween(ctx, to, from)
	if err != nil {
		return "", false, err
	}
	elid, err := single(reverse, to, from)
	return elid, elid != "", err
}

func single(recs []inventory.Record, from, to string) (string, error) {
	switch len(recs) {
	case 0:
		return "", nil
	case 1:
		return recs[0].Elid, nil
	}
	return "", inventory.NewDataIntegrityError(inventory.KindTraySection, from+"->"+to, len(recs), "tray section per node pair")
}

// routeGap reports an unknown waypoint as a missing route around it.
func routeGap(waypoints []inventory.EndpointDescriptor, i int, reason string) error {
	from, to := waypoints[i], waypoints[i]
	if i+1 < len(waypoints) {
		to = waypoints[i+1]
	} else {
		from = waypoints[i-1]
	}
	return inventory.NewRouteNotFoundError(from, to, reason)
}
