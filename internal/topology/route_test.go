package topology

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/topoload/internal/inventory"
)

func TestFindRoute_ReverseStoredTrayIsSwapped(t *testing.T) {
	fx := newFixture(t)
	r := NewRouter(fx.cache, fx.inv)

	hops, err := r.FindRoute(context.Background(), []inventory.EndpointDescriptor{building("A"), node("B")})
	require.NoError(t, err)
	assert.Equal(t, []inventory.Hop{{TraySectionElid: "T-BA", Swapped: true, Sequence: 1}}, hops)
}

func TestFindRoute_MultiHopOrdered(t *testing.T) {
	fx := newFixture(t)
	r := NewRouter(fx.cache, fx.inv)

	waypoints := []inventory.EndpointDescriptor{building("A"), node("C"), node("B"), building("D")}
	hops, err := r.FindRoute(context.Background(), waypoints)
	require.NoError(t, err)

	assert.Equal(t, []inventory.Hop{
		{TraySectionElid: "T-AC", Swapped: false, Sequence: 1},
		{TraySectionElid: "T-CB", Swapped: false, Sequence: 2},
		{TraySectionElid: "T-BD", Swapped: false, Sequence: 3},
	}, hops)
	require.Len(t, hops, len(waypoints)-1)
	require.NoError(t, inventory.ValidateHops(hops))
}

func TestFindRoute_ReverseTravel(t *testing.T) {
	fx := newFixture(t)
	r := NewRouter(fx.cache, fx.inv)

	hops, err := r.FindRoute(context.Background(), []inventory.EndpointDescriptor{building("D"), node("B"), node("C")})
	require.NoError(t, err)
	assert.Equal(t, []inventory.Hop{
		{TraySectionElid: "T-BD", Swapped: true, Sequence: 1},
		{TraySectionElid: "T-CB", Swapped: true, Sequence: 2},
	}, hops)
}

func TestFindRoute_AllOrNothing(t *testing.T) {
	fx := newFixture(t)
	r := NewRouter(fx.cache, fx.inv)

	// A -> C exists, C -> D does not.
	hops, err := r.FindRoute(context.Background(), []inventory.EndpointDescriptor{building("A"), node("C"), building("D")})
	require.Error(t, err)
	assert.Nil(t, hops)
	assert.True(t, inventory.IsRouteNotFound(err))

	var ie *inventory.Error
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "node:C", ie.Details["from"])
	assert.Equal(t, "building:D", ie.Details["to"])
}

func TestFindRoute_UnknownWaypoint(t *testing.T) {
	fx := newFixture(t)
	_, err := NewRouter(fx.cache, fx.inv).FindRoute(context.Background(), []inventory.EndpointDescriptor{node("A"), node("Q")})
	assert.True(t, inventory.IsRouteNotFound(err))
}

func TestFindRoute_DuplicateTraySections(t *testing.T) {
	fx := newFixture(t)
	fx.inv.Seed(inventory.KindTraySection, map[string]any{"elid": "T-AC-2", "fromNodeElid": "N-A", "toNodeElid": "N-C"})

	_, err := NewRouter(fx.cache, fx.inv).FindRoute(context.Background(), []inventory.EndpointDescriptor{node("A"), node("C")})
	require.Error(t, err)
	assert.True(t, inventory.IsDataIntegrityError(err))
}

func TestFindRoute_TooFewWaypoints(t *testing.T) {
	fx := newFixture(t)
	_, err := NewRouter(fx.cache, fx.inv).FindRoute(context.Background(), []inventory.EndpointDescriptor{node("A")})
	assert.True(t, inventory.IsRouteNotFound(err))
}
