package topology

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/topoload/internal/inventory"
	"github.com/roach88/topoload/internal/testutil"
)

func TestNewCache(t *testing.T) {
	fx := newFixture(t)

	elid, err := fx.cache.NodeElid(node("B"))
	require.NoError(t, err)
	assert.Equal(t, "N-B", elid)

	elid, err = fx.cache.BuildingElid(building("A"))
	require.NoError(t, err)
	assert.Equal(t, "BLD-A", elid)

	m, ok := fx.cache.CableMasterElid("FO-24")
	require.True(t, ok)
	assert.Equal(t, "CM-24", m)

	byType, ok := fx.cache.JunctionBox("JB-FIST")
	require.True(t, ok)
	byElid, ok := fx.cache.JunctionBox("JBT-F")
	require.True(t, ok)
	assert.Equal(t, byType, byElid)
	assert.True(t, byElid.Fist)

	plain, ok := fx.cache.JunctionBox("JBT-P")
	require.True(t, ok)
	assert.False(t, plain.Fist)

	assert.Equal(t, 5, fx.cache.Stats()["nodes"])
}

func TestNewCache_AmbiguousNode(t *testing.T) {
	f := testutil.NewFakeInventory()
	f.Seed(inventory.KindNode, map[string]any{"elid": "N1", "id": "P-17"})
	f.Seed(inventory.KindNode, map[string]any{"elid": "N2", "id": "P-17"})

	cache, err := NewCache(context.Background(), f)
	require.NoError(t, err)

	_, err = cache.NodeElid(node("P-17"))
	assert.True(t, inventory.IsDataIntegrityError(err))

	_, err = cache.NodeElid(node("P-18"))
	assert.True(t, inventory.IsEndpointNotFound(err))
}

func TestNewCache_CatalogFailure(t *testing.T) {
	f := testutil.NewFakeInventory()
	down := errors.New("catalog down")
	f.FailQuery(inventory.KindCableMaster, down)

	_, err := NewCache(context.Background(), f)
	require.ErrorIs(t, err, down)
	assert.Contains(t, err.Error(), "cableMaster")
}

func TestResolve_NodeFindsJunctionBox(t *testing.T) {
	fx := newFixture(t)
	r := NewResolver(fx.cache, fx.inv)

	ep, err := r.Resolve(context.Background(), node("B"))
	require.NoError(t, err)
	assert.Equal(t, inventory.ResolvedEndpoint{Elid: "JB-B", TypeElid: "JBT-F", JunctionBox: true, SpliceClosure: true}, ep)

	ep, err = r.Resolve(context.Background(), node("E"))
	require.NoError(t, err)
	assert.True(t, ep.JunctionBox)
	assert.False(t, ep.SpliceClosure)
}

func TestResolve_NodeWithoutJunctionBox(t *testing.T) {
	fx := newFixture(t)
	r := NewResolver(fx.cache, fx.inv)

	_, err := r.Resolve(context.Background(), node("C"))
	require.Error(t, err)
	assert.True(t, inventory.IsEndpointNotFound(err))

	_, err = r.Resolve(context.Background(), node("Z"))
	assert.True(t, inventory.IsEndpointNotFound(err))
}

func TestResolve_BuildingSingleDevice(t *testing.T) {
	fx := newFixture(t)
	r := NewResolver(fx.cache, fx.inv)

	ep, err := r.Resolve(context.Background(), building("A"))
	require.NoError(t, err)
	assert.Equal(t, "DEV-A", ep.Elid)
	assert.False(t, ep.JunctionBox)
}

func TestResolve_BuildingAmbiguityAndAbsence(t *testing.T) {
	fx := newFixture(t)
	fx.inv.Seed(inventory.KindDevice, map[string]any{"elid": "DEV-A2", "zoneElid": "BLD-A"})
	r := NewResolver(fx.cache, fx.inv)

	_, err := r.Resolve(context.Background(), building("A"))
	require.Error(t, err)
	assert.True(t, inventory.IsDataIntegrityError(err), "two devices in one building are never silently resolved")

	_, err = r.Resolve(context.Background(), building("X"))
	assert.True(t, inventory.IsEndpointNotFound(err))
}

func TestResolve_UnknownKind(t *testing.T) {
	fx := newFixture(t)
	_, err := NewResolver(fx.cache, fx.inv).Resolve(context.Background(), inventory.EndpointDescriptor{Kind: "pole", ID: "A"})
	assert.True(t, inventory.IsEndpointNotFound(err))
}
