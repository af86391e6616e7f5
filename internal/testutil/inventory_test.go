package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/topoload/internal/inventory"
)

func TestFakeInventory_CreateStoresLinks(t *testing.T) {
	f := NewFakeInventory()
	ctx := context.Background()

	cand := inventory.NewCandidate(inventory.KindBuilding, map[string]any{"name": "B1"}).WithLink("campus", "C1")
	res, err := f.Entity(inventory.KindBuilding).Create(ctx, cand)
	require.NoError(t, err)
	require.True(t, res.Success)

	rec, err := f.Entity(inventory.KindBuilding).GetByElid(ctx, res.Elid)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "C1", rec.String("campusElid"))
	assert.Equal(t, 1, f.CallCount("create", inventory.KindBuilding))
}

func TestFakeInventory_LinkAttributeIsLowerCamel(t *testing.T) {
	f := NewFakeInventory()
	ctx := context.Background()

	cand := inventory.NewCandidate(inventory.KindBuilding, map[string]any{"name": "B1"}).WithLink("Campus", "C1")
	res, err := f.Entity(inventory.KindBuilding).Create(ctx, cand)
	require.NoError(t, err)

	rec, err := f.Entity(inventory.KindBuilding).GetByElid(ctx, res.Elid)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "C1", rec.String("campusElid"))
	assert.NotContains(t, rec.Attrs, "CampusElid")
}

func TestFakeInventory_FailUpdate(t *testing.T) {
	f := NewFakeInventory()
	ctx := context.Background()
	elid := f.Seed(inventory.KindDataCable, map[string]any{"id": ""})

	f.FailUpdate(errors.New("gateway timeout"))
	require.EqualError(t, f.UpdateCable(ctx, elid, "H-1", "H-1"), "gateway timeout")
	assert.Equal(t, "", f.Records(inventory.KindDataCable)[0].String("id"))

	f.FailUpdate(nil)
	require.NoError(t, f.UpdateCable(ctx, elid, "H-1", "H-1"))
	assert.Equal(t, "H-1", f.Records(inventory.KindDataCable)[0].String("id"))
}

func TestFakeInventory_SeedIsNotACall(t *testing.T) {
	f := NewFakeInventory()
	elid := f.Seed(inventory.KindNode, map[string]any{"id": "N1"})

	assert.Equal(t, "node-001", elid)
	assert.Empty(t, f.Calls())
	assert.Len(t, f.Records(inventory.KindNode), 1)
}

func TestFakeInventory_Injections(t *testing.T) {
	f := NewFakeInventory()
	ctx := context.Background()
	e := f.Entity(inventory.KindCampus)
	boom := errors.New("boom")

	f.FailCreate(inventory.KindCampus, "name=Broken", boom)
	f.RejectCreate(inventory.KindCampus, "name=Rejected", "invalid name")
	f.ConflictOnCreate(inventory.KindCampus, "name=Taken")

	_, err := e.Create(ctx, inventory.NewCandidate(inventory.KindCampus, map[string]any{"name": "Broken"}))
	assert.ErrorIs(t, err, boom)

	res, err := e.Create(ctx, inventory.NewCandidate(inventory.KindCampus, map[string]any{"name": "Rejected"}))
	require.NoError(t, err)
	assert.Equal(t, "invalid name", res.Message)

	res, err = e.Create(ctx, inventory.NewCandidate(inventory.KindCampus, map[string]any{"name": "Taken"}))
	require.NoError(t, err)
	assert.True(t, res.AlreadyExists)

	assert.Empty(t, f.Records(inventory.KindCampus))
}

func TestFakeInventory_Topology(t *testing.T) {
	f := NewFakeInventory()
	ctx := context.Background()
	f.Seed(inventory.KindDevice, map[string]any{"elid": "D1", "nodeElid": "N1"})
	f.Seed(inventory.KindDevice, map[string]any{"elid": "D2", "zoneElid": "B1"})
	f.Seed(inventory.KindTraySection, map[string]any{"elid": "T1", "fromNodeElid": "N1", "toNodeElid": "N2"})

	inNode, err := f.DevicesInNode(ctx, "N1")
	require.NoError(t, err)
	require.Len(t, inNode, 1)
	assert.Equal(t, "D1", inNode[0].Elid)

	inZone, err := f.DevicesInZone(ctx, "B1")
	require.NoError(t, err)
	require.Len(t, inZone, 1)

	trays, err := f.TraySectionsBetween(ctx, "N2", "N1")
	require.NoError(t, err)
	assert.Empty(t, trays, "orientation matters")

	elids, err := f.Connect(ctx, inventory.ConnectRequest{JunctionBoxElid: "D1", DeviceElid: "D2"})
	require.NoError(t, err)
	require.Len(t, elids, 1)
	require.NoError(t, f.UpdateCable(ctx, elids[0], "H-1", "H-1"))

	found, err := f.FindCables(ctx, "H*")
	require.NoError(t, err)
	require.Len(t, found, 1)

	require.NoError(t, f.DeleteCable(ctx, elids[0]))
	assert.Empty(t, f.Records(inventory.KindDataCable))
	assert.Equal(t, 1, f.CallCount("connect", ""))
}

func TestMemoryRoutes_AllOrNothing(t *testing.T) {
	m := NewMemoryRoutes()
	ctx := context.Background()

	err := m.PersistRoute(ctx, "CAB", []inventory.Hop{{TraySectionElid: "T1", Sequence: 2}})
	require.Error(t, err)
	assert.Equal(t, 0, m.Len())

	hops := []inventory.Hop{{TraySectionElid: "T1", Sequence: 1}, {TraySectionElid: "T2", Sequence: 2, Swapped: true}}
	require.NoError(t, m.PersistRoute(ctx, "CAB", hops))
	assert.Equal(t, hops, m.Route("CAB"))
	assert.Error(t, m.PersistRoute(ctx, "CAB", hops))

	n, err := m.DeleteRoute(ctx, "CAB")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
