package topology

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/topoload/internal/inventory"
	"github.com/roach88/topoload/internal/testutil"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// fixture is a small network:
//
//	building A (plain device DEV-A) -- node C (no devices) -- node B (fist box JB-B) -- building D (plain device DEV-D)
//
// Building ids double as node ids of their entry points. Tray sections:
//
//	T-BA  stored B -> A
//	T-AC  stored A -> C
//	T-CB  stored C -> B
//	T-BD  stored B -> D
type fixture struct {
	inv    *testutil.FakeInventory
	routes *testutil.MemoryRoutes
	cache  *Cache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := testutil.NewFakeInventory()

	for _, id := range []string{"A", "B", "C", "D", "E"} {
		f.Seed(inventory.KindNode, map[string]any{"elid": "N-" + id, "id": id})
	}
	f.Seed(inventory.KindBuilding, map[string]any{"elid": "BLD-A", "name": "A"})
	f.Seed(inventory.KindBuilding, map[string]any{"elid": "BLD-D", "name": "D"})
	f.Seed(inventory.KindBuilding, map[string]any{"elid": "BLD-X", "name": "X"})
	f.Seed(inventory.KindCableMaster, map[string]any{"elid": "CM-24", "type": "FO-24"})
	f.Seed(inventory.KindCableMaster, map[string]any{"elid": "CM-12", "type": "FO-12"})
	f.Seed(inventory.KindJunctionBoxMaster, map[string]any{"elid": "JBT-P", "type": "JB-PLAIN"})
	f.Seed(inventory.KindJunctionBoxFistMaster, map[string]any{"elid": "JBT-F", "type": "JB-FIST"})

	f.Seed(inventory.KindDevice, map[string]any{"elid": "DEV-A", "zoneElid": "BLD-A", "typeElid": "DT-SWITCH"})
	f.Seed(inventory.KindDevice, map[string]any{"elid": "DEV-D", "zoneElid": "BLD-D", "typeElid": "DT-SWITCH"})
	f.Seed(inventory.KindDevice, map[string]any{"elid": "ODF-B", "nodeElid": "N-B", "typeElid": "DT-ODF"})
	f.Seed(inventory.KindDevice, map[string]any{"elid": "JB-B", "nodeElid": "N-B", "typeElid": "JBT-F"})
	f.Seed(inventory.KindDevice, map[string]any{"elid": "JB-E", "nodeElid": "N-E", "typeElid": "JBT-P"})

	for _, tray := range [][3]string{
		{"T-BA", "N-B", "N-A"},
		{"T-AC", "N-A", "N-C"},
		{"T-CB", "N-C", "N-B"},
		{"T-BD", "N-B", "N-D"},
		{"T-BE", "N-B", "N-E"},
	} {
		f.Seed(inventory.KindTraySection, map[string]any{"elid": tray[0], "fromNodeElid": tray[1], "toNodeElid": tray[2]})
	}

	cache, err := NewCache(context.Background(), f)
	require.NoError(t, err)
	return &fixture{inv: f, routes: testutil.NewMemoryRoutes(), cache: cache}
}

func (fx *fixture) connector() *Connector {
	return NewConnector(NewResolver(fx.cache, fx.inv), NewRouter(fx.cache, fx.inv), fx.inv, fx.routes, quiet)
}

func (fx *fixture) loader() *CableLoader {
	return NewCableLoader(fx.connector(), fx.cache, nil, quiet)
}

func building(id string) inventory.EndpointDescriptor {
	return inventory.EndpointDescriptor{Kind: inventory.EndpointBuilding, ID: id}
}

func node(id string) inventory.EndpointDescriptor {
	return inventory.EndpointDescriptor{Kind: inventory.EndpointNode, ID: id}
}
