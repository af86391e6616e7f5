package loader

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/roach88/topoload/internal/config"
	"github.com/roach88/topoload/internal/importer"
	"github.com/roach88/topoload/internal/inventory"
	"github.com/roach88/topoload/internal/topology"
)

// Inventory is the topology surface the cable layer needs.
// *restapi.Client and *testutil.FakeInventory implement it.
type Inventory interface {
	topology.Catalog
	topology.DeviceLister
	topology.TrayFinder
	topology.CableService
}

// Deps are the collaborators of configured layers.
type Deps struct {
	Entities  func(inventory.Kind) inventory.Entity
	Inventory Inventory
	Routes    topology.RoutePersister
	Logger    *slog.Logger
}

// CableTypes overlays configured mappings on topology.DefaultCableTypes.
func CableTypes(overrides map[string]string) map[string]string {
	types := maps.Clone(topology.DefaultCableTypes)
	maps.Copy(types, overrides)
	return types
}

// Layers builds the configured layers in import order.
func Layers(cfg *config.Config, deps Deps) ([]Layer, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	types := CableTypes(cfg.CableTypes)

	out := make([]Layer, 0, len(cfg.Layers))
	for _, def := range cfg.Layers {
		if def.Entity == inventory.KindDataCable {
			out = append(out, cableLayer(def.Name, types, deps))
			continue
		}
		l := StaticLayer(def.Name,
			deps.Entities(def.Entity),
			importer.KeyFields(def.Entity, def.Key...),
			importer.KeyFields(def.Entity, def.StoredKey()...))
		l.Rules = def.Required
		for _, rel := range def.Relations {
			target, ok := cfg.Layer(rel.Layer)
			if !ok {
				return nil, fmt.Errorf("layer %s: relation %s: unknown layer %q", def.Name, rel.Link, rel.Layer)
			}
			l.Relations = append(l.Relations, Relation{
				Link:  rel.Link,
				Layer: rel.Layer,
				Key:   importer.KeyFields(target.Entity, rel.Fields...),
			})
		}
		out = append(out, l)
	}
	return out, nil
}

// cableLayer loads the topology catalogs when the layer starts, after the
// locations and equipment it connects have been imported.
func cableLayer(name string, types map[string]string, deps Deps) Layer {
	return Layer{
		Name:      name,
		Kind:      inventory.KindDataCable,
		Key:       topology.CableCandidateKey,
		StoredKey: topology.CableRecordKey,
		Open: func(ctx context.Context) (inventory.Entity, error) {
			cache, err := topology.NewCache(ctx, deps.Inventory)
			if err != nil {
				return nil, err
			}
			deps.Logger.Info("topology cache loaded", "layer", name, "catalogs", cache.Stats())
			connector := topology.NewConnector(
				topology.NewResolver(cache, deps.Inventory),
				topology.NewRouter(cache, deps.Inventory),
				deps.Inventory, deps.Routes, deps.Logger)
			loader := topology.NewCableLoader(connector, cache, types, deps.Logger)
			return topology.NewCableEntity(deps.Entities(inventory.KindDataCable), deps.Inventory, deps.Routes, loader, deps.Logger), nil
		},
	}
}
