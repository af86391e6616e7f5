package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Collector yields the raw candidate properties of a layer.
//
// A layer with no source returns an error wrapping fs.ErrNotExist; the
// orchestrator treats that as an empty layer.
type Collector interface {
	Collect(ctx context.Context, layer string) ([]map[string]any, error)
}

// FileCollector reads {Dir}/{layer}.json GeoJSON FeatureCollections and
// yields each feature's properties. Geometry is ignored.
type FileCollector struct {
	Dir string
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// Path is the file read for layer.
func (c FileCollector) Path(layer string) string {
	return filepath.Join(c.Dir, layer+".json")
}

// Collect implements Collector.
func (c FileCollector) Collect(ctx context.Context, layer string) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := c.Path(layer)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", layer, err)
	}

	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("collect %s: parse %s: %w", layer, path, err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("collect %s: %s is a %q, want FeatureCollection", layer, path, fc.Type)
	}

	out := make([]map[string]any, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f.Properties == nil {
			return nil, fmt.Errorf("collect %s: feature %d has no properties", layer, i)
		}
		out = append(out, f.Properties)
	}
	return out, nil
}

// MemoryCollector serves fixed properties per layer.
type MemoryCollector map[string][]map[string]any

// Collect implements Collector.
func (c MemoryCollector) Collect(_ context.Context, layer string) ([]map[string]any, error) {
	props, ok := c[layer]
	if !ok {
		return nil, fmt.Errorf("collect %s: %w", layer, os.ErrNotExist)
	}
	return props, nil
}
