package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/topoload/internal/inventory"
)

var noEnv = map[string]string{}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", noEnv)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Inventory.HTTPTimeout())
	assert.Equal(t, "1001", cfg.Inventory.ManID)
	assert.Equal(t, "admin_1001|G", cfg.Inventory.UserGroup)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "topoload", cfg.CreatedBy)
	assert.False(t, cfg.Report.Enabled())
	assert.Equal(t, DefaultLayers(), cfg.Layers)
}

func TestLoad_File(t *testing.T) {
	cfg, err := load("testdata/topoload.cue", noEnv)
	require.NoError(t, err)

	assert.Equal(t, "https://inventory.example.net", cfg.Inventory.BaseURL)
	assert.Equal(t, "1001", cfg.Inventory.ManID, "schema default survives a partial block")
	assert.Equal(t, 45*time.Second, cfg.Inventory.HTTPTimeout())
	assert.Equal(t, Store{Driver: "postgres", DSN: "postgres://topoload@localhost/topoload"}, cfg.Store)
	assert.Equal(t, 4, cfg.BatchSize)
	assert.Equal(t, map[string]string{"ttk-576": "FO-576"}, cfg.CableTypes)

	require.Len(t, cfg.Layers, 3)
	building, ok := cfg.Layer("building")
	require.True(t, ok)
	assert.Equal(t, inventory.KindBuilding, building.Entity)
	assert.Equal(t, []string{"campus", "name"}, building.StoredKey())
	assert.Equal(t, []Relation{{Link: "Campus", Layer: "campus", Fields: []string{"campus"}}}, building.Relations)

	cable, ok := cfg.Layer("cable")
	require.True(t, ok)
	assert.Equal(t, inventory.KindDataCable, cable.Entity)
	assert.Empty(t, cable.Key)

	_, ok = cfg.Layer("device")
	assert.False(t, ok)
}

func TestLoad_EnvironmentWins(t *testing.T) {
	cfg, err := load("testdata/topoload.cue", map[string]string{
		"TOPOLOAD_PASSWORD":      "s3cret",
		"TOPOLOAD_BATCH_SIZE":    "2",
		"TOPOLOAD_DB_DRIVER":     "sqlite",
		"TOPOLOAD_DB_DSN":        "/tmp/routes.db",
		"TOPOLOAD_REPORT_BUCKET": "reports",
	})
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Inventory.Password)
	assert.Equal(t, "loader", cfg.Inventory.User, "unset variables keep the file value")
	assert.Equal(t, 2, cfg.BatchSize)
	assert.Equal(t, Store{Driver: "sqlite", DSN: "/tmp/routes.db"}, cfg.Store)
	assert.True(t, cfg.Report.Enabled())
	assert.Equal(t, "topoload/runs", cfg.Report.Prefix)
}

func TestLoad_BadEnvironment(t *testing.T) {
	_, err := load("", map[string]string{"TOPOLOAD_BATCH_SIZE": "many"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse environment")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := load("testdata/nope.cue", noEnv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestDecode_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown entity", `layers: [{name: "r", entity: "router", key: ["id"]}]`},
		{"bad layer name", `layers: [{name: "Node Layer", entity: "node", key: ["id"]}]`},
		{"zero batch", `batch_size: 0`},
		{"unknown driver", `store: driver: "mysql"`},
		{"lowercase link", `layers: [{name: "a", entity: "campus", key: ["name"], relations: [{link: "campus", layer: "a", fields: ["x"]}]}]`},
		{"relation without fields", `layers: [{name: "a", entity: "campus", key: ["name"], relations: [{link: "Campus", layer: "a", fields: []}]}]`},
		{"syntax", `batch_size: {`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode("topoload.cue", []byte(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Decode("", nil)
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Inventory.Timeout = "soon"
	assert.ErrorContains(t, cfg.Validate(), "inventory.timeout")

	cfg = base()
	cfg.Layers = append(cfg.Layers, Layer{Name: "campus", Entity: inventory.KindCampus, Key: []string{"name"}})
	assert.ErrorContains(t, cfg.Validate(), "duplicate name")

	cfg = base()
	cfg.Layers[0].Relations = []Relation{{Link: "Node", Layer: "node", Fields: []string{"node"}}}
	assert.ErrorContains(t, cfg.Validate(), "not an earlier layer")

	cfg = base()
	cfg.Layers = append(cfg.Layers, Layer{Name: "cable2", Entity: inventory.KindDataCable})
	assert.ErrorContains(t, cfg.Validate(), "cable layers")

	cfg = base()
	cfg.Layers[2].Key = nil
	assert.ErrorContains(t, cfg.Validate(), "key is empty")
}
