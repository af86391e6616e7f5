// Package config loads topoload configuration.
//
// A run is configured from three sources, later ones winning:
//
//  1. topoload.cue, unified with the embedded schema (defaults live there)
//  2. .env / .env.local files, then the process environment (TOPOLOAD_*)
//  3. command-line flags, applied by the caller
//
// The schema rejects unknown entity kinds and malformed layer definitions
// before any network call is made.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/topoload/internal/inventory"
)

//go:embed schema.cue
var schemaSource []byte

// Config is the decoded configuration of one run.
type Config struct {
	Inventory       Inventory         `json:"inventory"`
	Store           Store             `json:"store"`
	BatchSize       int               `json:"batch_size"`
	CreatedBy       string            `json:"created_by"`
	MetricsTextfile string            `json:"metrics_textfile"`
	CableTypes      map[string]string `json:"cable_types"`
	Report          Report            `json:"report"`
	Layers          []Layer           `json:"layers"`
}

// Inventory holds the REST gateway session settings.
type Inventory struct {
	BaseURL   string `json:"base_url"`
	User      string `json:"user"`
	Password  string `json:"password"`
	ManID     string `json:"man_id"`
	UserGroup string `json:"user_group"`
	Timeout   string `json:"timeout"`
}

// HTTPTimeout is the parsed per-request timeout. Load has already rejected
// unparsable values.
func (i Inventory) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(i.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Store selects the route and audit database.
type Store struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// Report is the optional S3 target of the run report.
type Report struct {
	Bucket   string `json:"bucket"`
	Region   string `json:"region"`
	Endpoint string `json:"endpoint"`
	Prefix   string `json:"prefix"`
}

// Enabled reports whether a bucket is configured.
func (r Report) Enabled() bool { return r.Bucket != "" }

// Layer defines one import layer.
type Layer struct {
	Name      string            `json:"name"`
	Entity    inventory.Kind    `json:"entity"`
	Key       []string          `json:"key"`
	RecordKey []string          `json:"record_key,omitempty"`
	Required  map[string]string `json:"required"`
	Relations []Relation        `json:"relations"`
}

// StoredKey is the field list keying existing records.
func (l Layer) StoredKey() []string {
	if len(l.RecordKey) > 0 {
		return l.RecordKey
	}
	return l.Key
}

// Relation links a layer's candidates to records of an earlier layer.
type Relation struct {
	Link   string   `json:"link"`
	Layer  string   `json:"layer"`
	Fields []string `json:"fields"`
}

// Load reads path (may be empty for schema defaults only) and applies the
// environment on top.
func Load(path string) (*Config, error) {
	return load(path, nil)
}

func load(path string, environ map[string]string) (*Config, error) {
	var src []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		src = data
	}

	cfg, err := Decode(path, src)
	if err != nil {
		return nil, err
	}
	if _, err := LoadEnv(".env", ".env.local"); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	if err := cfg.applyEnv(environ); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode unifies src with the embedded schema and decodes the result. name
// is used in error positions.
func Decode(name string, src []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	value := schema
	if len(src) > 0 {
		user := ctx.CompileBytes(src, cue.Filename(name))
		if err := user.Err(); err != nil {
			return nil, fmt.Errorf("compile %s: %s", name, cueerrors.Details(err, nil))
		}
		value = schema.Unify(user)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Layers) == 0 {
		cfg.Layers = DefaultLayers()
	}
	return &cfg, nil
}

// Validate checks what the schema cannot express: a parsable timeout,
// unique layer names, relations pointing at earlier layers and at most one
// cable layer.
func (c *Config) Validate() error {
	var errs []error
	if d, err := time.ParseDuration(c.Inventory.Timeout); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("inventory.timeout: %q is not a positive duration", c.Inventory.Timeout))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch_size: must be at least 1, got %d", c.BatchSize))
	}

	seen := make(map[string]bool, len(c.Layers))
	cables := 0
	for _, l := range c.Layers {
		if seen[l.Name] {
			errs = append(errs, fmt.Errorf("layers: duplicate name %q", l.Name))
		}
		if l.Entity == inventory.KindDataCable {
			cables++
		} else if len(l.Key) == 0 {
			errs = append(errs, fmt.Errorf("layers.%s: key is empty", l.Name))
		}
		for _, rel := range l.Relations {
			if !seen[rel.Layer] {
				errs = append(errs, fmt.Errorf("layers.%s: relation %s refers to %q, which is not an earlier layer", l.Name, rel.Link, rel.Layer))
			}
		}
		seen[l.Name] = true
	}
	if cables > 1 {
		errs = append(errs, fmt.Errorf("layers: %d cable layers, at most one allowed", cables))
	}
	return errors.Join(errs...)
}

// Layer returns the named layer definition.
func (c *Config) Layer(name string) (Layer, bool) {
	for _, l := range c.Layers {
		if l.Name == name {
			return l, true
		}
	}
	return Layer{}, false
}

// DefaultLayers is the import order used when the config names none:
// locations first, then the tray network, equipment and finally cables.
func DefaultLayers() []Layer {
	return []Layer{
		{
			Name: "campus", Entity: inventory.KindCampus,
			Key:      []string{"name"},
			Required: map[string]string{"name": "required"},
		},
		{
			Name: "building", Entity: inventory.KindBuilding,
			Key:       []string{"campus", "name"},
			Required:  map[string]string{"name": "required"},
			Relations: []Relation{{Link: "Campus", Layer: "campus", Fields: []string{"campus"}}},
		},
		{
			Name: "node", Entity: inventory.KindNode,
			Key:      []string{"id"},
			Required: map[string]string{"id": "required"},
		},
		{
			Name: "junction_box", Entity: inventory.KindJunctionBoxFist,
			Key:       []string{"id"},
			Required:  map[string]string{"id": "required", "typeElid": "required"},
			Relations: []Relation{{Link: "Node", Layer: "node", Fields: []string{"node"}}},
		},
		{
			Name: "device", Entity: inventory.KindDevice,
			Key:      []string{"id"},
			Required: map[string]string{"id": "required"},
		},
		{
			Name: "cable", Entity: inventory.KindDataCable,
			Key: []string{"handle"},
		},
	}
}
