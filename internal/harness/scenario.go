package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/topoload/internal/importer"
	"github.com/roach88/topoload/internal/inventory"
)

// Scenario defines one end-to-end import scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is topoload.cue source. Empty means the default layers.
	Config string `yaml:"config,omitempty"`

	// Seed records exist in the inventory before the first run.
	Seed []SeedRecord `yaml:"seed,omitempty"`

	// Sources holds the feature properties of each layer.
	Sources map[string][]map[string]any `yaml:"sources"`

	// Runs execute in order against the same inventory.
	Runs []RunStep `yaml:"runs"`
}

// SeedRecord is one pre-existing inventory record.
type SeedRecord struct {
	Kind  inventory.Kind `yaml:"kind"`
	Attrs map[string]any `yaml:"attrs"`
}

// RunStep is one import or cleanup run.
type RunStep struct {
	Cleanup bool `yaml:"cleanup"`

	// Only restricts the run to these layers.
	Only []string `yaml:"only,omitempty"`

	// Expect is checked against the run report.
	Expect *RunExpect `yaml:"expect,omitempty"`

	// Assertions are checked after the run.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// RunExpect is a subset match against the run report.
type RunExpect struct {
	// Status is "complete" or "failed".
	Status string `yaml:"status,omitempty"`

	// Totals maps count names (just_imported, good, ...) to values. Only the
	// listed counts are checked.
	Totals map[string]int `yaml:"totals,omitempty"`
}

// Assertion validates inventory or route state after a run.
type Assertion struct {
	// Type is one of record_count, call_count, route or outcome.
	Type string `yaml:"type"`

	// Kind is the entity kind (record_count, call_count).
	Kind inventory.Kind `yaml:"kind,omitempty"`

	// Op is the call name (call_count): create, delete, connect or update.
	Op string `yaml:"op,omitempty"`

	// Count is the expected number (record_count, call_count).
	Count int `yaml:"count,omitempty"`

	// Cable is the stored id of a cable section (route).
	Cable string `yaml:"cable,omitempty"`

	// Hops are the expected tray section elids in hop order (route).
	Hops []string `yaml:"hops,omitempty"`

	// Layer, Seq and Outcome select and check one reconciled item (outcome).
	Layer   string           `yaml:"layer,omitempty"`
	Seq     int              `yaml:"seq,omitempty"`
	Outcome importer.Outcome `yaml:"outcome,omitempty"`
}

// Assertion type constants.
const (
	AssertRecordCount = "record_count"
	AssertCallCount   = "call_count"
	AssertRoute       = "route"
	AssertOutcome     = "outcome"
)

var countNames = map[string]func(importer.Counts) int{
	"total":             func(c importer.Counts) int { return c.Total },
	"good":              func(c importer.Counts) int { return c.Good },
	"just_imported":     func(c importer.Counts) int { return c.JustImported },
	"failed_create":     func(c importer.Counts) int { return c.FailedCreate },
	"attribute_missing": func(c importer.Counts) int { return c.AttributeMissing },
	"just_deleted":      func(c importer.Counts) int { return c.JustDeleted },
	"failed_delete":     func(c importer.Counts) int { return c.FailedDelete },
	"duplicate":         func(c importer.Counts) int { return c.Duplicate },
	"skipped":           func(c importer.Counts) int { return c.Skipped },
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Runs) == 0 {
		return fmt.Errorf("runs list is required and must be non-empty")
	}

	for i, rec := range s.Seed {
		if rec.Kind == "" {
			return fmt.Errorf("seed[%d]: kind is required", i)
		}
		if !rec.Kind.Valid() {
			return fmt.Errorf("seed[%d]: unknown kind %q", i, rec.Kind)
		}
	}

	for i, run := range s.Runs {
		if run.Expect != nil {
			if st := run.Expect.Status; st != "" && st != "complete" && st != "failed" {
				return fmt.Errorf("runs[%d].expect: unknown status %q", i, st)
			}
			for name := range run.Expect.Totals {
				if _, ok := countNames[name]; !ok {
					return fmt.Errorf("runs[%d].expect.totals: unknown count %q", i, name)
				}
			}
		}
		for j, a := range run.Assertions {
			if err := validateAssertion(a); err != nil {
				return fmt.Errorf("runs[%d].assertions[%d]: %w", i, j, err)
			}
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertRecordCount:
		if a.Kind == "" {
			return fmt.Errorf("kind is required for record_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for record_count")
		}
	case AssertCallCount:
		switch a.Op {
		case "create", "delete", "connect", "update":
		default:
			return fmt.Errorf("op must be create, delete, connect or update for call_count, got %q", a.Op)
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for call_count")
		}
	case AssertRoute:
		if a.Cable == "" {
			return fmt.Errorf("cable is required for route")
		}
	case AssertOutcome:
		if a.Layer == "" || a.Seq < 1 {
			return fmt.Errorf("layer and a positive seq are required for outcome")
		}
		if !a.Outcome.Valid() {
			return fmt.Errorf("unknown outcome %q", a.Outcome)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
