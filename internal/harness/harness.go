package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/topoload/internal/config"
	"github.com/roach88/topoload/internal/ident"
	"github.com/roach88/topoload/internal/inventory"
	"github.com/roach88/topoload/internal/loader"
	"github.com/roach88/topoload/internal/testutil"
)

// Harness holds the state shared by the runs of one scenario.
type Harness struct {
	cfg    *config.Config
	inv    *testutil.FakeInventory
	routes *testutil.MemoryRoutes
	ids    *ident.SequenceGenerator
	clock  *testutil.StepClock
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario starts from a fresh in-memory inventory holding only its
// seed records. Runs share that inventory and the route store, so a second
// run sees what the first created.
//
// The returned error is reserved for scenarios that cannot be set up (bad
// config); failed expectations are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	cfg, err := config.Decode(scenario.Name+".cue", []byte(scenario.Config))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: config: %w", scenario.Name, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: config: %w", scenario.Name, err)
	}

	h := &Harness{
		cfg:    cfg,
		inv:    testutil.NewFakeInventory(),
		routes: testutil.NewMemoryRoutes(),
		ids:    ident.NewSequenceGenerator("run"),
		clock:  testutil.NewStepClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	for _, rec := range scenario.Seed {
		h.inv.Seed(rec.Kind, rec.Attrs)
	}

	layers, err := loader.Layers(cfg, loader.Deps{
		Entities:  h.inv.Entity,
		Inventory: h.inv,
		Routes:    h.routes,
		Logger:    h.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	collector := loader.MemoryCollector(scenario.Sources)
	result := NewResult()
	for i, step := range scenario.Runs {
		orch, err := loader.New(layers,
			loader.WithLogger(h.logger),
			loader.WithIDGenerator(h.ids),
			loader.WithClock(h.clock.Now),
			loader.WithBatchSize(1),
			loader.WithOnly(step.Only...),
		)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: runs[%d]: %w", scenario.Name, i, err)
		}

		rep, runErr := orch.Run(ctx, collector, step.Cleanup)
		if rep == nil {
			return nil, fmt.Errorf("scenario %s: runs[%d] did not start: %w", scenario.Name, i, runErr)
		}
		result.Reports = append(result.Reports, rep)
		result.Snapshots = append(result.Snapshots, h.snapshot(rep))

		prefix := fmt.Sprintf("runs[%d] (%s)", i, rep.RunID)
		if step.Expect != nil {
			for _, msg := range checkExpect(rep, *step.Expect) {
				result.AddError(prefix + ": " + msg)
			}
		}
		for j, a := range step.Assertions {
			if err := h.assert(rep, a); err != nil {
				result.AddError(fmt.Sprintf("%s: assertions[%d]: %v", prefix, j, err))
			}
		}
	}
	return result, nil
}

// checkExpect compares a report against the expected subset.
func checkExpect(rep *loader.Report, want RunExpect) []string {
	var msgs []string
	if want.Status != "" && rep.Status != want.Status {
		msgs = append(msgs, fmt.Sprintf("status: expected %s, got %s (%s)", want.Status, rep.Status, rep.Error))
	}
	names := make([]string, 0, len(want.Totals))
	for name := range want.Totals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		get, ok := countNames[name]
		if !ok {
			msgs = append(msgs, fmt.Sprintf("totals: unknown count %q", name))
			continue
		}
		if got := get(rep.Totals); got != want.Totals[name] {
			msgs = append(msgs, fmt.Sprintf("totals.%s: expected %d, got %d", name, want.Totals[name], got))
		}
	}
	return msgs
}

// snapshot builds the golden view of a run.
func (h *Harness) snapshot(rep *loader.Report) RunSnapshot {
	s := RunSnapshot{
		RunID:   rep.RunID,
		Cleanup: rep.Cleanup,
		Status:  rep.Status,
		Layers:  []LayerSnapshot{},
		Totals:  rep.Totals,
		Records: map[string]int{},
		Routes:  h.routes.Len(),
	}
	for _, lr := range rep.Layers {
		if lr.Skipped {
			s.Skipped = append(s.Skipped, lr.Name)
			continue
		}
		ls := LayerSnapshot{Name: lr.Name, IndexSize: lr.IndexSize, Counts: lr.Counts}
		for _, f := range lr.Failures {
			ls.Failures = append(ls.Failures, FailureSnapshot{Seq: f.Seq, Outcome: f.Outcome, Code: f.Code})
		}
		s.Layers = append(s.Layers, ls)
	}
	for _, l := range h.cfg.Layers {
		s.Records[string(l.Entity)] = len(h.inv.Records(l.Entity))
	}
	return s
}

// cableElid finds a stored cable section by its id.
func (h *Harness) cableElid(id string) (string, bool) {
	for _, rec := range h.inv.Records(inventory.KindDataCable) {
		if rec.String("id") == id {
			return rec.Elid, true
		}
	}
	return "", false
}
