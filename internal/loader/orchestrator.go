// Package loader runs an import: one reconciliation per layer, in order.
//
// INVARIANTS:
//   - Layers run strictly one after another. A layer starts only after
//     every call of the previous layer has completed.
//   - Cleanup runs the layers in reverse, so dependents are removed before
//     what they depend on.
//   - Every candidate of every layer that ran appears in the report with
//     exactly one outcome.
//   - A fatal layer error (collector, entity or index failure) stops the run;
//     the layers already finished stay in the report.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/topoload/internal/ident"
	"github.com/roach88/topoload/internal/importer"
	"github.com/roach88/topoload/internal/inventory"
	"github.com/roach88/topoload/internal/store"
)

// Auditor records runs and their outcomes. *store.Store implements it.
type Auditor interface {
	BeginRun(ctx context.Context, runID string, cleanup bool) error
	WriteOutcomes(ctx context.Context, runID string, rows []store.OutcomeRow) error
	FinishRun(ctx context.Context, runID, status string) error
}

// Uploader publishes the finished report. *report.Uploader implements it.
type Uploader interface {
	Upload(ctx context.Context, runID string, report any) (string, error)
}

// Orchestrator runs layers in order.
type Orchestrator struct {
	layers   []Layer
	only     map[string]bool
	batch    int
	logger   *slog.Logger
	metrics  *importer.Metrics
	audit    Auditor
	uploader Uploader
	ids      ident.Generator
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBatchSize sets the per-layer concurrency.
func WithBatchSize(n int) Option {
	return func(o *Orchestrator) { o.batch = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics records outcomes, index sizes and call latency.
func WithMetrics(m *importer.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithAudit records every run and its outcomes.
func WithAudit(a Auditor) Option {
	return func(o *Orchestrator) { o.audit = a }
}

// WithUploader publishes the report when the run ends.
func WithUploader(u Uploader) Option {
	return func(o *Orchestrator) { o.uploader = u }
}

// WithIDGenerator sets the run ID generator. Defaults to UUIDv7.
func WithIDGenerator(g ident.Generator) Option {
	return func(o *Orchestrator) { o.ids = g }
}

// WithClock sets the time source of report timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithOnly restricts the run to the named layers. The others stay available
// as relation targets.
func WithOnly(names ...string) Option {
	return func(o *Orchestrator) {
		if len(names) == 0 {
			o.only = nil
			return
		}
		o.only = make(map[string]bool, len(names))
		for _, n := range names {
			o.only[n] = true
		}
	}
}

// New creates an Orchestrator over layers in import order.
func New(layers []Layer, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		layers: layers,
		batch:  importer.DefaultBatchSize,
		logger: slog.Default(),
		ids:    ident.UUIDv7Generator{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	seen := make(map[string]bool, len(layers))
	for _, l := range layers {
		if seen[l.Name] {
			return nil, fmt.Errorf("duplicate layer %q", l.Name)
		}
		if l.Open == nil || l.Key == nil || l.StoredKey == nil {
			return nil, fmt.Errorf("layer %q is incomplete", l.Name)
		}
		for _, r := range l.Relations {
			if !seen[r.Layer] {
				return nil, fmt.Errorf("layer %q: relation %s refers to %q, which is not an earlier layer", l.Name, r.Link, r.Layer)
			}
		}
		seen[l.Name] = true
	}
	for name := range o.only {
		if !seen[name] {
			return nil, fmt.Errorf("unknown layer %q", name)
		}
	}
	return o, nil
}

// Plan returns the names of the layers a run would execute, in order.
func (o *Orchestrator) Plan(cleanup bool) []string {
	var names []string
	for _, l := range o.selected(cleanup) {
		names = append(names, l.Name)
	}
	return names
}

func (o *Orchestrator) selected(cleanup bool) []Layer {
	var out []Layer
	for _, l := range o.layers {
		if o.only == nil || o.only[l.Name] {
			out = append(out, l)
		}
	}
	if cleanup {
		slices.Reverse(out)
	}
	return out
}

// Run executes one import (or cleanup) run.
//
// The returned report is non-nil whenever the run started. The error is
// non-nil when the run was aborted or its audit trail could not be written;
// item failures are not errors, see Report.Failed.
func (o *Orchestrator) Run(ctx context.Context, collector Collector, cleanup bool) (*Report, error) {
	rep := &Report{
		RunID:     o.ids.Generate(),
		Cleanup:   cleanup,
		StartedAt: o.now().UTC(),
		Layers:    []LayerReport{},
	}
	logger := o.logger.With("run_id", rep.RunID)

	if o.audit != nil {
		if err := o.audit.BeginRun(ctx, rep.RunID, cleanup); err != nil {
			return nil, fmt.Errorf("audit: %w", err)
		}
	}
	logger.Info("run started", "cleanup", cleanup, "layers", o.Plan(cleanup))

	r := &run{o: o, logger: logger, collector: collector, cleanup: cleanup, targets: map[string]*importer.Index{}}
	var runErr, auditErr error
	for order, l := range o.selected(cleanup) {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("run cancelled before layer %s: %w", l.Name, err)
			break
		}
		lr, err := r.layer(ctx, order, l)
		if err != nil {
			runErr = fmt.Errorf("layer %s: %w", l.Name, err)
			logger.Error("layer aborted", "layer", l.Name, "error", err)
			break
		}
		rep.Layers = append(rep.Layers, lr)
		rep.Totals = rep.Totals.Add(lr.Counts)

		if o.audit != nil && lr.Summary != nil {
			if err := o.audit.WriteOutcomes(ctx, rep.RunID, outcomeRows(order, lr)); err != nil {
				logger.Error("audit outcomes", "layer", l.Name, "error", err)
				auditErr = errors.Join(auditErr, err)
			}
		}
	}

	rep.FinishedAt = o.now().UTC()
	rep.Status = store.RunStatusComplete
	if runErr != nil {
		rep.Status = store.RunStatusFailed
		rep.Error = runErr.Error()
	}
	if o.audit != nil {
		// The run's context may be the reason it ended; the final status is
		// still recorded.
		if err := o.audit.FinishRun(context.WithoutCancel(ctx), rep.RunID, rep.Status); err != nil {
			auditErr = errors.Join(auditErr, err)
		}
	}

	logger.Info("run finished",
		"status", rep.Status,
		"total", rep.Totals.Total,
		"good", rep.Totals.Good,
		"failures", rep.Totals.Failures(),
		"duration", rep.FinishedAt.Sub(rep.StartedAt))

	if o.uploader != nil {
		if key, err := o.uploader.Upload(context.WithoutCancel(ctx), rep.RunID, rep); err != nil {
			logger.Error("report upload failed", "error", err)
		} else {
			rep.ReportKey = key
		}
	}

	if auditErr != nil {
		runErr = errors.Join(runErr, fmt.Errorf("audit: %w", auditErr))
	}
	return rep, runErr
}

// run is the per-Run state.
type run struct {
	o         *Orchestrator
	logger    *slog.Logger
	collector Collector
	cleanup   bool
	targets   map[string]*importer.Index
}

func (r *run) layer(ctx context.Context, order int, l Layer) (LayerReport, error) {
	lr := LayerReport{Name: l.Name, Entity: l.Kind, Order: order}
	logger := r.logger.With("layer", l.Name)

	props, err := r.collector.Collect(ctx, l.Name)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("no source for layer, skipping")
		lr.Skipped = true
		return lr, nil
	}
	if err != nil {
		return lr, err
	}
	if len(props) == 0 {
		logger.Info("layer is empty")
		lr.Skipped = true
		return lr, nil
	}

	candidates := make([]inventory.Candidate, len(props))
	for i, p := range props {
		candidates[i] = inventory.NewCandidate(l.Kind, p)
	}

	entity, err := l.Open(ctx)
	if err != nil {
		return lr, fmt.Errorf("open %s: %w", l.Kind, err)
	}
	if len(l.Relations) > 0 && !r.cleanup {
		if entity, err = r.link(ctx, entity, l.Relations); err != nil {
			return lr, err
		}
	}

	index, err := importer.BuildIndex(ctx, entity, l.StoredKey)
	if err != nil {
		return lr, err
	}
	lr.IndexSize = index.Len()
	r.o.metrics.SetIndexSize(l.Name, index.Len())
	logger.Info("index built",
		"existing", index.Len(),
		"unkeyed", index.Unkeyed(),
		"stored_duplicates", index.StoredDuplicates(),
		"candidates", len(candidates))

	rec := importer.NewReconciler(entity, l.Key,
		importer.WithLayer(l.Name),
		importer.WithBatchSize(r.o.batch),
		importer.WithLogger(logger),
		importer.WithMetrics(r.o.metrics),
		importer.WithRules(l.Rules),
	)
	summary := rec.Reconcile(ctx, candidates, index, r.cleanup)
	lr.Summary = summary
	lr.Counts = summary.Counts()
	lr.FailureReasons = summary.FailureReasons()
	for _, it := range summary.Failed() {
		lr.Failures = append(lr.Failures, failureOf(it))
	}
	logger.Info("layer finished",
		"total", lr.Counts.Total,
		"created", lr.Counts.JustImported,
		"deleted", lr.Counts.JustDeleted,
		"failures", lr.Counts.Failures())
	return lr, nil
}

// link wraps entity so creates resolve relations against the records of
// earlier layers.
func (r *run) link(ctx context.Context, entity inventory.Entity, relations []Relation) (inventory.Entity, error) {
	bound := make([]boundRelation, 0, len(relations))
	for _, rel := range relations {
		idx, err := r.target(ctx, rel.Layer)
		if err != nil {
			return nil, fmt.Errorf("relation %s: %w", rel.Link, err)
		}
		bound = append(bound, boundRelation{Relation: rel, index: idx})
	}
	return &linkingEntity{Entity: entity, relations: bound}, nil
}

// target indexes a relation target once per run. The target layer has
// already finished, so the index includes what it created.
func (r *run) target(ctx context.Context, name string) (*importer.Index, error) {
	if idx, ok := r.targets[name]; ok {
		return idx, nil
	}
	var def *Layer
	for i := range r.o.layers {
		if r.o.layers[i].Name == name {
			def = &r.o.layers[i]
			break
		}
	}
	if def == nil {
		return nil, fmt.Errorf("unknown layer %q", name)
	}
	e, err := def.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", def.Kind, err)
	}
	idx, err := importer.BuildIndex(ctx, e, def.StoredKey)
	if err != nil {
		return nil, err
	}
	r.targets[name] = idx
	return idx, nil
}
