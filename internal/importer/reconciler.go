package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/topoload/internal/inventory"
)

// DefaultBatchSize is the number of remote calls issued concurrently.
const DefaultBatchSize = 8

// Reconciler decides, per candidate, whether to create, delete or skip, and
// classifies the result.
//
// Decisions are made in a sequential pre-pass that only touches memory
// (identity key, duplicate check, index lookup, attribute rules). The
// remaining create or delete calls then run in fixed-size batches: calls in
// one batch are concurrent, and each batch completes before the next starts.
// A batch size of 1 is fully sequential.
//
// Thread-safety: a Reconciler may be reused across layers but Reconcile must
// not be called concurrently on the same instance.
type Reconciler struct {
	entity    inventory.Entity
	key       KeyFunc
	layer     string
	batchSize int
	rules     map[string]any
	validate  *validator.Validate
	logger    *slog.Logger
	metrics   *Metrics
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithBatchSize sets how many remote calls run concurrently. Values below 1
// are treated as 1.
func WithBatchSize(n int) Option {
	return func(r *Reconciler) {
		if n < 1 {
			n = 1
		}
		r.batchSize = n
	}
}

// WithLogger sets the logger for per-candidate outcomes.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithMetrics records outcomes and call latency.
func WithMetrics(m *Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithLayer names the layer in logs and metrics. Defaults to the entity kind.
func WithLayer(name string) Option {
	return func(r *Reconciler) { r.layer = name }
}

// WithRules sets required-attribute rules checked before any create call.
// Keys are attribute names, values are validator tags such as "required" or
// "required,gt=0".
func WithRules(rules map[string]string) Option {
	return func(r *Reconciler) {
		r.rules = make(map[string]any, len(rules))
		for field, tag := range rules {
			r.rules[field] = tag
		}
	}
}

// NewReconciler creates a reconciler for one entity type.
func NewReconciler(entity inventory.Entity, key KeyFunc, opts ...Option) *Reconciler {
	r := &Reconciler{
		entity:    entity,
		key:       key,
		layer:     string(entity.Kind()),
		batchSize: DefaultBatchSize,
		validate:  validator.New(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type action int

const (
	actionNone action = iota
	actionCreate
	actionDelete
)

// Reconcile processes candidates against the index and returns one Item per
// candidate, in input order.
//
// In normal mode an indexed key is AlreadyExists with no call, and anything
// else is created. In cleanup mode an indexed key is deleted and anything else
// is Skipped; cleanup never creates. Per-candidate failures never abort the
// run. Cancelling ctx fails the calls not yet issued.
func (r *Reconciler) Reconcile(ctx context.Context, candidates []inventory.Candidate, index *Index, cleanup bool) *Summary {
	items := make([]Item, len(candidates))
	actions := make([]action, len(candidates))
	seen := make(map[string]int, len(candidates))

	for i, cand := range candidates {
		it := Item{Seq: i + 1, Candidate: cand}
		actions[i], it = r.plan(it, index, seen, cleanup)
		items[i] = it
	}

	var pending []int
	for i, a := range actions {
		if a != actionNone {
			pending = append(pending, i)
		}
	}

	for start := 0; start < len(pending); start += r.batchSize {
		end := min(start+r.batchSize, len(pending))
		batch := pending[start:end]

		if err := ctx.Err(); err != nil {
			for _, i := range pending[start:] {
				items[i] = r.abandon(items[i], actions[i], err)
			}
			break
		}

		var g errgroup.Group
		for _, i := range batch {
			g.Go(func() error {
				switch actions[i] {
				case actionCreate:
					items[i] = r.create(ctx, items[i])
				case actionDelete:
					items[i] = r.delete(ctx, items[i])
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, it := range items {
		r.record(it)
	}
	return newSummary(r.entity.Kind(), items)
}

// plan runs the in-memory part of the decision.
func (r *Reconciler) plan(it Item, index *Index, seen map[string]int, cleanup bool) (action, Item) {
	key, err := r.key(it.Candidate)
	if err != nil {
		it.Outcome = OutcomeMissingAttribute
		it.Err = err
		return actionNone, it
	}
	it.Key = key

	if first, dup := seen[key]; dup {
		it.Outcome = OutcomeDuplicate
		it.Err = fmt.Errorf("duplicate of candidate %d with key %q", first, key)
		return actionNone, it
	}
	seen[key] = it.Seq

	if rec, ok := index.Lookup(key); ok {
		it.Existing = &rec
		it.Elid = rec.Elid
		if cleanup {
			return actionDelete, it
		}
		it.Outcome = OutcomeAlreadyExists
		return actionNone, it
	}

	if cleanup {
		it.Outcome = OutcomeSkipped
		return actionNone, it
	}

	if err := r.checkRules(it); err != nil {
		it.Outcome = OutcomeMissingAttribute
		it.Err = err
		return actionNone, it
	}
	return actionCreate, it
}

// checkRules applies the attribute rules to the candidate's plain attributes.
func (r *Reconciler) checkRules(it Item) error {
	if len(r.rules) == 0 {
		return nil
	}
	data := make(map[string]any, len(r.rules))
	for field := range r.rules {
		data[field] = it.Candidate.Attrs[field]
	}
	violations := r.validate.ValidateMap(data, r.rules)
	if len(violations) == 0 {
		return nil
	}

	fields := make(map[string]string, len(violations))
	for field, v := range violations {
		fields[field] = describeViolation(v)
	}
	return inventory.NewMissingAttributeError(r.entity.Kind(), it.Key, fields)
}

func describeViolation(v any) string {
	var ve validator.ValidationErrors
	if err, ok := v.(error); ok && errors.As(err, &ve) && len(ve) > 0 {
		if p := ve[0].Param(); p != "" {
			return ve[0].Tag() + "=" + p
		}
		return ve[0].Tag()
	}
	return fmt.Sprint(v)
}

func (r *Reconciler) create(ctx context.Context, it Item) Item {
	start := time.Now()
	res, err := r.entity.Create(ctx, it.Candidate)
	r.metrics.ObserveCall(r.layer, "create", time.Since(start).Seconds())

	switch {
	case err != nil && inventory.IsValidationError(err):
		it.Outcome = OutcomeMissingAttribute
		it.Err = err
	case err != nil:
		it.Outcome = OutcomeFailedCreate
		it.Err = err
	case res.AlreadyExists:
		it.Outcome = OutcomeAlreadyExists
		it.Elid = res.Elid
	case res.Success:
		it.Outcome = OutcomeCreated
		it.Elid = res.Elid
		it.Record = r.readBack(ctx, it)
	default:
		it.Outcome = OutcomeFailedCreate
		it.Err = fmt.Errorf("create %s rejected: %s", r.entity.Kind(), res.Message)
	}
	return it
}

// readBack fetches a created record so later layers can use it without an
// index rebuild. A failed read leaves the outcome Created.
func (r *Reconciler) readBack(ctx context.Context, it Item) *inventory.Record {
	rec, err := r.entity.GetByElid(ctx, it.Elid)
	if err != nil {
		r.logger.Warn("read-after-write failed",
			"layer", r.layer, "key", it.Key, "elid", it.Elid, "error", err)
		return nil
	}
	return rec
}

func (r *Reconciler) delete(ctx context.Context, it Item) Item {
	start := time.Now()
	err := r.entity.Delete(ctx, it.Elid)
	r.metrics.ObserveCall(r.layer, "delete", time.Since(start).Seconds())

	if err != nil {
		it.Outcome = OutcomeFailedDelete
		it.Err = err
		return it
	}
	it.Outcome = OutcomeDeleted
	return it
}

func (r *Reconciler) abandon(it Item, a action, cause error) Item {
	it.Err = fmt.Errorf("not attempted: %w", cause)
	if a == actionDelete {
		it.Outcome = OutcomeFailedDelete
	} else {
		it.Outcome = OutcomeFailedCreate
	}
	return it
}

func (r *Reconciler) record(it Item) {
	r.metrics.ObserveOutcome(r.layer, it.Outcome)

	attrs := []any{"layer", r.layer, "seq", it.Seq, "key", it.Key, "outcome", it.Outcome}
	if it.Elid != "" {
		attrs = append(attrs, "elid", it.Elid)
	}
	switch {
	case it.Outcome.Failed():
		r.logger.Warn("candidate failed", append(attrs, "error", it.Err)...)
	case it.Outcome == OutcomeCreated || it.Outcome == OutcomeDeleted:
		r.logger.Info("candidate reconciled", attrs...)
	case it.Outcome == OutcomeDuplicate:
		r.logger.Info("duplicate candidate", append(attrs, "error", it.Err)...)
	default:
		r.logger.Debug("candidate reconciled", attrs...)
	}
}
