package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/topoload/internal/inventory"
)

// ErrRouteExists is returned when a cable already has persisted hops.
var ErrRouteExists = errors.New("route already persisted for cable")

// PersistRoute writes every hop of one cable's route in a single transaction.
//
// The hop list must be the contiguous sequence 1..N. Either all N rows are
// committed or none are: any insert failure rolls the whole route back, so a
// crash never leaves a partial sequence behind. A cable that already has
// rows is rejected with ErrRouteExists.
func (s *Store) PersistRoute(ctx context.Context, cableElid string, hops []inventory.Hop) error {
	if cableElid == "" {
		return fmt.Errorf("persist route: empty cable elid")
	}
	if err := inventory.ValidateHops(hops); err != nil {
		return fmt.Errorf("persist route %s: %w", cableElid, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist route: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var existing int
	if err := tx.QueryRowContext(ctx, s.bind(`
		SELECT COUNT(*) FROM route_hops WHERE cable_elid = ?
	`), cableElid).Scan(&existing); err != nil {
		return fmt.Errorf("persist route: count existing: %w", err)
	}
	if existing > 0 {
		return fmt.Errorf("persist route %s: %w (%d hops)", cableElid, ErrRouteExists, existing)
	}

	createdAt := s.timestamp()
	for _, hop := range hops {
		_, err := tx.ExecContext(ctx, s.bind(`
			INSERT INTO route_hops
			(link_elid, cable_elid, tray_section_elid, sequence, swap, link_description, created_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`),
			s.ids.Generate(),
			cableElid,
			hop.TraySectionElid,
			hop.Sequence,
			hop.SwapFlag(),
			inventory.LinkDescription,
			s.createdBy,
			createdAt,
		)
		if err != nil {
			return fmt.Errorf("persist route %s: insert hop %d: %w", cableElid, hop.Sequence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persist route: commit: %w", err)
	}
	return nil
}

// DeleteRoute removes the persisted hops of a cable. Returns the number of
// rows removed.
func (s *Store) DeleteRoute(ctx context.Context, cableElid string) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.bind(`DELETE FROM route_hops WHERE cable_elid = ?`), cableElid)
	if err != nil {
		return 0, fmt.Errorf("delete route %s: %w", cableElid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete route %s: rows affected: %w", cableElid, err)
	}
	return n, nil
}

// Run status values.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)

// BeginRun records the start of an import run. Idempotent.
func (s *Store) BeginRun(ctx context.Context, runID string, cleanup bool) error {
	flag := 0
	if cleanup {
		flag = 1
	}
	_, err := s.db.ExecContext(ctx, s.bind(`
		INSERT INTO import_runs (run_id, cleanup, status, started_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (run_id) DO NOTHING
	`), runID, flag, RunStatusRunning, s.timestamp())
	if err != nil {
		return fmt.Errorf("begin run %s: %w", runID, err)
	}
	return nil
}

// FinishRun marks a run complete or failed.
func (s *Store) FinishRun(ctx context.Context, runID, status string) error {
	res, err := s.db.ExecContext(ctx, s.bind(`
		UPDATE import_runs SET status = ?, finished_at = ? WHERE run_id = ?
	`), status, s.timestamp(), runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: run not found", runID)
	}
	return nil
}

// WriteOutcomes appends the itemized outcomes of one layer in one
// transaction. Rows already present (same run, layer, seq) are left as-is,
// so a retried write is a no-op.
func (s *Store) WriteOutcomes(ctx context.Context, runID string, rows []OutcomeRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write outcomes: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, r := range rows {
		_, err := tx.ExecContext(ctx, s.bind(`
			INSERT INTO import_outcomes
			(run_id, layer, layer_order, seq, identity_key, outcome, elid, error_code, message, candidate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (run_id, layer, seq) DO NOTHING
		`),
			runID,
			r.Layer,
			r.LayerOrder,
			r.Seq,
			r.IdentityKey,
			r.Outcome,
			r.Elid,
			r.ErrorCode,
			r.Message,
			r.Candidate,
		)
		if err != nil {
			return fmt.Errorf("write outcomes: insert %s/%d: %w", r.Layer, r.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write outcomes: commit: %w", err)
	}
	return nil
}
