package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/topoload/internal/inventory"
)

// RouteRow is one persisted route hop.
type RouteRow struct {
	LinkElid    string        `json:"link_elid"`
	CableElid   string        `json:"cable_elid"`
	Hop         inventory.Hop `json:"hop"`
	Description string        `json:"link_description"`
	CreatedBy   string        `json:"created_by"`
	CreatedAt   string        `json:"created_at"`
}

// Run is one recorded import run.
type Run struct {
	RunID      string `json:"run_id"`
	Cleanup    bool   `json:"cleanup"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// OutcomeRow is one audited reconciliation outcome.
type OutcomeRow struct {
	Layer       string `json:"layer"`
	LayerOrder  int    `json:"layer_order"`
	Seq         int    `json:"seq"`
	IdentityKey string `json:"identity_key"`
	Outcome     string `json:"outcome"`
	Elid        string `json:"elid,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
	Message     string `json:"message,omitempty"`
	Candidate   string `json:"candidate"`
}

// RouteHops returns the hops of a cable ordered by sequence.
// Returns an empty slice (not nil) if the cable has no route.
func (s *Store) RouteHops(ctx context.Context, cableElid string) ([]RouteRow, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(`
		SELECT link_elid, cable_elid, tray_section_elid, sequence, swap, link_description, created_by, created_at
		FROM route_hops
		WHERE cable_elid = ?
		ORDER BY sequence ASC
	`), cableElid)
	if err != nil {
		return nil, fmt.Errorf("query route hops: %w", err)
	}
	defer rows.Close()

	hops := []RouteRow{}
	for rows.Next() {
		var r RouteRow
		var swap string
		if err := rows.Scan(&r.LinkElid, &r.CableElid, &r.Hop.TraySectionElid, &r.Hop.Sequence,
			&swap, &r.Description, &r.CreatedBy, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan route hop: %w", err)
		}
		r.Hop.Swapped = swap == "Y"
		hops = append(hops, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate route hops: %w", err)
	}
	return hops, nil
}

// CablesOnTraySection returns the elids of cables routed through a tray
// section, ordered by cable elid.
func (s *Store) CablesOnTraySection(ctx context.Context, traySectionElid string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(`
		SELECT DISTINCT cable_elid FROM route_hops
		WHERE tray_section_elid = ?
		ORDER BY cable_elid ASC
	`), traySectionElid)
	if err != nil {
		return nil, fmt.Errorf("query cables on tray section: %w", err)
	}
	defer rows.Close()

	cables := []string{}
	for rows.Next() {
		var elid string
		if err := rows.Scan(&elid); err != nil {
			return nil, fmt.Errorf("scan cable elid: %w", err)
		}
		cables = append(cables, elid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cables: %w", err)
	}
	return cables, nil
}

// Runs returns recorded runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, cleanup, status, started_at, finished_at
		FROM import_runs
		ORDER BY started_at DESC, run_id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a run or (nil, nil) when it does not exist.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, s.bind(`
		SELECT run_id, cleanup, status, started_at, finished_at
		FROM import_runs WHERE run_id = ?
	`), runID)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Outcomes returns the audited outcomes of a run in layer order, then
// candidate order.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]OutcomeRow, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(`
		SELECT layer, layer_order, seq, identity_key, outcome, elid, error_code, message, candidate
		FROM import_outcomes
		WHERE run_id = ?
		ORDER BY layer_order ASC, seq ASC
	`), runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	out := []OutcomeRow{}
	for rows.Next() {
		var r OutcomeRow
		if err := rows.Scan(&r.Layer, &r.LayerOrder, &r.Seq, &r.IdentityKey, &r.Outcome,
			&r.Elid, &r.ErrorCode, &r.Message, &r.Candidate); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var cleanup int
	if err := row.Scan(&r.RunID, &cleanup, &r.Status, &r.StartedAt, &r.FinishedAt); err != nil {
		if err == sql.ErrNoRows {
			return r, err
		}
		return r, fmt.Errorf("scan run: %w", err)
	}
	r.Cleanup = cleanup == 1
	return r, nil
}
