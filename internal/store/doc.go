// Package store provides durable relational storage for an import run.
//
// The store holds:
//   - Route hops: one row per (cable, tray section) assignment, ordered by sequence
//   - Import runs: one row per orchestrator run
//   - Import outcomes: the itemized summary of every layer of a run, for audit
//
// # Invariants
//
// Route atomicity
//   - PersistRoute writes all hops of a cable in one transaction or none
//   - UNIQUE(cable_elid, sequence) rejects a second route for the same cable
//
// Deterministic reads
//   - Route hops are read ORDER BY sequence ASC
//   - Outcomes are read ORDER BY layer_order ASC, seq ASC
//
// # Backends
//
//   - SQLite (default): WAL mode, synchronous=NORMAL, busy_timeout=5000,
//     foreign_keys=ON, single connection
//   - Postgres: through the pgx database/sql driver, same schema
package store
