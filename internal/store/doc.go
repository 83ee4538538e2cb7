// Package store provides SQLite-backed storage for computation metadata:
// algorithms, computations, time series identifiers and time series groups.
//
// The store serves three roles for the reconciliation engine:
//   - Computation store: list, read, write and delete computations
//   - Group store: read fully loaded groups and write new ones
//   - Time series store: look up, transform and create identifiers
//
// # Errors
//
// Missing records are reported as ir.ErrNotFound. A delete refused by a
// foreign key (derived data still references the computation) is reported as
// ir.ErrReferentialConflict. Both are wrapped; test with errors.Is.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Reads that return lists are ordered by id (or by declared sequence for
// parameters, members and subgroups) so that a run over the same database
// always visits records in the same order.
package store
