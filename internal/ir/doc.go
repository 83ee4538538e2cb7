// Package ir defines the in-memory model shared by the store, the algorithm
// preparer and the reconciliation engine.
//
// The model mirrors the computation metadata tables:
//   - Computation: an algorithm bound to parameters, optionally to a Group
//   - Parameter: one role of a computation, identifying a time series
//   - Algorithm: executive class, declared properties and parameter roles
//   - TSID: a concrete time series identifier
//   - Group: a set of TSIDs built from members, criteria and subgroup operands
//
// Values in this package carry no database handles. Everything that needs
// I/O lives in internal/store.
package ir
