// Package engine reconciles group computations against the single
// computations they replace.
//
// For each requested group computation the engine:
//
//  1. Expands the bound group into member time series.
//  2. Builds a concrete clone per member by transforming the member through
//     the computation's input parameters, then the anchor (first input)
//     through the output parameters.
//  3. Drops clones whose first input duplicates an earlier clone.
//  4. Matches every clone against every single computation, first by
//     algorithm and parameter roles, then by evaluated properties.
//  5. Plans which singles to dispose of and which member series must stay
//     with their single computation.
//  6. Builds an exclusion group and a composite group (original minus
//     excluded) when some series must stay behind.
//  7. Archives the singles, disposes of them, persists the new groups and
//     enables the group computation.
//
// STATE MODEL:
//
// The run works from one Snapshot loaded at start. The snapshot is never
// mutated; disposals and rebinds land in a per-run overlay that later
// computations in the same run read through.
//
// Processing is single-threaded and deterministic: computations are
// handled in the order given, group members in expansion order, singles in
// id order.
//
// DRY RUN:
//
// With WithDryRun the plan, report, archive and overlay are produced
// exactly as in a real run, but nothing is written to the store and
// missing output time series are resolved without being created.
package engine
