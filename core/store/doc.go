// Package store persists sync state: links between canonical entities and
// remote records, reconciliation issues, cycle summaries, the per-cycle change
// log and incremental fetch cursors.
//
// # Tables
//
//   - sync_links: one row per canonical entity. A remote id appears in at most
//     one link per entity type (unique composite indexes).
//   - reconciliation_issues: open and resolved issues. At most one open issue
//     per canonical entity and kind.
//   - sync_cycles: one row per cycle with running counters.
//   - sync_changes: every field written to a remote.
//   - sync_cursors: incremental fetch high-water marks.
//
// # Atomicity
//
// CommitEntity writes a link, its issues, its change rows and the cycle
// counters in a single transaction. Every database failure is returned as a
// *syncerr.StoreError.
package store
