// Package reconcile compares the project system and the CRM for one entity
// type and converges them.
//
// # Plan
//
// Plan fetches both systems concurrently, maps every record to canonical form
// and groups the observations into canonical entities: first through stored
// links, then by natural key. Each entity is classified against the
// fingerprints recorded at the last sync:
//
//   - one side changed: the changed fields are written to the other side
//   - both sides changed to different values: divergent_update, nothing written
//   - present on one side only: created on the other side when the entity map
//     allows it, otherwise missing_counterpart
//   - a linked record missing from a full fetch: deleted_remote
//   - several unlinked records share a natural key: the earliest created is
//     linked, the rest are reported as ambiguous_match
//
// Plan never writes to a remote, which makes it the dry-run view of a cycle.
//
// # Apply
//
// Apply runs a bounded worker pool over the plan. A create first stores a
// pending marker on the link. If the outcome of the create is unknown the
// marker stays, and later cycles raise unconfirmed_create instead of creating
// a second record. Every entity outcome is committed in one store transaction.
//
// # Usage
//
//	engine := reconcile.NewEngine(projectClient, crmClient, m, st, logger, reconcile.Options{Workers: 8})
//	res, err := engine.Reconcile(ctx, cycle.CycleID, models.EntityCompany)
package reconcile
