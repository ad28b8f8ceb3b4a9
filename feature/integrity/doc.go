// Package integrity provides health checks for the sync infrastructure.
//
// Unlike the sync feature, which reconciles records, this package validates
// that the pieces a cycle depends on are in place.
//
// # Checks Provided
//
//   - Store: Validates that the state store schema matches the persisted models (tables, columns, explicit types).
//   - Remote: Verifies that every mapped field exists on the project system and the CRM.
//   - Mapping: Lists canonical enum values that one side's value table cannot represent.
//   - Archive: Checks that the report archive bucket exists.
//
// # HTTP Endpoints
//
//   - GET /integrity : Runs all checks.
//   - GET /integrity/store : Runs the store check (supports ?fix=true to migrate).
//   - GET /integrity/remote : Runs the remote field check.
//   - GET /integrity/mapping : Runs the mapping check.
//   - GET /integrity/archive : Runs the archive check (supports ?fix=true to create the bucket).
package integrity
