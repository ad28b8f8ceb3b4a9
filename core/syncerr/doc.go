// Package syncerr defines the error taxonomy shared by the sync core.
//
// Every typed error maps onto a sentinel through an Is method, so callers can
// branch on the failure class without knowing the concrete type:
//
//	if errors.Is(err, syncerr.ErrRemoteUnavailable) {
//	    // ambiguous outcome, keep pending markers
//	}
//
// # Classes
//
//   - RemoteError: one failed remote call. Transient() decides retry eligibility.
//   - RemoteUnavailableError: retries exhausted (ErrRemoteUnavailable).
//   - MappingError: a required field could not be coerced (ErrMapping).
//   - StoreError: the state store failed (ErrStoreUnavailable), fatal to a cycle.
//   - NotFoundError: lookup misses (ErrNotFound).
package syncerr
