// Package remote provides the rate limited, retrying client used to talk to
// the project system and the CRM.
//
// # Layers
//
// A Transport makes exactly one attempt per call and reports failures as
// *syncerr.RemoteError. RateLimitedClient wraps a Transport and adds:
//
//   - a token bucket (golang.org/x/time/rate); callers block while it is empty
//   - retries of transient failures (429, 5xx, connection errors) with
//     exponential backoff and jitter, honoring Retry-After hints
//   - a per-attempt timeout
//
// When retries are exhausted the call fails with *syncerr.RemoteUnavailableError.
// Validation and permission errors are returned at once.
//
// Create is not idempotent. A RemoteUnavailableError from Create means the
// record may or may not exist; the reconciliation engine handles that case.
//
// # Usage
//
//	client := remote.NewClient(transport, cfg.CRM.Limits, logger)
//	records, err := client.Fetch(ctx, models.EntityCompany, nil)
package remote
