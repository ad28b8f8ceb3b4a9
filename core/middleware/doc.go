// Package middleware groups the HTTP middleware of the Fiber application.
//
//   - auth: API key validation, with a skip hook for public paths.
//   - rayid: a per-request id stored in the fiber locals and echoed in the
//     X-Ray-ID response header, read by logger.WithRayID.
package middleware
