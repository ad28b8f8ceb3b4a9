// Package storage archives exported reports in object storage.
//
// It wraps the MinIO Go client behind the Client interface, which supports
// both AWS S3 and self-hosted MinIO and is mocked in core/storage/mocks.
//
// # Archive
//
// Archive keeps reports under a prefix of one bucket:
//
//   - Ensure creates the bucket on first use.
//   - Put uploads a report and prunes the oldest beyond Config.Retain.
//   - List and Get browse and download archived reports.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	archive := storage.NewArchive(client, cfg.Storage)
//	key, err := archive.Put(ctx, "issues-20240101.xlsx", data, report.ContentTypeXLSX)
package storage
