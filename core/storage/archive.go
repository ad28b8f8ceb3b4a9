package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// ArchivedObject describes a stored report.
type ArchivedObject struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Archive stores exported reports under a prefix of one bucket.
type Archive struct {
	client Client
	bucket string
	prefix string
	retain int
}

// NewArchive creates an archive over a storage client.
func NewArchive(client Client, cfg Config) *Archive {
	return &Archive{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, retain: cfg.Retain}
}

// Exists reports whether the archive bucket exists.
func (a *Archive) Exists(ctx context.Context) (bool, error) {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return false, fmt.Errorf("failed to check bucket %s: %w", a.bucket, err)
	}
	return exists, nil
}

// Bucket returns the archive bucket name.
func (a *Archive) Bucket() string {
	return a.bucket
}

// Ensure creates the bucket when it does not exist.
func (a *Archive) Ensure(ctx context.Context) error {
	exists, err := a.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
	}
	return nil
}

// Put uploads a report and prunes the oldest ones beyond the retention count.
// It returns the object key.
func (a *Archive) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := a.Ensure(ctx); err != nil {
		return "", err
	}
	key := a.key(name)
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if err := a.prune(ctx); err != nil {
		return key, err
	}
	return key, nil
}

// Get opens an archived report by name.
func (a *Archive) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, a.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", name, err)
	}
	return obj, nil
}

// List returns archived reports, newest first.
func (a *Archive) List(ctx context.Context) ([]ArchivedObject, error) {
	var out []ArchivedObject
	for obj := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{Prefix: a.prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list archive: %w", obj.Err)
		}
		out = append(out, ArchivedObject{
			Name:         strings.TrimPrefix(obj.Key, a.prefix),
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastModified.Equal(out[j].LastModified) {
			return out[i].LastModified.After(out[j].LastModified)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

func (a *Archive) prune(ctx context.Context) error {
	if a.retain <= 0 {
		return nil
	}
	objs, err := a.List(ctx)
	if err != nil {
		return err
	}
	if len(objs) <= a.retain {
		return nil
	}

	stale := objs[a.retain:]
	objectsCh := make(chan minio.ObjectInfo, len(stale))
	for _, o := range stale {
		objectsCh <- minio.ObjectInfo{Key: a.key(o.Name)}
	}
	close(objectsCh)

	var errs []string
	for rerr := range a.client.RemoveObjects(ctx, a.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", rerr.ObjectName, rerr.Err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("prune had %d errors: %v", len(errs), errs)
	}
	return nil
}

func (a *Archive) key(name string) string {
	return path.Join(a.prefix, path.Base(name))
}
