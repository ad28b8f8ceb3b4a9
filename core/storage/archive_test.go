package storage_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"crm-bridge/core/storage"
	"crm-bridge/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func objectsChan(objs ...minio.ObjectInfo) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo, len(objs))
	for _, o := range objs {
		ch <- o
	}
	close(ch)
	return ch
}

var archiveCfg = storage.Config{Bucket: "crm-bridge", Prefix: "reports/", Retain: 2}

func TestArchive_PutCreatesBucket(t *testing.T) {
	ctx := context.Background()
	client := new(mocks.Client)
	client.On("BucketExists", ctx, "crm-bridge").Return(false, nil)
	client.On("MakeBucket", ctx, "crm-bridge", minio.MakeBucketOptions{}).Return(nil)
	client.On("PutObject", ctx, "crm-bridge", "reports/issues.csv", mock.Anything, int64(3), minio.PutObjectOptions{ContentType: "text/csv"}).
		Return(minio.UploadInfo{}, nil)
	client.On("ListObjects", ctx, "crm-bridge", mock.Anything).
		Return(objectsChan(minio.ObjectInfo{Key: "reports/issues.csv"}))

	key, err := storage.NewArchive(client, archiveCfg).Put(ctx, "issues.csv", []byte("a,b"), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, "reports/issues.csv", key)
	client.AssertExpectations(t)
	client.AssertNotCalled(t, "RemoveObjects", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestArchive_PutPrunesOldest(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	client := new(mocks.Client)
	client.On("BucketExists", ctx, "crm-bridge").Return(true, nil)
	client.On("PutObject", ctx, "crm-bridge", "reports/c.csv", mock.Anything, int64(1), mock.Anything).
		Return(minio.UploadInfo{}, nil)
	client.On("ListObjects", ctx, "crm-bridge", mock.Anything).Return(objectsChan(
		minio.ObjectInfo{Key: "reports/a.csv", LastModified: now.Add(-2 * time.Hour)},
		minio.ObjectInfo{Key: "reports/c.csv", LastModified: now},
		minio.ObjectInfo{Key: "reports/b.csv", LastModified: now.Add(-time.Hour)},
	))

	var removed []string
	client.On("RemoveObjects", ctx, "crm-bridge", mock.Anything, minio.RemoveObjectsOptions{}).
		Run(func(args mock.Arguments) {
			for o := range args.Get(2).(<-chan minio.ObjectInfo) {
				removed = append(removed, o.Key)
			}
		}).
		Return(nil)

	_, err := storage.NewArchive(client, archiveCfg).Put(ctx, "c.csv", []byte("x"), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/a.csv"}, removed)
}

func TestArchive_ListAndGet(t *testing.T) {
	ctx := context.Background()
	client := new(mocks.Client)
	client.On("ListObjects", ctx, "crm-bridge", mock.Anything).Return(objectsChan(
		minio.ObjectInfo{Key: "reports/old.xlsx", Size: 10, LastModified: time.Unix(100, 0)},
		minio.ObjectInfo{Key: "reports/new.xlsx", Size: 20, LastModified: time.Unix(200, 0)},
	))
	client.On("GetObject", ctx, "crm-bridge", "reports/new.xlsx", minio.GetObjectOptions{}).
		Return(io.NopCloser(strings.NewReader("data")), nil)

	a := storage.NewArchive(client, archiveCfg)
	objs, err := a.List(ctx)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "new.xlsx", objs[0].Name)

	// Path components in the name are ignored.
	rc, err := a.Get(ctx, "../new.xlsx")
	require.NoError(t, err)
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "data", string(b))
}

func TestArchive_EnsureError(t *testing.T) {
	ctx := context.Background()
	client := new(mocks.Client)
	client.On("BucketExists", ctx, "crm-bridge").Return(false, errors.New("access denied"))

	_, err := storage.NewArchive(client, archiveCfg).Put(ctx, "x.csv", []byte("x"), "text/csv")
	assert.ErrorContains(t, err, "access denied")
}
