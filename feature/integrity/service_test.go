package integrity

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"crm-bridge/core/mapper"
	"crm-bridge/core/models"
	"crm-bridge/core/remote"
	"crm-bridge/core/storage"
	"crm-bridge/core/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testMapping = `
entities:
  company:
    natural_key: name
    fields:
      - name: name
        type: string
        required: true
        project: { field: title }
        crm: { field: name }
      - name: stage
        type: enum
        project: { field: status, values: { Active: active, Churned: churned } }
        crm: { field: lifecyclestage, values: { customer: active } }
`

type staticInspector []string

func (s staticInspector) Fields(ctx context.Context, et models.EntityType) ([]string, error) {
	return s, nil
}

// setupSQLite opens an empty in-memory database private to the test.
func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestMapper(t *testing.T) *mapper.Mapper {
	t.Helper()
	mapping, err := mapper.ParseMapping([]byte(testMapping))
	require.NoError(t, err)
	m, err := mapper.New(mapping)
	require.NoError(t, err)
	return m
}

func TestService_Store(t *testing.T) {
	svc := NewService(setupSQLite(t), nil, nil, nil, zap.NewNop())

	report, err := svc.CheckStore()
	require.NoError(t, err)
	assert.False(t, report.Matched)
	assert.True(t, report.Tables["sync_links"].Missing)

	require.NoError(t, svc.FixStore(context.Background()))

	report, err = svc.CheckStore()
	require.NoError(t, err)
	assert.True(t, report.Matched)
}

func TestService_Remote(t *testing.T) {
	inspectors := map[models.System]remote.SchemaInspector{
		models.SystemProject: staticInspector{"title", "status"},
		models.SystemCRM:     staticInspector{"name"},
	}
	svc := NewService(nil, newTestMapper(t), inspectors, nil, nil)

	report, err := svc.CheckRemote(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Matched)
	require.Len(t, report.Entries, 2)

	// Entries are ordered by system name.
	assert.Equal(t, models.SystemCRM, report.Entries[0].System)
	assert.Equal(t, []string{"lifecyclestage"}, report.Entries[0].MissingFields)
	assert.Equal(t, "ok", report.Entries[1].Status)
}

func TestService_Mapping(t *testing.T) {
	svc := NewService(nil, newTestMapper(t), nil, nil, nil)

	report, err := svc.CheckMapping()
	require.NoError(t, err)
	require.Len(t, report.Gaps, 1)
	assert.Equal(t, "churned", report.Gaps[0].Value)
	assert.Equal(t, models.SystemCRM, report.Gaps[0].MissingIn)
}

func TestService_Archive(t *testing.T) {
	client := new(mocks.Client)
	archive := storage.NewArchive(client, storage.Config{Bucket: "crm-bridge", Prefix: "reports/"})
	svc := NewService(nil, nil, nil, archive, zap.NewNop())

	t.Run("Missing", func(t *testing.T) {
		client.On("BucketExists", mock.Anything, "crm-bridge").Return(false, nil).Once()

		report, err := svc.CheckArchive(context.Background(), false)
		require.NoError(t, err)
		assert.Equal(t, &ArchiveReport{Bucket: "crm-bridge"}, report)
	})

	t.Run("Fix", func(t *testing.T) {
		client.On("BucketExists", mock.Anything, "crm-bridge").Return(false, nil).Twice()
		client.On("MakeBucket", mock.Anything, "crm-bridge", mock.Anything).Return(nil).Once()

		report, err := svc.CheckArchive(context.Background(), true)
		require.NoError(t, err)
		assert.True(t, report.Exists)
		assert.True(t, report.Fixed)
	})

	t.Run("Error", func(t *testing.T) {
		client.On("BucketExists", mock.Anything, "crm-bridge").Return(false, errors.New("connection refused")).Once()

		_, err := svc.CheckArchive(context.Background(), false)
		assert.ErrorContains(t, err, "connection refused")
	})

	client.AssertExpectations(t)
}

func TestService_NotConfigured(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, nil)

	_, err := svc.CheckStore()
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, svc.FixStore(context.Background()), ErrNotConfigured)
	_, err = svc.CheckRemote(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = svc.CheckMapping()
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = svc.CheckArchive(context.Background(), true)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
