package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"crm-bridge/core/models"
	"crm-bridge/core/syncerr"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestStore creates a migrated store on a named in-memory sqlite database.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := New(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// setupMockDB creates a mock GORM DB for failure paths.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

func strPtr(s string) *string { return &s }

func TestStore_Links(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	link := &SyncLink{
		CanonicalID: "c-1",
		EntityType:  models.EntityCompany,
		ProjectID:   strPtr("P1"),
		NaturalKey:  "acme corp",
	}
	link.SetSnapshot(models.Fields{"name": "Acme Corp"})
	require.NoError(t, s.UpsertLink(ctx, link))

	t.Run("FindByRemoteID", func(t *testing.T) {
		got, err := s.FindLinkByRemoteID(ctx, models.EntityCompany, models.SystemProject, "P1")
		require.NoError(t, err)
		assert.Equal(t, "c-1", got.CanonicalID)
		assert.Equal(t, "Acme Corp", got.Snapshot()["name"])

		_, err = s.FindLinkByRemoteID(ctx, models.EntityCompany, models.SystemCRM, "P1")
		assert.ErrorIs(t, err, syncerr.ErrNotFound)
	})

	t.Run("UpsertUpdates", func(t *testing.T) {
		link.SetRemoteID(models.SystemCRM, "C9")
		link.SetFingerprint(models.SystemCRM, "abc")
		require.NoError(t, s.UpsertLink(ctx, link))

		got, err := s.GetLink(ctx, "c-1")
		require.NoError(t, err)
		assert.Equal(t, "C9", got.RemoteID(models.SystemCRM))
		assert.Equal(t, "abc", got.Fingerprint(models.SystemCRM))

		links, err := s.ListLinks(ctx, models.EntityCompany)
		require.NoError(t, err)
		assert.Len(t, links, 1)
	})

	t.Run("RemoteIDUnique", func(t *testing.T) {
		dup := &SyncLink{CanonicalID: "c-2", EntityType: models.EntityCompany, ProjectID: strPtr("P1")}
		err := s.UpsertLink(ctx, dup)
		assert.ErrorIs(t, err, syncerr.ErrStoreUnavailable)

		// The same remote id under another entity type is a different record.
		other := &SyncLink{CanonicalID: "c-3", EntityType: models.EntityDeal, ProjectID: strPtr("P1")}
		assert.NoError(t, s.UpsertLink(ctx, other))
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.GetLink(ctx, "nope")
		assert.ErrorIs(t, err, syncerr.ErrNotFound)
	})
}

func TestStore_MarkPendingCreate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	link := &SyncLink{CanonicalID: "c-1", EntityType: models.EntityCompany, ProjectID: strPtr("P1")}
	require.NoError(t, s.MarkPendingCreate(ctx, link, models.SystemCRM))

	got, err := s.GetLink(ctx, "c-1")
	require.NoError(t, err)
	assert.NotNil(t, got.PendingAt(models.SystemCRM))
	assert.Nil(t, got.PendingAt(models.SystemProject))

	require.NoError(t, s.ClearPending(ctx, "c-1", models.SystemCRM))
	got, err = s.GetLink(ctx, "c-1")
	require.NoError(t, err)
	assert.Nil(t, got.PendingAt(models.SystemCRM))

	var nf *syncerr.NotFoundError
	assert.ErrorAs(t, s.ClearPending(ctx, "missing", models.SystemCRM), &nf)
}

func TestStore_Issues(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	issue := &ReconciliationIssue{
		CanonicalID: "c-1",
		EntityType:  models.EntityCompany,
		Kind:        models.IssueDivergentUpdate,
		Details:     datatypes.JSONMap{"fields": []string{"tier"}},
	}
	created, err := s.RecordIssue(ctx, issue)
	require.NoError(t, err)
	assert.True(t, created)
	firstID := issue.IssueID

	t.Run("Deduplicates", func(t *testing.T) {
		again := &ReconciliationIssue{
			CanonicalID: "c-1",
			EntityType:  models.EntityCompany,
			Kind:        models.IssueDivergentUpdate,
			Details:     datatypes.JSONMap{"fields": []string{"tier", "name"}},
		}
		created, err := s.RecordIssue(ctx, again)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, firstID, again.IssueID)

		open, err := s.ListUnresolvedIssues(ctx, models.EntityCompany)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Len(t, open[0].Details["fields"], 2)
	})

	t.Run("ResolveByCycle", func(t *testing.T) {
		_, err := s.RecordIssue(ctx, &ReconciliationIssue{CanonicalID: "c-1", EntityType: models.EntityCompany, Kind: models.IssueMissingCounterpart})
		require.NoError(t, err)

		n, err := s.ResolveIssues(ctx, "c-1", []models.IssueKind{models.IssueMissingCounterpart})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		open, err := s.ListUnresolvedIssues(ctx, "")
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, models.IssueDivergentUpdate, open[0].Kind)
	})

	t.Run("ResolveByOperator", func(t *testing.T) {
		got, err := s.ResolveIssue(ctx, firstID)
		require.NoError(t, err)
		assert.True(t, got.Resolved)
		assert.Equal(t, ResolvedByOperator, got.ResolvedBy)

		all, err := s.ListIssues(ctx, IssueFilter{IncludeResolved: true})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		_, err = s.ResolveIssue(ctx, "missing")
		assert.ErrorIs(t, err, syncerr.ErrNotFound)
	})

	t.Run("NewIssueAfterResolution", func(t *testing.T) {
		created, err := s.RecordIssue(ctx, &ReconciliationIssue{CanonicalID: "c-1", EntityType: models.EntityCompany, Kind: models.IssueDivergentUpdate})
		require.NoError(t, err)
		assert.True(t, created)
	})
}

func TestStore_CycleLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	cycle, err := s.BeginCycle(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, models.CycleRunning, cycle.Status)

	link := &SyncLink{CanonicalID: "c-1", EntityType: models.EntityCompany, ProjectID: strPtr("P1"), CRMID: strPtr("C1")}
	raised, err := s.CommitEntity(ctx, cycle.CycleID, EntityCommit{
		Link:       link,
		Operations: 1,
		Changes: []SyncChange{{
			CanonicalID: "c-1", EntityType: models.EntityCompany, System: models.SystemCRM,
			RemoteID: "C1", Operation: OpCreate, Field: "name", NewValue: "Acme",
		}},
	})
	require.NoError(t, err)
	assert.Zero(t, raised)

	raised, err = s.CommitEntity(ctx, cycle.CycleID, EntityCommit{
		Issues: []ReconciliationIssue{{CanonicalID: "c-2", EntityType: models.EntityCompany, Kind: models.IssueMissingCounterpart}},
		Failed: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, raised)

	done, err := s.CompleteCycle(ctx, cycle.CycleID, models.CycleSucceeded, "", nil)
	require.NoError(t, err)
	assert.Equal(t, models.CycleSucceeded, done.Status)
	assert.Equal(t, 2, done.EntitiesProcessed)
	assert.Equal(t, 1, done.OperationsApplied)
	assert.Equal(t, 1, done.IssuesRaised)
	assert.Equal(t, 1, done.Failures)
	assert.NotNil(t, done.CompletedAt)

	changes, err := s.ListChanges(ctx, cycle.CycleID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, cycle.CycleID, changes[0].CycleID)

	latest, err := s.LatestCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, cycle.CycleID, latest.CycleID)

	failed, err := s.BeginCycle(ctx, true)
	require.NoError(t, err)
	done, err = s.CompleteCycle(ctx, failed.CycleID, models.CycleFailed, "timeout", []string{"deal", "contact"})
	require.NoError(t, err)
	assert.Equal(t, []string{"deal", "contact"}, done.Incomplete())

	cycles, err := s.ListCycles(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, cycles, 2)
}

func TestStore_CommitEntityRollsBack(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	cycle, err := s.BeginCycle(ctx, false)
	require.NoError(t, err)

	require.NoError(t, s.UpsertLink(ctx, &SyncLink{CanonicalID: "c-1", EntityType: models.EntityCompany, ProjectID: strPtr("P1")}))

	// The second link collides on the project id, so nothing in the commit persists.
	_, err = s.CommitEntity(ctx, cycle.CycleID, EntityCommit{
		Link:       &SyncLink{CanonicalID: "c-2", EntityType: models.EntityCompany, ProjectID: strPtr("P1")},
		Issues:     []ReconciliationIssue{{CanonicalID: "c-2", EntityType: models.EntityCompany, Kind: models.IssueAmbiguousMatch}},
		Operations: 1,
	})
	require.ErrorIs(t, err, syncerr.ErrStoreUnavailable)

	got, err := s.GetCycle(ctx, cycle.CycleID)
	require.NoError(t, err)
	assert.Zero(t, got.EntitiesProcessed)
	assert.Zero(t, got.OperationsApplied)

	open, err := s.ListUnresolvedIssues(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestStore_Cursor(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	got, err := s.GetCursor(ctx, models.EntityContact, models.SystemCRM)
	require.NoError(t, err)
	assert.Nil(t, got)

	first := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.SetCursor(ctx, models.EntityContact, models.SystemCRM, first))
	second := first.Add(time.Hour)
	require.NoError(t, s.SetCursor(ctx, models.EntityContact, models.SystemCRM, second))

	got, err = s.GetCursor(ctx, models.EntityContact, models.SystemCRM)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, second.Equal(*got))
}

func TestStore_Unavailable(t *testing.T) {
	db, mock := setupMockDB(t)
	s := New(db)

	mock.ExpectQuery("SELECT").WillReturnError(fmt.Errorf("connection refused"))
	_, err := s.ListLinks(context.Background(), models.EntityCompany)
	assert.ErrorIs(t, err, syncerr.ErrStoreUnavailable)

	mock.ExpectBegin().WillReturnError(fmt.Errorf("connection refused"))
	_, err = s.CommitEntity(context.Background(), "cycle", EntityCommit{})
	assert.ErrorIs(t, err, syncerr.ErrStoreUnavailable)

	assert.NoError(t, mock.ExpectationsWereMet())
}
