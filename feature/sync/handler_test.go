package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crm-bridge/core/models"
	"crm-bridge/core/orchestrator"
	"crm-bridge/core/reconcile"
	"crm-bridge/core/report"
	"crm-bridge/core/scheduler"
	"crm-bridge/core/storage"
	"crm-bridge/core/storage/mocks"
	"crm-bridge/core/store"

	"github.com/gofiber/fiber/v2"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubEngine struct {
	started chan struct{}
	release chan struct{}
}

func (e *stubEngine) Plan(ctx context.Context, et models.EntityType) (*reconcile.Plan, error) {
	return &reconcile.Plan{EntityType: et}, nil
}

func (e *stubEngine) Apply(ctx context.Context, cycleID string, plan *reconcile.Plan) (*reconcile.Result, error) {
	if e.started != nil {
		e.started <- struct{}{}
		<-e.release
	}
	return &reconcile.Result{EntityType: plan.EntityType, Processed: 1, Complete: true}, nil
}

type testEnv struct {
	app    *fiber.App
	store  *store.Store
	orch   *orchestrator.Orchestrator
	engine *stubEngine
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	st := store.New(db)
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func setupTestApp(t *testing.T, archive *storage.Archive) *testEnv {
	t.Helper()
	st := setupTestStore(t)
	eng := &stubEngine{}
	orch := orchestrator.New(eng, st, orchestrator.Config{EntityTypes: []models.EntityType{models.EntityCompany}})

	sched := scheduler.New(orch, 0, nil)
	sched.Start(context.Background())
	t.Cleanup(sched.Stop)

	svc := NewService(orch, sched, st, archive, zap.NewNop())
	app := fiber.New()
	require.NoError(t, NewFeature(svc).Load(app))
	return &testEnv{app: app, store: st, orch: orch, engine: eng}
}

func doJSON(t *testing.T, app *fiber.App, method, path string, out any) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, path, nil), 5000)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestFeature(t *testing.T) {
	env := setupTestApp(t, nil)
	f := NewFeature(NewService(env.orch, nil, env.store, nil, zap.NewNop()))
	assert.Equal(t, "sync", f.Name())
	assert.True(t, f.IsEnabled())
}

func TestHandleRun_Wait(t *testing.T) {
	env := setupTestApp(t, nil)

	var rep orchestrator.Report
	status := doJSON(t, env.app, "POST", "/sync/run?wait=true&type=company", &rep)
	assert.Equal(t, fiber.StatusOK, status)
	require.NotNil(t, rep.Cycle)
	assert.Equal(t, models.CycleSucceeded, rep.Cycle.Status)
	assert.Equal(t, 1, rep.Cycle.EntitiesProcessed)
}

func TestHandleRun_Async(t *testing.T) {
	env := setupTestApp(t, nil)

	var body map[string]string
	assert.Equal(t, fiber.StatusAccepted, doJSON(t, env.app, "POST", "/sync/run?dry_run=true", &body))
	assert.Equal(t, "accepted", body["status"])

	require.Eventually(t, func() bool {
		var state orchestrator.State
		doJSON(t, env.app, "GET", "/sync/status", &state)
		return state.Status == orchestrator.StatusSucceeded
	}, 2*time.Second, 10*time.Millisecond)

	cycles, err := env.store.ListCycles(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.True(t, cycles[0].DryRun)
}

func TestHandleRun_BadType(t *testing.T) {
	env := setupTestApp(t, nil)

	var body map[string]string
	assert.Equal(t, fiber.StatusBadRequest, doJSON(t, env.app, "POST", "/sync/run?type=ticket", &body))
	assert.Contains(t, body["error"], "ticket")
}

func TestHandleRun_ConflictAndStop(t *testing.T) {
	env := setupTestApp(t, nil)
	env.engine.started = make(chan struct{}, 1)
	env.engine.release = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = env.orch.RunCycle(context.Background(), orchestrator.RunOptions{})
	}()
	<-env.engine.started

	var body map[string]any
	assert.Equal(t, fiber.StatusConflict, doJSON(t, env.app, "POST", "/sync/run", &body))
	assert.Equal(t, fiber.StatusConflict, doJSON(t, env.app, "POST", "/sync/run?wait=true", &body))

	var state orchestrator.State
	doJSON(t, env.app, "GET", "/sync/status", &state)
	assert.Equal(t, orchestrator.StatusRunning, state.Status)

	assert.Equal(t, fiber.StatusOK, doJSON(t, env.app, "POST", "/sync/stop", &body))
	close(env.engine.release)
	<-done

	assert.Equal(t, fiber.StatusConflict, doJSON(t, env.app, "POST", "/sync/stop", &body))
}

func TestHandleCycles(t *testing.T) {
	env := setupTestApp(t, nil)
	rep, err := env.orch.RunCycle(context.Background(), orchestrator.RunOptions{})
	require.NoError(t, err)

	var cycles []store.SyncCycle
	assert.Equal(t, fiber.StatusOK, doJSON(t, env.app, "GET", "/sync/cycles?limit=5", &cycles))
	require.Len(t, cycles, 1)
	assert.Equal(t, rep.Cycle.CycleID, cycles[0].CycleID)

	var cycle store.SyncCycle
	assert.Equal(t, fiber.StatusOK, doJSON(t, env.app, "GET", "/sync/cycles/"+rep.Cycle.CycleID, &cycle))
	assert.Equal(t, models.CycleSucceeded, cycle.Status)

	var body map[string]string
	assert.Equal(t, fiber.StatusNotFound, doJSON(t, env.app, "GET", "/sync/cycles/missing", &body))
	assert.Equal(t, fiber.StatusNotFound, doJSON(t, env.app, "GET", "/sync/cycles/missing/changes", &body))
}

func TestHandleChanges(t *testing.T) {
	env := setupTestApp(t, nil)
	ctx := context.Background()
	cycle, err := env.store.BeginCycle(ctx, false)
	require.NoError(t, err)
	require.NoError(t, env.store.DB().Create(&store.SyncChange{
		CycleID: cycle.CycleID, CanonicalID: "c-1", EntityType: models.EntityCompany,
		System: models.SystemCRM, RemoteID: "H1", Operation: store.OpUpdate,
		Field: "name", OldValue: "Acme", NewValue: "Acme Corp", CreatedAt: time.Now(),
	}).Error)

	var changes []store.SyncChange
	assert.Equal(t, fiber.StatusOK, doJSON(t, env.app, "GET", "/sync/cycles/"+cycle.CycleID+"/changes", &changes))
	require.Len(t, changes, 1)
	assert.Equal(t, "Acme Corp", changes[0].NewValue)

	resp, err := env.app.Test(httptest.NewRequest("GET", "/sync/cycles/"+cycle.CycleID+"/report", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, report.ContentTypeCSV, resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "sync_activity_"+cycle.CycleID+".csv")
	data, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(data), "Acme,Acme Corp")
}

func seedIssues(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()
	for _, is := range []*store.ReconciliationIssue{
		{CanonicalID: "c-1", EntityType: models.EntityCompany, Kind: models.IssueMissingCounterpart, Details: datatypes.JSONMap{"system": "project"}},
		{CanonicalID: "c-2", EntityType: models.EntityContact, Kind: models.IssueDivergentUpdate},
	} {
		_, err := st.RecordIssue(ctx, is)
		require.NoError(t, err)
	}
}

func TestHandleListIssues(t *testing.T) {
	env := setupTestApp(t, nil)
	seedIssues(t, env.store)

	var issues []store.ReconciliationIssue
	assert.Equal(t, fiber.StatusOK, doJSON(t, env.app, "GET", "/issues", &issues))
	assert.Len(t, issues, 2)

	assert.Equal(t, fiber.StatusOK, doJSON(t, env.app, "GET", "/issues?entity_type=company", &issues))
	require.Len(t, issues, 1)
	assert.Equal(t, "c-1", issues[0].CanonicalID)

	var body map[string]string
	assert.Equal(t, fiber.StatusBadRequest, doJSON(t, env.app, "GET", "/issues?kind=oops", &body))
	assert.Equal(t, fiber.StatusBadRequest, doJSON(t, env.app, "GET", "/issues?entity_type=ticket", &body))
}

func TestHandleExportIssues(t *testing.T) {
	env := setupTestApp(t, nil)
	seedIssues(t, env.store)

	resp, err := env.app.Test(httptest.NewRequest("GET", "/issues/export?format=xlsx", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, report.ContentTypeXLSX, resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), ".xlsx")

	var body map[string]string
	assert.Equal(t, fiber.StatusBadRequest, doJSON(t, env.app, "GET", "/issues/export?archive=true", &body))
	assert.Equal(t, fiber.StatusBadRequest, doJSON(t, env.app, "GET", "/issues/export?format=pdf", &body))
}

func TestHandleExportIssues_Archive(t *testing.T) {
	client := new(mocks.Client)
	client.On("BucketExists", mock.Anything, "crm-bridge").Return(true, nil)
	client.On("PutObject", mock.Anything, "crm-bridge", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, nil)
	archive := storage.NewArchive(client, storage.Config{Bucket: "crm-bridge", Prefix: "reports/"})

	env := setupTestApp(t, archive)
	seedIssues(t, env.store)

	resp, err := env.app.Test(httptest.NewRequest("GET", "/issues/export?archive=true", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("X-Archive-Key"), "reports/reconciliation_report_"))
	client.AssertExpectations(t)
}

func TestHandleReports(t *testing.T) {
	client := new(mocks.Client)
	ch := make(chan minio.ObjectInfo, 1)
	ch <- minio.ObjectInfo{Key: "reports/r.csv", Size: 3, LastModified: time.Unix(100, 0)}
	close(ch)
	client.On("ListObjects", mock.Anything, "crm-bridge", mock.Anything).Return((<-chan minio.ObjectInfo)(ch))
	client.On("GetObject", mock.Anything, "crm-bridge", "reports/r.csv", mock.Anything).
		Return(io.NopCloser(bytes.NewReader([]byte("a,b"))), nil)
	archive := storage.NewArchive(client, storage.Config{Bucket: "crm-bridge", Prefix: "reports/"})

	env := setupTestApp(t, archive)

	var objs []storage.ArchivedObject
	assert.Equal(t, fiber.StatusOK, doJSON(t, env.app, "GET", "/reports", &objs))
	require.Len(t, objs, 1)
	assert.Equal(t, "r.csv", objs[0].Name)

	resp, err := env.app.Test(httptest.NewRequest("GET", "/reports/r.csv", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "a,b", string(data))
}

func TestHandleReports_Disabled(t *testing.T) {
	env := setupTestApp(t, nil)

	var body map[string]string
	assert.Equal(t, fiber.StatusNotFound, doJSON(t, env.app, "GET", "/reports", &body))
}

func TestHandleResolveIssue(t *testing.T) {
	env := setupTestApp(t, nil)
	ctx := context.Background()

	link := &store.SyncLink{CanonicalID: "c-9", EntityType: models.EntityCompany, ProjectID: func(s string) *string { return &s }("P9")}
	require.NoError(t, env.store.MarkPendingCreate(ctx, link, models.SystemCRM))
	issue := &store.ReconciliationIssue{
		CanonicalID: "c-9", EntityType: models.EntityCompany, Kind: models.IssueUnconfirmedCreate,
		Details: datatypes.JSONMap{"system": "crm", "source_id": "P9"},
	}
	_, err := env.store.RecordIssue(ctx, issue)
	require.NoError(t, err)

	var resolved store.ReconciliationIssue
	assert.Equal(t, fiber.StatusOK, doJSON(t, env.app, "POST", "/issues/"+issue.IssueID+"/resolve", &resolved))
	assert.True(t, resolved.Resolved)
	assert.Equal(t, store.ResolvedByOperator, resolved.ResolvedBy)

	got, err := env.store.GetLink(ctx, "c-9")
	require.NoError(t, err)
	assert.Nil(t, got.PendingAt(models.SystemCRM))

	var body map[string]string
	assert.Equal(t, fiber.StatusNotFound, doJSON(t, env.app, "POST", "/issues/missing/resolve", &body))
}

func TestHandleMetrics(t *testing.T) {
	env := setupTestApp(t, nil)
	_, err := env.orch.RunCycle(context.Background(), orchestrator.RunOptions{})
	require.NoError(t, err)

	resp, err := env.app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	data, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(data), `crm_bridge_cycle_total{status="succeeded"} 1`)
}
