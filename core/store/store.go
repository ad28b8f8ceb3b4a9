package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"crm-bridge/core/models"
	"crm-bridge/core/syncerr"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the transactional state store for links, issues and cycles.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates a Store on an open database.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// DB exposes the underlying connection for schema inspection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate creates or updates the sync tables.
func (s *Store) Migrate(ctx context.Context) error {
	return syncerr.NewStoreError("migrate", s.db.WithContext(ctx).AutoMigrate(AllModels()...))
}

// GetLink loads a link by canonical id.
func (s *Store) GetLink(ctx context.Context, canonicalID string) (*SyncLink, error) {
	var link SyncLink
	err := s.db.WithContext(ctx).Where("canonical_id = ?", canonicalID).Take(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &syncerr.NotFoundError{Resource: "link", ID: canonicalID}
	}
	if err != nil {
		return nil, syncerr.NewStoreError("get link", err)
	}
	return &link, nil
}

// FindLinkByRemoteID loads the link holding a remote id.
func (s *Store) FindLinkByRemoteID(ctx context.Context, et models.EntityType, system models.System, remoteID string) (*SyncLink, error) {
	col := "project_id"
	if system == models.SystemCRM {
		col = "crm_id"
	}
	var link SyncLink
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND "+col+" = ?", et, remoteID).
		Take(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &syncerr.NotFoundError{Resource: string(system) + " " + string(et), ID: remoteID}
	}
	if err != nil {
		return nil, syncerr.NewStoreError("find link", err)
	}
	return &link, nil
}

// ListLinks returns every link of an entity type ordered by creation.
func (s *Store) ListLinks(ctx context.Context, et models.EntityType) ([]SyncLink, error) {
	var links []SyncLink
	err := s.db.WithContext(ctx).
		Where("entity_type = ?", et).
		Order("created_at, canonical_id").
		Find(&links).Error
	if err != nil {
		return nil, syncerr.NewStoreError("list links", err)
	}
	return links, nil
}

// UpsertLink inserts or fully updates a link.
func (s *Store) UpsertLink(ctx context.Context, link *SyncLink) error {
	return syncerr.NewStoreError("upsert link", upsertLink(s.db.WithContext(ctx), link))
}

func upsertLink(tx *gorm.DB, link *SyncLink) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "canonical_id"}},
		UpdateAll: true,
	}).Create(link).Error
}

// MarkPendingCreate durably records the intent to create the entity on target
// before the remote call is made.
func (s *Store) MarkPendingCreate(ctx context.Context, link *SyncLink, target models.System) error {
	at := s.now()
	link.SetPending(target, &at)
	return s.UpsertLink(ctx, link)
}

// ClearPending drops the pending-create marker of a link on target. Operators
// use it after confirming an unconfirmed create did not land.
func (s *Store) ClearPending(ctx context.Context, canonicalID string, target models.System) error {
	col := "project_pending_at"
	if target == models.SystemCRM {
		col = "crm_pending_at"
	}
	if _, err := s.GetLink(ctx, canonicalID); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Model(&SyncLink{}).
		Where("canonical_id = ?", canonicalID).
		Update(col, nil).Error
	return syncerr.NewStoreError("clear pending", err)
}

// IssueFilter narrows ListIssues.
type IssueFilter struct {
	EntityType models.EntityType
	Kind       models.IssueKind
	// IncludeResolved also returns resolved issues.
	IncludeResolved bool
	Limit           int
}

// ListIssues returns issues, newest first.
func (s *Store) ListIssues(ctx context.Context, f IssueFilter) ([]ReconciliationIssue, error) {
	q := s.db.WithContext(ctx).Model(&ReconciliationIssue{})
	if !f.IncludeResolved {
		q = q.Where("resolved = ?", false)
	}
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var issues []ReconciliationIssue
	if err := q.Order("detected_at DESC, issue_id").Find(&issues).Error; err != nil {
		return nil, syncerr.NewStoreError("list issues", err)
	}
	return issues, nil
}

// ListUnresolvedIssues returns open issues, optionally of one entity type.
func (s *Store) ListUnresolvedIssues(ctx context.Context, et models.EntityType) ([]ReconciliationIssue, error) {
	return s.ListIssues(ctx, IssueFilter{EntityType: et})
}

// RecordIssue stores an issue. An open issue with the same canonical id and
// kind is refreshed instead of duplicated. It reports whether a new row was created.
func (s *Store) RecordIssue(ctx context.Context, issue *ReconciliationIssue) (bool, error) {
	created, err := s.recordIssue(s.db.WithContext(ctx), issue)
	return created, syncerr.NewStoreError("record issue", err)
}

func (s *Store) recordIssue(tx *gorm.DB, issue *ReconciliationIssue) (bool, error) {
	var existing ReconciliationIssue
	err := tx.Where("canonical_id = ? AND kind = ? AND resolved = ?", issue.CanonicalID, issue.Kind, false).
		Take(&existing).Error
	if err == nil {
		issue.IssueID = existing.IssueID
		issue.DetectedAt = existing.DetectedAt
		return false, tx.Model(&existing).Updates(map[string]any{
			"details":  issue.Details,
			"cycle_id": issue.CycleID,
		}).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	if issue.IssueID == "" {
		issue.IssueID = uuid.NewString()
	}
	if issue.DetectedAt.IsZero() {
		issue.DetectedAt = s.now()
	}
	if issue.Details == nil {
		issue.Details = datatypes.JSONMap{}
	}
	return true, tx.Create(issue).Error
}

// ResolveIssues closes open issues of the given kinds for a canonical entity.
// With no kinds, every open issue of the entity is closed.
func (s *Store) ResolveIssues(ctx context.Context, canonicalID string, kinds []models.IssueKind) (int64, error) {
	n, err := s.resolveIssues(s.db.WithContext(ctx), canonicalID, kinds)
	return n, syncerr.NewStoreError("resolve issues", err)
}

func (s *Store) resolveIssues(tx *gorm.DB, canonicalID string, kinds []models.IssueKind) (int64, error) {
	q := tx.Model(&ReconciliationIssue{}).Where("canonical_id = ? AND resolved = ?", canonicalID, false)
	if len(kinds) > 0 {
		q = q.Where("kind IN ?", kinds)
	}
	res := q.Updates(map[string]any{
		"resolved":    true,
		"resolved_at": s.now(),
		"resolved_by": ResolvedByCycle,
	})
	return res.RowsAffected, res.Error
}

// ResolveIssue closes a single issue on operator request.
func (s *Store) ResolveIssue(ctx context.Context, issueID string) (*ReconciliationIssue, error) {
	var issue ReconciliationIssue
	err := s.db.WithContext(ctx).Where("issue_id = ?", issueID).Take(&issue).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &syncerr.NotFoundError{Resource: "issue", ID: issueID}
	}
	if err != nil {
		return nil, syncerr.NewStoreError("get issue", err)
	}
	if issue.Resolved {
		return &issue, nil
	}

	at := s.now()
	err = s.db.WithContext(ctx).Model(&issue).Updates(map[string]any{
		"resolved":    true,
		"resolved_at": at,
		"resolved_by": ResolvedByOperator,
	}).Error
	if err != nil {
		return nil, syncerr.NewStoreError("resolve issue", err)
	}
	issue.Resolved = true
	issue.ResolvedAt = &at
	issue.ResolvedBy = ResolvedByOperator
	return &issue, nil
}

// BeginCycle creates a running cycle record.
func (s *Store) BeginCycle(ctx context.Context, dryRun bool) (*SyncCycle, error) {
	cycle := &SyncCycle{
		CycleID:   uuid.NewString(),
		StartedAt: s.now(),
		Status:    models.CycleRunning,
		DryRun:    dryRun,
	}
	if err := s.db.WithContext(ctx).Create(cycle).Error; err != nil {
		return nil, syncerr.NewStoreError("begin cycle", err)
	}
	return cycle, nil
}

// CompleteCycle marks a cycle terminal and returns the final record.
func (s *Store) CompleteCycle(ctx context.Context, cycleID string, status models.CycleStatus, errMsg string, incomplete []string) (*SyncCycle, error) {
	err := s.db.WithContext(ctx).Model(&SyncCycle{}).
		Where("cycle_id = ?", cycleID).
		Updates(map[string]any{
			"status":           status,
			"completed_at":     s.now(),
			"error":            errMsg,
			"incomplete_types": strings.Join(incomplete, ","),
		}).Error
	if err != nil {
		return nil, syncerr.NewStoreError("complete cycle", err)
	}
	return s.GetCycle(ctx, cycleID)
}

// GetCycle loads a cycle record.
func (s *Store) GetCycle(ctx context.Context, cycleID string) (*SyncCycle, error) {
	var cycle SyncCycle
	err := s.db.WithContext(ctx).Where("cycle_id = ?", cycleID).Take(&cycle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &syncerr.NotFoundError{Resource: "cycle", ID: cycleID}
	}
	if err != nil {
		return nil, syncerr.NewStoreError("get cycle", err)
	}
	return &cycle, nil
}

// ListCycles returns the most recent cycles first.
func (s *Store) ListCycles(ctx context.Context, limit int) ([]SyncCycle, error) {
	if limit <= 0 {
		limit = 20
	}
	var cycles []SyncCycle
	err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&cycles).Error
	if err != nil {
		return nil, syncerr.NewStoreError("list cycles", err)
	}
	return cycles, nil
}

// LatestCycle returns the most recent cycle, or a NotFoundError.
func (s *Store) LatestCycle(ctx context.Context) (*SyncCycle, error) {
	cycles, err := s.ListCycles(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(cycles) == 0 {
		return nil, &syncerr.NotFoundError{Resource: "cycle", ID: "latest"}
	}
	return &cycles[0], nil
}

// EntityCommit is everything a cycle learned about one canonical entity.
type EntityCommit struct {
	// Link is written when non-nil.
	Link *SyncLink
	// Issues are raised or refreshed.
	Issues []ReconciliationIssue
	// Resolve closes open issues of these kinds for ResolveFor.
	Resolve    []models.IssueKind
	ResolveFor string
	// Changes are appended to the change log.
	Changes []SyncChange
	// Operations is the number of remote writes that succeeded.
	Operations int
	// Failed counts the entity as failed.
	Failed bool
}

// CommitEntity persists an entity outcome and bumps the cycle counters in one
// transaction, so a link and the summary that counts it persist together.
// It returns the number of new issues.
func (s *Store) CommitEntity(ctx context.Context, cycleID string, c EntityCommit) (int, error) {
	raised := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if c.Link != nil {
			if err := upsertLink(tx, c.Link); err != nil {
				return err
			}
		}

		if len(c.Resolve) > 0 && c.ResolveFor != "" {
			if _, err := s.resolveIssues(tx, c.ResolveFor, c.Resolve); err != nil {
				return err
			}
		}

		for i := range c.Issues {
			c.Issues[i].CycleID = cycleID
			created, err := s.recordIssue(tx, &c.Issues[i])
			if err != nil {
				return err
			}
			if created {
				raised++
			}
		}

		if len(c.Changes) > 0 {
			for i := range c.Changes {
				c.Changes[i].CycleID = cycleID
			}
			if err := tx.Create(&c.Changes).Error; err != nil {
				return err
			}
		}

		failed := 0
		if c.Failed {
			failed = 1
		}
		return tx.Model(&SyncCycle{}).Where("cycle_id = ?", cycleID).Updates(map[string]any{
			"entities_processed": gorm.Expr("entities_processed + ?", 1),
			"operations_applied": gorm.Expr("operations_applied + ?", c.Operations),
			"issues_raised":      gorm.Expr("issues_raised + ?", raised),
			"failures":           gorm.Expr("failures + ?", failed),
		}).Error
	})
	if err != nil {
		return 0, syncerr.NewStoreError("commit entity", err)
	}
	return raised, nil
}

// ListChanges returns the change log of a cycle in write order.
func (s *Store) ListChanges(ctx context.Context, cycleID string) ([]SyncChange, error) {
	var changes []SyncChange
	err := s.db.WithContext(ctx).Where("cycle_id = ?", cycleID).Order("id").Find(&changes).Error
	if err != nil {
		return nil, syncerr.NewStoreError("list changes", err)
	}
	return changes, nil
}

// GetCursor returns the incremental fetch cursor, or nil when none is stored.
func (s *Store) GetCursor(ctx context.Context, et models.EntityType, system models.System) (*time.Time, error) {
	var cur SyncCursor
	err := s.db.WithContext(ctx).Where("entity_type = ? AND side = ?", et, system).Take(&cur).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, syncerr.NewStoreError("get cursor", err)
	}
	return &cur.Since, nil
}

// SetCursor stores the incremental fetch cursor.
func (s *Store) SetCursor(ctx context.Context, et models.EntityType, system models.System, since time.Time) error {
	cur := SyncCursor{EntityType: et, System: system, Since: since.UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_type"}, {Name: "side"}},
		DoUpdates: clause.AssignmentColumns([]string{"since"}),
	}).Create(&cur).Error
	return syncerr.NewStoreError("set cursor", err)
}
