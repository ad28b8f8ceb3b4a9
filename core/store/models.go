package store

import (
	"strings"
	"time"

	"crm-bridge/core/models"

	"gorm.io/datatypes"
)

// SyncLink records the association between a canonical entity and its remote records.
type SyncLink struct {
	CanonicalID string            `gorm:"column:canonical_id;primaryKey;size:36" json:"canonical_id"`
	EntityType  models.EntityType `gorm:"column:entity_type;size:16;not null;uniqueIndex:idx_link_project,priority:1;uniqueIndex:idx_link_crm,priority:1" json:"entity_type"`
	ProjectID   *string           `gorm:"column:project_id;size:64;uniqueIndex:idx_link_project,priority:2" json:"project_id"`
	CRMID       *string           `gorm:"column:crm_id;size:64;uniqueIndex:idx_link_crm,priority:2" json:"crm_id"`

	ProjectFingerprint string `gorm:"column:project_fingerprint;size:64" json:"project_fingerprint"`
	CRMFingerprint     string `gorm:"column:crm_fingerprint;size:64" json:"crm_fingerprint"`

	// NaturalKey is the normalized natural key at the last sync.
	NaturalKey string `gorm:"column:natural_key;size:255;index" json:"natural_key"`
	// Fields is the canonical snapshot at the last successful sync.
	Fields datatypes.JSONMap `gorm:"column:fields" json:"fields"`

	// ProjectPendingAt and CRMPendingAt mark a create that was started on that
	// side but not yet confirmed.
	ProjectPendingAt *time.Time `gorm:"column:project_pending_at" json:"project_pending_at,omitempty"`
	CRMPendingAt     *time.Time `gorm:"column:crm_pending_at" json:"crm_pending_at,omitempty"`

	LastSyncedAt *time.Time `gorm:"column:last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

// TableName overrides the table name.
func (SyncLink) TableName() string { return "sync_links" }

// RemoteID returns the remote id on a system, or "" when unlinked.
func (l *SyncLink) RemoteID(system models.System) string {
	p := l.ProjectID
	if system == models.SystemCRM {
		p = l.CRMID
	}
	if p == nil {
		return ""
	}
	return *p
}

// SetRemoteID links the entity to a remote record. An empty id unlinks it.
func (l *SyncLink) SetRemoteID(system models.System, id string) {
	var p *string
	if id != "" {
		p = &id
	}
	if system == models.SystemCRM {
		l.CRMID = p
	} else {
		l.ProjectID = p
	}
}

// Fingerprint returns the recorded fingerprint for a system.
func (l *SyncLink) Fingerprint(system models.System) string {
	if system == models.SystemCRM {
		return l.CRMFingerprint
	}
	return l.ProjectFingerprint
}

// SetFingerprint records the fingerprint for a system.
func (l *SyncLink) SetFingerprint(system models.System, fp string) {
	if system == models.SystemCRM {
		l.CRMFingerprint = fp
	} else {
		l.ProjectFingerprint = fp
	}
}

// PendingAt returns the pending create marker for a system.
func (l *SyncLink) PendingAt(system models.System) *time.Time {
	if system == models.SystemCRM {
		return l.CRMPendingAt
	}
	return l.ProjectPendingAt
}

// SetPending sets or clears the pending create marker for a system.
func (l *SyncLink) SetPending(system models.System, at *time.Time) {
	if system == models.SystemCRM {
		l.CRMPendingAt = at
	} else {
		l.ProjectPendingAt = at
	}
}

// Snapshot returns the last synced canonical fields.
func (l *SyncLink) Snapshot() models.Fields {
	out := make(models.Fields, len(l.Fields))
	for k, v := range l.Fields {
		out[k] = v
	}
	return out
}

// SetSnapshot replaces the last synced canonical fields.
func (l *SyncLink) SetSnapshot(f models.Fields) {
	l.Fields = datatypes.JSONMap(f.Clone())
}

// ReconciliationIssue records a condition the engine refused to resolve automatically.
type ReconciliationIssue struct {
	IssueID     string            `gorm:"column:issue_id;primaryKey;size:36" json:"issue_id"`
	CanonicalID string            `gorm:"column:canonical_id;size:36;index:idx_issue_open,priority:1" json:"canonical_id"`
	EntityType  models.EntityType `gorm:"column:entity_type;size:16;index" json:"entity_type"`
	Kind        models.IssueKind  `gorm:"column:kind;size:32;index:idx_issue_open,priority:2" json:"kind"`
	DetectedAt  time.Time         `gorm:"column:detected_at" json:"detected_at"`
	Details     datatypes.JSONMap `gorm:"column:details" json:"details"`
	Resolved    bool              `gorm:"column:resolved;index:idx_issue_open,priority:3" json:"resolved"`
	ResolvedAt  *time.Time        `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	// ResolvedBy is "cycle" or "operator".
	ResolvedBy string `gorm:"column:resolved_by;size:16" json:"resolved_by,omitempty"`
	// CycleID is the cycle that last observed the issue.
	CycleID string `gorm:"column:cycle_id;size:36" json:"cycle_id"`
}

// TableName overrides the table name.
func (ReconciliationIssue) TableName() string { return "reconciliation_issues" }

// Resolution sources.
const (
	ResolvedByCycle    = "cycle"
	ResolvedByOperator = "operator"
)

// SyncCycle is the durable record of one sync cycle.
type SyncCycle struct {
	CycleID           string             `gorm:"column:cycle_id;primaryKey;size:36" json:"cycle_id"`
	StartedAt         time.Time          `gorm:"column:started_at;index" json:"started_at"`
	CompletedAt       *time.Time         `gorm:"column:completed_at" json:"completed_at,omitempty"`
	EntitiesProcessed int                `gorm:"column:entities_processed" json:"entities_processed"`
	OperationsApplied int                `gorm:"column:operations_applied" json:"operations_applied"`
	IssuesRaised      int                `gorm:"column:issues_raised" json:"issues_raised"`
	Failures          int                `gorm:"column:failures" json:"failures"`
	Status            models.CycleStatus `gorm:"column:status;size:16" json:"status"`
	Error             string             `gorm:"column:error;type:text" json:"error,omitempty"`
	// IncompleteTypes lists entity types not finished when the cycle failed, comma separated.
	IncompleteTypes string `gorm:"column:incomplete_types;size:64" json:"incomplete_types,omitempty"`
	DryRun          bool   `gorm:"column:dry_run" json:"dry_run"`
}

// TableName overrides the table name.
func (SyncCycle) TableName() string { return "sync_cycles" }

// Incomplete returns IncompleteTypes as a slice.
func (c *SyncCycle) Incomplete() []string {
	if c.IncompleteTypes == "" {
		return nil
	}
	return strings.Split(c.IncompleteTypes, ",")
}

// Change operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
)

// SyncChange is one field written to a remote during a cycle.
type SyncChange struct {
	ID          uint              `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CycleID     string            `gorm:"column:cycle_id;size:36;index" json:"cycle_id"`
	CanonicalID string            `gorm:"column:canonical_id;size:36;index" json:"canonical_id"`
	EntityType  models.EntityType `gorm:"column:entity_type;size:16" json:"entity_type"`
	// System is the side that was written.
	System    models.System `gorm:"column:side;size:16" json:"system"`
	RemoteID  string        `gorm:"column:remote_id;size:64" json:"remote_id"`
	Operation string        `gorm:"column:operation;size:16" json:"operation"`
	Field     string        `gorm:"column:field;size:128" json:"field"`
	OldValue  string        `gorm:"column:old_value;type:text" json:"old_value"`
	NewValue  string        `gorm:"column:new_value;type:text" json:"new_value"`
	CreatedAt time.Time     `gorm:"column:created_at" json:"created_at"`
}

// TableName overrides the table name.
func (SyncChange) TableName() string { return "sync_changes" }

// SyncCursor is the high-water mark of incremental fetches per entity type and system.
type SyncCursor struct {
	EntityType models.EntityType `gorm:"column:entity_type;primaryKey;size:16"`
	System     models.System     `gorm:"column:side;primaryKey;size:16"`
	Since      time.Time         `gorm:"column:since"`
}

// TableName overrides the table name.
func (SyncCursor) TableName() string { return "sync_cursors" }

// AllModels lists every persisted model, in migration order.
func AllModels() []any {
	return []any{&SyncLink{}, &ReconciliationIssue{}, &SyncCycle{}, &SyncChange{}, &SyncCursor{}}
}
