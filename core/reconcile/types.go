package reconcile

import (
	"time"

	"crm-bridge/core/models"
	"crm-bridge/core/store"
)

// ActionType is a remote write the engine intends to make.
type ActionType string

const (
	// ActionCreate creates the entity on the target system.
	ActionCreate ActionType = "create"
	// ActionUpdate writes changed fields to the target system.
	ActionUpdate ActionType = "update"
)

// Observation is a fetched record after mapping.
type Observation struct {
	Record      models.RawRecord
	Fields      models.Fields
	Fingerprint string
}

// Action is one planned remote write.
type Action struct {
	Type   ActionType    `json:"type"`
	Source models.System `json:"source"`
	Target models.System `json:"target"`
	// RemoteID is the record to update; empty for creates.
	RemoteID string `json:"remote_id,omitempty"`
	// Fields are the canonical fields to write.
	Fields models.Fields `json:"fields"`
	// Previous holds the target's current values of Fields, for the change log.
	Previous models.Fields `json:"previous,omitempty"`
	// Expected is the canonical state of the target once the write lands.
	Expected models.Fields `json:"-"`
	Reason   string        `json:"reason"`

	// source state the write was derived from
	sourceFields      models.Fields
	sourceFingerprint string
}

// EntityPlan is everything the engine decided for one canonical entity.
type EntityPlan struct {
	CanonicalID string            `json:"canonical_id"`
	EntityType  models.EntityType `json:"entity_type"`
	NaturalKey  string            `json:"natural_key"`

	// Link is the stored link, or a new one for entities first seen this cycle.
	Link *store.SyncLink `json:"-"`
	// Observed holds the mapped record per side, when fetched.
	Observed map[models.System]*Observation `json:"-"`

	// Canonical is the entity as observed this cycle, preferring the project side.
	Canonical *models.CanonicalEntity `json:"canonical,omitempty"`

	Actions []Action                    `json:"actions,omitempty"`
	Issues  []store.ReconciliationIssue `json:"issues,omitempty"`
	// Resolve lists issue kinds closed when the entity ends consistent.
	Resolve []models.IssueKind `json:"-"`

	stored      bool
	dirty       bool
	mappingErrs map[models.System]error
	ambiguous   map[models.System][]string
}

// Raised reports whether the plan raises an issue of kind.
func (p *EntityPlan) Raised(kind models.IssueKind) bool {
	for _, is := range p.Issues {
		if is.Kind == kind {
			return true
		}
	}
	return false
}

// PlanSummary counts the decisions in a plan.
type PlanSummary struct {
	Entities  int `json:"entities"`
	Unchanged int `json:"unchanged"`
	Creates   int `json:"creates"`
	Updates   int `json:"updates"`
	Issues    int `json:"issues"`
	// Skipped counts unlinked records that could not be mapped.
	Skipped int `json:"skipped"`
}

// Plan is the outcome of comparing both systems for one entity type.
type Plan struct {
	EntityType models.EntityType `json:"entity_type"`
	// Incremental is set when records were fetched from a cursor.
	Incremental bool          `json:"incremental"`
	FetchedAt   time.Time     `json:"fetched_at"`
	Entities    []*EntityPlan `json:"entities"`
	Summary     PlanSummary   `json:"summary"`
}

// Result counts what Apply did.
type Result struct {
	EntityType models.EntityType `json:"entity_type"`
	Processed  int               `json:"processed"`
	Operations int               `json:"operations"`
	Issues     int               `json:"issues"`
	Failures   int               `json:"failures"`
	// Complete is false when Apply stopped before every entity was processed.
	Complete bool `json:"complete"`
}

// Options tunes the engine.
type Options struct {
	// Workers bounds concurrent entity processing. Writes for one entity are always sequential.
	Workers int
	// Incremental fetches only records modified since the last cursor.
	Incremental bool
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return 8
	}
	return o.Workers
}
