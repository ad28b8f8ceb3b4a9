package models

import (
	"fmt"
	"time"
)

// System identifies one of the two remote systems kept in sync.
type System string

const (
	// SystemProject is the project/task management system.
	SystemProject System = "project"
	// SystemCRM is the customer relationship management system.
	SystemCRM System = "crm"
)

// Systems lists both systems in a stable order.
var Systems = []System{SystemProject, SystemCRM}

// Other returns the counterpart system.
func (s System) Other() System {
	if s == SystemProject {
		return SystemCRM
	}
	return SystemProject
}

// Valid reports whether s is a known system.
func (s System) Valid() bool {
	return s == SystemProject || s == SystemCRM
}

// EntityType is a kind of business record that is synchronized.
type EntityType string

const (
	EntityCompany EntityType = "company"
	EntityContact EntityType = "contact"
	// EntityDeal is a CRM deal, represented as a task in the project system.
	EntityDeal EntityType = "deal"
)

// EntityTypes lists every supported entity type in processing order.
var EntityTypes = []EntityType{EntityCompany, EntityContact, EntityDeal}

// ParseEntityType validates a user supplied entity type name.
func ParseEntityType(s string) (EntityType, error) {
	for _, et := range EntityTypes {
		if string(et) == s {
			return et, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// RawRecord is a record as returned by a remote system.
type RawRecord struct {
	// ID is the remote identifier.
	ID string `json:"id"`
	// Fields holds remote field names to raw values.
	Fields map[string]any `json:"fields"`
	// CreatedAt orders natural key ties; earliest wins.
	CreatedAt time.Time `json:"created_at"`
}

// Fields maps canonical field names to normalized values.
type Fields map[string]any

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// SourceFingerprint ties a canonical entity to its representation on one system.
type SourceFingerprint struct {
	RemoteID string `json:"remote_id"`
	Hash     string `json:"hash"`
}

// CanonicalEntity is the system-neutral form of a record.
type CanonicalEntity struct {
	EntityType         EntityType                   `json:"entity_type"`
	CanonicalID        string                       `json:"canonical_id"`
	Fields             Fields                       `json:"fields"`
	SourceFingerprints map[System]SourceFingerprint `json:"source_fingerprints"`
}

// IssueKind classifies a reconciliation issue.
type IssueKind string

const (
	// IssueDivergentUpdate means both sides changed a field to different values.
	IssueDivergentUpdate IssueKind = "divergent_update"
	// IssueMissingCounterpart means a record exists on one side only and creation is disabled.
	IssueMissingCounterpart IssueKind = "missing_counterpart"
	// IssueDeletedRemote means a linked record disappeared from its system.
	IssueDeletedRemote IssueKind = "deleted_remote"
	// IssueAmbiguousMatch means several records share one natural key.
	IssueAmbiguousMatch IssueKind = "ambiguous_match"
	// IssueUnconfirmedCreate means a create may have happened but was never observed.
	IssueUnconfirmedCreate IssueKind = "unconfirmed_create"
	// IssueMappingError means a linked record can no longer be mapped, or a
	// value cannot be written to the other side.
	IssueMappingError IssueKind = "mapping_error"
)

// IssueKinds lists every issue kind.
var IssueKinds = []IssueKind{
	IssueDivergentUpdate,
	IssueMissingCounterpart,
	IssueDeletedRemote,
	IssueAmbiguousMatch,
	IssueUnconfirmedCreate,
	IssueMappingError,
}

// CycleStatus is the terminal or running state of a sync cycle.
type CycleStatus string

const (
	CycleRunning   CycleStatus = "running"
	CycleSucceeded CycleStatus = "succeeded"
	CycleFailed    CycleStatus = "failed"
)
