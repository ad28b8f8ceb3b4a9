package reconcile

import (
	"sort"
	"time"

	"crm-bridge/core/mapper"
	"crm-bridge/core/models"
	"crm-bridge/core/store"

	"gorm.io/datatypes"
)

// classify decides the actions and issues of one entity.
func (e *Engine) classify(plan *Plan, em *mapper.EntityMap, ep *EntityPlan) {
	link := ep.Link
	if ep.NaturalKey != "" && link.NaturalKey != ep.NaturalKey {
		link.NaturalKey = ep.NaturalKey
		ep.dirty = true
	}

	if len(ep.ambiguous) > 0 {
		e.raiseAmbiguous(ep)
	}

	// A linked record that can no longer be read blocks every other decision.
	blocked := false
	for _, sys := range models.Systems {
		id := link.RemoteID(sys)
		if id == "" {
			continue
		}
		if err, ok := ep.mappingErrs[sys]; ok {
			e.raise(ep, models.IssueMappingError, datatypes.JSONMap{
				"system":    string(sys),
				"remote_id": id,
				"error":     err.Error(),
			})
			blocked = true
			continue
		}
		if ep.Observed[sys] == nil && !plan.Incremental {
			e.raise(ep, models.IssueDeletedRemote, datatypes.JSONMap{
				"system":    string(sys),
				"remote_id": id,
			})
			blocked = true
		}
	}

	evaluated := true
	if !blocked {
		project, crm := link.RemoteID(models.SystemProject), link.RemoteID(models.SystemCRM)
		switch {
		case project != "" && crm != "":
			if link.Fingerprint(models.SystemProject) == "" || link.Fingerprint(models.SystemCRM) == "" {
				evaluated = e.pair(em, ep)
			} else {
				evaluated = e.syncLinked(ep)
			}
		case project != "":
			evaluated = e.oneSided(em, ep, models.SystemProject)
		case crm != "":
			evaluated = e.oneSided(em, ep, models.SystemCRM)
		}
	}

	switch {
	case blocked:
		if !ep.Raised(models.IssueAmbiguousMatch) {
			ep.Resolve = []models.IssueKind{models.IssueAmbiguousMatch}
		}
	case evaluated:
		for _, kind := range models.IssueKinds {
			if !ep.Raised(kind) {
				ep.Resolve = append(ep.Resolve, kind)
			}
		}
	}

	for _, act := range ep.Actions {
		switch act.Type {
		case ActionCreate:
			plan.Summary.Creates++
		case ActionUpdate:
			plan.Summary.Updates++
		}
	}
	plan.Summary.Issues += len(ep.Issues)
	if len(ep.Actions) == 0 && len(ep.Issues) == 0 {
		plan.Summary.Unchanged++
	}
	ep.Canonical = canonical(ep)
}

// canonical builds the system-neutral view of ep from what was fetched.
func canonical(ep *EntityPlan) *models.CanonicalEntity {
	ce := &models.CanonicalEntity{
		EntityType:         ep.EntityType,
		CanonicalID:        ep.CanonicalID,
		SourceFingerprints: map[models.System]models.SourceFingerprint{},
	}
	for _, sys := range models.Systems {
		id := ep.Link.RemoteID(sys)
		if id == "" {
			continue
		}
		sf := models.SourceFingerprint{RemoteID: id}
		if o := ep.Observed[sys]; o != nil {
			sf.Hash = o.Fingerprint
			if ce.Fields == nil {
				ce.Fields = o.Fields
			}
		}
		ce.SourceFingerprints[sys] = sf
	}
	if ce.Fields == nil {
		ce.Fields = ep.Link.Snapshot()
	}
	return ce
}

// syncLinked handles an entity linked on both sides with recorded fingerprints.
func (e *Engine) syncLinked(ep *EntityPlan) bool {
	link := ep.Link
	p, c := ep.Observed[models.SystemProject], ep.Observed[models.SystemCRM]
	if p == nil && c == nil {
		return false
	}

	changed := func(sys models.System, o *Observation) bool {
		return o != nil && o.Fingerprint != link.Fingerprint(sys)
	}
	current := func(o *Observation) models.Fields {
		if o != nil {
			return o.Fields
		}
		return link.Snapshot()
	}

	pChanged, cChanged := changed(models.SystemProject, p), changed(models.SystemCRM, c)
	switch {
	case pChanged && cChanged:
		if p.Fingerprint == c.Fingerprint {
			e.settle(ep, p, c)
			return true
		}
		snapshot := link.Snapshot()
		e.raise(ep, models.IssueDivergentUpdate, datatypes.JSONMap{
			"fields":  mapper.ChangedNames(p.Fields, c.Fields),
			"project": fieldMap(mapper.Diff(snapshot, p.Fields)),
			"crm":     fieldMap(mapper.Diff(snapshot, c.Fields)),
		})
	case pChanged:
		e.propagate(ep, models.SystemProject, p, current(c), c != nil, "changed in project")
	case cChanged:
		e.propagate(ep, models.SystemCRM, c, current(p), p != nil, "changed in crm")
	}
	return true
}

// pair handles an entity whose sides were linked by natural key and have no
// sync history. Differing values are settled by the initial authority.
func (e *Engine) pair(em *mapper.EntityMap, ep *EntityPlan) bool {
	link := ep.Link
	p, c := ep.Observed[models.SystemProject], ep.Observed[models.SystemCRM]
	if p == nil || c == nil {
		return false
	}
	for _, sys := range models.Systems {
		if link.PendingAt(sys) != nil {
			link.SetPending(sys, nil)
			ep.dirty = true
		}
	}

	if p.Fingerprint == c.Fingerprint {
		e.settle(ep, p, c)
		return true
	}

	switch em.Authority() {
	case mapper.AuthorityProject:
		e.propagate(ep, models.SystemProject, p, c.Fields, true, "initial authority project")
	case mapper.AuthorityCRM:
		e.propagate(ep, models.SystemCRM, c, p.Fields, true, "initial authority crm")
	default:
		e.raise(ep, models.IssueDivergentUpdate, datatypes.JSONMap{
			"fields":  mapper.ChangedNames(p.Fields, c.Fields),
			"project": fieldMap(p.Fields),
			"crm":     fieldMap(c.Fields),
			"reason":  "first link with differing values",
		})
	}
	return true
}

// oneSided handles an entity known on src only.
func (e *Engine) oneSided(em *mapper.EntityMap, ep *EntityPlan, src models.System) bool {
	link := ep.Link
	dst := src.Other()
	o := ep.Observed[src]
	if o == nil {
		return false
	}

	if at := link.PendingAt(dst); at != nil {
		e.raise(ep, models.IssueUnconfirmedCreate, datatypes.JSONMap{
			"system":        string(dst),
			"source_id":     o.Record.ID,
			"pending_since": at.UTC().Format(time.RFC3339),
		})
		return true
	}

	if link.Fingerprint(src) != o.Fingerprint {
		link.SetFingerprint(src, o.Fingerprint)
		link.SetSnapshot(o.Fields)
		ep.dirty = true
	}

	if !em.CreateMissingIn(dst) {
		e.raise(ep, models.IssueMissingCounterpart, datatypes.JSONMap{
			"system":     string(src),
			"remote_id":  o.Record.ID,
			"missing_in": string(dst),
		})
		return true
	}

	fields, rejected := e.representable(ep, dst, e.writable(dst, ep.EntityType, o.Fields))
	synced, syncedFP := syncedView(o, nil, rejected)
	if syncedFP != o.Fingerprint {
		link.SetFingerprint(src, syncedFP)
		link.SetSnapshot(synced)
		ep.dirty = true
	}
	if e.rejectsRequired(ep.EntityType, rejected) {
		return true
	}
	ep.Actions = append(ep.Actions, Action{
		Type:              ActionCreate,
		Source:            src,
		Target:            dst,
		Fields:            fields,
		Expected:          fields,
		Reason:            "missing in " + string(dst),
		sourceFields:      synced,
		sourceFingerprint: syncedFP,
	})
	return true
}

// propagate plans an update of dst with the fields of src that differ from dstFields.
// observedDst is false when dstFields is the last snapshot rather than a fetch.
func (e *Engine) propagate(ep *EntityPlan, src models.System, o *Observation, dstFields models.Fields, observedDst bool, reason string) {
	link := ep.Link
	dst := src.Other()
	diff, rejected := e.representable(ep, dst, e.writable(dst, ep.EntityType, mapper.Diff(dstFields, o.Fields)))
	synced, syncedFP := syncedView(o, dstFields, rejected)

	expected := dstFields.Clone()
	for k, v := range diff {
		if v == nil {
			delete(expected, k)
		} else {
			expected[k] = v
		}
	}

	if len(diff) == 0 {
		link.SetFingerprint(src, syncedFP)
		if observedDst {
			link.SetFingerprint(dst, mapper.Fingerprint(dstFields))
		}
		link.SetSnapshot(synced)
		ep.dirty = true
		return
	}

	previous := models.Fields{}
	for k := range diff {
		previous[k] = dstFields[k]
	}
	ep.Actions = append(ep.Actions, Action{
		Type:              ActionUpdate,
		Source:            src,
		Target:            dst,
		RemoteID:          link.RemoteID(dst),
		Fields:            diff,
		Previous:          previous,
		Expected:          expected,
		Reason:            reason,
		sourceFields:      synced,
		sourceFingerprint: syncedFP,
	})
}

// representable drops the fields dst cannot hold and raises one mapping_error
// naming them. The target keeps its current value for a dropped field.
func (e *Engine) representable(ep *EntityPlan, dst models.System, fields models.Fields) (models.Fields, map[string]error) {
	ok, rejected := e.mapper.Representable(dst, ep.EntityType, fields)
	if len(rejected) == 0 {
		return ok, nil
	}
	names := make([]string, 0, len(rejected))
	reasons := make(map[string]any, len(rejected))
	for name, err := range rejected {
		names = append(names, name)
		reasons[name] = err.Error()
	}
	sort.Strings(names)
	e.raise(ep, models.IssueMappingError, datatypes.JSONMap{
		"system": string(dst),
		"fields": names,
		"errors": reasons,
	})
	return ok, rejected
}

// rejectsRequired reports whether a required field is among rejected.
func (e *Engine) rejectsRequired(et models.EntityType, rejected map[string]error) bool {
	em, err := e.mapper.Entity(et)
	if err != nil {
		return false
	}
	for name := range rejected {
		if f, ok := em.Field(name); ok && f.Required {
			return true
		}
	}
	return false
}

// syncedView is the source state the link records once the representable
// fields are written: rejected fields take the target's value. Recording it
// instead of the observed state keeps the source reported as changed, so the
// mapping_error stays open until the value becomes representable.
func syncedView(o *Observation, dstFields models.Fields, rejected map[string]error) (models.Fields, string) {
	if len(rejected) == 0 {
		return o.Fields, o.Fingerprint
	}
	synced := o.Fields.Clone()
	for name := range rejected {
		if v, ok := dstFields[name]; ok {
			synced[name] = v
		} else {
			delete(synced, name)
		}
	}
	return synced, mapper.Fingerprint(synced)
}

// settle records both sides as in sync without a write.
func (e *Engine) settle(ep *EntityPlan, p, c *Observation) {
	link := ep.Link
	link.SetFingerprint(models.SystemProject, p.Fingerprint)
	link.SetFingerprint(models.SystemCRM, c.Fingerprint)
	link.SetSnapshot(p.Fields)
	ep.dirty = true
}

func (e *Engine) raiseAmbiguous(ep *EntityPlan) {
	details := datatypes.JSONMap{"natural_key": ep.NaturalKey}
	for _, sys := range models.Systems {
		extra := ep.ambiguous[sys]
		if len(extra) == 0 {
			continue
		}
		sort.Strings(extra)
		details[string(sys)] = map[string]any{
			"linked":     ep.Link.RemoteID(sys),
			"candidates": extra,
		}
	}
	e.raise(ep, models.IssueAmbiguousMatch, details)
}

func (e *Engine) raise(ep *EntityPlan, kind models.IssueKind, details datatypes.JSONMap) {
	ep.Issues = append(ep.Issues, store.ReconciliationIssue{
		CanonicalID: ep.CanonicalID,
		EntityType:  ep.EntityType,
		Kind:        kind,
		Details:     details,
	})
	// An issue on an unseen entity needs its link to exist.
	if !ep.stored {
		ep.dirty = true
	}
}

// writable drops fields that are read-only on target.
func (e *Engine) writable(target models.System, et models.EntityType, fields models.Fields) models.Fields {
	out := make(models.Fields, len(fields))
	for k, v := range fields {
		if e.mapper.Writable(target, et, k) {
			out[k] = v
		}
	}
	return out
}

func fieldMap(f models.Fields) map[string]any {
	return map[string]any(f)
}
