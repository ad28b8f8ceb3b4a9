package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"crm-bridge/core/mapper"
	"crm-bridge/core/models"
	"crm-bridge/core/store"
	"crm-bridge/core/syncerr"
	"crm-bridge/core/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Apply executes a plan with a bounded worker pool. Writes for one entity run
// in order on a single worker. Each entity outcome is committed on its own,
// even after ctx is cancelled, so work already done on a remote is recorded.
//
// A store failure stops the pool and is returned. Remote and mapping failures
// only fail the entity they belong to.
func (e *Engine) Apply(ctx context.Context, cycleID string, plan *Plan) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.apply", trace.WithAttributes(
		attribute.String("entity_type", string(plan.EntityType)),
		attribute.String("cycle_id", cycleID),
		attribute.Int("entities", len(plan.Entities))))
	defer span.End()

	res := &Result{EntityType: plan.EntityType}
	if len(plan.Entities) == 0 {
		res.Complete = true
		return res, e.advanceCursor(ctx, plan, res)
	}

	var (
		mu    sync.Mutex
		fatal error
		wg    sync.WaitGroup
	)
	stop := make(chan struct{})
	var stopOnce sync.Once

	jobs := make(chan *EntityPlan)
	workers := min(e.opts.workers(), len(plan.Entities))
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for ep := range jobs {
				out, err := e.applyEntity(ctx, cycleID, ep)
				mu.Lock()
				if err != nil {
					fatal = multierr.Append(fatal, err)
					stopOnce.Do(func() { close(stop) })
				} else {
					res.Processed++
					res.Operations += out.operations
					res.Issues += out.raised
					if out.failed {
						res.Failures++
					}
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, ep := range plan.Entities {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- ep:
		case <-ctx.Done():
			break feed
		case <-stop:
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if fatal != nil {
		span.RecordError(fatal)
		return res, fatal
	}
	res.Complete = res.Processed == len(plan.Entities)
	if !res.Complete {
		return res, ctx.Err()
	}
	return res, e.advanceCursor(ctx, plan, res)
}

// advanceCursor moves the incremental cursors to the fetch time once every
// entity of the type was applied without failure.
func (e *Engine) advanceCursor(ctx context.Context, plan *Plan, res *Result) error {
	if !e.opts.Incremental || res.Failures > 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	for _, sys := range models.Systems {
		if err := e.store.SetCursor(ctx, plan.EntityType, sys, plan.FetchedAt); err != nil {
			return err
		}
	}
	return nil
}

type entityOutcome struct {
	operations int
	raised     int
	failed     bool
}

// applyEntity performs the writes of one entity and commits the outcome.
// Only store errors are returned.
func (e *Engine) applyEntity(ctx context.Context, cycleID string, ep *EntityPlan) (entityOutcome, error) {
	commitCtx := context.WithoutCancel(ctx)
	link := ep.Link
	log := e.logger.With(
		zap.String("cycle_id", cycleID),
		zap.String("entity_type", string(ep.EntityType)),
		zap.String("canonical_id", ep.CanonicalID))

	commit := store.EntityCommit{
		Issues:     ep.Issues,
		Resolve:    ep.Resolve,
		ResolveFor: ep.CanonicalID,
	}
	if ep.dirty {
		commit.Link = link
	}

	var failure error
	for _, act := range ep.Actions {
		if err := ctx.Err(); err != nil {
			failure = err
			break
		}

		fields, err := e.mapper.ToRemote(act.Target, ep.EntityType, act.Fields)
		if err != nil {
			failure = err
			commit.Issues = append(commit.Issues, mappingIssue(ep, act, err))
			commit.Link = link
			break
		}

		wrote := false
		switch act.Type {
		case ActionCreate:
			if err := e.store.MarkPendingCreate(commitCtx, link, act.Target); err != nil {
				return entityOutcome{}, err
			}
			commit.Link = link

			id, err := e.clients[act.Target].Create(ctx, ep.EntityType, fields)
			if err != nil {
				failure = err
				// The create may have landed; keep the marker so it is never repeated.
				if !errors.Is(err, syncerr.ErrRemoteUnavailable) {
					link.SetPending(act.Target, nil)
				}
				break
			}
			link.SetRemoteID(act.Target, id)
			link.SetPending(act.Target, nil)
			commit.Changes = append(commit.Changes, changeRows(ep, act, id, store.OpCreate)...)
			wrote = true

		case ActionUpdate:
			if len(fields) > 0 {
				if err := e.clients[act.Target].Update(ctx, ep.EntityType, act.RemoteID, fields); err != nil {
					failure = err
					break
				}
				commit.Changes = append(commit.Changes, changeRows(ep, act, act.RemoteID, store.OpUpdate)...)
				wrote = true
			}
		}
		if failure != nil {
			break
		}

		link.SetFingerprint(act.Source, act.sourceFingerprint)
		link.SetFingerprint(act.Target, mapper.Fingerprint(act.Expected))
		link.SetSnapshot(act.sourceFields)
		now := e.now()
		link.LastSyncedAt = &now
		commit.Link = link
		if wrote {
			commit.Operations++
		}
	}

	if failure != nil {
		commit.Failed = true
		commit.Resolve = nil
		log.Warn("Entity sync failed", zap.Error(failure))
	} else if len(ep.Actions) > 0 {
		log.Debug("Entity synced", zap.Int("operations", commit.Operations))
	}

	raised, err := e.store.CommitEntity(commitCtx, cycleID, commit)
	if err != nil {
		return entityOutcome{}, fmt.Errorf("commit %s: %w", ep.CanonicalID, err)
	}
	return entityOutcome{operations: commit.Operations, raised: raised, failed: commit.Failed}, nil
}

func mappingIssue(ep *EntityPlan, act Action, err error) store.ReconciliationIssue {
	details := datatypes.JSONMap{
		"system": string(act.Target),
		"error":  err.Error(),
	}
	var merr *syncerr.MappingError
	if errors.As(err, &merr) {
		details["field"] = merr.Field
	}
	return store.ReconciliationIssue{
		CanonicalID: ep.CanonicalID,
		EntityType:  ep.EntityType,
		Kind:        models.IssueMappingError,
		Details:     details,
	}
}

func changeRows(ep *EntityPlan, act Action, remoteID, op string) []store.SyncChange {
	rows := make([]store.SyncChange, 0, len(act.Fields))
	for _, name := range sortedNames(act.Fields) {
		rows = append(rows, store.SyncChange{
			CanonicalID: ep.CanonicalID,
			EntityType:  ep.EntityType,
			System:      act.Target,
			RemoteID:    remoteID,
			Operation:   op,
			Field:       name,
			OldValue:    utils.ToString(act.Previous[name]),
			NewValue:    utils.ToString(act.Fields[name]),
		})
	}
	return rows
}

func sortedNames(f models.Fields) []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
