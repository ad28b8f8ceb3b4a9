package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"crm-bridge/core/mapper"
	"crm-bridge/core/models"
	"crm-bridge/core/remote"
	"crm-bridge/core/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StateStore is the persistence the engine needs. *store.Store implements it.
type StateStore interface {
	ListLinks(ctx context.Context, et models.EntityType) ([]store.SyncLink, error)
	MarkPendingCreate(ctx context.Context, link *store.SyncLink, target models.System) error
	CommitEntity(ctx context.Context, cycleID string, c store.EntityCommit) (int, error)
	GetCursor(ctx context.Context, et models.EntityType, system models.System) (*time.Time, error)
	SetCursor(ctx context.Context, et models.EntityType, system models.System, since time.Time) error
}

// Engine compares both systems for an entity type and applies the resulting plan.
type Engine struct {
	clients map[models.System]remote.Client
	mapper  *mapper.Mapper
	store   StateStore
	logger  *zap.Logger
	opts    Options
	tracer  trace.Tracer
	now     func() time.Time
}

// NewEngine creates an engine over the project and CRM clients.
func NewEngine(project, crm remote.Client, m *mapper.Mapper, st StateStore, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		clients: map[models.System]remote.Client{
			models.SystemProject: project,
			models.SystemCRM:     crm,
		},
		mapper: m,
		store:  st,
		logger: logger,
		opts:   opts,
		tracer: otel.Tracer("crm-bridge/core/reconcile"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile plans and applies one entity type within a cycle.
func (e *Engine) Reconcile(ctx context.Context, cycleID string, et models.EntityType) (*Result, error) {
	plan, err := e.Plan(ctx, et)
	if err != nil {
		return nil, err
	}
	return e.Apply(ctx, cycleID, plan)
}

// Plan fetches both systems and decides what to do for every entity of a type.
// It makes no remote writes and does not touch the store beyond reads.
func (e *Engine) Plan(ctx context.Context, et models.EntityType) (*Plan, error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.plan", trace.WithAttributes(attribute.String("entity_type", string(et))))
	defer span.End()

	em, err := e.mapper.Entity(et)
	if err != nil {
		return nil, err
	}

	plan := &Plan{EntityType: et, FetchedAt: e.now()}

	since := make(map[models.System]*time.Time, len(models.Systems))
	if e.opts.Incremental {
		for _, sys := range models.Systems {
			cur, err := e.store.GetCursor(ctx, et, sys)
			if err != nil {
				return nil, err
			}
			since[sys] = cur
		}
		// The first run seeds the cursors with a full fetch.
		plan.Incremental = since[models.SystemProject] != nil && since[models.SystemCRM] != nil
		if !plan.Incremental {
			since = map[models.System]*time.Time{}
		}
	}

	records, err := e.fetch(ctx, et, since)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	links, err := e.store.ListLinks(ctx, et)
	if err != nil {
		return nil, err
	}

	observed, mappingErrs := e.observe(et, records)
	plan.Entities = e.match(plan, links, observed, mappingErrs)

	for _, ep := range plan.Entities {
		e.classify(plan, em, ep)
	}
	plan.Summary.Entities = len(plan.Entities)

	e.logger.Debug("Plan built",
		zap.String("entity_type", string(et)),
		zap.Bool("incremental", plan.Incremental),
		zap.Int("entities", plan.Summary.Entities),
		zap.Int("creates", plan.Summary.Creates),
		zap.Int("updates", plan.Summary.Updates),
		zap.Int("issues", plan.Summary.Issues),
		zap.Int("skipped", plan.Summary.Skipped))

	return plan, nil
}

// fetch lists both systems concurrently.
func (e *Engine) fetch(ctx context.Context, et models.EntityType, since map[models.System]*time.Time) (map[models.System][]models.RawRecord, error) {
	results := make([][]models.RawRecord, len(models.Systems))
	g, gctx := errgroup.WithContext(ctx)
	for i, sys := range models.Systems {
		g.Go(func() error {
			start := time.Now()
			recs, err := e.clients[sys].Fetch(gctx, et, since[sys])
			if err != nil {
				return fmt.Errorf("fetch %s from %s: %w", et, sys, err)
			}
			e.logger.Debug("Fetched records",
				zap.String("system", string(sys)),
				zap.String("entity_type", string(et)),
				zap.Int("count", len(recs)),
				zap.Duration("duration", time.Since(start)))
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[models.System][]models.RawRecord, len(models.Systems))
	for i, sys := range models.Systems {
		out[sys] = results[i]
	}
	return out, nil
}

// observe maps every fetched record to canonical form.
func (e *Engine) observe(et models.EntityType, records map[models.System][]models.RawRecord) (map[models.System]map[string]*Observation, map[models.System]map[string]error) {
	observed := make(map[models.System]map[string]*Observation, len(records))
	failed := make(map[models.System]map[string]error, len(records))
	for sys, recs := range records {
		observed[sys] = make(map[string]*Observation, len(recs))
		failed[sys] = map[string]error{}
		for _, rec := range recs {
			fields, err := e.mapper.ToCanonical(sys, et, rec)
			if err != nil {
				failed[sys][rec.ID] = err
				continue
			}
			observed[sys][rec.ID] = &Observation{
				Record:      rec,
				Fields:      fields,
				Fingerprint: mapper.Fingerprint(fields),
			}
		}
	}
	return observed, failed
}

// match groups observations into canonical entities: first by stored remote
// id, then by a source id the record carries, then by natural key. Among
// unlinked records sharing a key on one side the earliest created wins; the
// rest are reported as ambiguous.
func (e *Engine) match(plan *Plan, links []store.SyncLink, observed map[models.System]map[string]*Observation, mappingErrs map[models.System]map[string]error) []*EntityPlan {
	et := plan.EntityType
	entities := make([]*EntityPlan, 0, len(links))
	owners := map[string][]*EntityPlan{}
	claimed := map[models.System]map[string]bool{}
	for _, sys := range models.Systems {
		claimed[sys] = map[string]bool{}
	}

	// bySource indexes entities by their record id on idSystem, the system
	// whose ids the other side stores. It is visited first so that every such
	// record has an entity before the other side is matched.
	order := models.Systems
	var idSystem models.System
	if em, err := e.mapper.Entity(et); err == nil {
		if _, sys, ok := em.SourceIDField(); ok {
			idSystem = sys
			order = []models.System{sys, sys.Other()}
		}
	}
	bySource := map[string]*EntityPlan{}
	attach := func(owner *EntityPlan, sys models.System, o *Observation) {
		owner.Link.SetRemoteID(sys, o.Record.ID)
		owner.Observed[sys] = o
		owner.dirty = true
		if sys == idSystem {
			bySource[o.Record.ID] = owner
		}
	}
	addAmbiguous := func(owner *EntityPlan, sys models.System, id string) {
		if owner.ambiguous == nil {
			owner.ambiguous = map[models.System][]string{}
		}
		owner.ambiguous[sys] = append(owner.ambiguous[sys], id)
	}

	for i := range links {
		ep := &EntityPlan{
			CanonicalID: links[i].CanonicalID,
			EntityType:  et,
			NaturalKey:  links[i].NaturalKey,
			Link:        &links[i],
			Observed:    map[models.System]*Observation{},
			stored:      true,
		}
		for _, sys := range models.Systems {
			id := ep.Link.RemoteID(sys)
			if id == "" {
				continue
			}
			claimed[sys][id] = true
			if o := observed[sys][id]; o != nil {
				ep.Observed[sys] = o
				if key := e.mapper.NaturalKey(et, o.Fields); key != "" {
					ep.NaturalKey = key
				}
			}
			if err := mappingErrs[sys][id]; err != nil {
				if ep.mappingErrs == nil {
					ep.mappingErrs = map[models.System]error{}
				}
				ep.mappingErrs[sys] = err
			}
		}
		if ep.NaturalKey != "" {
			owners[ep.NaturalKey] = append(owners[ep.NaturalKey], ep)
		}
		if idSystem != "" {
			if id := ep.Link.RemoteID(idSystem); id != "" {
				bySource[id] = ep
			}
		}
		entities = append(entities, ep)
	}

	for _, sys := range order {
		for id, err := range mappingErrs[sys] {
			if claimed[sys][id] {
				continue
			}
			plan.Summary.Skipped++
			e.logger.Warn("Skipping unmappable record",
				zap.String("system", string(sys)),
				zap.String("entity_type", string(et)),
				zap.String("remote_id", id),
				zap.Error(err))
		}

		unclaimed := make([]*Observation, 0)
		for id, o := range observed[sys] {
			if !claimed[sys][id] {
				unclaimed = append(unclaimed, o)
			}
		}
		sort.Slice(unclaimed, func(i, j int) bool {
			a, b := unclaimed[i].Record, unclaimed[j].Record
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		})

		for _, o := range unclaimed {
			if idSystem != "" && sys != idSystem {
				if ref, _ := e.mapper.SourceKey(et, o.Fields); ref != "" {
					if owner := bySource[ref]; owner != nil {
						if owner.Link.RemoteID(sys) == "" {
							attach(owner, sys, o)
						} else {
							addAmbiguous(owner, sys, o.Record.ID)
						}
						continue
					}
				}
			}

			key := e.mapper.NaturalKey(et, o.Fields)
			if key != "" {
				if owner := firstWithout(owners[key], sys); owner != nil {
					attach(owner, sys, o)
					continue
				}
				if cands := owners[key]; len(cands) > 0 {
					addAmbiguous(cands[0], sys, o.Record.ID)
					continue
				}
			}

			ep := e.newEntity(et, key)
			attach(ep, sys, o)
			if key != "" {
				owners[key] = append(owners[key], ep)
			}
			entities = append(entities, ep)
		}
	}
	return entities
}

func (e *Engine) newEntity(et models.EntityType, key string) *EntityPlan {
	id := uuid.NewString()
	return &EntityPlan{
		CanonicalID: id,
		EntityType:  et,
		NaturalKey:  key,
		Link:        &store.SyncLink{CanonicalID: id, EntityType: et, NaturalKey: key},
		Observed:    map[models.System]*Observation{},
		dirty:       true,
	}
}

// firstWithout returns the first candidate not yet linked on sys.
func firstWithout(cands []*EntityPlan, sys models.System) *EntityPlan {
	for _, ep := range cands {
		if ep.Link.RemoteID(sys) == "" {
			return ep
		}
	}
	return nil
}
