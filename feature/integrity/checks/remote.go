package checks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"crm-bridge/core/models"
	"crm-bridge/core/remote"

	"golang.org/x/sync/errgroup"
)

// FieldSource lists the remote field names a mapping references.
// *mapper.Mapper implements it.
type FieldSource interface {
	EntityTypes() []models.EntityType
	RemoteFields(system models.System, et models.EntityType) []string
}

// RemoteReport is the result of comparing mapped fields with the fields each
// remote exposes.
type RemoteReport struct {
	Matched bool          `json:"matched"`
	Entries []RemoteEntry `json:"entries"`
}

// RemoteEntry describes one system and entity type.
type RemoteEntry struct {
	System        models.System     `json:"system"`
	EntityType    models.EntityType `json:"entity_type"`
	MissingFields []string          `json:"missing_fields"`
	Error         string            `json:"error,omitempty"`
	Status        string            `json:"status"` // "ok", "error", "skipped"
}

// CheckRemote asks each inspector for the fields it exposes and reports the
// mapped fields it lacks. Systems without an inspector are reported as
// skipped. Inspection errors are recorded per entry, not returned.
func CheckRemote(ctx context.Context, src FieldSource, inspectors map[models.System]remote.SchemaInspector) (*RemoteReport, error) {
	if src == nil {
		return nil, fmt.Errorf("field mapping is nil")
	}

	var (
		mu      sync.Mutex
		entries []RemoteEntry
	)
	add := func(e RemoteEntry) {
		mu.Lock()
		entries = append(entries, e)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, sys := range models.Systems {
		inspector := inspectors[sys]
		for _, et := range src.EntityTypes() {
			if inspector == nil {
				add(RemoteEntry{System: sys, EntityType: et, MissingFields: []string{}, Status: "skipped"})
				continue
			}
			g.Go(func() error {
				add(inspect(gctx, inspector, sys, et, src.RemoteFields(sys, et)))
				return nil
			})
		}
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].System != entries[j].System {
			return entries[i].System < entries[j].System
		}
		return entries[i].EntityType < entries[j].EntityType
	})

	report := &RemoteReport{Matched: true, Entries: entries}
	for _, e := range entries {
		if e.Status == "error" {
			report.Matched = false
		}
	}
	return report, nil
}

func inspect(ctx context.Context, inspector remote.SchemaInspector, sys models.System, et models.EntityType, mapped []string) RemoteEntry {
	entry := RemoteEntry{System: sys, EntityType: et, MissingFields: []string{}, Status: "ok"}

	exposed, err := inspector.Fields(ctx, et)
	if err != nil {
		entry.Error = err.Error()
		entry.Status = "error"
		return entry
	}

	// Remote field names compare case-insensitively.
	present := make(map[string]bool, len(exposed))
	for _, f := range exposed {
		present[strings.ToLower(f)] = true
	}
	for _, f := range mapped {
		if !present[strings.ToLower(f)] {
			entry.MissingFields = append(entry.MissingFields, f)
		}
	}
	if len(entry.MissingFields) > 0 {
		entry.Status = "error"
	}
	return entry
}
