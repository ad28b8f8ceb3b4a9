package config

import (
	"fmt"
	"strings"
	"time"

	"crm-bridge/core/models"
	"crm-bridge/core/orchestrator"
	"crm-bridge/core/reconcile"
)

// Sync configures cycles and their schedule.
type Sync struct {
	// Interval between scheduled cycles. Zero disables the schedule.
	Interval time.Duration `mapstructure:"interval" default:"15m"`
	// CycleTimeout fails a cycle that runs longer. Zero disables it.
	CycleTimeout time.Duration `mapstructure:"cycle_timeout" default:"30m"`
	// EntityTypes lists the synchronized entity types in order.
	EntityTypes []string `mapstructure:"entity_types" default:"company,contact,deal"`
	// EntityConcurrency bounds how many entity types run at once.
	EntityConcurrency int `mapstructure:"entity_concurrency" default:"1"`
	// Workers bounds concurrent entities inside one type.
	Workers int `mapstructure:"workers" default:"8"`
	// Incremental fetches only records modified since the last complete cycle.
	Incremental bool `mapstructure:"incremental" default:"false"`
	// MappingFile is the field map, loaded once at start.
	MappingFile string `mapstructure:"mapping_file" default:"config/mapping.yaml"`
	// DryRun makes scheduled cycles plan without writing.
	DryRun bool `mapstructure:"dry_run" default:"false"`
}

// Types parses EntityTypes.
func (s Sync) Types() ([]models.EntityType, error) {
	var out []models.EntityType
	for _, name := range s.EntityTypes {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		et, err := models.ParseEntityType(name)
		if err != nil {
			return nil, fmt.Errorf("sync.entity_types: %w", err)
		}
		out = append(out, et)
	}
	return out, nil
}

// Orchestrator returns the orchestrator settings.
func (s Sync) Orchestrator() (orchestrator.Config, error) {
	types, err := s.Types()
	if err != nil {
		return orchestrator.Config{}, err
	}
	return orchestrator.Config{
		EntityTypes:  types,
		Concurrency:  s.EntityConcurrency,
		CycleTimeout: s.CycleTimeout,
	}, nil
}

// Engine returns the reconciliation engine options.
func (s Sync) Engine() reconcile.Options {
	return reconcile.Options{Workers: s.Workers, Incremental: s.Incremental}
}
