package integrity

import (
	"context"
	"errors"
	"fmt"

	"crm-bridge/core/mapper"
	"crm-bridge/core/models"
	"crm-bridge/core/remote"
	"crm-bridge/core/storage"
	"crm-bridge/core/store"
	"crm-bridge/feature/integrity/checks"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotConfigured is returned by checks whose dependency is not wired.
var ErrNotConfigured = errors.New("check is not configured")

// ArchiveReport is the result of the report archive check.
type ArchiveReport struct {
	Bucket string `json:"bucket"`
	Exists bool   `json:"exists"`
	Fixed  bool   `json:"fixed"`
}

// Service handles integrity checks.
type Service struct {
	db         *gorm.DB
	mapping    *mapper.Mapper
	inspectors map[models.System]remote.SchemaInspector
	archive    *storage.Archive
	logger     *zap.Logger
}

// NewService creates a new integrity service. Any dependency may be nil; its
// checks then fail with ErrNotConfigured.
func NewService(db *gorm.DB, m *mapper.Mapper, inspectors map[models.System]remote.SchemaInspector, archive *storage.Archive, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         db,
		mapping:    m,
		inspectors: inspectors,
		archive:    archive,
		logger:     logger,
	}
}

// CheckStore compares the state store schema with the persisted models.
func (s *Service) CheckStore() (*checks.StoreReport, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store: %w", ErrNotConfigured)
	}
	return checks.CheckStore(s.db, store.AllModels())
}

// FixStore migrates the state store, adding missing tables and columns.
func (s *Service) FixStore(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("store: %w", ErrNotConfigured)
	}
	return store.New(s.db).Migrate(ctx)
}

// CheckRemote compares mapped fields with the fields each remote exposes.
func (s *Service) CheckRemote(ctx context.Context) (*checks.RemoteReport, error) {
	if s.mapping == nil {
		return nil, fmt.Errorf("remote: %w", ErrNotConfigured)
	}
	return checks.CheckRemote(ctx, s.mapping, s.inspectors)
}

// CheckMapping reports enum values that cannot be written to one side.
func (s *Service) CheckMapping() (*checks.MappingReport, error) {
	if s.mapping == nil {
		return nil, fmt.Errorf("mapping: %w", ErrNotConfigured)
	}
	return checks.CheckMapping(s.mapping)
}

// CheckArchive checks the report archive bucket and creates it when fix is set.
func (s *Service) CheckArchive(ctx context.Context, fix bool) (*ArchiveReport, error) {
	if s.archive == nil {
		return nil, fmt.Errorf("archive: %w", ErrNotConfigured)
	}
	exists, err := s.archive.Exists(ctx)
	if err != nil {
		return nil, err
	}
	report := &ArchiveReport{Bucket: s.archive.Bucket(), Exists: exists}
	if !exists && fix {
		s.logger.Info("Creating report archive bucket", zap.String("bucket", report.Bucket))
		if err := s.archive.Ensure(ctx); err != nil {
			return report, err
		}
		report.Exists, report.Fixed = true, true
	}
	return report, nil
}
