package sync

import (
	"context"
	"errors"
	"io"

	"crm-bridge/core/models"
	"crm-bridge/core/orchestrator"
	"crm-bridge/core/report"
	"crm-bridge/core/storage"
	"crm-bridge/core/store"
	"crm-bridge/core/syncerr"

	"go.uber.org/zap"
)

// ErrNotTriggered is returned when an asynchronous run request is dropped.
var ErrNotTriggered = errors.New("cycle not triggered, another cycle is running or pending")

// Triggerer queues a cycle. *scheduler.Scheduler implements it.
type Triggerer interface {
	Trigger(opts orchestrator.RunOptions) bool
}

// Service exposes sync cycles, issues and reports to the API and the CLI.
type Service struct {
	orch     *orchestrator.Orchestrator
	trigger  Triggerer
	store    *store.Store
	exporter *report.Exporter
	archive  *storage.Archive
	logger   *zap.Logger
}

// NewService creates a service. trigger and archive may be nil.
func NewService(orch *orchestrator.Orchestrator, trigger Triggerer, st *store.Store, archive *storage.Archive, logger *zap.Logger) *Service {
	var archiver report.Archiver
	if archive != nil {
		archiver = archive
	}
	return &Service{
		orch:     orch,
		trigger:  trigger,
		store:    st,
		exporter: report.NewExporter(st, archiver),
		archive:  archive,
		logger:   logger,
	}
}

// Run starts a cycle. With wait set it runs in the caller and returns the
// report; otherwise the cycle is handed to the scheduler.
func (s *Service) Run(ctx context.Context, opts orchestrator.RunOptions, wait bool) (*orchestrator.Report, error) {
	if wait || s.trigger == nil {
		return s.orch.RunCycle(ctx, opts)
	}
	if s.orch.Running() || !s.trigger.Trigger(opts) {
		return nil, ErrNotTriggered
	}
	return nil, nil
}

// Status returns the orchestrator state.
func (s *Service) Status(ctx context.Context) orchestrator.State {
	return s.orch.CurrentStatus(ctx)
}

// Stop asks the running cycle to stop.
func (s *Service) Stop() bool {
	return s.orch.Stop()
}

// Cycles lists recent cycles.
func (s *Service) Cycles(ctx context.Context, limit int) ([]store.SyncCycle, error) {
	return s.store.ListCycles(ctx, limit)
}

// Cycle returns one cycle.
func (s *Service) Cycle(ctx context.Context, id string) (*store.SyncCycle, error) {
	return s.store.GetCycle(ctx, id)
}

// Changes returns the field change log of a cycle.
func (s *Service) Changes(ctx context.Context, id string) ([]store.SyncChange, error) {
	if _, err := s.store.GetCycle(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListChanges(ctx, id)
}

// WriteChangesReport writes the CSV activity report of a cycle.
func (s *Service) WriteChangesReport(ctx context.Context, id string, w io.Writer) error {
	changes, err := s.Changes(ctx, id)
	if err != nil {
		return err
	}
	return report.WriteChangesCSV(w, changes)
}

// Issues lists issues.
func (s *Service) Issues(ctx context.Context, f store.IssueFilter) ([]store.ReconciliationIssue, error) {
	return s.store.ListIssues(ctx, f)
}

// ExportIssues renders an issue report, optionally archiving it.
func (s *Service) ExportIssues(ctx context.Context, format report.Format, f store.IssueFilter, archive bool) (*report.Export, error) {
	return s.exporter.Issues(ctx, format, f, archive)
}

// ResolveIssue closes an issue. Resolving an unconfirmed create also drops
// the pending marker, so the next cycle may create the record again.
func (s *Service) ResolveIssue(ctx context.Context, id string) (*store.ReconciliationIssue, error) {
	issue, err := s.store.ResolveIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if issue.Kind == models.IssueUnconfirmedCreate {
		sys := models.System(stringDetail(issue, "system"))
		if sys.Valid() {
			if err := s.store.ClearPending(ctx, issue.CanonicalID, sys); err != nil && !errors.Is(err, syncerr.ErrNotFound) {
				return nil, err
			}
		}
	}
	s.logger.Info("Issue resolved",
		zap.String("issue_id", issue.IssueID),
		zap.String("kind", string(issue.Kind)),
		zap.String("canonical_id", issue.CanonicalID))
	return issue, nil
}

// ArchivedReports lists archived reports, newest first.
func (s *Service) ArchivedReports(ctx context.Context) ([]storage.ArchivedObject, error) {
	if s.archive == nil {
		return nil, report.ErrArchiveDisabled
	}
	return s.archive.List(ctx)
}

// ArchivedReport opens an archived report.
func (s *Service) ArchivedReport(ctx context.Context, name string) (io.ReadCloser, error) {
	if s.archive == nil {
		return nil, report.ErrArchiveDisabled
	}
	return s.archive.Get(ctx, name)
}

func stringDetail(issue *store.ReconciliationIssue, key string) string {
	v, _ := issue.Details[key].(string)
	return v
}
