package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"crm-bridge/core/store"

	"golang.org/x/sync/singleflight"
)

// ErrArchiveDisabled is returned when archiving is requested without object storage.
var ErrArchiveDisabled = errors.New("report archive is not configured")

// IssueSource lists issues. *store.Store implements it.
type IssueSource interface {
	ListIssues(ctx context.Context, f store.IssueFilter) ([]store.ReconciliationIssue, error)
}

// Archiver stores a rendered report. *storage.Archive implements it.
type Archiver interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// Export is a rendered report.
type Export struct {
	Name        string
	ContentType string
	Data        []byte
	Count       int
	// ArchiveKey is the object key when the report was archived.
	ArchiveKey string
}

// Exporter renders issue reports. Concurrent identical requests share one render.
type Exporter struct {
	issues  IssueSource
	archive Archiver
	sf      singleflight.Group
	now     func() time.Time
}

// NewExporter creates an exporter. archive may be nil.
func NewExporter(issues IssueSource, archive Archiver) *Exporter {
	return &Exporter{issues: issues, archive: archive, now: time.Now}
}

// Issues renders the issues matching filter. With archive set the report is
// also uploaded to object storage.
func (e *Exporter) Issues(ctx context.Context, format Format, filter store.IssueFilter, archive bool) (*Export, error) {
	if archive && e.archive == nil {
		return nil, ErrArchiveDisabled
	}

	key := fmt.Sprintf("%s|%s|%s|%t|%d|%t", format, filter.EntityType, filter.Kind, filter.IncludeResolved, filter.Limit, archive)
	v, err, _ := e.sf.Do(key, func() (any, error) {
		// The render is shared, so one caller going away must not fail the others.
		ctx := context.WithoutCancel(ctx)
		issues, err := e.issues.ListIssues(ctx, filter)
		if err != nil {
			return nil, err
		}

		var buf bytes.Buffer
		switch format {
		case FormatXLSX:
			err = WriteIssuesXLSX(&buf, issues)
		default:
			err = WriteIssuesCSV(&buf, issues)
		}
		if err != nil {
			return nil, err
		}

		exp := &Export{
			Name:        fmt.Sprintf("reconciliation_report_%s.%s", e.now().UTC().Format("20060102T150405Z"), format),
			ContentType: format.ContentType(),
			Data:        buf.Bytes(),
			Count:       len(issues),
		}
		if archive {
			k, err := e.archive.Put(ctx, exp.Name, exp.Data, exp.ContentType)
			if err != nil {
				return nil, err
			}
			exp.ArchiveKey = k
		}
		return exp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Export), nil
}
