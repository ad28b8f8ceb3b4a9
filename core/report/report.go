package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"crm-bridge/core/store"

	"github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Content types of the export formats.
const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ParseFormat validates a format name. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return ContentTypeXLSX
	}
	return ContentTypeCSV
}

var issueHeaders = []string{"ID", "Created At", "Source", "Entity Type", "Entity ID", "Issue Type", "Detail"}

var changeHeaders = []string{"Cycle", "Changed At", "Entity Type", "Entity ID", "System", "Remote ID", "Operation", "Field", "Old Value", "New Value"}

func issueRow(is store.ReconciliationIssue) []string {
	source, _ := is.Details["system"].(string)
	detail, err := json.Marshal(is.Details)
	if err != nil {
		detail = []byte(fmt.Sprintf("%v", is.Details))
	}
	return []string{
		is.IssueID,
		is.DetectedAt.UTC().Format(time.RFC3339),
		source,
		string(is.EntityType),
		is.CanonicalID,
		string(is.Kind),
		string(detail),
	}
}

func changeRow(c store.SyncChange) []string {
	return []string{
		c.CycleID,
		c.CreatedAt.UTC().Format(time.RFC3339),
		string(c.EntityType),
		c.CanonicalID,
		string(c.System),
		c.RemoteID,
		c.Operation,
		c.Field,
		c.OldValue,
		c.NewValue,
	}
}

// WriteIssuesCSV writes issues as a CSV report.
func WriteIssuesCSV(w io.Writer, issues []store.ReconciliationIssue) error {
	rows := make([][]string, 0, len(issues))
	for _, is := range issues {
		rows = append(rows, issueRow(is))
	}
	return writeCSV(w, issueHeaders, rows)
}

// WriteChangesCSV writes the change log of a cycle as a CSV activity report.
func WriteChangesCSV(w io.Writer, changes []store.SyncChange) error {
	rows := make([][]string, 0, len(changes))
	for _, c := range changes {
		rows = append(rows, changeRow(c))
	}
	return writeCSV(w, changeHeaders, rows)
}

func writeCSV(w io.Writer, headers []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// WriteIssuesXLSX writes issues as a single-sheet workbook.
func WriteIssuesXLSX(w io.Writer, issues []store.ReconciliationIssue) error {
	const sheet = "Issues"

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	header := make([]any, len(issueHeaders))
	for i, h := range issueHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, is := range issues {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := issueRow(is)
		row := make([]any, len(values))
		for j, v := range values {
			row[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "A", "F", 22); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "G", "G", 80); err != nil {
		return err
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}
