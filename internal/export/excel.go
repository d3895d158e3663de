// Package export renders point-in-time checklist summaries as xlsx
// workbooks. It consumes the audit service's effective judgments instead of
// re-deriving merge logic.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/rsandoval/gridwatch/internal/domain/audit"
	"github.com/xuri/excelize/v2"
)

// SnapshotSource supplies effective judgments for a device scope.
type SnapshotSource interface {
	Snapshot(ctx context.Context, key audit.ChecklistKey, zone string) ([]audit.ScopeJudgment, error)
}

// IncidentCounter supplies open-incident counts per device.
type IncidentCounter interface {
	OpenCounts(ctx context.Context, centralID string) (map[string]int, error)
}

// Exporter writes checklist workbooks.
type Exporter struct {
	snapshots SnapshotSource
	incidents IncidentCounter
	logger    *slog.Logger
}

// NewExporter creates a new Exporter.
func NewExporter(snapshots SnapshotSource, incidents IncidentCounter, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{snapshots: snapshots, incidents: incidents, logger: logger}
}

const sheetName = "Checklist"

var headings = []string{"Device", "Zone", "Operational", "Quality", "Open Incidents"}

// WriteChecklist renders one checklist's effective judgments to w.
func (e *Exporter) WriteChecklist(ctx context.Context, w io.Writer, key audit.ChecklistKey, zone string) error {
	rows, err := e.snapshots.Snapshot(ctx, key, zone)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	counts, err := e.incidents.OpenCounts(ctx, key.CentralID)
	if err != nil {
		return fmt.Errorf("loading incident counts: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}

	title := fmt.Sprintf("Audit %s, central %s, %s shift", key.Date, key.CentralID, key.Shift)
	if err := f.SetCellValue(sheetName, "A1", title); err != nil {
		return fmt.Errorf("writing title: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A3", &headings); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return fmt.Errorf("computing cell: %w", err)
		}

		quality := ""
		operational := "FAILED"
		if row.Judgment.Operational() {
			operational = "OK"
			if q, ok := row.Judgment.Rating(); ok {
				quality = fmt.Sprintf("%d", int(q))
			}
		}

		values := []any{
			row.Device.Code,
			row.Device.Zone,
			operational,
			quality,
			counts[row.Device.ID],
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "E", 18); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}

	e.logger.Info("checklist exported", "checklist", key.String(), "devices", len(rows))
	return nil
}
