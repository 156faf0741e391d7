// Package worker turns month-synced events into summary sheet rows.
package worker

import (
	"context"
	"fmt"
	"sort"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/sheets"
)

// MonthLoader reads a user's months from the remote store.
type MonthLoader interface {
	LoadAllMonths(ctx context.Context, userID string) ([]core.Month, error)
}

// ExportWorker writes one summary row per synced month.
type ExportWorker struct {
	months MonthLoader
	sheets sheets.SummaryWriter
	logger *log.Logger
}

func NewExportWorker(months MonthLoader, w sheets.SummaryWriter, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportWorker{
		months: months,
		sheets: w,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleMonthSynced reloads the user's months and exports the one named by msg.
// A month deleted since the event was published is skipped without error.
func (w *ExportWorker) HandleMonthSynced(ctx context.Context, msg *amqp.MonthSyncedMessage) error {
	months, err := w.months.LoadAllMonths(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("load months for %s: %w", msg.UserID, err)
	}
	chronological(months)

	for i := range months {
		if months[i].ID != msg.MonthID {
			continue
		}
		return w.export(ctx, msg.UserID, months[:i+1])
	}

	w.logger.InfoContext(ctx, "Synced month no longer exists, skipping",
		log.FieldUserID, msg.UserID,
		log.FieldMonthID, msg.MonthID)
	return nil
}

// ExportAll writes a row for every month of the user and returns how many were written.
func (w *ExportWorker) ExportAll(ctx context.Context, userID string) (int, error) {
	months, err := w.months.LoadAllMonths(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load months for %s: %w", userID, err)
	}
	chronological(months)
	for i := range months {
		if err := w.export(ctx, userID, months[:i+1]); err != nil {
			return i, err
		}
	}
	return len(months), nil
}

// export writes the last month of upTo with savings accumulated through it.
func (w *ExportWorker) export(ctx context.Context, userID string, upTo []core.Month) error {
	m := upTo[len(upTo)-1]
	row := sheets.NewSummaryRow(userID, m, core.CalculateAccumulatedSavings(upTo))
	ref, err := w.sheets.WriteSummary(ctx, row)
	if err != nil {
		return fmt.Errorf("write summary for %s/%s: %w", userID, m.ID, err)
	}
	w.logger.InfoContext(ctx, "Exported month summary",
		log.FieldOperation, log.OpExport,
		log.FieldUserID, userID,
		log.FieldMonthID, m.ID,
		log.FieldSheetsRef, ref)
	return nil
}

func chronological(months []core.Month) {
	sort.SliceStable(months, func(i, j int) bool { return months[i].ID < months[j].ID })
}
