package local

import (
	"context"
	"fmt"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/reconcile"
	"budget/internal/store"
)

// Engine implements reconcile.Syncer over a BlobStore. Every call reads
// and writes the whole document.
type Engine struct {
	blobs  *BlobStore
	logger *log.Logger
}

var _ reconcile.Syncer = (*Engine)(nil)

func NewEngine(blobs *BlobStore, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Discard()
	}
	return &Engine{blobs: blobs, logger: logger.WithComponent(log.ComponentStorage)}
}

func (e *Engine) LoadAllMonths(ctx context.Context, userID string) ([]core.Month, error) {
	doc, err := e.blobs.Read(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", reconcile.ErrLoad, err)
	}
	months := make([]core.Month, len(doc.Months))
	for i, m := range doc.Months {
		months[i] = m.Clone()
		if months[i].Expenses == nil {
			months[i].Expenses = []core.Expense{}
		}
	}
	core.SortMonths(months)
	return months, nil
}

// SaveAllMonths replaces the document with months. Invalid months are
// reported and left as they were.
func (e *Engine) SaveAllMonths(ctx context.Context, userID string, months []core.Month) reconcile.SaveReport {
	var report reconcile.SaveReport
	err := e.blobs.Update(ctx, userID, func(doc *Document) error {
		byID := indexMonths(doc.Months)
		for _, m := range months {
			if err := m.Validate(); err != nil {
				report.Failed = failed(report.Failed, m.ID, fmt.Errorf("%w: %w", reconcile.ErrInvalidMonth, err))
				continue
			}
			byID[m.ID] = m.Clone()
			report.Saved = append(report.Saved, m.ID)
		}
		doc.Months = flatten(byID)
		return nil
	})
	if err != nil {
		for _, id := range report.Saved {
			report.Failed = failed(report.Failed, id, err)
		}
		report.Saved = nil
		e.logger.ErrorContext(ctx, "Blob write failed",
			log.FieldOperation, log.OpSaveAll, log.FieldUserID, userID, log.FieldError, err)
	}
	return report
}

func (e *Engine) SaveOneMonth(ctx context.Context, userID string, m core.Month) (reconcile.SyncResult, error) {
	if err := m.Validate(); err != nil {
		return reconcile.SyncResult{}, fmt.Errorf("%w: %w", reconcile.ErrInvalidMonth, err)
	}
	var res reconcile.SyncResult
	err := e.blobs.Update(ctx, userID, func(doc *Document) error {
		byID := indexMonths(doc.Months)
		if prev, ok := byID[m.ID]; ok {
			plan := reconcile.Diff(expenseIDs(prev), 0, m.Expenses)
			res.Deleted = len(plan.Delete)
		}
		byID[m.ID] = m.Clone()
		res.Upserted = len(m.Expenses)
		doc.Months = flatten(byID)
		return nil
	})
	if err != nil {
		return reconcile.SyncResult{}, fmt.Errorf("%w %s: %w", reconcile.ErrMonthUpsert, m.ID, err)
	}
	return res, nil
}

func (e *Engine) DeleteMonth(ctx context.Context, userID, monthID string) error {
	return e.blobs.Update(ctx, userID, func(doc *Document) error {
		byID := indexMonths(doc.Months)
		if _, ok := byID[monthID]; !ok {
			return fmt.Errorf("month %s: %w", monthID, store.ErrNotFound)
		}
		delete(byID, monthID)
		doc.Months = flatten(byID)
		return nil
	})
}

func indexMonths(months []core.Month) map[string]core.Month {
	out := make(map[string]core.Month, len(months))
	for _, m := range months {
		out[m.ID] = m
	}
	return out
}

func flatten(byID map[string]core.Month) []core.Month {
	out := make([]core.Month, 0, len(byID))
	for _, m := range byID {
		out = append(out, m)
	}
	core.SortMonths(out)
	return out
}

func expenseIDs(m core.Month) []string {
	ids := make([]string, len(m.Expenses))
	for i, x := range m.Expenses {
		ids[i] = x.ID
	}
	return ids
}

func failed(m map[string]error, id string, err error) map[string]error {
	if m == nil {
		m = make(map[string]error)
	}
	m[id] = err
	return m
}
