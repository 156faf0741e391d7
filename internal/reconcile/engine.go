package reconcile

import (
	"context"
	"fmt"
	"time"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/store"
)

// Engine implements Syncer against a RemoteStore.
type Engine struct {
	remote      store.RemoteStore
	full        Strategy
	incremental Strategy
	logger      *log.Logger
}

var _ Syncer = (*Engine)(nil)

// NewEngine builds an engine whose full save uses full. Incremental saves
// always diff. A nil full strategy defaults to BulkRebuild.
func NewEngine(remote store.RemoteStore, full Strategy, logger *log.Logger) *Engine {
	if full == nil {
		full = BulkRebuild{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Engine{
		remote:      remote,
		full:        full,
		incremental: DiffUpsert{},
		logger:      logger.WithComponent(log.ComponentReconcile),
	}
}

// FullStrategy returns the strategy used by SaveAllMonths.
func (e *Engine) FullStrategy() Strategy { return e.full }

// LoadAllMonths reads every month of userID with its expenses. Any read
// failure aborts the load; no partial result is returned.
func (e *Engine) LoadAllMonths(ctx context.Context, userID string) ([]core.Month, error) {
	start := time.Now()

	rows, err := e.remote.SelectMonths(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: select months: %w", ErrLoad, err)
	}
	if len(rows) == 0 {
		return []core.Month{}, nil
	}

	rowIDs := make([]int64, len(rows))
	for i, r := range rows {
		rowIDs[i] = r.RowID
	}
	expenses, err := e.remote.SelectExpensesByMonthRowIDs(ctx, userID, rowIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: select expenses: %w", ErrLoad, err)
	}

	byRow := make(map[int64][]core.Expense, len(rows))
	for _, x := range expenses {
		byRow[x.MonthRowID] = append(byRow[x.MonthRowID], x.Expense())
	}

	months := make([]core.Month, 0, len(rows))
	for _, r := range rows {
		m := core.Month{
			ID:       r.MonthID,
			Label:    r.Label,
			Salary1:  r.Salary1,
			Salary2:  r.Salary2,
			Closed:   r.Closed,
			Expenses: byRow[r.RowID],
		}
		if m.Expenses == nil {
			m.Expenses = []core.Expense{}
		}
		months = append(months, m)
	}
	core.SortMonths(months)

	e.logger.DebugContext(ctx, "Loaded months",
		log.FieldOperation, log.OpLoad,
		log.FieldUserID, userID,
		"months", len(months),
		log.FieldExpenses, len(expenses),
		log.FieldDuration, time.Since(start).Milliseconds())
	return months, nil
}

// SaveAllMonths writes every month with the full strategy. A month whose
// upsert or expense rebuild fails is recorded in the report and skipped;
// iteration continues.
func (e *Engine) SaveAllMonths(ctx context.Context, userID string, months []core.Month) SaveReport {
	var report SaveReport
	for _, m := range months {
		if err := ctx.Err(); err != nil {
			report.fail(m.ID, err)
			continue
		}
		fields := log.NewFields().WithOperation(log.OpSaveAll).WithMonth(userID, m.ID).With(log.FieldStrategy, e.full.Name())

		if err := m.Validate(); err != nil {
			err = fmt.Errorf("%w: %w", ErrInvalidMonth, err)
			e.logger.WarnContext(ctx, "Skipping invalid month", fields.WithError(err).ToSlice()...)
			report.fail(m.ID, err)
			continue
		}
		rowID, err := e.remote.UpsertMonth(ctx, store.MonthRowFrom(userID, m))
		if err != nil {
			err = fmt.Errorf("%w %s: %w", ErrMonthUpsert, m.ID, err)
			e.logger.ErrorContext(ctx, "Month upsert failed", fields.WithError(err).ToSlice()...)
			report.fail(m.ID, err)
			continue
		}
		if _, err := e.full.Apply(ctx, e.remote, userID, rowID, m.Expenses); err != nil {
			e.logger.ErrorContext(ctx, "Expense rebuild failed", fields.With(log.FieldRowID, rowID).WithError(err).ToSlice()...)
			report.fail(m.ID, err)
			continue
		}
		report.Saved = append(report.Saved, m.ID)
	}

	e.logger.InfoContext(ctx, "Full save finished",
		log.FieldOperation, log.OpSaveAll,
		log.FieldUserID, userID,
		log.FieldStrategy, e.full.Name(),
		"saved", len(report.Saved),
		"failed", len(report.Failed))
	return report
}

// SaveOneMonth upserts the month row and diffs its expenses. The call fails
// only when validation or the month upsert fails; expense failures are logged
// and reported in SyncResult.ExpenseErr.
func (e *Engine) SaveOneMonth(ctx context.Context, userID string, m core.Month) (SyncResult, error) {
	if err := m.Validate(); err != nil {
		return SyncResult{}, fmt.Errorf("%w: %w", ErrInvalidMonth, err)
	}

	rowID, err := e.remote.UpsertMonth(ctx, store.MonthRowFrom(userID, m))
	if err != nil {
		return SyncResult{}, fmt.Errorf("%w %s: %w", ErrMonthUpsert, m.ID, err)
	}

	res := SyncResult{RowID: rowID}
	out, err := e.incremental.Apply(ctx, e.remote, userID, rowID, m.Expenses)
	res.Deleted, res.Upserted = out.Deleted, out.Upserted
	if err != nil {
		res.ExpenseErr = err
		e.logger.WarnContext(ctx, "Expense sync failed, month row kept",
			log.NewFields().
				WithOperation(log.OpSaveOne).
				WithMonth(userID, m.ID).
				With(log.FieldRowID, rowID).
				With(log.FieldStrategy, e.incremental.Name()).
				WithError(err).ToSlice()...)
		return res, nil
	}

	e.logger.DebugContext(ctx, "Month saved",
		log.FieldOperation, log.OpSaveOne,
		log.FieldUserID, userID,
		log.FieldMonthID, m.ID,
		log.FieldDeleted, res.Deleted,
		log.FieldUpserted, res.Upserted)
	return res, nil
}

// DeleteMonth removes the month remotely; expenses go with it.
func (e *Engine) DeleteMonth(ctx context.Context, userID, monthID string) error {
	if err := e.remote.DeleteMonth(ctx, userID, monthID); err != nil {
		return fmt.Errorf("delete month %s: %w", monthID, err)
	}
	e.logger.InfoContext(ctx, "Month deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldUserID, userID,
		log.FieldMonthID, monthID)
	return nil
}
