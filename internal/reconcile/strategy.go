package reconcile

import (
	"context"
	"fmt"
	"strings"

	"budget/internal/core"
	"budget/internal/store"
)

const (
	StrategyBulk = "bulk"
	StrategyDiff = "diff"
)

// Outcome counts the expense rows touched by a strategy.
type Outcome struct {
	Deleted  int
	Upserted int
}

// Strategy reconciles the remote expense set of one month row with the
// local expense list. The month row must already exist.
type Strategy interface {
	Name() string
	Apply(ctx context.Context, es store.ExpenseStore, userID string, rowID int64, expenses []core.Expense) (Outcome, error)
}

// StrategyByName resolves "bulk" or "diff".
func StrategyByName(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case StrategyBulk:
		return BulkRebuild{}, nil
	case StrategyDiff:
		return DiffUpsert{}, nil
	default:
		return nil, fmt.Errorf("unknown save strategy %q", name)
	}
}

// BulkRebuild deletes every expense of the month row and inserts the local
// list fresh. A failure between the two steps leaves the month empty remotely
// until the next successful save.
type BulkRebuild struct{}

func (BulkRebuild) Name() string { return StrategyBulk }

func (BulkRebuild) Apply(ctx context.Context, es store.ExpenseStore, userID string, rowID int64, expenses []core.Expense) (Outcome, error) {
	if err := es.DeleteExpensesByMonthRowID(ctx, userID, rowID); err != nil {
		return Outcome{}, fmt.Errorf("clear expenses: %w", err)
	}
	rows := store.ExpenseRowsFrom(rowID, expenses)
	if err := es.InsertExpenses(ctx, userID, rows); err != nil {
		return Outcome{}, fmt.Errorf("insert expenses: %w", err)
	}
	return Outcome{Upserted: len(rows)}, nil
}

// DiffUpsert deletes remote expenses missing locally and upserts the local
// list keyed by expense id. Expense identity is preserved.
type DiffUpsert struct{}

func (DiffUpsert) Name() string { return StrategyDiff }

func (DiffUpsert) Apply(ctx context.Context, es store.ExpenseStore, userID string, rowID int64, expenses []core.Expense) (Outcome, error) {
	remote, err := es.SelectExpensesByMonthRowIDs(ctx, userID, []int64{rowID})
	if err != nil {
		return Outcome{}, fmt.Errorf("select remote expenses: %w", err)
	}
	ids := make([]string, len(remote))
	for i, r := range remote {
		ids[i] = r.ID
	}

	plan := Diff(ids, rowID, expenses)
	var out Outcome
	if len(plan.Delete) > 0 {
		if err := es.DeleteExpensesByIDs(ctx, userID, plan.Delete); err != nil {
			return out, fmt.Errorf("delete stale expenses: %w", err)
		}
		out.Deleted = len(plan.Delete)
	}
	if len(plan.Upsert) > 0 {
		if err := es.UpsertExpenses(ctx, userID, plan.Upsert); err != nil {
			return out, fmt.Errorf("upsert expenses: %w", err)
		}
		out.Upserted = len(plan.Upsert)
	}
	return out, nil
}
