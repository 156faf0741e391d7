// Package store declares the remote data service the reconciliation engine
// talks to, one port per entity, plus the row shapes exchanged with it.
package store

import (
	"context"
	"errors"

	"budget/internal/core"
)

type (
	// MonthRow is a persisted month. RowID is assigned by the store.
	MonthRow struct {
		RowID   int64
		UserID  string
		MonthID string
		Label   string
		Salary1 core.Money
		Salary2 core.Money
		Closed  bool
	}

	// ExpenseRow is a persisted expense owned by the month with MonthRowID.
	ExpenseRow struct {
		ID         string
		MonthRowID int64
		Name       string
		Value      core.Money
		Category   string
		Date       core.Date
		Type       core.ExpenseType
	}
)

// Ports for the remote store. Every call is scoped to userID; implementations
// must never read or write rows belonging to another user.
type (
	MonthStore interface {
		// UpsertMonth inserts or updates the month keyed by (UserID, MonthID)
		// and returns its row id.
		UpsertMonth(ctx context.Context, row MonthRow) (rowID int64, err error)
		// SelectMonths returns every month owned by userID.
		SelectMonths(ctx context.Context, userID string) ([]MonthRow, error)
		// DeleteMonth removes the month and, by cascade, its expenses.
		DeleteMonth(ctx context.Context, userID, monthID string) error
	}

	ExpenseStore interface {
		// SelectExpensesByMonthRowIDs returns expenses of the given months in insertion order.
		SelectExpensesByMonthRowIDs(ctx context.Context, userID string, rowIDs []int64) ([]ExpenseRow, error)
		InsertExpenses(ctx context.Context, userID string, rows []ExpenseRow) error
		// UpsertExpenses inserts or updates rows using the expense id as conflict
		// key. An existing row is never moved to another month row; that
		// fails with ErrConflict and writes nothing.
		UpsertExpenses(ctx context.Context, userID string, rows []ExpenseRow) error
		DeleteExpensesByIDs(ctx context.Context, userID string, ids []string) error
		DeleteExpensesByMonthRowID(ctx context.Context, userID string, rowID int64) error
	}

	RemoteStore interface {
		MonthStore
		ExpenseStore
		Close() error
	}
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("row belongs to another user")
	ErrConflict  = errors.New("conflicting row")
)

// MonthRowFrom builds the month row for userID from the in-memory month.
func MonthRowFrom(userID string, m core.Month) MonthRow {
	return MonthRow{
		UserID:  userID,
		MonthID: m.ID,
		Label:   m.Label,
		Salary1: m.Salary1,
		Salary2: m.Salary2,
		Closed:  m.Closed,
	}
}

// ExpenseRowsFrom maps a month's expenses onto rows owned by rowID.
func ExpenseRowsFrom(rowID int64, expenses []core.Expense) []ExpenseRow {
	rows := make([]ExpenseRow, len(expenses))
	for i, e := range expenses {
		rows[i] = ExpenseRow{
			ID:         e.ID,
			MonthRowID: rowID,
			Name:       e.Name,
			Value:      e.Value,
			Category:   e.Category,
			Date:       e.Date,
			Type:       e.Type,
		}
	}
	return rows
}

// Expense converts the row back to the domain shape.
func (r ExpenseRow) Expense() core.Expense {
	return core.Expense{
		ID:       r.ID,
		Name:     r.Name,
		Value:    r.Value,
		Category: r.Category,
		Date:     r.Date,
		Type:     r.Type,
	}
}
