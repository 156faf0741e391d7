// Package reconcile keeps remote Month and Expense rows consistent with a
// session's in-memory snapshot.
package reconcile

import (
	"context"
	"errors"

	"budget/internal/core"
)

var (
	// ErrLoad wraps any read failure during a full load.
	ErrLoad = errors.New("load months")
	// ErrMonthUpsert wraps a failed month row upsert.
	ErrMonthUpsert = errors.New("upsert month")
	// ErrInvalidMonth wraps validation failures detected before any remote call.
	ErrInvalidMonth = errors.New("invalid month")
)

// Syncer is the persistence contract a session relies on.
type Syncer interface {
	LoadAllMonths(ctx context.Context, userID string) ([]core.Month, error)
	SaveAllMonths(ctx context.Context, userID string, months []core.Month) SaveReport
	SaveOneMonth(ctx context.Context, userID string, month core.Month) (SyncResult, error)
	DeleteMonth(ctx context.Context, userID, monthID string) error
}

// SaveReport lists the outcome of a full save per month id.
type SaveReport struct {
	Saved  []string
	Failed map[string]error
}

// OK reports whether every month was saved.
func (r SaveReport) OK() bool { return len(r.Failed) == 0 }

func (r *SaveReport) fail(monthID string, err error) {
	if r.Failed == nil {
		r.Failed = make(map[string]error)
	}
	r.Failed[monthID] = err
}

// Err joins every failure, or returns nil.
func (r SaveReport) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, id := range sortedKeys(r.Failed) {
		errs = append(errs, r.Failed[id])
	}
	return errors.Join(errs...)
}

// SyncResult describes a single month save. ExpenseErr is set when the month
// row was written but expense reconciliation failed.
type SyncResult struct {
	RowID      int64
	Deleted    int
	Upserted   int
	ExpenseErr error
}
