package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/amqp"
	"budget/internal/core"
	ports "budget/internal/sheets"
	"budget/internal/sheets/memory"
)

type stubLoader struct {
	months []core.Month
	err    error
}

func (s stubLoader) LoadAllMonths(context.Context, string) ([]core.Month, error) {
	out := make([]core.Month, len(s.months))
	copy(out, s.months)
	return out, s.err
}

type failingWriter struct{}

func (failingWriter) WriteSummary(context.Context, ports.SummaryRow) (string, error) {
	return "", errors.New("quota exceeded")
}

func closedMonth(id string, income, spent int64) core.Month {
	return core.Month{
		ID:      id,
		Salary1: core.Money{Cents: income},
		Closed:  true,
		Expenses: []core.Expense{
			{ID: id + "-e", Name: "x", Value: core.Money{Cents: spent}, Type: core.Variable},
		},
	}
}

func TestHandleMonthSyncedWritesRunningSavings(t *testing.T) {
	loader := stubLoader{months: []core.Month{
		closedMonth("2024-03", 1000, 100),
		closedMonth("2024-01", 1000, 500),
		closedMonth("2024-02", 1000, 1500),
	}}
	sheet := memory.New()
	w := NewExportWorker(loader, sheet, nil)

	err := w.HandleMonthSynced(context.Background(), amqp.NewMonthSyncedMessage("alice", "2024-02"))
	require.NoError(t, err)

	row, ok := sheet.Row("alice", "2024-02")
	require.True(t, ok)
	// 2024-01 saved 500, 2024-02 went negative and contributes nothing.
	assert.Equal(t, int64(500), row.Savings.Cents)
	assert.Equal(t, int64(-500), row.Totals.Balance.Cents)
	_, later := sheet.Row("alice", "2024-03")
	assert.False(t, later)
}

func TestHandleMonthSyncedSkipsDeletedMonth(t *testing.T) {
	sheet := memory.New()
	w := NewExportWorker(stubLoader{months: []core.Month{closedMonth("2024-01", 1, 1)}}, sheet, nil)

	require.NoError(t, w.HandleMonthSynced(context.Background(), amqp.NewMonthSyncedMessage("alice", "2023-07")))
	assert.Empty(t, sheet.Rows())
}

func TestHandleMonthSyncedPropagatesErrors(t *testing.T) {
	ctx := context.Background()
	msg := amqp.NewMonthSyncedMessage("alice", "2024-01")

	w := NewExportWorker(stubLoader{err: errors.New("db down")}, memory.New(), nil)
	assert.ErrorContains(t, w.HandleMonthSynced(ctx, msg), "db down")

	w = NewExportWorker(stubLoader{months: []core.Month{closedMonth("2024-01", 1, 1)}}, failingWriter{}, nil)
	assert.ErrorContains(t, w.HandleMonthSynced(ctx, msg), "quota exceeded")
}

func TestExportAll(t *testing.T) {
	loader := stubLoader{months: []core.Month{
		closedMonth("2024-02", 1000, 0),
		closedMonth("2024-01", 1000, 0),
	}}
	sheet := memory.New()
	w := NewExportWorker(loader, sheet, nil)

	n, err := w.ExportAll(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows := sheet.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1000), rows[0].Savings.Cents)
	assert.Equal(t, int64(2000), rows[1].Savings.Cents)
}
