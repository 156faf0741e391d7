package local

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
	"budget/internal/reconcile"
	"budget/internal/store"
)

func newEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	blobs, err := NewBlobStore(dir)
	require.NoError(t, err)
	return NewEngine(blobs, nil), dir
}

func sampleMonth(id string, expenseIDs ...string) core.Month {
	m := core.Month{ID: id, Label: id, Salary1: core.Money{Cents: 500000}, Expenses: []core.Expense{}}
	for _, eid := range expenseIDs {
		m.Expenses = append(m.Expenses, core.Expense{
			ID: eid, Name: "item " + eid, Value: core.Money{Cents: 1050}, Category: "Casa",
			Date: core.NewDate(2025, 3, 2), Type: core.Fixed,
		})
	}
	return m
}

func TestLoadMissingBlobReturnsEmpty(t *testing.T) {
	e, _ := newEngine(t)
	months, err := e.LoadAllMonths(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, months)
}

func TestSaveOneMonthRoundTripAndDeletion(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	_, err := e.SaveOneMonth(ctx, "u1", sampleMonth("2025-03", "a", "b", "c"))
	require.NoError(t, err)
	res, err := e.SaveOneMonth(ctx, "u1", sampleMonth("2025-03", "a", "c"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)

	months, err := e.LoadAllMonths(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, months, 1)
	assert.Equal(t, sampleMonth("2025-03", "a", "c"), months[0])
}

func TestSaveAllMonthsKeepsOtherMonthsAndReportsInvalid(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	_, err := e.SaveOneMonth(ctx, "u1", sampleMonth("2025-01", "x"))
	require.NoError(t, err)

	bad := sampleMonth("2025-13")
	report := e.SaveAllMonths(ctx, "u1", []core.Month{sampleMonth("2025-02", "y"), bad})
	assert.Equal(t, []string{"2025-02"}, report.Saved)
	assert.ErrorIs(t, report.Failed["2025-13"], reconcile.ErrInvalidMonth)

	months, err := e.LoadAllMonths(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, months, 2)
	assert.Equal(t, "2025-02", months[0].ID)
	assert.Equal(t, "2025-01", months[1].ID)
}

func TestDeleteMonthAndUserIsolation(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	_, err := e.SaveOneMonth(ctx, "alice", sampleMonth("2025-03", "a"))
	require.NoError(t, err)

	bob, err := e.LoadAllMonths(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bob)
	assert.ErrorIs(t, e.DeleteMonth(ctx, "bob", "2025-03"), store.ErrNotFound)

	require.NoError(t, e.DeleteMonth(ctx, "alice", "2025-03"))
	alice, err := e.LoadAllMonths(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, alice)
}

func TestCorruptBlobFailsLoad(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	require.NoError(t, os.WriteFile(e.blobs.path("u1"), []byte("{not json"), 0o644))

	_, err := e.LoadAllMonths(ctx, "u1")
	assert.ErrorIs(t, err, reconcile.ErrLoad)
}
