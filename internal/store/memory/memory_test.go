package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
	"budget/internal/store"
)

func TestUpsertMonthIsKeyedPerUser(t *testing.T) {
	ctx := context.Background()
	s := New()

	a, err := s.UpsertMonth(ctx, store.MonthRow{UserID: "u1", MonthID: "2025-03", Label: "Março 2025"})
	require.NoError(t, err)
	b, err := s.UpsertMonth(ctx, store.MonthRow{UserID: "u1", MonthID: "2025-03", Label: "renamed", Closed: true})
	require.NoError(t, err)
	c, err := s.UpsertMonth(ctx, store.MonthRow{UserID: "u2", MonthID: "2025-03"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	rows, err := s.SelectMonths(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "renamed", rows[0].Label)
	assert.True(t, rows[0].Closed)
}

func TestExpensesAreScopedToOwner(t *testing.T) {
	ctx := context.Background()
	s := New()
	own, _ := s.UpsertMonth(ctx, store.MonthRow{UserID: "u1", MonthID: "2025-03"})
	other, _ := s.UpsertMonth(ctx, store.MonthRow{UserID: "u2", MonthID: "2025-03"})

	row := store.ExpenseRow{ID: "e1", MonthRowID: own, Name: "Mercado", Value: core.Money{Cents: 1000}, Type: core.Variable}
	require.NoError(t, s.InsertExpenses(ctx, "u1", []store.ExpenseRow{row}))
	assert.ErrorIs(t, s.InsertExpenses(ctx, "u1", []store.ExpenseRow{row}), store.ErrConflict)

	err := s.InsertExpenses(ctx, "u1", []store.ExpenseRow{{ID: "x", MonthRowID: other}})
	assert.ErrorIs(t, err, store.ErrForbidden)

	got, err := s.SelectExpensesByMonthRowIDs(ctx, "u2", []int64{own})
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.DeleteExpensesByIDs(ctx, "u2", []string{"e1"}))
	got, _ = s.SelectExpensesByMonthRowIDs(ctx, "u1", []int64{own})
	assert.Len(t, got, 1)
}

func TestUpsertExpensesAndCascade(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, _ := s.UpsertMonth(ctx, store.MonthRow{UserID: "u1", MonthID: "2025-03"})

	require.NoError(t, s.UpsertExpenses(ctx, "u1", []store.ExpenseRow{
		{ID: "a", MonthRowID: id, Name: "one"},
		{ID: "b", MonthRowID: id, Name: "two"},
	}))
	require.NoError(t, s.UpsertExpenses(ctx, "u1", []store.ExpenseRow{{ID: "a", MonthRowID: id, Name: "uno"}}))

	got, _ := s.SelectExpensesByMonthRowIDs(ctx, "u1", []int64{id})
	require.Len(t, got, 2)
	assert.Equal(t, "uno", got[0].Name)

	require.NoError(t, s.DeleteMonth(ctx, "u1", "2025-03"))
	got, _ = s.SelectExpensesByMonthRowIDs(ctx, "u1", []int64{id})
	assert.Empty(t, got)
	assert.ErrorIs(t, s.DeleteMonth(ctx, "u1", "2025-03"), store.ErrNotFound)
}

func TestUpsertExpensesRefusesToMoveRowBetweenMonths(t *testing.T) {
	ctx := context.Background()
	s := New()
	march, _ := s.UpsertMonth(ctx, store.MonthRow{UserID: "u1", MonthID: "2025-03"})
	april, _ := s.UpsertMonth(ctx, store.MonthRow{UserID: "u1", MonthID: "2025-04"})
	require.NoError(t, s.UpsertExpenses(ctx, "u1", []store.ExpenseRow{{ID: "a", MonthRowID: march, Name: "one"}}))

	err := s.UpsertExpenses(ctx, "u1", []store.ExpenseRow{
		{ID: "b", MonthRowID: april},
		{ID: "a", MonthRowID: april, Name: "moved"},
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	got, _ := s.SelectExpensesByMonthRowIDs(ctx, "u1", []int64{march})
	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0].Name)
	none, _ := s.SelectExpensesByMonthRowIDs(ctx, "u1", []int64{april})
	assert.Empty(t, none)
}

func TestDeleteExpensesByMonthRowID(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, _ := s.UpsertMonth(ctx, store.MonthRow{UserID: "u1", MonthID: "2025-03"})
	require.NoError(t, s.InsertExpenses(ctx, "u1", []store.ExpenseRow{{ID: "a", MonthRowID: id}}))

	assert.ErrorIs(t, s.DeleteExpensesByMonthRowID(ctx, "u2", id), store.ErrForbidden)
	require.NoError(t, s.DeleteExpensesByMonthRowID(ctx, "u1", id))

	got, _ := s.SelectExpensesByMonthRowIDs(ctx, "u1", []int64{id})
	assert.Empty(t, got)
	assert.Positive(t, s.Calls())
}
