package core

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expense(id string, typ ExpenseType, cents int64) Expense {
	return Expense{ID: id, Name: id, Value: Money{Cents: cents}, Category: "c", Date: NewDate(2025, 3, 1), Type: typ}
}

func monthWithBalance(id string, balance int64, closed bool) Month {
	m := Month{ID: id, Closed: closed}
	if balance >= 0 {
		m.Salary1 = Money{Cents: balance}
	} else {
		m.Expenses = []Expense{expense(id+"-e", Variable, -balance)}
	}
	return m
}

func TestCalculateTotalsScenario(t *testing.T) {
	m := Month{
		ID:      "2025-03",
		Salary1: Money{Cents: 500000},
		Salary2: Money{Cents: 300000},
		Expenses: []Expense{
			expense("rent", Fixed, 200000),
			expense("food", Variable, 50000),
		},
	}

	got := CalculateTotals(&m)

	assert.Equal(t, Totals{
		Income:        Money{Cents: 800000},
		Fixed:         Money{Cents: 200000},
		Variable:      Money{Cents: 50000},
		TotalExpenses: Money{Cents: 250000},
		Balance:       Money{Cents: 550000},
	}, got)
}

func TestCalculateTotalsNil(t *testing.T) {
	assert.Equal(t, Totals{}, CalculateTotals(nil))
}

func TestCalculateTotalsIdentities(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		m := Month{ID: "2025-01", Salary1: Money{Cents: r.Int63n(1e7)}, Salary2: Money{Cents: r.Int63n(1e7)}}
		for j := 0; j < r.Intn(20); j++ {
			typ := Fixed
			if r.Intn(2) == 0 {
				typ = Variable
			}
			m.Expenses = append(m.Expenses, expense(NewExpenseID(), typ, 1+r.Int63n(1e6)))
		}
		tot := CalculateTotals(&m)
		require.Equal(t, tot.Income.Cents-tot.TotalExpenses.Cents, tot.Balance.Cents)
		require.Equal(t, tot.Fixed.Cents+tot.Variable.Cents, tot.TotalExpenses.Cents)
	}
}

func TestCalculateTotalsNoDrift(t *testing.T) {
	m := Month{ID: "2025-01"}
	for i := 0; i < 1000; i++ {
		m.Expenses = append(m.Expenses, expense(NewExpenseID(), Variable, 10)) // 0.10 each
	}
	assert.Equal(t, int64(10000), CalculateTotals(&m).Variable.Cents)
}

func TestCalculateAccumulatedSavingsScenario(t *testing.T) {
	months := []Month{
		monthWithBalance("2025-01", 120000, true),
		monthWithBalance("2025-02", -30000, true),
		monthWithBalance("2025-03", 90000, false),
	}
	assert.Equal(t, Money{Cents: 120000}, CalculateAccumulatedSavings(months))
}

func TestCalculateAccumulatedSavingsOrderAndOpenMonths(t *testing.T) {
	months := []Month{
		monthWithBalance("2024-11", 1000, true),
		monthWithBalance("2024-12", 2500, true),
		monthWithBalance("2025-01", -700, true),
	}
	want := CalculateAccumulatedSavings(months)

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < 20; i++ {
		shuffled := append([]Month(nil), months...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		shuffled = append(shuffled, monthWithBalance("2025-02", r.Int63n(1e6)-5e5, false))
		require.Equal(t, want, CalculateAccumulatedSavings(shuffled))
	}
	assert.Equal(t, Money{}, CalculateAccumulatedSavings(nil))
}

func TestCategoryBreakdown(t *testing.T) {
	m := Month{Expenses: []Expense{
		{ID: "1", Category: "Casa", Value: Money{Cents: 100}},
		{ID: "2", Category: "Mercado", Value: Money{Cents: 50}},
		{ID: "3", Category: "Casa", Value: Money{Cents: 25}},
	}}
	assert.Equal(t, []CategoryAmount{
		{Name: "Casa", Amount: Money{Cents: 125}},
		{Name: "Mercado", Amount: Money{Cents: 50}},
	}, CategoryBreakdown(&m))
	assert.Nil(t, CategoryBreakdown(nil))
}
