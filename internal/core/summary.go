package core

// Totals are the derived aggregates of one month. They are never persisted.
type Totals struct {
	Income        Money `json:"income"`
	Fixed         Money `json:"fixed"`
	Variable      Money `json:"variable"`
	TotalExpenses Money `json:"total_expenses"`
	Balance       Money `json:"balance"`
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// CalculateTotals derives income, expense split and balance for m.
// A nil month yields zero totals.
func CalculateTotals(m *Month) Totals {
	if m == nil {
		return Totals{}
	}
	var t Totals
	t.Income = m.Salary1.Add(m.Salary2)
	for _, e := range m.Expenses {
		switch e.Type {
		case Fixed:
			t.Fixed = t.Fixed.Add(e.Value)
		case Variable:
			t.Variable = t.Variable.Add(e.Value)
		}
	}
	t.TotalExpenses = t.Fixed.Add(t.Variable)
	t.Balance = t.Income.Sub(t.TotalExpenses)
	return t
}

// CalculateAccumulatedSavings sums the positive balances of closed months.
// Open months and negative balances contribute nothing.
func CalculateAccumulatedSavings(months []Month) Money {
	var total Money
	for i := range months {
		if !months[i].Closed {
			continue
		}
		if b := CalculateTotals(&months[i]).Balance; b.Cents > 0 {
			total = total.Add(b)
		}
	}
	return total
}

// CategoryBreakdown aggregates expenses by category, in order of first appearance.
func CategoryBreakdown(m *Month) []CategoryAmount {
	if m == nil {
		return nil
	}
	index := map[string]int{}
	var out []CategoryAmount
	for _, e := range m.Expenses {
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, CategoryAmount{Name: e.Category})
		}
		out[i].Amount = out[i].Amount.Add(e.Value)
	}
	return out
}
