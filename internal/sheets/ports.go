package sheets

import (
	"context"

	"budget/internal/core"
)

// SummaryHeader is the first row of the summary sheet.
var SummaryHeader = []string{
	"user", "month", "label", "income", "fixed", "variable",
	"total_expenses", "balance", "closed", "accumulated_savings",
}

// SummaryRow is one exported (user, month) line.
type SummaryRow struct {
	UserID  string
	MonthID string
	Label   string
	Totals  core.Totals
	Closed  bool
	Savings core.Money
}

// NewSummaryRow derives the exported line for m.
func NewSummaryRow(userID string, m core.Month, savings core.Money) SummaryRow {
	return SummaryRow{
		UserID:  userID,
		MonthID: m.ID,
		Label:   m.Label,
		Totals:  core.CalculateTotals(&m),
		Closed:  m.Closed,
		Savings: savings,
	}
}

// Values renders the row in header order. Amounts are plain decimals so the
// sheet can sum them.
func (r SummaryRow) Values() []any {
	return []any{
		r.UserID,
		r.MonthID,
		r.Label,
		amount(r.Totals.Income),
		amount(r.Totals.Fixed),
		amount(r.Totals.Variable),
		amount(r.Totals.TotalExpenses),
		amount(r.Totals.Balance),
		r.Closed,
		amount(r.Savings),
	}
}

func amount(m core.Money) string { return m.Decimal().StringFixed(2) }

// Ports for outbound adapters.
type (
	// SummaryWriter stores one row per (user, month), replacing any earlier one.
	SummaryWriter interface {
		WriteSummary(ctx context.Context, row SummaryRow) (rowRef string, err error)
	}
)
