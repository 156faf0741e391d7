package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/middleware/trace"
	"budget/internal/reconcile"
	"budget/internal/services"
	"budget/internal/session"
)

type amountView struct {
	Cents     int64  `json:"cents"`
	Formatted string `json:"formatted"`
}

func amount(m core.Money, loc core.Locale) amountView {
	return amountView{Cents: m.Cents, Formatted: core.FormatMoney(m, loc)}
}

type expenseView struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Value    amountView       `json:"value"`
	Category string           `json:"category"`
	Date     string           `json:"date"`
	Type     core.ExpenseType `json:"type"`
}

func newExpenseView(e core.Expense, loc core.Locale) expenseView {
	return expenseView{
		ID:       e.ID,
		Name:     e.Name,
		Value:    amount(e.Value, loc),
		Category: e.Category,
		Date:     e.Date.String(),
		Type:     e.Type,
	}
}

type totalsView struct {
	Income        amountView `json:"income"`
	Fixed         amountView `json:"fixed"`
	Variable      amountView `json:"variable"`
	TotalExpenses amountView `json:"total_expenses"`
	Balance       amountView `json:"balance"`
}

func newTotalsView(t core.Totals, loc core.Locale) totalsView {
	return totalsView{
		Income:        amount(t.Income, loc),
		Fixed:         amount(t.Fixed, loc),
		Variable:      amount(t.Variable, loc),
		TotalExpenses: amount(t.TotalExpenses, loc),
		Balance:       amount(t.Balance, loc),
	}
}

type categoryView struct {
	Name   string     `json:"name"`
	Amount amountView `json:"amount"`
}

type monthSummaryView struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	Closed    bool       `json:"closed"`
	Totals    totalsView `json:"totals"`
	SaveState string     `json:"save_state,omitempty"`
}

type monthView struct {
	monthSummaryView
	Salary1    amountView     `json:"salary1"`
	Salary2    amountView     `json:"salary2"`
	Expenses   []expenseView  `json:"expenses"`
	Categories []categoryView `json:"categories"`
}

func saveState(s *session.Session, id string) string {
	if st, ok := s.State(id); ok {
		return st.String()
	}
	return ""
}

func newMonthSummaryView(s *session.Session, m core.Month, t core.Totals, loc core.Locale) monthSummaryView {
	return monthSummaryView{
		ID:        m.ID,
		Label:     m.Label,
		Closed:    m.Closed,
		Totals:    newTotalsView(t, loc),
		SaveState: saveState(s, m.ID),
	}
}

func newMonthView(s *session.Session, m core.Month, t core.Totals, loc core.Locale) monthView {
	v := monthView{
		monthSummaryView: newMonthSummaryView(s, m, t, loc),
		Salary1:          amount(m.Salary1, loc),
		Salary2:          amount(m.Salary2, loc),
		Expenses:         make([]expenseView, 0, len(m.Expenses)),
		Categories:       []categoryView{},
	}
	for _, e := range m.Expenses {
		v.Expenses = append(v.Expenses, newExpenseView(e, loc))
	}
	for _, c := range core.CategoryBreakdown(&m) {
		v.Categories = append(v.Categories, categoryView{Name: c.Name, Amount: amount(c.Amount, loc)})
	}
	return v
}

type savingsView struct {
	Accumulated amountView `json:"accumulated"`
	ClosedCount int        `json:"closed_months"`
}

type statusView struct {
	Save    session.Status    `json:"save"`
	Months  map[string]string `json:"months"`
}

type sessionView struct {
	UserID string `json:"user_id"`
	Months int    `json:"months"`
}

type errorView struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps domain and session errors to response codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNoSession), errors.Is(err, session.ErrClosed):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrMonthNotFound), errors.Is(err, session.ErrExpenseNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrMonthClosed), errors.Is(err, session.ErrMonthExists),
		errors.Is(err, session.ErrMonthDeleting), errors.Is(err, core.ErrDuplicateExpenseID):
		return http.StatusConflict
	case errors.Is(err, errBadJSON):
		return http.StatusBadRequest
	case isInvalidInput(err),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrEmptyExpenseID),
		errors.Is(err, core.ErrInvalidExpenseType),
		errors.Is(err, core.ErrInvalidMonthID):
		return http.StatusUnprocessableEntity
	case errors.Is(err, reconcile.ErrLoad):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs server-side failures and hides their detail from clients.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= 500 {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", log.FieldError, err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorView{Error: msg, RequestID: trace.RequestID(r.Context())})
}

func healthBody(status string, now time.Time) map[string]string {
	return map[string]string{"status": status, "time": now.UTC().Format(time.RFC3339)}
}
