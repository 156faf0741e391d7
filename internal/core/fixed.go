package core

import (
	"strings"
	"time"
)

// ImportFixedExpenses copies from's fixed expenses into to, returning the updated month.
//
// Copies get fresh ids and keep their day of month, clamped to the length of
// to's month. A fixed expense already present in to with the same name and
// category is not duplicated, so importing twice is harmless.
func ImportFixedExpenses(from, to Month) (Month, int, error) {
	start, err := MonthStart(to.ID)
	if err != nil {
		return to, 0, err
	}
	lastDay := start.AddDate(0, 1, -1).Day()

	existing := map[string]struct{}{}
	for _, e := range to.Expenses {
		if e.Type == Fixed {
			existing[fixedKey(e)] = struct{}{}
		}
	}

	out := to.Clone()
	added := 0
	for _, e := range from.Expenses {
		if e.Type != Fixed {
			continue
		}
		if _, dup := existing[fixedKey(e)]; dup {
			continue
		}
		day := 1
		if !e.Date.IsZero() {
			day = min(e.Date.Day(), lastDay)
		}
		cp := e
		cp.ID = NewExpenseID()
		cp.Date = Date{Time: time.Date(start.Year(), start.Month(), day, 0, 0, 0, 0, time.UTC)}
		out.Expenses = append(out.Expenses, cp)
		existing[fixedKey(cp)] = struct{}{}
		added++
	}
	return out, added, nil
}

func fixedKey(e Expense) string {
	return strings.ToLower(strings.TrimSpace(e.Name)) + "\x00" + strings.ToLower(strings.TrimSpace(e.Category))
}
