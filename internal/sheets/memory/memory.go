package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	ports "budget/internal/sheets"
)

// Writer keeps summary rows in memory, keyed like the real sheet.
type Writer struct {
	mu    sync.Mutex
	order []string
	rows  map[string]ports.SummaryRow
}

var _ ports.SummaryWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{rows: make(map[string]ports.SummaryRow)}
}

// WriteSummary replaces the row for (user, month) and returns a synthetic reference.
func (w *Writer) WriteSummary(_ context.Context, row ports.SummaryRow) (string, error) {
	if row.UserID == "" || row.MonthID == "" {
		return "", errors.New("summary row missing user or month")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	key := row.UserID + "/" + row.MonthID
	if _, ok := w.rows[key]; !ok {
		w.order = append(w.order, key)
	}
	w.rows[key] = row
	return fmt.Sprintf("mem:%d", indexOf(w.order, key)+1), nil
}

// Row returns the stored row for (user, month).
func (w *Writer) Row(userID, monthID string) (ports.SummaryRow, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.rows[userID+"/"+monthID]
	return r, ok
}

// Rows returns every stored row sorted by user then month.
func (w *Writer) Rows() []ports.SummaryRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]ports.SummaryRow, 0, len(w.rows))
	for _, r := range w.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].MonthID < out[j].MonthID
	})
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if v == target {
			return i
		}
	}
	return -1
}
