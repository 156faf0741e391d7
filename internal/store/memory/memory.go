// Package memory is an in-process RemoteStore used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"budget/internal/store"
)

type monthKey struct {
	userID  string
	monthID string
}

type Store struct {
	mu       sync.Mutex
	nextRow  int64
	months   map[int64]store.MonthRow
	byKey    map[monthKey]int64
	expenses []store.ExpenseRow
	calls    int
}

var _ store.RemoteStore = (*Store)(nil)

func New() *Store {
	return &Store{
		months: make(map[int64]store.MonthRow),
		byKey:  make(map[monthKey]int64),
	}
}

// Calls reports how many store operations have been invoked.
func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Store) UpsertMonth(_ context.Context, row store.MonthRow) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	key := monthKey{row.UserID, row.MonthID}
	if id, ok := s.byKey[key]; ok {
		row.RowID = id
		s.months[id] = row
		return id, nil
	}
	s.nextRow++
	row.RowID = s.nextRow
	s.months[row.RowID] = row
	s.byKey[key] = row.RowID
	return row.RowID, nil
}

func (s *Store) SelectMonths(_ context.Context, userID string) ([]store.MonthRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	var out []store.MonthRow
	for _, m := range s.months {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowID < out[j].RowID })
	return out, nil
}

func (s *Store) DeleteMonth(_ context.Context, userID, monthID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	key := monthKey{userID, monthID}
	id, ok := s.byKey[key]
	if !ok {
		return fmt.Errorf("month %s: %w", monthID, store.ErrNotFound)
	}
	delete(s.byKey, key)
	delete(s.months, id)
	s.expenses = filter(s.expenses, func(e store.ExpenseRow) bool { return e.MonthRowID != id })
	return nil
}

func (s *Store) SelectExpensesByMonthRowIDs(_ context.Context, userID string, rowIDs []int64) ([]store.ExpenseRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	wanted := make(map[int64]struct{}, len(rowIDs))
	for _, id := range rowIDs {
		if s.ownedLocked(userID, id) {
			wanted[id] = struct{}{}
		}
	}
	var out []store.ExpenseRow
	for _, e := range s.expenses {
		if _, ok := wanted[e.MonthRowID]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) InsertExpenses(_ context.Context, userID string, rows []store.ExpenseRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if err := s.checkRowsLocked(userID, rows); err != nil {
		return err
	}
	for _, r := range rows {
		if s.indexLocked(r.ID) >= 0 {
			return fmt.Errorf("expense %s: %w", r.ID, store.ErrConflict)
		}
	}
	s.expenses = append(s.expenses, rows...)
	return nil
}

func (s *Store) UpsertExpenses(_ context.Context, userID string, rows []store.ExpenseRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if err := s.checkRowsLocked(userID, rows); err != nil {
		return err
	}
	for _, r := range rows {
		i := s.indexLocked(r.ID)
		if i < 0 {
			continue
		}
		if !s.ownedLocked(userID, s.expenses[i].MonthRowID) {
			return fmt.Errorf("expense %s: %w", r.ID, store.ErrForbidden)
		}
		if s.expenses[i].MonthRowID != r.MonthRowID {
			return fmt.Errorf("expense %s belongs to month row %d: %w", r.ID, s.expenses[i].MonthRowID, store.ErrConflict)
		}
	}
	for _, r := range rows {
		if i := s.indexLocked(r.ID); i >= 0 {
			s.expenses[i] = r
			continue
		}
		s.expenses = append(s.expenses, r)
	}
	return nil
}

func (s *Store) DeleteExpensesByIDs(_ context.Context, userID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	s.expenses = filter(s.expenses, func(e store.ExpenseRow) bool {
		_, hit := drop[e.ID]
		return !hit || !s.ownedLocked(userID, e.MonthRowID)
	})
	return nil
}

func (s *Store) DeleteExpensesByMonthRowID(_ context.Context, userID string, rowID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if !s.ownedLocked(userID, rowID) {
		return fmt.Errorf("month row %d: %w", rowID, store.ErrForbidden)
	}
	s.expenses = filter(s.expenses, func(e store.ExpenseRow) bool { return e.MonthRowID != rowID })
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) ownedLocked(userID string, rowID int64) bool {
	m, ok := s.months[rowID]
	return ok && m.UserID == userID
}

func (s *Store) indexLocked(id string) int {
	for i, e := range s.expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) checkRowsLocked(userID string, rows []store.ExpenseRow) error {
	for _, r := range rows {
		if !s.ownedLocked(userID, r.MonthRowID) {
			return fmt.Errorf("month row %d: %w", r.MonthRowID, store.ErrForbidden)
		}
	}
	return nil
}

func filter(in []store.ExpenseRow, keep func(store.ExpenseRow) bool) []store.ExpenseRow {
	out := in[:0]
	for _, e := range in {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
