// Package session holds one authenticated user's month collection, applies
// edits in memory and autosaves each edited month after a quiet period.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/debounce"
	"budget/internal/log"
	"budget/internal/reconcile"
	"budget/internal/store"
)

var (
	ErrMonthNotFound   = errors.New("month not found")
	ErrMonthExists     = errors.New("month already exists")
	ErrMonthClosed     = errors.New("month is closed")
	ErrExpenseNotFound = errors.New("expense not found")
	ErrMonthDeleting   = errors.New("month is being deleted")
	ErrClosed          = errors.New("session closed")
)

// Publisher is notified after a month is fully saved.
type Publisher interface {
	PublishMonthSynced(ctx context.Context, userID, monthID string) error
}

type Config struct {
	QuietPeriod time.Duration
	SavedReset  time.Duration
	ErrorReset  time.Duration
	SaveTimeout time.Duration
	Locale      core.Locale
	Clock       debounce.Clock
	Publisher   Publisher
	// Totals is shared across sessions; keys are prefixed with the user id.
	Totals cache.Cache[core.Totals]
	Logger *log.Logger
}

func DefaultConfig() Config {
	return Config{
		QuietPeriod: 2 * time.Second,
		SavedReset:  2 * time.Second,
		ErrorReset:  5 * time.Second,
		SaveTimeout: 30 * time.Second,
		Locale:      core.DefaultLocale,
	}
}

type Session struct {
	userID    string
	syncer    reconcile.Syncer
	cfg       Config
	scheduler *debounce.Scheduler
	tracker   *reconcile.Tracker
	status    *SaveStatus
	logger    *log.Logger

	mu       sync.RWMutex
	months   map[string]core.Month
	deleting map[string]struct{}
	closed   bool
}

// Open loads every month of userID and returns a session over them. No
// session is created when the load fails.
func Open(ctx context.Context, userID string, syncer reconcile.Syncer, cfg Config) (*Session, error) {
	if userID == "" {
		return nil, errors.New("open session: empty user id")
	}
	months, err := syncer.LoadAllMonths(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return newSession(userID, syncer, months, cfg), nil
}

func newSession(userID string, syncer reconcile.Syncer, months []core.Month, cfg Config) *Session {
	def := DefaultConfig()
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = def.QuietPeriod
	}
	if cfg.SavedReset <= 0 {
		cfg.SavedReset = def.SavedReset
	}
	if cfg.ErrorReset <= 0 {
		cfg.ErrorReset = def.ErrorReset
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = def.SaveTimeout
	}
	if cfg.Locale.MonthNames[0] == "" {
		cfg.Locale = def.Locale
	}
	if cfg.Clock == nil {
		cfg.Clock = debounce.RealClock()
	}
	if cfg.Totals == nil {
		cfg.Totals = cache.NewLRUCache[core.Totals](64, 0)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}

	s := &Session{
		userID:    userID,
		syncer:    syncer,
		cfg:       cfg,
		scheduler: debounce.NewScheduler(cfg.Clock),
		tracker:   reconcile.NewTracker(),
		status:    NewSaveStatus(cfg.Clock, cfg.SavedReset, cfg.ErrorReset),
		logger:    cfg.Logger.WithComponent(log.ComponentSession).With(log.FieldUserID, userID),
		months:    make(map[string]core.Month, len(months)),
		deleting:  make(map[string]struct{}),
	}
	for _, m := range months {
		s.months[m.ID] = m.Clone()
		s.tracker.Loaded(m.ID)
	}
	return s
}

func (s *Session) UserID() string { return s.userID }

// Months returns copies of every month, newest first.
func (s *Session) Months() []core.Month {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Month, 0, len(s.months))
	for _, m := range s.months {
		out = append(out, m.Clone())
	}
	core.SortMonths(out)
	return out
}

func (s *Session) Month(id string) (core.Month, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.months[id]
	if !ok {
		return core.Month{}, fmt.Errorf("%w: %s", ErrMonthNotFound, id)
	}
	return m.Clone(), nil
}

// Totals returns the month's totals, memoized per revision.
func (s *Session) Totals(id string) (core.Totals, error) {
	// Revisions only move under the write lock, so m and rev agree.
	s.mu.RLock()
	m, ok := s.months[id]
	rev := s.tracker.Revision(id)
	s.mu.RUnlock()
	if !ok {
		return core.Totals{}, fmt.Errorf("%w: %s", ErrMonthNotFound, id)
	}
	key := s.totalsKey(id) + strconv.FormatUint(rev, 10)
	if t, ok := s.cfg.Totals.Get(key); ok {
		return t, nil
	}
	t := core.CalculateTotals(&m)
	s.cfg.Totals.Set(key, t)
	return t, nil
}

func (s *Session) totalsKey(id string) string {
	return s.userID + "/" + id + "@"
}

func (s *Session) AccumulatedSavings() core.Money {
	return core.CalculateAccumulatedSavings(s.Months())
}

// State reports the persistence state of a month.
func (s *Session) State(id string) (reconcile.State, bool) {
	return s.tracker.State(id)
}

func (s *Session) Status() Status {
	return s.status.Snapshot()
}

// CreateMonth adds an open, empty month for the calendar month of date.
func (s *Session) CreateMonth(date time.Time) (core.Month, error) {
	m := core.NewMonth(date, s.cfg.Locale)
	m.Expenses = []core.Expense{}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.Month{}, ErrClosed
	}
	if _, ok := s.months[m.ID]; ok {
		return core.Month{}, fmt.Errorf("%w: %s", ErrMonthExists, m.ID)
	}
	s.months[m.ID] = m
	s.tracker.Created(m.ID)
	s.touchLocked(m.ID)
	return m.Clone(), nil
}

func (s *Session) SetSalaries(id string, salary1, salary2 core.Money) error {
	if salary1.Cents < 0 || salary2.Cents < 0 {
		return core.ErrInvalidAmount
	}
	return s.mutate(id, func(m *core.Month) error {
		m.Salary1, m.Salary2 = salary1, salary2
		return nil
	})
}

// AddExpense validates e, assigning an id when empty, and appends it. An id
// already used by any month of the session is rejected.
func (s *Session) AddExpense(id string, e core.Expense) (core.Expense, error) {
	if e.ID == "" {
		e.ID = core.NewExpenseID()
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	err := s.mutate(id, func(m *core.Month) error {
		if owner, ok := s.expenseMonthLocked(e.ID); ok {
			return fmt.Errorf("%w: %s in %s", core.ErrDuplicateExpenseID, e.ID, owner)
		}
		m.Expenses = append(m.Expenses, e)
		return nil
	})
	if err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// UpdateExpense replaces the expense with the same id.
func (s *Session) UpdateExpense(id string, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return s.mutate(id, func(m *core.Month) error {
		i := m.ExpenseIndex(e.ID)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrExpenseNotFound, e.ID)
		}
		m.Expenses[i] = e
		return nil
	})
}

func (s *Session) RemoveExpense(id, expenseID string) error {
	return s.mutate(id, func(m *core.Month) error {
		i := m.ExpenseIndex(expenseID)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrExpenseNotFound, expenseID)
		}
		m.Expenses = append(m.Expenses[:i], m.Expenses[i+1:]...)
		return nil
	})
}

// ImportFixedExpenses copies the previous month's fixed expenses into id
// and returns how many were added.
func (s *Session) ImportFixedExpenses(id string) (int, error) {
	prevID, err := core.PreviousMonthID(id)
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	prev, ok := s.months[prevID]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMonthNotFound, prevID)
	}

	added := 0
	err = s.mutate(id, func(m *core.Month) error {
		out, n, err := core.ImportFixedExpenses(prev, *m)
		if err != nil {
			return err
		}
		if n == 0 {
			return errNoChange
		}
		*m, added = out, n
		return nil
	})
	if errors.Is(err, errNoChange) {
		return 0, nil
	}
	return added, err
}

// CloseMonth commits the month; closing is one-way.
func (s *Session) CloseMonth(id string) error {
	return s.mutate(id, func(m *core.Month) error {
		m.Closed = true
		return nil
	})
}

var errNoChange = errors.New("no change")

func (s *Session) expenseMonthLocked(expenseID string) (string, bool) {
	for id, m := range s.months {
		if m.ExpenseIndex(expenseID) >= 0 {
			return id, true
		}
	}
	return "", false
}

// mutate applies fn to a copy of the month, validates the result and, on
// success, stores it and schedules an autosave.
func (s *Session) mutate(id string, fn func(*core.Month) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	cur, ok := s.months[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMonthNotFound, id)
	}
	if _, busy := s.deleting[id]; busy {
		return fmt.Errorf("%w: %s", ErrMonthDeleting, id)
	}
	if cur.Closed {
		return fmt.Errorf("%w: %s", ErrMonthClosed, id)
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	s.months[id] = next
	s.touchLocked(id)
	return nil
}

// touchLocked bumps the month revision and debounces a save of the month.
func (s *Session) touchLocked(id string) {
	s.tracker.Mutated(id)
	s.cfg.Totals.DeletePrefix(s.totalsKey(id))
	s.scheduleLocked(id)
}

func (s *Session) scheduleLocked(id string) {
	s.scheduler.Schedule(id, s.cfg.QuietPeriod, func() {
		s.save(id)
	})
}

// save writes the month as it is when the quiet period ends.
func (s *Session) save(id string) {
	s.mu.RLock()
	m, ok := s.months[id]
	if !ok {
		s.mu.RUnlock()
		return
	}
	snapshot := m.Clone()
	rev := s.tracker.SaveStarted(id)
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SaveTimeout)
	defer cancel()
	ctx = log.NewContext(ctx, s.logger)

	s.status.Begin()
	res, err := s.syncer.SaveOneMonth(ctx, s.userID, snapshot)
	if err != nil {
		s.tracker.SaveFailed(snapshot.ID, err)
		s.status.Fail(err)
		s.logger.ErrorContext(ctx, "Autosave failed",
			log.FieldOperation, log.OpSaveOne,
			log.FieldMonthID, snapshot.ID,
			log.FieldRevision, rev,
			log.FieldError, err)
		return
	}

	current := s.tracker.SaveSucceeded(snapshot.ID, rev)
	if res.ExpenseErr != nil {
		// Month row is safe; remember the month so the retry loop saves it again.
		s.tracker.SaveFailed(snapshot.ID, res.ExpenseErr)
	}
	s.status.Succeed()
	s.logger.DebugContext(ctx, "Autosave finished",
		log.FieldOperation, log.OpSaveOne,
		log.FieldMonthID, snapshot.ID,
		log.FieldRevision, rev,
		"current", current)

	if s.cfg.Publisher != nil && res.ExpenseErr == nil {
		if err := s.cfg.Publisher.PublishMonthSynced(ctx, s.userID, snapshot.ID); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish month synced event",
				log.FieldOperation, log.OpPublish,
				log.FieldMonthID, snapshot.ID,
				log.FieldError, err)
		}
	}
}

// DeleteMonth cancels the month's pending save and removes it remotely and
// in memory. A month never saved remotely is simply dropped. The month stays
// readable but rejects edits while the remote delete runs.
func (s *Session) DeleteMonth(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.months[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMonthNotFound, id)
	}
	if _, busy := s.deleting[id]; busy {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMonthDeleting, id)
	}
	s.deleting[id] = struct{}{}
	hadPending := s.scheduler.Cancel(id)
	s.mu.Unlock()

	// A save that already fired must land before the delete, not after it.
	s.scheduler.WaitKey(id)
	err := s.syncer.DeleteMonth(ctx, s.userID, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deleting, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		if _, ok := s.months[id]; ok && hadPending && !s.closed {
			s.scheduleLocked(id)
		}
		return err
	}
	delete(s.months, id)
	s.tracker.Forget(id)
	s.cfg.Totals.DeletePrefix(s.totalsKey(id))
	return nil
}

// RetryFailed schedules a save for every month whose last save failed or
// that is not synced, skipping months with a save already pending.
func (s *Session) RetryFailed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	seen := make(map[string]struct{})
	n := 0
	for _, id := range append(s.tracker.Failed(), s.tracker.Unsaved()...) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := s.months[id]; !ok || s.scheduler.Pending(id) {
			continue
		}
		if _, busy := s.deleting[id]; busy {
			continue
		}
		s.scheduleLocked(id)
		n++
	}
	return n
}

// Flush runs every pending save now and waits for in-flight ones.
func (s *Session) Flush() int {
	n := s.scheduler.FlushAll()
	s.scheduler.Wait()
	return n
}

// Close flushes pending saves, stops autosave and clears the collection.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	flushed := s.Flush()
	s.scheduler.Stop()
	s.status.Stop()

	s.mu.Lock()
	for id := range s.months {
		s.cfg.Totals.DeletePrefix(s.totalsKey(id))
	}
	s.months = make(map[string]core.Month)
	s.tracker.Reset()
	s.mu.Unlock()

	s.logger.Info("Session closed", "flushed", flushed)
}
