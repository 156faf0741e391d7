package session

import (
	"sync"
	"time"

	"budget/internal/debounce"
)

// SaveState is the user-visible save indicator.
type SaveState int

const (
	StatusIdle SaveState = iota
	StatusSaving
	StatusSaved
	StatusError
)

func (s SaveState) String() string {
	switch s {
	case StatusSaving:
		return "saving"
	case StatusSaved:
		return "saved"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

func (s SaveState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Status is a point-in-time view of the indicator.
type Status struct {
	State SaveState `json:"state"`
	Error string    `json:"error,omitempty"`
	Since time.Time `json:"since"`
}

// SaveStatus moves idle -> saving -> saved -> idle, or saving -> error -> idle.
// The saved and error states fall back to idle after their reset delays.
type SaveStatus struct {
	clock      debounce.Clock
	savedReset time.Duration
	errorReset time.Duration

	mu       sync.Mutex
	state    SaveState
	err      error
	since    time.Time
	inflight int
	gen      uint64
	timer    debounce.Timer
}

func NewSaveStatus(clock debounce.Clock, savedReset, errorReset time.Duration) *SaveStatus {
	if clock == nil {
		clock = debounce.RealClock()
	}
	return &SaveStatus{
		clock:      clock,
		savedReset: savedReset,
		errorReset: errorReset,
		since:      clock.Now(),
	}
}

func (s *SaveStatus) setLocked(state SaveState, err error) {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.state, s.err, s.since = state, err, s.clock.Now()
}

func (s *SaveStatus) armResetLocked(after time.Duration) {
	gen := s.gen
	s.timer = s.clock.AfterFunc(after, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen == gen {
			s.setLocked(StatusIdle, nil)
		}
	})
}

// Begin marks a save as started.
func (s *SaveStatus) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight++
	s.setLocked(StatusSaving, nil)
}

// Succeed marks a save as finished. While other saves are in flight the
// indicator stays on saving.
func (s *SaveStatus) Succeed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done()
	if s.inflight > 0 {
		return
	}
	s.setLocked(StatusSaved, nil)
	s.armResetLocked(s.savedReset)
}

// Fail shows err until the error reset delay passes.
func (s *SaveStatus) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done()
	s.setLocked(StatusError, err)
	s.armResetLocked(s.errorReset)
}

func (s *SaveStatus) done() {
	if s.inflight > 0 {
		s.inflight--
	}
}

func (s *SaveStatus) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{State: s.state, Since: s.since}
	if s.err != nil {
		st.Error = s.err.Error()
	}
	return st
}

// Stop cancels any pending reset.
func (s *SaveStatus) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
