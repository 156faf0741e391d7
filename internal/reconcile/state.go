package reconcile

import "sync"

// State is a month's persistence lifecycle position.
type State int

const (
	// LocalOnly months were created in the session and never saved.
	LocalOnly State = iota
	// Synced months match the last successful save.
	Synced
	// SyncedDirty months carry local changes not yet saved.
	SyncedDirty
)

func (s State) String() string {
	switch s {
	case LocalOnly:
		return "local_only"
	case Synced:
		return "synced"
	case SyncedDirty:
		return "synced_dirty"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type entry struct {
	state    State
	revision uint64
	lastErr  error
}

// Tracker follows the state of every month in a session. Each mutation bumps
// the month's revision; a save only marks the month Synced when no mutation
// happened after the snapshot it wrote.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]*entry)}
}

func (t *Tracker) get(id string) *entry {
	e, ok := t.entries[id]
	if !ok {
		e = &entry{state: LocalOnly}
		t.entries[id] = e
	}
	return e
}

// Created registers a month that exists only locally.
func (t *Tracker) Created(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = &entry{state: LocalOnly}
}

// Loaded registers a month read from the remote store.
func (t *Tracker) Loaded(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = &entry{state: Synced}
}

// Mutated records a local change and returns the new revision.
func (t *Tracker) Mutated(id string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.get(id)
	e.revision++
	if e.state == Synced {
		e.state = SyncedDirty
	}
	return e.revision
}

// SaveStarted returns the revision a save reading the month now will write.
func (t *Tracker) SaveStarted(id string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.get(id).revision
}

// SaveSucceeded marks the month Synced if rev is still current, otherwise
// SyncedDirty. It reports whether the month is now Synced.
func (t *Tracker) SaveSucceeded(id string, rev uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return false
	}
	e.lastErr = nil
	if e.revision == rev {
		e.state = Synced
		return true
	}
	e.state = SyncedDirty
	return false
}

// SaveFailed keeps the current state and remembers err for retry.
func (t *Tracker) SaveFailed(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok {
		e.lastErr = err
	}
}

// Forget drops a deleted month.
func (t *Tracker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// Reset drops every month.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*entry)
}

func (t *Tracker) State(id string) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return LocalOnly, false
	}
	return e.state, true
}

func (t *Tracker) Revision(id string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok {
		return e.revision
	}
	return 0
}

// Failed returns the ids whose last save failed, sorted.
func (t *Tracker) Failed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	failed := make(map[string]struct{})
	for id, e := range t.entries {
		if e.lastErr != nil {
			failed[id] = struct{}{}
		}
	}
	return sortedKeys(failed)
}

// Unsaved returns the ids that are not Synced, sorted.
func (t *Tracker) Unsaved() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	pending := make(map[string]struct{})
	for id, e := range t.entries {
		if e.state != Synced {
			pending[id] = struct{}{}
		}
	}
	return sortedKeys(pending)
}
