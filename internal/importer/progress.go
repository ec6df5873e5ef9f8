package importer

// progress.go tracks how far a session has advanced.
//
// The counter itself is exact and monotonically non-decreasing: one unit
// when a row finishes validation and one when it receives a commit outcome
// (rows rejected at validation take their second unit immediately). Only
// the notification frequency to listeners is allowed to coalesce; slow
// listeners skip updates, they never see the counter move backwards.

import "sync"

// Progress is a point-in-time snapshot of an import session.
type Progress struct {
	SessionID     string       `json:"sessionId"`
	State         SessionState `json:"state"`
	Processed     int          `json:"processed"`
	Total         int          `json:"total"`
	TotalRows     int          `json:"totalRows"`
	RowsValidated int          `json:"rowsValidated"`
	RowsCommitted int          `json:"rowsCommitted"`
	RowsFailed    int          `json:"rowsFailed"`
}

// Ratio returns progress in [0, 1]. It is exactly 1 at terminal states.
func (p Progress) Ratio() float64 {
	if p.Total <= 0 {
		if p.State.Terminal() {
			return 1
		}
		return 0
	}
	return float64(p.Processed) / float64(p.Total)
}

// Percent returns progress as an integer percentage (0-100).
func (p Progress) Percent() int {
	return int(p.Ratio() * 100)
}

// progressTracker owns the counter and the listener set for one session.
type progressTracker struct {
	mu        sync.Mutex
	current   Progress
	listeners []chan Progress
	closed    bool
}

func newProgressTracker(sessionID string) *progressTracker {
	return &progressTracker{
		current: Progress{SessionID: sessionID, State: StateCreated},
	}
}

// update applies fn to the snapshot under the lock and notifies listeners.
// fn must never decrease Processed.
func (t *progressTracker) update(fn func(*Progress)) {
	t.mu.Lock()
	fn(&t.current)
	snapshot := t.current
	listeners := t.listeners
	t.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- snapshot:
		default:
			// Listener is slow, skip this update
		}
	}
}

// finish forces the counter to completion and closes all listeners.
func (t *progressTracker) finish(state SessionState) {
	t.mu.Lock()
	t.current.State = state
	t.current.Processed = t.current.Total
	snapshot := t.current
	listeners := t.listeners
	t.listeners = nil
	t.closed = true
	t.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- snapshot:
		default:
		}
		close(ch)
	}
}

// subscribe registers a listener and immediately delivers the current
// snapshot. The channel is closed when the session reaches a terminal state.
func (t *progressTracker) subscribe() <-chan Progress {
	ch := make(chan Progress, 16)

	t.mu.Lock()
	// The initial send happens under the lock so finish cannot close
	// the channel with this send still pending. The buffer makes it
	// non-blocking.
	ch <- t.current
	if t.closed {
		t.mu.Unlock()
		close(ch)
		return ch
	}
	t.listeners = append(t.listeners, ch)
	t.mu.Unlock()
	return ch
}

// snapshot returns the current progress without blocking.
func (t *progressTracker) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}
