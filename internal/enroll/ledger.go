package enroll

import "sync"

// Ledger is the in-memory record of (email, course node) pairs successfully
// enrolled during this run. It is the sole de-duplication guard: it is
// consulted before every submission and mutated only on submission success.
// It is not persisted and does not consult upstream enrollment state.
//
// User pipelines run in parallel, so every read-modify-write holds the lock.
type Ledger struct {
	mu    sync.Mutex
	users map[string]map[string]struct{}
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{users: make(map[string]map[string]struct{})}
}

// Ensure creates an empty course set for email if none exists. An existing
// set is never overwritten: earlier batches may already have recorded
// enrollments for a repeated email.
func (l *Ledger) Ensure(email string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.users[email]; !ok {
		l.users[email] = make(map[string]struct{})
	}
}

// Has reports whether this run already enrolled email into nodeID.
func (l *Ledger) Has(email, nodeID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.users[email][nodeID]
	return ok
}

// Record marks (email, nodeID) as enrolled. Call only after the submitter
// reported success.
func (l *Ledger) Record(email, nodeID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.users[email]
	if !ok {
		set = make(map[string]struct{})
		l.users[email] = set
	}
	set[nodeID] = struct{}{}
}

// Count returns the number of recorded enrollments for email.
func (l *Ledger) Count(email string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users[email])
}
