package orchestrator

import "sync"

// userLocks serializes request processing per user. Trait updates, dedup
// checks, history appends and ledger deductions are all read-then-write
// against the store; without this two concurrent requests for the same user
// could lose updates or double-deduct credits.
type userLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*sync.Mutex)
	}
	um, ok := l.m[userID]
	if !ok {
		um = &sync.Mutex{}
		l.m[userID] = um
	}
	l.mu.Unlock()

	um.Lock()
	return um.Unlock
}
