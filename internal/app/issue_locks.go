package app

import "sync"

// issueLocks serializes work on one issue while letting different issues proceed in parallel.
// Entries are reference counted and dropped once no goroutine holds or waits on them.
type issueLocks struct {
	mu    sync.Mutex
	locks map[string]*issueLock
}

type issueLock struct {
	mu   sync.Mutex
	refs int
}

func newIssueLocks() *issueLocks {
	return &issueLocks{locks: make(map[string]*issueLock)}
}

// Lock blocks until the caller holds issueID's lock and returns the release func.
func (l *issueLocks) Lock(issueID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[issueID]
	if !ok {
		entry = &issueLock{}
		l.locks[issueID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, issueID)
		}
		l.mu.Unlock()
	}
}

func (l *issueLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
