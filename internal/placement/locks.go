package placement

import "sync"

// destLocks serializes placements that target the same destination. It is
// process-wide because every batch builds its own Engine and the daemon
// runs batches concurrently.
var destLocks = newLockTable()

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

type lockTable struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*lockEntry)}
}

// lock blocks until path is free and returns the matching unlock. Entries
// are dropped once no caller holds or waits for them.
func (t *lockTable) lock(path string) func() {
	t.mu.Lock()
	entry, ok := t.locks[path]
	if !ok {
		entry = &lockEntry{}
		t.locks[path] = entry
	}
	entry.refs++
	t.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		t.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(t.locks, path)
		}
		t.mu.Unlock()
	}
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
