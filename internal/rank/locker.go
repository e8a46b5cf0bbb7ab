package rank

import "sync"

// Locker serializes rank mutations per scope. Rank computation reads sibling
// state, so insertion uses this coarser lock rather than the per-task scope
// that assignment mutations need.
type Locker struct {
	mu     sync.Mutex
	scopes map[Scope]*sync.Mutex
}

// NewLocker constructs an empty scope lock registry.
func NewLocker() *Locker {
	return &Locker{scopes: make(map[Scope]*sync.Mutex)}
}

// Lock acquires the mutex for the scope and returns its release function.
func (l *Locker) Lock(scope Scope) func() {
	l.mu.Lock()
	m, ok := l.scopes[scope]
	if !ok {
		m = &sync.Mutex{}
		l.scopes[scope] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
