package ledger

import (
	"sync"
)

// locks serialises read-modify-write sequences per key. Entries are reference
// counted and discarded once no goroutine holds or waits on them.
type locks struct {
	held map[string]*entry
	sync.Mutex
}

type entry struct {
	refs int
	sync.Mutex
}

func newLocks() *locks {
	return &locks{
		held: map[string]*entry{},
	}
}

func (l *locks) lock(key string) func() {
	l.Lock()
	e, ok := l.held[key]
	if !ok {
		e = &entry{}
		l.held[key] = e
	}
	e.refs++
	l.Unlock()

	e.Lock()

	return func() {
		e.Unlock()

		l.Lock()
		if e.refs--; e.refs == 0 {
			delete(l.held, key)
		}
		l.Unlock()
	}
}

func (l *locks) size() int {
	l.Lock()
	defer l.Unlock()

	return len(l.held)
}
