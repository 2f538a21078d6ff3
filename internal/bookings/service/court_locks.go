package service

import "sync"

// courtLocks serialises slot checks per court inside one process. Entries are
// reference counted and removed once no goroutine holds or waits on them.
type courtLocks struct {
	mu    sync.Mutex
	locks map[string]*courtLock
}

type courtLock struct {
	mu   sync.Mutex
	refs int
}

func newCourtLocks() *courtLocks {
	return &courtLocks{locks: make(map[string]*courtLock)}
}

func (c *courtLocks) Lock(courtID string) func() {
	c.mu.Lock()
	l, ok := c.locks[courtID]
	if !ok {
		l = &courtLock{}
		c.locks[courtID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			c.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(c.locks, courtID)
			}
			c.mu.Unlock()
		})
	}
}

func (c *courtLocks) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}
