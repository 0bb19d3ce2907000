package thread

import (
	"sync"
)

// Locker serialises work on the same thread while letting different
// threads run concurrently.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocker() *Locker {
	return &Locker{
		locks: make(map[string]*threadLock),
	}
}

// Lock blocks until threadID is free and returns the func that releases it.
func (l *Locker) Lock(threadID string) (unlock func()) {
	l.mu.Lock()
	lock, ok := l.locks[threadID]
	if !ok {
		lock = &threadLock{}
		l.locks[threadID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			lock.mu.Unlock()

			l.mu.Lock()
			defer l.mu.Unlock()
			lock.refs--
			if lock.refs == 0 {
				delete(l.locks, threadID)
			}
		})
	}
}

// Len reports how many threads are locked or waited on.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
