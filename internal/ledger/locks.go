package ledger

import "sync"

// actorLocks hands out one mutex per actor id and forgets it once no
// goroutine holds or waits on it.
type actorLocks struct {
	mu    sync.Mutex
	locks map[string]*actorLock
}

type actorLock struct {
	sync.Mutex
	refs int
}

func newActorLocks() *actorLocks {
	return &actorLocks{locks: make(map[string]*actorLock)}
}

func (a *actorLocks) lock(actorID string) (unlock func()) {
	a.mu.Lock()
	l, ok := a.locks[actorID]
	if !ok {
		l = &actorLock{}
		a.locks[actorID] = l
	}
	l.refs++
	a.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		a.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(a.locks, actorID)
		}
		a.mu.Unlock()
	}
}
