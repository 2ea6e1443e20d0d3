package match

import "sync"

// KeyedMutex serializes work per reservation id. The engine itself is
// lock-free; callers running FindMatches concurrently for the same
// reservation use this to avoid racing status writes.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[int64]*lockEntry)}
}

func (k *KeyedMutex) Lock(id int64) {
	k.mu.Lock()
	e, ok := k.locks[id]
	if !ok {
		e = &lockEntry{}
		k.locks[id] = e
	}
	e.refs++
	k.mu.Unlock()
	e.mu.Lock()
}

func (k *KeyedMutex) Unlock(id int64) {
	k.mu.Lock()
	e, ok := k.locks[id]
	if !ok {
		k.mu.Unlock()
		panic("keyedmutex: unlock of unheld id")
	}
	e.refs--
	if e.refs == 0 {
		delete(k.locks, id)
	}
	k.mu.Unlock()
	e.mu.Unlock()
}
