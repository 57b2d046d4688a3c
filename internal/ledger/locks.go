package ledger

import (
	"slices"
	"sync"
)

// lockTable hands out exclusive per-account locks. Locks for several accounts
// are always taken in ascending id order, so two operations touching the same
// pair of accounts can never wait on each other in a cycle.
type lockTable struct {
	mu    sync.Mutex
	locks map[uint]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[uint]*accountLock)}
}

// acquire locks every distinct id and returns a function that releases them.
func (t *lockTable) acquire(ids ...uint) (release func()) {
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	held := make([]*accountLock, 0, len(ordered))
	for _, id := range ordered {
		l := t.ref(id)
		l.mu.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			t.unref(ordered[i])
		}
	}
}

// with runs fn while holding the locks for ids and releases them when fn
// returns or panics.
func (t *lockTable) with(ids []uint, fn func() error) error {
	release := t.acquire(ids...)
	defer release()
	return fn()
}

func (t *lockTable) ref(id uint) *accountLock {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[id]
	if !ok {
		l = &accountLock{}
		t.locks[id] = l
	}
	l.refs++
	return l
}

func (t *lockTable) unref(id uint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l := t.locks[id]
	l.refs--
	if l.refs == 0 {
		delete(t.locks, id)
	}
}

// size reports how many accounts currently have a lock entry.
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
