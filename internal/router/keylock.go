package router

import "sync"

// keyLock serializes work per key. The engine's read-modify-write cycle over
// the stores is not atomic, so concurrent webhooks for the same user must
// queue behind each other. Locks are never removed; the user population is
// small and bounded by the dentist roster.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*sync.Mutex)}
}

func (k *keyLock) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
