package service

import "sync"

// syncMap is a type-safe concurrent map guarded by a RWMutex.
type syncMap[K comparable, V any] struct {
	m  map[K]V
	mu sync.RWMutex
}

func newSyncMap[K comparable, V any]() *syncMap[K, V] {
	return &syncMap[K, V]{m: make(map[K]V)}
}

// LoadOrStore returns the existing value for the key if present.
// Otherwise, it stores and returns the given value.
func (sm *syncMap[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	sm.mu.RLock()
	actual, loaded = sm.m[key]
	sm.mu.RUnlock()
	if loaded {
		return actual, true
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	// Another goroutine may have stored between the two locks.
	if actual, loaded = sm.m[key]; loaded {
		return actual, true
	}
	sm.m[key] = value
	return value, false
}

// Len returns the number of items in the map.
func (sm *syncMap[K, V]) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.m)
}

// accountLocks serialises read-modify-write cycles per account.
// Locks live for the life of the process, one per account touched.
type accountLocks struct {
	locks *syncMap[string, *sync.Mutex]
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: newSyncMap[string, *sync.Mutex]()}
}

// Lock acquires the account's mutex and returns its release func.
func (a *accountLocks) Lock(accountID string) func() {
	mu, _ := a.locks.LoadOrStore(accountID, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}
