package memstore

import "sync"

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// KeyedStore is a concurrent map with a mutex per key.
// Unrelated keys never contend; lock entries are dropped once nobody holds or waits on them.
type KeyedStore[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]V
	locks   map[K]*keyLock
}

// New creates an empty store
func New[K comparable, V any]() *KeyedStore[K, V] {
	return &KeyedStore[K, V]{
		entries: make(map[K]V),
		locks:   make(map[K]*keyLock),
	}
}

// Lock acquires the key's lock and returns the function that releases it
func (s *KeyedStore[K, V]) Lock(key K) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			s.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(s.locks, key)
			}
			s.mu.Unlock()
		})
	}
}

func (s *KeyedStore[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok
}

func (s *KeyedStore[K, V]) Put(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
}

func (s *KeyedStore[K, V]) Delete(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	return v, ok
}

// Values returns a snapshot of every stored value in no particular order
func (s *KeyedStore[K, V]) Values() []V {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]V, 0, len(s.entries))
	for _, v := range s.entries {
		out = append(out, v)
	}
	return out
}

func (s *KeyedStore[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// heldLocks is the number of lock entries still tracked, for tests
func (s *KeyedStore[K, V]) heldLocks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
