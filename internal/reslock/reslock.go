// Package reslock provides a process-local, per-resource-id lock so a single
// service instance serializes mutations to one resource when strict
// change-event ordering is required (spec §5). It coordinates nothing across
// processes; the KV store's atomic-add is what keeps shard counts correct
// under true concurrency.
package reslock

import "sync"

// Striped is a fixed set of mutexes; resource ids hash onto one of them, so
// unrelated resources don't contend while a single resource id always maps to
// the same lock.
type Striped struct {
	locks []sync.Mutex
}

// New creates a Striped lock table with n stripes.
func New(n int) *Striped {
	if n <= 0 {
		n = 64
	}
	return &Striped{locks: make([]sync.Mutex, n)}
}

func (s *Striped) stripe(rid string) *sync.Mutex {
	var h uint32 = 2166136261
	for i := 0; i < len(rid); i++ {
		h ^= uint32(rid[i])
		h *= 16777619
	}
	return &s.locks[h%uint32(len(s.locks))]
}

// Lock acquires the stripe for rid and returns an unlock func.
func (s *Striped) Lock(rid string) func() {
	m := s.stripe(rid)
	m.Lock()
	return m.Unlock
}
