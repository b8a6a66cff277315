package kv

import (
	"context"
	"sync"
	"time"
)

// MemStore is an in-process, mutex-guarded fake of Store, grounded on the
// teacher's mock-collaborator pattern (recorded state behind a single lock,
// no network or disk). It is meant for fast unit tests of the domain
// packages, not for production use: TTLs are honored on read but never swept
// in the background.
type MemStore struct {
	mu      sync.Mutex
	values  map[string][]byte
	expiry  map[string]time.Time
	lists   map[string][]string
	sets    map[string]map[string]struct{}
	setSeq  map[string][]string // preserves insertion order for SetMembers
	counter map[string]int64
}

// NewMemStore returns an empty MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		values:  make(map[string][]byte),
		expiry:  make(map[string]time.Time),
		lists:   make(map[string][]string),
		sets:    make(map[string]map[string]struct{}),
		setSeq:  make(map[string][]string),
		counter: make(map[string]int64),
	}
}

func (s *MemStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deadline, ok := s.expiry[key]; ok && time.Now().After(deadline) {
		delete(s.values, key)
		delete(s.expiry, key)
		return nil, ErrNotFound
	}
	v, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	if ttl > 0 {
		s.expiry[key] = time.Now().Add(ttl)
	} else {
		delete(s.expiry, key)
	}
	return nil
}

func (s *MemStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	delete(s.expiry, key)
	return nil
}

func (s *MemStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deadline, ok := s.expiry[key]; ok && time.Now().After(deadline) {
		delete(s.values, key)
		delete(s.expiry, key)
		return false, nil
	}
	_, ok := s.values[key]
	return ok, nil
}

func (s *MemStore) ListAdd(ctx context.Context, key, value string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append(s.lists[key], value)
	return len(s.lists[key]), nil
}

func (s *MemStore) ListRange(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lists[key]...), nil
}

func (s *MemStore) ListDeleteItem(ctx context.Context, key, value string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.lists[key]
	for i, v := range items {
		if v == value {
			s.lists[key] = append(items[:i], items[i+1:]...)
			return i, true, nil
		}
	}
	return 0, false, nil
}

func (s *MemStore) SetAdd(ctx context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	if _, exists := set[member]; !exists {
		set[member] = struct{}{}
		s.setSeq[key] = append(s.setSeq[key], member)
	}
	return nil
}

func (s *MemStore) SetRemove(ctx context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets[key], member)
	seq := s.setSeq[key]
	for i, v := range seq {
		if v == member {
			s.setSeq[key] = append(seq[:i], seq[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemStore) SetMembers(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.setSeq[key]...), nil
}

func (s *MemStore) SetIntersect(ctx context.Context, keys ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(keys) == 0 {
		return nil, nil
	}
	var result []string
	for _, member := range s.setSeq[keys[0]] {
		inAll := true
		for _, key := range keys[1:] {
			if _, ok := s.sets[key][member]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			result = append(result, member)
		}
	}
	return result, nil
}

func (s *MemStore) AtomicAdd(ctx context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter[key] += delta
	return s.counter[key], nil
}

func (s *MemStore) Close() error { return nil }
