package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketValues = []byte("values")
	bucketExpiry = []byte("expiry")
	bucketLists  = []byte("lists")
	bucketSets   = []byte("sets")
)

// BoltStore implements Store on top of a local bbolt file, for single-process
// deployments and for tests that want a real on-disk engine without a Redis
// dependency (the teacher's db/bolt.DB wraps the same library for its own
// on-disk needs; this type builds the list/set/atomic-counter semantics the
// KV schema requires on top of bbolt's plain key-value buckets).
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens or creates the bbolt file at path and prepares its
// buckets.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("kv: open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketValues, bucketExpiry, bucketLists, bucketSets} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kv: init buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if expired(tx, key) {
			return nil
		}
		v := tx.Bucket(bucketValues).Get([]byte(key))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *BoltStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketValues).Put([]byte(key), value); err != nil {
			return err
		}
		eb := tx.Bucket(bucketExpiry)
		if ttl <= 0 {
			return eb.Delete([]byte(key))
		}
		deadline := time.Now().Add(ttl).Format(time.RFC3339Nano)
		return eb.Put([]byte(key), []byte(deadline))
	})
}

func (s *BoltStore) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketValues).Delete([]byte(key)); err != nil {
			return err
		}
		return tx.Bucket(bucketExpiry).Delete([]byte(key))
	})
}

func (s *BoltStore) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bolt.Tx) error {
		if expired(tx, key) {
			return nil
		}
		exists = tx.Bucket(bucketValues).Get([]byte(key)) != nil
		return nil
	})
	return exists, err
}

// expired reports whether key has a recorded expiry in the past. Callers
// hold tx already; stale entries are reaped lazily on the next Set/Delete
// touching that key rather than via a background sweep.
func expired(tx *bolt.Tx, key string) bool {
	raw := tx.Bucket(bucketExpiry).Get([]byte(key))
	if raw == nil {
		return false
	}
	deadline, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return false
	}
	return time.Now().After(deadline)
}

func loadStrings(tx *bolt.Tx, bucket []byte, key string) ([]string, error) {
	raw := tx.Bucket(bucket).Get([]byte(key))
	if raw == nil {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("kv: decode %s: %w", key, err)
	}
	return items, nil
}

func storeStrings(tx *bolt.Tx, bucket []byte, key string, items []string) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), raw)
}

func (s *BoltStore) ListAdd(ctx context.Context, key, value string) (int, error) {
	var length int
	err := s.db.Update(func(tx *bolt.Tx) error {
		items, err := loadStrings(tx, bucketLists, key)
		if err != nil {
			return err
		}
		items = append(items, value)
		length = len(items)
		return storeStrings(tx, bucketLists, key, items)
	})
	return length, err
}

func (s *BoltStore) ListRange(ctx context.Context, key string) ([]string, error) {
	var items []string
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		items, err = loadStrings(tx, bucketLists, key)
		return err
	})
	return items, err
}

func (s *BoltStore) ListDeleteItem(ctx context.Context, key, value string) (int, bool, error) {
	var idx = -1
	err := s.db.Update(func(tx *bolt.Tx) error {
		items, err := loadStrings(tx, bucketLists, key)
		if err != nil {
			return err
		}
		for i, v := range items {
			if v == value {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil
		}
		items = append(items[:idx], items[idx+1:]...)
		return storeStrings(tx, bucketLists, key, items)
	})
	if err != nil {
		return 0, false, err
	}
	if idx < 0 {
		return 0, false, nil
	}
	return idx, true, nil
}

func (s *BoltStore) SetAdd(ctx context.Context, key, member string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		items, err := loadStrings(tx, bucketSets, key)
		if err != nil {
			return err
		}
		for _, v := range items {
			if v == member {
				return nil
			}
		}
		items = append(items, member)
		return storeStrings(tx, bucketSets, key, items)
	})
}

func (s *BoltStore) SetRemove(ctx context.Context, key, member string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		items, err := loadStrings(tx, bucketSets, key)
		if err != nil {
			return err
		}
		out := items[:0]
		for _, v := range items {
			if v != member {
				out = append(out, v)
			}
		}
		return storeStrings(tx, bucketSets, key, out)
	})
}

func (s *BoltStore) SetMembers(ctx context.Context, key string) ([]string, error) {
	var items []string
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		items, err = loadStrings(tx, bucketSets, key)
		return err
	})
	return items, err
}

func (s *BoltStore) SetIntersect(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	var result []string
	err := s.db.View(func(tx *bolt.Tx) error {
		first, err := loadStrings(tx, bucketSets, keys[0])
		if err != nil {
			return err
		}
		counts := make(map[string]int, len(first))
		for _, v := range first {
			counts[v] = 1
		}
		for _, key := range keys[1:] {
			members, err := loadStrings(tx, bucketSets, key)
			if err != nil {
				return err
			}
			present := make(map[string]bool, len(members))
			for _, v := range members {
				present[v] = true
			}
			for v, c := range counts {
				if present[v] {
					counts[v] = c + 1
				}
			}
		}
		for v, c := range counts {
			if c == len(keys) {
				result = append(result, v)
			}
		}
		return nil
	})
	return result, err
}

func (s *BoltStore) AtomicAdd(ctx context.Context, key string, delta int64) (int64, error) {
	var newValue int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketValues)
		raw := b.Get([]byte(key))
		var current int64
		if raw != nil {
			if err := json.Unmarshal(raw, &current); err != nil {
				return fmt.Errorf("kv: decode counter %s: %w", key, err)
			}
		}
		newValue = current + delta
		out, err := json.Marshal(newValue)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), out)
	})
	return newValue, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
