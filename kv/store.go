// Package kv defines the key-value store contract the decs services need
// (spec §6's KV schema and capability list) and provides two concrete
// backends: a Redis/DragonflyDB client for production, and a bbolt-backed
// client for single-process/dev deployments and deterministic tests.
//
// The KV store itself is an external collaborator (spec §1): this package
// only specifies and implements the client contract, never a server.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when key has no stored value.
var ErrNotFound = errors.New("kv: key not found")

// Store is the capability surface every decs service needs from the shared
// key-value store: get/set with optional TTL, delete, exists, ordered lists
// (for collections), sets (for membership), set-intersect (for frame
// dispatch), and atomic-add (for shard/collection counters).
type Store interface {
	// Get returns the raw value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value at key. ttl == 0 means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Exists reports whether key has a stored value.
	Exists(ctx context.Context, key string) (bool, error)

	// ListAdd appends value to the ordered list at key and returns the list's
	// new length (so index = length-1), atomically with respect to other
	// ListAdd calls on the same key.
	ListAdd(ctx context.Context, key, value string) (length int, err error)
	// ListRange returns every element of the ordered list at key, in order.
	ListRange(ctx context.Context, key string) ([]string, error)
	// ListDeleteItem removes the first occurrence of value from the ordered
	// list at key and reports the index it was removed from, or ok == false
	// if value was not present.
	ListDeleteItem(ctx context.Context, key, value string) (idx int, ok bool, err error)

	// SetAdd adds member to the set at key.
	SetAdd(ctx context.Context, key, member string) error
	// SetRemove removes member from the set at key.
	SetRemove(ctx context.Context, key, member string) error
	// SetMembers returns every member of the set at key.
	SetMembers(ctx context.Context, key string) ([]string, error)
	// SetIntersect returns the intersection of the sets at every given key.
	// An empty keys slice yields an empty result.
	SetIntersect(ctx context.Context, keys ...string) ([]string, error)

	// AtomicAdd adds delta to the integer counter at key and returns its new
	// value. The key is created (starting from 0) if absent.
	AtomicAdd(ctx context.Context, key string, delta int64) (int64, error)

	// Close releases any underlying connection or file handle.
	Close() error
}
