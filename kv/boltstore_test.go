package kv

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestBolt(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "decs.db")
	s, err := OpenBoltStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStoreGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestBolt(t)

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoltStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := openTestBolt(t)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoltStoreListAndSet(t *testing.T) {
	ctx := context.Background()
	s := openTestBolt(t)

	length, err := s.ListAdd(ctx, "collection", "a")
	require.NoError(t, err)
	assert.Equal(t, 1, length)
	length, err = s.ListAdd(ctx, "collection", "b")
	require.NoError(t, err)
	assert.Equal(t, 2, length)

	items, err := s.ListRange(ctx, "collection")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, items)

	idx, ok, err := s.ListDeleteItem(ctx, "collection", "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)

	require.NoError(t, s.SetAdd(ctx, "members", "e1"))
	require.NoError(t, s.SetAdd(ctx, "members", "e2"))
	members, err := s.SetMembers(ctx, "members")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"e1", "e2"}, members)

	require.NoError(t, s.SetRemove(ctx, "members", "e1"))
	members, err = s.SetMembers(ctx, "members")
	require.NoError(t, err)
	assert.Equal(t, []string{"e2"}, members)
}

func TestBoltStoreSetIntersect(t *testing.T) {
	ctx := context.Background()
	s := openTestBolt(t)

	for _, e := range []string{"e1", "e2", "e3"} {
		require.NoError(t, s.SetAdd(ctx, "position", e))
	}
	for _, e := range []string{"e2", "e3"} {
		require.NoError(t, s.SetAdd(ctx, "velocity", e))
	}

	common, err := s.SetIntersect(ctx, "position", "velocity")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"e2", "e3"}, common)
}

func TestBoltStoreAtomicAdd(t *testing.T) {
	ctx := context.Background()
	s := openTestBolt(t)

	v, err := s.AtomicAdd(ctx, "counter", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	v, err = s.AtomicAdd(ctx, "counter", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
}
