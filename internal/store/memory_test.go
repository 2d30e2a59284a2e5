package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[[]string](0)

	_, ok, err := s.Get(ctx, "5511999990000")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "5511999990000", []string{"a", "b"}))
	got, ok, err := s.Get(ctx, "5511999990000")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	require.NoError(t, s.Set(ctx, "5511999990000", []string{"c"}))
	got, _, _ = s.Get(ctx, "5511999990000")
	assert.Equal(t, []string{"c"}, got, "set replaces the value wholesale")

	require.NoError(t, s.Delete(ctx, "5511999990000"))
	_, ok, _ = s.Get(ctx, "5511999990000")
	assert.False(t, ok)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 8, 10, 0, 0, 0, time.UTC)
	s := NewMemoryStore[string](time.Hour)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "u1", "COLLECTING_NAME"))
	require.NoError(t, s.Set(ctx, "u2", "INITIAL"))

	now = now.Add(59 * time.Minute)
	_, ok, _ := s.Get(ctx, "u1")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok, _ = s.Get(ctx, "u1")
	assert.False(t, ok, "entry should expire after ttl")

	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[int](0)
	require.NoError(t, s.Set(ctx, "a", 1))
	require.NoError(t, s.Set(ctx, "b", 2))
	require.NoError(t, s.Delete(ctx, "a"))

	got, ok, _ := s.Get(ctx, "b")
	assert.True(t, ok)
	assert.Equal(t, 2, got)
}

func TestKeyedBindings(t *testing.T) {
	ctx := context.Background()
	b := NewKeyedBindings(NewMemoryStore[string](0))

	_, ok, err := b.CustomerID(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Bind(ctx, "u1", "cus_000005"))
	id, ok, err := b.CustomerID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cus_000005", id)
}
