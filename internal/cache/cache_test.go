package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	_, err := s.Get(ctx, "absent")
	require.ErrorIs(t, err, ErrMiss)

	value := []byte(`{"text":"hello"}`)
	require.NoError(t, s.Set(ctx, "doc", value, time.Minute))
	value[0] = 'X'

	got, err := s.Get(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, `{"text":"hello"}`, string(got))
	require.NoError(t, s.Close())
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "short", []byte("a"), time.Second))
	require.NoError(t, s.Set(ctx, "forever", []byte("b"), 0))

	now = now.Add(2 * time.Second)
	_, err := s.Get(ctx, "short")
	require.ErrorIs(t, err, ErrMiss)
	_, err = s.Get(ctx, "forever")
	require.NoError(t, err)
}

func TestMemoryStoreEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	require.NoError(t, s.Set(ctx, "old", []byte("1"), time.Hour))
	require.NoError(t, s.Set(ctx, "used", []byte("2"), time.Minute))
	require.NoError(t, s.Set(ctx, "stale", []byte("3"), 0))
	assert.Equal(t, 2, s.Len())

	_, err := s.Get(ctx, "old")
	require.ErrorIs(t, err, ErrMiss)

	// Reading "used" makes "stale" the eviction candidate.
	_, err = s.Get(ctx, "used")
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "new", []byte("4"), time.Hour))

	_, err = s.Get(ctx, "stale")
	require.ErrorIs(t, err, ErrMiss)
	got, err := s.Get(ctx, "used")
	require.NoError(t, err)
	assert.Equal(t, "2", string(got))

	require.NoError(t, s.Set(ctx, "new", []byte("5"), time.Hour))
	assert.Equal(t, 2, s.Len())
}

func TestDocumentKey(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.pdf")
	require.NoError(t, os.WriteFile(a, []byte("same bytes"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("same bytes"), 0o600))

	ka, err := DocumentKey(a, "medium")
	require.NoError(t, err)
	kb, err := DocumentKey(b, "medium")
	require.NoError(t, err)
	kc, err := DocumentKey(a, "heavy")
	require.NoError(t, err)

	assert.Len(t, ka, 64)
	assert.Equal(t, ka, kb)
	assert.NotEqual(t, ka, kc)

	_, err = DocumentKey(filepath.Join(dir, "missing"))
	require.Error(t, err)

	assert.Equal(t, "result:abc", Key("result", "abc"))
}

func TestRedisStoreUnreachable(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	require.ErrorContains(t, err, "redis ping failed")
}
