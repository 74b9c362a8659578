// Package cache stores serialized extraction results keyed by document
// content and options.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a byte cache with per-entry expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// DocumentKey hashes the file at path together with parts that alter the
// result, such as the options of the run.
func DocumentKey(path string, parts ...string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: hashing the caller's document
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash document: %w", err)
	}
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MemoryStore is an in-process LRU Store. When full, the least recently
// used entry is evicted. Expired entries are dropped when read.
type MemoryStore struct {
	lru *lru.Cache[string, entry]
	now func() time.Time
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore returns a store holding at most maxSize entries
// (default 1000).
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 1000
	}
	c, _ := lru.New[string, entry](maxSize) // only fails for a non-positive size
	return &MemoryStore{lru: c, now: time.Now}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := s.lru.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		s.lru.Remove(key)
		return nil, ErrMiss
	}
	return slices.Clone(e.value), nil
}

// Set implements Store. A non-positive ttl keeps the entry until evicted.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: slices.Clone(value)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.lru.Add(key, e)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	return s.lru.Len()
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.lru.Purge()
	return nil
}

// Key joins key parts with ':'.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
