package store

import (
	"context"
	"errors"
	"strings"
)

const (
	RepositoryBackendMemory = "memory"
	RepositoryBackendBbolt  = "bbolt"
)

// KVStore is a flat byte-valued key space. A missing key is reported with
// ok=false, never as an error.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Backend() string
	Close() error
}

var ErrKeyRequired = errors.New("key is required")

// Open returns a bbolt store at path, or an in-memory store when path is
// empty.
func Open(path string) (KVStore, error) {
	if strings.TrimSpace(path) == "" {
		return NewMemoryKV(), nil
	}
	return OpenBoltKV(path)
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrKeyRequired
	}
	return key, nil
}
