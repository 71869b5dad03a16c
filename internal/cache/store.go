package cache

import (
	"context"
	"time"
)

// Store is a namespaced key/value cache with per-entry expiry.
type Store interface {
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Delete(ctx context.Context, namespace string, keys ...string) error
	DeleteNamespace(ctx context.Context, namespace string) error
}

func entryKey(namespace, key string) string {
	return namespace + ":" + key
}
