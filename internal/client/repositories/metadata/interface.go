// Package metadata persists the client's small key/value state: vault
// secrets, the sealed identity, rescan requests and channel tombstones.
package metadata

import (
	"context"
)

// Repository is a byte-valued key/value store. Get returns (nil, nil) for a
// missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	ListPrefix(ctx context.Context, prefix string) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
