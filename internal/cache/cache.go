// Package cache stores raw upstream response bodies keyed by request URL.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Store is a byte-oriented response cache. A miss is reported with ok=false
// and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Options selects and configures a Store.
type Options struct {
	Backend    string // memory, valkey, duckdb or none
	Size       int
	ValkeyAddr string
	DataDir    string
}

// Open builds the Store named by opts.Backend. "none" and "" return a nil
// Store, which callers treat as caching disabled.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemory(opts.Size), nil
	case "valkey":
		return NewValkey(opts.ValkeyAddr)
	case "duckdb":
		return NewDuckDB(opts.DataDir)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
