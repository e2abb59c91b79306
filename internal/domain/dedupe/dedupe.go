// Package dedupe tracks idempotency keys for pull requests.
package dedupe

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/okian/gachasim/internal/domain/pull"
)

const defaultMaxSize = 10_000

// Deduper remembers pull receipts by idempotency key so a retried request
// is answered without charging again.
type Deduper interface {
	// Lookup returns the receipt stored for key within scope.
	Lookup(ctx context.Context, scope, key string) (pull.Receipt, bool)

	// Remember stores the receipt of a committed pull.
	Remember(ctx context.Context, scope, key string, r pull.Receipt)

	// Forget drops every stored key. Used when the session is reset or
	// replaced by an import.
	Forget(ctx context.Context)

	Size() int64
}

// inMemoryDeduper implements Deduper on a bounded, optionally expiring LRU.
type inMemoryDeduper struct {
	maxSize int
	ttl     time.Duration
	lru     *expirable.LRU[string, pull.Receipt]
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}

	// Apply all options
	for _, opt := range opts {
		opt(d)
	}

	d.lru = expirable.NewLRU[string, pull.Receipt](d.maxSize, nil, d.ttl)
	return d
}

func cacheKey(scope, key string) string {
	return scope + "\x00" + key
}

func (d *inMemoryDeduper) Lookup(_ context.Context, scope, key string) (pull.Receipt, bool) {
	if key == "" {
		return pull.Receipt{}, false
	}
	return d.lru.Get(cacheKey(scope, key))
}

func (d *inMemoryDeduper) Remember(_ context.Context, scope, key string, r pull.Receipt) {
	if key == "" {
		return
	}
	d.lru.Add(cacheKey(scope, key), r)
}

func (d *inMemoryDeduper) Forget(_ context.Context) {
	d.lru.Purge()
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return int64(d.lru.Len())
}
