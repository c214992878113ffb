// Interface for writing registry store adapters to exohost
package registrystore

import (
	"context"
	"errors"
)

// returned by HGet() when the key or the field within it does not exist
var ErrFieldNotFound = errors.New("registrystore: field not found")

// Store is the shared state backend all workers talk to. One hash per asset
// ID, string-valued fields. This is the only cross-worker synchronization
// mechanism in the whole system, so the two atomicity guarantees below are
// load-bearing.
type Store interface {
	HGet(ctx context.Context, key string, field string) (string, error)

	HSet(ctx context.Context, key string, field string, value string) error

	// sets field only if it does not exist yet. reports whether the write
	// happened. must be atomic - two concurrent callers for the same
	// key+field must observe exactly one true.
	HSetNX(ctx context.Context, key string, field string, value string) (bool, error)

	HExists(ctx context.Context, key string, field string) (bool, error)

	// atomic integer increment, returning the new value. concurrent
	// increments from different workers must not be lost.
	HIncrBy(ctx context.Context, key string, field string, delta int64) (int64, error)
}
