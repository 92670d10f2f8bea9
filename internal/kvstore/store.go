// Package kvstore provides the expiring key-value store shared by the rate
// limiter and probed by the health layer.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks failures to reach the backing store, as opposed to
// protocol or encoding problems.
var ErrUnavailable = errors.New("kvstore unavailable")

// Store is an expiring key-value store. Any call may fail.
type Store interface {
	// Get returns the value for key. found is false when the key does not exist
	// or has expired.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key. A non-positive ttl keeps the key until it is
	// overwritten or deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Deleter is implemented by stores that support explicit removal.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by stores with a cheap liveness round trip.
type Pinger interface {
	Ping(ctx context.Context) error
}
