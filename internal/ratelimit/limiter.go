// Package ratelimit implements per-client admission control with a token
// bucket persisted in a shared expiring store.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/notifyd/notifyd/internal/kvstore"
	"github.com/notifyd/notifyd/internal/metrics"
	"github.com/notifyd/notifyd/internal/observability"
)

// Defaults applied when a TokenBucket field is left zero.
const (
	DefaultCapacity  = 100
	DefaultWindow    = 60 * time.Second
	DefaultKeyPrefix = "ratelimit:"
)

// ErrResetUnsupported is returned by Reset when the store cannot delete keys.
var ErrResetUnsupported = errors.New("rate limit store does not support deletes")

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed bool
	// RetryAfter is the number of whole seconds to wait; 0 when allowed.
	RetryAfter int
}

// BucketState is the persisted per-client bucket.
type BucketState struct {
	Tokens float64 `json:"tokens"`
	// LastRefill is unix seconds with sub-second precision.
	LastRefill float64 `json:"last_refill"`
}

// LastRefillTime converts LastRefill to a time.Time.
func (s BucketState) LastRefillTime() time.Time {
	sec, frac := math.Modf(s.LastRefill)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// TokenBucket enforces capacity requests per window for each client.
//
// Every check does exactly one store read and at most one store write. The
// read-modify-write is not atomic, so concurrent requests from one client on
// several instances can over-admit slightly.
type TokenBucket struct {
	Store     kvstore.Store
	Capacity  int
	Window    time.Duration
	KeyPrefix string
	Logger    *logging.Logger
	Clock     func() time.Time
}

// Check decides whether clientKey may proceed. Store failures allow the request.
func (b *TokenBucket) Check(ctx context.Context, clientKey string) Decision {
	if b == nil || b.Store == nil {
		return Decision{Allowed: true}
	}

	key := b.key(clientKey)
	capacity := float64(b.capacity())
	window := b.window()
	now := b.now()

	raw, found, err := b.Store.Get(ctx, key)
	if err != nil {
		return b.failOpen(ctx, "read", clientKey, err)
	}

	var state BucketState
	if !found {
		state = BucketState{Tokens: capacity - 1, LastRefill: unixSeconds(now)}
		if err := b.write(ctx, key, state); err != nil {
			return b.failOpen(ctx, "write", clientKey, err)
		}
		metrics.RecordRateLimitCheck(metrics.RateLimitAllowed)
		return Decision{Allowed: true}
	}

	if err := json.Unmarshal(raw, &state); err != nil {
		return b.failOpen(ctx, "read", clientKey, fmt.Errorf("decode bucket state: %w", err))
	}

	elapsed := unixSeconds(now) - state.LastRefill
	if elapsed < 0 {
		elapsed = 0
	}
	tokens := math.Min(capacity, state.Tokens+elapsed/window.Seconds()*capacity)
	if tokens < 0 {
		tokens = 0
	}

	if tokens < 1 {
		retryAfter := int(math.Ceil((1 - tokens) / capacity * window.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		metrics.RecordRateLimitCheck(metrics.RateLimitDenied)
		b.debug(ctx, "Rate limit exceeded",
			zap.String("client", clientKey),
			zap.Int("retry_after", retryAfter))
		return Decision{Allowed: false, RetryAfter: retryAfter}
	}

	state = BucketState{Tokens: tokens - 1, LastRefill: unixSeconds(now)}
	if err := b.write(ctx, key, state); err != nil {
		return b.failOpen(ctx, "write", clientKey, err)
	}
	metrics.RecordRateLimitCheck(metrics.RateLimitAllowed)
	return Decision{Allowed: true}
}

// Inspect returns the stored bucket for clientKey without refilling it.
func (b *TokenBucket) Inspect(ctx context.Context, clientKey string) (BucketState, bool, error) {
	if b == nil || b.Store == nil {
		return BucketState{}, false, nil
	}

	raw, found, err := b.Store.Get(ctx, b.key(clientKey))
	if err != nil || !found {
		return BucketState{}, false, err
	}

	var state BucketState
	if err := json.Unmarshal(raw, &state); err != nil {
		return BucketState{}, false, fmt.Errorf("decode bucket state: %w", err)
	}
	return state, true, nil
}

// Reset removes the stored bucket so the client starts at full capacity.
func (b *TokenBucket) Reset(ctx context.Context, clientKey string) error {
	if b == nil || b.Store == nil {
		return nil
	}
	deleter, ok := b.Store.(kvstore.Deleter)
	if !ok {
		return ErrResetUnsupported
	}
	return deleter.Delete(ctx, b.key(clientKey))
}

func (b *TokenBucket) write(ctx context.Context, key string, state BucketState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return b.Store.Set(ctx, key, payload, 2*b.window())
}

func (b *TokenBucket) failOpen(ctx context.Context, op string, clientKey string, err error) Decision {
	metrics.RecordRateLimitStoreError(op)
	metrics.RecordRateLimitCheck(metrics.RateLimitFailOpen)
	if b.Logger != nil {
		b.Logger.Warn("Rate limit store unavailable, allowing request",
			zap.String("op", op),
			zap.String("client", clientKey),
			zap.String("request_id", observability.RequestIDFromContext(ctx)),
			zap.Error(err))
	}
	return Decision{Allowed: true}
}

func (b *TokenBucket) debug(ctx context.Context, msg string, fields ...zap.Field) {
	if b.Logger == nil {
		return
	}
	fields = append(fields, zap.String("request_id", observability.RequestIDFromContext(ctx)))
	b.Logger.Debug(msg, fields...)
}

func (b *TokenBucket) key(clientKey string) string {
	prefix := b.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return prefix + clientKey
}

func (b *TokenBucket) capacity() int {
	if b.Capacity <= 0 {
		return DefaultCapacity
	}
	return b.Capacity
}

func (b *TokenBucket) window() time.Duration {
	if b.Window <= 0 {
		return DefaultWindow
	}
	return b.Window
}

func (b *TokenBucket) now() time.Time {
	if b.Clock != nil {
		return b.Clock()
	}
	return time.Now().UTC()
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
