package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Binding declares how calls to one producer map onto cache keys.
// Exactly one of Arg or Fixed must be set.
type Binding[A any] struct {
	Bucket    string
	Operation string

	// Arg selects the designated argument. Other fields of A never affect the key.
	Arg func(A) string

	// Fixed is the identifier of an operation that has a single entry.
	Fixed string

	TTL    time.Duration
	ToDisk bool
}

// Key returns the cache key for args. ok is false when the designated
// argument is empty and the call should bypass the cache.
func (b Binding[A]) Key(args A) (Key, bool) {
	if b.Fixed != "" {
		return FixedKey(b.Bucket, b.Fixed), true
	}
	arg := b.Arg(args)
	if arg == "" {
		return Key{}, false
	}
	return BuildKey(b.Bucket, b.Operation, arg), true
}

// Wrap returns a function with the same contract as produce whose results are
// cached in e according to b. Values are stored as JSON; every caller gets its
// own decoded copy.
//
// Wrap panics if b names an unknown bucket or sets neither Arg nor Fixed.
func Wrap[A, V any](e *Engine, b Binding[A], produce func(context.Context, A) (V, error)) func(context.Context, A) (V, error) {
	if _, ok := e.Bucket(b.Bucket); !ok {
		panic(fmt.Sprintf("cache: wrap %s: unknown bucket %q", b.Operation, b.Bucket))
	}
	if b.Arg == nil && b.Fixed == "" {
		panic(fmt.Sprintf("cache: wrap %s: binding has no designated argument or fixed identifier", b.Operation))
	}
	opts := Options{TTL: b.TTL, AllowDisk: b.ToDisk}

	return func(ctx context.Context, args A) (V, error) {
		key, ok := b.Key(args)
		if !ok {
			return produce(ctx, args)
		}

		for attempt := 0; ; attempt++ {
			var (
				produced V
				leader   bool
			)
			raw, err := e.GetOrCompute(ctx, key, opts, func(ctx context.Context) ([]byte, error) {
				v, err := produce(ctx, args)
				if err != nil {
					return nil, err
				}
				produced, leader = v, true
				return json.Marshal(v)
			})
			if err != nil && ctx.Err() != nil {
				// The flight may still be running and owns produced and leader
				var zero V
				return zero, err
			}
			if leader {
				// The producer ran in this call; hand back its own value
				// even if encoding failed.
				return produced, nil
			}
			if err != nil {
				var zero V
				return zero, err
			}

			var out V
			if err := json.Unmarshal(raw, &out); err != nil {
				if attempt > 0 {
					var zero V
					return zero, fmt.Errorf("cache: decode %s: %w", key, err)
				}
				e.logger.Warn("dropping undecodable cache entry", "bucket", key.Bucket, "key", key.ID, "error", err)
				e.InvalidateEntry(key)
				continue
			}
			return out, nil
		}
	}
}
