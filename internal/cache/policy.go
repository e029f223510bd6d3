package cache

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Infinite is a TTL under which entries never expire by time.
const Infinite = time.Duration(math.MaxInt64)

// Bucket is a named partition of the cache with its own expiry and durability.
type Bucket struct {
	Name string

	// DefaultTTL applies when a call gives no override. Use Infinite for
	// entries that only go away through invalidation.
	DefaultTTL time.Duration

	// Durable buckets may store entries in the disk tier.
	Durable bool

	// Persistent buckets hold user data rather than cached responses. Global
	// wipes leave them alone; only InvalidateEntry removes their entries.
	Persistent bool
}

// EffectiveTTL returns the override when positive, the bucket default otherwise.
func (b Bucket) EffectiveTTL(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return b.DefaultTTL
}

// Fresh reports whether an entry created at createdAt is still fresh at now.
// An entry whose age equals its TTL has expired.
func Fresh(createdAt time.Time, ttl time.Duration, now time.Time) bool {
	if ttl == Infinite {
		return true
	}
	return now.Sub(createdAt) < ttl
}

func indexBuckets(buckets []Bucket) (map[string]Bucket, error) {
	index := make(map[string]Bucket, len(buckets))
	for _, b := range buckets {
		switch {
		case strings.TrimSpace(b.Name) == "":
			return nil, fmt.Errorf("cache: bucket name is empty")
		case strings.ContainsAny(b.Name, ":\n\r"):
			return nil, fmt.Errorf("cache: bucket name %q contains a reserved character", b.Name)
		case b.DefaultTTL <= 0:
			return nil, fmt.Errorf("cache: bucket %q has no default TTL", b.Name)
		}
		if _, dup := index[b.Name]; dup {
			return nil, fmt.Errorf("cache: bucket %q registered twice", b.Name)
		}
		index[b.Name] = b
	}
	return index, nil
}
