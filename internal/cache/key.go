package cache

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// MaxKeyLength is the maximum allowed length of a rendered cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidKey    = errors.New("cache: key is invalid")
	ErrKeyTooLong    = errors.New("cache: key exceeds max length")
	ErrUnknownBucket = errors.New("cache: unknown bucket")
)

// Key identifies one cache entry. Every key belongs to exactly one bucket.
//
// ID is already escaped; build keys with FixedKey or BuildKey rather than by hand.
type Key struct {
	Bucket string
	ID     string
}

// FixedKey returns the key for an operation that takes no distinguishing argument.
func FixedKey(bucket, id string) Key {
	return Key{Bucket: bucket, ID: url.PathEscape(id)}
}

// BuildKey derives a key from a bucket, an operation name and the value of the
// operation's designated argument.
// Format: <bucket>:<operation>/<arg>, with operation and arg path-escaped so
// distinct inputs never render to the same key.
func BuildKey(bucket, operation, arg string) Key {
	return Key{Bucket: bucket, ID: url.PathEscape(operation) + "/" + url.PathEscape(arg)}
}

// String renders the key as <bucket>:<id>.
func (k Key) String() string {
	return k.Bucket + ":" + k.ID
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	bucket, id, ok := strings.Cut(s, ":")
	if !ok {
		return Key{}, fmt.Errorf("%w: %q has no bucket", ErrInvalidKey, s)
	}
	k := Key{Bucket: bucket, ID: id}
	if err := ValidateKey(k); err != nil {
		return Key{}, err
	}
	return k, nil
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(k Key) error {
	if strings.TrimSpace(k.Bucket) == "" || strings.TrimSpace(k.ID) == "" {
		return ErrInvalidKey
	}
	if len(k.Bucket)+1+len(k.ID) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(k.Bucket, ":\n\r") || strings.ContainsAny(k.ID, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
