package cache

import "time"

// Tier names a storage backend.
type Tier string

const (
	TierMemory Tier = "memory"
	TierDisk   Tier = "disk"
)

// Entry is one physical cache record.
type Entry struct {
	Key       Key
	Value     []byte
	CreatedAt time.Time
	TTL       time.Duration
	Tier      Tier
}

// FreshAt reports whether the entry may be served at now.
func (e Entry) FreshAt(now time.Time) bool {
	return Fresh(e.CreatedAt, e.TTL, now)
}

// ExpiresAt returns the time the entry goes stale, or the zero time for Infinite.
func (e Entry) ExpiresAt() time.Time {
	if e.TTL == Infinite {
		return time.Time{}
	}
	return e.CreatedAt.Add(e.TTL)
}

// DiskTier persists entries of durable buckets across restarts.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Load returns (Entry{}, false, nil) when the key is absent.
// - Delete is idempotent.
// - Save is durable once it returns.
type DiskTier interface {
	Load(key Key) (Entry, bool, error)
	Save(entry Entry) error
	Delete(key Key) error
	// Clear removes every record in the named buckets and reports how many
	// were removed. Other buckets are untouched.
	Clear(buckets []string) (int, error)
	// Scan calls fn for every record until fn returns false.
	Scan(fn func(Entry) bool) error
	// PurgeExpired removes records that are stale at now.
	PurgeExpired(now time.Time) (int, error)
	Close() error
}
