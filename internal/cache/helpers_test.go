package cache

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	bucketCommon    = "cache_common"
	bucketVideoList = "cache_video_list"
	bucketMetadata  = "cache_metadata"
	bucketLibrary   = "library"
)

func testBuckets() []Bucket {
	return []Bucket{
		{Name: bucketCommon, DefaultTTL: 40 * time.Minute},
		{Name: bucketVideoList, DefaultTTL: 40 * time.Minute},
		{Name: bucketMetadata, DefaultTTL: 40 * time.Minute, Durable: true},
		{Name: bucketLibrary, DefaultTTL: Infinite, Durable: true, Persistent: true},
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeDisk is an in-memory DiskTier with failure injection.
type fakeDisk struct {
	mu      sync.Mutex
	entries map[Key]Entry

	loadErr  error
	saveErr  error
	clearErr error
	closed   bool

	// loadGate, when set, holds every Load after it has read its record.
	loadGate chan struct{}
}

func newFakeDisk() *fakeDisk {
	return &fakeDisk{entries: make(map[Key]Entry)}
}

func (d *fakeDisk) Load(key Key) (Entry, bool, error) {
	d.mu.Lock()
	err := d.loadErr
	e, ok := d.entries[key]
	gate := d.loadGate
	d.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, ok, nil
}

func (d *fakeDisk) Save(e Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.saveErr != nil {
		return d.saveErr
	}
	e.Value = append([]byte(nil), e.Value...)
	d.entries[e.Key] = e
	return nil
}

func (d *fakeDisk) Delete(key Key) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, key)
	return nil
}

func (d *fakeDisk) Clear(buckets []string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.clearErr != nil {
		return 0, d.clearErr
	}
	n := 0
	for k := range d.entries {
		if slices.Contains(buckets, k.Bucket) {
			delete(d.entries, k)
			n++
		}
	}
	return n, nil
}

func (d *fakeDisk) Scan(fn func(Entry) bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.entries {
		if !fn(e) {
			break
		}
	}
	return nil
}

func (d *fakeDisk) PurgeExpired(now time.Time) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for k, e := range d.entries {
		if !e.FreshAt(now) {
			delete(d.entries, k)
			n++
		}
	}
	return n, nil
}

func (d *fakeDisk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDisk) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	e, err := New(testBuckets(), opts...)
	require.NoError(t, err)
	return e, clock
}

// counting returns a producer that yields value and counts its calls.
func counting(value string, calls *atomic.Int32) Producer {
	return func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(value), nil
	}
}

var errBoom = errors.New("boom")
