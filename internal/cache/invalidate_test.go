package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populate(t *testing.T, e *Engine, keys ...Key) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, e.Store(context.Background(), k, []byte(k.String()), Options{AllowDisk: true}))
	}
}

func assertHit(t *testing.T, e *Engine, k Key) {
	t.Helper()
	_, ok := e.Lookup(context.Background(), k, Options{AllowDisk: true})
	assert.True(t, ok, "expected hit for %s", k)
}

func assertMiss(t *testing.T, e *Engine, k Key) {
	t.Helper()
	_, ok := e.Lookup(context.Background(), k, Options{AllowDisk: true})
	assert.False(t, ok, "expected miss for %s", k)
}

func TestEngine_InvalidateAllClearsCachedBuckets(t *testing.T) {
	disk := newFakeDisk()
	e, _ := newTestEngine(t, WithDisk(disk))

	var keys []Key
	for _, b := range []string{bucketCommon, bucketVideoList, bucketMetadata} {
		for i := 0; i < 4; i++ {
			keys = append(keys, BuildKey(b, "op", fmt.Sprintf("%d", i)))
		}
	}
	populate(t, e, keys...)
	e.SetLastLocation("list-1")

	e.InvalidateAll()

	for _, k := range keys {
		assertMiss(t, e, k)
	}
	assert.Zero(t, disk.len())
	_, ok := e.LastLocation()
	assert.False(t, ok)
}

func TestEngine_InvalidateAllKeepsPersistentBucket(t *testing.T) {
	disk := newFakeDisk()
	e, _ := newTestEngine(t, WithDisk(disk))
	lib := FixedKey(bucketLibrary, "library")
	meta := BuildKey(bucketMetadata, "metadata", "1")
	populate(t, e, lib, meta)

	e.InvalidateAll()

	assertMiss(t, e, meta)
	assertHit(t, e, lib)
	assert.Equal(t, 1, disk.len())
	assert.Equal(t, 1, e.memory.len())

	e.InvalidateEntry(lib)
	assertMiss(t, e, lib)
	assert.Zero(t, disk.len())
}

func TestEngine_LastLocationPersistsWithDisk(t *testing.T) {
	disk := newFakeDisk()
	clock := newFakeClock()

	first, err := New(testBuckets(), WithClock(clock.Now), WithDisk(disk))
	require.NoError(t, err)
	first.SetLastLocation("list-42")

	second, err := New(testBuckets(), WithClock(clock.Now), WithDisk(disk))
	require.NoError(t, err)
	loc, ok := second.LastLocation()
	require.True(t, ok)
	assert.Equal(t, "list-42", loc)
	assert.Empty(t, second.Entries(), "the marker is not listed as a cache entry")

	second.InvalidateLastLocation()
	third, err := New(testBuckets(), WithClock(clock.Now), WithDisk(disk))
	require.NoError(t, err)
	_, ok = third.LastLocation()
	assert.False(t, ok)
}

func TestEngine_InvalidateAllStorageFailure(t *testing.T) {
	disk := newFakeDisk()
	e, _ := newTestEngine(t, WithDisk(disk))
	k := FixedKey(bucketCommon, "root_lists")
	populate(t, e, k)

	disk.clearErr = errBoom
	assert.NotPanics(t, e.InvalidateAll)
	assertMiss(t, e, k)
}

func TestEngine_InvalidateAllIsAtomicForReaders(t *testing.T) {
	disk := newFakeDisk()
	e, _ := newTestEngine(t, WithDisk(disk))
	populate(t, e,
		FixedKey(bucketCommon, "root_lists"),
		BuildKey(bucketMetadata, "metadata", "1"),
	)
	require.Len(t, e.Entries(), 3)

	var wg sync.WaitGroup
	done := make(chan struct{})
	var sizes sync.Map
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				sizes.Store(len(e.Entries()), true)
				select {
				case <-done:
					return
				default:
				}
			}
		}()
	}

	e.InvalidateAll()
	close(done)
	wg.Wait()

	sizes.Range(func(k, _ any) bool {
		n := k.(int)
		assert.True(t, n == 3 || n == 0, "reader observed a partially cleared store with %d entries", n)
		return true
	})
}

func TestEngine_InvalidateEntryScope(t *testing.T) {
	disk := newFakeDisk()
	e, _ := newTestEngine(t, WithDisk(disk))
	a := BuildKey(bucketVideoList, "video_list", "abc123")
	b := BuildKey(bucketMetadata, "metadata", "abc123")
	populate(t, e, a, b)

	e.InvalidateEntry(a)

	assertMiss(t, e, a)
	assertHit(t, e, b)
}

func TestEngine_InvalidateEntryRemovesFromAllTiers(t *testing.T) {
	disk := newFakeDisk()
	e, _ := newTestEngine(t, WithDisk(disk))
	k := BuildKey(bucketMetadata, "metadata", "80057281")
	populate(t, e, k)
	require.Equal(t, 1, disk.len())

	e.InvalidateEntry(k)

	assertMiss(t, e, k)
	assert.Zero(t, disk.len())
	assert.Zero(t, e.memory.len())

	assert.NotPanics(t, func() { e.InvalidateEntry(k) }, "idempotent when absent")
	assert.NotPanics(t, func() { e.InvalidateEntry(FixedKey("unknown", "x")) })
}

func TestEngine_LastLocation(t *testing.T) {
	e, _ := newTestEngine(t)
	k := FixedKey(bucketCommon, "root_lists")
	populate(t, e, k)

	_, ok := e.LastLocation()
	assert.False(t, ok)

	e.SetLastLocation("list-42")
	loc, ok := e.LastLocation()
	require.True(t, ok)
	assert.Equal(t, "list-42", loc)

	e.InvalidateLastLocation()
	_, ok = e.LastLocation()
	assert.False(t, ok)
	assertHit(t, e, k)
}

func TestInvalidator_Cascade(t *testing.T) {
	e, _ := newTestEngine(t)
	listEntry := BuildKey(bucketVideoList, "video_list", "queue-list")
	summary := FixedKey(bucketCommon, "root_lists")
	unrelated := BuildKey(bucketVideoList, "video_list", "trending")
	populate(t, e, listEntry, summary, unrelated)
	e.SetLastLocation("queue-list")

	inv := NewInvalidator(e, false, nil)
	inv.Register("mylist.update", func(context.Context) ([]Key, error) {
		return []Key{listEntry, summary}, nil
	})

	inv.Apply(context.Background(), "mylist.update")

	assertMiss(t, e, listEntry)
	assertMiss(t, e, summary)
	assertHit(t, e, unrelated)
	_, ok := e.LastLocation()
	assert.False(t, ok)
}

func TestInvalidator_FullWipeMode(t *testing.T) {
	e, _ := newTestEngine(t)
	keys := []Key{
		BuildKey(bucketVideoList, "video_list", "queue-list"),
		BuildKey(bucketVideoList, "video_list", "trending"),
		FixedKey(bucketCommon, "root_lists"),
	}
	populate(t, e, keys...)

	var ruleCalls int
	inv := NewInvalidator(e, true, nil)
	inv.Register("mylist.update", func(context.Context) ([]Key, error) {
		ruleCalls++
		return keys[:1], nil
	})
	assert.True(t, inv.FullWipe())

	inv.Apply(context.Background(), "mylist.update")

	for _, k := range keys {
		assertMiss(t, e, k)
	}
	assert.Zero(t, ruleCalls)
}

func TestInvalidator_UnknownMutationWipes(t *testing.T) {
	e, _ := newTestEngine(t)
	k := FixedKey(bucketCommon, "root_lists")
	populate(t, e, k)

	inv := NewInvalidator(e, false, nil)

	_, err := inv.Affected(context.Background(), "rating.update")
	assert.ErrorIs(t, err, ErrUnknownMutation)

	inv.Apply(context.Background(), "rating.update")
	assertMiss(t, e, k)
}

func TestInvalidator_RuleErrorWipes(t *testing.T) {
	e, _ := newTestEngine(t)
	k := FixedKey(bucketCommon, "root_lists")
	populate(t, e, k)

	inv := NewInvalidator(e, false, nil)
	inv.Register("mylist.update", func(context.Context) ([]Key, error) {
		return nil, errBoom
	})

	inv.Apply(context.Background(), "mylist.update")
	assertMiss(t, e, k)
}
