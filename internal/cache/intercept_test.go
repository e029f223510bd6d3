package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listPage struct {
	ListID string
	From   int
	To     int
}

type videoList struct {
	ID     string   `json:"id"`
	Videos []string `json:"videos"`
}

func TestWrap_DesignatedArgumentOnly(t *testing.T) {
	e, _ := newTestEngine(t)
	var calls atomic.Int32

	fetch := Wrap(e, Binding[listPage]{
		Bucket:    bucketVideoList,
		Operation: "video_list",
		Arg:       func(p listPage) string { return p.ListID },
	}, func(_ context.Context, p listPage) (videoList, error) {
		calls.Add(1)
		return videoList{ID: p.ListID, Videos: []string{"a", "b", "c"}}, nil
	})

	ctx := context.Background()
	first, err := fetch(ctx, listPage{ListID: "abc123", From: 0, To: 10})
	require.NoError(t, err)
	second, err := fetch(ctx, listPage{ListID: "abc123", From: 10, To: 20})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load(), "pagination is not part of cache identity")

	_, err = fetch(ctx, listPage{ListID: "other"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWrap_FixedIdentifier(t *testing.T) {
	e, _ := newTestEngine(t)
	var calls atomic.Int32

	roots := Wrap(e, Binding[struct{}]{
		Bucket:    bucketCommon,
		Operation: "root_lists",
		Fixed:     "root_lists",
	}, func(context.Context, struct{}) ([]string, error) {
		calls.Add(1)
		return []string{"queue", "trending"}, nil
	})

	for i := 0; i < 3; i++ {
		v, err := roots(context.Background(), struct{}{})
		require.NoError(t, err)
		assert.Equal(t, []string{"queue", "trending"}, v)
	}
	assert.Equal(t, int32(1), calls.Load())

	_, ok := e.Lookup(context.Background(), FixedKey(bucketCommon, "root_lists"), Options{})
	assert.True(t, ok)
}

func TestWrap_EmptyArgumentBypassesCache(t *testing.T) {
	e, _ := newTestEngine(t)
	var calls atomic.Int32

	fetch := Wrap(e, Binding[string]{
		Bucket:    bucketVideoList,
		Operation: "video_list",
		Arg:       func(id string) string { return id },
	}, func(context.Context, string) (int, error) {
		return int(calls.Add(1)), nil
	})

	v1, _ := fetch(context.Background(), "")
	v2, _ := fetch(context.Background(), "")
	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2)
	assert.Empty(t, e.Entries())
}

func TestWrap_ErrorPropagatesAndIsNotCached(t *testing.T) {
	e, _ := newTestEngine(t)
	var calls atomic.Int32
	fail := true

	fetch := Wrap(e, Binding[string]{
		Bucket:    bucketVideoList,
		Operation: "video_list",
		Arg:       func(id string) string { return id },
	}, func(_ context.Context, id string) (videoList, error) {
		calls.Add(1)
		if fail {
			return videoList{}, errBoom
		}
		return videoList{ID: id}, nil
	})

	_, err := fetch(context.Background(), "abc123")
	assert.Same(t, errBoom, err)

	fail = false
	v, err := fetch(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", v.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWrap_CallersGetIndependentValues(t *testing.T) {
	e, _ := newTestEngine(t)

	fetch := Wrap(e, Binding[string]{
		Bucket:    bucketVideoList,
		Operation: "video_list",
		Arg:       func(id string) string { return id },
	}, func(_ context.Context, id string) (videoList, error) {
		return videoList{ID: id, Videos: []string{"a", "b"}}, nil
	})

	first, err := fetch(context.Background(), "abc123")
	require.NoError(t, err)
	first.Videos[0] = "mutated"

	second, err := fetch(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, second.Videos)

	second.Videos[1] = "mutated"
	third, _ := fetch(context.Background(), "abc123")
	assert.Equal(t, []string{"a", "b"}, third.Videos)
}

func TestWrap_UndecodableEntryIsReplaced(t *testing.T) {
	e, _ := newTestEngine(t)
	var calls atomic.Int32
	key := BuildKey(bucketVideoList, "video_list", "abc123")
	require.NoError(t, e.Store(context.Background(), key, []byte("not json"), Options{}))

	fetch := Wrap(e, Binding[string]{
		Bucket:    bucketVideoList,
		Operation: "video_list",
		Arg:       func(id string) string { return id },
	}, func(_ context.Context, id string) (videoList, error) {
		calls.Add(1)
		return videoList{ID: id}, nil
	})

	v, err := fetch(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", v.ID)
	assert.Equal(t, int32(1), calls.Load())

	_, err = fetch(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWrap_TTLAndDisk(t *testing.T) {
	disk := newFakeDisk()
	e, clock := newTestEngine(t, WithDisk(disk))
	var calls atomic.Int32

	meta := Wrap(e, Binding[string]{
		Bucket:    bucketMetadata,
		Operation: "metadata",
		Arg:       func(id string) string { return id },
		TTL:       10 * time.Minute,
		ToDisk:    true,
	}, func(_ context.Context, id string) (string, error) {
		calls.Add(1)
		return "meta-" + id, nil
	})

	_, err := meta(context.Background(), "80057281")
	require.NoError(t, err)
	assert.Equal(t, 1, disk.len())

	clock.Advance(10 * time.Minute)
	_, err = meta(context.Background(), "80057281")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWrap_PanicsOnBadBinding(t *testing.T) {
	e, _ := newTestEngine(t)
	noop := func(context.Context, string) (string, error) { return "", nil }

	assert.Panics(t, func() {
		Wrap(e, Binding[string]{Bucket: "unknown", Operation: "op", Fixed: "x"}, noop)
	})
	assert.Panics(t, func() {
		Wrap(e, Binding[string]{Bucket: bucketCommon, Operation: "op"}, noop)
	})
}
