package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmcdole/reel/internal/adapter"
	"github.com/mmcdole/reel/internal/cache"
	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/store"
)

// fakeSource answers requests by component and counts them
type fakeSource struct {
	mu       sync.Mutex
	handlers map[string]func(domain.Request) (json.RawMessage, error)
	calls    map[string]int
	requests []domain.Request
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		handlers: make(map[string]func(domain.Request) (json.RawMessage, error)),
		calls:    make(map[string]int),
	}
}

func (f *fakeSource) Fetch(_ context.Context, req domain.Request) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls[req.Component]++
	f.requests = append(f.requests, req)
	h, ok := f.handlers[req.Component]
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("unexpected request %q", req.Component)
	}
	return h(req)
}

func (f *fakeSource) handle(component string, h func(domain.Request) (json.RawMessage, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[component] = h
}

func (f *fakeSource) respond(component string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	f.handle(component, func(domain.Request) (json.RawMessage, error) { return data, nil })
}

func (f *fakeSource) fail(component string, err error) {
	f.handle(component, func(domain.Request) (json.RawMessage, error) { return nil, err })
}

func (f *fakeSource) count(component string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[component]
}

func (f *fakeSource) last(component string) (domain.Request, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Component == component {
			return f.requests[i], true
		}
	}
	return domain.Request{}, false
}

const (
	queueListID    = "queue-list-id"
	trendingListID = "trending-list-id"
)

func homePage(withQueue bool) domain.RootLists {
	roots := domain.RootLists{
		ID: "lolomo-1",
		Lists: []domain.ListRef{
			{ID: trendingListID, Context: domain.ListContextTrending, DisplayName: "Trending Now", Index: 1, Length: 40},
		},
	}
	if withQueue {
		roots.Lists = append([]domain.ListRef{
			{ID: queueListID, Context: domain.ListContextMyList, DisplayName: "My List", Index: 0, Length: 3},
		}, roots.Lists...)
	}
	return roots
}

func showMetadata(showID string, episodeIDs ...string) any {
	var eps []domain.EpisodeMetadata
	for _, id := range episodeIDs {
		eps = append(eps, domain.EpisodeMetadata{ID: id, Title: "Episode " + id})
	}
	return map[string]any{
		"video": domain.Metadata{
			ID:    showID,
			Title: "Show " + showID,
			Type:  domain.VideoTypeShow,
			Seasons: []domain.SeasonMetadata{
				{ID: "s1", Number: 1, Episodes: eps},
			},
		},
	}
}

type testEnv struct {
	source  *fakeSource
	engine  *cache.Engine
	catalog *CatalogService
}

func newTestEnv(t *testing.T, disk cache.DiskTier) *testEnv {
	t.Helper()
	opts := []cache.Option{cache.WithLogger(adapter.NullLogger())}
	if disk != nil {
		opts = append(opts, cache.WithDisk(disk))
	}
	engine, err := cache.New(Buckets(40*time.Minute, 10*time.Minute), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	source := newFakeSource()
	return &testEnv{
		source:  source,
		engine:  engine,
		catalog: NewCatalogService(source, engine, 10*time.Minute, adapter.NullLogger()),
	}
}

func openDisk(t *testing.T, dir string) cache.DiskTier {
	t.Helper()
	d, err := store.Open(dir, "", DurableBuckets(Buckets(time.Minute, time.Minute)), adapter.NullLogger())
	require.NoError(t, err)
	return d
}

func (e *testEnv) cached(key cache.Key) bool {
	_, ok := e.engine.Lookup(context.Background(), key, cache.Options{AllowDisk: true})
	return ok
}
