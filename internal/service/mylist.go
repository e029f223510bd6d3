package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mmcdole/reel/internal/cache"
	"github.com/mmcdole/reel/internal/domain"
)

// My list operations
const (
	myListAdd    = "add"
	myListRemove = "remove"
)

// MyListService modifies the user's list and keeps the cache consistent
type MyListService struct {
	source      domain.DataSource
	catalog     *CatalogService
	invalidator *cache.Invalidator
	logger      *slog.Logger
}

// NewMyListService creates a new MyListService and registers the entries a
// list change makes stale with invalidator.
func NewMyListService(source domain.DataSource, catalog *CatalogService, invalidator *cache.Invalidator, logger *slog.Logger) *MyListService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MyListService{
		source:      source,
		catalog:     catalog,
		invalidator: invalidator,
		logger:      logger,
	}
	invalidator.Register(MutationMyList, s.staleEntries)
	return s
}

// Add adds a video to the user's list
func (s *MyListService) Add(ctx context.Context, videoID string) error {
	s.logger.Debug("adding to my list", "video_id", videoID)
	return s.update(ctx, videoID, myListAdd)
}

// Remove removes a video from the user's list
func (s *MyListService) Remove(ctx context.Context, videoID string) error {
	s.logger.Debug("removing from my list", "video_id", videoID)
	return s.update(ctx, videoID, myListRemove)
}

func (s *MyListService) update(ctx context.Context, videoID, operation string) error {
	_, err := s.source.Fetch(ctx, domain.Request{
		Kind:      domain.RequestPost,
		Component: "update_my_list",
		Params:    map[string]any{"operation": operation, "videoId": videoID},
	})
	if err != nil {
		return err
	}

	s.invalidator.Apply(ctx, MutationMyList)
	return nil
}

// staleEntries lists the entries holding my list contents: the list itself,
// its resolved ID and the home page lists that embed its length.
func (s *MyListService) staleEntries(ctx context.Context) ([]cache.Key, error) {
	keys := []cache.Key{
		ListIDKey(domain.ListContextMyList),
		RootListsKey(),
	}

	listID, err := s.catalog.ListIDForType(ctx, domain.ListContextMyList)
	switch {
	case err == nil:
		keys = append(keys, VideoListKey(listID))
	case errors.Is(err, domain.ErrKeyResolution):
		// No list exists, so no list entry can be cached
		s.logger.Debug("my list not present on home page", "error", err)
	default:
		return nil, err
	}
	return keys, nil
}
