package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmcdole/reel/internal/cache"
	"github.com/mmcdole/reel/internal/domain"
)

// Page window requested for lists. Callers slice the cached list themselves.
const (
	listFrom = 0
	listTo   = 40
)

// SeasonRef addresses one season of a show
type SeasonRef struct {
	ShowID   string
	SeasonID string
}

// EpisodeRef addresses one episode of a show
type EpisodeRef struct {
	ShowID    string
	EpisodeID string
}

// CatalogService provides read access to the catalog. Every lookup except
// profiles goes through the cache.
type CatalogService struct {
	engine *cache.Engine
	logger *slog.Logger

	rootLists     func(context.Context, struct{}) (domain.RootLists, error)
	listIDForType func(context.Context, string) (string, error)
	videoList     func(context.Context, string) (domain.VideoList, error)
	seasons       func(context.Context, string) (domain.SeasonList, error)
	episodes      func(context.Context, SeasonRef) (domain.EpisodeList, error)
	episode       func(context.Context, EpisodeRef) (domain.Episode, error)
	movie         func(context.Context, string) (domain.Video, error)
	metadata      func(context.Context, string) (domain.Metadata, error)
}

// NewCatalogService binds the catalog producers to their cache buckets.
// metadataTTL overrides the metadata bucket default when positive.
func NewCatalogService(source domain.DataSource, engine *cache.Engine, metadataTTL time.Duration, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &CatalogService{engine: engine, logger: logger}
	identity := func(id string) string { return id }

	s.rootLists = cache.Wrap(engine, cache.Binding[struct{}]{
		Bucket:    BucketCommon,
		Operation: OpRootLists,
		Fixed:     IDRootLists,
	}, func(ctx context.Context, _ struct{}) (domain.RootLists, error) {
		logger.Debug("requesting root lists")
		return fetch[domain.RootLists](ctx, source, domain.Request{
			Kind:      domain.RequestPath,
			Component: "lolomo",
			Params:    map[string]any{"from": listFrom, "to": listTo},
		})
	})

	s.listIDForType = cache.Wrap(engine, cache.Binding[string]{
		Bucket:    BucketCommon,
		Operation: OpListIDForType,
		Arg:       identity,
	}, s.resolveListID)

	s.videoList = cache.Wrap(engine, cache.Binding[string]{
		Bucket:    BucketVideoList,
		Operation: OpVideoList,
		Arg:       identity,
	}, func(ctx context.Context, listID string) (domain.VideoList, error) {
		logger.Debug("requesting video list", "list_id", listID)
		return fetch[domain.VideoList](ctx, source, domain.Request{
			Kind:      domain.RequestPath,
			Component: "lists",
			Params:    map[string]any{"listId": listID, "from": listFrom, "to": listTo},
		})
	})

	s.seasons = cache.Wrap(engine, cache.Binding[string]{
		Bucket:    BucketSeasons,
		Operation: OpSeasons,
		Arg:       identity,
	}, func(ctx context.Context, showID string) (domain.SeasonList, error) {
		logger.Debug("requesting season list", "show_id", showID)
		return fetch[domain.SeasonList](ctx, source, domain.Request{
			Kind:      domain.RequestPath,
			Component: "seasons",
			Params:    map[string]any{"showId": showID},
		})
	})

	s.episodes = cache.Wrap(engine, cache.Binding[SeasonRef]{
		Bucket:    BucketEpisodes,
		Operation: OpEpisodes,
		Arg:       func(r SeasonRef) string { return r.SeasonID },
	}, func(ctx context.Context, r SeasonRef) (domain.EpisodeList, error) {
		logger.Debug("requesting episode list", "show_id", r.ShowID, "season_id", r.SeasonID)
		return fetch[domain.EpisodeList](ctx, source, domain.Request{
			Kind:      domain.RequestPath,
			Component: "episodes",
			Params:    map[string]any{"showId": r.ShowID, "seasonId": r.SeasonID, "from": listFrom, "to": listTo},
		})
	})

	s.episode = cache.Wrap(engine, cache.Binding[EpisodeRef]{
		Bucket:    BucketEpisodes,
		Operation: OpEpisode,
		Arg:       func(r EpisodeRef) string { return r.EpisodeID },
	}, func(ctx context.Context, r EpisodeRef) (domain.Episode, error) {
		logger.Debug("requesting episode", "episode_id", r.EpisodeID)
		return fetch[domain.Episode](ctx, source, domain.Request{
			Kind:      domain.RequestPath,
			Component: "episode",
			Params:    map[string]any{"showId": r.ShowID, "episodeId": r.EpisodeID},
		})
	})

	s.movie = cache.Wrap(engine, cache.Binding[string]{
		Bucket:    BucketEpisodes,
		Operation: OpMovie,
		Arg:       identity,
	}, func(ctx context.Context, movieID string) (domain.Video, error) {
		logger.Debug("requesting movie", "movie_id", movieID)
		return fetch[domain.Video](ctx, source, domain.Request{
			Kind:      domain.RequestPath,
			Component: "movie",
			Params:    map[string]any{"movieId": movieID},
		})
	})

	s.metadata = cache.Wrap(engine, cache.Binding[string]{
		Bucket:    BucketMetadata,
		Operation: OpMetadata,
		Arg:       identity,
		TTL:       metadataTTL,
		ToDisk:    true,
	}, func(ctx context.Context, videoID string) (domain.Metadata, error) {
		logger.Debug("requesting metadata", "video_id", videoID)
		envelope, err := fetch[struct {
			Video domain.Metadata `json:"video"`
		}](ctx, source, domain.Request{
			Kind:      domain.RequestGet,
			Component: "metadata",
			Params:    map[string]any{"movieid": videoID},
		})
		return envelope.Video, err
	})

	return s
}

// RootLists returns the home page list of lists
func (s *CatalogService) RootLists(ctx context.Context) (domain.RootLists, error) {
	return s.rootLists(ctx, struct{}{})
}

// ListIDForType resolves the ID of the first list with the given context.
// It returns a *domain.KeyResolutionError when no such list exists.
func (s *CatalogService) ListIDForType(ctx context.Context, listType string) (string, error) {
	return s.listIDForType(ctx, listType)
}

func (s *CatalogService) resolveListID(ctx context.Context, listType string) (string, error) {
	roots, err := s.RootLists(ctx)
	if err != nil {
		return "", err
	}
	lists := roots.ListsByContext(listType)
	if len(lists) == 0 {
		return "", &domain.KeyResolutionError{ListType: listType}
	}
	s.logger.Debug("resolved list id", "list_type", listType, "list_id", lists[0].ID)
	return lists[0].ID, nil
}

// VideoList returns a single video list
func (s *CatalogService) VideoList(ctx context.Context, listID string) (domain.VideoList, error) {
	return s.videoList(ctx, listID)
}

// MyList returns the user's list
func (s *CatalogService) MyList(ctx context.Context) (domain.VideoList, error) {
	listID, err := s.ListIDForType(ctx, domain.ListContextMyList)
	if err != nil {
		return domain.VideoList{}, err
	}
	return s.VideoList(ctx, listID)
}

// InMyList reports whether videoID is on the user's list. Membership is read
// from the list itself, never from summaries cached elsewhere.
func (s *CatalogService) InMyList(ctx context.Context, videoID string) (bool, error) {
	list, err := s.MyList(ctx)
	if err != nil {
		return false, err
	}
	for _, v := range list.Videos {
		if v.ID == videoID {
			return true, nil
		}
	}
	return false, nil
}

// Seasons returns the seasons of a show
func (s *CatalogService) Seasons(ctx context.Context, showID string) (domain.SeasonList, error) {
	return s.seasons(ctx, showID)
}

// Episodes returns the episodes of a season. Entries are keyed by season.
func (s *CatalogService) Episodes(ctx context.Context, showID, seasonID string) (domain.EpisodeList, error) {
	return s.episodes(ctx, SeasonRef{ShowID: showID, SeasonID: seasonID})
}

// Episode returns a single episode. Entries are keyed by episode.
func (s *CatalogService) Episode(ctx context.Context, showID, episodeID string) (domain.Episode, error) {
	return s.episode(ctx, EpisodeRef{ShowID: showID, EpisodeID: episodeID})
}

// Movie returns a single movie
func (s *CatalogService) Movie(ctx context.Context, movieID string) (domain.Video, error) {
	return s.movie(ctx, movieID)
}

// Metadata returns the detailed metadata of a video
func (s *CatalogService) Metadata(ctx context.Context, videoID string) (domain.Metadata, error) {
	return s.metadata(ctx, videoID)
}

// EpisodeMetadata looks up one episode in its show's metadata. Cached show
// metadata can predate a new episode, so a missing episode triggers exactly
// one refetch. If the episode is still missing the zero value is returned.
func (s *CatalogService) EpisodeMetadata(ctx context.Context, showID, seasonID, episodeID string) (domain.EpisodeMetadata, error) {
	meta, err := s.Metadata(ctx, showID)
	if err != nil {
		return domain.EpisodeMetadata{}, err
	}
	if ep, ok := meta.FindEpisode(seasonID, episodeID); ok {
		return ep, nil
	}

	s.logger.Debug("episode missing from cached metadata, refetching",
		"show_id", showID, "season_id", seasonID, "episode_id", episodeID)
	s.engine.InvalidateEntry(MetadataKey(showID))

	meta, err = s.Metadata(ctx, showID)
	if err != nil {
		return domain.EpisodeMetadata{}, err
	}
	ep, _ := meta.FindEpisode(seasonID, episodeID)
	return ep, nil
}

// fetch performs req and decodes the result into T
func fetch[T any](ctx context.Context, source domain.DataSource, req domain.Request) (T, error) {
	var out T
	raw, err := source.Fetch(ctx, req)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s response: %w", req.Component, err)
	}
	return out, nil
}
