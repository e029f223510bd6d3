package service

import (
	"time"

	"github.com/mmcdole/reel/internal/cache"
)

// Cache buckets
const (
	BucketCommon    = "cache_common"
	BucketVideoList = "cache_video_list"
	BucketSeasons   = "cache_seasons"
	BucketEpisodes  = "cache_episodes"
	BucketMetadata  = "cache_metadata"
	BucketLibrary   = "library"
)

// Operation names. Each is part of the keys of the entries it produces.
const (
	OpRootLists     = "root_lists"
	OpListIDForType = "list_id_for_type"
	OpVideoList     = "video_list"
	OpSeasons       = "seasons"
	OpEpisodes      = "episodes"
	OpEpisode       = "episode"
	OpMovie         = "movie"
	OpMetadata      = "metadata"
)

// Fixed identifiers for single-entry operations
const (
	IDRootLists = "root_lists"
	IDLibrary   = "library"
)

// MutationMyList is applied after an item was added to or removed from the user's list.
const MutationMyList = "mylist.update"

// Buckets returns the bucket definitions. Only the TTLs are configurable.
func Buckets(defaultTTL, metadataTTL time.Duration) []cache.Bucket {
	return []cache.Bucket{
		{Name: BucketCommon, DefaultTTL: defaultTTL},
		{Name: BucketVideoList, DefaultTTL: defaultTTL},
		{Name: BucketSeasons, DefaultTTL: defaultTTL},
		{Name: BucketEpisodes, DefaultTTL: defaultTTL},
		{Name: BucketMetadata, DefaultTTL: metadataTTL, Durable: true},
		{Name: BucketLibrary, DefaultTTL: cache.Infinite, Durable: true, Persistent: true},
	}
}

// DurableBuckets returns the names of buckets that may use the disk tier.
func DurableBuckets(buckets []cache.Bucket) []string {
	var names []string
	for _, b := range buckets {
		if b.Durable {
			names = append(names, b.Name)
		}
	}
	return names
}

// RootListsKey is the key of the home page list of lists
func RootListsKey() cache.Key {
	return cache.FixedKey(BucketCommon, IDRootLists)
}

// ListIDKey is the key of the resolved list ID for a list type
func ListIDKey(listType string) cache.Key {
	return cache.BuildKey(BucketCommon, OpListIDForType, listType)
}

// VideoListKey is the key of a single video list
func VideoListKey(listID string) cache.Key {
	return cache.BuildKey(BucketVideoList, OpVideoList, listID)
}

// MetadataKey is the key of a video's metadata
func MetadataKey(videoID string) cache.Key {
	return cache.BuildKey(BucketMetadata, OpMetadata, videoID)
}

// LibraryKey is the key of the persistent library index
func LibraryKey() cache.Key {
	return cache.FixedKey(BucketLibrary, IDLibrary)
}
