package tui

import "github.com/mmcdole/reel/internal/cache"

// EntriesLoadedMsg carries a snapshot of the cache
type EntriesLoadedMsg struct {
	Entries      []cache.Entry
	LastLocation string
}

// InvalidatedMsg signals that an invalidation finished.
// Key is nil for a full wipe.
type InvalidatedMsg struct {
	Key *cache.Key
}
