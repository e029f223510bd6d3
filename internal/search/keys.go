// Package search ranks cache entries against a free-text query.
package search

import (
	"net/url"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/mmcdole/reel/internal/cache"
)

// Match is a cache entry that matched a query
type Match struct {
	Entry    cache.Entry
	Distance int // Levenshtein distance to the query (lower is better)
}

// EntryIndex implements fuzzy matching over cache entries. Keys are matched
// in their rendered bucket:id form, with percent-escapes decoded so that
// "stranger things" finds "metadata/Stranger%20Things".
type EntryIndex struct {
	entries []cache.Entry
	targets []string
}

// NewEntryIndex builds an index over entries
func NewEntryIndex(entries []cache.Entry) *EntryIndex {
	targets := make([]string, len(entries))
	for i, e := range entries {
		targets[i] = Display(e.Key)
	}
	return &EntryIndex{entries: entries, targets: targets}
}

// Len returns the number of indexed entries
func (idx *EntryIndex) Len() int { return len(idx.entries) }

// Find returns the entries whose key contains the characters of query in
// order, case-insensitively, closest first. Ties keep key order.
// An empty query matches every entry.
func (idx *EntryIndex) Find(query string) []Match {
	query = strings.TrimSpace(query)
	if query == "" {
		out := make([]Match, len(idx.entries))
		for i, e := range idx.entries {
			out[i] = Match{Entry: e}
		}
		return out
	}

	ranks := fuzzy.RankFindFold(query, idx.targets)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})

	out := make([]Match, len(ranks))
	for i, r := range ranks {
		out[i] = Match{Entry: idx.entries[r.OriginalIndex], Distance: r.Distance}
	}
	return out
}

// Display renders key for humans: bucket:id with escapes decoded.
func Display(key cache.Key) string {
	parts := strings.Split(key.ID, "/")
	for i, p := range parts {
		if unescaped, err := url.PathUnescape(p); err == nil {
			parts[i] = unescaped
		}
	}
	return key.Bucket + ":" + strings.Join(parts, "/")
}
