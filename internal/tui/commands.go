package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/reel/internal/cache"
)

// Cache is the part of the cache engine the inspector drives
type Cache interface {
	Entries() []cache.Entry
	InvalidateEntry(key cache.Key)
	InvalidateAll()
	LastLocation() (string, bool)
}

// LoadEntriesCmd snapshots every entry in both tiers
func LoadEntriesCmd(c Cache) tea.Cmd {
	return func() tea.Msg {
		loc, _ := c.LastLocation()
		return EntriesLoadedMsg{Entries: c.Entries(), LastLocation: loc}
	}
}

// InvalidateEntryCmd removes a single entry
func InvalidateEntryCmd(c Cache, key cache.Key) tea.Cmd {
	return func() tea.Msg {
		c.InvalidateEntry(key)
		return InvalidatedMsg{Key: &key}
	}
}

// InvalidateAllCmd wipes the whole cache
func InvalidateAllCmd(c Cache) tea.Cmd {
	return func() tea.Msg {
		c.InvalidateAll()
		return InvalidatedMsg{}
	}
}
