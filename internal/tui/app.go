// Package tui implements an interactive inspector for the catalog cache.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/reel/internal/cache"
	"github.com/mmcdole/reel/internal/search"
	"github.com/mmcdole/reel/internal/tui/styles"
)

// Lines used by everything except the table body
const chromeHeight = 8

// Model is the inspector state
type Model struct {
	cache Cache
	now   func() time.Time
	keys  KeyMap

	table  table.Model
	filter textinput.Model

	entries      []cache.Entry // every entry, sorted by key
	visible      []cache.Entry // entries matching the filter, in table order
	lastLocation string

	filtering    bool
	confirmClear bool
	status       string

	width  int
	height int
}

// NewModel creates an inspector over c. now defaults to time.Now.
func NewModel(c Cache, now func() time.Time) Model {
	if now == nil {
		now = time.Now
	}

	km := table.DefaultKeyMap()
	// d invalidates the selected entry
	km.HalfPageDown.SetKeys("ctrl+d")

	ts := table.DefaultStyles()
	ts.Header = styles.TableHeader
	ts.Cell = styles.TableCell
	ts.Selected = styles.TableSelected

	t := table.New(
		table.WithColumns(columns()),
		table.WithFocused(true),
		table.WithKeyMap(km),
		table.WithStyles(ts),
		table.WithHeight(20),
	)

	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "filter keys"
	ti.CharLimit = cache.MaxKeyLength

	return Model{
		cache:  c,
		now:    now,
		keys:   DefaultKeyMap(),
		table:  t,
		filter: ti,
	}
}

func columns() []table.Column {
	return []table.Column{
		{Title: "Bucket", Width: 18},
		{Title: "Key", Width: 40},
		{Title: "Tier", Width: 6},
		{Title: "Age", Width: 9},
		{Title: "TTL", Width: 9},
		{Title: "Fresh", Width: 5},
		{Title: "Size", Width: 8},
	}
}

func (m Model) Init() tea.Cmd {
	return LoadEntriesCmd(m.cache)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetHeight(max(msg.Height-chromeHeight, 3))
		return m, nil

	case EntriesLoadedMsg:
		m.entries = sortEntries(msg.Entries)
		m.lastLocation = msg.LastLocation
		m.applyFilter()
		return m, nil

	case InvalidatedMsg:
		if msg.Key != nil {
			m.status = "invalidated " + search.Display(*msg.Key)
		} else {
			m.status = "cache cleared"
		}
		return m, LoadEntriesCmd(m.cache)

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.confirmClear {
		m.confirmClear = false
		if key.Matches(msg, m.keys.Confirm) {
			return m, InvalidateAllCmd(m.cache)
		}
		m.status = "clear cancelled"
		return m, nil
	}

	if m.filtering {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.filtering = false
			m.filter.Blur()
			m.filter.Reset()
			m.applyFilter()
			return m, nil
		case key.Matches(msg, m.keys.Accept):
			m.filtering = false
			m.filter.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		return m, m.filter.Focus()

	case key.Matches(msg, m.keys.Escape):
		if m.filter.Value() != "" {
			m.filter.Reset()
			m.applyFilter()
		}
		return m, nil

	case key.Matches(msg, m.keys.Invalidate):
		entry, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, InvalidateEntryCmd(m.cache, entry.Key)

	case key.Matches(msg, m.keys.ClearAll):
		m.confirmClear = true
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.status = ""
		return m, LoadEntriesCmd(m.cache)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// selected returns the entry under the cursor
func (m Model) selected() (cache.Entry, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.visible) {
		return cache.Entry{}, false
	}
	return m.visible[i], true
}

// keySource implements sahilm/fuzzy.Source over lowercase display keys
type keySource []string

func (s keySource) String(i int) string { return s[i] }
func (s keySource) Len() int            { return len(s) }

func (m *Model) applyFilter() {
	query := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	if query == "" {
		m.visible = m.entries
	} else {
		src := make(keySource, len(m.entries))
		for i, e := range m.entries {
			src[i] = strings.ToLower(search.Display(e.Key))
		}
		matches := fuzzy.FindFrom(query, src)
		m.visible = make([]cache.Entry, len(matches))
		for i, match := range matches {
			m.visible[i] = m.entries[match.Index]
		}
	}

	now := m.now()
	rows := make([]table.Row, len(m.visible))
	for i, e := range m.visible {
		rows[i] = entryRow(e, now)
	}
	m.table.SetRows(rows)
	if len(rows) > 0 && m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

// sortEntries orders entries by key, memory before disk
func sortEntries(entries []cache.Entry) []cache.Entry {
	out := append([]cache.Entry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := out[i].Key.String(), out[j].Key.String()
		if ki != kj {
			return ki < kj
		}
		return out[i].Tier == cache.TierMemory && out[j].Tier != cache.TierMemory
	})
	return out
}

func entryRow(e cache.Entry, now time.Time) table.Row {
	display := search.Display(e.Key)
	fresh := "no"
	if e.FreshAt(now) {
		fresh = "yes"
	}
	return table.Row{
		e.Key.Bucket,
		strings.TrimPrefix(display, e.Key.Bucket+":"),
		string(e.Tier),
		formatDuration(now.Sub(e.CreatedAt)),
		formatTTL(e.TTL),
		fresh,
		formatSize(len(e.Value)),
	}
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return d.Truncate(time.Second).String()
}

func formatTTL(ttl time.Duration) string {
	if ttl == cache.Infinite {
		return "∞"
	}
	return formatDuration(ttl)
}

func formatSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func (m Model) View() string {
	var b strings.Builder

	header := styles.TitleStyle.Render("reel cache") + " " +
		styles.DimStyle.Render(fmt.Sprintf("%d entries, %d shown", len(m.entries), len(m.visible)))
	if m.lastLocation != "" {
		header += styles.DimStyle.Render("  last: ") + styles.AccentStyle.Render(m.lastLocation)
	}
	b.WriteString(header + "\n")

	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
	}
	b.WriteString("\n")

	if len(m.entries) == 0 {
		b.WriteString(styles.DimStyle.Render("cache is empty") + "\n")
	} else {
		b.WriteString(styles.TableBorder.Render(m.table.View()) + "\n")
	}

	switch {
	case m.confirmClear:
		b.WriteString(styles.WarnStyle.Render("Clear every entry in every bucket? (y/n)"))
	case m.status != "":
		b.WriteString(styles.SuccessStyle.Render(m.status))
	}
	b.WriteString("\n")

	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderFooter() string {
	var parts []string
	for _, kb := range m.keys.footerBindings() {
		h := kb.Help()
		parts = append(parts, styles.KeyStyle.Render(h.Key)+" "+styles.HelpStyle.Render(h.Desc))
	}
	footer := strings.Join(parts, "  ")
	if m.width > 0 {
		footer = lipgloss.NewStyle().MaxWidth(m.width).Render(footer)
	}
	return footer
}
