package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/mmcdole/reel/internal/adapter"
	"github.com/mmcdole/reel/internal/cache"
	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/search"
	"github.com/mmcdole/reel/internal/tui"
	"github.com/mmcdole/reel/internal/tui/styles"
)

func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "browse":
		return a.runBrowse(ctx, rest)
	case "mylist":
		return a.runMyList(ctx, rest)
	case "rate":
		return a.runRate(ctx, rest)
	case "login", "logout", "profiles", "profile":
		return a.runSession(ctx, cmd, rest)
	case "library":
		return a.runLibrary(ctx, rest)
	case "cache":
		return a.runCache(ctx, rest)
	default:
		return usageError("unknown command %q", cmd)
	}
}

func usageError(format string, args ...any) error {
	fmt.Fprintf(os.Stderr, format+"\n\n", args...)
	usage()
	return errUsage
}

// need checks that exactly n arguments were given
func need(args []string, n int, what string) error {
	if len(args) != n {
		return usageError("%s expects %d argument(s)", what, n)
	}
	return nil
}

func (a *app) runBrowse(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("browse needs a target")
	}
	if err := a.connect(); err != nil {
		return err
	}

	target, args := args[0], args[1:]
	var (
		result any
		err    error
	)
	switch target {
	case "root":
		if err := need(args, 0, "browse root"); err != nil {
			return err
		}
		result, err = a.catalog.RootLists(ctx)
	case "list":
		if err := need(args, 1, "browse list"); err != nil {
			return err
		}
		var listID string
		listID, err = a.catalog.ListIDForType(ctx, args[0])
		if err == nil {
			result, err = a.catalog.VideoList(ctx, listID)
		}
		if err == nil {
			a.engine.SetLastLocation(listID)
		}
	case "mylist":
		if err := need(args, 0, "browse mylist"); err != nil {
			return err
		}
		var list domain.VideoList
		list, err = a.catalog.MyList(ctx)
		if err == nil {
			a.engine.SetLastLocation(list.ID)
		}
		result = list
	case "seasons":
		if err := need(args, 1, "browse seasons"); err != nil {
			return err
		}
		result, err = a.catalog.Seasons(ctx, args[0])
	case "episodes":
		if err := need(args, 2, "browse episodes"); err != nil {
			return err
		}
		result, err = a.catalog.Episodes(ctx, args[0], args[1])
	case "episode":
		if err := need(args, 2, "browse episode"); err != nil {
			return err
		}
		result, err = a.catalog.Episode(ctx, args[0], args[1])
	case "movie":
		if err := need(args, 1, "browse movie"); err != nil {
			return err
		}
		result, err = a.catalog.Movie(ctx, args[0])
	case "metadata":
		if err := need(args, 1, "browse metadata"); err != nil {
			return err
		}
		result, err = a.catalog.Metadata(ctx, args[0])
	case "episode-metadata":
		if err := need(args, 3, "browse episode-metadata"); err != nil {
			return err
		}
		var ep domain.EpisodeMetadata
		ep, err = a.catalog.EpisodeMetadata(ctx, args[0], args[1], args[2])
		if err == nil && ep.IsZero() {
			return fmt.Errorf("episode %s not found in season %s of %s", args[2], args[1], args[0])
		}
		result = ep
	default:
		return usageError("unknown browse target %q", target)
	}
	if err != nil {
		return err
	}
	return printJSON(result)
}

func (a *app) runMyList(ctx context.Context, args []string) error {
	if err := need(args, 2, "mylist"); err != nil {
		return err
	}
	if err := a.connect(); err != nil {
		return err
	}

	op, videoID := args[0], args[1]
	switch op {
	case "add":
		if err := a.myList.Add(ctx, videoID); err != nil {
			return err
		}
		success("Added %s to my list", videoID)
	case "remove", "rm":
		if err := a.myList.Remove(ctx, videoID); err != nil {
			return err
		}
		success("Removed %s from my list", videoID)
	case "has":
		in, err := a.catalog.InMyList(ctx, videoID)
		if err != nil {
			return err
		}
		return printJSON(map[string]bool{"inMyList": in})
	default:
		return usageError("unknown mylist operation %q", op)
	}
	return nil
}

func (a *app) runRate(ctx context.Context, args []string) error {
	if err := need(args, 2, "rate"); err != nil {
		return err
	}
	rating, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return usageError("rating must be a number: %v", err)
	}
	if err := a.connect(); err != nil {
		return err
	}
	if err := a.rating.Rate(ctx, args[0], rating); err != nil {
		return err
	}
	success("Rated %s", args[0])
	return nil
}

func (a *app) runSession(ctx context.Context, cmd string, args []string) error {
	if err := a.connect(); err != nil {
		return err
	}

	switch cmd {
	case "login":
		if err := a.session.Login(ctx); err != nil {
			return err
		}
		success("Logged in")
	case "logout":
		if err := a.session.Logout(ctx); err != nil {
			return err
		}
		success("Logged out")
	case "profiles":
		profiles, err := a.session.Profiles(ctx)
		if err != nil {
			return err
		}
		return printJSON(profiles)
	case "profile":
		if err := need(args, 1, "profile"); err != nil {
			return err
		}
		if err := a.session.ActivateProfile(ctx, args[0]); err != nil {
			return err
		}
		success("Switched to profile %s", args[0])
	}
	return nil
}

func (a *app) runLibrary(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("library needs an operation")
	}

	switch op := args[0]; op {
	case "ls":
		lib, err := a.library.Load(ctx)
		if err != nil {
			return err
		}
		return printJSON(lib)
	case "add":
		if len(args) < 4 || len(args) > 5 {
			return usageError("library add expects <video> <type> <title> [path]")
		}
		entry := domain.LibraryEntry{
			VideoID: args[1],
			Type:    domain.VideoType(args[2]),
			Title:   args[3],
		}
		if len(args) == 5 {
			entry.Path = args[4]
		}
		if err := a.library.Add(ctx, entry); err != nil {
			return err
		}
		success("Added %s to the library", entry.Title)
	case "rm", "remove":
		if err := need(args[1:], 1, "library rm"); err != nil {
			return err
		}
		if err := a.library.Remove(ctx, args[1]); err != nil {
			return err
		}
		success("Removed %s from the library", args[1])
	default:
		return usageError("unknown library operation %q", op)
	}
	return nil
}

func (a *app) runCache(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("cache needs an operation")
	}

	switch op := args[0]; op {
	case "ls":
		printEntries(search.NewEntryIndex(a.engine.Entries()).Find(""))
	case "find":
		if len(args) < 2 {
			return usageError("cache find expects a query")
		}
		query := strings.Join(args[1:], " ")
		matches := search.NewEntryIndex(a.engine.Entries()).Find(query)
		if len(matches) == 0 {
			fmt.Println(styles.DimStyle.Render("no matching entries"))
			return nil
		}
		printEntries(matches)
	case "clear":
		switch len(args) {
		case 1:
			a.engine.InvalidateAll()
			success("Cache cleared")
		case 2:
			key, err := cache.ParseKey(args[1])
			if err != nil {
				return err
			}
			if _, ok := a.engine.Bucket(key.Bucket); !ok {
				return fmt.Errorf("%w: %q", cache.ErrUnknownBucket, key.Bucket)
			}
			a.engine.InvalidateEntry(key)
			success("Invalidated %s", search.Display(key))
		default:
			return usageError("cache clear expects at most one key")
		}
	case "inspect":
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			printEntries(search.NewEntryIndex(a.engine.Entries()).Find(""))
			return nil
		}
		p := tea.NewProgram(tui.NewModel(a.engine, nil), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil {
			a.logger.Error("TUI error", "error", err)
			return fmt.Errorf("TUI error: %w", err)
		}
	default:
		return usageError("unknown cache operation %q", op)
	}
	return nil
}

// runConfig handles config subcommands. It runs before logging and the cache
// are set up.
func runConfig(cfg *adapter.Config, dir string, args []string) error {
	if len(args) != 1 || args[0] != "init" {
		return usageError("config expects init")
	}

	fmt.Println()
	fmt.Println(styles.TitleStyle.Render("Welcome to reel!"))
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	for {
		url, err := prompt(reader, "Service URL", cfg.Source.URL)
		if err != nil {
			return err
		}
		cfg.Source.URL = url
		if url == "" {
			fmt.Println("Service URL cannot be empty. Please try again.")
			continue
		}
		if err := cfg.Validate(); err != nil {
			fmt.Printf("✗ %v\n", err)
			continue
		}
		break
	}

	token, err := prompt(reader, "Access token", cfg.Source.Token)
	if err != nil {
		return err
	}
	cfg.Source.Token = token

	path, err := adapter.SaveConfig(cfg, dir)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	success("Configuration saved to %s", path)
	return nil
}

func prompt(reader *bufio.Reader, label, current string) (string, error) {
	if current != "" {
		fmt.Printf("%s [%s]: ", label, current)
	} else {
		fmt.Printf("%s: ", label)
	}
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	if input = strings.TrimSpace(input); input == "" {
		return current, nil
	}
	return input, nil
}

func success(format string, args ...any) {
	fmt.Println(styles.SuccessStyle.Render("✓ " + fmt.Sprintf(format, args...)))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printEntries(matches []search.Match) {
	if len(matches) == 0 {
		fmt.Println(styles.DimStyle.Render("cache is empty"))
		return
	}

	rows := make([][]string, len(matches))
	for i, m := range matches {
		e := m.Entry
		ttl := e.TTL.String()
		if e.TTL == cache.Infinite {
			ttl = "∞"
		}
		expires := "never"
		if at := e.ExpiresAt(); !at.IsZero() {
			expires = at.Local().Format("2006-01-02 15:04:05")
		}
		rows[i] = []string{search.Display(e.Key), string(e.Tier), ttl, expires, strconv.Itoa(len(e.Value))}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.DimGray)).
		Headers("KEY", "TIER", "TTL", "EXPIRES", "BYTES").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.TableHeader
			}
			return styles.TableCell
		})
	fmt.Println(t)
}
