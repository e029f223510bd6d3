package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmcdole/reel/internal/cache"
	"github.com/mmcdole/reel/internal/domain"
)

// LibraryStore persists the local media library index in the library bucket.
// Entries never expire by time and survive global cache wipes.
type LibraryStore struct {
	engine *cache.Engine
	logger *slog.Logger

	// mu serializes read-modify-write updates
	mu sync.Mutex
}

// NewLibraryStore creates a new LibraryStore
func NewLibraryStore(engine *cache.Engine, logger *slog.Logger) *LibraryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LibraryStore{engine: engine, logger: logger}
}

var libraryOptions = cache.Options{AllowDisk: true}

// Load returns the stored library, or an empty one if none is stored. A
// failed disk read is returned as an error rather than an empty library.
func (s *LibraryStore) Load(ctx context.Context) (domain.Library, error) {
	data, ok, err := s.engine.Load(ctx, LibraryKey(), libraryOptions)
	if err != nil {
		return nil, fmt.Errorf("load library: %w", err)
	}
	if !ok {
		return domain.Library{}, nil
	}

	var lib domain.Library
	if err := json.Unmarshal(data, &lib); err != nil {
		s.logger.Warn("discarding unreadable library", "error", err)
		return domain.Library{}, nil
	}
	if lib == nil {
		lib = domain.Library{}
	}
	return lib, nil
}

// Save stores the library
func (s *LibraryStore) Save(ctx context.Context, lib domain.Library) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, lib)
}

func (s *LibraryStore) save(ctx context.Context, lib domain.Library) error {
	data, err := json.Marshal(lib)
	if err != nil {
		return err
	}
	if err := s.engine.Store(ctx, LibraryKey(), data, libraryOptions); err != nil {
		return fmt.Errorf("save library: %w", err)
	}
	return nil
}

// Add records an exported title
func (s *LibraryStore) Add(ctx context.Context, entry domain.LibraryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lib, err := s.Load(ctx)
	if err != nil {
		return err
	}
	lib[entry.VideoID] = entry
	return s.save(ctx, lib)
}

// Remove drops a title from the library
func (s *LibraryStore) Remove(ctx context.Context, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lib, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if _, ok := lib[videoID]; !ok {
		return nil
	}
	delete(lib, videoID)
	return s.save(ctx, lib)
}
