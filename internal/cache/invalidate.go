package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrUnknownMutation is returned by Invalidator.Affected for a mutation with no rule.
var ErrUnknownMutation = errors.New("cache: no invalidation rule for mutation")

// Invalidation scopes reported to metrics
const (
	scopeAll          = "all"
	scopeEntry        = "entry"
	scopeLastLocation = "last_location"
)

// InvalidateAll removes every entry of every non-persistent bucket from both
// tiers, and clears the last location. Concurrent readers never observe a
// partially cleared store.
func (e *Engine) InvalidateAll() {
	e.clearMu.Lock()
	defer e.clearMu.Unlock()

	e.epoch.Add(1)
	n := e.memory.reset(e.persistent)
	if e.disk != nil {
		removed, err := e.disk.Clear(e.wipeable)
		if err != nil {
			e.storageFailure(context.Background(), Key{}, "clear", err)
		}
		n += removed
	}
	e.clearLastLocation()

	e.logger.Info("cache invalidated", "entries", n)
	e.metrics.RecordInvalidation(context.Background(), scopeAll, n)
}

// InvalidateEntry removes key from every tier it may reside in. It is a no-op
// when the key is absent.
func (e *Engine) InvalidateEntry(key Key) {
	bucket, ok := e.buckets[key.Bucket]
	if !ok {
		e.logger.Warn("invalidating entry in unknown bucket", "bucket", key.Bucket, "key", key.ID)
		return
	}

	e.clearMu.RLock()
	defer e.clearMu.RUnlock()

	mu := e.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	e.epoch.Add(1)

	n := 0
	// Disk first, so a concurrent lookup cannot promote the record back
	if e.disk != nil && bucket.Durable {
		if _, found, err := e.disk.Load(key); err != nil {
			e.storageFailure(context.Background(), key, "load", err)
		} else if found {
			n++
		}
		if err := e.disk.Delete(key); err != nil {
			e.storageFailure(context.Background(), key, "delete", err)
		}
	}
	if e.memory.delete(key) {
		n++
	}

	e.logger.Debug("invalidated entry", "bucket", key.Bucket, "key", key.ID, "removed", n)
	e.metrics.RecordInvalidation(context.Background(), scopeEntry, n)
}

// SetLastLocation records the last viewed list. With a disk tier attached the
// marker survives restarts.
func (e *Engine) SetLastLocation(location string) {
	e.locMu.Lock()
	defer e.locMu.Unlock()

	e.lastLocation = location
	if e.disk == nil {
		return
	}
	err := e.disk.Save(Entry{
		Key:       lastLocationKey,
		Value:     []byte(location),
		CreatedAt: e.now(),
		TTL:       Infinite,
		Tier:      TierDisk,
	})
	if err != nil {
		e.storageFailure(context.Background(), lastLocationKey, "save", err)
	}
}

// LastLocation returns the last viewed list, if any.
func (e *Engine) LastLocation() (string, bool) {
	e.locMu.Lock()
	defer e.locMu.Unlock()
	return e.lastLocation, e.lastLocation != ""
}

// InvalidateLastLocation clears only the last location marker.
func (e *Engine) InvalidateLastLocation() {
	n := e.clearLastLocation()
	e.logger.Debug("invalidated last location")
	e.metrics.RecordInvalidation(context.Background(), scopeLastLocation, n)
}

func (e *Engine) clearLastLocation() int {
	e.locMu.Lock()
	defer e.locMu.Unlock()
	if e.lastLocation == "" {
		return 0
	}
	e.lastLocation = ""
	if e.disk != nil {
		if err := e.disk.Delete(lastLocationKey); err != nil {
			e.storageFailure(context.Background(), lastLocationKey, "delete", err)
		}
	}
	return 1
}

// Rule enumerates the keys a mutation makes stale. It runs after the
// mutation succeeded.
type Rule func(ctx context.Context) ([]Key, error)

// Invalidator maps mutations to the cache entries they invalidate.
//
// In cascading mode a mutation invalidates the last location plus every key
// its rule returns. In full-wipe mode every mutation clears the whole cache.
type Invalidator struct {
	engine   *Engine
	fullWipe bool
	logger   *slog.Logger

	mu    sync.RWMutex
	rules map[string]Rule
}

// NewInvalidator creates an invalidator for engine. fullWipe selects full
// cache wipes over cascading invalidation.
func NewInvalidator(engine *Engine, fullWipe bool, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{
		engine:   engine,
		fullWipe: fullWipe,
		logger:   logger,
		rules:    make(map[string]Rule),
	}
}

// Register sets the rule for a mutation, replacing any previous rule.
func (i *Invalidator) Register(mutation string, rule Rule) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.rules[mutation] = rule
}

// FullWipe reports whether mutations clear the whole cache.
func (i *Invalidator) FullWipe() bool {
	return i.fullWipe
}

// Affected returns the keys the mutation's rule enumerates.
func (i *Invalidator) Affected(ctx context.Context, mutation string) ([]Key, error) {
	i.mu.RLock()
	rule, ok := i.rules[mutation]
	i.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMutation, mutation)
	}
	return rule(ctx)
}

// Apply invalidates what mutation made stale. When the affected keys cannot
// be enumerated it falls back to a full wipe, so Apply never leaves stale
// entries behind and never fails.
func (i *Invalidator) Apply(ctx context.Context, mutation string) {
	if i.fullWipe {
		i.logger.Debug("mutation clears cache", "mutation", mutation)
		i.engine.InvalidateAll()
		return
	}

	keys, err := i.Affected(ctx, mutation)
	if err != nil {
		i.logger.Warn("cannot enumerate invalidated entries, clearing cache", "mutation", mutation, "error", err)
		i.engine.InvalidateAll()
		return
	}

	i.engine.InvalidateLastLocation()
	for _, k := range keys {
		i.engine.InvalidateEntry(k)
	}
	i.logger.Debug("mutation invalidated entries", "mutation", mutation, "count", len(keys))
}
