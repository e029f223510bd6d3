package cache

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"

	"github.com/mmcdole/reel/internal/observe"
)

// lockStripes is the number of per-key write locks. Keys hash onto stripes.
const lockStripes = 64

// stateBucket holds engine bookkeeping in the disk tier. Registered bucket
// names cannot contain a colon, so it never collides with one.
const stateBucket = "reel:state"

var lastLocationKey = Key{Bucket: stateBucket, ID: "last_location"}

// Producer computes the value for a key on a cache miss.
type Producer func(ctx context.Context) ([]byte, error)

// Options tune a single call.
type Options struct {
	// TTL overrides the bucket default when positive.
	TTL time.Duration

	// AllowDisk lets a durable bucket read from and write to the disk tier.
	AllowDisk bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithDisk attaches a disk tier for durable buckets. The engine owns it and
// closes it in Close.
func WithDisk(d DiskTier) Option {
	return func(e *Engine) { e.disk = d }
}

// WithClock replaces the wall clock used for freshness decisions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer sets the tracer used around producer calls.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// Engine is the cache orchestrator. It consults the memory tier, then the disk
// tier, and calls through to the producer on a miss.
//
// Concurrency: at most one producer call is in flight per key. Writes to a key
// are serialized by a striped lock. InvalidateAll holds clearMu exclusively, so
// a reader sees either the store before the wipe or the store after it. Disk
// reads happen outside clearMu and are only promoted if no invalidation ran
// meanwhile.
type Engine struct {
	buckets map[string]Bucket
	memory  *memoryTier
	disk    DiskTier

	// persistent and wipeable split the buckets for InvalidateAll
	persistent map[string]bool
	wipeable   []string

	now     func() time.Time
	logger  *slog.Logger
	metrics observe.Metrics
	tracer  trace.Tracer

	flight  singleflight.Group
	locks   [lockStripes]sync.Mutex
	clearMu sync.RWMutex

	// epoch advances on every invalidation. A producer result computed under
	// an older epoch is returned to its callers but not stored.
	epoch atomic.Uint64

	locMu        sync.Mutex
	lastLocation string
}

// New creates an engine for the given buckets. When a disk tier is attached,
// records that expired while the process was down are purged.
func New(buckets []Bucket, opts ...Option) (*Engine, error) {
	index, err := indexBuckets(buckets)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		buckets:    index,
		memory:     newMemoryTier(),
		persistent: make(map[string]bool),
		now:        time.Now,
	}
	for _, b := range buckets {
		switch {
		case b.Persistent:
			e.persistent[b.Name] = true
		case b.Durable:
			e.wipeable = append(e.wipeable, b.Name)
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.metrics == nil {
		e.metrics = observe.NoopMetrics()
	}
	if e.tracer == nil {
		e.tracer = noop.NewTracerProvider().Tracer(observe.InstrumentationName)
	}

	if e.disk != nil {
		n, err := e.disk.PurgeExpired(e.now())
		if err != nil {
			e.logger.Warn("failed to purge expired disk entries", "error", err)
		} else if n > 0 {
			e.logger.Debug("purged expired disk entries", "count", n)
		}

		ent, ok, err := e.disk.Load(lastLocationKey)
		if err != nil {
			e.logger.Warn("failed to load last location", "error", err)
		} else if ok {
			e.lastLocation = string(ent.Value)
		}
	}

	return e, nil
}

// Close releases the disk tier. Disk writes are synchronous, so nothing is
// left to flush.
func (e *Engine) Close() error {
	if e.disk == nil {
		return nil
	}
	return e.disk.Close()
}

// Bucket returns the registered bucket with the given name.
func (e *Engine) Bucket(name string) (Bucket, bool) {
	b, ok := e.buckets[name]
	return b, ok
}

// GetOrCompute returns the fresh cached value for key, or calls produce,
// stores its result and returns it. A producer error is returned unchanged and
// nothing is stored. Disk failures are treated as misses.
//
// Concurrent callers for the same missing key share one producer call. The
// producer gets the values of the caller that started it but not its
// cancellation: a caller whose ctx ends returns ctx.Err() on its own while the
// call carries on for the others.
func (e *Engine) GetOrCompute(ctx context.Context, key Key, opts Options, produce Producer) ([]byte, error) {
	bucket, ok := e.buckets[key.Bucket]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBucket, key.Bucket)
	}
	if err := ValidateKey(key); err != nil {
		e.logger.Debug("calling producer uncached", "key", key.String(), "error", err)
		return produce(ctx)
	}

	useDisk := e.useDisk(bucket, opts)
	if v, ok, _ := e.load(ctx, bucket, key, useDisk); ok {
		return v, nil
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := e.flight.DoChan(key.String(), func() (any, error) {
		// A flight for this key may have finished between our lookup and DoChan
		if ent, ok := e.memory.get(key); ok && ent.FreshAt(e.now()) {
			return ent.Value, nil
		}

		epoch := e.epoch.Load()
		value, err := e.call(flightCtx, bucket, key, produce)
		if err != nil {
			return nil, err
		}
		_ = e.store(flightCtx, bucket, key, value, opts.TTL, useDisk, &epoch)
		return value, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		value := res.Val.([]byte)
		if res.Shared {
			return bytes.Clone(value), nil
		}
		return value, nil
	}
}

// Lookup returns the fresh cached value for key without calling any producer.
func (e *Engine) Lookup(ctx context.Context, key Key, opts Options) ([]byte, bool) {
	bucket, ok := e.buckets[key.Bucket]
	if !ok || ValidateKey(key) != nil {
		return nil, false
	}
	v, ok, _ := e.load(ctx, bucket, key, e.useDisk(bucket, opts))
	return v, ok
}

// Load is Lookup for callers that must tell a miss apart from a failed disk
// read, such as a read-modify-write of user data.
func (e *Engine) Load(ctx context.Context, key Key, opts Options) ([]byte, bool, error) {
	bucket, ok := e.buckets[key.Bucket]
	if !ok {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownBucket, key.Bucket)
	}
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}
	return e.load(ctx, bucket, key, e.useDisk(bucket, opts))
}

// Store writes value under key, replacing any previous entry. A disk failure
// is returned after the memory tier has taken the value.
func (e *Engine) Store(ctx context.Context, key Key, value []byte, opts Options) error {
	bucket, ok := e.buckets[key.Bucket]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBucket, key.Bucket)
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	return e.store(ctx, bucket, key, value, opts.TTL, e.useDisk(bucket, opts), nil)
}

// Entries lists every physical record in both tiers, stale ones included.
func (e *Engine) Entries() []Entry {
	e.clearMu.RLock()
	defer e.clearMu.RUnlock()

	entries := e.memory.snapshot()
	if e.disk == nil {
		return entries
	}
	err := e.disk.Scan(func(ent Entry) bool {
		if _, ok := e.buckets[ent.Key.Bucket]; ok {
			entries = append(entries, ent)
		}
		return true
	})
	if err != nil {
		e.storageFailure(context.Background(), Key{}, "scan", err)
	}
	return entries
}

func (e *Engine) useDisk(b Bucket, opts Options) bool {
	return e.disk != nil && b.Durable && opts.AllowDisk
}

func (e *Engine) lockFor(key Key) *sync.Mutex {
	return &e.locks[xxhash.Sum64String(key.String())%lockStripes]
}

// load consults memory, then disk. A disk read error is logged, counted as a
// miss and returned.
func (e *Engine) load(ctx context.Context, bucket Bucket, key Key, useDisk bool) ([]byte, bool, error) {
	if v, ok := e.memoryHit(key); ok {
		e.logger.Debug("cache hit", "bucket", bucket.Name, "key", key.ID, "tier", TierMemory)
		e.metrics.RecordLookup(ctx, bucket.Name, observe.ResultMemory)
		return v, true, nil
	}

	var loadErr error
	if useDisk {
		// No lock is held across the read, so a pending InvalidateAll does
		// not park memory readers behind a slow disk.
		epoch := e.epoch.Load()
		ent, ok, err := e.disk.Load(key)
		switch {
		case err != nil:
			e.storageFailure(ctx, key, "load", err)
			loadErr = err
		case ok && ent.FreshAt(e.now()) && e.promote(ent, epoch):
			e.logger.Debug("cache hit", "bucket", bucket.Name, "key", key.ID, "tier", TierDisk)
			e.metrics.RecordLookup(ctx, bucket.Name, observe.ResultDisk)
			return ent.Value, true, nil
		}
	}

	e.logger.Debug("cache miss", "bucket", bucket.Name, "key", key.ID)
	e.metrics.RecordLookup(ctx, bucket.Name, observe.ResultMiss)
	return nil, false, loadErr
}

func (e *Engine) memoryHit(key Key) ([]byte, bool) {
	e.clearMu.RLock()
	defer e.clearMu.RUnlock()

	ent, ok := e.memory.get(key)
	if !ok || !ent.FreshAt(e.now()) {
		return nil, false
	}
	return ent.Value, true
}

// promote copies a disk record into memory. It refuses when an invalidation
// ran after epoch was read, since the record may already be gone from disk.
func (e *Engine) promote(ent Entry, epoch uint64) bool {
	e.clearMu.RLock()
	defer e.clearMu.RUnlock()

	mu := e.lockFor(ent.Key)
	mu.Lock()
	defer mu.Unlock()

	if e.epoch.Load() != epoch {
		return false
	}
	e.memory.put(ent)
	return true
}

func (e *Engine) call(ctx context.Context, bucket Bucket, key Key, produce Producer) ([]byte, error) {
	ctx, span := e.tracer.Start(ctx, "cache.produce", trace.WithAttributes(
		attribute.String("cache.bucket", bucket.Name),
		attribute.String("cache.key", key.ID),
	))
	defer span.End()

	start := time.Now()
	value, err := produce(ctx)
	e.metrics.RecordProducer(ctx, bucket.Name, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return value, err
}

// store writes an entry to memory and, with useDisk, to disk. When epoch is
// set the write is skipped if an invalidation ran after it was read.
func (e *Engine) store(ctx context.Context, bucket Bucket, key Key, value []byte, ttl time.Duration, useDisk bool, epoch *uint64) error {
	e.clearMu.RLock()
	defer e.clearMu.RUnlock()

	mu := e.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	if epoch != nil && e.epoch.Load() != *epoch {
		e.logger.Debug("dropping result computed before invalidation", "bucket", bucket.Name, "key", key.ID)
		return nil
	}

	entry := Entry{
		Key:       key,
		Value:     value,
		CreatedAt: e.now(),
		TTL:       bucket.EffectiveTTL(ttl),
		Tier:      TierMemory,
	}
	e.memory.put(entry)

	if useDisk {
		entry.Tier = TierDisk
		if err := e.disk.Save(entry); err != nil {
			e.storageFailure(ctx, key, "save", err)
			return err
		}
	}
	return nil
}

func (e *Engine) storageFailure(ctx context.Context, key Key, op string, err error) {
	e.logger.Warn("disk tier failure", "op", op, "bucket", key.Bucket, "key", key.ID, "error", err)
	e.metrics.RecordStorageFailure(ctx, key.Bucket, op)
}
