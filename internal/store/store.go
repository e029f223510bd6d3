package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mmcdole/reel/internal/cache"
)

// errStopScan ends a Scan early without reporting an error.
var errStopScan = errors.New("stop scan")

// record is the persisted form of a cache entry
type record struct {
	Value     []byte        `json:"value"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

// DiskStore implements cache.DiskTier using BoltDB. Each cache bucket is a
// bolt bucket and each entry is stored under its key ID.
type DiskStore struct {
	db     *bolt.DB
	logger *slog.Logger
}

// Open opens the cache database for sourceURL under baseDir and creates the
// given buckets. Each source gets its own database directory.
func Open(baseDir, sourceURL string, buckets []string, logger *slog.Logger) (*DiskStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir := baseDir
	if sourceURL != "" {
		dir = filepath.Join(baseDir, hashSourceURL(sourceURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "reel.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("opened disk cache", "path", dbPath)
	return &DiskStore{db: db, logger: logger}, nil
}

func hashSourceURL(sourceURL string) string {
	normalized := strings.TrimRight(strings.ToLower(sourceURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

// Path returns the database file path.
func (s *DiskStore) Path() string {
	return s.db.Path()
}

func (s *DiskStore) Close() error {
	return s.db.Close()
}

func (s *DiskStore) Load(key cache.Key) (cache.Entry, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(key.Bucket))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key.ID)); v != nil {
			// Bolt memory is only valid inside the transaction
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return cache.Entry{}, false, err
	}
	if data == nil {
		return cache.Entry{}, false, nil
	}

	entry, err := decode(key, data)
	if err != nil {
		return cache.Entry{}, false, err
	}
	return entry, true, nil
}

func (s *DiskStore) Save(entry cache.Entry) error {
	data, err := json.Marshal(record{
		Value:     entry.Value,
		CreatedAt: entry.CreatedAt,
		TTL:       entry.TTL,
	})
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(entry.Key.Bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(entry.Key.ID), data)
	})
}

func (s *DiskStore) Delete(key cache.Key) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(key.Bucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key.ID))
	})
}

// Clear empties the named buckets in one transaction. Missing buckets are
// skipped.
func (s *DiskStore) Clear(buckets []string) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			removed += b.Stats().KeyN

			// Recreate rather than delete with a cursor, which skips keys
			if err := tx.DeleteBucket([]byte(name)); err != nil {
				return err
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Scan calls fn for every decodable record. Records that fail to decode are skipped.
func (s *DiskStore) Scan(fn func(cache.Entry) bool) error {
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			bucket := string(name)
			return b.ForEach(func(k, v []byte) error {
				key := cache.Key{Bucket: bucket, ID: string(k)}
				entry, err := decode(key, v)
				if err != nil {
					s.logger.Warn("skipping undecodable disk record", "bucket", bucket, "key", key.ID, "error", err)
					return nil
				}
				if !fn(entry) {
					return errStopScan
				}
				return nil
			})
		})
	})
	if errors.Is(err, errStopScan) {
		return nil
	}
	return err
}

// PurgeExpired deletes records that are stale at now, along with records that
// cannot be decoded.
func (s *DiskStore) PurgeExpired(now time.Time) (int, error) {
	purged := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			var stale [][]byte
			err := b.ForEach(func(k, v []byte) error {
				entry, err := decode(cache.Key{Bucket: string(name), ID: string(k)}, v)
				if err != nil || !entry.FreshAt(now) {
					stale = append(stale, append([]byte(nil), k...))
				}
				return nil
			})
			if err != nil {
				return err
			}
			for _, k := range stale {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
			purged += len(stale)
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}

func decode(key cache.Key, data []byte) (cache.Entry, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return cache.Entry{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return cache.Entry{
		Key:       key,
		Value:     r.Value,
		CreatedAt: r.CreatedAt,
		TTL:       r.TTL,
		Tier:      cache.TierDisk,
	}, nil
}

var _ cache.DiskTier = (*DiskStore)(nil)
