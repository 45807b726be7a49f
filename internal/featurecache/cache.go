package featurecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/chrisgleissner/sidflow-sub004/internal/features"
	"github.com/chrisgleissner/sidflow-sub004/internal/fileutil"
	"github.com/chrisgleissner/sidflow-sub004/internal/logging"
)

const (
	// DefaultTTL is how long an entry stays valid in both tiers.
	DefaultTTL = 7 * 24 * time.Hour
	// DefaultMemoryCapacity bounds the in-process tier.
	DefaultMemoryCapacity = 1000

	hashHexLength = 16
	shardsDirName = "features"
	sweepLockName = ".sweep.lock"
)

// Entry is the persisted cache record: one JSON file per content hash.
type Entry struct {
	ContentHash string       `json:"content_hash"`
	Features    features.Set `json:"features"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Stats describes current cache usage.
type Stats struct {
	MemoryEntries int
	DiskEntries   int
	DiskBytes     int64
}

// Cache is a two-tier content-addressed feature store: a bounded in-process
// map with insertion-order eviction, backed by JSON files sharded by the
// first two hex characters of the content hash.
type Cache struct {
	dir      string
	ttl      time.Duration
	capacity int
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	memory map[string]Entry
	order  []string
}

// Option customizes cache construction.
type Option func(*Cache)

// WithTTL overrides the entry time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMemoryCapacity overrides the in-process tier bound.
func WithMemoryCapacity(capacity int) Option {
	return func(c *Cache) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// withClock lets tests control entry aging.
func withClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New constructs a cache rooted at dir.
func New(dir string, logger *slog.Logger, opts ...Option) *Cache {
	c := &Cache{
		dir:      dir,
		ttl:      DefaultTTL,
		capacity: DefaultMemoryCapacity,
		logger:   logging.NewComponentLogger(logger, "featurecache"),
		now:      time.Now,
		memory:   make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HashFile returns the cache key for a rendered audio file: SHA-256 of the
// full byte content, truncated to 16 hex characters.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer file.Close()

	digest := sha256.New()
	if _, err := io.Copy(digest, file); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return hex.EncodeToString(digest.Sum(nil))[:hashHexLength], nil
}

// GetOrExtract returns the cached feature set for the audio file at path,
// computing and storing it via extract on a miss. Cache failures (hashing,
// disk I/O, decoding) degrade to a miss; only extract errors propagate.
//
// No lock is held across extract: two callers missing on the same hash will
// both extract and one will idempotently overwrite the other.
func (c *Cache) GetOrExtract(path string, extract func() (features.Set, error)) (features.Set, error) {
	hash, err := HashFile(path)
	if err != nil {
		c.logger.Warn("content hashing failed, bypassing cache",
			logging.String("path", path), logging.Error(err))
		return extract()
	}

	if entry, ok := c.memoryLookup(hash); ok {
		return entry.Features.Clone(), nil
	}

	if entry, ok := c.diskLookup(hash); ok {
		c.memoryStore(entry)
		return entry.Features.Clone(), nil
	}

	set, err := extract()
	if err != nil {
		return features.Set{}, err
	}

	entry := Entry{ContentHash: hash, Features: set.Clone(), Timestamp: c.now()}
	c.memoryStore(entry)
	if err := c.diskStore(entry); err != nil {
		c.logger.Warn("feature cache write failed",
			logging.String("content_hash", hash), logging.Error(err))
	}
	return set, nil
}

func (c *Cache) memoryLookup(hash string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.memory[hash]
	if !ok {
		return Entry{}, false
	}
	if c.expired(entry) {
		delete(c.memory, hash)
		c.dropFromOrder(hash)
		return Entry{}, false
	}
	return entry, true
}

func (c *Cache) memoryStore(entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.memory[entry.ContentHash]; ok {
		c.memory[entry.ContentHash] = entry
		return
	}
	for len(c.memory) >= c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.memory, oldest)
	}
	c.memory[entry.ContentHash] = entry
	c.order = append(c.order, entry.ContentHash)
}

func (c *Cache) dropFromOrder(hash string) {
	for i, key := range c.order {
		if key == hash {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Cache) expired(entry Entry) bool {
	return c.now().Sub(entry.Timestamp) >= c.ttl
}

func (c *Cache) entryPath(hash string) string {
	return filepath.Join(c.dir, shardsDirName, hash[:2], hash+".json")
}

func (c *Cache) diskLookup(hash string) (Entry, bool) {
	data, err := os.ReadFile(c.entryPath(hash))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("feature cache read failed",
				logging.String("content_hash", hash), logging.Error(err))
		}
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("feature cache entry undecodable, treating as miss",
			logging.String("content_hash", hash), logging.Error(err))
		return Entry{}, false
	}
	if entry.ContentHash != hash || c.expired(entry) {
		return Entry{}, false
	}
	return entry, true
}

func (c *Cache) diskStore(entry Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	return fileutil.WriteAtomic(c.entryPath(entry.ContentHash), data, 0o644)
}

// Sweep walks every shard and removes expired entries. A file lock on the
// cache root keeps concurrent processes from double-sweeping; when the lock
// is already held the sweep is skipped.
func (c *Cache) Sweep(ctx context.Context) (removed int, err error) {
	root := filepath.Join(c.dir, shardsDirName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return 0, fmt.Errorf("ensure cache root: %w", err)
	}

	lock := flock.New(filepath.Join(root, sweepLockName))
	locked, err := lock.TryLock()
	if err != nil {
		return 0, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !locked {
		c.logger.Debug("sweep already in progress elsewhere, skipping")
		return 0, nil
	}
	defer lock.Unlock()

	shards, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("list shards: %w", err)
	}
	for _, shard := range shards {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !shard.IsDir() {
			continue
		}
		shardDir := filepath.Join(root, shard.Name())
		entries, err := os.ReadDir(shardDir)
		if err != nil {
			c.logger.Warn("shard unreadable during sweep",
				logging.String("shard", shard.Name()), logging.Error(err))
			continue
		}
		for _, file := range entries {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
				continue
			}
			path := filepath.Join(shardDir, file.Name())
			if c.shouldRemove(path) {
				if err := os.Remove(path); err != nil {
					c.logger.Warn("expired entry removal failed",
						logging.String("path", path), logging.Error(err))
					continue
				}
				removed++
			}
		}
	}

	c.evictExpiredMemory()

	if removed > 0 {
		c.logger.Info("swept expired feature cache entries", logging.Int("removed", removed))
	}
	return removed, nil
}

func (c *Cache) shouldRemove(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Undecodable entries never become hits again; reclaim them.
		return true
	}
	return c.expired(entry)
}

func (c *Cache) evictExpiredMemory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.order[:0]
	for _, hash := range c.order {
		entry, ok := c.memory[hash]
		if ok && !c.expired(entry) {
			kept = append(kept, hash)
			continue
		}
		delete(c.memory, hash)
	}
	c.order = kept
}

// Stats reports entry counts for both tiers.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	memoryEntries := len(c.memory)
	c.mu.Unlock()

	stats := Stats{MemoryEntries: memoryEntries}
	root := filepath.Join(c.dir, shardsDirName)
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		stats.DiskEntries++
		if info, err := d.Info(); err == nil {
			stats.DiskBytes += info.Size()
		}
		return nil
	})
	return stats
}
