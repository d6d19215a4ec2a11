// Package testdata maintains the bounded local cache of problem test
// data packs. Packs are zstd-compressed tarballs keyed by problem and
// edition; a redis lock keeps concurrent workers from downloading the
// same pack twice.
package testdata

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"efrog/internal/common/cache"
	"efrog/internal/common/storage"
	appErr "efrog/pkg/errors"
)

const (
	metaFileName  = "meta.json"
	tempFileName  = "pack.tmp"
	lockKeyPrefix = "judge:testdata:lock:"
)

// PackMeta identifies one downloadable test data pack.
type PackMeta struct {
	ProblemID int64  `json:"problem_id"`
	Edition   int32  `json:"edition"`
	PackKey   string `json:"pack_key"`
	PackHash  string `json:"pack_hash"`
}

type packEntry struct {
	key       string
	path      string
	sizeBytes int64
	expiresAt time.Time
}

// PackCacheConfig sizes the local cache.
type PackCacheConfig struct {
	RootDir    string        `yaml:"rootDir"`
	TTL        time.Duration `yaml:"ttl"`
	LockWait   time.Duration `yaml:"lockWait"`
	MaxEntries int           `yaml:"maxEntries"`
	MaxBytes   int64         `yaml:"maxBytes"`
	Bucket     string        `yaml:"bucket"`
}

// PackCache manages local test data pack caching with LRU eviction.
type PackCache struct {
	cfg     PackCacheConfig
	storage storage.ObjectStorage
	lock    cache.Cache

	mu        sync.Mutex
	entries   map[string]*packEntry
	lruKeys   []string
	totalSize int64
}

// NewPackCache creates a new cache.
func NewPackCache(cfg PackCacheConfig, storageClient storage.ObjectStorage, lockClient cache.Cache) *PackCache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 64
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 30 * time.Second
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &PackCache{
		cfg:     cfg,
		storage: storageClient,
		lock:    lockClient,
		entries: make(map[string]*packEntry),
	}
}

// Get returns the local directory holding the extracted pack.
func (c *PackCache) Get(ctx context.Context, meta PackMeta) (string, error) {
	if meta.ProblemID <= 0 || meta.Edition <= 0 {
		return "", appErr.ValidationError("problem_id", "required")
	}
	if c.storage == nil {
		return "", appErr.New(appErr.TestDataUnavailable).WithMessage("storage client is not initialized")
	}
	if c.cfg.RootDir == "" {
		return "", appErr.New(appErr.TestDataUnavailable).WithMessage("cache root is not configured")
	}
	key := packKey(meta.ProblemID, meta.Edition)
	path := filepath.Join(c.cfg.RootDir, fmt.Sprintf("%d", meta.ProblemID), fmt.Sprintf("%d", meta.Edition))

	if c.hitEntry(key) {
		return path, nil
	}
	if c.checkDisk(path, meta) {
		c.addEntry(key, path)
		return path, nil
	}
	if err := c.fetchAndExtract(ctx, meta, path); err != nil {
		return "", err
	}
	c.addEntry(key, path)
	return path, nil
}

func (c *PackCache) hitEntry(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	if time.Now().After(entry.expiresAt) {
		c.removeEntryLocked(key)
		return false
	}
	entry.expiresAt = time.Now().Add(c.cfg.TTL)
	c.touchLocked(key)
	return true
}

func (c *PackCache) checkDisk(path string, meta PackMeta) bool {
	data, err := os.ReadFile(filepath.Join(path, metaFileName))
	if err != nil {
		return false
	}
	var stored PackMeta
	if err := json.Unmarshal(data, &stored); err != nil {
		return false
	}
	return stored.PackHash == meta.PackHash && stored.PackKey == meta.PackKey
}

func (c *PackCache) fetchAndExtract(ctx context.Context, meta PackMeta, path string) error {
	if c.lock == nil {
		return appErr.New(appErr.TestDataUnavailable).WithMessage("lock client is not initialized")
	}
	lockKey := lockKeyPrefix + packKey(meta.ProblemID, meta.Edition)
	locked, err := c.lock.TryLock(ctx, lockKey, 5*time.Minute)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "acquire pack lock failed")
	}
	if !locked {
		return c.waitForCache(ctx, meta, path)
	}
	defer func() {
		_ = c.lock.Unlock(ctx, lockKey)
	}()

	if c.checkDisk(path, meta) {
		return nil
	}

	if err := os.RemoveAll(path); err != nil {
		return appErr.Wrapf(err, appErr.TestDataUnavailable, "cleanup pack dir failed")
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return appErr.Wrapf(err, appErr.TestDataUnavailable, "create pack dir failed")
	}

	tempPath := filepath.Join(path, tempFileName)
	if err := c.downloadPack(ctx, meta, tempPath); err != nil {
		return err
	}
	if err := extractPack(tempPath, path); err != nil {
		return err
	}
	_ = os.Remove(tempPath)

	metaBytes, _ := json.Marshal(meta)
	if err := os.WriteFile(filepath.Join(path, metaFileName), metaBytes, 0644); err != nil {
		return appErr.Wrapf(err, appErr.TestDataUnavailable, "write pack meta failed")
	}
	return nil
}

func (c *PackCache) waitForCache(ctx context.Context, meta PackMeta, path string) error {
	deadline := time.Now().Add(c.cfg.LockWait)
	for {
		if c.checkDisk(path, meta) {
			return nil
		}
		if time.Now().After(deadline) {
			return appErr.New(appErr.Timeout).WithMessage("wait for pack cache timeout")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (c *PackCache) downloadPack(ctx context.Context, meta PackMeta, dstPath string) error {
	if meta.PackKey == "" {
		return appErr.ValidationError("pack_key", "required")
	}
	reader, err := c.storage.GetObject(ctx, c.cfg.Bucket, meta.PackKey)
	if err != nil {
		return appErr.Wrapf(err, appErr.TestDataUnavailable, "download pack failed")
	}
	defer func() { _ = reader.Close() }()

	file, err := os.Create(dstPath)
	if err != nil {
		return appErr.Wrapf(err, appErr.TestDataUnavailable, "create pack file failed")
	}
	defer func() { _ = file.Close() }()

	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)
	if _, err := io.Copy(file, tee); err != nil {
		return appErr.Wrapf(err, appErr.TestDataUnavailable, "write pack file failed")
	}
	if meta.PackHash != "" {
		actual := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(actual, meta.PackHash) {
			return appErr.New(appErr.TestDataUnavailable).WithMessage("pack hash mismatch")
		}
	}
	return nil
}

func extractPack(srcPath, dstDir string) error {
	file, err := os.Open(srcPath)
	if err != nil {
		return appErr.Wrapf(err, appErr.TestDataUnavailable, "open pack failed")
	}
	defer func() { _ = file.Close() }()

	zstdReader, err := zstd.NewReader(file)
	if err != nil {
		return appErr.Wrapf(err, appErr.TestDataUnavailable, "create zstd reader failed")
	}
	defer zstdReader.Close()

	tr := tar.NewReader(zstdReader)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return appErr.Wrapf(err, appErr.TestDataUnavailable, "read tar entry failed")
		}
		if hdr.Name == "" {
			continue
		}
		cleanName := filepath.Clean(hdr.Name)
		if strings.HasPrefix(cleanName, "..") || filepath.IsAbs(cleanName) {
			return appErr.New(appErr.TestDataUnavailable).WithMessage("invalid tar entry path")
		}
		target := filepath.Join(dstDir, cleanName)
		if !strings.HasPrefix(target, filepath.Clean(dstDir)+string(filepath.Separator)) {
			return appErr.New(appErr.TestDataUnavailable).WithMessage("tar entry escape detected")
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return appErr.Wrapf(err, appErr.TestDataUnavailable, "create dir failed")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return appErr.Wrapf(err, appErr.TestDataUnavailable, "create parent dir failed")
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fs.FileMode(hdr.Mode))
			if err != nil {
				return appErr.Wrapf(err, appErr.TestDataUnavailable, "create file failed")
			}
			if _, err := io.Copy(out, tr); err != nil {
				_ = out.Close()
				return appErr.Wrapf(err, appErr.TestDataUnavailable, "write file failed")
			}
			_ = out.Close()
		default:
			// skip other types
		}
	}
	return nil
}

func (c *PackCache) addEntry(key, path string) {
	size := dirSize(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		c.totalSize -= existing.sizeBytes
	}
	c.entries[key] = &packEntry{
		key:       key,
		path:      path,
		sizeBytes: size,
		expiresAt: time.Now().Add(c.cfg.TTL),
	}
	c.totalSize += size
	c.touchLocked(key)
	c.evictLocked()
}

func (c *PackCache) touchLocked(key string) {
	for i, k := range c.lruKeys {
		if k == key {
			c.lruKeys = append(c.lruKeys[:i], c.lruKeys[i+1:]...)
			break
		}
	}
	c.lruKeys = append(c.lruKeys, key)
}

func (c *PackCache) evictLocked() {
	for {
		if c.cfg.MaxEntries > 0 && len(c.entries) > c.cfg.MaxEntries {
			c.removeOldestLocked()
			continue
		}
		if c.cfg.MaxBytes > 0 && c.totalSize > c.cfg.MaxBytes {
			c.removeOldestLocked()
			continue
		}
		break
	}
}

func (c *PackCache) removeOldestLocked() {
	if len(c.lruKeys) == 0 {
		return
	}
	key := c.lruKeys[0]
	c.lruKeys = c.lruKeys[1:]
	c.removeEntryLocked(key)
}

func (c *PackCache) removeEntryLocked(key string) {
	entry, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)
	c.totalSize -= entry.sizeBytes
	_ = os.RemoveAll(entry.path)
}

func packKey(problemID int64, edition int32) string {
	return fmt.Sprintf("%d:%d", problemID, edition)
}

func dirSize(path string) int64 {
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		return nil
	})
	return total
}
