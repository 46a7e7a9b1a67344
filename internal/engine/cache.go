package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CacheEntry pairs a file's fingerprint with its per-file result. The
// entry is reusable only while the stored fingerprint matches the file's
// current one.
type CacheEntry[R any] struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	Result      R           `json:"result"`
}

// Cache is the persisted state of one analyzer instance: per-file entries
// keyed by base-dir-relative path, tagged with the config fingerprint that
// produced them. The cache file is internal state, not a compatibility
// contract; schema changes are forced out via the config fingerprint.
type Cache[R any] struct {
	ConfigFingerprint string                   `json:"config_fingerprint"`
	Entries           map[string]CacheEntry[R] `json:"entries"`
}

// NewCache returns an empty cache stamped with the given config
// fingerprint.
func NewCache[R any](configFingerprint string) *Cache[R] {
	return &Cache[R]{
		ConfigFingerprint: configFingerprint,
		Entries:           make(map[string]CacheEntry[R]),
	}
}

// IsValidFor reports whether the stored entries can be trusted under the
// current configuration.
func (c *Cache[R]) IsValidFor(configFingerprint string) bool {
	return c.ConfigFingerprint == configFingerprint
}

// LoadCache reads a cache file from disk. Unreadable files and corrupt
// JSON yield an empty cache and a non-nil error describing the cold
// start; callers log it as a warning and proceed. A load failure is
// never fatal.
func LoadCache[R any](path string) (*Cache[R], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewCache[R](""), nil
		}
		return NewCache[R](""), fmt.Errorf("reading cache %s: %w", path, err)
	}

	var cache Cache[R]
	if err := json.Unmarshal(data, &cache); err != nil {
		return NewCache[R](""), fmt.Errorf("parsing cache %s: %w", path, err)
	}
	if cache.Entries == nil {
		cache.Entries = make(map[string]CacheEntry[R])
	}

	return &cache, nil
}

// SaveCache writes the cache atomically: serialize to a temp file in the
// target directory, then rename over the destination. A crash mid-write
// leaves the previous cache intact for the next run.
func SaveCache[R any](path string, cache *Cache[R]) error {
	data, err := json.Marshal(cache)
	if err != nil {
		return fmt.Errorf("serializing cache: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp cache file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing cache %s: %w", path, err)
	}

	return nil
}
