package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// FileCache stores artifacts on disk under a hash-sharded directory
// tree. Payloads are written raw with expiry metadata in a sidecar
// file, so multi-megabyte images are never round-tripped through JSON.
type FileCache struct {
	dir string
}

// NewFileCache creates a file-backed cache in the given directory.
// The directory is created if it doesn't exist.
func NewFileCache(dir string) (Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

type fileMeta struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// Get retrieves a payload from the cache.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path := c.path(key)

	metaData, err := os.ReadFile(path + ".meta")
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var meta fileMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		// Corrupt sidecar - treat as miss
		c.remove(path)
		return nil, false, nil
	}
	if !meta.ExpiresAt.IsZero() && time.Now().After(meta.ExpiresAt) {
		c.remove(path)
		return nil, false, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// Sidecar without payload: torn write - treat as miss
		c.remove(path)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores a payload. The payload lands before the sidecar so a
// crash never leaves metadata pointing at missing bytes.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	var meta fileMeta
	if ttl > 0 {
		meta.ExpiresAt = time.Now().Add(ttl)
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	return os.WriteFile(path+".meta", metaData, 0644)
}

// Delete removes a payload and its sidecar.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	path := c.path(key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(path + ".meta"); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Close does nothing for a file cache.
func (c *FileCache) Close() error {
	return nil
}

func (c *FileCache) remove(path string) {
	_ = os.Remove(path)
	_ = os.Remove(path + ".meta")
}

// path converts a cache key to a payload file path. The first two hash
// chars shard entries across subdirectories.
func (c *FileCache) path(key string) string {
	hash := Hash([]byte(key))
	return filepath.Join(c.dir, hash[:2], hash[2:])
}

// Ensure FileCache implements Cache.
var _ Cache = (*FileCache)(nil)
