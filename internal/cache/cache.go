package cache

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/teamcutter/ipfilter/internal/domain"
	"github.com/teamcutter/ipfilter/internal/logging"
)

var log = logging.L("cache")

// DiskCache keeps the last decompressed list in a single file. The file's
// modification time is the list timestamp.
type DiskCache struct {
	sync.RWMutex
	path string
}

func New(path string) *DiskCache {
	return &DiskCache{path: path}
}

func (c *DiskCache) Path() string {
	return c.path
}

// Get returns the cached list, or nil when there is none.
func (c *DiskCache) Get() *domain.DownloadResult {
	c.RLock()
	defer c.RUnlock()

	info, err := os.Stat(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("couldn't stat cached list", "path", c.path, logging.KeyError, err)
		}
		return nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		log.Warn("couldn't read cached list", "path", c.path, logging.KeyError, err)
		return nil
	}

	ts := info.ModTime().UTC()
	return &domain.DownloadResult{
		URL:       c.path,
		Payload:   data,
		Length:    int64(len(data)),
		Timestamp: &ts,
	}
}

// Set writes result to the cache. Failed results are ignored and I/O
// errors are logged, never returned.
func (c *DiskCache) Set(result *domain.DownloadResult) {
	if result == nil || result.Err != nil {
		return
	}

	if err := c.store(result); err != nil {
		log.Warn("couldn't write the cached list", logging.KeyError, err)
	}
}

func (c *DiskCache) store(result *domain.DownloadResult) error {
	c.Lock()
	defer c.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return &domain.CacheError{Op: "mkdir", Path: c.path, Err: err}
	}

	log.Info("writing cached list", "path", c.path, "bytes", len(result.Payload))

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".ipfilter-*")
	if err != nil {
		return &domain.CacheError{Op: "create", Path: c.path, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(result.Payload); err != nil {
		tmp.Close()
		return &domain.CacheError{Op: "write", Path: c.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &domain.CacheError{Op: "write", Path: c.path, Err: err}
	}

	if result.Timestamp != nil {
		if err := os.Chtimes(tmp.Name(), time.Now(), *result.Timestamp); err != nil {
			return &domain.CacheError{Op: "chtimes", Path: c.path, Err: err}
		}
	}

	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return &domain.CacheError{Op: "rename", Path: c.path, Err: err}
	}

	return nil
}

func (c *DiskCache) Size() (int64, error) {
	c.RLock()
	defer c.RUnlock()

	info, err := os.Stat(c.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (c *DiskCache) Clear() error {
	c.Lock()
	defer c.Unlock()

	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
