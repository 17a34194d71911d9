// Package cache provides disk caching of fetched catalog documents, so the
// series browser can paint before the network answers.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lianbang999-crypto/foyue/internal/catalog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultExpiry is how long a cached catalog is served without a refresh.
	DefaultExpiry = 30 * time.Minute
	// retention is how long stale catalogs are kept on disk for offline
	// first paint before CleanExpired discards them.
	retention = 7 * 24 * time.Hour
	// CatalogSubdir is the subdirectory for cached catalog documents.
	CatalogSubdir = "catalog"
	// AppName is used for the cache directory name.
	AppName = "foyue"
)

// Cache manages disk-based caching of catalog documents keyed by source URL.
type Cache struct {
	baseDir string
	expiry  time.Duration
}

// NewCache creates a new Cache instance with the default expiry.
func NewCache() (*Cache, error) {
	cacheDir, err := GetCacheDir()
	if err != nil {
		return nil, err
	}

	return &Cache{
		baseDir: cacheDir,
		expiry:  DefaultExpiry,
	}, nil
}

// GetCacheDir returns the platform-specific cache directory for the application.
func GetCacheDir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}

	return filepath.Join(userCacheDir, AppName), nil
}

func (c *Cache) ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

func hashURL(url string) string {
	hash := md5.Sum([]byte(url))
	return hex.EncodeToString(hash[:])
}

func (c *Cache) catalogPath(url string) string {
	return filepath.Join(c.baseDir, CatalogSubdir, hashURL(url)+".json")
}

// GetCatalog retrieves a cached catalog by source URL. It returns the catalog
// and whether the copy is still fresh; a nil catalog means nothing usable is
// on disk. A stale copy is returned rather than removed, the caller decides
// whether stale data beats no data.
func (c *Cache) GetCatalog(url string) (*catalog.Catalog, bool) {
	path := c.catalogPath(url)

	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var cat catalog.Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		log.Debug().Err(err).Str("file", path).Msg("Failed to decode cached catalog")
		if err := os.Remove(path); err != nil {
			log.Debug().Err(err).Str("file", path).Msg("Failed to remove corrupt cache file")
		}
		return nil, false
	}

	fresh := time.Since(info.ModTime()) <= c.expiry
	return &cat, fresh
}

// SaveCatalog stores a catalog in the cache, keyed by its source URL.
func (c *Cache) SaveCatalog(url string, cat *catalog.Catalog) error {
	dir := filepath.Join(c.baseDir, CatalogSubdir)

	if err := c.ensureDir(dir); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.Marshal(cat)
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	path := c.catalogPath(url)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize cache file: %w", err)
	}

	return nil
}

// CleanExpired removes cached catalogs older than the retention horizon.
// Files merely past DefaultExpiry are kept: they still serve as the offline
// first paint.
func (c *Cache) CleanExpired() error {
	dir := filepath.Join(c.baseDir, CatalogSubdir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	now := time.Now()
	var removed, failed int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Debug().Err(err).Str("file", entry.Name()).Msg("Failed to get file info")
			continue
		}

		if now.Sub(info.ModTime()) > retention {
			filePath := filepath.Join(dir, entry.Name())
			if err := os.Remove(filePath); err != nil {
				log.Debug().Err(err).Str("file", filePath).Msg("Failed to remove expired cache file")
				failed++
			} else {
				removed++
			}
		}
	}

	if removed > 0 || failed > 0 {
		log.Debug().Int("removed", removed).Int("failed", failed).Msg("Cache cleanup completed")
	}

	return nil
}
