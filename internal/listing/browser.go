package listing

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/veechar/internal/models"
)

// Fetcher loads a folder listing from the archive.
type Fetcher interface {
	Fetch(ctx context.Context, folderPath string) ([]models.AudioItem, error)
}

// Browser serves folder listings from a [Cache], fetching on a miss.
type Browser struct {
	cache   *Cache
	fetcher Fetcher
	logger  *log.Logger
}

// NewBrowser creates a browser over cache and fetcher.
func NewBrowser(cache *Cache, fetcher Fetcher, logger *log.Logger) *Browser {
	if cache == nil {
		cache = NewCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Browser{cache: cache, fetcher: fetcher, logger: logger}
}

// Cache returns the underlying cache.
func (b *Browser) Cache() *Cache {
	return b.cache
}

// Open returns the listing for path, from the cache when fresh. Fetch errors are returned and never cached.
func (b *Browser) Open(ctx context.Context, path string) ([]models.AudioItem, error) {
	if items, ok := b.cache.Get(path); ok {
		b.logger.Debug("listing cache hit", "path", path, "items", len(items))
		return items, nil
	}
	return b.fetch(ctx, path)
}

// Refresh fetches path without consulting the cache and stores the result.
func (b *Browser) Refresh(ctx context.Context, path string) ([]models.AudioItem, error) {
	return b.fetch(ctx, path)
}

func (b *Browser) fetch(ctx context.Context, path string) ([]models.AudioItem, error) {
	items, err := b.fetcher.Fetch(ctx, path)
	if err != nil {
		b.logger.Warn("listing fetch failed", "path", path, "error", err)
		return nil, err
	}

	b.cache.Put(path, items)
	b.logger.Debug("listing fetched", "path", path, "items", len(items))
	return cloneItems(items), nil
}
