// Package service provides the business logic layer for catalog data.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/lianbang999-crypto/foyue/internal/api"
	"github.com/lianbang999-crypto/foyue/internal/cache"
	"github.com/lianbang999-crypto/foyue/internal/catalog"
	"github.com/rs/zerolog/log"
)

const fetchTimeout = 45 * time.Second

// catalogFetcher is the slice of the API client the service needs.
type catalogFetcher interface {
	GetCatalog(ctx context.Context) (*catalog.Catalog, error)
}

// CatalogService manages catalog data: fetching, disk-cache fallback, and
// periodic background refresh.
type CatalogService struct {
	apiClient     catalogFetcher
	catalogURL    string
	cat           *catalog.Catalog
	mu            sync.RWMutex
	diskCache     *cache.Cache
	refreshTicker *time.Ticker
	stopRefresh   chan struct{}
	onRefresh     func(*catalog.Catalog)
}

// NewCatalogService creates a CatalogService backed by the given API client.
// catalogURL keys the disk cache so different sources never collide.
func NewCatalogService(apiClient *api.Client, catalogURL string) *CatalogService {
	diskCache, err := cache.NewCache()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize catalog cache, offline fallback disabled")
	}

	if diskCache != nil {
		go func() {
			if err := diskCache.CleanExpired(); err != nil {
				log.Debug().Err(err).Msg("Failed to clean expired cache")
			}
		}()
	}

	return &CatalogService{
		apiClient:  apiClient,
		catalogURL: catalogURL,
		diskCache:  diskCache,
	}
}

// GetCatalog returns the catalog, preferring a fresh disk copy, then the
// network, then a stale disk copy. Only when all three fail does it error.
func (s *CatalogService) GetCatalog(ctx context.Context) (*catalog.Catalog, error) {
	var stale *catalog.Catalog
	if s.diskCache != nil {
		if cat, fresh := s.diskCache.GetCatalog(s.catalogURL); cat != nil {
			if fresh {
				log.Debug().Msg("Catalog loaded from cache")
				s.setCatalog(cat)
				return cat, nil
			}
			stale = cat
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	cat, err := s.apiClient.GetCatalog(fetchCtx)
	if err != nil {
		if stale != nil {
			log.Warn().Err(err).Msg("Catalog fetch failed, serving stale cached copy")
			s.setCatalog(stale)
			return stale, nil
		}
		return nil, err
	}

	s.setCatalog(cat)
	if s.diskCache != nil {
		go func() {
			if err := s.diskCache.SaveCatalog(s.catalogURL, cat); err != nil {
				log.Debug().Err(err).Msg("Failed to cache catalog")
			}
		}()
	}
	return cat, nil
}

// NewStaticService wraps an already-loaded catalog with no backing API.
// Lookups work; fetch and refresh do nothing useful.
func NewStaticService(cat *catalog.Catalog) *CatalogService {
	return &CatalogService{cat: cat}
}

func (s *CatalogService) setCatalog(cat *catalog.Catalog) {
	s.mu.Lock()
	s.cat = cat
	s.mu.Unlock()
}

// CachedCatalog returns the last catalog this service loaded, or nil.
func (s *CatalogService) CachedCatalog() *catalog.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cat
}

// FindSeries looks up a series by ID in the loaded catalog.
func (s *CatalogService) FindSeries(seriesID string) *catalog.Series {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cat == nil {
		return nil
	}
	return s.cat.FindSeries(seriesID)
}

// CategoryOf returns the ID of the category owning the given series, or "".
func (s *CatalogService) CategoryOf(seriesID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cat == nil {
		return ""
	}
	return s.cat.CategoryOf(seriesID)
}

// Tracks builds the playable track list for a series, or nil if the series
// is unknown.
func (s *CatalogService) Tracks(seriesID string) []catalog.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cat == nil {
		return nil
	}
	series := s.cat.FindSeries(seriesID)
	if series == nil {
		return nil
	}
	return catalog.BuildTracks(series)
}

// SeriesCount reports the number of series across all categories.
func (s *CatalogService) SeriesCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cat == nil {
		return 0
	}
	return s.cat.SeriesCount()
}

// StartPeriodicRefresh re-fetches the catalog on the given interval.
// A failed refresh keeps the current data.
func (s *CatalogService) StartPeriodicRefresh(interval time.Duration, callback func(*catalog.Catalog)) {
	s.StopPeriodicRefresh()

	s.mu.Lock()
	s.onRefresh = callback
	s.stopRefresh = make(chan struct{})
	s.refreshTicker = time.NewTicker(interval)
	ticker := s.refreshTicker
	stopCh := s.stopRefresh
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				s.refreshInBackground()
			case <-stopCh:
				ticker.Stop()
				return
			}
		}
	}()

	log.Debug().Dur("interval", interval).Msg("Started periodic catalog refresh")
}

func (s *CatalogService) StopPeriodicRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopRefresh != nil {
		close(s.stopRefresh)
		s.stopRefresh = nil
	}
}

func (s *CatalogService) refreshInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	cat, err := s.apiClient.GetCatalog(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Background refresh failed, keeping cached data")
		return
	}

	s.mu.Lock()
	s.cat = cat
	callback := s.onRefresh
	s.mu.Unlock()

	if s.diskCache != nil {
		if err := s.diskCache.SaveCatalog(s.catalogURL, cat); err != nil {
			log.Debug().Err(err).Msg("Failed to cache refreshed catalog")
		}
	}

	if callback != nil {
		callback(cat)
	}

	log.Debug().Int("series", cat.SeriesCount()).Msg("Catalog refreshed in background")
}
