package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "alertmtl.app/errors"
	"alertmtl.app/metrics"
	"alertmtl.app/models"
	"alertmtl.app/providers/cache"
)

const statusKeyPrefix = "snowstatus:"

// StatusCache wraps a SnowProvider with snapshot caching, request collapsing
// and a staleness fallback. A snapshot younger than the provider's refresh
// interval is served as-is; an older one triggers a single collapsed refetch,
// and when that refetch fails the last-good snapshot is re-served with the
// Stale flag set until the cache entry itself expires.
type StatusCache struct {
	provider SnowProvider
	cache    cache.GenericCacheInterface
	group    singleflight.Group
	freshFor time.Duration
	ceiling  time.Duration
	metrics  *metrics.ProviderMetrics
}

// NewStatusCache creates a caching decorator around a provider. Entries live
// for staleFactor times the provider refresh interval; beyond that the
// fallback window is closed and failures surface to the caller.
func NewStatusCache(provider SnowProvider, genericCache cache.GenericCacheInterface, city models.City, staleFactor int) *StatusCache {
	if staleFactor < 1 {
		staleFactor = 1
	}
	freshFor := provider.RefreshInterval()
	return &StatusCache{
		provider: provider,
		cache:    genericCache,
		freshFor: freshFor,
		ceiling:  time.Duration(staleFactor) * freshFor,
		metrics:  metrics.NewProviderMetrics(string(city)),
	}
}

// Get returns the snapshot for an entity, refetching at most once per refresh
// window regardless of how many callers arrive concurrently.
func (s *StatusCache) Get(ctx context.Context, entity string) (*models.StatusSnapshot, error) {
	if entity == "" {
		return nil, apperrors.NewValidationError("entity cannot be empty")
	}

	key := statusKeyPrefix + entity
	if snapshot, found := s.lookup(ctx, key); found && s.fresh(snapshot) {
		return snapshot, nil
	}

	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.refetch(ctx, entity, key)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.StatusSnapshot), nil
}

// Expire drops the cached snapshot for one entity
func (s *StatusCache) Expire(ctx context.Context, entity string) {
	s.cache.Delete(ctx, statusKeyPrefix+entity)
}

func (s *StatusCache) refetch(ctx context.Context, entity, key string) (*models.StatusSnapshot, error) {
	// another caller may have refreshed while this one waited on the flight
	if snapshot, found := s.lookup(ctx, key); found && s.fresh(snapshot) {
		return snapshot, nil
	}

	start := time.Now()
	snapshot, err := s.provider.FetchStatus(ctx, entity)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		s.recordFailure(err, elapsed)
		if cached, found := s.lookup(ctx, key); found {
			stale := *cached
			stale.Stale = true
			s.metrics.RecordStaleServed()
			return &stale, nil
		}
		return nil, apperrors.NewProviderUnavailableError(
			fmt.Sprintf("no status available for %s", entity), err)
	}

	s.metrics.RecordRequest("success", elapsed)
	if snapshot.FetchedAt.IsZero() {
		snapshot.FetchedAt = time.Now()
	}
	s.store(ctx, key, snapshot)
	return snapshot, nil
}

func (s *StatusCache) recordFailure(err error, elapsed float64) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Type == apperrors.ProviderUnavailableError {
		s.metrics.RecordRateLimited()
		return
	}
	s.metrics.RecordRequest("error", elapsed)
}

// fresh reports whether a snapshot is younger than the refresh window
func (s *StatusCache) fresh(snapshot *models.StatusSnapshot) bool {
	return time.Since(snapshot.FetchedAt) < s.freshFor
}

func (s *StatusCache) lookup(ctx context.Context, key string) (*models.StatusSnapshot, bool) {
	data, found := s.cache.Get(ctx, key)
	if !found {
		return nil, false
	}

	var snapshot models.StatusSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, false
	}
	return &snapshot, true
}

func (s *StatusCache) store(ctx context.Context, key string, snapshot *models.StatusSnapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	s.cache.Set(ctx, key, data, s.ceiling)
}
