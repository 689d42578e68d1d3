package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"alertmtl.app/config"
	apperrors "alertmtl.app/errors"
	"alertmtl.app/models"
	"alertmtl.app/providers/cache"
)

// ProviderManager owns the per-city status pipelines: raw upstream adapter,
// optional traffic logging, and the shared snapshot cache with its staleness
// fallback.
type ProviderManager struct {
	configuration *ProviderConfiguration
	genericCache  cache.GenericCacheInterface
	instrumented  *InstrumentedCache
	logger        FileLogger
	providers     map[models.City]SnowProvider
	statuses      map[models.City]*StatusCache
}

type ProviderConfiguration struct {
	Montreal      *config.MontrealConfig
	Quebec        *config.QuebecConfig
	Cache         *config.CacheConfig
	StaleFactor   int
	LogFilePath   string
	EnableCache   bool
	EnableLogging bool
}

func NewProviderManager(config *ProviderConfiguration) (*ProviderManager, error) {
	manager := &ProviderManager{
		configuration: config,
		providers:     make(map[models.City]SnowProvider),
		statuses:      make(map[models.City]*StatusCache),
	}

	if err := manager.initializeComponents(); err != nil {
		return nil, fmt.Errorf("initialize provider manager: %w", err)
	}

	if err := manager.createProviders(); err != nil {
		return nil, fmt.Errorf("create city providers: %w", err)
	}

	return manager, nil
}

func (pm *ProviderManager) initializeComponents() error {
	if pm.configuration.EnableCache {
		backend, cacheType, err := pm.createCacheBackend()
		if err != nil {
			return err
		}
		pm.genericCache = backend
		pm.instrumented = NewInstrumentedCache(backend, cacheType)
	}

	if pm.configuration.EnableLogging {
		logger, err := NewFileLogger(pm.configuration.LogFilePath)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		pm.logger = logger
	}

	return nil
}

func (pm *ProviderManager) createCacheBackend() (cache.GenericCacheInterface, string, error) {
	cacheType := "memory"
	if pm.configuration.Cache != nil {
		cacheType = strings.ToLower(pm.configuration.Cache.Type)
	}

	switch cacheType {
	case "redis":
		redisCache, err := cache.NewRedisCache(&cache.RedisCacheConfig{
			Addr:         pm.configuration.Cache.RedisAddr,
			Password:     pm.configuration.Cache.RedisPassword,
			DB:           pm.configuration.Cache.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err != nil {
			return nil, "", fmt.Errorf("connect redis cache: %w", err)
		}
		return redisCache, "redis", nil
	default:
		return cache.NewMemoryCache(), "memory", nil
	}
}

func (pm *ProviderManager) createProviders() error {
	if pm.configuration.Montreal != nil {
		provider := pm.decorate(NewMontrealProvider(pm.configuration.Montreal), "PlanifNeige")
		pm.register(models.CityMontreal, provider)
	}

	if pm.configuration.Quebec != nil {
		provider := pm.decorate(NewQuebecProvider(pm.configuration.Quebec), "QuebecSignals")
		pm.register(models.CityQuebec, provider)
	}

	if len(pm.providers) == 0 {
		return fmt.Errorf("no city providers configured")
	}

	return nil
}

func (pm *ProviderManager) decorate(base SnowProvider, providerName string) SnowProvider {
	composite := NewCompositeStatusDecorator(base)

	if pm.configuration.EnableLogging {
		composite.AddDecorator(func(provider SnowProvider) SnowProvider {
			return NewStatusLoggerDecorator(provider, pm.logger, providerName)
		})
	}

	return composite.Build()
}

func (pm *ProviderManager) register(city models.City, provider SnowProvider) {
	pm.providers[city] = provider

	if pm.configuration.EnableCache {
		pm.statuses[city] = NewStatusCache(provider, pm.instrumented, city, pm.configuration.StaleFactor)
	}
}

// Status returns the current snapshot for an entity in the given city,
// served through the snapshot cache when caching is enabled.
func (pm *ProviderManager) Status(ctx context.Context, city models.City, entity string) (*models.StatusSnapshot, error) {
	if cached, exists := pm.statuses[city]; exists {
		return cached.Get(ctx, entity)
	}

	if provider, exists := pm.providers[city]; exists {
		return provider.FetchStatus(ctx, entity)
	}

	return nil, apperrors.NewUnknownCityError(string(city))
}

// Expire drops the cached snapshot for one entity
func (pm *ProviderManager) Expire(ctx context.Context, city models.City, entity string) error {
	if _, exists := pm.providers[city]; !exists {
		return apperrors.NewUnknownCityError(string(city))
	}

	if cached, exists := pm.statuses[city]; exists {
		cached.Expire(ctx, entity)
	}
	return nil
}

// ClearCache drops every cached snapshot
func (pm *ProviderManager) ClearCache(ctx context.Context) {
	if pm.instrumented != nil {
		pm.instrumented.Clear(ctx)
	}
}

// CacheStats reports hit/miss counters for the snapshot cache
func (pm *ProviderManager) CacheStats() (map[string]interface{}, error) {
	if pm.instrumented == nil {
		return nil, apperrors.NewNotFoundError("cache metrics not available when cache is disabled")
	}
	return pm.instrumented.GetMetrics().GetStats(), nil
}

func (pm *ProviderManager) GetProviderInfo() map[string]interface{} {
	info := make(map[string]interface{})

	info["cache_enabled"] = pm.configuration.EnableCache
	info["logging_enabled"] = pm.configuration.EnableLogging
	info["stale_factor"] = pm.configuration.StaleFactor

	if pm.configuration.Cache != nil {
		info["cache_type"] = pm.configuration.Cache.Type
	}

	cities := make([]string, 0, len(pm.providers))
	intervals := make(map[string]string, len(pm.providers))
	for city, provider := range pm.providers {
		cities = append(cities, string(city))
		intervals[string(city)] = provider.RefreshInterval().String()
	}
	info["cities"] = cities
	info["refresh_intervals"] = intervals

	return info
}

func DefaultProviderConfiguration() *ProviderConfiguration {
	return &ProviderConfiguration{
		StaleFactor:   3,
		LogFilePath:   "logs/status_providers.log",
		EnableCache:   true,
		EnableLogging: true,
	}
}

type ProviderManagerBuilder struct {
	config *ProviderConfiguration
}

func NewProviderManagerBuilder() *ProviderManagerBuilder {
	return &ProviderManagerBuilder{
		config: DefaultProviderConfiguration(),
	}
}

func (b *ProviderManagerBuilder) WithMontreal(montreal *config.MontrealConfig) *ProviderManagerBuilder {
	b.config.Montreal = montreal
	return b
}

func (b *ProviderManagerBuilder) WithQuebec(quebec *config.QuebecConfig) *ProviderManagerBuilder {
	b.config.Quebec = quebec
	return b
}

func (b *ProviderManagerBuilder) WithCache(cacheConfig *config.CacheConfig) *ProviderManagerBuilder {
	b.config.Cache = cacheConfig
	return b
}

func (b *ProviderManagerBuilder) WithStaleFactor(factor int) *ProviderManagerBuilder {
	b.config.StaleFactor = factor
	return b
}

func (b *ProviderManagerBuilder) WithLogFilePath(path string) *ProviderManagerBuilder {
	b.config.LogFilePath = path
	return b
}

func (b *ProviderManagerBuilder) WithCacheEnabled(enabled bool) *ProviderManagerBuilder {
	b.config.EnableCache = enabled
	return b
}

func (b *ProviderManagerBuilder) WithLoggingEnabled(enabled bool) *ProviderManagerBuilder {
	b.config.EnableLogging = enabled
	return b
}

func (b *ProviderManagerBuilder) Build() (*ProviderManager, error) {
	return NewProviderManager(b.config)
}
