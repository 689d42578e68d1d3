package integration

import (
	"context"
	"time"

	"alertmtl.app/config"
	"alertmtl.app/models"
	"alertmtl.app/providers"
)

func (s *IntegrationTestSuite) TestProviderManagerIntegration() {
	// Test 1: construction fails fast when no city provider is configured
	emptyConfiguration := &providers.ProviderConfiguration{
		Cache:         &config.CacheConfig{Type: "memory"},
		StaleFactor:   3,
		LogFilePath:   "test.log",
		EnableCache:   false,
		EnableLogging: false,
	}

	_, err := providers.NewProviderManager(emptyConfiguration)
	s.Error(err, "Provider manager creation should fail with no city providers configured")
	s.Contains(err.Error(), "no city providers configured")

	// Test 2: a manager built against the mock feed serves live snapshots
	s.setMockEtat(123401, "planifie")

	manager, err := providers.NewProviderManagerBuilder().
		WithMontreal(&s.config.Montreal).
		WithCacheEnabled(false).
		WithLoggingEnabled(false).
		Build()
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snapshot, err := manager.Status(ctx, models.CityMontreal, "cote-rue:123401")
	s.Require().NoError(err)
	s.Equal("planifie", snapshot.State)
	s.Equal(models.CityMontreal, snapshot.City)
	s.False(snapshot.Stale)

	// An unknown city is rejected instead of guessed
	_, err = manager.Status(ctx, models.CityQuebec, "secteur:G1R")
	s.Error(err)

	info := manager.GetProviderInfo()
	s.Equal(false, info["cache_enabled"])
	s.Contains(info["cities"], "montreal")
}
