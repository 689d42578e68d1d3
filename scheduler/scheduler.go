// Package scheduler implements background job scheduling
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"alertmtl.app/config"
	"alertmtl.app/dispatch"
	apperrors "alertmtl.app/errors"
	"alertmtl.app/metrics"
	"alertmtl.app/service"
)

// Scheduler manages the periodic work of the application. Snow checks run
// on per-city tickers at each city's poll cadence; calendar-bound jobs
// (waste reminders, ledger cleanup, dataset refresh) run on cron
// expressions evaluated in the configured timezone.
type Scheduler struct {
	config         *config.Config
	registry       *dispatch.Registry
	snowService    service.SnowServiceInterface
	wasteService   service.WasteServiceInterface
	geobaseService service.GeobaseServiceInterface
	history        service.AlertHistoryInterface
	metrics        *metrics.AlertMetrics
	location       *time.Location

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates and configures a new task scheduler
func NewScheduler(
	config *config.Config,
	registry *dispatch.Registry,
	snowService service.SnowServiceInterface,
	wasteService service.WasteServiceInterface,
	geobaseService service.GeobaseServiceInterface,
	history service.AlertHistoryInterface,
	alertMetrics *metrics.AlertMetrics,
	location *time.Location,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		config:         config,
		registry:       registry,
		snowService:    snowService,
		wasteService:   wasteService,
		geobaseService: geobaseService,
		history:        history,
		metrics:        alertMetrics,
		location:       location,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start launches the per-city poll loops and registers the cron jobs.
// It returns an error if any cron expression fails to parse.
func (s *Scheduler) Start() error {
	s.cron = cron.New(cron.WithLocation(s.location))

	if _, err := s.cron.AddFunc(s.config.Scheduler.WasteCron, s.runWasteCycle); err != nil {
		return apperrors.NewConfigurationError("invalid WASTE_CHECK_CRON expression", err)
	}
	if _, err := s.cron.AddFunc(s.config.Scheduler.CleanupCron, s.runCleanup); err != nil {
		return apperrors.NewConfigurationError("invalid CLEANUP_CRON expression", err)
	}
	if _, err := s.cron.AddFunc(s.config.Geobase.RefreshCron, s.runGeobaseRefresh); err != nil {
		return apperrors.NewConfigurationError("invalid GEOBASE_REFRESH_CRON expression", err)
	}

	for _, city := range s.registry.Cities() {
		go s.pollCity(city)
	}

	s.cron.Start()
	log.Printf("[DEBUG] Scheduler started: %d cities, timezone %s\n", len(s.registry.Cities()), s.location)
	return nil
}

// Stop halts the tickers and the cron runner. Jobs already in flight
// finish on their own.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.cron != nil {
		s.cron.Stop()
	}
}

// pollCity runs one check cycle immediately and then on every tick of the
// city's poll interval until the scheduler stops.
func (s *Scheduler) pollCity(city *dispatch.CityInfo) {
	s.checkCity(city)

	ticker := time.NewTicker(city.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.checkCity(city)
		}
	}
}

func (s *Scheduler) checkCity(city *dispatch.CityInfo) {
	// A cycle must never outlive its own cadence
	ctx, cancel := context.WithTimeout(s.ctx, city.PollInterval)
	defer cancel()

	if _, err := s.snowService.RunCheckCycle(ctx, string(city.Name)); err != nil {
		log.Printf("[ERROR] Scheduled snow check failed for %s: %v\n", city.Name, err)
	}
}

func (s *Scheduler) runWasteCycle() {
	s.wasteService.RunReminderCycle(time.Now().In(s.location))
}

func (s *Scheduler) runCleanup() {
	start := time.Now()

	pruned, err := s.history.PruneOlderThan(s.config.Alerts.RetentionDays)
	if err != nil {
		log.Printf("[ERROR] Alert history cleanup failed: %v\n", err)
		return
	}

	s.metrics.ObserveCycle("cleanup", time.Since(start).Seconds())
	log.Printf("[DEBUG] Alert history cleanup removed %d records older than %d days\n",
		pruned, s.config.Alerts.RetentionDays)
}

func (s *Scheduler) runGeobaseRefresh() {
	if err := s.geobaseService.EnsureFresh(); err != nil {
		log.Printf("[ERROR] Geobase refresh failed: %v\n", err)
	}
}
