package service

import (
	"context"
	"log"
	"time"

	"alertmtl.app/alerts"
	"alertmtl.app/dispatch"
	"alertmtl.app/errors"
	"alertmtl.app/metrics"
	"alertmtl.app/models"
)

// SnowCycleStats summarizes one polling pass over a city's tracked entities
type SnowCycleStats struct {
	City            string `json:"city"`
	EntitiesChecked int    `json:"addresses_checked"`
	StatusChanges   int    `json:"status_changes"`
	AlertsSent      int    `json:"alerts_sent"`
	AlertsSkipped   int    `json:"alerts_skipped"`
	Errors          int    `json:"errors"`
}

// SnowService answers snow-status lookups and runs the polling cycles that
// detect state transitions and fan alerts out to subscribers
type SnowService struct {
	statusManager SnowStatusManagerInterface
	registry      *dispatch.Registry
	tracker       *alerts.Tracker
	engine        *alerts.Engine
	addressRepo   AddressRepositoryInterface
	dispatcher    AlertDispatcherInterface
	metrics       *metrics.AlertMetrics
}

// NewSnowService creates a new snow status service
func NewSnowService(
	statusManager SnowStatusManagerInterface,
	registry *dispatch.Registry,
	tracker *alerts.Tracker,
	engine *alerts.Engine,
	addressRepo AddressRepositoryInterface,
	dispatcher AlertDispatcherInterface,
	alertMetrics *metrics.AlertMetrics,
) *SnowService {
	return &SnowService{
		statusManager: statusManager,
		registry:      registry,
		tracker:       tracker,
		engine:        engine,
		addressRepo:   addressRepo,
		dispatcher:    dispatcher,
		metrics:       alertMetrics,
	}
}

// StatusForPostal reports the snow-removal state for the default entity of a
// postal code's sortation area
func (s *SnowService) StatusForPostal(ctx context.Context, postalCode string) (*models.SnowStatusResponse, error) {
	log.Printf("[DEBUG] SnowService.StatusForPostal called for: %s\n", postalCode)

	city, fsa, err := s.registry.ResolvePostal(postalCode)
	if err != nil {
		return nil, err
	}

	return s.statusResponse(ctx, city, city.EntityForFSA(fsa)), nil
}

// StatusForEntity reports the snow-removal state for an explicit entity key
func (s *SnowService) StatusForEntity(ctx context.Context, cityIdentifier, entity string) (*models.SnowStatusResponse, error) {
	log.Printf("[DEBUG] SnowService.StatusForEntity called for: %s/%s\n", cityIdentifier, entity)

	city, err := s.registry.Resolve(cityIdentifier)
	if err != nil {
		return nil, err
	}
	if entity == "" {
		return nil, errors.NewValidationError("entity cannot be empty")
	}

	return s.statusResponse(ctx, city, entity), nil
}

// statusResponse builds the public view of a snapshot. Provider outages
// degrade to an unavailable response instead of surfacing an error.
func (s *SnowService) statusResponse(ctx context.Context, city *dispatch.CityInfo, entity string) *models.SnowStatusResponse {
	snapshot, err := s.statusManager.Status(ctx, city.Name, entity)
	if err != nil {
		log.Printf("[WARNING] Status unavailable for %s/%s: %v\n", city.Name, entity, err)
		return &models.SnowStatusResponse{
			City:      string(city.Name),
			Entity:    entity,
			Available: false,
			Message:   "status temporarily unavailable",
		}
	}

	display := city.DisplayFor(snapshot.State)
	response := &models.SnowStatusResponse{
		City:           string(city.Name),
		Entity:         entity,
		Available:      true,
		State:          snapshot.State,
		Label:          display.Label,
		LabelFr:        display.LabelFr,
		Color:          display.Color,
		ParkingAllowed: city.ParkingAllowed(snapshot.State),
		Stale:          snapshot.Stale,
		WindowStart:    snapshot.WindowStart,
		WindowEnd:      snapshot.WindowEnd,
	}

	if !snapshot.ObservedAt.IsZero() {
		observedAt := snapshot.ObservedAt
		response.ObservedAt = &observedAt
	}
	if snapshot.State == models.StateUnknown {
		response.Message = "no snow-removal activity reported for this street"
	}

	return response
}

// RunCheckCycle polls every tracked entity of one city, advances the
// transition tracker and dispatches alerts for alert-worthy changes.
// Provider and notifier failures are absorbed per entity.
func (s *SnowService) RunCheckCycle(ctx context.Context, cityIdentifier string) (*SnowCycleStats, error) {
	city, err := s.registry.Resolve(cityIdentifier)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	stats := &SnowCycleStats{City: string(city.Name)}
	defer func() {
		s.metrics.ObserveCycle("snow_"+string(city.Name), time.Since(start).Seconds())
	}()

	entities, err := s.addressRepo.DistinctEntities(city.Name)
	if err != nil {
		return nil, err
	}

	log.Printf("[DEBUG] Snow check cycle started for %s: %d entities\n", city.Name, len(entities))

	for _, entity := range entities {
		// finish the in-flight entity, start no new work after cancellation
		if ctx.Err() != nil {
			log.Printf("[WARNING] Snow check cycle for %s interrupted: %v\n", city.Name, ctx.Err())
			break
		}

		stats.EntitiesChecked++
		s.checkEntity(ctx, city, entity, stats)
	}

	log.Printf("[DEBUG] Snow check cycle finished for %s: checked=%d changes=%d sent=%d skipped=%d errors=%d\n",
		city.Name, stats.EntitiesChecked, stats.StatusChanges, stats.AlertsSent, stats.AlertsSkipped, stats.Errors)
	return stats, nil
}

func (s *SnowService) checkEntity(ctx context.Context, city *dispatch.CityInfo, entity string, stats *SnowCycleStats) {
	snapshot, err := s.statusManager.Status(ctx, city.Name, entity)
	if err != nil {
		log.Printf("[WARNING] Status fetch failed for %s/%s: %v\n", city.Name, entity, err)
		stats.Errors++
		return
	}

	event := s.tracker.Advance(snapshot)
	if event == nil {
		return
	}

	stats.StatusChanges++
	s.metrics.RecordTransition(string(city.Name), event.To)
	log.Printf("[DEBUG] Transition detected for %s: %s -> %s\n", event.Entity, event.From, event.To)

	recipients, err := s.addressRepo.ListRecipientsByEntity(city.Name, entity)
	if err != nil {
		log.Printf("[ERROR] Failed to list recipients for %s: %v\n", entity, err)
		stats.Errors++
		return
	}

	intents := s.engine.DecideSnow(event, recipients)
	if len(intents) == 0 {
		return
	}

	sent, skipped, failed := s.dispatcher.DispatchSnow(intents)
	stats.AlertsSent += sent
	stats.AlertsSkipped += skipped
	stats.Errors += failed
}

// RunAllChecks runs one check cycle for every registered city. A failing
// city is logged and skipped so the others still run.
func (s *SnowService) RunAllChecks(ctx context.Context) map[string]*SnowCycleStats {
	results := make(map[string]*SnowCycleStats)
	for _, city := range s.registry.Cities() {
		stats, err := s.RunCheckCycle(ctx, string(city.Name))
		if err != nil {
			log.Printf("[ERROR] Snow check cycle failed for %s: %v\n", city.Name, err)
			continue
		}
		results[string(city.Name)] = stats
	}
	return results
}

// Transitions returns the recent transition log across all tracked entities
func (s *SnowService) Transitions() []models.TransitionEvent {
	return s.tracker.Transitions()
}

// Expire drops the cached snapshot for an entity so the next lookup
// refetches from the upstream
func (s *SnowService) Expire(ctx context.Context, cityIdentifier, entity string) error {
	city, err := s.registry.Resolve(cityIdentifier)
	if err != nil {
		return err
	}
	if entity == "" {
		return errors.NewValidationError("entity cannot be empty")
	}

	return s.statusManager.Expire(ctx, city.Name, entity)
}
