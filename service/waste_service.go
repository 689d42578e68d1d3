package service

import (
	"log"
	"strings"
	"time"

	"alertmtl.app/alerts"
	"alertmtl.app/dispatch"
	"alertmtl.app/errors"
	"alertmtl.app/metrics"
	"alertmtl.app/models"
	"alertmtl.app/waste"
)

// WasteCycleStats summarizes one evening reminder pass over all zones
type WasteCycleStats struct {
	ZonesChecked     int `json:"zones_checked"`
	RemindersSent    int `json:"reminders_sent"`
	RemindersSkipped int `json:"reminders_skipped"`
	NoCollection     int `json:"no_collection"`
	Errors           int `json:"errors"`
}

// WasteService answers collection-schedule lookups and runs the daily
// reminder cycle for subscribers with collections the next day
type WasteService struct {
	calculator  *waste.Calculator
	rules       ZoneRuleStoreInterface
	registry    *dispatch.Registry
	addressRepo AddressRepositoryInterface
	engine      *alerts.Engine
	dispatcher  AlertDispatcherInterface
	metrics     *metrics.AlertMetrics
	location    *time.Location
}

// NewWasteService creates a new collection-schedule service
func NewWasteService(
	calculator *waste.Calculator,
	rules ZoneRuleStoreInterface,
	registry *dispatch.Registry,
	addressRepo AddressRepositoryInterface,
	engine *alerts.Engine,
	dispatcher AlertDispatcherInterface,
	alertMetrics *metrics.AlertMetrics,
	location *time.Location,
) *WasteService {
	if location == nil {
		location = time.UTC
	}
	return &WasteService{
		calculator:  calculator,
		rules:       rules,
		registry:    registry,
		addressRepo: addressRepo,
		engine:      engine,
		dispatcher:  dispatcher,
		metrics:     alertMetrics,
		location:    location,
	}
}

// ScheduleForPostal reports the next collections for a postal code's zone
func (s *WasteService) ScheduleForPostal(postalCode string) (*models.WasteScheduleResponse, error) {
	log.Printf("[DEBUG] WasteService.ScheduleForPostal called for: %s\n", postalCode)

	_, fsa, err := s.registry.ResolvePostal(postalCode)
	if err != nil {
		return nil, err
	}

	return s.ScheduleForZone(fsa)
}

// ScheduleForZone reports the next garbage and recycling collections for a zone
func (s *WasteService) ScheduleForZone(zone string) (*models.WasteScheduleResponse, error) {
	log.Printf("[DEBUG] WasteService.ScheduleForZone called for: %s\n", zone)

	if zone == "" {
		return nil, errors.NewValidationError("zone cannot be empty")
	}

	schedule, err := s.calculator.ScheduleFor(strings.ToUpper(zone), time.Now().In(s.location))
	if err != nil {
		return nil, err
	}

	return &models.WasteScheduleResponse{
		City:      string(schedule.City),
		Zone:      schedule.Zone,
		Garbage:   collectionInfo("garbage", schedule.Garbage),
		Recycling: collectionInfo("recycling", schedule.Recycling),
	}, nil
}

func collectionInfo(kind string, occurrence waste.Occurrence) models.CollectionInfo {
	return models.CollectionInfo{
		Kind:           kind,
		Date:           occurrence.Observed.Format(models.RefDateLayout),
		Weekday:        occurrence.Observed.Weekday().String(),
		HolidayShifted: occurrence.HolidayShifted,
	}
}

// RunReminderCycle walks every zone with waste subscribers and dispatches
// reminders for collections happening tomorrow. Zone-level failures are
// absorbed so the remaining zones still run.
func (s *WasteService) RunReminderCycle(now time.Time) *WasteCycleStats {
	start := time.Now()
	stats := &WasteCycleStats{}
	defer func() {
		s.metrics.ObserveCycle("waste", time.Since(start).Seconds())
	}()

	today := now.In(s.location)
	log.Printf("[DEBUG] Waste reminder cycle started for %s\n", today.Format(models.RefDateLayout))

	for _, city := range s.registry.Cities() {
		zones, err := s.addressRepo.DistinctZones(city.Name)
		if err != nil {
			log.Printf("[ERROR] Failed to list zones for %s: %v\n", city.Name, err)
			stats.Errors++
			continue
		}

		for _, zone := range zones {
			stats.ZonesChecked++
			s.remindZone(city, zone, today, stats)
		}
	}

	log.Printf("[DEBUG] Waste reminder cycle finished: zones=%d sent=%d skipped=%d none=%d errors=%d\n",
		stats.ZonesChecked, stats.RemindersSent, stats.RemindersSkipped, stats.NoCollection, stats.Errors)
	return stats
}

func (s *WasteService) remindZone(city *dispatch.CityInfo, zone string, today time.Time, stats *WasteCycleStats) {
	recipients, err := s.addressRepo.ListRecipientsByZone(city.Name, zone)
	if err != nil {
		log.Printf("[ERROR] Failed to list recipients for zone %s: %v\n", zone, err)
		stats.Errors++
		return
	}

	intents, err := s.engine.DecideWaste(s.calculator, zone, recipients, today)
	if err != nil {
		log.Printf("[WARNING] No schedule rule usable for zone %s: %v\n", zone, err)
		stats.Errors++
		return
	}
	if len(intents) == 0 {
		stats.NoCollection++
		return
	}

	sent, skipped, failed := s.dispatcher.DispatchWaste(intents)
	stats.RemindersSent += sent
	stats.RemindersSkipped += skipped
	stats.Errors += failed
}

// ReloadRules re-reads the zone rule table and reports how many rules are
// now active, so operators can edit rows and apply them without a restart
func (s *WasteService) ReloadRules() (int, error) {
	if err := s.rules.Reload(); err != nil {
		return 0, err
	}

	count := s.rules.RuleCount()
	log.Printf("[DEBUG] Zone schedule rules reloaded: %d active\n", count)
	return count, nil
}
