// Package repository implements data access layer for the application
package repository

import (
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "alertmtl.app/errors"
	"alertmtl.app/models"
)

// SubscriberRepository handles data access operations for subscribers
type SubscriberRepository struct {
	db *gorm.DB
}

// NewSubscriberRepository creates a new repository for subscriber data
func NewSubscriberRepository(db *gorm.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

// FindByEmail retrieves a subscriber by email, returning nil when none exists
func (r *SubscriberRepository) FindByEmail(email string) (*models.Subscriber, error) {
	log.Printf("[DEBUG] SubscriberRepository.FindByEmail: email=%s\n", email)

	if email == "" {
		return nil, apperrors.NewValidationError("email cannot be empty")
	}

	var subscriber models.Subscriber
	result := r.db.Where("email = ?", email).First(&subscriber)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			log.Println("[DEBUG] No subscriber found")
			return nil, nil
		}
		log.Printf("[ERROR] Database error when finding subscriber: %v\n", result.Error)
		return nil, apperrors.NewDatabaseError("failed to find subscriber", result.Error)
	}

	return &subscriber, nil
}

// FindByEmailAny retrieves a subscriber by email including soft-deleted
// rows, so a returning subscriber can be restored instead of tripping the
// unique email index
func (r *SubscriberRepository) FindByEmailAny(email string) (*models.Subscriber, error) {
	if email == "" {
		return nil, apperrors.NewValidationError("email cannot be empty")
	}

	var subscriber models.Subscriber
	result := r.db.Unscoped().Where("email = ?", email).First(&subscriber)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Printf("[ERROR] Database error when finding subscriber: %v\n", result.Error)
		return nil, apperrors.NewDatabaseError("failed to find subscriber", result.Error)
	}

	return &subscriber, nil
}

// FindByToken retrieves a subscriber by unsubscribe token
func (r *SubscriberRepository) FindByToken(token string) (*models.Subscriber, error) {
	log.Printf("[DEBUG] SubscriberRepository.FindByToken: token=%s\n", token)

	if token == "" {
		return nil, apperrors.NewValidationError("token cannot be empty")
	}

	var subscriber models.Subscriber
	result := r.db.Where("unsubscribe_token = ?", token).First(&subscriber)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("no subscription found for token")
		}
		log.Printf("[ERROR] Database error when finding subscriber by token: %v\n", result.Error)
		return nil, apperrors.NewDatabaseError("failed to find subscriber by token", result.Error)
	}

	return &subscriber, nil
}

// Create persists a new subscriber to the database
func (r *SubscriberRepository) Create(subscriber *models.Subscriber) error {
	log.Printf("[DEBUG] SubscriberRepository.Create: email=%s\n", subscriberEmail(subscriber))

	if subscriber == nil {
		return apperrors.NewValidationError("subscriber cannot be nil")
	}

	result := r.db.Create(subscriber)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when creating subscriber: %v\n", result.Error)
		return apperrors.NewDatabaseError("failed to create subscriber", result.Error)
	}

	log.Printf("[DEBUG] Created subscriber with ID: %d\n", subscriber.ID)
	return nil
}

// Update modifies an existing subscriber
func (r *SubscriberRepository) Update(subscriber *models.Subscriber) error {
	if subscriber == nil {
		return apperrors.NewValidationError("subscriber cannot be nil")
	}

	result := r.db.Save(subscriber)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when updating subscriber: %v\n", result.Error)
		return apperrors.NewDatabaseError("failed to update subscriber", result.Error)
	}

	return nil
}

// Restore clears the soft-delete mark and reactivates a subscriber
func (r *SubscriberRepository) Restore(subscriber *models.Subscriber) error {
	if subscriber == nil {
		return apperrors.NewValidationError("subscriber cannot be nil")
	}

	subscriber.DeletedAt = gorm.DeletedAt{}
	subscriber.Active = true
	result := r.db.Unscoped().Save(subscriber)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when restoring subscriber: %v\n", result.Error)
		return apperrors.NewDatabaseError("failed to restore subscriber", result.Error)
	}

	log.Printf("[DEBUG] Restored subscriber with ID: %d\n", subscriber.ID)
	return nil
}

// Delete soft-deletes a subscriber
func (r *SubscriberRepository) Delete(subscriber *models.Subscriber) error {
	if subscriber == nil {
		return apperrors.NewValidationError("subscriber cannot be nil")
	}

	result := r.db.Delete(subscriber)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when deleting subscriber: %v\n", result.Error)
		return apperrors.NewDatabaseError("failed to delete subscriber", result.Error)
	}

	return nil
}

func subscriberEmail(subscriber *models.Subscriber) string {
	if subscriber == nil {
		return ""
	}
	return subscriber.Email
}

// AddressRepository handles data access operations for monitored addresses
type AddressRepository struct {
	db *gorm.DB
}

// NewAddressRepository creates a new repository for address data
func NewAddressRepository(db *gorm.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

// Create persists a new address to the database
func (r *AddressRepository) Create(address *models.Address) error {
	if address == nil {
		return apperrors.NewValidationError("address cannot be nil")
	}
	if address.SubscriberID == 0 {
		return apperrors.NewValidationError("address subscriber ID cannot be zero")
	}
	if address.Zone == "" {
		return apperrors.NewValidationError("address zone cannot be empty")
	}

	result := r.db.Create(address)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when creating address: %v\n", result.Error)
		return apperrors.NewDatabaseError("failed to create address", result.Error)
	}

	return nil
}

// ListBySubscriber retrieves all addresses registered by one subscriber
func (r *AddressRepository) ListBySubscriber(subscriberID uint) ([]models.Address, error) {
	if subscriberID == 0 {
		return nil, apperrors.NewValidationError("subscriber ID cannot be zero")
	}

	var addresses []models.Address
	result := r.db.Where("subscriber_id = ?", subscriberID).Find(&addresses)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when listing addresses: %v\n", result.Error)
		return nil, apperrors.NewDatabaseError("failed to list addresses", result.Error)
	}

	return addresses, nil
}

// DeleteBySubscriber removes every address registered by one subscriber
func (r *AddressRepository) DeleteBySubscriber(subscriberID uint) error {
	if subscriberID == 0 {
		return apperrors.NewValidationError("subscriber ID cannot be zero")
	}

	result := r.db.Where("subscriber_id = ?", subscriberID).Delete(&models.Address{})
	if result.Error != nil {
		log.Printf("[ERROR] Database error when deleting addresses: %v\n", result.Error)
		return apperrors.NewDatabaseError("failed to delete addresses", result.Error)
	}

	return nil
}

// DistinctEntities lists every entity monitored for a city by at least one
// active subscriber with snow alerts enabled
func (r *AddressRepository) DistinctEntities(city models.City) ([]string, error) {
	log.Printf("[DEBUG] AddressRepository.DistinctEntities: city=%s\n", city)

	var entities []string
	result := r.db.Model(&models.Address{}).
		Joins("JOIN subscribers ON subscribers.id = addresses.subscriber_id").
		Where("subscribers.active = ? AND subscribers.snow_alerts = ? AND subscribers.deleted_at IS NULL", true, true).
		Where("addresses.city = ? AND addresses.entity <> ''", city).
		Distinct().
		Pluck("addresses.entity", &entities)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when listing entities: %v\n", result.Error)
		return nil, apperrors.NewDatabaseError("failed to list monitored entities", result.Error)
	}

	log.Printf("[DEBUG] Found %d monitored entities for city: %s\n", len(entities), city)
	return entities, nil
}

// DistinctZones lists every collection zone for a city with at least one
// active subscriber with waste alerts enabled
func (r *AddressRepository) DistinctZones(city models.City) ([]string, error) {
	log.Printf("[DEBUG] AddressRepository.DistinctZones: city=%s\n", city)

	var zones []string
	result := r.db.Model(&models.Address{}).
		Joins("JOIN subscribers ON subscribers.id = addresses.subscriber_id").
		Where("subscribers.active = ? AND subscribers.waste_alerts = ? AND subscribers.deleted_at IS NULL", true, true).
		Where("addresses.city = ? AND addresses.zone <> ''", city).
		Distinct().
		Pluck("addresses.zone", &zones)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when listing zones: %v\n", result.Error)
		return nil, apperrors.NewDatabaseError("failed to list collection zones", result.Error)
	}

	return zones, nil
}

// ListRecipientsByEntity returns subscriber/address pairs watching an entity
func (r *AddressRepository) ListRecipientsByEntity(city models.City, entity string) ([]models.Recipient, error) {
	if entity == "" {
		return nil, apperrors.NewValidationError("entity cannot be empty")
	}

	var recipients []models.Recipient
	result := r.db.Model(&models.Address{}).
		Select("subscribers.id AS subscriber_id, subscribers.email, addresses.city, addresses.entity, addresses.zone, addresses.label, subscribers.unsubscribe_token, subscribers.snow_alerts, subscribers.waste_alerts").
		Joins("JOIN subscribers ON subscribers.id = addresses.subscriber_id").
		Where("subscribers.active = ? AND subscribers.deleted_at IS NULL", true).
		Where("addresses.city = ? AND addresses.entity = ?", city, entity).
		Scan(&recipients)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when listing recipients: %v\n", result.Error)
		return nil, apperrors.NewDatabaseError("failed to list recipients for entity", result.Error)
	}

	return recipients, nil
}

// ListRecipientsByZone returns subscriber/address pairs inside a zone
func (r *AddressRepository) ListRecipientsByZone(city models.City, zone string) ([]models.Recipient, error) {
	if zone == "" {
		return nil, apperrors.NewValidationError("zone cannot be empty")
	}

	var recipients []models.Recipient
	result := r.db.Model(&models.Address{}).
		Select("subscribers.id AS subscriber_id, subscribers.email, addresses.city, addresses.entity, addresses.zone, addresses.label, subscribers.unsubscribe_token, subscribers.snow_alerts, subscribers.waste_alerts").
		Joins("JOIN subscribers ON subscribers.id = addresses.subscriber_id").
		Where("subscribers.active = ? AND subscribers.deleted_at IS NULL", true).
		Where("addresses.city = ? AND addresses.zone = ?", city, zone).
		Scan(&recipients)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when listing recipients: %v\n", result.Error)
		return nil, apperrors.NewDatabaseError("failed to list recipients for zone", result.Error)
	}

	return recipients, nil
}

// AlertHistoryRepository handles the alert dedup ledger
type AlertHistoryRepository struct {
	db *gorm.DB
}

// NewAlertHistoryRepository creates a new repository for alert records
func NewAlertHistoryRepository(db *gorm.DB) *AlertHistoryRepository {
	return &AlertHistoryRepository{db: db}
}

// RecordIfAbsent inserts the ledger row for an intent unless one already
// exists for the same (subscriber, kind, ref date). The return value reports
// whether this call claimed the send.
func (r *AlertHistoryRepository) RecordIfAbsent(record *models.AlertRecord) (bool, error) {
	if record == nil {
		return false, apperrors.NewValidationError("alert record cannot be nil")
	}
	if record.SubscriberID == 0 {
		return false, apperrors.NewValidationError("alert subscriber ID cannot be zero")
	}
	if record.Kind == "" {
		return false, apperrors.NewValidationError("alert kind cannot be empty")
	}
	if record.RefDate == "" {
		return false, apperrors.NewValidationError("alert reference date cannot be empty")
	}

	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subscriber_id"}, {Name: "kind"}, {Name: "ref_date"}},
		DoNothing: true,
	}).Create(record)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when recording alert: %v\n", result.Error)
		return false, apperrors.NewDatabaseError("failed to record alert", result.Error)
	}

	claimed := result.RowsAffected == 1
	log.Printf("[DEBUG] AlertHistoryRepository.RecordIfAbsent: subscriber=%d kind=%s ref=%s claimed=%t\n",
		record.SubscriberID, record.Kind, record.RefDate, claimed)
	return claimed, nil
}

// MarkDelivered flags a ledger row as sent
func (r *AlertHistoryRepository) MarkDelivered(id uint, sentAt time.Time) error {
	if id == 0 {
		return apperrors.NewValidationError("alert record ID cannot be zero")
	}

	result := r.db.Model(&models.AlertRecord{}).Where("id = ?", id).Updates(map[string]interface{}{
		"delivered": true,
		"status":    "sent",
		"sent_at":   sentAt,
	})
	if result.Error != nil {
		log.Printf("[ERROR] Database error when marking alert delivered: %v\n", result.Error)
		return apperrors.NewDatabaseError("failed to mark alert delivered", result.Error)
	}

	return nil
}

// MarkFailed flags a ledger row as failed with the delivery error
func (r *AlertHistoryRepository) MarkFailed(id uint, message string) error {
	if id == 0 {
		return apperrors.NewValidationError("alert record ID cannot be zero")
	}

	result := r.db.Model(&models.AlertRecord{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        "failed",
		"error_message": message,
	})
	if result.Error != nil {
		log.Printf("[ERROR] Database error when marking alert failed: %v\n", result.Error)
		return apperrors.NewDatabaseError("failed to mark alert failed", result.Error)
	}

	return nil
}

// Summary aggregates ledger activity over the last N days
func (r *AlertHistoryRepository) Summary(days int) (map[string]interface{}, error) {
	if days < 1 {
		return nil, apperrors.NewValidationError("summary period must be at least one day")
	}

	cutoff := time.Now().AddDate(0, 0, -days)

	var rows []struct {
		Kind      models.AlertKind
		Delivered bool
		Status    string
		CreatedAt time.Time
	}
	result := r.db.Model(&models.AlertRecord{}).
		Select("kind, delivered, status, created_at").
		Where("created_at >= ?", cutoff).
		Scan(&rows)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when summarizing alerts: %v\n", result.Error)
		return nil, apperrors.NewDatabaseError("failed to summarize alerts", result.Error)
	}

	var success, failure int64
	byType := make(map[string]int64)
	byDay := make(map[string]int64)
	for _, row := range rows {
		if row.Delivered {
			success++
		}
		if row.Status == "failed" {
			failure++
		}
		byType[string(row.Kind)]++
		byDay[row.CreatedAt.Format(models.RefDateLayout)]++
	}

	return map[string]interface{}{
		"total":       int64(len(rows)),
		"success":     success,
		"failure":     failure,
		"by_type":     byType,
		"by_day":      byDay,
		"period_days": days,
	}, nil
}

// PruneOlderThan hard-deletes ledger rows older than the retention window
func (r *AlertHistoryRepository) PruneOlderThan(days int) (int64, error) {
	if days < 1 {
		return 0, apperrors.NewValidationError("retention period must be at least one day")
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	result := r.db.Where("created_at < ?", cutoff).Delete(&models.AlertRecord{})
	if result.Error != nil {
		log.Printf("[ERROR] Database error when pruning alerts: %v\n", result.Error)
		return 0, apperrors.NewDatabaseError("failed to prune alert history", result.Error)
	}

	log.Printf("[DEBUG] Pruned %d alert records older than %d days\n", result.RowsAffected, days)
	return result.RowsAffected, nil
}

// ZoneRuleRepository serves collection rules from an in-memory view of the
// zone_schedule_rules table, reloadable without restart
type ZoneRuleRepository struct {
	db    *gorm.DB
	mutex sync.RWMutex
	rules map[string]models.ZoneScheduleRule
}

// NewZoneRuleRepository creates a rule repository with an empty cache;
// call Reload before first use
func NewZoneRuleRepository(db *gorm.DB) *ZoneRuleRepository {
	return &ZoneRuleRepository{
		db:    db,
		rules: make(map[string]models.ZoneScheduleRule),
	}
}

// Reload replaces the in-memory rule set from the database
func (r *ZoneRuleRepository) Reload() error {
	var rules []models.ZoneScheduleRule
	result := r.db.Find(&rules)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when loading zone rules: %v\n", result.Error)
		return apperrors.NewDatabaseError("failed to load zone rules", result.Error)
	}

	loaded := make(map[string]models.ZoneScheduleRule, len(rules))
	for _, rule := range rules {
		loaded[strings.ToUpper(rule.Zone)] = rule
	}

	r.mutex.Lock()
	r.rules = loaded
	r.mutex.Unlock()

	log.Printf("[DEBUG] ZoneRuleRepository.Reload: %d rules loaded\n", len(loaded))
	return nil
}

// RuleFor returns the schedule rule for a zone
func (r *ZoneRuleRepository) RuleFor(zone string) (*models.ZoneScheduleRule, error) {
	r.mutex.RLock()
	rule, found := r.rules[strings.ToUpper(zone)]
	r.mutex.RUnlock()

	if !found {
		return nil, apperrors.NewUnknownZoneError(zone)
	}
	return &rule, nil
}

// RuleCount reports how many rules the in-memory view holds
func (r *ZoneRuleRepository) RuleCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.rules)
}

// GeobaseRepository handles the Montreal street-segment dataset
type GeobaseRepository struct {
	db *gorm.DB
}

// NewGeobaseRepository creates a repository for geobase entries
func NewGeobaseRepository(db *gorm.DB) *GeobaseRepository {
	return &GeobaseRepository{db: db}
}

// RefreshDataset replaces the stored dataset inside one transaction,
// inserting in batches to keep statements bounded
func (r *GeobaseRepository) RefreshDataset(entries []models.GeobaseEntry) error {
	if len(entries) == 0 {
		return apperrors.NewValidationError("geobase dataset cannot be empty")
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.GeobaseEntry{}).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(entries, 1000).Error
	})
	if err != nil {
		log.Printf("[ERROR] Database error when refreshing geobase: %v\n", err)
		return apperrors.NewDatabaseError("failed to refresh geobase dataset", err)
	}

	log.Printf("[DEBUG] GeobaseRepository.RefreshDataset: %d entries stored\n", len(entries))
	return nil
}

// Count reports the number of stored street segments
func (r *GeobaseRepository) Count() (int64, error) {
	var count int64
	result := r.db.Model(&models.GeobaseEntry{}).Count(&count)
	if result.Error != nil {
		return 0, apperrors.NewDatabaseError("failed to count geobase entries", result.Error)
	}
	return count, nil
}

// LastUpdated reports when the dataset was last refreshed
func (r *GeobaseRepository) LastUpdated() (time.Time, error) {
	var entry models.GeobaseEntry
	result := r.db.Order("updated_at DESC").First(&entry)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, apperrors.NewDatabaseError("failed to read geobase age", result.Error)
	}
	return entry.UpdatedAt, nil
}

// LookupSegments finds street segments matching a street name and civic
// number. When the exact name yields nothing, a short-prefix pass catches
// abbreviated or partly typed names.
func (r *GeobaseRepository) LookupSegments(streetName string, civicNumber int) ([]models.GeobaseEntry, error) {
	if streetName == "" {
		return nil, apperrors.NewValidationError("street name cannot be empty")
	}
	if civicNumber <= 0 {
		return nil, apperrors.NewValidationError("civic number must be positive")
	}

	entries, err := r.segmentsMatching("%"+strings.ToLower(streetName)+"%", civicNumber)
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		// Retry on the first four characters to recover from suffix typos
		runes := []rune(strings.ToLower(streetName))
		if len(runes) >= 4 {
			entries, err = r.segmentsMatching("%"+string(runes[:4])+"%", civicNumber)
			if err != nil {
				return nil, err
			}
		}
	}

	return entries, nil
}

func (r *GeobaseRepository) segmentsMatching(pattern string, civicNumber int) ([]models.GeobaseEntry, error) {
	var entries []models.GeobaseEntry
	result := r.db.
		Where("LOWER(street_name) LIKE ?", pattern).
		Where("from_civic <= ? AND to_civic >= ?", civicNumber, civicNumber).
		Order("cote_rue_id").
		Find(&entries)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when looking up geobase segments: %v\n", result.Error)
		return nil, apperrors.NewDatabaseError("failed to look up street segments", result.Error)
	}
	return entries, nil
}

// Search returns autocomplete matches grouped by street and side
func (r *GeobaseRepository) Search(query string, limit int) ([]models.AddressSearchResult, error) {
	if len([]rune(query)) < 3 {
		return nil, apperrors.NewValidationError("search query must be at least 3 characters")
	}
	if limit < 1 {
		limit = 10
	}

	var entries []models.GeobaseEntry
	result := r.db.
		Where("LOWER(street_name) LIKE ?", "%"+strings.ToLower(query)+"%").
		Order("street_name, side, from_civic").
		Find(&entries)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when searching geobase: %v\n", result.Error)
		return nil, apperrors.NewDatabaseError("failed to search street segments", result.Error)
	}

	type groupKey struct {
		street string
		side   string
	}
	groups := make(map[groupKey]*models.AddressSearchResult)
	order := make([]groupKey, 0)

	for _, entry := range entries {
		key := groupKey{street: entry.StreetName, side: entry.Side}
		match, found := groups[key]
		if !found {
			groups[key] = &models.AddressSearchResult{
				CoteRueID: entry.CoteRueID,
				Street:    entry.StreetName,
				Side:      entry.Side,
				FromCivic: entry.FromCivic,
				ToCivic:   entry.ToCivic,
				Borough:   entry.Borough,
			}
			order = append(order, key)
			continue
		}
		if entry.FromCivic < match.FromCivic {
			match.FromCivic = entry.FromCivic
		}
		if entry.ToCivic > match.ToCivic {
			match.ToCivic = entry.ToCivic
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].street == order[j].street {
			return order[i].side < order[j].side
		}
		return order[i].street < order[j].street
	})

	results := make([]models.AddressSearchResult, 0, limit)
	for _, key := range order {
		results = append(results, *groups[key])
		if len(results) == limit {
			break
		}
	}

	return results, nil
}
