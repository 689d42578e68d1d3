package service

import (
	"context"
	"time"

	"alertmtl.app/models"
	"alertmtl.app/providers"
)

// SnowStatusManagerInterface is an alias to the providers interface
type SnowStatusManagerInterface = providers.StatusManager

// SnowServiceInterface defines the interface for snow-status operations
type SnowServiceInterface interface {
	StatusForPostal(ctx context.Context, postalCode string) (*models.SnowStatusResponse, error)
	StatusForEntity(ctx context.Context, cityIdentifier, entity string) (*models.SnowStatusResponse, error)
	RunCheckCycle(ctx context.Context, cityIdentifier string) (*SnowCycleStats, error)
	RunAllChecks(ctx context.Context) map[string]*SnowCycleStats
	Transitions() []models.TransitionEvent
	Expire(ctx context.Context, cityIdentifier, entity string) error
}

// WasteServiceInterface defines the interface for collection-schedule operations
type WasteServiceInterface interface {
	ScheduleForPostal(postalCode string) (*models.WasteScheduleResponse, error)
	ScheduleForZone(zone string) (*models.WasteScheduleResponse, error)
	RunReminderCycle(now time.Time) *WasteCycleStats
	ReloadRules() (int, error)
}

// SubscriptionManagerInterface handles subscription creation and removal
type SubscriptionManagerInterface interface {
	Subscribe(req *models.SubscribeRequest) error
	Unsubscribe(token string) error
}

// SubscriptionServiceInterface is the full subscription surface
type SubscriptionServiceInterface interface {
	SubscriptionManagerInterface
}

// GeobaseServiceInterface defines the interface for street-dataset operations
type GeobaseServiceInterface interface {
	LookupAddress(address string) (*models.GeobaseEntry, error)
	Search(query string, limit int) ([]models.AddressSearchResult, error)
	Refresh() (int, error)
	EnsureFresh() error
}

// EmailServiceInterface defines the interface for email operations
type EmailServiceInterface interface {
	SendWelcomeEmail(subscriber *models.Subscriber, address *models.Address) error
	SendSnowAlertEmail(intent *models.AlertIntent) error
	SendWasteReminderEmail(intents []models.AlertIntent) error
	SendGoodbyeEmail(email string) error
}

// AlertDispatcherInterface claims ledger rows and delivers decided alerts
type AlertDispatcherInterface interface {
	DispatchSnow(intents []models.AlertIntent) (sent, skipped, failed int)
	DispatchWaste(intents []models.AlertIntent) (sent, skipped, failed int)
	DeliveryStats(days int) (map[string]interface{}, error)
}

// SubscriberRepositoryInterface defines the interface for subscriber data operations
type SubscriberRepositoryInterface interface {
	FindByEmail(email string) (*models.Subscriber, error)
	FindByEmailAny(email string) (*models.Subscriber, error)
	FindByToken(token string) (*models.Subscriber, error)
	Create(subscriber *models.Subscriber) error
	Update(subscriber *models.Subscriber) error
	Restore(subscriber *models.Subscriber) error
	Delete(subscriber *models.Subscriber) error
}

// AddressRepositoryInterface defines the interface for address data operations
type AddressRepositoryInterface interface {
	Create(address *models.Address) error
	ListBySubscriber(subscriberID uint) ([]models.Address, error)
	DeleteBySubscriber(subscriberID uint) error
	DistinctEntities(city models.City) ([]string, error)
	DistinctZones(city models.City) ([]string, error)
	ListRecipientsByEntity(city models.City, entity string) ([]models.Recipient, error)
	ListRecipientsByZone(city models.City, zone string) ([]models.Recipient, error)
}

// AlertHistoryInterface defines the interface for the alert dedup ledger
type AlertHistoryInterface interface {
	RecordIfAbsent(record *models.AlertRecord) (bool, error)
	MarkDelivered(id uint, sentAt time.Time) error
	MarkFailed(id uint, message string) error
	Summary(days int) (map[string]interface{}, error)
	PruneOlderThan(days int) (int64, error)
}

// ZoneRuleStoreInterface defines the interface for reloadable zone rules
type ZoneRuleStoreInterface interface {
	RuleFor(zone string) (*models.ZoneScheduleRule, error)
	Reload() error
	RuleCount() int
}

// GeobaseStoreInterface defines the interface for street-dataset persistence
type GeobaseStoreInterface interface {
	RefreshDataset(entries []models.GeobaseEntry) error
	Count() (int64, error)
	LastUpdated() (time.Time, error)
	LookupSegments(streetName string, civicNumber int) ([]models.GeobaseEntry, error)
	Search(query string, limit int) ([]models.AddressSearchResult, error)
}

// GeobaseFetcherInterface defines the interface for dataset downloads
type GeobaseFetcherInterface interface {
	FetchEntries() ([]models.GeobaseEntry, error)
}

// Ensure implementations satisfy interfaces
var _ SnowServiceInterface = (*SnowService)(nil)
var _ WasteServiceInterface = (*WasteService)(nil)
var _ SubscriptionServiceInterface = (*SubscriptionService)(nil)
var _ GeobaseServiceInterface = (*GeobaseService)(nil)
var _ EmailServiceInterface = (*EmailService)(nil)
var _ AlertDispatcherInterface = (*AlertDispatcher)(nil)
