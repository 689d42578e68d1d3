package service

import (
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alertmtl.app/dispatch"
	"alertmtl.app/errors"
	"alertmtl.app/models"
)

// AddressResolverInterface resolves a street address to a geobase segment
type AddressResolverInterface interface {
	LookupAddress(address string) (*models.GeobaseEntry, error)
}

// SubscriptionService handles subscription-related business logic
type SubscriptionService struct {
	db             *gorm.DB
	subscriberRepo SubscriberRepositoryInterface
	addressRepo    AddressRepositoryInterface
	resolver       AddressResolverInterface
	registry       *dispatch.Registry
	emailService   EmailServiceInterface
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(
	db *gorm.DB,
	subscriberRepo SubscriberRepositoryInterface,
	addressRepo AddressRepositoryInterface,
	resolver AddressResolverInterface,
	registry *dispatch.Registry,
	emailService EmailServiceInterface,
) *SubscriptionService {
	return &SubscriptionService{
		db:             db,
		subscriberRepo: subscriberRepo,
		addressRepo:    addressRepo,
		resolver:       resolver,
		registry:       registry,
		emailService:   emailService,
	}
}

// Subscribe registers an address for alerts, creating the subscriber when
// the email is new, restoring it when it was previously unsubscribed, and
// adding the address to the existing subscription otherwise
func (s *SubscriptionService) Subscribe(req *models.SubscribeRequest) error {
	if err := s.validateSubscribeRequest(req); err != nil {
		return err
	}

	log.Printf("[DEBUG] SubscriptionService.Subscribe called for: %s, postal: %s\n", req.Email, req.PostalCode)

	city, fsa, err := s.registry.ResolvePostal(req.PostalCode)
	if err != nil {
		return err
	}

	entity := s.resolveEntity(city, fsa, req)

	subscriber, err := s.subscriberRepo.FindByEmailAny(req.Email)
	if err != nil {
		return err
	}

	if subscriber != nil && !subscriber.DeletedAt.Valid {
		duplicate, err := s.hasAddress(subscriber.ID, entity, fsa)
		if err != nil {
			return err
		}
		if duplicate {
			return errors.NewAlreadyExistsError("address already subscribed")
		}
	}

	address := &models.Address{
		City:       city.Name,
		PostalCode: strings.ToUpper(strings.TrimSpace(req.PostalCode)),
		Zone:       fsa,
		Entity:     entity,
		Label:      strings.TrimSpace(req.Label),
	}

	subscriber, err = s.persistSubscription(subscriber, req, address)
	if err != nil {
		return err
	}

	// Try to send welcome email but don't fail if it doesn't work
	if err := s.emailService.SendWelcomeEmail(subscriber, address); err != nil {
		log.Printf("[WARNING] Failed to send welcome email: %v\n", err)
	}

	return nil
}

func (s *SubscriptionService) validateSubscribeRequest(req *models.SubscribeRequest) error {
	if req == nil {
		return errors.NewValidationError("request cannot be nil")
	}
	if req.Email == "" {
		return errors.NewValidationError("email is required")
	}
	if req.PostalCode == "" {
		return errors.NewValidationError("postal code is required")
	}
	return nil
}

// resolveEntity picks the monitored-entity key for a new address. An
// explicit key wins; a Montreal street address goes through the geobase
// resolver; everything else falls back to the sortation-area key. Resolver
// misses never fail a subscription.
func (s *SubscriptionService) resolveEntity(city *dispatch.CityInfo, fsa string, req *models.SubscribeRequest) string {
	if req.Entity != "" {
		return req.Entity
	}

	if city.Name == models.CityMontreal && req.Label != "" {
		segment, err := s.resolver.LookupAddress(req.Label)
		if err == nil && segment != nil {
			return fmt.Sprintf("%s:%d", city.EntityPrefix, segment.CoteRueID)
		}
		log.Printf("[DEBUG] Street lookup missed for %q, using sortation area: %v\n", req.Label, err)
	}

	return city.EntityForFSA(fsa)
}

func (s *SubscriptionService) hasAddress(subscriberID uint, entity, zone string) (bool, error) {
	addresses, err := s.addressRepo.ListBySubscriber(subscriberID)
	if err != nil {
		return false, err
	}
	for _, address := range addresses {
		if address.Entity == entity && address.Zone == zone {
			return true, nil
		}
	}
	return false, nil
}

func (s *SubscriptionService) persistSubscription(existing *models.Subscriber, req *models.SubscribeRequest, address *models.Address) (*models.Subscriber, error) {
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.NewDatabaseError("failed to begin transaction", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	subscriber := existing
	switch {
	case subscriber == nil:
		subscriber = &models.Subscriber{
			Email:            req.Email,
			Active:           true,
			SnowAlerts:       preference(req.SnowAlerts, true),
			WasteAlerts:      preference(req.WasteAlerts, true),
			UnsubscribeToken: uuid.NewString(),
		}
		if err := tx.Create(subscriber).Error; err != nil {
			tx.Rollback()
			return nil, errors.NewDatabaseError("failed to create subscriber", err)
		}
	case subscriber.DeletedAt.Valid:
		// Returning subscriber: clear the soft delete and start fresh
		subscriber.DeletedAt = gorm.DeletedAt{}
		subscriber.Active = true
		subscriber.SnowAlerts = preference(req.SnowAlerts, true)
		subscriber.WasteAlerts = preference(req.WasteAlerts, true)
		subscriber.UnsubscribeToken = uuid.NewString()
		if err := tx.Unscoped().Save(subscriber).Error; err != nil {
			tx.Rollback()
			return nil, errors.NewDatabaseError("failed to restore subscriber", err)
		}
	default:
		if req.SnowAlerts != nil {
			subscriber.SnowAlerts = *req.SnowAlerts
		}
		if req.WasteAlerts != nil {
			subscriber.WasteAlerts = *req.WasteAlerts
		}
		if err := tx.Save(subscriber).Error; err != nil {
			tx.Rollback()
			return nil, errors.NewDatabaseError("failed to update subscriber", err)
		}
	}

	address.SubscriberID = subscriber.ID
	if err := tx.Create(address).Error; err != nil {
		tx.Rollback()
		return nil, errors.NewDatabaseError("failed to create address", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.NewDatabaseError("failed to commit transaction", err)
	}

	return subscriber, nil
}

func preference(flag *bool, fallback bool) bool {
	if flag == nil {
		return fallback
	}
	return *flag
}

// Unsubscribe removes a subscription and all its addresses using the token
// from an alert email
func (s *SubscriptionService) Unsubscribe(token string) error {
	log.Printf("[DEBUG] Unsubscribe called with token: %s\n", token)

	if token == "" {
		return errors.NewValidationError("token cannot be empty")
	}

	subscriber, err := s.subscriberRepo.FindByToken(token)
	if err != nil {
		return err
	}

	return s.processUnsubscription(subscriber)
}

func (s *SubscriptionService) processUnsubscription(subscriber *models.Subscriber) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return errors.NewDatabaseError("failed to begin transaction", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Where("subscriber_id = ?", subscriber.ID).Delete(&models.Address{}).Error; err != nil {
		tx.Rollback()
		return errors.NewDatabaseError("failed to delete addresses", err)
	}

	if err := tx.Delete(subscriber).Error; err != nil {
		tx.Rollback()
		return errors.NewDatabaseError("failed to delete subscriber", err)
	}

	if err := tx.Commit().Error; err != nil {
		return errors.NewDatabaseError("failed to commit transaction", err)
	}

	// Try to send goodbye email but don't fail if it doesn't work
	if err := s.emailService.SendGoodbyeEmail(subscriber.Email); err != nil {
		log.Printf("[WARNING] Failed to send goodbye email: %v\n", err)
	}

	return nil
}
