package service

import (
	"fmt"
	"log"
	"strings"
	"time"

	"alertmtl.app/errors"
	"alertmtl.app/models"
	"alertmtl.app/providers"
)

const (
	// maxSendRetries is the number of retries after the initial attempt
	maxSendRetries  = 3
	baseRetryDelay  = 2 * time.Second
	dateOnlyDisplay = "Monday, January 2"
	dateTimeDisplay = "January 2 at 15:04"
)

// EmailService composes and sends notification emails through a provider.
// Transient provider failures are retried with exponential backoff before
// the send is reported as failed.
type EmailService struct {
	provider   providers.EmailProvider
	appBaseURL string
	retryDelay time.Duration
}

// NewEmailService creates a new email service with the specified provider
func NewEmailService(provider providers.EmailProvider, appBaseURL string) *EmailService {
	return &EmailService{
		provider:   provider,
		appBaseURL: appBaseURL,
		retryDelay: baseRetryDelay,
	}
}

// SendWelcomeEmail confirms a new subscription and describes what the
// subscriber will receive for the registered address
func (s *EmailService) SendWelcomeEmail(subscriber *models.Subscriber, address *models.Address) error {
	log.Printf("[DEBUG] SendWelcomeEmail called for: %s\n", subscriberEmailOrEmpty(subscriber))

	if subscriber == nil {
		return errors.NewValidationError("subscriber cannot be nil")
	}
	if subscriber.Email == "" {
		return errors.NewValidationError("email cannot be empty")
	}
	if address == nil {
		return errors.NewValidationError("address cannot be nil")
	}

	location := address.Label
	if location == "" {
		location = address.PostalCode
	}

	var alerts []string
	if subscriber.SnowAlerts {
		alerts = append(alerts, "snow-removal alerts")
	}
	if subscriber.WasteAlerts {
		alerts = append(alerts, "collection reminders")
	}
	alertText := "no alerts for now; you can resubscribe with alerts enabled at any time"
	if len(alerts) > 0 {
		alertText = strings.Join(alerts, " and ")
	}

	subject := "Welcome to Alert MTL - Subscription Confirmed"
	htmlContent := fmt.Sprintf(
		"<p>Thank you for subscribing to Alert MTL.</p>"+
			"<p>You will receive %s for <strong>%s</strong>.</p>"+
			"<p>To unsubscribe, <a href=\"%s\">click here</a>.</p>",
		alertText, location, s.unsubscribeURL(subscriber.UnsubscribeToken),
	)

	return s.sendWithRetry(subscriber.Email, subject, htmlContent)
}

// SendSnowAlertEmail notifies one subscriber about a snow-removal transition
func (s *EmailService) SendSnowAlertEmail(intent *models.AlertIntent) error {
	if intent == nil {
		return errors.NewValidationError("alert intent cannot be nil")
	}

	log.Printf("[DEBUG] SendSnowAlertEmail called for: %s, kind: %s\n", intent.Email, intent.Kind)

	if intent.Email == "" {
		return errors.NewValidationError("email cannot be empty")
	}

	location := intentLocation(intent)

	var subject, lead string
	switch intent.Kind {
	case models.AlertSnowScheduled:
		subject = fmt.Sprintf("Snow Removal Scheduled - %s", location)
		lead = "Snow removal has been scheduled for your street."
	case models.AlertSnowUrgent:
		subject = fmt.Sprintf("URGENT: Snow Removal In Progress - %s", location)
		lead = "Snow removal is underway on your street. Move your vehicle now to avoid towing."
	case models.AlertSnowCleared:
		subject = fmt.Sprintf("Street Cleared - %s", location)
		lead = "Snow removal on your street is complete. Parking rules are back to normal."
	default:
		return errors.NewValidationError(fmt.Sprintf("unsupported snow alert kind: %s", intent.Kind))
	}

	body := fmt.Sprintf("<p>%s</p>", lead)
	if intent.WindowStart != nil && intent.WindowEnd != nil {
		body += fmt.Sprintf(
			"<p>Crews are expected between <strong>%s</strong> and <strong>%s</strong>.</p>",
			intent.WindowStart.Format(dateTimeDisplay), intent.WindowEnd.Format(dateTimeDisplay),
		)
	}
	body += fmt.Sprintf(
		"<p>Address: %s</p><p>To unsubscribe, <a href=\"%s\">click here</a>.</p>",
		location, s.unsubscribeURL(intent.UnsubscribeToken),
	)

	return s.sendWithRetry(intent.Email, subject, body)
}

// SendWasteReminderEmail sends one merged reminder covering every collection
// a subscriber has tomorrow. All intents must belong to the same subscriber.
func (s *EmailService) SendWasteReminderEmail(intents []models.AlertIntent) error {
	if len(intents) == 0 {
		return errors.NewValidationError("at least one alert intent is required")
	}

	first := intents[0]
	log.Printf("[DEBUG] SendWasteReminderEmail called for: %s, collections: %d\n", first.Email, len(intents))

	if first.Email == "" {
		return errors.NewValidationError("email cannot be empty")
	}

	names := make([]string, 0, len(intents))
	items := make([]string, 0, len(intents))
	for _, intent := range intents {
		name := collectionName(intent.Kind)
		names = append(names, name)

		item := fmt.Sprintf("<li><strong>%s</strong>: %s", name, intent.CollectionDate.Format(dateOnlyDisplay))
		if intent.HolidayShifted {
			item += " (moved for the holiday)"
		}
		item += "</li>"
		items = append(items, item)
	}

	location := intentLocation(&first)
	subject := fmt.Sprintf("Tomorrow: %s Collection - %s", strings.Join(names, ", "), location)
	htmlContent := fmt.Sprintf(
		"<p>Reminder: put your bins out tonight for collection at %s.</p>"+
			"<ul>%s</ul>"+
			"<p>To unsubscribe, <a href=\"%s\">click here</a>.</p>",
		location, strings.Join(items, ""), s.unsubscribeURL(first.UnsubscribeToken),
	)

	return s.sendWithRetry(first.Email, subject, htmlContent)
}

// SendGoodbyeEmail confirms that a subscription has been removed
func (s *EmailService) SendGoodbyeEmail(email string) error {
	log.Printf("[DEBUG] SendGoodbyeEmail called for: %s\n", email)

	if email == "" {
		return errors.NewValidationError("email cannot be empty")
	}

	subject := "You have been unsubscribed from Alert MTL"
	htmlContent := "<p>Your subscription and all registered addresses have been removed.</p>" +
		"<p>You can subscribe again at any time.</p>"

	return s.sendWithRetry(email, subject, htmlContent)
}

// sendWithRetry delivers an email, retrying transient failures with
// exponential backoff (2s, 4s, 8s)
func (s *EmailService) sendWithRetry(to, subject, htmlContent string) error {
	var lastErr error
	delay := s.retryDelay

	for attempt := 0; attempt <= maxSendRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
		}

		lastErr = s.provider.SendEmail(to, subject, htmlContent, true)
		if lastErr == nil {
			if attempt > 0 {
				log.Printf("[DEBUG] Email to %s delivered after %d retries\n", to, attempt)
			}
			return nil
		}

		log.Printf("[WARNING] Email send attempt %d failed for %s: %v\n", attempt+1, to, lastErr)
	}

	return errors.NewEmailError(
		fmt.Sprintf("failed to send email after %d attempts", maxSendRetries+1), lastErr)
}

func (s *EmailService) unsubscribeURL(token string) string {
	return fmt.Sprintf("%s/api/unsubscribe/%s", s.appBaseURL, token)
}

// intentLocation picks the friendliest available description of the alerted
// address: street label, then entity key, then collection zone
func intentLocation(intent *models.AlertIntent) string {
	if intent.Label != "" {
		return intent.Label
	}
	if intent.Entity != "" {
		return intent.Entity
	}
	return intent.Zone
}

func collectionName(kind models.AlertKind) string {
	switch kind {
	case models.AlertGarbageReminder:
		return "Garbage"
	case models.AlertRecyclingReminder:
		return "Recycling"
	default:
		return string(kind)
	}
}

func subscriberEmailOrEmpty(subscriber *models.Subscriber) string {
	if subscriber == nil {
		return ""
	}
	return subscriber.Email
}
