package service

import (
	"log"
	"time"

	"alertmtl.app/metrics"
	"alertmtl.app/models"
)

// AlertDispatcher turns decided alert intents into delivered emails. Every
// intent is claimed in the alert ledger before any send: the unique
// (subscriber, kind, ref_date) index makes the claim atomic, so overlapping
// cycles can never double-notify. A failed send keeps its ledger row with a
// failed status rather than releasing the claim.
type AlertDispatcher struct {
	history AlertHistoryInterface
	email   EmailServiceInterface
	metrics *metrics.AlertMetrics
}

// NewAlertDispatcher creates a dispatcher over the given ledger and mailer
func NewAlertDispatcher(history AlertHistoryInterface, email EmailServiceInterface, alertMetrics *metrics.AlertMetrics) *AlertDispatcher {
	return &AlertDispatcher{
		history: history,
		email:   email,
		metrics: alertMetrics,
	}
}

// DispatchSnow claims and delivers snow alerts, one email per intent
func (d *AlertDispatcher) DispatchSnow(intents []models.AlertIntent) (sent, skipped, failed int) {
	for i := range intents {
		intent := intents[i]

		record, claimed := d.claim(&intent)
		if record == nil {
			failed++
			continue
		}
		if !claimed {
			skipped++
			continue
		}

		if err := d.email.SendSnowAlertEmail(&intent); err != nil {
			log.Printf("[ERROR] Failed to send snow alert to %s: %v\n", intent.Email, err)
			d.markFailed(record.ID, intent.Kind, err)
			failed++
			continue
		}

		d.markDelivered(record.ID, intent.Kind)
		sent++
	}

	return sent, skipped, failed
}

// DispatchWaste claims every intent individually, then sends one merged
// reminder per subscriber covering all collections claimed for them
func (d *AlertDispatcher) DispatchWaste(intents []models.AlertIntent) (sent, skipped, failed int) {
	type claimedIntent struct {
		intent   models.AlertIntent
		recordID uint
	}

	bySubscriber := make(map[uint][]claimedIntent)
	var order []uint

	for i := range intents {
		intent := intents[i]

		record, claimed := d.claim(&intent)
		if record == nil {
			failed++
			continue
		}
		if !claimed {
			skipped++
			continue
		}

		if _, seen := bySubscriber[intent.SubscriberID]; !seen {
			order = append(order, intent.SubscriberID)
		}
		bySubscriber[intent.SubscriberID] = append(bySubscriber[intent.SubscriberID], claimedIntent{
			intent:   intent,
			recordID: record.ID,
		})
	}

	for _, subscriberID := range order {
		group := bySubscriber[subscriberID]

		merged := make([]models.AlertIntent, 0, len(group))
		for _, claimed := range group {
			merged = append(merged, claimed.intent)
		}

		if err := d.email.SendWasteReminderEmail(merged); err != nil {
			log.Printf("[ERROR] Failed to send collection reminder to %s: %v\n", merged[0].Email, err)
			for _, claimed := range group {
				d.markFailed(claimed.recordID, claimed.intent.Kind, err)
			}
			failed++
			continue
		}

		for _, claimed := range group {
			d.markDelivered(claimed.recordID, claimed.intent.Kind)
		}
		sent++
	}

	return sent, skipped, failed
}

// DeliveryStats summarizes ledger activity over the trailing period
func (d *AlertDispatcher) DeliveryStats(days int) (map[string]interface{}, error) {
	return d.history.Summary(days)
}

// claim inserts the ledger row for an intent. The returned record is nil on
// storage errors; claimed is false when another cycle already owns the key.
func (d *AlertDispatcher) claim(intent *models.AlertIntent) (*models.AlertRecord, bool) {
	record := &models.AlertRecord{
		SubscriberID: intent.SubscriberID,
		Kind:         intent.Kind,
		RefDate:      intent.RefDate,
		Status:       "pending",
	}

	claimed, err := d.history.RecordIfAbsent(record)
	if err != nil {
		log.Printf("[ERROR] Failed to record alert for subscriber %d: %v\n", intent.SubscriberID, err)
		d.metrics.RecordFailed(string(intent.Kind))
		return nil, false
	}
	if !claimed {
		log.Printf("[DEBUG] Alert already sent: subscriber=%d kind=%s ref=%s\n",
			intent.SubscriberID, intent.Kind, intent.RefDate)
		d.metrics.RecordSuppressed(string(intent.Kind))
		return record, false
	}

	return record, true
}

func (d *AlertDispatcher) markDelivered(recordID uint, kind models.AlertKind) {
	if err := d.history.MarkDelivered(recordID, time.Now()); err != nil {
		log.Printf("[ERROR] Failed to mark alert %d delivered: %v\n", recordID, err)
	}
	d.metrics.RecordSent(string(kind))
}

func (d *AlertDispatcher) markFailed(recordID uint, kind models.AlertKind, sendErr error) {
	if err := d.history.MarkFailed(recordID, sendErr.Error()); err != nil {
		log.Printf("[ERROR] Failed to mark alert %d failed: %v\n", recordID, err)
	}
	d.metrics.RecordFailed(string(kind))
}
