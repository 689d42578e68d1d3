package alerts

import (
	"time"

	"alertmtl.app/dispatch"
	"alertmtl.app/models"
	"alertmtl.app/waste"
)

// Engine turns detected transitions and upcoming collections into alert intents
type Engine struct {
	registry *dispatch.Registry
}

// NewEngine creates an engine deciding against the given city registry
func NewEngine(registry *dispatch.Registry) *Engine {
	return &Engine{registry: registry}
}

// DecideSnow maps a transition to intents for the given recipients. The city's
// alert policy is keyed by destination state; transitions outside the policy
// and recipients who opted out of snow alerts produce nothing.
func (e *Engine) DecideSnow(event *models.TransitionEvent, recipients []models.Recipient) []models.AlertIntent {
	if event == nil {
		return nil
	}

	city, exists := e.registry.Get(event.City)
	if !exists {
		return nil
	}

	kind, alertable := city.AlertPolicy[event.To]
	if !alertable {
		return nil
	}

	refDate := snowReferenceDate(event)

	var intents []models.AlertIntent
	for _, recipient := range recipients {
		if !recipient.SnowAlerts {
			continue
		}

		intents = append(intents, models.AlertIntent{
			SubscriberID:     recipient.SubscriberID,
			Email:            recipient.Email,
			Kind:             kind,
			RefDate:          refDate,
			City:             event.City,
			Entity:           event.Entity,
			Zone:             recipient.Zone,
			Label:            recipient.Label,
			UnsubscribeToken: recipient.UnsubscribeToken,
			State:            event.To,
			WindowStart:      event.WindowStart,
			WindowEnd:        event.WindowEnd,
		})
	}

	return intents
}

// snowReferenceDate keys the dedup ledger. A rescheduled operation is a new
// occurrence under its new window start; every other transition keys on the
// observation date, so repeats within one day collapse.
func snowReferenceDate(event *models.TransitionEvent) string {
	if event.To == models.StateReplanifie && event.WindowStart != nil {
		return event.WindowStart.Format(models.RefDateLayout)
	}
	return event.ObservedAt.Format(models.RefDateLayout)
}

// DecideWaste returns reminder intents for collections happening tomorrow in
// one zone. The reference date is the scheduled collection date, so a reminder
// goes out at most once per pickup no matter how often the check runs.
func (e *Engine) DecideWaste(calculator *waste.Calculator, zone string, recipients []models.Recipient, today time.Time) ([]models.AlertIntent, error) {
	tomorrow := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location()).AddDate(0, 0, 1)

	kinds := []struct {
		collection waste.CollectionKind
		alert      models.AlertKind
	}{
		{waste.Garbage, models.AlertGarbageReminder},
		{waste.Recycling, models.AlertRecyclingReminder},
	}

	var intents []models.AlertIntent
	for _, k := range kinds {
		next, err := calculator.NextOccurrence(zone, k.collection, today, true)
		if err != nil {
			return nil, err
		}
		if !next.Equal(tomorrow) {
			continue
		}

		observed, shifted := waste.AdjustForHoliday(next)
		refDate := next.Format(models.RefDateLayout)

		for _, recipient := range recipients {
			if !recipient.WasteAlerts {
				continue
			}

			intents = append(intents, models.AlertIntent{
				SubscriberID:     recipient.SubscriberID,
				Email:            recipient.Email,
				Kind:             k.alert,
				RefDate:          refDate,
				City:             recipient.City,
				Zone:             zone,
				Label:            recipient.Label,
				UnsubscribeToken: recipient.UnsubscribeToken,
				CollectionDate:   observed,
				HolidayShifted:   shifted,
			})
		}
	}

	return intents, nil
}
