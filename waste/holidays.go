package waste

import "time"

// Quebec statutory holidays. Collections falling on these dates run the
// next day. Dates shift year to year.
var statutoryHolidays = map[string]string{
	"2026-01-01": "New Year's Day",
	"2026-04-03": "Good Friday",
	"2026-04-06": "Easter Monday",
	"2026-05-18": "Victoria Day",
	"2026-06-24": "Saint-Jean-Baptiste",
	"2026-07-01": "Canada Day",
	"2026-09-07": "Labour Day",
	"2026-10-12": "Thanksgiving",
	"2026-12-25": "Christmas",
	"2026-12-26": "Boxing Day",
}

// AdjustForHoliday shifts a collection date off a statutory holiday to the
// following day. The shift applies once: schedule math stays on the rule's
// weekday, only the observed date moves.
func AdjustForHoliday(date time.Time) (time.Time, bool) {
	if _, ok := statutoryHolidays[date.Format("2006-01-02")]; ok {
		return date.AddDate(0, 0, 1), true
	}
	return date, false
}
