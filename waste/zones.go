package waste

import (
	"sort"
	"time"

	"alertmtl.app/models"
)

// Collection days per Montréal FSA, following borough collection patterns.
// Schedules are approximate and may vary by street.
var montrealCollectionDays = map[string]time.Weekday{
	// Plateau-Mont-Royal
	"H2J": time.Monday,
	"H2T": time.Monday,
	"H2W": time.Monday,
	"H2L": time.Monday,

	// Mile End / Outremont
	"H2V": time.Tuesday,
	"H2S": time.Tuesday,
	"H3N": time.Tuesday,

	// Rosemont-La Petite-Patrie
	"H1X": time.Wednesday,
	"H1Y": time.Wednesday,
	"H2G": time.Wednesday,
	"H2R": time.Wednesday,

	// Villeray / Saint-Michel / Parc-Extension
	"H2P": time.Thursday,
	"H2M": time.Thursday,
	"H2E": time.Thursday,

	// Ahuntsic-Cartierville
	"H2N": time.Friday,
	"H2C": time.Friday,
	"H3L": time.Friday,
	"H3M": time.Friday,

	// Downtown / Ville-Marie
	"H3A": time.Monday,
	"H3B": time.Monday,
	"H3C": time.Monday,
	"H3G": time.Monday,
	"H3H": time.Monday,

	// NDG / Côte-des-Neiges
	"H3S": time.Wednesday,
	"H3T": time.Wednesday,
	"H3V": time.Wednesday,
	"H3W": time.Wednesday,
	"H4A": time.Wednesday,
	"H4B": time.Wednesday,
	"H4V": time.Wednesday,

	// Verdun / LaSalle
	"H4G": time.Thursday,
	"H4H": time.Thursday,
	"H4E": time.Thursday,
	"H8N": time.Thursday,
	"H8P": time.Thursday,

	// Mercier-Hochelaga-Maisonneuve
	"H1L": time.Tuesday,
	"H1M": time.Tuesday,
	"H1N": time.Tuesday,
	"H1K": time.Tuesday,
	"H1V": time.Tuesday,
	"H1W": time.Tuesday,

	// Anjou / Saint-Léonard
	"H1J": time.Friday,
	"H1R": time.Friday,
	"H1S": time.Friday,
	"H1T": time.Friday,

	// Montréal-Nord
	"H1G": time.Monday,
	"H1H": time.Monday,

	// Rivière-des-Prairies / Pointe-aux-Trembles
	"H1A": time.Tuesday,
	"H1B": time.Tuesday,
	"H1C": time.Tuesday,
	"H1E": time.Tuesday,

	// West Island
	"H9A": time.Wednesday,
	"H9B": time.Wednesday,
	"H9C": time.Wednesday,
	"H9H": time.Wednesday,
	"H9J": time.Wednesday,
	"H9K": time.Wednesday,
	"H9R": time.Wednesday,
	"H9S": time.Wednesday,
	"H9W": time.Wednesday,
	"H9X": time.Wednesday,

	// Lachine
	"H8R": time.Monday,
	"H8S": time.Monday,
	"H8T": time.Monday,

	// Sud-Ouest
	"H3J": time.Tuesday,
	"H3K": time.Tuesday,
	"H4C": time.Tuesday,
}

// Collection days per Québec City FSA, following arrondissement patterns.
var quebecCollectionDays = map[string]time.Weekday{
	// La Cité-Limoilou (dense areas)
	"G1K": time.Monday,
	"G1L": time.Monday,
	"G1R": time.Monday,

	// La Cité-Limoilou (semi-dense)
	"G1M": time.Tuesday,
	"G1N": time.Tuesday,
	"G1J": time.Tuesday,

	// Sainte-Foy / Sillery / Cap-Rouge
	"G1V": time.Thursday,
	"G1W": time.Thursday,
	"G1X": time.Thursday,
	"G1Y": time.Thursday,

	// Les Rivières
	"G1E": time.Wednesday,
	"G2B": time.Wednesday,
	"G2E": time.Wednesday,
	"G1P": time.Wednesday,
	"G2J": time.Wednesday,
	"G2K": time.Wednesday,

	// Charlesbourg
	"G1G": time.Friday,
	"G1H": time.Friday,
	"G2N": time.Friday,
	"G2G": time.Friday,

	// Beauport
	"G1B": time.Wednesday,
	"G1C": time.Wednesday,

	// La Haute-Saint-Charles
	"G2A": time.Thursday,
	"G2C": time.Thursday,
	"G3A": time.Thursday,
	"G3B": time.Thursday,
	"G3E": time.Thursday,
	"G3G": time.Thursday,
	"G3J": time.Thursday,
	"G3K": time.Thursday,
	"G1S": time.Thursday,
	"G1T": time.Thursday,
	"G2L": time.Thursday,
	"G2M": time.Thursday,
}

// DefaultRules returns the built-in zone timetable used to seed the rule
// store. Garbage runs weekly; recycling shares the weekday and runs in
// even weeks relative to the biweekly anchor.
func DefaultRules() []models.ZoneScheduleRule {
	rules := make([]models.ZoneScheduleRule, 0, len(montrealCollectionDays)+len(quebecCollectionDays))
	for fsa, day := range montrealCollectionDays {
		rules = append(rules, ruleFor(fsa, models.CityMontreal, day))
	}
	for fsa, day := range quebecCollectionDays {
		rules = append(rules, ruleFor(fsa, models.CityQuebec, day))
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Zone < rules[j].Zone })
	return rules
}

func ruleFor(fsa string, city models.City, day time.Weekday) models.ZoneScheduleRule {
	return models.ZoneScheduleRule{
		Zone:             fsa,
		City:             city,
		GarbageWeekday:   int(day),
		RecyclingWeekday: int(day),
		RecyclingCadence: models.CadenceBiweeklyEven,
	}
}
