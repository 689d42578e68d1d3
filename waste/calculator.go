// Package waste computes upcoming collection dates for FSA zones.
package waste

import (
	"fmt"
	"time"

	"alertmtl.app/errors"
	"alertmtl.app/models"
)

// CollectionKind selects which pickup a calculation refers to
type CollectionKind string

const (
	Garbage   CollectionKind = "garbage"
	Recycling CollectionKind = "recycling"
)

// BiweeklyAnchor is the Monday all biweekly parity is measured from.
// Weeks with an even offset from this Monday carry the biweekly_even
// cadence, odd offsets carry biweekly_odd.
var BiweeklyAnchor = time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)

// RuleSource yields the schedule rule for a zone
type RuleSource interface {
	RuleFor(zone string) (*models.ZoneScheduleRule, error)
}

// Calculator derives next collection occurrences from zone rules.
// It is pure: the same inputs always produce the same date.
type Calculator struct {
	rules  RuleSource
	anchor time.Time
}

// NewCalculator returns a calculator using the package biweekly anchor
func NewCalculator(rules RuleSource) *Calculator {
	return NewCalculatorWithAnchor(rules, BiweeklyAnchor)
}

// NewCalculatorWithAnchor returns a calculator with an explicit anchor Monday
func NewCalculatorWithAnchor(rules RuleSource, anchor time.Time) *Calculator {
	return &Calculator{rules: rules, anchor: anchor}
}

// NextOccurrence returns the next collection date for a zone and kind on or
// after from. With strictlyFuture a same-day match rolls to the following
// cycle. The returned date always falls on the rule's configured weekday.
func (c *Calculator) NextOccurrence(zone string, kind CollectionKind, from time.Time, strictlyFuture bool) (time.Time, error) {
	rule, err := c.rules.RuleFor(zone)
	if err != nil {
		return time.Time{}, err
	}

	var weekday int
	cadence := models.CadenceWeekly
	switch kind {
	case Garbage:
		weekday = rule.GarbageWeekday
	case Recycling:
		weekday = rule.RecyclingWeekday
		cadence = rule.RecyclingCadence
	default:
		return time.Time{}, errors.NewValidationError(fmt.Sprintf("unsupported collection kind %q", kind))
	}
	if weekday < 0 || weekday > 6 {
		return time.Time{}, errors.NewValidationError(fmt.Sprintf("zone %s has invalid weekday %d", zone, weekday))
	}

	day := civilDate(from)
	days := (weekday - int(day.Weekday()) + 7) % 7
	if days == 0 && strictlyFuture {
		days = 7
	}
	candidate := day.AddDate(0, 0, days)

	if cadence == models.CadenceBiweeklyOdd || cadence == models.CadenceBiweeklyEven {
		if !c.parityMatches(candidate, cadence) {
			candidate = candidate.AddDate(0, 0, 7)
		}
	}
	return candidate, nil
}

// Occurrence is one upcoming pickup. Date falls on the rule's weekday;
// Observed is the date crews actually run, shifted off statutory holidays.
type Occurrence struct {
	Date           time.Time
	Observed       time.Time
	HolidayShifted bool
}

// Schedule bundles the next garbage and recycling occurrences for a zone
type Schedule struct {
	Zone      string
	City      models.City
	Garbage   Occurrence
	Recycling Occurrence
}

// ScheduleFor returns the next occurrence of both collection kinds for a
// zone, counting a same-day collection as upcoming.
func (c *Calculator) ScheduleFor(zone string, from time.Time) (*Schedule, error) {
	rule, err := c.rules.RuleFor(zone)
	if err != nil {
		return nil, err
	}

	garbage, err := c.occurrence(zone, Garbage, from)
	if err != nil {
		return nil, err
	}
	recycling, err := c.occurrence(zone, Recycling, from)
	if err != nil {
		return nil, err
	}

	return &Schedule{
		Zone:      zone,
		City:      rule.City,
		Garbage:   garbage,
		Recycling: recycling,
	}, nil
}

func (c *Calculator) occurrence(zone string, kind CollectionKind, from time.Time) (Occurrence, error) {
	date, err := c.NextOccurrence(zone, kind, from, false)
	if err != nil {
		return Occurrence{}, err
	}
	observed, shifted := AdjustForHoliday(date)
	return Occurrence{Date: date, Observed: observed, HolidayShifted: shifted}, nil
}

func (c *Calculator) parityMatches(date time.Time, cadence models.Cadence) bool {
	even := weeksBetween(c.anchor, date)%2 == 0
	if cadence == models.CadenceBiweeklyOdd {
		return !even
	}
	return even
}

// weeksBetween counts whole weeks from the anchor Monday to the week
// containing date. Dates before the anchor produce negative week numbers.
func weeksBetween(anchor, date time.Time) int {
	a := civilDateUTC(anchor)
	d := civilDateUTC(date)
	days := int(d.Sub(a).Hours() / 24)
	weeks := days / 7
	if days < 0 && days%7 != 0 {
		weeks--
	}
	return weeks
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func civilDateUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
