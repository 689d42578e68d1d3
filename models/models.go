// Package models defines data structures used throughout the application
package models

import (
	"time"

	"gorm.io/gorm"
)

// City identifies a supported municipality.
type City string

const (
	CityMontreal City = "montreal"
	CityQuebec   City = "quebec"
)

// AlertKind classifies an outbound notification.
type AlertKind string

const (
	AlertSnowScheduled     AlertKind = "snow_scheduled"
	AlertSnowUrgent        AlertKind = "snow_urgent"
	AlertSnowCleared       AlertKind = "snow_cleared"
	AlertGarbageReminder   AlertKind = "garbage_reminder"
	AlertRecyclingReminder AlertKind = "recycling_reminder"
)

// Montreal planif-neige removal states
const (
	StateEnneige        = "enneige"
	StatePlanifie       = "planifie"
	StateReplanifie     = "replanifie"
	StateEnCours        = "en_cours"
	StateDeneige        = "deneige"
	StateSeraReplanifie = "sera_replanifie"
	StateDegage         = "degage"
	StateUnknown        = "unknown"
)

// Quebec City snow-operation states
const (
	StateEnFonction  = "en_fonction"
	StateHorsService = "hors_service"
)

// Cadence describes how often a collection kind runs in a zone.
type Cadence string

const (
	CadenceWeekly       Cadence = "weekly"
	CadenceBiweeklyOdd  Cadence = "biweekly_odd"
	CadenceBiweeklyEven Cadence = "biweekly_even"
)

// RefDateLayout is the canonical reference-date format used in the alert ledger.
const RefDateLayout = "2006-01-02"

// Subscriber represents a registered alert recipient
type Subscriber struct {
	ID               uint           `json:"id" gorm:"primaryKey"`
	Email            string         `json:"email" gorm:"uniqueIndex;not null"`
	Active           bool           `json:"active" gorm:"default:true"`
	SnowAlerts       bool           `json:"snow_alerts" gorm:"default:true"`
	WasteAlerts      bool           `json:"waste_alerts" gorm:"default:true"`
	UnsubscribeToken string         `json:"-" gorm:"uniqueIndex;not null"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`
}

// Address links a subscriber to a monitored entity and a collection zone
type Address struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	SubscriberID uint           `json:"subscriber_id" gorm:"index;not null"`
	Subscriber   Subscriber     `json:"-" gorm:"foreignKey:SubscriberID"`
	City         City           `json:"city" gorm:"not null"`
	PostalCode   string         `json:"postal_code" gorm:"not null"`
	Zone         string         `json:"zone" gorm:"index;not null"` // FSA, e.g. "H2V"
	Entity       string         `json:"entity" gorm:"index"`
	Label        string         `json:"label"`
	CreatedAt    time.Time      `json:"created_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// AlertRecord is the dedup ledger: at most one row per (subscriber, kind, ref date).
// Rows are never soft-deleted; the unique index is the at-most-once guarantee.
type AlertRecord struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	SubscriberID uint       `json:"subscriber_id" gorm:"not null;uniqueIndex:ux_alert_dedup,priority:1"`
	Kind         AlertKind  `json:"kind" gorm:"not null;uniqueIndex:ux_alert_dedup,priority:2"`
	RefDate      string     `json:"ref_date" gorm:"not null;uniqueIndex:ux_alert_dedup,priority:3"`
	Status       string     `json:"status"`
	Delivered    bool       `json:"delivered" gorm:"default:false"`
	ErrorMessage string     `json:"error_message,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ZoneScheduleRule holds the collection timetable for one FSA zone.
// Weekdays use time.Weekday numbering (Sunday = 0).
type ZoneScheduleRule struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	Zone             string    `json:"zone" gorm:"uniqueIndex;not null;size:3"`
	City             City      `json:"city" gorm:"index;not null"`
	GarbageWeekday   int       `json:"garbage_weekday" gorm:"not null"`
	RecyclingWeekday int       `json:"recycling_weekday" gorm:"not null"`
	RecyclingCadence Cadence   `json:"recycling_cadence" gorm:"not null;default:weekly"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// GeobaseEntry is one side-of-street segment from the Montreal street dataset.
// CoteRueID is the upstream planification key for the segment.
type GeobaseEntry struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	CoteRueID  int       `json:"cote_rue_id" gorm:"index;not null"`
	StreetName string    `json:"street_name" gorm:"index;not null"`
	StreetType string    `json:"street_type"`
	FromCivic  int       `json:"from_civic"`
	ToCivic    int       `json:"to_civic"`
	Side       string    `json:"side"`
	Borough    string    `json:"borough"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AddressSearchResult is one autocomplete match grouped by street and side
type AddressSearchResult struct {
	CoteRueID int    `json:"cote_rue_id"`
	Street    string `json:"street"`
	Side      string `json:"side"`
	FromCivic int    `json:"from_civic"`
	ToCivic   int    `json:"to_civic"`
	Borough   string `json:"borough,omitempty"`
}

// StatusSnapshot is one observation of a monitored entity's removal state.
// Snapshots are immutable; a newer observation supersedes, never mutates.
// Stale marks a re-served last-good value during provider failure.
type StatusSnapshot struct {
	Entity      string     `json:"entity"`
	City        City       `json:"city"`
	State       string     `json:"state"`
	ObservedAt  time.Time  `json:"observed_at"`
	FetchedAt   time.Time  `json:"fetched_at"`
	WindowStart *time.Time `json:"window_start,omitempty"`
	WindowEnd   *time.Time `json:"window_end,omitempty"`
	Stale       bool       `json:"stale,omitempty"`
}

// TransitionEvent records a detected state change for one entity
type TransitionEvent struct {
	Entity      string     `json:"entity"`
	City        City       `json:"city"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	ObservedAt  time.Time  `json:"observed_at"`
	WindowStart *time.Time `json:"window_start,omitempty"`
	WindowEnd   *time.Time `json:"window_end,omitempty"`
}

// Recipient is one subscriber/address pair eligible for alerting
type Recipient struct {
	SubscriberID     uint   `json:"subscriber_id"`
	Email            string `json:"email"`
	City             City   `json:"city"`
	Entity           string `json:"entity"`
	Zone             string `json:"zone"`
	Label            string `json:"label"`
	UnsubscribeToken string `json:"-"`
	SnowAlerts       bool   `json:"snow_alerts"`
	WasteAlerts      bool   `json:"waste_alerts"`
}

// AlertIntent is a decided, not-yet-deduplicated notification
type AlertIntent struct {
	SubscriberID     uint       `json:"subscriber_id"`
	Email            string     `json:"email"`
	Kind             AlertKind  `json:"kind"`
	RefDate          string     `json:"ref_date"`
	City             City       `json:"city"`
	Entity           string     `json:"entity,omitempty"`
	Zone             string     `json:"zone,omitempty"`
	Label            string     `json:"label,omitempty"`
	UnsubscribeToken string     `json:"-"`
	State            string     `json:"state,omitempty"`
	WindowStart      *time.Time `json:"window_start,omitempty"`
	WindowEnd        *time.Time `json:"window_end,omitempty"`
	CollectionDate   time.Time  `json:"collection_date,omitempty"`
	HolidayShifted   bool       `json:"holiday_shifted,omitempty"`
}

// SubscribeRequest represents data required to create a subscription
type SubscribeRequest struct {
	Email       string `json:"email" form:"email" binding:"required,email"`
	PostalCode  string `json:"postal_code" form:"postal_code" binding:"required,postalcode"`
	Label       string `json:"label" form:"label"`
	Entity      string `json:"entity" form:"entity"`
	SnowAlerts  *bool  `json:"snow_alerts" form:"snow_alerts"`
	WasteAlerts *bool  `json:"waste_alerts" form:"waste_alerts"`
}

// SnowStatusResponse is the quick-check view of an entity's removal state
type SnowStatusResponse struct {
	City           string     `json:"city"`
	Entity         string     `json:"entity"`
	Available      bool       `json:"available"`
	State          string     `json:"state,omitempty"`
	Label          string     `json:"label,omitempty"`
	LabelFr        string     `json:"label_fr,omitempty"`
	Color          string     `json:"color,omitempty"`
	ParkingAllowed *bool      `json:"parking_allowed,omitempty"`
	Stale          bool       `json:"stale,omitempty"`
	ObservedAt     *time.Time `json:"observed_at,omitempty"`
	WindowStart    *time.Time `json:"window_start,omitempty"`
	WindowEnd      *time.Time `json:"window_end,omitempty"`
	Message        string     `json:"message,omitempty"`
}

// CollectionInfo is one upcoming pickup in the quick-check view
type CollectionInfo struct {
	Kind           string `json:"kind"`
	Date           string `json:"date"`
	Weekday        string `json:"weekday"`
	HolidayShifted bool   `json:"holiday_shifted,omitempty"`
}

// WasteScheduleResponse is the quick-check view of a zone's next collections
type WasteScheduleResponse struct {
	City      string         `json:"city"`
	Zone      string         `json:"zone"`
	Garbage   CollectionInfo `json:"garbage"`
	Recycling CollectionInfo `json:"recycling"`
}

// CheckResponse bundles both quick-check views for one postal code
type CheckResponse struct {
	City  string                 `json:"city"`
	Snow  SnowStatusResponse     `json:"snow"`
	Waste *WasteScheduleResponse `json:"waste,omitempty"`
}

// ErrorResponse represents an error message structure for API responses
type ErrorResponse struct {
	Error string `json:"error"`
}
