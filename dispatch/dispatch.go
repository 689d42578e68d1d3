// Package dispatch resolves postal codes and explicit city tags to the
// municipality that serves them.
package dispatch

import (
	"strings"
	"time"

	"alertmtl.app/errors"
	"alertmtl.app/models"
)

// StateDisplay describes how a raw provider state is presented to users
type StateDisplay struct {
	Label    string `json:"en"`
	LabelFr  string `json:"fr"`
	Color    string `json:"color"`
	Priority int    `json:"priority"`
}

// CityInfo is the static registration for one municipality: postal prefix
// set, poll cadence, entity keying, state catalog and alert policy.
// Built once at startup and never mutated afterwards.
type CityInfo struct {
	Name              models.City
	Prefixes          []byte
	EntityPrefix      string
	PollInterval      time.Duration
	StateCatalog      map[string]StateDisplay
	AlertPolicy       map[string]models.AlertKind
	ParkingProhibited map[string]bool
}

// EntityForFSA derives the default monitored-entity key for a zone
func (c *CityInfo) EntityForFSA(fsa string) string {
	return c.EntityPrefix + ":" + fsa
}

// DisplayFor returns the catalog entry for a state. States outside the
// catalog render gray with a capitalized label so new provider vocabulary
// degrades instead of breaking.
func (c *CityInfo) DisplayFor(state string) StateDisplay {
	if d, ok := c.StateCatalog[state]; ok {
		return d
	}
	label := state
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}
	return StateDisplay{Label: label, LabelFr: label, Color: "gray", Priority: 0}
}

// ParkingAllowed reports whether street parking is permitted under a state.
// Returns nil for unknown states: no claim either way.
func (c *CityInfo) ParkingAllowed(state string) *bool {
	if state == models.StateUnknown || state == "" {
		return nil
	}
	allowed := !c.ParkingProhibited[state]
	return &allowed
}

// Montreal returns the Montréal registration with the planif-neige vocabulary
func Montreal(pollInterval time.Duration) *CityInfo {
	return &CityInfo{
		Name:         models.CityMontreal,
		Prefixes:     []byte{'H'},
		EntityPrefix: "cote-rue",
		PollInterval: pollInterval,
		StateCatalog: map[string]StateDisplay{
			models.StateEnneige:        {Label: "Snowy", LabelFr: "Enneigé", Color: "blue", Priority: 1},
			models.StatePlanifie:       {Label: "Scheduled", LabelFr: "Planifié", Color: "orange", Priority: 3},
			models.StateReplanifie:     {Label: "Rescheduled", LabelFr: "Replanifié", Color: "orange", Priority: 3},
			models.StateEnCours:        {Label: "In Progress", LabelFr: "En cours", Color: "purple", Priority: 4},
			models.StateDeneige:        {Label: "Cleared", LabelFr: "Déneigé", Color: "green", Priority: 0},
			models.StateSeraReplanifie: {Label: "To be Rescheduled", LabelFr: "Sera replanifié", Color: "orange", Priority: 2},
			models.StateDegage:         {Label: "Clear", LabelFr: "Dégagé", Color: "green", Priority: 0},
			models.StateUnknown:        {Label: "Unknown", LabelFr: "Inconnu", Color: "gray", Priority: 0},
		},
		AlertPolicy: map[string]models.AlertKind{
			models.StatePlanifie:   models.AlertSnowScheduled,
			models.StateReplanifie: models.AlertSnowScheduled,
			models.StateEnCours:    models.AlertSnowUrgent,
			models.StateDeneige:    models.AlertSnowCleared,
		},
		ParkingProhibited: map[string]bool{
			models.StateEnCours:    true,
			models.StatePlanifie:   true,
			models.StateReplanifie: true,
		},
	}
}

// Quebec returns the Québec City registration with the snow-operations vocabulary
func Quebec(pollInterval time.Duration) *CityInfo {
	return &CityInfo{
		Name:         models.CityQuebec,
		Prefixes:     []byte{'G'},
		EntityPrefix: "secteur",
		PollInterval: pollInterval,
		StateCatalog: map[string]StateDisplay{
			models.StateEnFonction:  {Label: "Active", LabelFr: "En fonction", Color: "red", Priority: 4},
			models.StateHorsService: {Label: "Inactive", LabelFr: "Hors service", Color: "green", Priority: 0},
			models.StateUnknown:     {Label: "Unknown", LabelFr: "Inconnu", Color: "gray", Priority: 0},
		},
		AlertPolicy: map[string]models.AlertKind{
			models.StateEnFonction:  models.AlertSnowUrgent,
			models.StateHorsService: models.AlertSnowCleared,
		},
		ParkingProhibited: map[string]bool{
			models.StateEnFonction: true,
		},
	}
}

// Registry maps postal prefixes and explicit tags to registered cities
type Registry struct {
	byPrefix map[byte]*CityInfo
	byName   map[models.City]*CityInfo
	ordered  []*CityInfo
}

// NewRegistry builds an immutable registry over the given cities
func NewRegistry(cities ...*CityInfo) *Registry {
	r := &Registry{
		byPrefix: make(map[byte]*CityInfo),
		byName:   make(map[models.City]*CityInfo),
	}
	for _, city := range cities {
		r.byName[city.Name] = city
		for _, p := range city.Prefixes {
			r.byPrefix[p] = city
		}
		r.ordered = append(r.ordered, city)
	}
	return r
}

// Cities returns the registered cities in registration order
func (r *Registry) Cities() []*CityInfo {
	return r.ordered
}

// Get returns a city by name
func (r *Registry) Get(name models.City) (*CityInfo, bool) {
	city, ok := r.byName[name]
	return city, ok
}

// Resolve maps an identifier (explicit city tag or postal code) to its city.
// Unknown prefixes fail closed; callers must not retry.
func (r *Registry) Resolve(identifier string) (*CityInfo, error) {
	tag := models.City(strings.ToLower(strings.TrimSpace(identifier)))
	if city, ok := r.byName[tag]; ok {
		return city, nil
	}

	fsa, err := ExtractFSA(identifier)
	if err != nil {
		return nil, err
	}
	if city, ok := r.byPrefix[fsa[0]]; ok {
		return city, nil
	}
	return nil, errors.NewUnknownCityError(identifier)
}

// ResolvePostal maps a postal code to its city and extracted FSA
func (r *Registry) ResolvePostal(postal string) (*CityInfo, string, error) {
	fsa, err := ExtractFSA(postal)
	if err != nil {
		return nil, "", err
	}
	if city, ok := r.byPrefix[fsa[0]]; ok {
		return city, fsa, nil
	}
	return nil, "", errors.NewUnknownCityError(postal)
}

// ExtractFSA normalizes a postal code and returns its forward sortation area:
// uppercase, whitespace and hyphens stripped, first three characters of the
// first alphanumeric run validated as letter-digit-letter.
func ExtractFSA(postal string) (string, error) {
	s := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '-' {
			return -1
		}
		return r
	}, strings.ToUpper(postal))

	start := -1
	for i := 0; i < len(s); i++ {
		if isAlnum(s[i]) {
			start = i
			break
		}
	}
	if start < 0 {
		return "", errors.NewValidationError("postal code is required")
	}

	end := start
	for end < len(s) && isAlnum(s[end]) {
		end++
	}
	run := s[start:end]
	if len(run) < 3 {
		return "", errors.NewValidationError("postal code is too short")
	}

	fsa := run[:3]
	if !isLetter(fsa[0]) || !isDigit(fsa[1]) || !isLetter(fsa[2]) {
		return "", errors.NewValidationError("postal code must start with a letter-digit-letter sequence")
	}
	return fsa, nil
}

func isAlnum(b byte) bool {
	return isLetter(b) || isDigit(b)
}

func isLetter(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
