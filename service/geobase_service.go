package service

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"alertmtl.app/config"
	"alertmtl.app/errors"
	"alertmtl.app/models"
)

const minSearchLength = 3

// streetTypeVariations lists every way a street type shows up in front of a
// name. Order within each type matters: the full spelling is tried before
// its abbreviations.
var streetTypeVariations = []string{
	"rue", "r.", "r",
	"avenue", "ave", "av.", "av",
	"boulevard", "boul", "blvd", "bl.", "bl",
	"chemin", "ch.", "ch",
	"place", "pl.", "pl",
	"cote", "côte",
	"rang", "rg",
	"route", "rte",
	"terrasse", "tsse",
	"allee", "allée",
	"passage", "pass",
	"square", "sq",
	"croissant", "crois",
	"impasse", "imp",
}

// abbreviationExpansions covers the Saint/Sainte/Mont shorthand common in
// Montreal addresses. Expansion only fires on a complete leading token so
// names like "Stanley" stay untouched.
var abbreviationExpansions = []struct {
	prefix string
	full   string
}{
	{"ste-", "sainte-"},
	{"ste ", "sainte "},
	{"st-", "saint-"},
	{"st ", "saint "},
	{"mt-", "mont-"},
	{"mt ", "mont "},
}

var accentReplacer = strings.NewReplacer(
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"à", "a", "â", "a", "ä", "a",
	"ù", "u", "û", "u", "ü", "u",
	"ô", "o", "ö", "o",
	"î", "i", "ï", "i",
	"ç", "c",
)

var (
	civicFirstPattern = regexp.MustCompile(`^(\d+)\s*[-,]?\s*(.+)$`)
	civicLastPattern  = regexp.MustCompile(`^(.+?)\s+(\d+)$`)
)

// parsedAddress is the split form of a free-text address line
type parsedAddress struct {
	CivicNumber int
	StreetName  string
	Normalized  string
}

// parseAddress extracts the civic number and street name from a raw address.
// Both "5455 avenue du Parc" and "avenue du Parc 5455" orders are accepted;
// a bare street name parses with a zero civic number. The street type is
// dropped before normalization so "rue St-Denis" still expands its
// abbreviation.
func parseAddress(address string) parsedAddress {
	trimmed := strings.TrimSpace(address)

	civic := 0
	street := trimmed
	if m := civicFirstPattern.FindStringSubmatch(trimmed); m != nil {
		civic, _ = strconv.Atoi(m[1])
		street = strings.TrimSpace(m[2])
	} else if m := civicLastPattern.FindStringSubmatch(trimmed); m != nil {
		street = strings.TrimSpace(m[1])
		civic, _ = strconv.Atoi(m[2])
	}

	street = stripLeadingStreetType(street)

	return parsedAddress{
		CivicNumber: civic,
		StreetName:  street,
		Normalized:  normalizeStreetName(street),
	}
}

// stripLeadingStreetType drops a leading street-type token regardless of
// case or accents, keeping the rest of the name untouched
func stripLeadingStreetType(street string) string {
	first, rest, found := strings.Cut(street, " ")
	if !found {
		return street
	}

	token := accentReplacer.Replace(strings.ToLower(first))
	for _, variation := range streetTypeVariations {
		if token == variation {
			return strings.TrimSpace(rest)
		}
	}
	return street
}

// normalizeStreetName reduces a street name to the comparable form lookups
// run against: lowercase, accents folded, Saint/Mont abbreviations expanded
// and any leading street type dropped
func normalizeStreetName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return ""
	}

	normalized = accentReplacer.Replace(normalized)
	normalized = expandAbbreviation(normalized)
	normalized = stripStreetType(normalized)

	return strings.TrimSpace(normalized)
}

func expandAbbreviation(name string) string {
	for _, abbreviation := range abbreviationExpansions {
		if strings.HasPrefix(name, abbreviation.prefix) {
			return abbreviation.full + name[len(abbreviation.prefix):]
		}
	}
	return name
}

func stripStreetType(name string) string {
	for _, variation := range streetTypeVariations {
		if strings.HasPrefix(name, variation+" ") {
			return name[len(variation)+1:]
		}
	}
	return name
}

// GeobaseService maintains the Montreal street-segment dataset and resolves
// free-text addresses to street-side identifiers
type GeobaseService struct {
	fetcher GeobaseFetcherInterface
	store   GeobaseStoreInterface
	maxAge  time.Duration
}

// NewGeobaseService creates a new street-dataset service
func NewGeobaseService(fetcher GeobaseFetcherInterface, store GeobaseStoreInterface, config *config.GeobaseConfig) *GeobaseService {
	return &GeobaseService{
		fetcher: fetcher,
		store:   store,
		maxAge:  time.Duration(config.CacheDays) * 24 * time.Hour,
	}
}

// LookupAddress resolves a street address to the street-side segment
// containing it. When both sides of the street match the civic range, the
// side matching the number's parity wins (even civics sit on the Pair side).
func (s *GeobaseService) LookupAddress(address string) (*models.GeobaseEntry, error) {
	parsed := parseAddress(address)
	if parsed.Normalized == "" {
		return nil, errors.NewValidationError("address cannot be empty")
	}
	if parsed.CivicNumber <= 0 {
		return nil, errors.NewNotFoundError("address must include a civic number")
	}

	log.Printf("[DEBUG] GeobaseService.LookupAddress: street=%q civic=%d\n", parsed.Normalized, parsed.CivicNumber)

	segments, err := s.store.LookupSegments(parsed.Normalized, parsed.CivicNumber)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, errors.NewNotFoundError(fmt.Sprintf("no street segment matches %q", address))
	}

	segment := preferredSide(segments, parsed.CivicNumber)
	return &segment, nil
}

func preferredSide(segments []models.GeobaseEntry, civicNumber int) models.GeobaseEntry {
	want := "impair"
	if civicNumber%2 == 0 {
		want = "pair"
	}
	for _, segment := range segments {
		if strings.EqualFold(segment.Side, want) {
			return segment
		}
	}
	return segments[0]
}

// Search returns autocomplete matches for a partial street name or address
func (s *GeobaseService) Search(query string, limit int) ([]models.AddressSearchResult, error) {
	trimmed := strings.TrimSpace(query)
	if len([]rune(trimmed)) < minSearchLength {
		return nil, errors.NewValidationError("search query must be at least 3 characters")
	}

	parsed := parseAddress(trimmed)
	term := parsed.Normalized
	if term == "" {
		term = strings.ToLower(trimmed)
	}

	return s.store.Search(term, limit)
}

// Refresh downloads the dataset and swaps it into the store
func (s *GeobaseService) Refresh() (int, error) {
	log.Println("[DEBUG] GeobaseService.Refresh: downloading street dataset")
	start := time.Now()

	entries, err := s.fetcher.FetchEntries()
	if err != nil {
		return 0, err
	}

	if err := s.store.RefreshDataset(entries); err != nil {
		return 0, err
	}

	log.Printf("[DEBUG] Geobase dataset refreshed: %d entries in %.1fs\n", len(entries), time.Since(start).Seconds())
	return len(entries), nil
}

// EnsureFresh refreshes the dataset when it is empty or older than the
// configured maximum age. A fresh dataset is left untouched, so the weekly
// refresh job and startup can both call this unconditionally.
func (s *GeobaseService) EnsureFresh() error {
	count, err := s.store.Count()
	if err != nil {
		return err
	}

	if count > 0 {
		updated, err := s.store.LastUpdated()
		if err != nil {
			return err
		}
		if !updated.IsZero() && time.Since(updated) <= s.maxAge {
			log.Printf("[DEBUG] Geobase dataset fresh: %d entries, updated %s\n",
				count, updated.Format(models.RefDateLayout))
			return nil
		}
	}

	_, err = s.Refresh()
	return err
}
