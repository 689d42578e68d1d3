package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"alertmtl.app/config"
	apperrors "alertmtl.app/errors"
	"alertmtl.app/models"
)

// requestUserAgent mirrors a desktop browser; the ArcGIS endpoint throttles
// unidentified clients aggressively.
const requestUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// quebecFSACoords maps Quebec City forward sortation areas to centroid
// coordinates used as the query point for nearby winter-operation signals.
var quebecFSACoords = map[string][2]float64{
	"G1A": {46.8139, -71.2080},
	"G1B": {46.8625, -71.1978},
	"G1C": {46.8758, -71.1678},
	"G1E": {46.8572, -71.2281},
	"G1G": {46.8247, -71.2589},
	"G1H": {46.7989, -71.2378},
	"G1J": {46.8208, -71.2089},
	"G1K": {46.8125, -71.2189},
	"G1L": {46.8064, -71.2289},
	"G1M": {46.7939, -71.2489},
	"G1N": {46.7814, -71.2589},
	"G1P": {46.7689, -71.2789},
	"G1R": {46.8094, -71.2189},
	"G1S": {46.7564, -71.2889},
	"G1T": {46.7439, -71.2989},
	"G1V": {46.7814, -71.2789},
	"G1W": {46.7689, -71.2889},
	"G1X": {46.7564, -71.3089},
	"G1Y": {46.7439, -71.3189},
	"G2A": {46.8375, -71.2580},
	"G2B": {46.8500, -71.2680},
	"G2C": {46.8625, -71.2780},
	"G2E": {46.8750, -71.2880},
	"G2G": {46.8875, -71.2980},
	"G2J": {46.9000, -71.3080},
	"G2K": {46.9125, -71.3180},
	"G2L": {46.9250, -71.3280},
	"G2M": {46.9375, -71.3380},
	"G2N": {46.9500, -71.3480},
	"G3A": {46.8439, -71.1678},
	"G3B": {46.8572, -71.1578},
	"G3C": {46.8705, -71.1478},
	"G3E": {46.8838, -71.1378},
	"G3G": {46.8971, -71.1278},
	"G3H": {46.9104, -71.1178},
	"G3J": {46.9237, -71.1078},
	"G3K": {46.9370, -71.0978},
	"G3L": {46.9503, -71.0878},
	"G3M": {46.9636, -71.0778},
	"G3N": {46.9769, -71.0678},
}

type arcgisFeature struct {
	Attributes map[string]interface{} `json:"attributes"`
}

type arcgisError struct {
	Message string `json:"message"`
}

type arcgisQueryResponse struct {
	Features []arcgisFeature `json:"features"`
	Error    *arcgisError    `json:"error,omitempty"`
}

// QuebecProvider reads winter-operation signal states from the Quebec City
// ArcGIS map service. A sector is "en_fonction" when any signal within the
// search radius of its centroid reports an active status.
type QuebecProvider struct {
	baseURL      string
	client       *http.Client
	refresh      time.Duration
	searchRadius int
	maxRadius    int

	// one limiter per sector; queries hit the upstream per entity
	mutex    sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewQuebecProvider creates a provider for the Quebec City ArcGIS service
func NewQuebecProvider(config *config.QuebecConfig) *QuebecProvider {
	return &QuebecProvider{
		baseURL: config.BaseURL,
		client: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		refresh:      config.RefreshInterval(),
		searchRadius: config.SearchRadiusM,
		maxRadius:    config.MaxRadiusM,
		limiters:     make(map[string]*rate.Limiter),
	}
}

func (p *QuebecProvider) limiterFor(fsa string) *rate.Limiter {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	limiter, found := p.limiters[fsa]
	if !found {
		limiter = rate.NewLimiter(rate.Every(p.refresh), 1)
		p.limiters[fsa] = limiter
	}
	return limiter
}

// RefreshInterval returns the minimum time between upstream queries
func (p *QuebecProvider) RefreshInterval() time.Duration {
	return p.refresh
}

// FetchStatus queries the map service around the sector centroid, widening
// the radius in 100 m steps when no signals are found. Entities use the form
// "secteur:<FSA>".
func (p *QuebecProvider) FetchStatus(ctx context.Context, entity string) (*models.StatusSnapshot, error) {
	if entity == "" {
		return nil, apperrors.NewValidationError("entity cannot be empty")
	}

	fsa := strings.ToUpper(entityKey(entity))
	coords, found := quebecFSACoords[fsa]
	if !found {
		return nil, apperrors.NewUnknownZoneError(fsa)
	}

	if !p.limiterFor(fsa).Allow() {
		return nil, apperrors.NewProviderUnavailableError(
			fmt.Sprintf("quebec refresh window exhausted for sector %s", fsa), nil)
	}

	var features []arcgisFeature
	for radius := p.searchRadius; ; radius += 100 {
		if radius > p.maxRadius {
			break
		}
		result, err := p.querySignals(ctx, coords[0], coords[1], radius)
		if err != nil {
			return nil, err
		}
		if len(result) > 0 {
			features = result
			break
		}
	}

	now := time.Now()
	return &models.StatusSnapshot{
		Entity:     entity,
		City:       models.CityQuebec,
		State:      signalState(features),
		ObservedAt: now,
		FetchedAt:  now,
	}, nil
}

func (p *QuebecProvider) querySignals(ctx context.Context, lat, lon float64, radius int) ([]arcgisFeature, error) {
	params := url.Values{}
	params.Set("geometry", fmt.Sprintf("%f,%f", lon, lat))
	params.Set("geometryType", "esriGeometryPoint")
	params.Set("inSR", "4326")
	params.Set("spatialRel", "esriSpatialRelIntersects")
	params.Set("distance", fmt.Sprintf("%d", radius))
	params.Set("units", "esriSRUnit_Meter")
	params.Set("outFields", "*")
	params.Set("returnGeometry", "true")
	params.Set("outSR", "4326")
	params.Set("f", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, apperrors.NewExternalAPIError("failed to build quebec signal request", err)
	}
	req.Header.Set("User-Agent", requestUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalAPIError("failed to query quebec signals", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewExternalAPIError(
			fmt.Sprintf("quebec map service returned status code %d", resp.StatusCode), nil)
	}

	var queryResp arcgisQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&queryResp); err != nil {
		return nil, apperrors.NewExternalAPIError("failed to decode quebec signal data", err)
	}

	// The service reports failures in-band with a 200 status
	if queryResp.Error != nil {
		return nil, apperrors.NewExternalAPIError(
			fmt.Sprintf("quebec map service error: %s", queryResp.Error.Message), nil)
	}

	return queryResp.Features, nil
}

// signalState folds signal attributes into a sector state: any active
// "En fonction" signal marks the whole sector as under operation.
func signalState(features []arcgisFeature) string {
	for _, feature := range features {
		status, ok := feature.Attributes["STATUT"].(string)
		if ok && strings.EqualFold(strings.TrimSpace(status), "En fonction") {
			return models.StateEnFonction
		}
	}
	return models.StateHorsService
}
