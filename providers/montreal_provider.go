package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"alertmtl.app/config"
	apperrors "alertmtl.app/errors"
	"alertmtl.app/models"
)

// planification is one street-side entry in the planif-neige batch feed
type planification struct {
	CoteRueID int        `json:"coteRueId"`
	Etat      string     `json:"etat"`
	DateDebut *time.Time `json:"dateDebut,omitempty"`
	DateFin   *time.Time `json:"dateFin,omitempty"`
	DateMaj   *time.Time `json:"dateMaj,omitempty"`
}

type planificationBatchResponse struct {
	Planifications []planification `json:"planifications"`
}

// MontrealProvider reads snow-removal planifications from the planif-neige feed.
// The upstream returns the whole city in one batch, so a single fetch serves
// every tracked street side until the refresh window elapses.
type MontrealProvider struct {
	baseURL string
	client  *http.Client
	refresh time.Duration
	limiter *rate.Limiter

	mutex     sync.RWMutex
	batch     map[string]planification
	fetchedAt time.Time
}

// NewMontrealProvider creates a provider for the Montreal planif-neige feed
func NewMontrealProvider(config *config.MontrealConfig) *MontrealProvider {
	refresh := config.RefreshInterval()
	return &MontrealProvider{
		baseURL: config.BaseURL,
		client: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		refresh: refresh,
		limiter: rate.NewLimiter(rate.Every(refresh), 1),
	}
}

// RefreshInterval returns the minimum time between upstream batch fetches
func (p *MontrealProvider) RefreshInterval() time.Duration {
	return p.refresh
}

// FetchStatus returns the current snapshot for one street side. Entities use
// the form "cote-rue:<id>"; an entity absent from the batch reports "unknown"
// rather than an error, since the feed only lists streets with activity.
func (p *MontrealProvider) FetchStatus(ctx context.Context, entity string) (*models.StatusSnapshot, error) {
	if entity == "" {
		return nil, apperrors.NewValidationError("entity cannot be empty")
	}

	key := entityKey(entity)

	p.mutex.RLock()
	fetchedAt := p.fetchedAt
	hasBatch := !fetchedAt.IsZero()
	p.mutex.RUnlock()

	if !hasBatch || time.Since(fetchedAt) >= p.refresh {
		if p.limiter.Allow() {
			if err := p.refreshBatch(ctx); err != nil {
				return nil, err
			}
		} else if !hasBatch {
			return nil, apperrors.NewProviderUnavailableError("montreal refresh window exhausted before first fetch", nil)
		}
	}

	return p.snapshotFor(entity, key), nil
}

func (p *MontrealProvider) refreshBatch(ctx context.Context) error {
	date := time.Now().Format(models.RefDateLayout)
	url := fmt.Sprintf("%s/planifications?date=%s", p.baseURL, date)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperrors.NewExternalAPIError("failed to build planif-neige request", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return apperrors.NewExternalAPIError("failed to fetch planifications", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return apperrors.NewExternalAPIError(
			fmt.Sprintf("planif-neige returned status code %d", resp.StatusCode), nil)
	}

	var batchResp planificationBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batchResp); err != nil {
		return apperrors.NewExternalAPIError("failed to decode planification data", err)
	}

	batch := make(map[string]planification, len(batchResp.Planifications))
	for _, item := range batchResp.Planifications {
		batch[strconv.Itoa(item.CoteRueID)] = item
	}

	p.mutex.Lock()
	p.batch = batch
	p.fetchedAt = time.Now()
	p.mutex.Unlock()

	return nil
}

func (p *MontrealProvider) snapshotFor(entity, key string) *models.StatusSnapshot {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	item, found := p.batch[key]
	if !found {
		return &models.StatusSnapshot{
			Entity:     entity,
			City:       models.CityMontreal,
			State:      models.StateUnknown,
			ObservedAt: p.fetchedAt,
			FetchedAt:  p.fetchedAt,
		}
	}

	observedAt := p.fetchedAt
	if item.DateMaj != nil {
		observedAt = *item.DateMaj
	}

	return &models.StatusSnapshot{
		Entity:      entity,
		City:        models.CityMontreal,
		State:       strings.ToLower(strings.TrimSpace(item.Etat)),
		ObservedAt:  observedAt,
		FetchedAt:   p.fetchedAt,
		WindowStart: item.DateDebut,
		WindowEnd:   item.DateFin,
	}
}

// entityKey strips the entity kind prefix, e.g. "cote-rue:123401" -> "123401"
func entityKey(entity string) string {
	if idx := strings.LastIndex(entity, ":"); idx >= 0 {
		return entity[idx+1:]
	}
	return entity
}
