package providers

import (
	"context"
	"time"

	"alertmtl.app/models"
)

// SnowProvider defines the interface for city snow-status upstreams
type SnowProvider interface {
	FetchStatus(ctx context.Context, entity string) (*models.StatusSnapshot, error)
	RefreshInterval() time.Duration
}

// StatusReader defines the interface for cached status lookups
type StatusReader interface {
	Status(ctx context.Context, city models.City, entity string) (*models.StatusSnapshot, error)
}

// FileLogger defines the interface for file logging operations
type FileLogger interface {
	LogRequest(providerName, entity string)
	LogResponse(providerName, entity string, snapshot *models.StatusSnapshot, duration time.Duration)
	LogError(providerName, entity string, err error, duration time.Duration)
}

// EmailProvider defines the interface for email providers
type EmailProvider interface {
	SendEmail(to, subject, body string, isHTML bool) error
}

// StatusManager defines the interface for city status management
type StatusManager interface {
	StatusReader
	Expire(ctx context.Context, city models.City, entity string) error
}
