package providers

import (
	"context"
	"time"

	"alertmtl.app/models"
)

type StatusLoggerDecorator struct {
	wrappedProvider SnowProvider
	logger          FileLogger
	providerName    string
}

func NewStatusLoggerDecorator(provider SnowProvider, logger FileLogger, providerName string) SnowProvider {
	return &StatusLoggerDecorator{
		wrappedProvider: provider,
		logger:          logger,
		providerName:    providerName,
	}
}

func (d *StatusLoggerDecorator) FetchStatus(ctx context.Context, entity string) (*models.StatusSnapshot, error) {
	d.logger.LogRequest(d.providerName, entity)
	startTime := time.Now()

	snapshot, err := d.wrappedProvider.FetchStatus(ctx, entity)
	duration := time.Since(startTime)

	if err != nil {
		d.logger.LogError(d.providerName, entity, err, duration)
		return nil, err
	}

	d.logger.LogResponse(d.providerName, entity, snapshot, duration)
	return snapshot, nil
}

// RefreshInterval delegates to the wrapped provider
func (d *StatusLoggerDecorator) RefreshInterval() time.Duration {
	return d.wrappedProvider.RefreshInterval()
}

type CompositeStatusDecorator struct {
	decorators   []func(SnowProvider) SnowProvider
	baseProvider SnowProvider
}

// NewCompositeStatusDecorator creates a composite decorator
func NewCompositeStatusDecorator(baseProvider SnowProvider) *CompositeStatusDecorator {
	return &CompositeStatusDecorator{
		baseProvider: baseProvider,
		decorators:   make([]func(SnowProvider) SnowProvider, 0),
	}
}

func (c *CompositeStatusDecorator) AddDecorator(decorator func(SnowProvider) SnowProvider) *CompositeStatusDecorator {
	c.decorators = append(c.decorators, decorator)
	return c
}

func (c *CompositeStatusDecorator) Build() SnowProvider {
	result := c.baseProvider

	for _, decorator := range c.decorators {
		result = decorator(result)
	}

	return result
}
