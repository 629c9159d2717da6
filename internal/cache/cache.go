package cache

import (
	"context"
	"time"

	"pharmabill/backend/internal/domain"
)

// CatalogKey is the cache key of the full product feed.
const CatalogKey = "pharmabill:catalog:v1"

// CatalogCache holds the product feed the billing search panel reads from.
type CatalogCache interface {
	Get(ctx context.Context) ([]domain.Product, bool, error)
	Set(ctx context.Context, products []domain.Product, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopCatalogCache struct{}

func (NoopCatalogCache) Get(_ context.Context) ([]domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopCatalogCache) Set(_ context.Context, _ []domain.Product, _ time.Duration) error {
	return nil
}

func (NoopCatalogCache) Invalidate(_ context.Context) error {
	return nil
}
