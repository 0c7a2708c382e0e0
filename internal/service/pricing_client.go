package service

import (
	"context"
	"time"

	"booking-service/internal/models"
	"booking-service/internal/util"

	"go.uber.org/zap"
)

// PriceStore reads published prices from the database.
type PriceStore interface {
	GetUnitPrice(ctx context.Context, unitID int64) (*models.PriceListItem, error)
}

// PriceCache is the Redis fast path in front of the price store.
type PriceCache interface {
	GetUnitPrice(ctx context.Context, unitID int64) (int64, bool, error)
	SetUnitPrice(ctx context.Context, unitID, price int64, ttl time.Duration) error
}

const priceCacheTTL = 5 * time.Minute

// PricingClient resolves a unit's displayed price: Redis snapshot
// first, database fallback. A unit with no published price list entry
// prices at zero, matching the grid view.
type PricingClient struct {
	store  PriceStore
	cache  PriceCache
	logger *zap.Logger
}

// NewPricingClient creates a new pricing client
func NewPricingClient(store PriceStore, cache PriceCache) *PricingClient {
	return &PricingClient{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// PriceForUnit returns the current price for a unit. Cache failures
// degrade to the database; only a database failure is an error.
func (pc *PricingClient) PriceForUnit(ctx context.Context, unitID int64) (int64, error) {
	ctx, span := util.StartSpan(ctx, "PricingClient.PriceForUnit")
	defer span.End()

	if pc.cache != nil {
		price, hit, err := pc.cache.GetUnitPrice(ctx, unitID)
		if err != nil {
			pc.logger.Warn("Price cache read failed, falling back to DB",
				zap.Int64("unit_id", unitID),
				zap.Error(err))
		} else if hit {
			return price, nil
		}
	}

	item, err := pc.store.GetUnitPrice(ctx, unitID)
	if err != nil {
		return 0, err
	}

	var price int64
	if item != nil {
		price = item.Price
	} else {
		pc.logger.Warn("Unit has no published price", zap.Int64("unit_id", unitID))
	}

	if pc.cache != nil {
		if err := pc.cache.SetUnitPrice(ctx, unitID, price, priceCacheTTL); err != nil {
			pc.logger.Warn("Failed to cache unit price",
				zap.Int64("unit_id", unitID),
				zap.Error(err))
		}
	}

	return price, nil
}
