package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"booking-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePriceStore struct {
	items map[int64]*models.PriceListItem
	err   error
	reads int
}

func (f *fakePriceStore) GetUnitPrice(_ context.Context, unitID int64) (*models.PriceListItem, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	return f.items[unitID], nil
}

type fakePriceCache struct {
	prices map[int64]int64
	getErr error
	setErr error
}

func (f *fakePriceCache) GetUnitPrice(_ context.Context, unitID int64) (int64, bool, error) {
	if f.getErr != nil {
		return 0, false, f.getErr
	}
	price, ok := f.prices[unitID]
	return price, ok, nil
}

func (f *fakePriceCache) SetUnitPrice(_ context.Context, unitID, price int64, _ time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.prices[unitID] = price
	return nil
}

func TestPriceForUnit(t *testing.T) {
	ctx := context.Background()

	t.Run("cache hit skips the database", func(t *testing.T) {
		store := &fakePriceStore{}
		cache := &fakePriceCache{prices: map[int64]int64{1: 2_500_000}}
		pc := NewPricingClient(store, cache)

		price, err := pc.PriceForUnit(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2_500_000), price)
		assert.Zero(t, store.reads)
	})

	t.Run("cache miss reads the database and backfills", func(t *testing.T) {
		store := &fakePriceStore{items: map[int64]*models.PriceListItem{
			1: {UnitID: 1, Price: 3_000_000},
		}}
		cache := &fakePriceCache{prices: map[int64]int64{}}
		pc := NewPricingClient(store, cache)

		price, err := pc.PriceForUnit(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(3_000_000), price)
		assert.Equal(t, int64(3_000_000), cache.prices[1])
	})

	t.Run("cache failure degrades to the database", func(t *testing.T) {
		store := &fakePriceStore{items: map[int64]*models.PriceListItem{
			1: {UnitID: 1, Price: 3_000_000},
		}}
		cache := &fakePriceCache{getErr: errors.New("redis down"), setErr: errors.New("redis down")}
		pc := NewPricingClient(store, cache)

		price, err := pc.PriceForUnit(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(3_000_000), price)
	})

	t.Run("unpublished unit prices at zero", func(t *testing.T) {
		pc := NewPricingClient(&fakePriceStore{}, nil)

		price, err := pc.PriceForUnit(ctx, 9)
		require.NoError(t, err)
		assert.Zero(t, price)
	})

	t.Run("database failure is an error", func(t *testing.T) {
		pc := NewPricingClient(&fakePriceStore{err: errors.New("db down")}, nil)

		_, err := pc.PriceForUnit(ctx, 1)
		assert.Error(t, err)
	})
}
