package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"waterbill/internal/tariff"
)

// Cache is the read-through cache surface the tariff fetcher needs.
// *cache.Client satisfies it; a nil Cache disables caching entirely.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte)
	Invalidate(ctx context.Context, key string)
}

// TariffCacheKey is the cache key for one (customer type, year) tariff row.
// Writers that change a tariff must invalidate this key or readers keep
// serving the old rates until the TTL expires.
func TariffCacheKey(customerType string, year int) string {
	return fmt.Sprintf("tariff:%s:%d", customerType, year)
}

// TariffFetcher adapts Storage (plus an optional cache) to the billing
// engine's fetch interface. The raw JSON columns are handed to the engine
// untouched; decoding and its degradation policy belong to the engine.
type TariffFetcher struct {
	store Storage
	cache Cache
}

// NewTariffFetcher wraps a store. The cache may be nil.
func NewTariffFetcher(store Storage, c Cache) *TariffFetcher {
	return &TariffFetcher{store: store, cache: c}
}

func (f *TariffFetcher) FetchTariff(ctx context.Context, customerType tariff.CustomerType, year int) (*tariff.TariffRow, error) {
	key := TariffCacheKey(string(customerType), year)

	if f.cache != nil {
		if payload, ok := f.cache.Get(ctx, key); ok {
			var rec TariffRecord
			if err := json.Unmarshal(payload, &rec); err == nil {
				return recordToRow(&rec), nil
			}
		}
	}

	rec, err := f.store.GetTariff(ctx, string(customerType), year)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	if f.cache != nil {
		if payload, err := json.Marshal(rec); err == nil {
			f.cache.Set(ctx, key, payload)
		}
	}

	return recordToRow(rec), nil
}

func recordToRow(rec *TariffRecord) *tariff.TariffRow {
	return &tariff.TariffRow{
		CustomerType:       tariff.CustomerType(rec.CustomerType),
		Year:               rec.Year,
		TierData:           rec.TierTable,
		RentalData:         rec.RentalPrices,
		SewerSurchargeRate: rec.SewerSurchargeRate,
	}
}
