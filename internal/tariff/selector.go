package tariff

import (
	"context"
	"fmt"
	"time"
)

// Fetcher retrieves the raw tariff row effective for a (customer type, year)
// pair. Implementations return nil, nil when no row exists; the store's
// concurrency and caching discipline live behind this interface, the engine
// itself holds no ambient state.
type Fetcher interface {
	FetchTariff(ctx context.Context, customerType CustomerType, year int) (*TariffRow, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, customerType CustomerType, year int) (*TariffRow, error)

func (f FetcherFunc) FetchTariff(ctx context.Context, customerType CustomerType, year int) (*TariffRow, error) {
	return f(ctx, customerType, year)
}

// Selector picks the tariff row applicable to a billing month.
type Selector struct {
	fetcher Fetcher
}

// NewSelector returns a Selector backed by the given store fetch.
func NewSelector(f Fetcher) *Selector {
	return &Selector{fetcher: f}
}

// Select derives the effective year from a YYYY-MM billing month and fetches
// the row for (customerType, year). A missing row returns nil, nil: there is
// no implicit fallback to a prior year, an absent tariff is a
// data-completeness defect the caller surfaces, not something patched over.
func (s *Selector) Select(ctx context.Context, customerType CustomerType, billingMonth string) (*TariffRow, error) {
	year, err := BillingYear(billingMonth)
	if err != nil {
		return nil, err
	}
	return s.fetcher.FetchTariff(ctx, customerType, year)
}

// BillingYear extracts the year component of a YYYY-MM billing month.
func BillingYear(billingMonth string) (int, error) {
	t, err := time.Parse("2006-01", billingMonth)
	if err != nil {
		return 0, fmt.Errorf("invalid billing month %q: %w", billingMonth, err)
	}
	return t.Year(), nil
}

// MonthStart returns the first day of a YYYY-MM billing month in UTC.
func MonthStart(billingMonth string) (time.Time, error) {
	t, err := time.Parse("2006-01", billingMonth)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid billing month %q: %w", billingMonth, err)
	}
	return t, nil
}
