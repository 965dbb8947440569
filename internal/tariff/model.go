package tariff

import "fmt"

// CustomerType classifies a metered connection for tariff selection.
type CustomerType string

const (
	CustomerResidential   CustomerType = "residential"
	CustomerCommercial    CustomerType = "commercial"
	CustomerInstitutional CustomerType = "institutional"
	CustomerIndustrial    CustomerType = "industrial"
)

// ParseCustomerType maps a free-form string onto the closed set of customer
// types. Unknown values are rejected at the boundary, never inside the engine.
func ParseCustomerType(s string) (CustomerType, error) {
	switch CustomerType(s) {
	case CustomerResidential, CustomerCommercial, CustomerInstitutional, CustomerIndustrial:
		return CustomerType(s), nil
	}
	return "", fmt.Errorf("unknown customer type %q", s)
}

// SewerageStatus says whether a connection is on the sewer network.
type SewerageStatus string

const (
	SewerageConnected    SewerageStatus = "connected"
	SewerageNotConnected SewerageStatus = "not_connected"
)

// ParseSewerageStatus maps a free-form string onto the closed set of statuses.
func ParseSewerageStatus(s string) (SewerageStatus, error) {
	switch SewerageStatus(s) {
	case SewerageConnected, SewerageNotConnected:
		return SewerageStatus(s), nil
	}
	return "", fmt.Errorf("unknown sewerage status %q", s)
}

// UsageTier is one bracket of a progressive usage-charge table. A nil UpTo
// marks the unbounded final bracket.
type UsageTier struct {
	UpTo *float64 `json:"up_to,omitempty"`
	Rate float64  `json:"rate"`
}

// RentalEntry is one row of a rental price table, in table order.
type RentalEntry struct {
	Key   string  `json:"key"`
	Price float64 `json:"price"`
}

// RentalPriceTable maps meter-size labels to fixed monthly rental prices.
// Keys are human-authored and may be decimal literals, integers, or
// fractions like "1/2"; insertion order is preserved because fuzzy
// resolution picks the first match in table order.
type RentalPriceTable struct {
	entries []RentalEntry
}

// Add appends an entry, replacing an existing entry with the same key in
// place so table order stays stable.
func (t *RentalPriceTable) Add(key string, price float64) {
	for i := range t.entries {
		if t.entries[i].Key == key {
			t.entries[i].Price = price
			return
		}
	}
	t.entries = append(t.entries, RentalEntry{Key: key, Price: price})
}

// Get returns the price for an exact key.
func (t *RentalPriceTable) Get(key string) (float64, bool) {
	for _, e := range t.entries {
		if e.Key == key {
			return e.Price, true
		}
	}
	return 0, false
}

// Entries returns the table rows in table order.
func (t *RentalPriceTable) Entries() []RentalEntry {
	return t.entries
}

// Len returns the number of entries.
func (t *RentalPriceTable) Len() int { return len(t.entries) }

// TariffRow is the priced rule set for one (customer type, effective year)
// pair as fetched from the store. TierData and RentalData are the raw,
// semi-structured column values; callers normalize them through DecodeTiers
// and DecodeRentalTable before use. A row is immutable once fetched.
type TariffRow struct {
	CustomerType       CustomerType
	Year               int
	TierData           any
	RentalData         any
	SewerSurchargeRate float64
}
