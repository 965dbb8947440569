package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"waterbill/internal/tariff"
)

// Payment status a bill carries when it leaves the engine. Later
// transitions (paid, partial) happen outside this package.
const StatusUnpaid = "unpaid"

// ComputeInput is a validated bill computation request. The HTTP boundary
// rejects malformed shapes (negative usage, unknown enums, bad months)
// before anything here runs.
type ComputeInput struct {
	UsageM3      float64
	CustomerType tariff.CustomerType
	Sewerage     tariff.SewerageStatus
	MeterSize    float64
	BillingMonth string
}

// ComputedBill is the engine's result: one bill, created once per
// computation and never mutated afterwards. All amounts are rounded to
// currency precision (2 decimal places) at assembly.
type ComputedBill struct {
	ID                string    `json:"id"`
	CustomerType      string    `json:"customer_type"`
	BillingMonth      string    `json:"billing_month"`
	UsageM3           float64   `json:"usage_m3"`
	UsageCharge       float64   `json:"usage_charge"`
	RentalCharge      float64   `json:"rental_charge"`
	SewerageSurcharge float64   `json:"sewerage_surcharge"`
	TotalAmountDue    float64   `json:"total_amount_due"`
	PriorBalance      float64   `json:"prior_balance"`
	GrandTotal        float64   `json:"grand_total"`
	DueDate           time.Time `json:"due_date"`
	PaymentStatus     string    `json:"payment_status"`
}

// Options holds the billing constants that are configuration, not business
// logic. A zero DueDateOffsetDays means "last day of the month following
// the billing month"; a positive value means that many days after the
// billing month starts.
type Options struct {
	DueDateOffsetDays int
}

// Diagnostics exposes the intermediate pricing state alongside a computed
// bill so pricing mismatches can be investigated without re-deriving them.
type Diagnostics struct {
	TariffFound    bool                 `json:"tariff_found"`
	RentalTable    []tariff.RentalEntry `json:"rental_table"`
	RentalKey      *string              `json:"rental_key"`
	RentalPrice    *float64             `json:"rental_price"`
	DecodeProblems []tariff.DecodeDiag  `json:"decode_problems,omitempty"`
}

// AssembleBill combines the charge components into a final bill. Pure: no
// persistence, no clock reads beyond the billing month itself. A nil tariff
// row yields a zero-charge bill carrying only the prior balance; the caller
// decides whether that is an error.
func AssembleBill(in ComputeInput, usageCharge decimal.Decimal, rental tariff.RentalResolution, surchargeRate float64, priorBalance float64, opts Options) (*ComputedBill, error) {
	monthStart, err := tariff.MonthStart(in.BillingMonth)
	if err != nil {
		return nil, err
	}

	rentalCharge := decimal.Zero
	if rental.Price != nil {
		rentalCharge = decimal.NewFromFloat(*rental.Price)
	}

	surcharge := decimal.Zero
	if in.Sewerage == tariff.SewerageConnected && surchargeRate > 0 {
		surcharge = usageCharge.Mul(decimal.NewFromFloat(surchargeRate))
	}

	total := usageCharge.Add(rentalCharge).Add(surcharge)
	// carried-forward balance is additive, never netted against new charges
	grand := total.Add(decimal.NewFromFloat(priorBalance))

	return &ComputedBill{
		ID:                uuid.New().String(),
		CustomerType:      string(in.CustomerType),
		BillingMonth:      in.BillingMonth,
		UsageM3:           in.UsageM3,
		UsageCharge:       round2(usageCharge),
		RentalCharge:      round2(rentalCharge),
		SewerageSurcharge: round2(surcharge),
		TotalAmountDue:    round2(total),
		PriorBalance:      round2(decimal.NewFromFloat(priorBalance)),
		GrandTotal:        round2(grand),
		DueDate:           dueDate(monthStart, opts),
		PaymentStatus:     StatusUnpaid,
	}, nil
}

func dueDate(monthStart time.Time, opts Options) time.Time {
	if opts.DueDateOffsetDays > 0 {
		return monthStart.AddDate(0, 0, opts.DueDateOffsetDays)
	}
	// last day of the following month
	return monthStart.AddDate(0, 2, 0).AddDate(0, 0, -1)
}

func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
