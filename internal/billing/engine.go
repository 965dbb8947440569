package billing

import (
	"context"

	"github.com/shopspring/decimal"

	"waterbill/internal/tariff"
)

// Engine runs a full bill computation: tariff selection, field decoding,
// usage-charge and rental-price resolution, and final assembly. It is
// stateless between calls; concurrent computations need no coordination
// because each reads immutable tariff data for its own key.
type Engine struct {
	selector *tariff.Selector
	opts     Options
}

// NewEngine builds an engine over an injected store fetch.
func NewEngine(f tariff.Fetcher, opts Options) *Engine {
	return &Engine{selector: tariff.NewSelector(f), opts: opts}
}

// Compute produces a bill for the input, or nil when no tariff row exists
// for the customer type and billing year (diag.TariffFound false; the
// caller chooses how to surface that). Messy rental data degrades to a
// zero rental charge, visible only through the diagnostics; a malformed
// tier table is corrupted configuration and fails the computation.
func (e *Engine) Compute(ctx context.Context, in ComputeInput, priorBalance float64) (*ComputedBill, Diagnostics, error) {
	var diag Diagnostics

	row, err := e.selector.Select(ctx, in.CustomerType, in.BillingMonth)
	if err != nil {
		return nil, diag, err
	}
	if row == nil {
		return nil, diag, nil
	}
	diag.TariffFound = true

	tiers, tierDiag := tariff.DecodeTiers(row.TierData)
	if tierDiag != nil {
		diag.DecodeProblems = append(diag.DecodeProblems, *tierDiag)
	}
	rentalTable, rentalDiag := tariff.DecodeRentalTable(row.RentalData)
	if rentalDiag != nil {
		diag.DecodeProblems = append(diag.DecodeProblems, *rentalDiag)
	}
	diag.RentalTable = rentalTable.Entries()

	usageCharge, err := tariff.ComputeUsageCharge(in.UsageM3, tiers)
	if err != nil {
		return nil, diag, err
	}

	rental := tariff.ResolveRentalPrice(rentalTable, in.MeterSize)
	diag.RentalKey = rental.Key
	diag.RentalPrice = rental.Price

	bill, err := e.assemble(in, usageCharge, rental, row.SewerSurchargeRate, priorBalance)
	if err != nil {
		return nil, diag, err
	}
	return bill, diag, nil
}

func (e *Engine) assemble(in ComputeInput, usageCharge decimal.Decimal, rental tariff.RentalResolution, surchargeRate, priorBalance float64) (*ComputedBill, error) {
	return AssembleBill(in, usageCharge, rental, surchargeRate, priorBalance, e.opts)
}
