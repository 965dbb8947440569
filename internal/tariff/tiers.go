package tariff

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrMalformedTierTable marks a tier table that violates its invariants
// (non-increasing bounds, a bounded final tier, or an unbounded tier before
// the end). Unlike messy rental data this indicates corrupted tariff
// configuration, so the computation is rejected rather than mis-billed.
var ErrMalformedTierTable = errors.New("malformed usage tier table")

// ValidateTiers checks the bracket invariants: bounds strictly increasing
// and exactly one unbounded bracket, in last position. An empty table is
// valid and prices everything at zero.
func ValidateTiers(tiers []UsageTier) error {
	if len(tiers) == 0 {
		return nil
	}
	prev := 0.0
	for i, t := range tiers {
		last := i == len(tiers)-1
		if t.UpTo == nil {
			if !last {
				return fmt.Errorf("%w: unbounded bracket at position %d is not last", ErrMalformedTierTable, i)
			}
			continue
		}
		if last {
			return fmt.Errorf("%w: final bracket must be unbounded", ErrMalformedTierTable)
		}
		if *t.UpTo <= prev {
			return fmt.Errorf("%w: bound %v at position %d does not increase", ErrMalformedTierTable, *t.UpTo, i)
		}
		prev = *t.UpTo
	}
	return nil
}

// ComputeUsageCharge prices a usage volume against a progressive bracket
// table: the portion of usage falling inside each bracket is charged at
// that bracket's rate. A volume exactly on a bound belongs to the lower
// bracket. The charge accumulates as a decimal so many-bracket bills do not
// drift; rounding to currency precision happens once, at bill assembly.
func ComputeUsageCharge(usage float64, tiers []UsageTier) (decimal.Decimal, error) {
	if err := ValidateTiers(tiers); err != nil {
		return decimal.Zero, err
	}
	if usage <= 0 || len(tiers) == 0 {
		return decimal.Zero, nil
	}

	charge := decimal.Zero
	lower := 0.0
	for _, t := range tiers {
		upper := usage
		if t.UpTo != nil && *t.UpTo < usage {
			upper = *t.UpTo
		}
		span := upper - lower
		if span > 0 {
			charge = charge.Add(decimal.NewFromFloat(span).Mul(decimal.NewFromFloat(t.Rate)))
		}
		if t.UpTo == nil || usage <= *t.UpTo {
			break
		}
		lower = *t.UpTo
	}
	return charge, nil
}
