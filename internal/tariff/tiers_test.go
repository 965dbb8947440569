package tariff

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func bound(v float64) *float64 { return &v }

func twoTier() []UsageTier {
	return []UsageTier{
		{UpTo: bound(7), Rate: 10},
		{Rate: 15},
	}
}

func TestComputeUsageCharge_SpansBrackets(t *testing.T) {
	// 7 units at 10 plus 8 units at 15
	charge, err := ComputeUsageCharge(15, twoTier())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !charge.Equal(decimal.NewFromInt(190)) {
		t.Errorf("expected 190, got %s", charge)
	}
}

func TestComputeUsageCharge_BoundaryBelongsToLowerBracket(t *testing.T) {
	charge, err := ComputeUsageCharge(7, twoTier())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !charge.Equal(decimal.NewFromInt(70)) {
		t.Errorf("usage at the bound must price entirely in the lower bracket: got %s", charge)
	}
}

func TestComputeUsageCharge_ZeroUsage(t *testing.T) {
	charge, err := ComputeUsageCharge(0, twoTier())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !charge.IsZero() {
		t.Errorf("zero usage must yield zero charge, got %s", charge)
	}
}

func TestComputeUsageCharge_EmptyTable(t *testing.T) {
	charge, err := ComputeUsageCharge(100, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !charge.IsZero() {
		t.Errorf("empty table must price at zero, got %s", charge)
	}
}

func TestComputeUsageCharge_Monotonic(t *testing.T) {
	tiers := []UsageTier{
		{UpTo: bound(5), Rate: 3},
		{UpTo: bound(20), Rate: 7.25},
		{UpTo: bound(50), Rate: 12.5},
		{Rate: 20},
	}
	prev := decimal.Zero
	for usage := 0.0; usage <= 80; usage += 0.5 {
		charge, err := ComputeUsageCharge(usage, tiers)
		if err != nil {
			t.Fatalf("usage %v: %v", usage, err)
		}
		if charge.LessThan(prev) {
			t.Fatalf("charge decreased at usage %v: %s < %s", usage, charge, prev)
		}
		prev = charge
	}
}

func TestComputeUsageCharge_MalformedTables(t *testing.T) {
	cases := []struct {
		name  string
		tiers []UsageTier
	}{
		{"non-increasing bounds", []UsageTier{{UpTo: bound(10), Rate: 1}, {UpTo: bound(10), Rate: 2}, {Rate: 3}}},
		{"bounded final bracket", []UsageTier{{UpTo: bound(10), Rate: 1}, {UpTo: bound(20), Rate: 2}}},
		{"unbounded bracket not last", []UsageTier{{Rate: 1}, {UpTo: bound(10), Rate: 2}, {Rate: 3}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ComputeUsageCharge(30, tc.tiers); !errors.Is(err, ErrMalformedTierTable) {
				t.Fatalf("expected ErrMalformedTierTable, got %v", err)
			}
		})
	}
}

func TestComputeUsageCharge_FractionalRatesNoDrift(t *testing.T) {
	// 100 brackets of width 1 at rate 0.1 would drift with naive float
	// accumulation; the decimal path must come out exact.
	var tiers []UsageTier
	for i := 1; i <= 100; i++ {
		tiers = append(tiers, UsageTier{UpTo: bound(float64(i)), Rate: 0.1})
	}
	tiers = append(tiers, UsageTier{Rate: 0.1})

	charge, err := ComputeUsageCharge(100, tiers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !charge.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected exactly 10, got %s", charge)
	}
}
