package tariff

import "testing"

func TestDecodeTiers_JSONDocument(t *testing.T) {
	tiers, diag := DecodeTiers(`[{"up_to":7,"rate":10},{"rate":15}]`)
	if diag != nil {
		t.Fatalf("unexpected diagnostic: %+v", diag)
	}
	if len(tiers) != 2 {
		t.Fatalf("expected 2 tiers, got %d", len(tiers))
	}
	if tiers[0].UpTo == nil || *tiers[0].UpTo != 7 || tiers[0].Rate != 10 {
		t.Errorf("first tier mismatch: %+v", tiers[0])
	}
	if tiers[1].UpTo != nil {
		t.Errorf("expected last tier unbounded, got bound %v", *tiers[1].UpTo)
	}
}

func TestDecodeTiers_QuotedNumbers(t *testing.T) {
	// rates authored as strings still decode
	tiers, diag := DecodeTiers(`[{"up_to":"7","rate":"10.5"},{"rate":15}]`)
	if diag != nil {
		t.Fatalf("unexpected diagnostic: %+v", diag)
	}
	if tiers[0].Rate != 10.5 {
		t.Errorf("expected rate 10.5, got %v", tiers[0].Rate)
	}
}

func TestDecodeTiers_Total(t *testing.T) {
	cases := []struct {
		name string
		raw  any
	}{
		{"nil", nil},
		{"malformed json", "{not json"},
		{"wrong shape", `{"up_to":7}`},
		{"bogus type", 42},
		{"empty string", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tiers, _ := DecodeTiers(tc.raw)
			if tiers == nil {
				t.Fatalf("expected non-nil tier slice")
			}
		})
	}
}

func TestDecodeTiers_AlreadyTyped(t *testing.T) {
	up := 10.0
	in := []UsageTier{{UpTo: &up, Rate: 5}, {Rate: 8}}
	out, diag := DecodeTiers(in)
	if diag != nil {
		t.Fatalf("unexpected diagnostic: %+v", diag)
	}
	if len(out) != 2 || out[0].Rate != 5 {
		t.Fatalf("typed input not passed through: %+v", out)
	}
}

func TestDecodeTiers_PreDecodedSlice(t *testing.T) {
	in := []any{
		map[string]any{"up_to": 7.0, "rate": 10.0},
		map[string]any{"rate": 15.0},
	}
	out, diag := DecodeTiers(in)
	if diag != nil {
		t.Fatalf("unexpected diagnostic: %+v", diag)
	}
	if len(out) != 2 || out[0].UpTo == nil || *out[0].UpTo != 7 {
		t.Fatalf("pre-decoded input mismatch: %+v", out)
	}
}

func TestDecodeRentalTable_KeepsDocumentOrder(t *testing.T) {
	table, diag := DecodeRentalTable(`{"3/4": 75, "1/2": 50, "1": 120}`)
	if diag != nil {
		t.Fatalf("unexpected diagnostic: %+v", diag)
	}
	entries := table.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []string{"3/4", "1/2", "1"}
	for i, k := range want {
		if entries[i].Key != k {
			t.Errorf("entry %d: want key %q got %q", i, k, entries[i].Key)
		}
	}
}

func TestDecodeRentalTable_Total(t *testing.T) {
	cases := []struct {
		name string
		raw  any
	}{
		{"nil", nil},
		{"malformed json", "{not json"},
		{"empty object", "{}"},
		{"array not object", "[1,2]"},
		{"bogus type", 3.14},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			table, _ := DecodeRentalTable(tc.raw)
			if table.Len() != 0 && tc.name != "empty object" {
				// only well-formed objects may contribute entries
				t.Fatalf("expected empty table, got %d entries", table.Len())
			}
		})
	}
}

func TestDecodeRentalTable_MalformedEmitsDiagnostic(t *testing.T) {
	_, diag := DecodeRentalTable("{not json")
	if diag == nil {
		t.Fatalf("expected a diagnostic for malformed input")
	}
	if diag.Field != "rental_prices" {
		t.Errorf("unexpected diagnostic field %q", diag.Field)
	}
}

func TestDecodeRentalTable_SkipsNonNumericPrices(t *testing.T) {
	table, diag := DecodeRentalTable(`{"1/2": 50, "3/4": "call office", "1": "120.50"}`)
	if diag != nil {
		t.Fatalf("unexpected diagnostic: %+v", diag)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 usable entries, got %d", table.Len())
	}
	if p, ok := table.Get("1"); !ok || p != 120.50 {
		t.Errorf("quoted numeric price not recovered: %v %v", p, ok)
	}
}

func TestDecodeRentalTable_PreDecodedMap(t *testing.T) {
	table, diag := DecodeRentalTable(map[string]any{"1/2": 50.0, "3/4": 75.0})
	if diag != nil {
		t.Fatalf("unexpected diagnostic: %+v", diag)
	}
	if p, ok := table.Get("1/2"); !ok || p != 50 {
		t.Errorf("map entry missing: %v %v", p, ok)
	}
}
