package tariff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DecodeDiag records why a semi-structured tariff field degraded to an
// empty value instead of decoding cleanly.
type DecodeDiag struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// DecodeTiers normalizes a tariff row's tier-table column into a typed
// bracket list. The column may arrive as a JSON document (string or bytes),
// as an already-decoded []any from a generic unmarshal, as a typed
// []UsageTier, or as nil. The function is total: malformed input degrades
// to an empty table with a diagnostic, it never returns an error.
func DecodeTiers(raw any) ([]UsageTier, *DecodeDiag) {
	switch v := raw.(type) {
	case nil:
		return []UsageTier{}, nil
	case []UsageTier:
		return v, nil
	case []byte:
		return decodeTierJSON(v)
	case string:
		return decodeTierJSON([]byte(v))
	case []any:
		// Round-trip through JSON so the tolerant element decoding below
		// applies to pre-decoded generic values too.
		buf, err := json.Marshal(v)
		if err != nil {
			return []UsageTier{}, &DecodeDiag{Field: "tier_table", Reason: "unencodable value"}
		}
		return decodeTierJSON(buf)
	default:
		return []UsageTier{}, &DecodeDiag{Field: "tier_table", Reason: fmt.Sprintf("unexpected type %T", raw)}
	}
}

func decodeTierJSON(doc []byte) ([]UsageTier, *DecodeDiag) {
	if len(bytes.TrimSpace(doc)) == 0 {
		return []UsageTier{}, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(doc, &elems); err != nil {
		return []UsageTier{}, &DecodeDiag{Field: "tier_table", Reason: "not a JSON array: " + err.Error()}
	}

	tiers := make([]UsageTier, 0, len(elems))
	for i, el := range elems {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(el, &fields); err != nil {
			return []UsageTier{}, &DecodeDiag{Field: "tier_table", Reason: fmt.Sprintf("element %d is not an object", i)}
		}

		var t UsageTier
		if raw, ok := fields["up_to"]; ok {
			if n, ok := looseNumber(raw); ok {
				t.UpTo = &n
			}
			// non-numeric or null up_to means the tier is unbounded
		}
		raw, ok := fields["rate"]
		if !ok {
			return []UsageTier{}, &DecodeDiag{Field: "tier_table", Reason: fmt.Sprintf("element %d has no rate", i)}
		}
		n, ok := looseNumber(raw)
		if !ok {
			return []UsageTier{}, &DecodeDiag{Field: "tier_table", Reason: fmt.Sprintf("element %d rate is not numeric", i)}
		}
		t.Rate = n
		tiers = append(tiers, t)
	}
	return tiers, nil
}

// DecodeRentalTable normalizes a tariff row's rental-price column into an
// ordered table. Accepted inputs mirror DecodeTiers: JSON object documents,
// pre-decoded maps, typed tables, or nil. JSON documents keep the author's
// key order, which fuzzy resolution depends on; for pre-decoded Go maps the
// original order is already lost, so keys are taken in Go iteration order.
// Total: never errors, malformed input yields an empty table plus a
// diagnostic so billing degrades to "no rental prices configured".
func DecodeRentalTable(raw any) (RentalPriceTable, *DecodeDiag) {
	switch v := raw.(type) {
	case nil:
		return RentalPriceTable{}, nil
	case RentalPriceTable:
		return v, nil
	case *RentalPriceTable:
		if v == nil {
			return RentalPriceTable{}, nil
		}
		return *v, nil
	case []byte:
		return decodeRentalJSON(v)
	case string:
		return decodeRentalJSON([]byte(v))
	case map[string]any:
		var table RentalPriceTable
		for k, val := range v {
			if n, ok := anyNumber(val); ok {
				table.Add(k, n)
			}
		}
		return table, nil
	default:
		return RentalPriceTable{}, &DecodeDiag{Field: "rental_prices", Reason: fmt.Sprintf("unexpected type %T", raw)}
	}
}

// decodeRentalJSON walks the object token by token so that key order in the
// source document is preserved.
func decodeRentalJSON(doc []byte) (RentalPriceTable, *DecodeDiag) {
	var table RentalPriceTable
	if len(bytes.TrimSpace(doc)) == 0 {
		return table, nil
	}

	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return RentalPriceTable{}, &DecodeDiag{Field: "rental_prices", Reason: "not valid JSON: " + err.Error()}
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return RentalPriceTable{}, &DecodeDiag{Field: "rental_prices", Reason: "not a JSON object"}
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return RentalPriceTable{}, &DecodeDiag{Field: "rental_prices", Reason: "truncated object: " + err.Error()}
		}
		key, _ := keyTok.(string)

		var val any
		if err := dec.Decode(&val); err != nil {
			return RentalPriceTable{}, &DecodeDiag{Field: "rental_prices", Reason: "bad value for key " + strconv.Quote(key)}
		}
		if n, ok := anyNumber(val); ok {
			table.Add(key, n)
		}
		// non-numeric prices are skipped rather than failing the table
	}
	return table, nil
}

// looseNumber decodes a JSON value that should be a number but may have been
// authored as a quoted numeric string.
func looseNumber(raw json.RawMessage) (float64, bool) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// anyNumber converts decoded JSON values (float64, json.Number, or numeric
// strings) to float64.
func anyNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
