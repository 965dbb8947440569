package tariff

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// SizeMatchTolerance is the absolute tolerance used when comparing a
// normalized size key against a requested meter size.
const SizeMatchTolerance = 1e-6

// toleranceSlack absorbs float64 representation error in the comparison so
// a size sitting exactly on the tolerance boundary (0.5 + 1e-6 against key
// "1/2") still matches: the closed window [size-tol, size+tol] is part of
// the resolver's contract, and the raw subtraction can land ~1e-17 outside
// it.
const toleranceSlack = 1e-12

// RentalResolution is the outcome of a rental price lookup. Both fields are
// nil when no key matched; that is not an error, the bill assembler treats
// it as a zero rental charge and the gap shows up only in diagnostics.
type RentalResolution struct {
	Key   *string  `json:"key"`
	Price *float64 `json:"price"`
}

// Resolved reports whether a table entry was found.
func (r RentalResolution) Resolved() bool { return r.Key != nil }

var fractionPattern = regexp.MustCompile(`^-?\d+/\d+$`)

// ResolveRentalPrice finds the rental price applicable to a meter size.
// An exact textual match against the decimal form of meterSize wins first,
// preserving labels authored verbatim in the data. Otherwise every key is
// normalized to a number (fractions like "1/2" evaluated, stray unit text
// stripped) and the first table-order key within SizeMatchTolerance is
// taken. When several keys normalize within tolerance of the same size the
// first in table order wins; that ambiguity is a data-quality concern, not
// something the resolver arbitrates.
func ResolveRentalPrice(table RentalPriceTable, meterSize float64) RentalResolution {
	exact := strconv.FormatFloat(meterSize, 'f', -1, 64)
	if price, ok := table.Get(exact); ok {
		key := exact
		return RentalResolution{Key: &key, Price: &price}
	}

	for _, e := range table.Entries() {
		n, ok := NormalizeSizeKey(e.Key)
		if !ok {
			continue
		}
		if math.Abs(n-meterSize)-SizeMatchTolerance <= toleranceSlack {
			key, price := e.Key, e.Price
			return RentalResolution{Key: &key, Price: &price}
		}
	}
	return RentalResolution{}
}

// NormalizeSizeKey reduces a human-authored size label to a number.
// Characters outside digits, dot, slash, and minus are stripped, so
// "1/2 inch" and ` 0.75" ` both normalize. Integer fractions are evaluated
// as rationals; anything else is parsed as a decimal literal. Keys that do
// not reduce to a finite number report ok=false and are skipped by the
// resolver.
func NormalizeSizeKey(key string) (float64, bool) {
	var b strings.Builder
	for _, r := range key {
		if (r >= '0' && r <= '9') || r == '.' || r == '/' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}

	if fractionPattern.MatchString(cleaned) {
		idx := strings.IndexByte(cleaned, '/')
		num, err1 := strconv.ParseFloat(cleaned[:idx], 64)
		den, err2 := strconv.ParseFloat(cleaned[idx+1:], 64)
		if err1 != nil || err2 != nil || den == 0 {
			return 0, false
		}
		v := num / den
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, false
		}
		return v, true
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
