package prepare

import "math"

// MinResourceFee is the floor for the adjusted Soroban resource fee, in stroops.
const MinResourceFee int64 = 10_000_000

// RoundValue pads a raw simulated cost to a coarse value aligned on the
// order of magnitude of the input:
//
//	factor = 10^floor(log10(raw))
//	result = floor(raw*2/factor) * factor
//
// The result is never below raw and at most 2*raw; exact powers of ten
// reach 2*raw. Zero stays zero and non-finite input is returned as is.
// Inputs in (0, 1) produce a fractional factor and are rounded the same way.
func RoundValue(raw float64) float64 {
	if raw == 0 || math.IsInf(raw, 0) || math.IsNaN(raw) {
		return raw
	}
	factor := magnitude(raw)
	return math.Floor(raw*2/factor) * factor
}

// magnitude returns 10^floor(log10(n)) for n > 0.
// The exponent is checked against the exact power-of-ten table so that
// values such as 1000 are not misclassified by log10 rounding.
func magnitude(n float64) float64 {
	exp := int(math.Floor(math.Log10(n)))
	for math.Pow10(exp) > n {
		exp--
	}
	for math.Pow10(exp+1) <= n {
		exp++
	}
	return math.Pow10(exp)
}

// RoundUint32 pads a resource counter. Padding that would overflow the
// 32-bit XDR field is clamped to math.MaxUint32, which is still >= raw.
func RoundUint32(raw uint32) uint32 {
	v := RoundValue(float64(raw))
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

// ResourceFee returns the padded resource fee for a raw simulated minimum,
// never below MinResourceFee.
func ResourceFee(raw float64) int64 {
	padded := RoundValue(raw)
	if padded >= math.MaxInt64 {
		return math.MaxInt64
	}
	fee := int64(padded)
	if fee < MinResourceFee {
		return MinResourceFee
	}
	return fee
}
