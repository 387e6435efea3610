package policygate

import "math/big"

// decimalCompare compares two decimal strings exactly (spec §4.H's
// "max_spend_amount (decimal compare)"). No third-party decimal library
// appears anywhere in the example corpus, so this falls back to
// math/big.Rat, which parses decimal strings exactly (no float rounding)
// and compares without precision loss; see DESIGN.md.
func decimalCompare(a, b string) (cmp int, ok bool) {
	ra, aok := new(big.Rat).SetString(a)
	rb, bok := new(big.Rat).SetString(b)
	if !aok || !bok {
		return 0, false
	}
	return ra.Cmp(rb), true
}
