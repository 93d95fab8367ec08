// Package units implements the scaled-unit and dust arithmetic (spec §4.1)
// that reconciles a market's external base-token vault with the engine's
// internal integer accounting units.
package units

import "math/big"

// MaxUnitScale is the largest allowed unit_scale; 0 disables scaling.
const MaxUnitScale = 1_000_000_000

// BaseToUnits converts a base-token amount into (units, dust) given the
// market's unit_scale. scale=0 disables scaling: every base token is one
// unit and dust is always zero.
func BaseToUnits(amountBase *big.Int, scale uint32) (units, dust *big.Int) {
	if scale == 0 {
		return new(big.Int).Set(amountBase), big.NewInt(0)
	}
	s := big.NewInt(int64(scale))
	u := new(big.Int)
	r := new(big.Int)
	u.QuoRem(amountBase, s, r)
	return u, r
}

// UnitsToBase converts internal units back into a base-token amount.
func UnitsToBase(amountUnits *big.Int, scale uint32) *big.Int {
	if scale == 0 {
		return new(big.Int).Set(amountUnits)
	}
	return new(big.Int).Mul(amountUnits, big.NewInt(int64(scale)))
}

// IsAlignedWithdraw reports whether a base-token withdrawal amount is a
// whole multiple of scale, the precondition withdraw() must enforce so no
// fractional unit is ever lost on the way out (spec §4.1).
func IsAlignedWithdraw(amountBase *big.Int, scale uint32) bool {
	if scale == 0 {
		return true
	}
	r := new(big.Int).Mod(amountBase, big.NewInt(int64(scale)))
	return r.Sign() == 0
}

// SweepDust computes how much of dustBase can move to the insurance fund
// (dustBase/scale, as whole units) and the remainder retained in dust_base.
// scale=0 never accumulates dust, so the sweep is always a no-op.
func SweepDust(dustBase uint64, scale uint32) (sweptUnits *big.Int, remainder uint64) {
	if scale == 0 || dustBase == 0 {
		return big.NewInt(0), dustBase
	}
	s := uint64(scale)
	return new(big.Int).SetUint64(dustBase / s), dustBase % s
}

// InvertPrice flips a price_e6 quote for markets configured with
// MarketConfig.Invert (e.g. a market quoted as base-per-quote rather than
// quote-per-base). Returns 0 if price is 0 to avoid a division by zero;
// callers treat a zero oracle price as already-invalid upstream.
func InvertPrice(priceE6 uint64) uint64 {
	if priceE6 == 0 {
		return 0
	}
	const e12 = uint64(1_000_000) * uint64(1_000_000)
	return e12 / priceE6
}

// AdjustPrice applies the market's invert flag, if any, to a raw oracle
// price before it reaches margin, funding, or trade-settlement math.
func AdjustPrice(priceE6 uint64, invert bool) uint64 {
	if !invert {
		return priceE6
	}
	return InvertPrice(priceE6)
}
