// Package funding implements the global funding index advance and the
// inventory-mark funding rate model (spec §4.2), grounded on the exact
// constants in the reference engine's inventory-funding formula: a 500
// slot horizon, a 100 bps inventory coefficient, a 1e12 notional scale,
// and ±500bps/±5bps-per-slot caps.
package funding

import "math/big"

const (
	fundingHorizonSlots      = 500
	fundingKBps              = 100
	fundingInvScaleNotionalE6 = 1_000_000_000_000
	fundingMaxPremiumBps     = 500
	fundingMaxBpsPerSlot     = 5
	fundingSanityClampBps    = 10_000
)

// State holds the mutable funding fields the engine carries: the
// cumulative quote-per-base index (e6 fixed point) and the slot it was
// last advanced at.
type State struct {
	IndexQPBE6    *big.Int
	LastSlot      uint64
	RateBpsPerSlot int64
}

// NewState returns a funding index starting at zero, anchored at the
// genesis slot.
func NewState(genesisSlot uint64) State {
	return State{IndexQPBE6: big.NewInt(0), LastSlot: genesisSlot}
}

// InventoryFundingBpsPerSlot implements spec §4.2's inventory_funding(net,
// price): positive rate means longs pay shorts, pushing net LP inventory
// toward zero.
func InventoryFundingBpsPerSlot(netLPPos *big.Int, priceE6 uint64) int64 {
	if netLPPos.Sign() == 0 || priceE6 == 0 {
		return 0
	}

	absNet := new(big.Int).Abs(netLPPos)
	// notional_e6 = |net| * price / 10^6
	notional := new(big.Int).Mul(absNet, big.NewInt(int64(priceE6)))
	notional.Quo(notional, big.NewInt(1_000_000))

	// premium_bps = min(notional_e6 * 100 / 10^12, 500)
	premium := new(big.Int).Mul(notional, big.NewInt(fundingKBps))
	premium.Quo(premium, big.NewInt(fundingInvScaleNotionalE6))
	if premium.Cmp(big.NewInt(fundingMaxPremiumBps)) > 0 {
		premium.SetInt64(fundingMaxPremiumBps)
	}

	signedPremium := premium.Int64()
	if netLPPos.Sign() < 0 {
		signedPremium = -signedPremium
	}

	perSlot := signedPremium / fundingHorizonSlots
	if perSlot > fundingMaxBpsPerSlot {
		perSlot = fundingMaxBpsPerSlot
	} else if perSlot < -fundingMaxBpsPerSlot {
		perSlot = -fundingMaxBpsPerSlot
	}
	if perSlot > fundingSanityClampBps {
		perSlot = fundingSanityClampBps
	} else if perSlot < -fundingSanityClampBps {
		perSlot = -fundingSanityClampBps
	}
	return perSlot
}

// Advance moves the funding index forward to slot, given the current net
// LP position and oracle price. It is a no-op (returns false, no state
// change) when slot <= s.LastSlot, which makes repeated same-slot cranks
// idempotent (spec P6).
func (s *State) Advance(slot uint64, netLPPos *big.Int, priceE6 uint64) (advanced bool) {
	if slot <= s.LastSlot {
		return false
	}
	deltaSlots := slot - s.LastSlot
	s.RateBpsPerSlot = InventoryFundingBpsPerSlot(netLPPos, priceE6)

	// delta_index = rate_bps_per_slot * delta_slots * price_e6 / 10_000
	delta := big.NewInt(s.RateBpsPerSlot)
	delta.Mul(delta, big.NewInt(int64(deltaSlots)))
	delta.Mul(delta, big.NewInt(int64(priceE6)))
	delta.Quo(delta, big.NewInt(10_000))

	s.IndexQPBE6.Add(s.IndexQPBE6, delta)
	s.LastSlot = slot
	return true
}

// Owed computes the funding settlement owed to an account given its
// position and the local funding index last recorded on it: (global -
// local) * position / 1e6, per spec §3 and §4.2's lazy-settlement rule.
func Owed(globalIndex, localIndex, positionSize *big.Int) *big.Int {
	delta := new(big.Int).Sub(globalIndex, localIndex)
	owed := new(big.Int).Mul(delta, positionSize)
	owed.Quo(owed, big.NewInt(1_000_000))
	return owed
}
