package engine

import (
	"math/big"

	"github.com/purpletrade/percolator-prog-sub000/pkg/types"
)

// liquidationTargetRatio returns the maintenance margin on notional scaled
// up by (1 + liquidation_buffer_bps/10_000): the equity level a
// liquidation must restore to, per spec §4.5.
func (e *RiskEngine) liquidationTargetRatio(notional *big.Int) *big.Int {
	base := bpsOf(notional, e.Params.MaintenanceMarginBps)
	buffer := bpsOf(base, e.Params.LiquidationBufferBps)
	return new(big.Int).Add(base, buffer)
}

// isUnderwater reports whether the account's equity has fallen below its
// maintenance-margin requirement at the given price.
func (e *RiskEngine) isUnderwater(a *types.Account, priceE6 uint64) bool {
	if a.PositionSize.Sign() == 0 {
		return false
	}
	required := bpsOf(notionalUnits(a.PositionSize, priceE6), e.Params.MaintenanceMarginBps)
	return e.equity(a).Cmp(required) < 0
}

// liquidateAccount implements spec §4.5: finds the counterparty LP
// holding the largest absolute position (the same role a trade's
// explicit lp_idx plays in execute_trade) and applies the minimal
// position reduction that restores the account's maintenance-margin
// ratio plus buffer, charging a capped liquidation fee and applying the
// dust kill-switch when the residual would fall below the configured
// floor.
func (e *RiskEngine) liquidateAccount(idx uint16, priceE6 uint64) {
	a := &e.Accounts[idx]
	if a.Kind != types.KindUser || a.PositionSize.Sign() == 0 {
		return
	}
	if !e.isUnderwater(a, priceE6) {
		return
	}

	counterpartyIdx, ok := e.maxAbsLPAccount()
	if !ok {
		return
	}
	lp := &e.Accounts[counterpartyIdx]

	deltaSize := e.minimalLiquidationDelta(a, priceE6)
	if deltaSize.Sign() == 0 {
		return
	}

	// Dust kill-switch: if the post-liquidation |position| would fall
	// below min_liquidation_abs, close the entire position instead.
	postAbs := new(big.Int).Sub(new(big.Int).Abs(a.PositionSize), new(big.Int).Abs(deltaSize))
	if postAbs.Sign() < 0 {
		postAbs.SetInt64(0)
	}
	if postAbs.Cmp(e.Params.MinLiquidationAbs) < 0 {
		deltaSize = new(big.Int).Abs(a.PositionSize)
	}

	fee := bpsOf(notionalUnits(deltaSize, priceE6), e.Params.LiquidationFeeBps)
	if fee.Cmp(e.Params.LiquidationFeeCap) > 0 {
		fee.Set(e.Params.LiquidationFeeCap)
	}

	oldUserPos := new(big.Int).Set(a.PositionSize)
	oldLPPos := new(big.Int).Set(lp.PositionSize)

	// Reduce the user's position toward zero by deltaSize; the LP, as
	// counterparty, absorbs the opposite delta.
	reduceBy := new(big.Int).Set(deltaSize)
	if a.PositionSize.Sign() < 0 {
		reduceBy.Neg(reduceBy)
	}
	applyFill(a, new(big.Int).Neg(reduceBy), priceE6)
	applyFill(lp, reduceBy, priceE6)

	e.deductFeeAccount(a, fee)
	e.InsuranceFund.Add(e.InsuranceFund, fee)

	e.applyPositionDelta(types.KindUser, oldUserPos, a.PositionSize)
	e.applyPositionDelta(types.KindLP, oldLPPos, lp.PositionSize)

	e.realizeNegativePnL(idx)
}

// minimalLiquidationDelta computes the smallest |Δsize| that restores
// equity to the maintenance-margin-plus-buffer target. The target scales
// linearly with |position|, so Δsize is the shortfall divided by the
// target margin of one contract, rounded up; a per-contract margin that
// truncates to zero closes the whole position.
func (e *RiskEngine) minimalLiquidationDelta(a *types.Account, priceE6 uint64) *big.Int {
	absPos := new(big.Int).Abs(a.PositionSize)
	if absPos.Sign() == 0 {
		return big.NewInt(0)
	}
	notional := notionalUnits(a.PositionSize, priceE6)
	target := e.liquidationTargetRatio(notional)
	equity := e.equity(a)

	if equity.Cmp(target) >= 0 {
		return big.NewInt(0)
	}
	shortfall := new(big.Int).Sub(target, equity)
	// Reducing the position by Δ lowers the margin requirement by
	// Δ * price/1e6 * (mmr_bps*(1+buffer)/1e4); solve for the Δ that
	// eliminates the shortfall.
	perUnitMargin := new(big.Int).Mul(big.NewInt(int64(priceE6)), big.NewInt(int64(e.Params.MaintenanceMarginBps)))
	perUnitMargin.Mul(perUnitMargin, new(big.Int).Add(big.NewInt(10_000), big.NewInt(int64(e.Params.LiquidationBufferBps))))
	perUnitMargin.Quo(perUnitMargin, big.NewInt(1_000_000))
	perUnitMargin.Quo(perUnitMargin, big.NewInt(10_000))
	perUnitMargin.Quo(perUnitMargin, big.NewInt(10_000))
	if perUnitMargin.Sign() == 0 {
		return absPos
	}

	delta := new(big.Int).Quo(shortfall, perUnitMargin)
	delta.Add(delta, big.NewInt(1)) // round up: never undershoot the target
	if delta.Cmp(absPos) > 0 {
		delta.Set(absPos)
	}
	return delta
}

// maxAbsLPAccount returns the index of the LP with the largest absolute
// position, the account chosen to absorb a liquidated user's inverse
// delta (there being no explicit lp_idx parameter for liquidation, unlike
// execute_trade, this mirrors a trade always having exactly one LP
// counterparty by picking the LP best positioned to net against the
// closed exposure).
func (e *RiskEngine) maxAbsLPAccount() (uint16, bool) {
	best := int16(-1)
	bestAbs := big.NewInt(-1)
	for i := 0; i < types.MaxAccounts; i++ {
		if !e.Used[i] || e.Accounts[i].Kind != types.KindLP {
			continue
		}
		abs := new(big.Int).Abs(e.Accounts[i].PositionSize)
		if abs.Cmp(bestAbs) > 0 {
			bestAbs.Set(abs)
			best = int16(i)
		}
	}
	if best < 0 {
		return 0, false
	}
	return uint16(best), true
}

// sweepLiquidations scans every used account and liquidates any that are
// underwater (spec §4.7 step 3).
func (e *RiskEngine) sweepLiquidations(priceE6 uint64) {
	for i := 0; i < types.MaxAccounts; i++ {
		if !e.Used[i] || e.Accounts[i].Kind != types.KindUser {
			continue
		}
		e.liquidateAccount(uint16(i), priceE6)
	}
}
