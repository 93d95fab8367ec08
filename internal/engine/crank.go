package engine

import (
	"math/big"

	"github.com/purpletrade/percolator-prog-sub000/internal/units"
	"github.com/purpletrade/percolator-prog-sub000/pkg/types"
)

// Auto-threshold policy constants (spec §4.7 step 7): a zero floor (a
// market can run with no baseline insurance requirement), 50bps of
// observed risk as the raw target, a 10-slot rate limit between updates,
// a 1000bps EWMA smoothing factor, a 500bps-of-old-value step clamp
// (minimum step 1 so tiny deltas still make progress), and a cap far
// above any plausible insurance fund to guard against overflow.
const autoThresholdMinIntervalSlots = 10
const thresholdRiskBps = 50
const thresholdAlphaBps = 1_000
const thresholdStepBps = 500

var thresholdFloor = big.NewInt(0)
var thresholdMin = big.NewInt(0)
var thresholdMax, _ = new(big.Int).SetString("10000000000000000000", 10)
var thresholdMinStep = big.NewInt(1)

// KeeperCrank implements spec §4.7: the seven-step maintenance pass that
// advances time-dependent state. callerIdx is types.PermissionlessCallerIdx
// for a permissionless invocation, which forbids panics on recoverable
// errors and skips caller-specific processing.
func (e *RiskEngine) KeeperCrank(callerIdx uint16, slot uint64, priceE6 uint64, allowPanic bool) error {
	permissionless := callerIdx == types.PermissionlessCallerIdx
	if !permissionless {
		if int(callerIdx) >= types.MaxAccounts || !e.Used[callerIdx] {
			if allowPanic {
				panic(types.ErrAccountNotFound)
			}
			return types.ErrAccountNotFound
		}
	}

	// Step 1: advance funding (no-op if slot == last_funding_slot, P6).
	e.advanceFunding(slot, priceE6)

	// Step 2: accrue maintenance fees for every used account.
	e.accrueMaintenanceFees(slot, priceE6)

	// Step 3: sweep liquidations.
	e.sweepLiquidations(priceE6)

	// Step 4: forced-loss realization if insurance has fallen to or below
	// the risk-reduction threshold.
	if e.InsuranceFund.Cmp(e.RiskReductionThreshold) <= 0 {
		e.forceLossRealization()
	}

	// Step 5: dust sweep.
	e.sweepDust()

	// Step 6: garbage collect any fully-zeroed account.
	e.runGC()

	// Step 7: rate-limited auto-threshold update.
	e.updateAutoThreshold(slot)

	// Periodic O(N) reconciliation absorbs any conservative overestimation
	// from the incremental aggregate updates (spec §5, §9).
	e.reconcileAggregates()

	return nil
}

// accrueMaintenanceFees implements spec §4.7 step 2: for each used
// account, fee_credits += notional(position,price) * maintenance_fee_per_slot_bps
// * Δslots / 1e4 (the maintenance-fee denominator decision recorded in
// DESIGN.md), deducted from capital then pnl, credited to insurance.
func (e *RiskEngine) accrueMaintenanceFees(slot uint64, priceE6 uint64) {
	for i := 0; i < types.MaxAccounts; i++ {
		if !e.Used[i] {
			continue
		}
		a := &e.Accounts[i]
		if slot <= a.LastFeeSlot || a.PositionSize.Sign() == 0 {
			a.LastFeeSlot = slot
			continue
		}
		deltaSlots := slot - a.LastFeeSlot
		fee := bpsOf(notionalUnits(a.PositionSize, priceE6), e.Params.MaintenanceFeePerSlotBps)
		fee.Mul(fee, big.NewInt(int64(deltaSlots)))
		a.FeeCredits.Add(a.FeeCredits, fee)
		a.LastFeeSlot = slot

		e.deductFeeAccount(a, fee)
		e.InsuranceFund.Add(e.InsuranceFund, fee)
		e.realizeNegativePnL(uint16(i))
	}
}

// sweepDust implements spec §4.7 step 5 / P9: moves dust_base/unit_scale
// whole units into insurance, retaining the remainder.
func (e *RiskEngine) sweepDust() {
	swept, remainder := units.SweepDust(e.DustBase, e.Market.UnitScale)
	if swept.Sign() > 0 {
		// vault_base = vault*scale + dust_base (spec §4.1) must stay
		// invariant: converting dust into whole units moves the same
		// physical tokens from the dust_base side of that identity to
		// the vault side, so vault grows by exactly what dust_base lost.
		e.InsuranceFund.Add(e.InsuranceFund, swept)
		e.Vault.Add(e.Vault, swept)
	}
	e.DustBase = remainder
}

// runGC implements spec §4.7 step 6 / P10.
func (e *RiskEngine) runGC() {
	for i := 0; i < types.MaxAccounts; i++ {
		if e.Used[i] && e.gcEligible(uint16(i)) {
			e.gcAccount(uint16(i))
		}
	}
}

// updateAutoThreshold implements spec §4.7 step 7: an EWMA-smoothed,
// rate-limited update to risk_reduction_threshold.
func (e *RiskEngine) updateAutoThreshold(slot uint64) {
	if slot < e.LastThrUpdateSlot || slot-e.LastThrUpdateSlot < autoThresholdMinIntervalSlots {
		return
	}

	riskUnits := new(big.Int).Add(e.MaxAbsLP, new(big.Int).Quo(e.SumAbsLP, big.NewInt(8)))
	raw := new(big.Int).Mul(riskUnits, big.NewInt(thresholdRiskBps))
	raw.Quo(raw, big.NewInt(10_000))
	raw.Add(raw, thresholdFloor)

	old := e.RiskReductionThreshold
	// EWMA: new = old + (raw - old) * alpha / 10_000.
	diff := new(big.Int).Sub(raw, old)
	smoothed := new(big.Int).Mul(diff, big.NewInt(thresholdAlphaBps))
	smoothed.Quo(smoothed, big.NewInt(10_000))
	target := new(big.Int).Add(old, smoothed)

	// Clamp the step to max(old * step_bps/10_000, min_step).
	maxStep := new(big.Int).Mul(old, big.NewInt(thresholdStepBps))
	maxStep.Quo(maxStep, big.NewInt(10_000))
	if maxStep.Cmp(thresholdMinStep) < 0 {
		maxStep.Set(thresholdMinStep)
	}

	step := new(big.Int).Sub(target, old)
	if step.Sign() > 0 && step.Cmp(maxStep) > 0 {
		step.Set(maxStep)
	} else if step.Sign() < 0 {
		negMaxStep := new(big.Int).Neg(maxStep)
		if step.Cmp(negMaxStep) < 0 {
			step.Set(negMaxStep)
		}
	}

	next := new(big.Int).Add(old, step)
	if next.Cmp(thresholdMin) < 0 {
		next.Set(thresholdMin)
	} else if next.Cmp(thresholdMax) > 0 {
		next.Set(thresholdMax)
	}
	e.RiskReductionThreshold = next
	e.LastThrUpdateSlot = slot
}

// reconcileAggregates recomputes every incrementally maintained aggregate
// from the authoritative per-account fields, an O(MAX_ACCOUNTS) pass that
// absorbs the conservative overestimation the incremental path allows
// (spec §5, §9).
func (e *RiskEngine) reconcileAggregates() {
	netLP := big.NewInt(0)
	sumAbsLP := big.NewInt(0)
	maxAbsLP := big.NewInt(0)
	totalOI := big.NewInt(0)
	cTot := big.NewInt(0)
	pnlPosTot := big.NewInt(0)
	used := 0

	for i := 0; i < types.MaxAccounts; i++ {
		if !e.Used[i] {
			continue
		}
		used++
		a := &e.Accounts[i]
		cTot.Add(cTot, a.Capital)

		posPnl := new(big.Int).Sub(a.PnL, a.ReservedPnL)
		if posPnl.Sign() > 0 {
			pnlPosTot.Add(pnlPosTot, posPnl)
		}

		if a.PositionSize.Sign() > 0 {
			totalOI.Add(totalOI, a.PositionSize)
		}

		if a.Kind == types.KindLP {
			netLP.Add(netLP, a.PositionSize)
			abs := new(big.Int).Abs(a.PositionSize)
			sumAbsLP.Add(sumAbsLP, abs)
			if abs.Cmp(maxAbsLP) > 0 {
				maxAbsLP.Set(abs)
			}
		}
	}

	e.NetLPPos = netLP
	e.SumAbsLP = sumAbsLP
	e.MaxAbsLP = maxAbsLP
	e.TotalOpenInterest = totalOI
	e.CTot = cTot
	e.PnlPosTot = pnlPosTot
	e.NumUsedAccounts = used
}
