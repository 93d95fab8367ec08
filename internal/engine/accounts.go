package engine

import (
	"math/big"

	"github.com/purpletrade/percolator-prog-sub000/internal/funding"
	"github.com/purpletrade/percolator-prog-sub000/pkg/types"
)

// AddUser allocates a new User account in the first free slot. It takes
// no fee argument and does not check or charge Params.NewAccountFee; its
// only failure is ErrSlabFull.
func (e *RiskEngine) AddUser() (uint16, error) {
	idx, err := e.findFreeSlot()
	if err != nil {
		return 0, err
	}
	e.Accounts[idx] = types.NewEmptyAccount()
	e.Accounts[idx].Kind = types.KindUser
	e.Accounts[idx].FundingIndex.Set(e.Funding.IndexQPBE6)
	e.Accounts[idx].LastFeeSlot = e.CurrentSlot
	e.Accounts[idx].LastDepositSlot = e.CurrentSlot
	e.Used[idx] = true
	e.NumUsedAccounts++
	return idx, nil
}

// AddLP allocates a new LP account bound to a (matcher_program,
// matcher_context) pair and a maker fee, in the first free slot.
func (e *RiskEngine) AddLP(matcherProgram, matcherContext [32]byte, makerFeeBps uint64) (uint16, error) {
	idx, err := e.findFreeSlot()
	if err != nil {
		return 0, err
	}
	e.Accounts[idx] = types.NewEmptyAccount()
	e.Accounts[idx].Kind = types.KindLP
	e.Accounts[idx].MatcherProgram = matcherProgram
	e.Accounts[idx].MatcherContext = matcherContext
	e.Accounts[idx].MakerFeeBps = makerFeeBps
	e.Accounts[idx].FundingIndex.Set(e.Funding.IndexQPBE6)
	e.Accounts[idx].LastFeeSlot = e.CurrentSlot
	e.Accounts[idx].LastDepositSlot = e.CurrentSlot
	e.Used[idx] = true
	e.NumUsedAccounts++
	return idx, nil
}

// advanceFunding advances the global funding index to slot if slot is
// ahead of the last-seen slot, using the current net LP inventory and
// price. A same-slot call is a pure no-op (spec P6).
func (e *RiskEngine) advanceFunding(slot uint64, priceE6 uint64) {
	if slot > e.CurrentSlot {
		e.CurrentSlot = slot
	}
	e.Funding.Advance(slot, e.NetLPPos, priceE6)
}

// touch performs the lazy per-account funding settlement (spec §4.2):
// realize owed = (global - local) * position / 1e6 into pnl, then record
// local = global. Idempotent within the same funding index.
func (e *RiskEngine) touch(idx uint16) {
	a := &e.Accounts[idx]
	if a.FundingIndex.Cmp(e.Funding.IndexQPBE6) == 0 {
		return
	}
	owed := funding.Owed(e.Funding.IndexQPBE6, a.FundingIndex, a.PositionSize)
	a.PnL.Add(a.PnL, owed)
	a.FundingIndex.Set(e.Funding.IndexQPBE6)
}

// realizeNegativePnL implements "negatives are realized into capital
// before any non-trade op" (spec §3): a negative pnl first drains
// capital; any amount capital cannot cover remains as a (still negative)
// residual in pnl, to be picked up by forced-loss-realization during the
// next crank that needs it.
func (e *RiskEngine) realizeNegativePnL(idx uint16) {
	a := &e.Accounts[idx]
	if a.PnL.Sign() >= 0 {
		return
	}
	loss := new(big.Int).Neg(a.PnL)
	if a.Capital.Cmp(loss) >= 0 {
		e.adjustCapital(a, new(big.Int).Neg(loss))
		a.PnL.SetInt64(0)
		return
	}
	remaining := new(big.Int).Sub(loss, a.Capital)
	e.adjustCapital(a, new(big.Int).Neg(a.Capital))
	a.PnL.Neg(remaining)
}

// deductFee removes fee from capital, spilling into pnl (and therefore
// potentially into the forced-loss-realization path) if capital alone
// cannot cover it, per spec §4.4 step 6 / §4.5 / §4.7 step 2's identical
// "deducted from capital then pnl" phrasing.
func (e *RiskEngine) deductFee(idx uint16, fee *big.Int) {
	if fee.Sign() <= 0 {
		return
	}
	a := &e.Accounts[idx]
	if a.Capital.Cmp(fee) >= 0 {
		e.adjustCapital(a, new(big.Int).Neg(fee))
		return
	}
	remaining := new(big.Int).Sub(fee, a.Capital)
	e.adjustCapital(a, new(big.Int).Neg(a.Capital))
	a.PnL.Sub(a.PnL, remaining)
	e.realizeNegativePnL(idx)
}

// releaseWarmup realizes eligible positive PnL into capital once the
// warmup period has elapsed, scaling by the current haircut ratio (spec
// I5, GLOSSARY "Equity"). The difference between the unscaled and
// haircut-scaled amount is not separately re-booked as a new loss: it is
// the cost of an ADL event that already happened elsewhere.
func (e *RiskEngine) releaseWarmup(idx uint16, slot uint64) {
	a := &e.Accounts[idx]
	if slot < a.LastDepositSlot+e.Params.WarmupPeriodSlots {
		return
	}
	avail := new(big.Int).Sub(a.PnL, a.ReservedPnL)
	if avail.Sign() <= 0 {
		return
	}
	scaled := new(big.Int).Mul(avail, e.HaircutRatioNum)
	scaled.Quo(scaled, e.HaircutRatioDen)
	e.adjustCapital(a, scaled)
	a.PnL.Sub(a.PnL, avail)
}

// applyPositionDelta updates the incrementally maintained aggregates
// (net_lp_pos, sum_abs_lp, max_abs_lp, total_open_interest) after an
// account's position moves from oldPos to newPos. max_abs_lp is updated
// conservatively per spec §4.4 step 7 and §9: it never decreases here,
// only the crank's O(N) reconciliation can shrink it.
func (e *RiskEngine) applyPositionDelta(kind types.Kind, oldPos, newPos *big.Int) {
	oldLong := big.NewInt(0)
	if oldPos.Sign() > 0 {
		oldLong.Set(oldPos)
	}
	newLong := big.NewInt(0)
	if newPos.Sign() > 0 {
		newLong.Set(newPos)
	}
	e.TotalOpenInterest.Add(e.TotalOpenInterest, new(big.Int).Sub(newLong, oldLong))

	if kind != types.KindLP {
		return
	}
	e.NetLPPos.Add(e.NetLPPos, new(big.Int).Sub(newPos, oldPos))

	oldAbs := new(big.Int).Abs(oldPos)
	newAbs := new(big.Int).Abs(newPos)
	e.SumAbsLP.Add(e.SumAbsLP, new(big.Int).Sub(newAbs, oldAbs))
	if newAbs.Cmp(e.MaxAbsLP) > 0 {
		e.MaxAbsLP.Set(newAbs)
	}
}

// gcEligible reports whether the account at idx satisfies every zero
// predicate spec §4.7 step 6 / P10 requires for garbage collection.
func (e *RiskEngine) gcEligible(idx uint16) bool {
	a := &e.Accounts[idx]
	return a.IsEmptyAccount(e.Funding.IndexQPBE6)
}

// gcAccount frees the slot at idx: clears the used bit and zeroes the
// record. Callers must have already verified gcEligible.
func (e *RiskEngine) gcAccount(idx uint16) {
	e.Used[idx] = false
	e.Accounts[idx] = types.NewEmptyAccount()
	e.NumUsedAccounts--
}
