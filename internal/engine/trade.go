package engine

import (
	"math/big"

	"github.com/purpletrade/percolator-prog-sub000/internal/auth"
	"github.com/purpletrade/percolator-prog-sub000/internal/matcher"
	"github.com/purpletrade/percolator-prog-sub000/pkg/types"
)

// TradeResult is what execute_trade returns on success: the matched price
// and size the matcher actually filled.
type TradeResult struct {
	ExecPriceE6 uint64
	ExecSize    *big.Int
}

// ExecuteTrade implements spec §4.4: advance funding, lazy-settle both
// legs, check margin, gate on aggregate LP risk, call the matcher,
// validate its return, and settle fees/positions/PnL. Any failure before
// the matcher call returns early with both accounts' fields unchanged,
// and the LP's nonce un-incremented (I6); the host is relied on to roll
// back partial state on any returned error (spec §5).
func (e *RiskEngine) ExecuteTrade(match matcher.MatchFunc, lpIdx, userIdx uint16, slot uint64, priceE6 uint64, size *big.Int) (TradeResult, error) {
	if size.Sign() == 0 {
		return TradeResult{}, types.ErrZeroTradeSize
	}
	if lpIdx == userIdx {
		return TradeResult{}, types.ErrWrongKind
	}

	e.advanceFunding(slot, priceE6)

	user, err := e.account(userIdx, types.KindUser)
	if err != nil {
		return TradeResult{}, err
	}
	lp, err := e.account(lpIdx, types.KindLP)
	if err != nil {
		return TradeResult{}, err
	}

	e.touch(userIdx)
	e.touch(lpIdx)

	// Step 3: pre-trade margin check on the user's equity against the
	// notional this trade would add.
	notional := notionalUnits(size, priceE6)
	required := bpsOf(notional, e.Params.InitialMarginBps)
	if e.equity(user).Cmp(required) < 0 {
		return TradeResult{}, types.ErrInsufficientMargin
	}

	// Step 4: O(1) conservative risk-increase gate.
	if e.wouldIncreaseRiskAndGated(lp, size) {
		return TradeResult{}, types.ErrGateActive
	}

	// Step 5/6: call the matcher and validate its return.
	reqID := lp.AccountNonce
	call := matcher.CallFrame{
		Tag:           0,
		ReqID:         reqID,
		LPIdx:         lpIdx,
		LPAccountID:   lp.AccountNonce,
		OraclePriceE6: priceE6,
		ReqSize:       size,
	}
	callBuf, ok := matcher.EncodeCall(call)
	if !ok {
		return TradeResult{}, types.ErrOverflow
	}
	returnBuf := match(callBuf)
	ret := matcher.DecodeReturn(returnBuf)
	if code := matcher.Validate(ret, reqID, lp.AccountNonce, priceE6, size); code != types.ErrNone {
		lp.AccountNonce = auth.NonceOnFailure(lp.AccountNonce)
		return TradeResult{}, code
	}

	e.settleTrade(user, lp, ret.ExecSize, ret.ExecPriceE6)
	lp.AccountNonce = auth.NonceOnSuccess(lp.AccountNonce)

	return TradeResult{ExecPriceE6: ret.ExecPriceE6, ExecSize: new(big.Int).Set(ret.ExecSize)}, nil
}

// wouldIncreaseRiskAndGated implements spec §4.4 step 4 / P8: computes
// the aggregate risk metric before and after hypothetically applying
// -size to the LP; rejects only if the metric would strictly rise and
// insurance is at or below the risk-reduction threshold.
func (e *RiskEngine) wouldIncreaseRiskAndGated(lp *types.Account, size *big.Int) bool {
	if e.InsuranceFund.Cmp(e.RiskReductionThreshold) > 0 {
		return false
	}
	oldRisk := new(big.Int).Add(e.MaxAbsLP, new(big.Int).Quo(e.SumAbsLP, big.NewInt(8)))

	oldAbs := new(big.Int).Abs(lp.PositionSize)
	newPos := new(big.Int).Sub(lp.PositionSize, size)
	newAbs := new(big.Int).Abs(newPos)

	hypoSumAbs := new(big.Int).Add(e.SumAbsLP, new(big.Int).Sub(newAbs, oldAbs))
	hypoMaxAbs := new(big.Int).Set(e.MaxAbsLP)
	if newAbs.Cmp(hypoMaxAbs) > 0 {
		hypoMaxAbs.Set(newAbs)
	}
	newRisk := new(big.Int).Add(hypoMaxAbs, new(big.Int).Quo(hypoSumAbs, big.NewInt(8)))

	return newRisk.Cmp(oldRisk) > 0
}

// settleTrade applies the matcher's executed fill: trading fee, VWAP
// entry-price update or realized-PnL on reduction, and the position
// deltas (spec §4.4 step 6).
func (e *RiskEngine) settleTrade(user, lp *types.Account, execSize *big.Int, execPriceE6 uint64) {
	fee := bpsOf(notionalUnits(execSize, execPriceE6), e.Params.TradingFeeBps)
	e.deductFeeAccount(user, fee)
	e.InsuranceFund.Add(e.InsuranceFund, fee)

	userOldPos := new(big.Int).Set(user.PositionSize)
	lpOldPos := new(big.Int).Set(lp.PositionSize)

	applyFill(user, execSize, execPriceE6)
	applyFill(lp, new(big.Int).Neg(execSize), execPriceE6)

	e.applyPositionDelta(types.KindUser, userOldPos, user.PositionSize)
	e.applyPositionDelta(types.KindLP, lpOldPos, lp.PositionSize)
}

// deductFeeAccount is RiskEngine.deductFee on an already-resolved
// *types.Account pointer (used by settleTrade, liquidateAccount and
// accrueMaintenanceFees). Unlike deductFee it does not call
// realizeNegativePnL on the pnl it leaves behind.
func (e *RiskEngine) deductFeeAccount(a *types.Account, fee *big.Int) {
	if fee.Sign() <= 0 {
		return
	}
	if a.Capital.Cmp(fee) >= 0 {
		e.adjustCapital(a, new(big.Int).Neg(fee))
		return
	}
	remaining := new(big.Int).Sub(fee, a.Capital)
	e.adjustCapital(a, new(big.Int).Neg(a.Capital))
	// Capital is now zero; any amount the fee still owes spills into pnl,
	// mirroring realizeNegativePnL's behavior when capital can't cover a loss.
	a.PnL.Sub(a.PnL, remaining)
}

// applyFill updates position_size, entry_price_e6, and pnl for one side
// of a trade: same-direction fills extend the VWAP entry price; opposite-
// direction fills realize (exec_price - entry_price) * reduced_size into
// pnl before reducing the position, grounded on the teacher's
// applyYesFill/applyNoFill VWAP maintenance.
func applyFill(a *types.Account, delta *big.Int, execPriceE6 uint64) {
	if delta.Sign() == 0 {
		return
	}
	oldPos := a.PositionSize
	sameDirection := oldPos.Sign() == 0 || (oldPos.Sign() > 0) == (delta.Sign() > 0)

	if sameDirection {
		// Extend VWAP: new_entry = (|old|*entry + |delta|*exec) / (|old|+|delta|).
		oldAbs := new(big.Int).Abs(oldPos)
		deltaAbs := new(big.Int).Abs(delta)
		totalAbs := new(big.Int).Add(oldAbs, deltaAbs)
		if totalAbs.Sign() > 0 {
			weighted := new(big.Int).Mul(oldAbs, big.NewInt(int64(a.EntryPriceE6)))
			weighted.Add(weighted, new(big.Int).Mul(deltaAbs, big.NewInt(int64(execPriceE6))))
			weighted.Quo(weighted, totalAbs)
			a.EntryPriceE6 = weighted.Uint64()
		}
		a.PositionSize.Add(a.PositionSize, delta)
		return
	}

	// Opposite direction: reduces (and may flip) the position. The
	// reduced quantity is min(|old|, |delta|).
	oldAbs := new(big.Int).Abs(oldPos)
	deltaAbs := new(big.Int).Abs(delta)
	reduced := new(big.Int).Set(oldAbs)
	if deltaAbs.Cmp(reduced) < 0 {
		reduced.Set(deltaAbs)
	}

	priceDiff := int64(execPriceE6) - int64(a.EntryPriceE6)
	if oldPos.Sign() < 0 {
		priceDiff = -priceDiff
	}
	realized := new(big.Int).Mul(reduced, big.NewInt(priceDiff))
	realized.Quo(realized, big.NewInt(1_000_000))
	a.PnL.Add(a.PnL, realized)

	a.PositionSize.Add(a.PositionSize, delta)
	if a.PositionSize.Sign() == 0 {
		a.EntryPriceE6 = 0
	} else if (a.PositionSize.Sign() > 0) != (oldPos.Sign() > 0) {
		// Position flipped sign: the remainder opens a fresh position at
		// the execution price.
		a.EntryPriceE6 = execPriceE6
	}
}
