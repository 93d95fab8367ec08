package engine

import (
	"math/big"

	"github.com/purpletrade/percolator-prog-sub000/pkg/types"
)

// absorbLoss implements spec §4.6's two-stage loss absorption: a realized
// loss first draws down the insurance fund; anything beyond that widens
// the haircut ratio so aggregate positive-PnL payouts scale down
// uniformly. loss_accum accumulates the portion insurance did not cover.
func (e *RiskEngine) absorbLoss(loss *big.Int) {
	if loss.Sign() <= 0 {
		return
	}
	remaining := new(big.Int).Set(loss)

	if e.InsuranceFund.Sign() > 0 {
		covered := new(big.Int).Set(e.InsuranceFund)
		if covered.Cmp(remaining) > 0 {
			covered.Set(remaining)
		}
		e.InsuranceFund.Sub(e.InsuranceFund, covered)
		remaining.Sub(remaining, covered)
	}
	if remaining.Sign() <= 0 {
		return
	}

	e.LossAccum.Add(e.LossAccum, remaining)
	e.widenHaircutRatio(remaining)
}

// widenHaircutRatio reduces haircut_ratio_num/haircut_ratio_den so that
// aggregate positive-PnL payouts shrink by loss/pnl_pos_tot, preserving
// I4 (num <= den). If there is no positive-PnL pool to socialize against,
// the ratio is left unchanged (the loss stays purely in loss_accum,
// awaiting either new positive PnL to socialize against or insurance
// top-up).
func (e *RiskEngine) widenHaircutRatio(loss *big.Int) {
	if e.PnlPosTot.Sign() <= 0 {
		return
	}
	// new_ratio = old_ratio * (pnl_pos_tot - loss) / pnl_pos_tot, floored at 0.
	remainingPool := new(big.Int).Sub(e.PnlPosTot, loss)
	if remainingPool.Sign() < 0 {
		remainingPool.SetInt64(0)
	}
	num := new(big.Int).Mul(e.HaircutRatioNum, remainingPool)
	den := new(big.Int).Mul(e.HaircutRatioDen, e.PnlPosTot)
	g := new(big.Int).GCD(nil, nil, new(big.Int).Abs(num), new(big.Int).Abs(den))
	if g.Sign() > 0 {
		num.Quo(num, g)
		den.Quo(den, g)
	}
	if den.Sign() == 0 {
		den.SetInt64(1)
	}
	e.HaircutRatioNum = num
	e.HaircutRatioDen = den
}

// forceLossRealization implements spec §4.7 step 4 / §4.6's
// force-realization path: invoked when insurance <= risk_reduction_threshold,
// it finds the account with the single most-negative unrealized pnl and
// writes that loss off into loss_accum/haircut, restoring solvency
// headroom without waiting for that account to be touched naturally.
func (e *RiskEngine) forceLossRealization() {
	worstIdx := int16(-1)
	worstPnL := big.NewInt(0)
	for i := 0; i < types.MaxAccounts; i++ {
		if !e.Used[i] {
			continue
		}
		a := &e.Accounts[i]
		if a.PnL.Sign() < 0 && a.PnL.Cmp(worstPnL) < 0 {
			worstPnL.Set(a.PnL)
			worstIdx = int16(i)
		}
	}
	if worstIdx < 0 {
		return
	}
	a := &e.Accounts[worstIdx]
	loss := new(big.Int).Neg(a.PnL)
	a.PnL.SetInt64(0)
	e.absorbLoss(loss)
}
