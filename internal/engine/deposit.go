package engine

import (
	"math/big"

	"github.com/purpletrade/percolator-prog-sub000/internal/auth"
	"github.com/purpletrade/percolator-prog-sub000/internal/units"
	"github.com/purpletrade/percolator-prog-sub000/pkg/types"
)

// Deposit implements spec §6's deposit(idx, amount_units): credits
// capital and the custodial vault, and anchors the PnL warmup clock at
// the engine's current slot.
func (e *RiskEngine) Deposit(idx uint16, amountUnits *big.Int) error {
	a, err := e.account(idx, types.KindEmpty)
	if err != nil {
		return err
	}
	e.adjustCapital(a, amountUnits)
	e.Vault.Add(e.Vault, amountUnits)
	a.LastDepositSlot = e.CurrentSlot
	return nil
}

// DepositBase converts a base-token amount through the market's
// unit_scale (spec §4.1) before crediting units, accumulating any
// remainder into dust_base for the next crank's dust sweep. Returns the
// whole-unit amount actually credited.
func (e *RiskEngine) DepositBase(idx uint16, amountBase *big.Int) (*big.Int, error) {
	unitsAmt, dust := units.BaseToUnits(amountBase, e.Market.UnitScale)
	if err := e.Deposit(idx, unitsAmt); err != nil {
		return nil, err
	}
	if dust.Sign() > 0 {
		e.DustBase += dust.Uint64()
	}
	return unitsAmt, nil
}

// Withdraw implements spec §6's withdraw(idx, amount_units, slot,
// price_e6): advances funding, lazy-settles the account, releases any
// warmup-eligible positive PnL into capital, realizes negative PnL, then
// checks both sufficiency and the post-withdrawal maintenance-margin
// requirement before debiting capital and the vault.
func (e *RiskEngine) Withdraw(idx uint16, amountUnits *big.Int, slot uint64, priceE6 uint64) (*big.Int, error) {
	a, err := e.account(idx, types.KindEmpty)
	if err != nil {
		return nil, err
	}

	e.advanceFunding(slot, priceE6)
	e.touch(idx)
	e.releaseWarmup(idx, slot)
	e.realizeNegativePnL(idx)

	if a.Capital.Cmp(amountUnits) < 0 {
		return nil, types.ErrInsufficientCapital
	}

	remainingCapital := new(big.Int).Sub(a.Capital, amountUnits)
	posPnl := new(big.Int).Sub(a.PnL, a.ReservedPnL)
	if posPnl.Sign() < 0 {
		posPnl.SetInt64(0)
	}
	scaledPnl := new(big.Int).Mul(posPnl, e.HaircutRatioNum)
	scaledPnl.Quo(scaledPnl, e.HaircutRatioDen)
	remainingEquity := new(big.Int).Add(remainingCapital, scaledPnl)

	required := bpsOf(notionalUnits(a.PositionSize, priceE6), e.Params.MaintenanceMarginBps)
	if remainingEquity.Cmp(required) < 0 {
		return nil, types.ErrInsufficientMargin
	}

	e.adjustCapital(a, new(big.Int).Neg(amountUnits))
	e.Vault.Sub(e.Vault, amountUnits)
	return amountUnits, nil
}

// WithdrawBase withdraws in base-token terms, rejecting any amount that
// is not a whole multiple of the market's unit_scale (spec §4.1).
func (e *RiskEngine) WithdrawBase(idx uint16, amountBase *big.Int, slot uint64, priceE6 uint64) (*big.Int, error) {
	if !units.IsAlignedWithdraw(amountBase, e.Market.UnitScale) {
		return nil, types.ErrInvalidParams
	}
	unitsAmt, _ := units.BaseToUnits(amountBase, e.Market.UnitScale)
	return e.Withdraw(idx, unitsAmt, slot, priceE6)
}

// TopUpInsurance implements spec §6's top_up_insurance(amount_units):
// credits the insurance fund directly and pulls the matching units into
// the vault, mirroring a deposit with no owning account.
func (e *RiskEngine) TopUpInsurance(amountUnits *big.Int) {
	e.InsuranceFund.Add(e.InsuranceFund, amountUnits)
	e.Vault.Add(e.Vault, amountUnits)
}

// SetRiskThreshold implements spec §6's set_risk_threshold(u128): an
// admin-gated override of the auto-tuned risk_reduction_threshold.
// Authorization (auth.AdminOK) is the wrapper's responsibility; the core
// only applies the value once authorized.
func (e *RiskEngine) SetRiskThreshold(newThreshold *big.Int) {
	e.RiskReductionThreshold = new(big.Int).Set(newThreshold)
}

// UpdateAdmin implements spec §6's update_admin(new[32]). Passing the
// zero identity permanently burns admin authority (auth.AdminOK always
// returns false against a zeroed admin).
func (e *RiskEngine) UpdateAdmin(newAdmin [32]byte) {
	e.Admin = newAdmin
	e.AdminBurned = newAdmin == ([32]byte{})
}

// AdminOK is a thin convenience wrapper around auth.AdminOK bound to this
// engine's current admin identity.
func (e *RiskEngine) AdminOK(signer auth.Identity) bool {
	return auth.AdminOK(e.Admin, signer)
}
