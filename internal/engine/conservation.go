package engine

import (
	"math/big"

	"github.com/purpletrade/percolator-prog-sub000/internal/funding"
	"github.com/purpletrade/percolator-prog-sub000/pkg/types"
)

// CheckConservation implements spec I2 / P1: vault >= c_tot + sum(settled_pnl)
// + insurance_fund, within MaxRoundingSlack. settled_pnl_i is computed
// per the literal §3 formula (pnl_i minus the funding delta not yet
// realized into that account), not the post-touch value, since this
// check must hold for untouched accounts too.
func (e *RiskEngine) CheckConservation() bool {
	sumSettled := big.NewInt(0)
	for i := 0; i < types.MaxAccounts; i++ {
		if !e.Used[i] {
			continue
		}
		a := &e.Accounts[i]
		owed := funding.Owed(e.Funding.IndexQPBE6, a.FundingIndex, a.PositionSize)
		settled := new(big.Int).Sub(a.PnL, owed)
		sumSettled.Add(sumSettled, settled)
	}

	required := new(big.Int).Add(e.CTot, sumSettled)
	required.Add(required, e.InsuranceFund)

	slack := new(big.Int).Sub(e.Vault, required)
	if slack.Sign() >= 0 {
		return true
	}
	return new(big.Int).Neg(slack).Cmp(e.Params.MaxRoundingSlack) <= 0
}
