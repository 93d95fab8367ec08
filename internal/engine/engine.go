// Package engine implements RiskEngine, the fixed-size, single-threaded
// perpetual-futures risk engine core: the accounts slab, funding, margin,
// trade execution, liquidation, haircut, the keeper crank, and the
// conservation invariant tying a custodial vault to account balances.
//
// Every exported method here is meant to be called from a thin wrapper
// that has already verified signers, owners, and PDAs (internal/auth
// exposes those checks as pure helpers) and has resolved a validated
// price_e6. The engine itself never performs I/O, never allocates beyond
// what a single call needs, and never blocks.
package engine

import (
	"math/big"

	"github.com/purpletrade/percolator-prog-sub000/internal/funding"
	"github.com/purpletrade/percolator-prog-sub000/pkg/types"
)

// RiskEngine is the zero-copy state container spec §2 describes: a bitmap
// over MAX_ACCOUNTS slots, a fixed accounts array, market parameters,
// incrementally maintained aggregates, and funding/threshold state.
type RiskEngine struct {
	Params types.RiskParams
	Market types.MarketConfig

	Admin       [32]byte
	AdminBurned bool

	Used     [types.MaxAccounts]bool
	Accounts [types.MaxAccounts]types.Account

	Funding funding.State

	// Incrementally maintained aggregates (spec §3 I3, §5).
	NetLPPos          *big.Int
	SumAbsLP          *big.Int
	MaxAbsLP          *big.Int
	TotalOpenInterest *big.Int

	Vault         *big.Int
	DustBase      uint64
	InsuranceFund *big.Int
	LossAccum     *big.Int

	HaircutRatioNum *big.Int
	HaircutRatioDen *big.Int

	RiskReductionThreshold *big.Int
	LastThrUpdateSlot      uint64

	CTot      *big.Int
	PnlPosTot *big.Int

	NumUsedAccounts int
	CurrentSlot     uint64
}

// New constructs a genesis RiskEngine from the supplied parameters and
// market configuration. The admin identity is set once at genesis; it is
// changed thereafter only through UpdateAdmin, and permanently disabled
// ("burned") by setting it to the zero identity.
func New(params types.RiskParams, market types.MarketConfig, admin [32]byte, genesisSlot uint64) (*RiskEngine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	e := &RiskEngine{
		Params:                 params,
		Market:                 market,
		Admin:                  admin,
		Funding:                funding.NewState(genesisSlot),
		NetLPPos:               big.NewInt(0),
		SumAbsLP:               big.NewInt(0),
		MaxAbsLP:               big.NewInt(0),
		TotalOpenInterest:      big.NewInt(0),
		Vault:                  big.NewInt(0),
		InsuranceFund:          big.NewInt(0),
		LossAccum:              big.NewInt(0),
		HaircutRatioNum:        big.NewInt(1),
		HaircutRatioDen:        big.NewInt(1),
		RiskReductionThreshold: new(big.Int).Set(params.RiskReductionThreshold),
		LastThrUpdateSlot:      genesisSlot,
		CTot:                   big.NewInt(0),
		PnlPosTot:              big.NewInt(0),
		CurrentSlot:            genesisSlot,
	}
	for i := range e.Accounts {
		e.Accounts[i] = types.NewEmptyAccount()
	}
	return e, nil
}

// notionalUnits computes |size| * price_e6 / 1e6, the actual notional
// value of a position at a given oracle price, expressed in the same
// integer units as capital. Every bps-scaled fee and margin computation
// in this package is built on top of this one conversion.
func notionalUnits(size *big.Int, priceE6 uint64) *big.Int {
	abs := new(big.Int).Abs(size)
	n := new(big.Int).Mul(abs, big.NewInt(int64(priceE6)))
	n.Quo(n, big.NewInt(1_000_000))
	return n
}

// bpsOf computes notional * bps / 10_000.
func bpsOf(notional *big.Int, bps uint64) *big.Int {
	r := new(big.Int).Mul(notional, big.NewInt(int64(bps)))
	r.Quo(r, big.NewInt(10_000))
	return r
}

// findFreeSlot returns the index of the first unused account slot, or
// 0 and types.ErrSlabFull if the slab is full. This is the only
// "allocation" the engine ever performs: a first-free-bit scan over a
// compile-time-sized array, never a dynamic grow.
func (e *RiskEngine) findFreeSlot() (uint16, error) {
	for i := 0; i < types.MaxAccounts; i++ {
		if !e.Used[i] {
			return uint16(i), nil
		}
	}
	return 0, types.ErrSlabFull
}

// account returns a pointer to the account at idx after validating it is
// used and of the expected kind (types.KindEmpty skips the kind check).
func (e *RiskEngine) account(idx uint16, wantKind types.Kind) (*types.Account, error) {
	if int(idx) >= types.MaxAccounts || !e.Used[idx] {
		return nil, types.ErrAccountNotFound
	}
	a := &e.Accounts[idx]
	if wantKind != types.KindEmpty && a.Kind != wantKind {
		return nil, types.ErrWrongKind
	}
	return a, nil
}

// adjustCapital mutates an account's capital and keeps CTot (the
// incrementally maintained sum of capital) exact. Unlike max_abs_lp,
// c_tot has no conservative slack: every capital mutation must route
// through here rather than touching a.Capital directly.
func (e *RiskEngine) adjustCapital(a *types.Account, delta *big.Int) {
	a.Capital.Add(a.Capital, delta)
	e.CTot.Add(e.CTot, delta)
}

// equity implements the GLOSSARY definition: capital + max(pnl -
// reserved_pnl, 0) * haircut_ratio.
func (e *RiskEngine) equity(a *types.Account) *big.Int {
	posPnl := new(big.Int).Sub(a.PnL, a.ReservedPnL)
	if posPnl.Sign() < 0 {
		posPnl.SetInt64(0)
	}
	scaled := new(big.Int).Mul(posPnl, e.HaircutRatioNum)
	scaled.Quo(scaled, e.HaircutRatioDen)
	return new(big.Int).Add(a.Capital, scaled)
}
