package engine

import (
	"math/big"

	"github.com/purpletrade/percolator-prog-sub000/pkg/types"
)

// Snapshot is a point-in-time read of every aggregate the engine
// maintains, the O(1) query surface spec §6 calls for ("Query getters
// for aggregates").
type Snapshot struct {
	NetLPPos               *big.Int
	SumAbsLP               *big.Int
	MaxAbsLP               *big.Int
	TotalOpenInterest      *big.Int
	Vault                  *big.Int
	DustBase               uint64
	InsuranceFund          *big.Int
	LossAccum              *big.Int
	HaircutRatioNum        *big.Int
	HaircutRatioDen        *big.Int
	RiskReductionThreshold *big.Int
	CTot                   *big.Int
	PnlPosTot              *big.Int
	NumUsedAccounts        int
	FundingIndexQPBE6      *big.Int
	LastFundingSlot        uint64
}

// GetSnapshot returns a defensive copy of every aggregate field so
// callers cannot mutate engine state through the returned value.
func (e *RiskEngine) GetSnapshot() Snapshot {
	return Snapshot{
		NetLPPos:               new(big.Int).Set(e.NetLPPos),
		SumAbsLP:               new(big.Int).Set(e.SumAbsLP),
		MaxAbsLP:               new(big.Int).Set(e.MaxAbsLP),
		TotalOpenInterest:      new(big.Int).Set(e.TotalOpenInterest),
		Vault:                  new(big.Int).Set(e.Vault),
		DustBase:               e.DustBase,
		InsuranceFund:          new(big.Int).Set(e.InsuranceFund),
		LossAccum:              new(big.Int).Set(e.LossAccum),
		HaircutRatioNum:        new(big.Int).Set(e.HaircutRatioNum),
		HaircutRatioDen:        new(big.Int).Set(e.HaircutRatioDen),
		RiskReductionThreshold: new(big.Int).Set(e.RiskReductionThreshold),
		CTot:                   new(big.Int).Set(e.CTot),
		PnlPosTot:              new(big.Int).Set(e.PnlPosTot),
		NumUsedAccounts:        e.NumUsedAccounts,
		FundingIndexQPBE6:      new(big.Int).Set(e.Funding.IndexQPBE6),
		LastFundingSlot:        e.Funding.LastSlot,
	}
}

// AccountView is a read-only, defensively-copied window onto a single
// account slot, returned by GetAccount so callers can inspect state
// without ever being able to mutate engine internals through it.
type AccountView struct {
	Kind           types.Kind
	Owner          [32]byte
	Capital        *big.Int
	PnL            *big.Int
	ReservedPnL    *big.Int
	PositionSize   *big.Int
	EntryPriceE6   uint64
	FundingIndex   *big.Int
	AccountNonce   uint64
	MatcherProgram [32]byte
	MatcherContext [32]byte
	MakerFeeBps    uint64
}

// GetAccount returns a defensive copy of the account record at idx, the
// query getter spec §6 calls for.
func (e *RiskEngine) GetAccount(idx uint16) (AccountView, bool) {
	if int(idx) >= types.MaxAccounts || !e.Used[idx] {
		return AccountView{}, false
	}
	a := &e.Accounts[idx]
	return AccountView{
		Kind:           a.Kind,
		Owner:          a.Owner,
		Capital:        new(big.Int).Set(a.Capital),
		PnL:            new(big.Int).Set(a.PnL),
		ReservedPnL:    new(big.Int).Set(a.ReservedPnL),
		PositionSize:   new(big.Int).Set(a.PositionSize),
		EntryPriceE6:   a.EntryPriceE6,
		FundingIndex:   new(big.Int).Set(a.FundingIndex),
		AccountNonce:   a.AccountNonce,
		MatcherProgram: a.MatcherProgram,
		MatcherContext: a.MatcherContext,
		MakerFeeBps:    a.MakerFeeBps,
	}, true
}
