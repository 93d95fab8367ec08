package engine

import (
	"math/big"
	"testing"

	"github.com/purpletrade/percolator-prog-sub000/pkg/types"
)

func TestExecuteTradeFullFillSettlesBothLegs(t *testing.T) {
	e := newTestEngine(t)
	userIdx, _ := e.AddUser()
	lpIdx, _ := e.AddLP([32]byte{9}, [32]byte{10}, 0)

	e.Accounts[userIdx].Capital.SetInt64(1_000_000)
	e.Accounts[lpIdx].Capital.SetInt64(1_000_000)
	e.CTot.SetInt64(2_000_000)
	e.InsuranceFund.SetInt64(10_000) // above threshold: risk gate clear

	res, err := e.ExecuteTrade(fullFillMatcher(), lpIdx, userIdx, 1, 2_000_000, big.NewInt(100))
	if err != nil {
		t.Fatalf("ExecuteTrade: %v", err)
	}
	if res.ExecSize.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("ExecSize = %s, want 100", res.ExecSize)
	}
	if e.Accounts[userIdx].PositionSize.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("user position = %s, want 100", e.Accounts[userIdx].PositionSize)
	}
	if e.Accounts[lpIdx].PositionSize.Cmp(big.NewInt(-100)) != 0 {
		t.Fatalf("lp position = %s, want -100", e.Accounts[lpIdx].PositionSize)
	}
	if e.Accounts[userIdx].EntryPriceE6 != 2_000_000 {
		t.Fatalf("user entry price = %d, want 2000000", e.Accounts[userIdx].EntryPriceE6)
	}
	if e.InsuranceFund.Sign() <= 0 {
		t.Fatalf("expected trading fee to accrue to insurance, got %s", e.InsuranceFund)
	}
}

func TestExecuteTradeZeroSizeRejected(t *testing.T) {
	e := newTestEngine(t)
	userIdx, _ := e.AddUser()
	lpIdx, _ := e.AddLP([32]byte{9}, [32]byte{10}, 0)
	_, err := e.ExecuteTrade(fullFillMatcher(), lpIdx, userIdx, 1, 1_000_000, big.NewInt(0))
	if err != types.ErrZeroTradeSize {
		t.Fatalf("err = %v, want ErrZeroTradeSize", err)
	}
}

func TestExecuteTradeInsufficientMargin(t *testing.T) {
	e := newTestEngine(t)
	userIdx, _ := e.AddUser()
	lpIdx, _ := e.AddLP([32]byte{9}, [32]byte{10}, 0)
	e.Accounts[userIdx].Capital.SetInt64(1) // nowhere near 10% of notional

	_, err := e.ExecuteTrade(fullFillMatcher(), lpIdx, userIdx, 1, 1_000_000, big.NewInt(1_000_000))
	if err != types.ErrInsufficientMargin {
		t.Fatalf("err = %v, want ErrInsufficientMargin", err)
	}
}

func TestExecuteTradePartialFillWithFlagAccepted(t *testing.T) {
	e := newTestEngine(t)
	userIdx, _ := e.AddUser()
	lpIdx, _ := e.AddLP([32]byte{9}, [32]byte{10}, 0)
	e.Accounts[userIdx].Capital.SetInt64(1_000_000)
	e.Accounts[lpIdx].Capital.SetInt64(1_000_000)
	e.InsuranceFund.SetInt64(10_000)

	res, err := e.ExecuteTrade(partialFillMatcher(1, 2), lpIdx, userIdx, 1, 1_000_000, big.NewInt(100))
	if err != nil {
		t.Fatalf("ExecuteTrade: %v", err)
	}
	if res.ExecSize.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("ExecSize = %s, want 50", res.ExecSize)
	}
}

func TestExecuteTradeRejectedMatcherLeavesNonceUnchanged(t *testing.T) {
	e := newTestEngine(t)
	userIdx, _ := e.AddUser()
	lpIdx, _ := e.AddLP([32]byte{9}, [32]byte{10}, 0)
	e.Accounts[userIdx].Capital.SetInt64(1_000_000)
	e.InsuranceFund.SetInt64(10_000)
	startNonce := e.Accounts[lpIdx].AccountNonce

	_, err := e.ExecuteTrade(rejectingMatcher(), lpIdx, userIdx, 1, 1_000_000, big.NewInt(10))
	if err != types.ErrMatcherReturnInvalid {
		t.Fatalf("err = %v, want ErrMatcherReturnInvalid", err)
	}
	if e.Accounts[lpIdx].AccountNonce != startNonce {
		t.Fatalf("expected nonce to stay unchanged on matcher rejection (I6)")
	}
	if e.Accounts[userIdx].PositionSize.Sign() != 0 {
		t.Fatalf("user position should be untouched on rejection, got %s", e.Accounts[userIdx].PositionSize)
	}
}

func TestExecuteTradeSameAccountRejected(t *testing.T) {
	e := newTestEngine(t)
	lpIdx, _ := e.AddLP([32]byte{9}, [32]byte{10}, 0)
	_, err := e.ExecuteTrade(fullFillMatcher(), lpIdx, lpIdx, 1, 1_000_000, big.NewInt(10))
	if err == nil {
		t.Fatalf("expected an error when lp_idx == user_idx")
	}
}

func TestApplyFillOppositeDirectionRealizesPnL(t *testing.T) {
	a := types.NewEmptyAccount()
	a.Kind = types.KindUser
	a.PositionSize.SetInt64(100)
	a.EntryPriceE6 = 1_000_000

	// Sell 40 at 1.10: realized = 40 * (1,100,000-1,000,000)/1e6 = 4.
	applyFill(&a, big.NewInt(-40), 1_100_000)

	if a.PositionSize.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("position = %s, want 60", a.PositionSize)
	}
	if a.PnL.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("pnl = %s, want 4", a.PnL)
	}
	if a.EntryPriceE6 != 1_000_000 {
		t.Fatalf("entry price should be unchanged on a partial reduction, got %d", a.EntryPriceE6)
	}
}

func TestApplyFillSignFlipResetsEntryPrice(t *testing.T) {
	a := types.NewEmptyAccount()
	a.Kind = types.KindUser
	a.PositionSize.SetInt64(50)
	a.EntryPriceE6 = 1_000_000

	applyFill(&a, big.NewInt(-80), 1_200_000)

	if a.PositionSize.Cmp(big.NewInt(-30)) != 0 {
		t.Fatalf("position = %s, want -30", a.PositionSize)
	}
	if a.EntryPriceE6 != 1_200_000 {
		t.Fatalf("entry price after flip = %d, want 1200000", a.EntryPriceE6)
	}
}

func TestApplyFillSameDirectionExtendsVWAP(t *testing.T) {
	a := types.NewEmptyAccount()
	a.Kind = types.KindUser
	a.PositionSize.SetInt64(100)
	a.EntryPriceE6 = 1_000_000

	applyFill(&a, big.NewInt(100), 2_000_000)

	if a.PositionSize.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("position = %s, want 200", a.PositionSize)
	}
	if a.EntryPriceE6 != 1_500_000 {
		t.Fatalf("VWAP entry price = %d, want 1500000", a.EntryPriceE6)
	}
}
