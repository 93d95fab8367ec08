package engine

import (
	"math/big"
	"testing"

	"github.com/purpletrade/percolator-prog-sub000/pkg/types"
)

func TestDepositCreditsCapitalAndVault(t *testing.T) {
	e := newTestEngine(t)
	idx, _ := e.AddUser()

	if err := e.Deposit(idx, big.NewInt(1_000)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if e.Accounts[idx].Capital.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("capital = %s, want 1000", e.Accounts[idx].Capital)
	}
	if e.Vault.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("vault = %s, want 1000", e.Vault)
	}
	if e.CTot.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("CTot = %s, want 1000", e.CTot)
	}
}

func TestDepositUnknownAccountFails(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Deposit(5, big.NewInt(100)); err != types.ErrAccountNotFound {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestDepositBaseAccumulatesDust(t *testing.T) {
	e := newTestEngine(t)
	e.Market.UnitScale = 10
	idx, _ := e.AddUser()

	credited, err := e.DepositBase(idx, big.NewInt(123))
	if err != nil {
		t.Fatalf("DepositBase: %v", err)
	}
	if credited.Cmp(big.NewInt(12)) != 0 {
		t.Fatalf("credited = %s, want 12", credited)
	}
	if e.DustBase != 3 {
		t.Fatalf("DustBase = %d, want 3", e.DustBase)
	}
}

func TestWithdrawInsufficientCapital(t *testing.T) {
	e := newTestEngine(t)
	idx, _ := e.AddUser()
	e.Accounts[idx].Capital.SetInt64(10)
	e.CTot.SetInt64(10)

	_, err := e.Withdraw(idx, big.NewInt(100), 1, 1_000_000)
	if err != types.ErrInsufficientCapital {
		t.Fatalf("err = %v, want ErrInsufficientCapital", err)
	}
}

func TestWithdrawRejectsBreachingMaintenanceMargin(t *testing.T) {
	e := newTestEngine(t)
	idx, _ := e.AddUser()
	a := &e.Accounts[idx]
	a.Capital.SetInt64(100)
	a.PositionSize.SetInt64(1_000) // requires 5% of 1000 notional = 50 margin
	e.CTot.SetInt64(100)

	_, err := e.Withdraw(idx, big.NewInt(60), 1, 1_000_000)
	if err != types.ErrInsufficientMargin {
		t.Fatalf("err = %v, want ErrInsufficientMargin", err)
	}
}

func TestWithdrawSucceedsWithinMargin(t *testing.T) {
	e := newTestEngine(t)
	idx, _ := e.AddUser()
	a := &e.Accounts[idx]
	a.Capital.SetInt64(100)
	e.CTot.SetInt64(100)
	e.Vault.SetInt64(100)

	amt, err := e.Withdraw(idx, big.NewInt(40), 1, 1_000_000)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if amt.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("amt = %s, want 40", amt)
	}
	if a.Capital.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("capital = %s, want 60", a.Capital)
	}
	if e.Vault.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("vault = %s, want 60", e.Vault)
	}
	if e.CTot.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("CTot = %s, want 60", e.CTot)
	}
}

func TestWithdrawBaseRejectsMisalignedAmount(t *testing.T) {
	e := newTestEngine(t)
	e.Market.UnitScale = 10
	idx, _ := e.AddUser()
	e.Accounts[idx].Capital.SetInt64(100)

	_, err := e.WithdrawBase(idx, big.NewInt(25), 1, 1_000_000)
	if err != types.ErrInvalidParams {
		t.Fatalf("err = %v, want ErrInvalidParams", err)
	}
}

func TestTopUpInsuranceCreditsVaultAndFund(t *testing.T) {
	e := newTestEngine(t)
	e.TopUpInsurance(big.NewInt(500))
	if e.InsuranceFund.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("InsuranceFund = %s, want 500", e.InsuranceFund)
	}
	if e.Vault.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("Vault = %s, want 500", e.Vault)
	}
}

func TestUpdateAdminBurn(t *testing.T) {
	e := newTestEngine(t)
	e.UpdateAdmin([32]byte{})
	if !e.AdminBurned {
		t.Fatalf("expected AdminBurned after setting admin to the zero identity")
	}
	if e.AdminOK([32]byte{1}) {
		t.Fatalf("burned admin should never authorize")
	}
}

func TestSetRiskThreshold(t *testing.T) {
	e := newTestEngine(t)
	e.SetRiskThreshold(big.NewInt(42))
	if e.RiskReductionThreshold.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("RiskReductionThreshold = %s, want 42", e.RiskReductionThreshold)
	}
}
