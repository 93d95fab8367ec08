// Command bench runs the percolator risk engine through a walkthrough a
// reviewer can check by hand: account creation and a full-fill trade,
// crank idempotence, a margin-driven liquidation, dust sweeping, a
// matcher-ABI rejection, and the risk-reduction gate. It builds one
// RiskEngine from genesis parameters, drives it through the public
// engine API, and reports pass/fail per assertion, grounded on the
// teacher's load→validate→run command shape.
package main

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/big"
	"os"

	"github.com/purpletrade/percolator-prog-sub000/internal/config"
	"github.com/purpletrade/percolator-prog-sub000/internal/engine"
	"github.com/purpletrade/percolator-prog-sub000/internal/fixedmath"
	"github.com/purpletrade/percolator-prog-sub000/internal/matcher"
	"github.com/purpletrade/percolator-prog-sub000/pkg/types"
)

func main() {
	cfgPath := "configs/market.yaml"
	if p := os.Getenv("PERC_CONFIG"); p != "" {
		cfgPath = p
	}

	var logger *slog.Logger
	if cfg, err := config.Load(cfgPath); err == nil {
		if verr := cfg.Validate(); verr != nil {
			fmt.Fprintf(os.Stderr, "invalid config %s: %v (falling back to built-in genesis params)\n", cfgPath, verr)
		}
		logger = newLogger(cfg.Logging.Level, cfg.Logging.Format)
	} else {
		logger = newLogger("info", "text")
		logger.Warn("no config file found, running with built-in genesis params", "path", cfgPath, "error", err)
	}

	scenarios := []struct {
		name string
		run  func(*slog.Logger) error
	}{
		{"trade_settles_both_legs", scenarioTrade},
		{"crank_is_idempotent_same_slot", scenarioCrankIdempotent},
		{"underwater_position_gets_liquidated", scenarioLiquidation},
		{"base_deposit_dust_sweeps_on_crank", scenarioDustSweep},
		{"matcher_sign_flip_is_rejected", scenarioMatcherRejection},
		{"risk_reduction_gate_blocks_only_increasing_trades", scenarioRiskGate},
	}

	failures := 0
	for _, sc := range scenarios {
		if err := sc.run(logger); err != nil {
			logger.Error("scenario failed", "scenario", sc.name, "error", err)
			failures++
			continue
		}
		logger.Info("scenario passed", "scenario", sc.name)
	}

	if failures > 0 {
		logger.Error("bench run had failures", "failures", failures, "total", len(scenarios))
		os.Exit(1)
	}
	logger.Info("all scenarios passed", "total", len(scenarios))
}

func newLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func benchParams() types.RiskParams {
	return types.RiskParams{
		InitialMarginBps:         1_000,
		MaintenanceMarginBps:     500,
		LiquidationBufferBps:     1_000,
		LiquidationFeeBps:        50,
		LiquidationFeeCap:        big.NewInt(1_000_000_000),
		MinLiquidationAbs:        big.NewInt(1_000_000),
		TradingFeeBps:            10,
		MaintenanceFeePerSlotBps: 1,
		WarmupPeriodSlots:        10,
		NewAccountFee:            big.NewInt(0),
		MaxRoundingSlack:         big.NewInt(10),
		RiskReductionThreshold:   big.NewInt(1_000),
		MaxCrankStalenessSlots:   1_000,
	}
}

func benchMarket(unitScale uint32) types.MarketConfig {
	return types.MarketConfig{MaxStaleness: 1_000, ConfFilterBps: 100, UnitScale: unitScale}
}

func assertf(cond bool, format string, args ...any) error {
	if !cond {
		return fmt.Errorf(format, args...)
	}
	return nil
}

// decodeCall mirrors matcher.EncodeCall's layout in reverse, the wire
// shape a matcher implementation reads a request off of.
func decodeCall(buf [matcher.CallSize]byte) matcher.CallFrame {
	var sizeBytes [16]byte
	copy(sizeBytes[:], buf[27:43])
	return matcher.CallFrame{
		Tag:           buf[0],
		ReqID:         binary.LittleEndian.Uint64(buf[1:9]),
		LPIdx:         binary.LittleEndian.Uint16(buf[9:11]),
		LPAccountID:   binary.LittleEndian.Uint64(buf[11:19]),
		OraclePriceE6: binary.LittleEndian.Uint64(buf[19:27]),
		ReqSize:       fixedmath.DecodeI128LE(sizeBytes),
	}
}

// encodeReturn mirrors matcher.DecodeReturn's layout, building a return
// buffer a matcher implementation would hand back.
func encodeReturn(reqID, lpAccID, oracle, execPriceE6 uint64, execSize *big.Int, flags uint32) [matcher.ReturnSize]byte {
	var buf [matcher.ReturnSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(types.MatcherABIVersion))
	binary.LittleEndian.PutUint32(buf[4:8], flags)
	binary.LittleEndian.PutUint64(buf[8:16], execPriceE6)
	sizeBytes, _ := fixedmath.EncodeI128LE(execSize)
	copy(buf[16:32], sizeBytes[:])
	binary.LittleEndian.PutUint64(buf[32:40], reqID)
	binary.LittleEndian.PutUint64(buf[40:48], lpAccID)
	binary.LittleEndian.PutUint64(buf[48:56], oracle)
	return buf
}

// fullFill is a matcher that fills the requested size exactly at the
// echoed oracle price.
func fullFill(call [matcher.CallSize]byte) [matcher.ReturnSize]byte {
	c := decodeCall(call)
	return encodeReturn(c.ReqID, c.LPAccountID, c.OraclePriceE6, c.OraclePriceE6, c.ReqSize, matcher.FlagValid)
}

// signFlip is a matcher that reports the exact opposite sign of the
// requested size, the validation failure scenarioMatcherRejection exercises.
func signFlip(call [matcher.CallSize]byte) [matcher.ReturnSize]byte {
	c := decodeCall(call)
	flipped := new(big.Int).Neg(c.ReqSize)
	return encodeReturn(c.ReqID, c.LPAccountID, c.OraclePriceE6, c.OraclePriceE6, flipped, matcher.FlagValid)
}

// openPosition builds a fresh engine with one user and one LP, deposits
// both, and executes a single full-fill trade, clearing the zero-insurance
// risk gate for that one genesis-opening trade. Returns the engine and
// both account indices.
func openPosition(logger *slog.Logger, userCapital, lpCapital *big.Int, size *big.Int, priceE6 uint64) (*engine.RiskEngine, uint16, uint16, error) {
	e, err := engine.New(benchParams(), benchMarket(0), [32]byte{0xAA}, 0)
	if err != nil {
		return nil, 0, 0, err
	}
	userIdx, err := e.AddUser()
	if err != nil {
		return nil, 0, 0, err
	}
	lpIdx, err := e.AddLP([32]byte{}, [32]byte{}, 0)
	if err != nil {
		return nil, 0, 0, err
	}
	if err := e.Deposit(userIdx, userCapital); err != nil {
		return nil, 0, 0, err
	}
	if err := e.Deposit(lpIdx, lpCapital); err != nil {
		return nil, 0, 0, err
	}
	e.InsuranceFund.SetInt64(2_000) // above risk_reduction_threshold, clearing the gate for this opening trade

	res, err := e.ExecuteTrade(fullFill, lpIdx, userIdx, 1, priceE6, size)
	if err != nil {
		return nil, 0, 0, err
	}
	logger.Debug("opening trade executed", "exec_price", res.ExecPriceE6, "exec_size", res.ExecSize)
	return e, lpIdx, userIdx, nil
}

// scenarioTrade walks through add_user→add_lp→deposit both→execute_trade
// and checks both legs' positions and the LP aggregates a trade maintains.
func scenarioTrade(logger *slog.Logger) error {
	e, lpIdx, userIdx, err := openPosition(logger, big.NewInt(1_000_000), big.NewInt(1_000_000), big.NewInt(100), 100_000_000)
	if err != nil {
		return err
	}

	userView, _ := e.GetAccount(userIdx)
	lpView, _ := e.GetAccount(lpIdx)
	if err := assertf(userView.PositionSize.Cmp(big.NewInt(100)) == 0, "user position = %s, want 100", userView.PositionSize); err != nil {
		return err
	}
	if err := assertf(lpView.PositionSize.Cmp(big.NewInt(-100)) == 0, "lp position = %s, want -100", lpView.PositionSize); err != nil {
		return err
	}
	snap := e.GetSnapshot()
	if err := assertf(snap.NetLPPos.Cmp(big.NewInt(-100)) == 0, "net_lp_pos = %s, want -100", snap.NetLPPos); err != nil {
		return err
	}
	if err := assertf(snap.SumAbsLP.Cmp(big.NewInt(100)) == 0, "sum_abs_lp = %s, want 100", snap.SumAbsLP); err != nil {
		return err
	}
	if err := assertf(snap.MaxAbsLP.Cmp(big.NewInt(100)) == 0, "max_abs_lp = %s, want 100", snap.MaxAbsLP); err != nil {
		return err
	}
	return assertf(e.CheckConservation(), "conservation violated after the opening trade")
}

// scenarioCrankIdempotent checks that three identical-slot cranks leave
// the funding index unchanged after the first call (P6).
func scenarioCrankIdempotent(logger *slog.Logger) error {
	e, _, _, err := openPosition(logger, big.NewInt(1_000_000), big.NewInt(1_000_000), big.NewInt(100), 100_000_000)
	if err != nil {
		return err
	}
	if err := e.KeeperCrank(types.PermissionlessCallerIdx, 1, 100_000_000, false); err != nil {
		return err
	}
	firstIndex := new(big.Int).Set(e.GetSnapshot().FundingIndexQPBE6)
	for i := 0; i < 2; i++ {
		if err := e.KeeperCrank(types.PermissionlessCallerIdx, 1, 100_000_000, false); err != nil {
			return err
		}
	}
	snap := e.GetSnapshot()
	logger.Debug("funding index stable across repeated cranks", "index", snap.FundingIndexQPBE6)
	if err := assertf(snap.FundingIndexQPBE6.Cmp(firstIndex) == 0, "funding index drifted across repeated same-slot cranks"); err != nil {
		return err
	}
	return assertf(snap.LastFundingSlot == 1, "last_funding_slot = %d, want 1", snap.LastFundingSlot)
}

// scenarioLiquidation opens a thinly margined position, then lets the
// oracle price move enough to push the position's maintenance-margin
// requirement above the account's equity (capital + settled pnl, §3's
// equity formula has no mark-to-market term, so the requirement — not the
// paper loss — is what crosses the threshold here). The next crank must
// liquidate the account, grow insurance by the fee, and leave the engine
// internally consistent.
func scenarioLiquidation(logger *slog.Logger) error {
	e, _, userIdx, err := openPosition(logger, big.NewInt(1_100), big.NewInt(10_000_000), big.NewInt(100), 100_000_000)
	if err != nil {
		return err
	}

	insuranceBefore := new(big.Int).Set(e.GetSnapshot().InsuranceFund)
	if err := e.KeeperCrank(types.PermissionlessCallerIdx, 200, 400_000_000, false); err != nil {
		return err
	}
	snap := e.GetSnapshot()
	userView, _ := e.GetAccount(userIdx)
	logger.Debug("post-crank state", "insurance", snap.InsuranceFund, "user_position", userView.PositionSize)
	if err := assertf(snap.InsuranceFund.Cmp(insuranceBefore) > 0, "expected insurance to grow from the liquidation fee"); err != nil {
		return err
	}
	if err := assertf(userView.PositionSize.CmpAbs(big.NewInt(100)) < 0, "expected the user's position to shrink from liquidation"); err != nil {
		return err
	}
	return assertf(e.CheckConservation(), "conservation violated after liquidation")
}

// scenarioDustSweep deposits base-token amounts under a unit_scale of 10
// and checks that sub-unit remainders accumulate as dust until a crank
// sweeps whole units into insurance.
func scenarioDustSweep(logger *slog.Logger) error {
	e, err := engine.New(benchParams(), benchMarket(10), [32]byte{0xAA}, 0)
	if err != nil {
		return err
	}
	userIdx, err := e.AddUser()
	if err != nil {
		return err
	}

	if _, err := e.DepositBase(userIdx, big.NewInt(123)); err != nil {
		return err
	}
	if err := assertf(e.Vault.Cmp(big.NewInt(12)) == 0, "vault = %s, want 12", e.Vault); err != nil {
		return err
	}
	if err := assertf(e.DustBase == 3, "dust_base = %d, want 3", e.DustBase); err != nil {
		return err
	}

	if err := e.KeeperCrank(types.PermissionlessCallerIdx, 1, 100_000_000, false); err != nil {
		return err
	}
	if err := assertf(e.DustBase == 3, "dust_base after crank = %d, want 3 (below scale, no sweep)", e.DustBase); err != nil {
		return err
	}

	if _, err := e.DepositBase(userIdx, big.NewInt(27)); err != nil {
		return err
	}
	if _, err := e.DepositBase(userIdx, big.NewInt(27)); err != nil {
		return err
	}
	if err := assertf(e.DustBase == 17, "dust_base pre-crank = %d, want 17", e.DustBase); err != nil {
		return err
	}

	insuranceBefore := new(big.Int).Set(e.InsuranceFund)
	if err := e.KeeperCrank(types.PermissionlessCallerIdx, 2, 100_000_000, false); err != nil {
		return err
	}
	logger.Debug("post-crank dust state", "dust_base", e.DustBase, "insurance", e.InsuranceFund)
	if err := assertf(e.DustBase == 7, "dust_base after second crank = %d, want 7", e.DustBase); err != nil {
		return err
	}
	delta := new(big.Int).Sub(e.InsuranceFund, insuranceBefore)
	return assertf(delta.Cmp(big.NewInt(1)) == 0, "insurance delta = %s, want 1", delta)
}

// scenarioMatcherRejection checks that a matcher reporting a sign-flipped
// exec_size is rejected: the trade returns an error and both accounts'
// state, including the LP's nonce, stays untouched.
func scenarioMatcherRejection(logger *slog.Logger) error {
	e, err := engine.New(benchParams(), benchMarket(0), [32]byte{0xAA}, 0)
	if err != nil {
		return err
	}
	userIdx, err := e.AddUser()
	if err != nil {
		return err
	}
	lpIdx, err := e.AddLP([32]byte{}, [32]byte{}, 0)
	if err != nil {
		return err
	}
	if err := e.Deposit(userIdx, big.NewInt(1_000_000)); err != nil {
		return err
	}
	if err := e.Deposit(lpIdx, big.NewInt(1_000_000)); err != nil {
		return err
	}
	e.InsuranceFund.SetInt64(2_000)

	lpBefore, _ := e.GetAccount(lpIdx)
	nonceBefore := lpBefore.AccountNonce
	_, err = e.ExecuteTrade(signFlip, lpIdx, userIdx, 1, 100_000_000, big.NewInt(100))
	logger.Debug("rejected trade", "error", err)
	if err := assertf(err == types.ErrMatcherReturnInvalid, "err = %v, want ErrMatcherReturnInvalid", err); err != nil {
		return err
	}
	userAfter, _ := e.GetAccount(userIdx)
	lpAfter, _ := e.GetAccount(lpIdx)
	if err := assertf(userAfter.PositionSize.Sign() == 0, "user position changed on a rejected trade"); err != nil {
		return err
	}
	if err := assertf(lpAfter.PositionSize.Sign() == 0, "lp position changed on a rejected trade"); err != nil {
		return err
	}
	return assertf(lpAfter.AccountNonce == nonceBefore, "lp nonce should stay unchanged on a rejected trade")
}

// scenarioRiskGate checks that, with a high risk-reduction threshold and
// no insurance, a trade that would widen an LP's aggregate risk is
// rejected while a trade that narrows it for the same LP succeeds.
func scenarioRiskGate(logger *slog.Logger) error {
	e, lpIdx, userIdx, err := openPosition(logger, big.NewInt(1_000_000), big.NewInt(1_000_000), big.NewInt(100), 100_000_000)
	if err != nil {
		return err
	}

	e.RiskReductionThreshold.SetString("1000000000000", 10)
	e.InsuranceFund.SetInt64(0)

	_, err = e.ExecuteTrade(fullFill, lpIdx, userIdx, 2, 100_000_000, big.NewInt(50))
	logger.Debug("risk-increasing attempt", "error", err)
	if err := assertf(err == types.ErrGateActive, "err = %v, want ErrGateActive", err); err != nil {
		return err
	}

	_, err = e.ExecuteTrade(fullFill, lpIdx, userIdx, 3, 100_000_000, big.NewInt(-50))
	return assertf(err == nil, "expected a risk-reducing trade to succeed, got %v", err)
}
