package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/purpletrade/percolator-prog-sub000/pkg/types"
)

// identityFromHex parses a 0x-prefixed or bare hex string into a 32-byte
// identity, left-padding short values the way an EVM address would be
// padded into a 32-byte account key.
func identityFromHex(s string) ([32]byte, error) {
	var id [32]byte
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid hex identity %q: %w", s, err)
	}
	if len(b) > 32 {
		return id, fmt.Errorf("identity %q exceeds 32 bytes", s)
	}
	copy(id[32-len(b):], b)
	return id, nil
}

// RiskParams converts the human-authored risk section into the engine's
// types.RiskParams, the one place percentage/decimal fields are rounded
// into integer bps/units.
func (c *Config) RiskParams() types.RiskParams {
	r := c.Risk
	return types.RiskParams{
		InitialMarginBps:         bpsFromPct(r.InitialMarginPct),
		MaintenanceMarginBps:     bpsFromPct(r.MaintenanceMarginPct),
		LiquidationBufferBps:     bpsFromPct(r.LiquidationBufferPct),
		LiquidationFeeBps:        bpsFromPct(r.LiquidationFeePct),
		LiquidationFeeCap:        unitsFromDecimal(r.LiquidationFeeCap),
		MinLiquidationAbs:        unitsFromDecimal(r.MinLiquidationAbs),
		TradingFeeBps:            bpsFromPct(r.TradingFeePct),
		MaintenanceFeePerSlotBps: bpsFromPct(r.MaintenanceFeePerSlotPct),
		WarmupPeriodSlots:        r.WarmupPeriodSlots,
		NewAccountFee:            unitsFromDecimal(r.NewAccountFee),
		MaxRoundingSlack:         unitsFromDecimal(r.MaxRoundingSlack),
		RiskReductionThreshold:   unitsFromDecimal(r.RiskReductionThreshold),
		MaxCrankStalenessSlots:   r.MaxCrankStalenessSlots,
	}
}

// MarketConfig converts the human-authored market section into the
// engine's types.MarketConfig.
func (c *Config) MarketConfig() (types.MarketConfig, error) {
	mint, err := identityFromHex(c.Market.Mint)
	if err != nil {
		return types.MarketConfig{}, err
	}
	oracle, err := identityFromHex(c.Market.Oracle)
	if err != nil {
		return types.MarketConfig{}, err
	}
	return types.MarketConfig{
		Mint:          mint,
		Oracle:        oracle,
		MaxStaleness:  c.Market.MaxStaleness,
		ConfFilterBps: c.Market.ConfFilterBps,
		Invert:        c.Market.Invert,
		UnitScale:     c.Market.UnitScale,
	}, nil
}

// AdminIdentity parses the configured admin identity.
func (c *Config) AdminIdentity() ([32]byte, error) {
	return identityFromHex(c.Admin)
}
