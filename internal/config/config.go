// Package config defines genesis configuration for a percolator market:
// risk parameters and market metadata loaded from a YAML file (default:
// configs/market.yaml) with sensitive/deployment-specific fields
// overridable via PERC_* environment variables.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the top-level genesis configuration. Maps directly to the
// YAML file structure; numeric risk fields are human-authored decimals
// (percentages, dollar caps) and converted to integer bps/units once,
// here, before anything reaches the engine.
type Config struct {
	Admin   string        `mapstructure:"admin"`
	Market  MarketSection `mapstructure:"market"`
	Risk    RiskSection   `mapstructure:"risk"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// MarketSection mirrors types.MarketConfig, in human-authored form.
type MarketSection struct {
	Mint          string `mapstructure:"mint"`
	Oracle        string `mapstructure:"oracle"`
	MaxStaleness  uint64 `mapstructure:"max_staleness_slots"`
	ConfFilterBps uint64 `mapstructure:"conf_filter_bps"`
	Invert        bool   `mapstructure:"invert"`
	UnitScale     uint32 `mapstructure:"unit_scale"`
}

// RiskSection mirrors types.RiskParams, with percentage/decimal fields
// (e.g. "2.5" meaning 2.5%) instead of raw bps integers, and dollar-scale
// decimal fields instead of raw integer units.
type RiskSection struct {
	InitialMarginPct         decimal.Decimal `mapstructure:"initial_margin_pct"`
	MaintenanceMarginPct     decimal.Decimal `mapstructure:"maintenance_margin_pct"`
	LiquidationBufferPct     decimal.Decimal `mapstructure:"liquidation_buffer_pct"`
	LiquidationFeePct        decimal.Decimal `mapstructure:"liquidation_fee_pct"`
	LiquidationFeeCap        decimal.Decimal `mapstructure:"liquidation_fee_cap"`
	MinLiquidationAbs        decimal.Decimal `mapstructure:"min_liquidation_abs"`
	TradingFeePct            decimal.Decimal `mapstructure:"trading_fee_pct"`
	MaintenanceFeePerSlotPct decimal.Decimal `mapstructure:"maintenance_fee_per_slot_pct"`
	WarmupPeriodSlots        uint64          `mapstructure:"warmup_period_slots"`
	NewAccountFee            decimal.Decimal `mapstructure:"new_account_fee"`
	MaxRoundingSlack         decimal.Decimal `mapstructure:"max_rounding_slack"`
	RiskReductionThreshold   decimal.Decimal `mapstructure:"risk_reduction_threshold"`
	MaxCrankStalenessSlots   uint64          `mapstructure:"max_crank_staleness_slots"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads genesis config from a YAML file with env var overrides.
// Sensitive/deployment fields use env vars: PERC_ADMIN, PERC_ORACLE.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("PERC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if admin := os.Getenv("PERC_ADMIN"); admin != "" {
		cfg.Admin = admin
	}
	if oracle := os.Getenv("PERC_ORACLE"); oracle != "" {
		cfg.Market.Oracle = oracle
	}

	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Admin == "" {
		return fmt.Errorf("admin is required (set PERC_ADMIN)")
	}
	if c.Market.Oracle == "" {
		return fmt.Errorf("market.oracle is required (set PERC_ORACLE)")
	}
	if c.Market.UnitScale > 1_000_000_000 {
		return fmt.Errorf("market.unit_scale must be <= 1e9")
	}
	if c.Risk.MaintenanceMarginPct.GreaterThanOrEqual(c.Risk.InitialMarginPct) {
		return fmt.Errorf("risk.maintenance_margin_pct must be < risk.initial_margin_pct")
	}
	if c.Risk.InitialMarginPct.Sign() <= 0 {
		return fmt.Errorf("risk.initial_margin_pct must be > 0")
	}
	return nil
}

// bpsFromPct converts a human-authored percentage (e.g. 2.5 meaning
// 2.5%) into integer basis points, rounding to the nearest bps.
func bpsFromPct(pct decimal.Decimal) uint64 {
	bps := pct.Mul(decimal.NewFromInt(100)).Round(0)
	v, _ := strconv.ParseInt(bps.String(), 10, 64)
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// unitsFromDecimal converts a human-authored decimal amount into the
// integer units the engine operates on, rounding to the nearest whole unit.
func unitsFromDecimal(d decimal.Decimal) *big.Int {
	rounded := d.Round(0)
	v, ok := new(big.Int).SetString(rounded.String(), 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}
