// Package types defines the shared vocabulary for the risk engine: the
// account record, market parameters, error codes, and the wire layout
// constants that the matcher ABI and persisted slab depend on.
//
// This package has no dependency on internal/engine or any other internal
// package, so it can be imported by the matcher ABI, the authorization
// helpers, and the engine itself without import cycles.
package types

import (
	"fmt"
	"math/big"
)

// MaxAccounts is the compile-time size of the accounts slab. It is a
// constant, not a configuration value: the engine is one contiguous,
// statically sized memory region and never grows at runtime.
const MaxAccounts = 64

// PermissionlessCallerIdx is the sentinel account index used by a
// permissionless keeper crank invocation (no caller account required).
const PermissionlessCallerIdx uint16 = 0xFFFF

// Kind discriminates the two live account variants. A fixed-layout record
// is used for both; kind-specific fields are zero-valued when unused.
type Kind int8

const (
	KindEmpty Kind = iota
	KindUser
	KindLP
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindLP:
		return "lp"
	default:
		return "empty"
	}
}

// ErrorCode is a closed set of engine-level failure reasons. It satisfies
// the error interface directly so call sites can return it without an
// extra wrapping type.
type ErrorCode int32

const (
	ErrNone ErrorCode = iota
	ErrSlabFull
	ErrAccountNotFound
	ErrWrongKind
	ErrNotOwner
	ErrNotAdmin
	ErrAdminBurned
	ErrMatcherIdentityMismatch
	ErrMatcherShapeInvalid
	ErrMatcherReturnInvalid
	ErrMatcherVersionMismatch
	ErrInsufficientMargin
	ErrInsufficientCapital
	ErrWithdrawLocked
	ErrStaleOracle
	ErrOracleConfTooWide
	ErrGateActive
	ErrNonceMismatch
	ErrOverflow
	ErrUnderflow
	ErrDustBelowMin
	ErrInvalidCrankCaller
	ErrCrankStale
	ErrConservationViolated
	ErrZeroTradeSize
	ErrInvalidParams
)

var errorCodeText = map[ErrorCode]string{
	ErrNone:                    "ok",
	ErrSlabFull:                "accounts slab is full",
	ErrAccountNotFound:         "account not found",
	ErrWrongKind:               "account kind mismatch",
	ErrNotOwner:                "caller is not the account owner",
	ErrNotAdmin:                "caller is not the admin",
	ErrAdminBurned:             "admin authority has been burned",
	ErrMatcherIdentityMismatch: "matcher program/context does not match LP registration",
	ErrMatcherShapeInvalid:     "matcher call accounts shape invalid",
	ErrMatcherReturnInvalid:    "matcher return frame invalid",
	ErrMatcherVersionMismatch:  "matcher ABI version mismatch",
	ErrInsufficientMargin:      "insufficient margin for requested trade",
	ErrInsufficientCapital:     "insufficient capital",
	ErrWithdrawLocked:          "withdrawal locked by warmup period",
	ErrStaleOracle:             "oracle price is stale",
	ErrOracleConfTooWide:       "oracle confidence interval too wide",
	ErrGateActive:              "risk reduction gate is active",
	ErrNonceMismatch:           "nonce mismatch",
	ErrOverflow:                "arithmetic overflow",
	ErrUnderflow:               "arithmetic underflow",
	ErrDustBelowMin:            "position below minimum liquidation threshold",
	ErrInvalidCrankCaller:      "crank caller not authorized",
	ErrCrankStale:              "crank has not been run recently enough",
	ErrConservationViolated:    "conservation invariant violated",
	ErrZeroTradeSize:           "trade size must be non-zero",
	ErrInvalidParams:           "invalid risk parameters",
}

func (e ErrorCode) Error() string {
	if s, ok := errorCodeText[e]; ok {
		return s
	}
	return fmt.Sprintf("unknown error code %d", int32(e))
}

// Account is the fixed-layout record for either a user or an LP. Every
// slot in the engine's accounts array has this same shape; Kind
// discriminates how it's used, so aggregates walk one homogeneous array
// instead of two type-specific ones.
type Account struct {
	Kind  Kind
	Owner [32]byte

	// Capital is settled, withdrawable integer units (u128 semantics).
	Capital *big.Int
	// PnL is unsettled profit/loss in units (i128 semantics). Negative PnL
	// is realized into Capital before any non-trade op touches the account.
	PnL *big.Int
	// ReservedPnL is the portion of positive PnL already realized into
	// Capital but still subject to the withdrawal warmup period.
	ReservedPnL *big.Int
	// PositionSize is the signed position in contracts (i128 semantics).
	PositionSize *big.Int
	// EntryPriceE6 is the volume-weighted average entry price, e6 fixed point.
	EntryPriceE6 uint64
	// FundingIndex is the last-seen global funding index for this account.
	FundingIndex *big.Int

	FeeCredits  *big.Int
	LastFeeSlot uint64

	// LastDepositSlot anchors PnL warmup: positive PnL above ReservedPnL is
	// only withdrawable once current_slot >= LastDepositSlot + WarmupPeriodSlots.
	LastDepositSlot uint64

	// LP-only fields below. Zero-valued on User accounts.
	MatcherProgram [32]byte
	MatcherContext [32]byte
	AccountNonce   uint64 // monotone nonce, replay protection for matcher calls
	MakerFeeBps    uint64
}

// NewEmptyAccount returns a zero-valued record for a freshly cleared or
// freshly allocated slot. Every big.Int field is pre-allocated at zero so
// callers never need a nil check before arithmetic.
func NewEmptyAccount() Account {
	return Account{
		Kind:         KindEmpty,
		Capital:      big.NewInt(0),
		PnL:          big.NewInt(0),
		ReservedPnL:  big.NewInt(0),
		PositionSize: big.NewInt(0),
		FundingIndex: big.NewInt(0),
		FeeCredits:   big.NewInt(0),
	}
}

// IsEmptyAccount reports whether an account satisfies every GC predicate
// from spec §4.7 step 6: the zero fields plus a funding index that has
// caught up with the global index, so no settlement is owed on touch.
func (a *Account) IsEmptyAccount(globalFundingIndex *big.Int) bool {
	return a.Capital.Sign() == 0 &&
		a.PnL.Sign() == 0 &&
		a.PositionSize.Sign() == 0 &&
		a.ReservedPnL.Sign() == 0 &&
		a.FeeCredits.Sign() == 0 &&
		a.FundingIndex.Cmp(globalFundingIndex) == 0
}

// RiskParams are the market-wide parameters supplied at genesis and
// queried by every engine operation. No engine method changes them:
// RiskEngine.SetRiskThreshold replaces the engine's own
// RiskReductionThreshold, which starts as a copy of the value here.
type RiskParams struct {
	InitialMarginBps         uint64
	MaintenanceMarginBps     uint64
	LiquidationBufferBps     uint64
	LiquidationFeeBps        uint64
	LiquidationFeeCap        *big.Int
	MinLiquidationAbs        *big.Int
	TradingFeeBps            uint64
	MaintenanceFeePerSlotBps uint64
	WarmupPeriodSlots        uint64
	NewAccountFee            *big.Int
	MaxRoundingSlack         *big.Int
	RiskReductionThreshold   *big.Int
	MaxCrankStalenessSlots   uint64
}

// Validate checks the structural constraints the engine assumes hold for
// the lifetime of a market: margin ordering and non-nil big.Int fields.
func (p *RiskParams) Validate() error {
	if p.MaintenanceMarginBps >= p.InitialMarginBps {
		return ErrInvalidParams
	}
	if p.LiquidationFeeCap == nil || p.MinLiquidationAbs == nil ||
		p.NewAccountFee == nil || p.MaxRoundingSlack == nil ||
		p.RiskReductionThreshold == nil {
		return ErrInvalidParams
	}
	return nil
}

// MarketConfig mirrors the persisted slab's market configuration block:
// mint/oracle identifiers, staleness tolerance, and the scaled-unit policy.
type MarketConfig struct {
	Mint          [32]byte
	Oracle        [32]byte
	MaxStaleness  uint64
	ConfFilterBps uint64
	Invert        bool
	UnitScale     uint32 // 0 disables scaling; otherwise in [1, 1e9]
}

// SlabHeader is the fixed header written ahead of MarketConfig and the
// RiskEngine in the persisted slab layout (see internal/slab).
type SlabHeader struct {
	Magic             uint64
	Version           uint32
	Admin             [32]byte
	AdminBurned       bool
	DustBase          uint64
	LastThrUpdateSlot uint64
	CurrentSlot       uint64
}

// SlabMagic identifies a percolator slab ("PERCOLAT" read as an 8-byte
// big-endian ASCII value), matching the original engine's on-disk constant.
const SlabMagic uint64 = 0x504552434f4c4154

// SlabVersion is the current persisted-layout version.
const SlabVersion uint32 = 1

// MatcherABIVersion is the abi_version a matcher return frame must carry
// to pass validation (spec §4.3); the call frame carries no version.
const MatcherABIVersion uint8 = 1
