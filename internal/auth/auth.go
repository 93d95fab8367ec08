// Package auth implements the pure authorization and decision helpers
// spec §4.8 requires: identity checks, PDA-key matching, and the trade/
// crank decision functions a wrapper composes to reach a Proceed/Reject
// verdict. Every function here is pure (no engine state, no I/O) so a
// formal verifier — or a plain unit test — can reason about wrapper/core
// coupling independent of execution.
package auth

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// Identity is a 32-byte opaque account identifier — matches
// pkg/types.Account.Owner and the on-chain program's pubkey representation.
type Identity = [32]byte

// OwnerOK reports whether signer authorizes an operation on an account
// owned by accountOwner.
func OwnerOK(accountOwner, signer Identity) bool {
	return accountOwner == signer
}

// AdminOK reports whether signer is the current admin. A zeroed admin
// field means the admin authority has been permanently burned: no signer,
// including the zero identity itself, is ever authorized once burned.
func AdminOK(headerAdmin, signer Identity) bool {
	if headerAdmin == ([32]byte{}) {
		return false
	}
	return headerAdmin == signer
}

// MatcherIdentityOK reports whether the program/context pair supplied at
// call time matches the pair an LP registered at creation, binding a
// trade's cross-program call to the expected matcher (spec §4.3, §4.8).
func MatcherIdentityOK(lpMatcherProgram, lpMatcherContext, suppliedProgram, suppliedContext Identity) bool {
	return lpMatcherProgram == suppliedProgram && lpMatcherContext == suppliedContext
}

// PDAKeyMatches reports whether a supplied program-derived-address key
// matches the expected one, by plain byte comparison (DerivePDA below is
// the Keccak256-based derivation).
func PDAKeyMatches(expected, supplied Identity) bool {
	return bytes.Equal(expected[:], supplied[:])
}

// DerivePDA computes a deterministic derived key from a seed and a
// discriminator, mirroring the hash-and-compare shape a PDA derivation
// uses on-chain (out of core scope; exposed here so the core's pure
// decision helpers can be exercised without the wrapper).
func DerivePDA(seed []byte, discriminator byte) Identity {
	h := crypto.Keccak256(seed, []byte{discriminator})
	var out Identity
	copy(out[:], h)
	return out
}

// CrankAuthorized reports whether a crank invocation with a concrete
// caller index (not the permissionless sentinel) is authorized: the
// caller must own the account it names.
func CrankAuthorized(accountOwner, signer Identity) bool {
	return OwnerOK(accountOwner, signer)
}

// TradeAuthorized reports whether both legs of a trade are authorized:
// the user signer must own the user account and the LP signer must own
// the LP account.
func TradeAuthorized(userOwner, userSigner, lpOwner, lpSigner Identity) bool {
	return OwnerOK(userOwner, userSigner) && OwnerOK(lpOwner, lpSigner)
}

// TradeCPIDecision is the variant result decide_trade_cpi returns.
type TradeCPIDecision struct {
	Proceed bool
	Reason  string
}

// DecideTradeCPI composes the identity and authorization checks a
// CPI-initiated trade requires: the caller must own the user account, and
// the matcher program/context supplied by the CPI must match the LP's
// registration.
func DecideTradeCPI(userOwner, callerSigner, lpMatcherProgram, lpMatcherContext, cpiProgram, cpiContext Identity) TradeCPIDecision {
	if !OwnerOK(userOwner, callerSigner) {
		return TradeCPIDecision{Proceed: false, Reason: "not owner"}
	}
	if !MatcherIdentityOK(lpMatcherProgram, lpMatcherContext, cpiProgram, cpiContext) {
		return TradeCPIDecision{Proceed: false, Reason: "matcher identity mismatch"}
	}
	return TradeCPIDecision{Proceed: true}
}

// TradeNoCPIDecision is the variant result decide_trade_nocpi returns.
type TradeNoCPIDecision struct {
	Proceed bool
	Reason  string
}

// DecideTradeNoCPI composes the authorization check for a trade executed
// without a CPI dispatch (e.g. a locally-resolved matcher): both the user
// and the LP signer must own their respective accounts.
func DecideTradeNoCPI(userOwner, userSigner, lpOwner, lpSigner Identity) TradeNoCPIDecision {
	if !TradeAuthorized(userOwner, userSigner, lpOwner, lpSigner) {
		return TradeNoCPIDecision{Proceed: false, Reason: "not authorized"}
	}
	return TradeNoCPIDecision{Proceed: true}
}

// GateActive reports whether the risk-reduction gate is currently active:
// insurance at or below the configured threshold forbids any trade that
// would strictly increase aggregate LP risk (spec §4.4 step 4, P8).
func GateActive(insuranceFund, riskReductionThreshold *big.Int) bool {
	return insuranceFund.Cmp(riskReductionThreshold) <= 0
}

// DecisionNonce returns the next nonce for a matcher-bound account given
// whether the call succeeded, implementing I6: nonce_on_success(n) = n+1,
// nonce_on_failure(n) = n.
func DecisionNonce(current uint64, success bool) uint64 {
	if success {
		return current + 1
	}
	return current
}

// NonceOnSuccess and NonceOnFailure are named aliases for DecisionNonce's
// two branches, matching the exact function names spec §4.8 names for
// independent verification.
func NonceOnSuccess(n uint64) uint64 { return n + 1 }
func NonceOnFailure(n uint64) uint64 { return n }
