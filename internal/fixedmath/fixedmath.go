// Package fixedmath provides i128/u128 range checks, range-checked
// add/sub/mul-div helpers, little-endian i128/u64 encoding for the matcher
// ABI, and conversions between math/big.Int and github.com/holiman/uint256.
// The engine keeps every wide quantity (capital, PnL, position size,
// funding index, vault and aggregates) as a math/big.Int and does its
// arithmetic on those directly; of this package it uses only the i128
// encoding, through the matcher ABI.
package fixedmath

import (
	"math/big"

	"github.com/holiman/uint256"
)

// I128Min and I128Max bound the signed 128-bit range the persisted slab
// commits to on disk; any big.Int outside this range is a programming
// error or a malicious matcher return, never a legitimate value.
var (
	I128Max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	I128Min = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	U128Max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

// InRangeI128 reports whether v fits in a signed 128-bit two's complement word.
func InRangeI128(v *big.Int) bool {
	return v.Cmp(I128Min) >= 0 && v.Cmp(I128Max) <= 0
}

// InRangeU128 reports whether v fits in an unsigned 128-bit word.
func InRangeU128(v *big.Int) bool {
	return v.Sign() >= 0 && v.Cmp(U128Max) <= 0
}

// AddChecked returns a+b and an overflow flag against the i128 range.
func AddChecked(a, b *big.Int) (sum *big.Int, overflow bool) {
	sum = new(big.Int).Add(a, b)
	return sum, !InRangeI128(sum)
}

// SubChecked returns a-b and an overflow flag against the i128 range.
func SubChecked(a, b *big.Int) (diff *big.Int, overflow bool) {
	diff = new(big.Int).Sub(a, b)
	return diff, !InRangeI128(diff)
}

// MulDivChecked computes floor(a*b/d) using unbounded big.Int intermediates
// (so the a*b multiply never overflows) and then range-checks the final
// result against i128. d must be non-zero; callers hold that invariant
// structurally (divisors here are always scale constants or bps denominators).
func MulDivChecked(a, b, d *big.Int) (result *big.Int, overflow bool) {
	num := new(big.Int).Mul(a, b)
	result = new(big.Int).Quo(num, d)
	return result, !InRangeI128(result)
}

// U256FromBigInt converts a nonnegative big.Int into a uint256.Int,
// clamping is never performed: callers must range-check with InRangeU128
// first. Returns nil if v is negative or exceeds 256 bits (never a valid
// input in this engine, but checked rather than silently truncated).
func U256FromBigInt(v *big.Int) *uint256.Int {
	if v.Sign() < 0 {
		return nil
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil
	}
	return u
}

// BigIntFromU256 converts a uint256.Int back to the big.Int representation
// used throughout the account and aggregate fields.
func BigIntFromU256(v *uint256.Int) *big.Int {
	return v.ToBig()
}

// EncodeI128LE writes v as a 16-byte little-endian two's complement word,
// the layout the matcher call/return frames and the persisted slab use for
// every signed field (spec §4.3, §6).
func EncodeI128LE(v *big.Int) ([16]byte, bool) {
	var out [16]byte
	if !InRangeI128(v) {
		return out, false
	}
	var mag *big.Int
	neg := v.Sign() < 0
	if neg {
		// Two's complement: 2^128 + v for negative v.
		mag = new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), 128), v)
	} else {
		mag = new(big.Int).Set(v)
	}
	b := mag.Bytes() // big-endian, no leading zeros
	for i := 0; i < len(b) && i < 16; i++ {
		out[15-i] = b[len(b)-1-i]
	}
	return out, true
}

// DecodeI128LE reads a 16-byte little-endian two's complement word back
// into a signed big.Int.
func DecodeI128LE(in [16]byte) *big.Int {
	var be [16]byte
	for i := 0; i < 16; i++ {
		be[15-i] = in[i]
	}
	mag := new(big.Int).SetBytes(be[:])
	if be[0]&0x80 != 0 {
		// Top bit set: value is negative. Subtract 2^128.
		mag.Sub(mag, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	return mag
}

// EncodeU64LE writes v as an 8-byte little-endian word.
func EncodeU64LE(v uint64) [8]byte {
	var out [8]byte
	for i := 0; i < 8; i++ {
		out[i] = byte(v >> (8 * i))
	}
	return out
}

// DecodeU64LE reads an 8-byte little-endian word.
func DecodeU64LE(in [8]byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(in[i]) << (8 * i)
	}
	return v
}
