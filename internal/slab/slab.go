// Package slab computes the persisted memory layout of a percolator
// market: a fixed header, the market configuration, and the risk engine
// state, laid out back-to-back in one contiguous region the same way the
// original engine's `constants` module does (MAGIC/VERSION header,
// align_up to the engine's natural alignment, then the engine body).
//
// Nothing here serializes engine internals byte-for-byte — internal/engine
// holds live *big.Int fields that have no fixed on-disk shape. What this
// package reproduces exactly is the layout arithmetic: header length,
// config length, engine alignment, and the resulting offsets and total
// slab length, which a host embedding this engine in a fixed memory
// region needs before it can even allocate the region.
package slab

import (
	"unsafe"

	"github.com/purpletrade/percolator-prog-sub000/pkg/types"
)

// HeaderLen and ConfigLen are the sizes of the two fixed-layout structs
// written ahead of the engine body.
var (
	HeaderLen = int(unsafe.Sizeof(types.SlabHeader{}))
	ConfigLen = int(unsafe.Sizeof(types.MarketConfig{}))
)

// EngineAlign is the natural alignment requirement of the account record,
// the widest-aligned type the engine body is built from.
var EngineAlign = int(unsafe.Alignof(types.Account{}))

// AlignUp rounds x up to the next multiple of a, matching the original
// engine's const fn align_up exactly (a must be a power of two).
func AlignUp(x, a int) int {
	return (x + a - 1) &^ (a - 1)
}

// EngineOffset is the byte offset at which the engine body begins: the
// header and config packed tightly, then padded up to EngineAlign.
func EngineOffset() int {
	return AlignUp(HeaderLen+ConfigLen, EngineAlign)
}

// AccountsOffset returns the byte offset of account slot idx within the
// accounts region, given the fixed per-account stride.
func AccountsOffset(idx int) int {
	return idx * AccountStride()
}

// AccountStride is the fixed per-slot size every account record occupies
// in the accounts region, aligned to the record's own alignment
// requirement so every slot starts on a natural boundary.
func AccountStride() int {
	size := int(unsafe.Sizeof(types.Account{}))
	return AlignUp(size, EngineAlign)
}

// AccountsLen is the total byte length of the fixed-size accounts region.
func AccountsLen() int {
	return AccountStride() * types.MaxAccounts
}

// SlabLen is the total byte length of the persisted region: header +
// config (padded to engine alignment) + the fixed accounts region.
func SlabLen() int {
	return EngineOffset() + AccountsLen()
}

// Layout is a snapshot of every computed offset/length, useful for a host
// that needs to validate an externally supplied memory region is large
// enough and correctly shaped before binding a RiskEngine onto it.
type Layout struct {
	HeaderLen     int
	ConfigLen     int
	EngineOffset  int
	AccountStride int
	AccountsLen   int
	SlabLen       int
}

// ComputeLayout returns the full computed layout.
func ComputeLayout() Layout {
	return Layout{
		HeaderLen:     HeaderLen,
		ConfigLen:     ConfigLen,
		EngineOffset:  EngineOffset(),
		AccountStride: AccountStride(),
		AccountsLen:   AccountsLen(),
		SlabLen:       SlabLen(),
	}
}
