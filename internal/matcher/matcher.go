// Package matcher implements the matcher ABI (spec §4.3): the 67-byte call
// frame a trade issues to an LP's registered matcher, and the validation
// of the 64-byte return prefix it gets back. Encoding is hand-rolled
// fixed-offset little-endian, the same style the wire-format code in the
// teacher's exchange layer uses for HMAC message framing — no third-party
// binary-framing library fits a bit-exact, externally dictated layout
// better than encoding/binary.
package matcher

import (
	"encoding/binary"
	"math/big"

	"github.com/purpletrade/percolator-prog-sub000/internal/fixedmath"
	"github.com/purpletrade/percolator-prog-sub000/pkg/types"
)

// CallSize and ReturnSize are the bit-exact frame sizes spec §4.3 mandates.
const (
	CallSize   = 67
	ReturnSize = 64
)

// Return flag bits (spec §4.3).
const (
	FlagValid     uint32 = 1 << 0
	FlagPartialOK uint32 = 1 << 1
	FlagRejected  uint32 = 1 << 2
)

// CallFrame is the decoded form of the 67-byte call buffer issued to a matcher.
type CallFrame struct {
	Tag           uint8
	ReqID         uint64
	LPIdx         uint16
	LPAccountID   uint64
	OraclePriceE6 uint64
	ReqSize       *big.Int
}

// EncodeCall serializes a CallFrame into the 67-byte wire layout spec §4.3
// defines. Returns false if ReqSize does not fit in i128.
func EncodeCall(f CallFrame) ([CallSize]byte, bool) {
	var buf [CallSize]byte
	buf[0] = f.Tag // off 0: tag = 0
	binary.LittleEndian.PutUint64(buf[1:9], f.ReqID)
	binary.LittleEndian.PutUint16(buf[9:11], f.LPIdx)
	binary.LittleEndian.PutUint64(buf[11:19], f.LPAccountID)
	binary.LittleEndian.PutUint64(buf[19:27], f.OraclePriceE6)

	sizeBytes, ok := fixedmath.EncodeI128LE(f.ReqSize)
	if !ok {
		return buf, false
	}
	copy(buf[27:43], sizeBytes[:])
	// off 43..67: zero padding, already zero-valued.
	return buf, true
}

// ReturnFrame is the decoded form of the 64-byte return prefix a matcher
// hands back.
type ReturnFrame struct {
	ABIVersion    uint32
	Flags         uint32
	ExecPriceE6   uint64
	ExecSize      *big.Int
	EchoedReqID   uint64
	EchoedLPAccID uint64
	EchoedOracle  uint64
}

// DecodeReturn parses the 64-byte return buffer into a ReturnFrame. It
// performs no validation beyond well-formedness of the bytes themselves;
// semantic checks live in Validate.
func DecodeReturn(buf [ReturnSize]byte) ReturnFrame {
	var sizeBytes [16]byte
	copy(sizeBytes[:], buf[16:32])
	return ReturnFrame{
		ABIVersion:    binary.LittleEndian.Uint32(buf[0:4]),
		Flags:         binary.LittleEndian.Uint32(buf[4:8]),
		ExecPriceE6:   binary.LittleEndian.Uint64(buf[8:16]),
		ExecSize:      fixedmath.DecodeI128LE(sizeBytes),
		EchoedReqID:   binary.LittleEndian.Uint64(buf[32:40]),
		EchoedLPAccID: binary.LittleEndian.Uint64(buf[40:48]),
		EchoedOracle:  binary.LittleEndian.Uint64(buf[48:56]),
	}
}

// Validate implements validate_matcher_return (spec §4.3): rejects a
// matcher's return unless every echo matches the original call, the
// version and VALID flag are correct, the fill does not exceed the
// requested size or flip sign, the price is nonzero, and the REJECTED
// flag is absent.
func Validate(ret ReturnFrame, expectedReqID, expectedLPAccountID, expectedOracle uint64, requestedSize *big.Int) types.ErrorCode {
	if ret.ABIVersion != uint32(types.MatcherABIVersion) {
		return types.ErrMatcherVersionMismatch
	}
	if ret.Flags&FlagRejected != 0 {
		return types.ErrMatcherReturnInvalid
	}
	if ret.Flags&FlagValid == 0 {
		return types.ErrMatcherReturnInvalid
	}
	if ret.EchoedReqID != expectedReqID || ret.EchoedLPAccID != expectedLPAccountID || ret.EchoedOracle != expectedOracle {
		return types.ErrMatcherReturnInvalid
	}
	if ret.ExecPriceE6 == 0 {
		return types.ErrMatcherReturnInvalid
	}

	absExec := new(big.Int).Abs(ret.ExecSize)
	absReq := new(big.Int).Abs(requestedSize)
	if absExec.Cmp(absReq) > 0 {
		return types.ErrMatcherReturnInvalid
	}
	if ret.ExecSize.Sign() != 0 && requestedSize.Sign() != 0 && ret.ExecSize.Sign() != requestedSize.Sign() {
		return types.ErrMatcherReturnInvalid
	}
	if absExec.Cmp(absReq) < 0 && ret.Flags&FlagPartialOK == 0 {
		return types.ErrMatcherReturnInvalid
	}
	return types.ErrNone
}

// MatchFunc is the pluggable matcher callback a trade execution invokes
// with the encoded call frame, returning the raw 64-byte return prefix.
// The wrapper (out of core scope) is responsible for performing the
// actual cross-program call; the core only encodes, invokes, and validates.
type MatchFunc func(call [CallSize]byte) [ReturnSize]byte
