package matcher

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/purpletrade/percolator-prog-sub000/pkg/types"
)

func TestEncodeCallLayout(t *testing.T) {
	t.Parallel()

	f := CallFrame{
		Tag:           0,
		ReqID:         7,
		LPIdx:         3,
		LPAccountID:   42,
		OraclePriceE6: 100_000_000,
		ReqSize:       big.NewInt(250),
	}
	buf, ok := EncodeCall(f)
	if !ok {
		t.Fatal("unexpected encode failure")
	}
	if buf[0] != 0 {
		t.Errorf("tag byte = %d, want 0", buf[0])
	}
	if got := binary.LittleEndian.Uint64(buf[1:9]); got != 7 {
		t.Errorf("req_id = %d, want 7", got)
	}
	if got := binary.LittleEndian.Uint16(buf[9:11]); got != 3 {
		t.Errorf("lp_idx = %d, want 3", got)
	}
	if got := binary.LittleEndian.Uint64(buf[11:19]); got != 42 {
		t.Errorf("lp_account_id = %d, want 42", got)
	}
	if got := binary.LittleEndian.Uint64(buf[19:27]); got != 100_000_000 {
		t.Errorf("oracle_price_e6 = %d, want 100000000", got)
	}
	for i := 43; i < CallSize; i++ {
		if buf[i] != 0 {
			t.Fatalf("expected zero padding at offset %d, got %d", i, buf[i])
		}
	}
}

func buildReturn(t *testing.T, abiVersion, flags uint32, execPrice uint64, execSize *big.Int, reqID, lpAccID, oracle uint64) [ReturnSize]byte {
	t.Helper()
	var buf [ReturnSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], abiVersion)
	binary.LittleEndian.PutUint32(buf[4:8], flags)
	binary.LittleEndian.PutUint64(buf[8:16], execPrice)

	enc, ok := encodeI128ForTest(execSize)
	if !ok {
		t.Fatalf("could not encode exec size %v", execSize)
	}
	copy(buf[16:32], enc[:])
	binary.LittleEndian.PutUint64(buf[32:40], reqID)
	binary.LittleEndian.PutUint64(buf[40:48], lpAccID)
	binary.LittleEndian.PutUint64(buf[48:56], oracle)
	return buf
}

// encodeI128ForTest mirrors fixedmath.EncodeI128LE for small test values
// without importing the package twice; reuses DecodeReturn's own decode
// path indirectly through the round trip test below.
func encodeI128ForTest(v *big.Int) ([16]byte, bool) {
	var out [16]byte
	neg := v.Sign() < 0
	var mag *big.Int
	if neg {
		mag = new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), 128), v)
	} else {
		mag = new(big.Int).Set(v)
	}
	b := mag.Bytes()
	for i := 0; i < len(b) && i < 16; i++ {
		out[15-i] = b[len(b)-1-i]
	}
	return out, true
}

func TestDecodeReturnRoundTrip(t *testing.T) {
	t.Parallel()

	buf := buildReturn(t, 1, FlagValid, 99_000_000, big.NewInt(-50), 7, 42, 100_000_000)
	ret := DecodeReturn(buf)
	if ret.ABIVersion != 1 {
		t.Errorf("abi_version = %d, want 1", ret.ABIVersion)
	}
	if ret.Flags != FlagValid {
		t.Errorf("flags = %d, want %d", ret.Flags, FlagValid)
	}
	if ret.ExecPriceE6 != 99_000_000 {
		t.Errorf("exec_price_e6 = %d, want 99000000", ret.ExecPriceE6)
	}
	if ret.ExecSize.Int64() != -50 {
		t.Errorf("exec_size = %v, want -50", ret.ExecSize)
	}
	if ret.EchoedReqID != 7 || ret.EchoedLPAccID != 42 || ret.EchoedOracle != 100_000_000 {
		t.Error("echoed fields mismatch")
	}
}

func TestValidateAcceptsExactFill(t *testing.T) {
	t.Parallel()

	buf := buildReturn(t, 1, FlagValid, 100_000_000, big.NewInt(100), 1, 2, 100_000_000)
	ret := DecodeReturn(buf)
	if code := Validate(ret, 1, 2, 100_000_000, big.NewInt(100)); code != types.ErrNone {
		t.Fatalf("expected ErrNone, got %v", code)
	}
}

func TestValidateAcceptsPartialFillWithFlag(t *testing.T) {
	t.Parallel()

	buf := buildReturn(t, 1, FlagValid|FlagPartialOK, 100_000_000, big.NewInt(60), 1, 2, 100_000_000)
	ret := DecodeReturn(buf)
	if code := Validate(ret, 1, 2, 100_000_000, big.NewInt(100)); code != types.ErrNone {
		t.Fatalf("expected ErrNone for valid partial fill, got %v", code)
	}
}

func TestValidateRejectsPartialWithoutFlag(t *testing.T) {
	t.Parallel()

	buf := buildReturn(t, 1, FlagValid, 100_000_000, big.NewInt(60), 1, 2, 100_000_000)
	ret := DecodeReturn(buf)
	if code := Validate(ret, 1, 2, 100_000_000, big.NewInt(100)); code == types.ErrNone {
		t.Fatal("expected rejection for underfill without PARTIAL_OK")
	}
}

// TestValidateRejectsSignFlipP5 is scenario S5: matcher returns
// exec_size = -requested_size, which must fail MatcherAbi validation.
func TestValidateRejectsSignFlipP5(t *testing.T) {
	t.Parallel()

	buf := buildReturn(t, 1, FlagValid, 100_000_000, big.NewInt(-100), 1, 2, 100_000_000)
	ret := DecodeReturn(buf)
	if code := Validate(ret, 1, 2, 100_000_000, big.NewInt(100)); code != types.ErrMatcherReturnInvalid {
		t.Fatalf("expected ErrMatcherReturnInvalid for sign flip, got %v", code)
	}
}

func TestValidateRejectsWrongVersion(t *testing.T) {
	t.Parallel()

	buf := buildReturn(t, 2, FlagValid, 100_000_000, big.NewInt(100), 1, 2, 100_000_000)
	ret := DecodeReturn(buf)
	if code := Validate(ret, 1, 2, 100_000_000, big.NewInt(100)); code != types.ErrMatcherVersionMismatch {
		t.Fatalf("expected version mismatch, got %v", code)
	}
}

func TestValidateRejectsMissingValidFlag(t *testing.T) {
	t.Parallel()

	buf := buildReturn(t, 1, 0, 100_000_000, big.NewInt(100), 1, 2, 100_000_000)
	ret := DecodeReturn(buf)
	if code := Validate(ret, 1, 2, 100_000_000, big.NewInt(100)); code != types.ErrMatcherReturnInvalid {
		t.Fatalf("expected invalid-return error, got %v", code)
	}
}

func TestValidateRejectsEchoMismatch(t *testing.T) {
	t.Parallel()

	buf := buildReturn(t, 1, FlagValid, 100_000_000, big.NewInt(100), 999, 2, 100_000_000)
	ret := DecodeReturn(buf)
	if code := Validate(ret, 1, 2, 100_000_000, big.NewInt(100)); code != types.ErrMatcherReturnInvalid {
		t.Fatalf("expected invalid-return error for req_id echo mismatch, got %v", code)
	}
}

func TestValidateRejectsZeroPrice(t *testing.T) {
	t.Parallel()

	buf := buildReturn(t, 1, FlagValid, 0, big.NewInt(100), 1, 2, 100_000_000)
	ret := DecodeReturn(buf)
	if code := Validate(ret, 1, 2, 100_000_000, big.NewInt(100)); code != types.ErrMatcherReturnInvalid {
		t.Fatalf("expected invalid-return error for zero price, got %v", code)
	}
}

func TestValidateRejectsOverfill(t *testing.T) {
	t.Parallel()

	buf := buildReturn(t, 1, FlagValid, 100_000_000, big.NewInt(150), 1, 2, 100_000_000)
	ret := DecodeReturn(buf)
	if code := Validate(ret, 1, 2, 100_000_000, big.NewInt(100)); code != types.ErrMatcherReturnInvalid {
		t.Fatalf("expected invalid-return error for overfill, got %v", code)
	}
}

func TestValidateRejectsExplicitRejectedFlag(t *testing.T) {
	t.Parallel()

	buf := buildReturn(t, 1, FlagValid|FlagRejected, 100_000_000, big.NewInt(100), 1, 2, 100_000_000)
	ret := DecodeReturn(buf)
	if code := Validate(ret, 1, 2, 100_000_000, big.NewInt(100)); code != types.ErrMatcherReturnInvalid {
		t.Fatalf("expected invalid-return error for REJECTED flag, got %v", code)
	}
}
