package engine

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/purpletrade/percolator-prog-sub000/internal/fixedmath"
	"github.com/purpletrade/percolator-prog-sub000/internal/matcher"
	"github.com/purpletrade/percolator-prog-sub000/pkg/types"
)

func defaultParams() types.RiskParams {
	return types.RiskParams{
		InitialMarginBps:         1_000, // 10%
		MaintenanceMarginBps:     500,   // 5%
		LiquidationBufferBps:     1_000,
		LiquidationFeeBps:        50,
		LiquidationFeeCap:        big.NewInt(1_000_000_000),
		MinLiquidationAbs:        big.NewInt(1),
		TradingFeeBps:            10,
		MaintenanceFeePerSlotBps: 1,
		WarmupPeriodSlots:        10,
		NewAccountFee:            big.NewInt(0),
		MaxRoundingSlack:         big.NewInt(10),
		RiskReductionThreshold:   big.NewInt(1_000),
		MaxCrankStalenessSlots:   1_000,
	}
}

func defaultMarket() types.MarketConfig {
	return types.MarketConfig{
		MaxStaleness:  100,
		ConfFilterBps: 100,
		UnitScale:     1,
	}
}

func newTestEngine(t *testing.T) *RiskEngine {
	t.Helper()
	e, err := New(defaultParams(), defaultMarket(), [32]byte{1}, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

// decodeCallForTest mirrors matcher.EncodeCall's layout in reverse, for a
// test matcher implementation to read the request off the wire.
func decodeCallForTest(buf [matcher.CallSize]byte) matcher.CallFrame {
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

// encodeReturnForTest mirrors matcher.DecodeReturn's layout, for a test
// matcher implementation to produce a return buffer.
func encodeReturnForTest(reqID, lpAccID, oracle, execPriceE6 uint64, execSize *big.Int, flags uint32) [matcher.ReturnSize]byte {
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

// fullFillMatcher fills the requested size exactly at the echoed price.
func fullFillMatcher() matcher.MatchFunc {
	return func(call [matcher.CallSize]byte) [matcher.ReturnSize]byte {
		c := decodeCallForTest(call)
		return encodeReturnForTest(c.ReqID, c.LPAccountID, c.OraclePriceE6, c.OraclePriceE6, c.ReqSize, matcher.FlagValid)
	}
}

// partialFillMatcher fills only fraction/denominator of the requested size.
func partialFillMatcher(fraction, denominator int64) matcher.MatchFunc {
	return func(call [matcher.CallSize]byte) [matcher.ReturnSize]byte {
		c := decodeCallForTest(call)
		filled := new(big.Int).Mul(c.ReqSize, big.NewInt(fraction))
		filled.Quo(filled, big.NewInt(denominator))
		return encodeReturnForTest(c.ReqID, c.LPAccountID, c.OraclePriceE6, c.OraclePriceE6, filled, matcher.FlagValid|matcher.FlagPartialOK)
	}
}

func rejectingMatcher() matcher.MatchFunc {
	return func(call [matcher.CallSize]byte) [matcher.ReturnSize]byte {
		c := decodeCallForTest(call)
		return encodeReturnForTest(c.ReqID, c.LPAccountID, c.OraclePriceE6, 0, big.NewInt(0), matcher.FlagRejected)
	}
}
