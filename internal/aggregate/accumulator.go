package aggregate

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ammEngine/internal/curve"
	"ammEngine/internal/model"
)

// Accumulator holds aggregate values for one pool window.
type Accumulator struct {
	Pool           common.Address
	FeeBasisPoints uint16
	WindowStart    int64
	WindowEnd      int64
	SwapCount      uint64
	DepositCount   uint64
	WithdrawCount  uint64
	VolumeX        *big.Int
	VolumeY        *big.Int
	FeeX           *big.Int
	FeeY           *big.Int
	LastTS         int64
	Close          model.PoolEvent
}

func NewAccumulator(pool common.Address, feeBps uint16, windowStart, windowEnd int64) *Accumulator {
	return &Accumulator{
		Pool:           pool,
		FeeBasisPoints: feeBps,
		WindowStart:    windowStart,
		WindowEnd:      windowEnd,
		VolumeX:        big.NewInt(0),
		VolumeY:        big.NewInt(0),
		FeeX:           big.NewInt(0),
		FeeY:           big.NewInt(0),
	}
}

// AddEvent folds one journal event into the window. Events that carry no
// reserve change are ignored.
func (a *Accumulator) AddEvent(event model.PoolEvent) {
	switch event.Kind {
	case model.EventSwap:
		a.applySwap(event)
	case model.EventDeposit:
		a.DepositCount++
	case model.EventWithdraw:
		a.WithdrawCount++
	default:
		return
	}
	if event.Timestamp >= a.LastTS {
		a.LastTS = event.Timestamp
		a.Close = event
	}
}

func (a *Accumulator) applySwap(event model.PoolEvent) {
	in := new(big.Int).SetUint64(event.AmountIn)
	out := new(big.Int).SetUint64(event.AmountOut)
	fee := feeFromAmount(event.AmountIn, a.FeeBasisPoints)

	if event.Direction == model.YToX {
		a.VolumeY.Add(a.VolumeY, in)
		a.VolumeX.Add(a.VolumeX, out)
		a.FeeY.Add(a.FeeY, fee)
	} else {
		a.VolumeX.Add(a.VolumeX, in)
		a.VolumeY.Add(a.VolumeY, out)
		a.FeeX.Add(a.FeeX, fee)
	}
	a.SwapCount++
}

// Stats renders the window for output.
func (a *Accumulator) Stats() WindowStats {
	closeX := new(big.Int).SetUint64(a.Close.ReserveX)
	closeY := new(big.Int).SetUint64(a.Close.ReserveY)
	feeRateX := computeRateFromInt(a.FeeX, closeX)
	feeRateY := computeRateFromInt(a.FeeY, closeY)
	window := uint64(a.WindowEnd - a.WindowStart)

	return WindowStats{
		Pool:          a.Pool,
		WindowStart:   a.WindowStart,
		WindowEnd:     a.WindowEnd,
		SwapCount:     a.SwapCount,
		DepositCount:  a.DepositCount,
		WithdrawCount: a.WithdrawCount,
		VolumeX:       a.VolumeX.String(),
		VolumeY:       a.VolumeY.String(),
		FeeX:          a.FeeX.String(),
		FeeY:          a.FeeY.String(),
		ReserveX:      a.Close.ReserveX,
		ReserveY:      a.Close.ReserveY,
		Supply:        a.Close.Supply,
		FeeRateX:      feeRateX,
		FeeRateY:      feeRateY,
		FeeAPRX:       computeAPR(feeRateX, window),
		FeeAPRY:       computeAPR(feeRateY, window),
	}
}

// feeFromAmount returns the input the pool kept as fee, priced the way the
// swap itself prices it. An out-of-range fee counts as zero.
func feeFromAmount(amountIn uint64, feeBps uint16) *big.Int {
	fee, err := curve.SwapFee(amountIn, feeBps)
	if err != nil {
		return big.NewInt(0)
	}
	return new(big.Int).SetUint64(fee)
}
