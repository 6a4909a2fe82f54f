package aggregate

import (
	"math/big"
	"time"
)

const ratioScale = 18

func computeRateFromInt(fee *big.Int, reserve *big.Int) *string {
	if fee == nil || fee.Sign() == 0 || reserve == nil || reserve.Sign() == 0 {
		return nil
	}
	rate := new(big.Rat).SetFrac(fee, reserve).FloatString(ratioScale)
	return &rate
}

func computeAPR(feeRate *string, windowSeconds uint64) *string {
	if feeRate == nil || windowSeconds == 0 {
		return nil
	}
	rat, ok := new(big.Rat).SetString(*feeRate)
	if !ok {
		return nil
	}
	yearSeconds := big.NewRat(int64(365*24*time.Hour/time.Second), 1)
	window := new(big.Rat).SetInt(new(big.Int).SetUint64(windowSeconds))
	apr := new(big.Rat).Mul(rat, yearSeconds)
	apr.Quo(apr, window)
	val := apr.FloatString(ratioScale)
	return &val
}

func windowStart(ts int64, windowSeconds int64) int64 {
	return ts - ts%windowSeconds
}
