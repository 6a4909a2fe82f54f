// Package curve implements constant-product pool arithmetic. Every function is
// pure: identical inputs always produce identical outputs.
package curve

import "github.com/holiman/uint256"

const (
	// Precision is the decimal scaling exponent applied to share ratios.
	Precision uint8 = 6
	// MaxPrecision keeps 10^precision well inside 64 bits.
	MaxPrecision uint8 = 18

	// MaxFeeBasisPoints is 100%.
	MaxFeeBasisPoints uint16 = 10_000
)

// Amounts is a pair of asset amounts, ordered as the pool's X and Y assets.
type Amounts struct {
	X uint64 `json:"x"`
	Y uint64 `json:"y"`
}

// DepositAmounts returns the asset amounts required to mint lpAmount claim
// tokens at the current reserve ratio. The share and both amounts are
// truncated toward zero at the given precision.
func DepositAmounts(reserveX, reserveY, supply, lpAmount uint64, precision uint8) (Amounts, error) {
	unit, err := scale(precision)
	if err != nil {
		return Amounts{}, err
	}
	if supply == 0 {
		return Amounts{}, ErrZeroBalance
	}

	share, err := mulDiv(uint256.NewInt(lpAmount), unit, uint256.NewInt(supply), false)
	if err != nil {
		return Amounts{}, err
	}
	return proportional(reserveX, reserveY, share, unit)
}

// WithdrawAmounts returns the asset amounts released by burning lpAmount claim
// tokens. Amounts truncate, so x <= reserveX and y <= reserveY whenever
// lpAmount <= supply.
func WithdrawAmounts(reserveX, reserveY, supply, lpAmount uint64, precision uint8) (Amounts, error) {
	unit, err := scale(precision)
	if err != nil {
		return Amounts{}, err
	}
	if supply == 0 {
		return Amounts{}, ErrZeroBalance
	}
	if lpAmount > supply {
		return Amounts{}, ErrInsufficientBalance
	}

	share, err := mulDiv(uint256.NewInt(lpAmount), unit, uint256.NewInt(supply), false)
	if err != nil {
		return Amounts{}, err
	}
	return proportional(reserveX, reserveY, share, unit)
}

// SwapOutput returns the amount of the output asset paid for amountIn of the
// input asset. The fee is taken from the input before the constant-product
// formula is applied:
//
//	amountInEff = amountIn * (10000 - fee) / 10000
//	amountOut   = reserveOut - (reserveIn * reserveOut) / (reserveIn + amountInEff)
//
// The division rounds up, which keeps reserveIn*reserveOut from decreasing
// and guarantees amountOut < reserveOut.
func SwapOutput(reserveIn, reserveOut uint64, feeBasisPoints uint16, amountIn uint64) (uint64, error) {
	if feeBasisPoints > MaxFeeBasisPoints {
		return 0, ErrInvalidFee
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, ErrZeroBalance
	}

	effective, err := effectiveInput(amountIn, feeBasisPoints)
	if err != nil {
		return 0, err
	}

	in := uint256.NewInt(reserveIn)
	out := uint256.NewInt(reserveOut)

	denominator, overflow := new(uint256.Int).AddOverflow(in, effective)
	if overflow {
		return 0, ErrOverflow
	}
	remaining, err := mulDiv(in, out, denominator, true)
	if err != nil {
		return 0, err
	}

	amountOut, underflow := new(uint256.Int).SubOverflow(out, remaining)
	if underflow {
		return 0, ErrUnderflow
	}
	return toUint64(amountOut)
}

// SwapFee returns the part of amountIn a swap keeps as fee, the difference
// between amountIn and the effective input SwapOutput prices.
func SwapFee(amountIn uint64, feeBasisPoints uint16) (uint64, error) {
	effective, err := effectiveInput(amountIn, feeBasisPoints)
	if err != nil {
		return 0, err
	}
	return amountIn - effective.Uint64(), nil
}

func effectiveInput(amountIn uint64, feeBasisPoints uint16) (*uint256.Int, error) {
	if feeBasisPoints > MaxFeeBasisPoints {
		return nil, ErrInvalidFee
	}
	return mulDiv(
		uint256.NewInt(amountIn),
		uint256.NewInt(uint64(MaxFeeBasisPoints-feeBasisPoints)),
		uint256.NewInt(uint64(MaxFeeBasisPoints)),
		false,
	)
}

func proportional(reserveX, reserveY uint64, share, unit *uint256.Int) (Amounts, error) {
	x, err := mulDiv(uint256.NewInt(reserveX), share, unit, false)
	if err != nil {
		return Amounts{}, err
	}
	y, err := mulDiv(uint256.NewInt(reserveY), share, unit, false)
	if err != nil {
		return Amounts{}, err
	}

	var amounts Amounts
	if amounts.X, err = toUint64(x); err != nil {
		return Amounts{}, err
	}
	if amounts.Y, err = toUint64(y); err != nil {
		return Amounts{}, err
	}
	return amounts, nil
}

func scale(precision uint8) (*uint256.Int, error) {
	if precision == 0 || precision > MaxPrecision {
		return nil, ErrInvalidPrecision
	}
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(precision))), nil
}

// mulDiv computes a*b/d in 256 bits.
func mulDiv(a, b, d *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrZeroBalance
	}
	product, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}

	quotient := new(uint256.Int).Div(product, d)
	if roundUp && !new(uint256.Int).Mod(product, d).IsZero() {
		if _, overflow := quotient.AddOverflow(quotient, uint256.NewInt(1)); overflow {
			return nil, ErrOverflow
		}
	}
	return quotient, nil
}

func toUint64(v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, ErrOverflow
	}
	return v.Uint64(), nil
}
