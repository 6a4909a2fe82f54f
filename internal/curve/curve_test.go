package curve

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDepositAmountsProportional(t *testing.T) {
	req := require.New(t)

	amounts, err := DepositAmounts(1_000, 1_000, 1_000, 500, Precision)
	req.NoError(err)
	req.Equal(Amounts{X: 500, Y: 500}, amounts)

	amounts, err = DepositAmounts(1_100, 910, 1_000, 1_000, Precision)
	req.NoError(err)
	req.Equal(Amounts{X: 1_100, Y: 910}, amounts)
}

func TestDepositAmountsTruncate(t *testing.T) {
	req := require.New(t)

	// 1 of 3 claim tokens: share 333333, so 1000 * 0.333333 truncates to 333.
	amounts, err := DepositAmounts(1_000, 1_000, 3, 1, Precision)
	req.NoError(err)
	req.Equal(Amounts{X: 333, Y: 333}, amounts)

	// 1 of 1000 claim tokens is worth 1.001 X and 0.999 Y.
	amounts, err = DepositAmounts(1_001, 999, 1_000, 1, Precision)
	req.NoError(err)
	req.Equal(Amounts{X: 1, Y: 0}, amounts)
}

func TestWithdrawAmountsTruncate(t *testing.T) {
	req := require.New(t)

	amounts, err := WithdrawAmounts(1_001, 999, 1_000, 1, Precision)
	req.NoError(err)
	req.Equal(Amounts{X: 1, Y: 0}, amounts)

	amounts, err = WithdrawAmounts(1_100, 910, 1_000, 500, Precision)
	req.NoError(err)
	req.Equal(Amounts{X: 550, Y: 455}, amounts)

	amounts, err = WithdrawAmounts(1_100, 910, 1_000, 1_000, Precision)
	req.NoError(err)
	req.Equal(Amounts{X: 1_100, Y: 910}, amounts)
}

func TestLiquidityAmountsErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   func() (Amounts, error)
		err  error
	}{
		{
			name: "deposit zero supply",
			fn:   func() (Amounts, error) { return DepositAmounts(10, 10, 0, 1, Precision) },
			err:  ErrZeroBalance,
		},
		{
			name: "withdraw zero supply",
			fn:   func() (Amounts, error) { return WithdrawAmounts(10, 10, 0, 1, Precision) },
			err:  ErrZeroBalance,
		},
		{
			name: "withdraw more than supply",
			fn:   func() (Amounts, error) { return WithdrawAmounts(10, 10, 5, 6, Precision) },
			err:  ErrInsufficientBalance,
		},
		{
			name: "precision zero",
			fn:   func() (Amounts, error) { return DepositAmounts(10, 10, 10, 1, 0) },
			err:  ErrInvalidPrecision,
		},
		{
			name: "precision too large",
			fn:   func() (Amounts, error) { return WithdrawAmounts(10, 10, 10, 1, MaxPrecision+1) },
			err:  ErrInvalidPrecision,
		},
		{
			name: "deposit result exceeds uint64",
			fn:   func() (Amounts, error) { return DepositAmounts(math.MaxUint64, 1, 1, 2, Precision) },
			err:  ErrOverflow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSwapOutput(t *testing.T) {
	req := require.New(t)

	// 1000 - ceil(1_000_000 / 1099) = 1000 - 910
	out, err := SwapOutput(1_000, 1_000, 30, 100)
	req.NoError(err)
	req.Equal(uint64(90), out)

	out, err = SwapOutput(1_000_000, 2_000_000, 0, 1_000)
	req.NoError(err)
	req.Equal(uint64(1_998), out)

	// The whole input is taken as fee.
	out, err = SwapOutput(1_000, 1_000, MaxFeeBasisPoints, 100)
	req.NoError(err)
	req.Zero(out)

	out, err = SwapOutput(math.MaxUint64, math.MaxUint64, 30, math.MaxUint64)
	req.NoError(err)
	req.Less(out, uint64(math.MaxUint64))
}

func TestSwapOutputErrors(t *testing.T) {
	_, err := SwapOutput(1_000, 1_000, MaxFeeBasisPoints+1, 100)
	require.ErrorIs(t, err, ErrInvalidFee)

	_, err = SwapOutput(0, 1_000, 30, 100)
	require.ErrorIs(t, err, ErrZeroBalance)

	_, err = SwapOutput(1_000, 0, 30, 100)
	require.ErrorIs(t, err, ErrZeroBalance)
}

func TestSwapFee(t *testing.T) {
	tests := []struct {
		amountIn uint64
		fee      uint16
		want     uint64
	}{
		{100, 30, 1},
		{10_000, 30, 30},
		{1, 30, 1},
		{100, 0, 0},
		{100, MaxFeeBasisPoints, 100},
	}
	for _, tt := range tests {
		got, err := SwapFee(tt.amountIn, tt.fee)
		require.NoError(t, err)
		require.Equal(t, tt.want, got, "amountIn=%d fee=%d", tt.amountIn, tt.fee)
	}

	_, err := SwapFee(1, MaxFeeBasisPoints+1)
	require.ErrorIs(t, err, ErrInvalidFee)
}

func TestSwapOutputNeverDrains(t *testing.T) {
	out, err := SwapOutput(1, 1_000_000, 0, math.MaxUint64)
	require.NoError(t, err)
	require.Equal(t, uint64(999_999), out)
}
