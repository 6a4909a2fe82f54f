package curve

import (
	"math/big"
	"testing"

	"pgregory.net/rapid"
)

func bigU(v uint64) *big.Int { return new(big.Int).SetUint64(v) }

func TestPropertySwapNeverShrinksProduct(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reserveIn := rapid.Uint64Range(1, 1<<62).Draw(t, "reserveIn")
		reserveOut := rapid.Uint64Range(1, 1<<62).Draw(t, "reserveOut")
		amountIn := rapid.Uint64Range(1, 1<<62).Draw(t, "amountIn")
		fee := rapid.Uint16Range(0, MaxFeeBasisPoints).Draw(t, "fee")

		out, err := SwapOutput(reserveIn, reserveOut, fee, amountIn)
		if err != nil {
			t.Fatalf("swap: %v", err)
		}
		if out >= reserveOut {
			t.Fatalf("output %d drains reserve %d", out, reserveOut)
		}

		before := new(big.Int).Mul(bigU(reserveIn), bigU(reserveOut))
		after := new(big.Int).Mul(
			new(big.Int).Add(bigU(reserveIn), bigU(amountIn)),
			bigU(reserveOut-out),
		)
		if after.Cmp(before) < 0 {
			t.Fatalf("k decreased: %s -> %s", before, after)
		}

		again, err := SwapOutput(reserveIn, reserveOut, fee, amountIn)
		if err != nil || again != out {
			t.Fatalf("not deterministic: %d vs %d (%v)", out, again, err)
		}
	})
}

// The gap between the exact proportional amount and the returned one is
// bounded by reserve/10^p + 1 token, scaled here by supply to stay integral.
func roundingBound(reserve, supply uint64) *big.Int {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(Precision)), nil)
	bound := new(big.Int).Mul(bigU(reserve), bigU(supply))
	return bound.Add(bound, new(big.Int).Mul(bigU(supply), unit))
}

func TestPropertyDepositWithinShare(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reserveX := rapid.Uint64Range(1, 1<<40).Draw(t, "reserveX")
		reserveY := rapid.Uint64Range(1, 1<<40).Draw(t, "reserveY")
		supply := rapid.Uint64Range(1, 1<<40).Draw(t, "supply")
		lp := rapid.Uint64Range(1, supply).Draw(t, "lp")

		amounts, err := DepositAmounts(reserveX, reserveY, supply, lp, Precision)
		if err != nil {
			t.Fatalf("deposit: %v", err)
		}
		checkTruncatedShare(t, amounts, reserveX, reserveY, supply, lp)
	})
}

func TestPropertyWithdrawWithinShare(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reserveX := rapid.Uint64Range(1, 1<<40).Draw(t, "reserveX")
		reserveY := rapid.Uint64Range(1, 1<<40).Draw(t, "reserveY")
		supply := rapid.Uint64Range(1, 1<<40).Draw(t, "supply")
		lp := rapid.Uint64Range(1, supply).Draw(t, "lp")

		amounts, err := WithdrawAmounts(reserveX, reserveY, supply, lp, Precision)
		if err != nil {
			t.Fatalf("withdraw: %v", err)
		}
		if amounts.X > reserveX || amounts.Y > reserveY {
			t.Fatalf("withdraw %+v exceeds reserves %d/%d", amounts, reserveX, reserveY)
		}
		checkTruncatedShare(t, amounts, reserveX, reserveY, supply, lp)
	})
}

// checkTruncatedShare asserts each amount is at most the exact proportional
// share reserve*lp/supply and short of it by no more than the rounding bound.
func checkTruncatedShare(t *rapid.T, amounts Amounts, reserveX, reserveY, supply, lp uint64) {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(Precision)), nil)
	for _, side := range []struct {
		name    string
		got     uint64
		reserve uint64
	}{
		{"x", amounts.X, reserveX},
		{"y", amounts.Y, reserveY},
	} {
		paid := new(big.Int).Mul(bigU(side.got), bigU(supply))
		owed := new(big.Int).Mul(bigU(side.reserve), bigU(lp))
		if paid.Cmp(owed) > 0 {
			t.Fatalf("%s: paid %s above owed %s", side.name, paid, owed)
		}
		gap := new(big.Int).Mul(new(big.Int).Sub(owed, paid), unit)
		if gap.Cmp(roundingBound(side.reserve, supply)) > 0 {
			t.Fatalf("%s: rounding gap too large", side.name)
		}
	}
}
