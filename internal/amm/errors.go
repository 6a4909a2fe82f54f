package amm

import (
	"errors"
	"fmt"

	"ammEngine/internal/curve"
	"ammEngine/internal/ledger"
)

var (
	ErrInvalidFee          = errors.New("invalid fee")
	ErrZeroBalance         = errors.New("zero balance")
	ErrPoolLocked          = errors.New("pool locked")
	ErrOfferExpired        = errors.New("offer expired")
	ErrInvalidAuth         = errors.New("invalid authority")
	ErrInvalidPrecision    = errors.New("invalid precision")
	ErrOverflow            = errors.New("overflow")
	ErrUnderflow           = errors.New("underflow")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSlippageExceeded    = errors.New("slippage exceeded")

	ErrPoolNotFound      = errors.New("pool not found")
	ErrPoolExists        = errors.New("pool already exists")
	ErrIdenticalAssets   = errors.New("pool assets must differ")
	ErrInvalidDirection  = errors.New("invalid swap direction")
	ErrInvariantViolated = errors.New("pool invariant violated")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidFee, "invalid_fee"},
	{ErrZeroBalance, "zero_balance"},
	{ErrPoolLocked, "pool_locked"},
	{ErrOfferExpired, "offer_expired"},
	{ErrInvalidAuth, "invalid_auth"},
	{ErrInvalidPrecision, "invalid_precision"},
	{ErrOverflow, "overflow"},
	{ErrUnderflow, "underflow"},
	{ErrInsufficientBalance, "insufficient_balance"},
	{ErrSlippageExceeded, "slippage_exceeded"},
	{ErrPoolNotFound, "pool_not_found"},
	{ErrPoolExists, "pool_exists"},
	{ErrIdenticalAssets, "identical_assets"},
	{ErrInvalidDirection, "invalid_direction"},
	{ErrInvariantViolated, "invariant_violated"},
}

// Code returns a stable snake_case identifier for err, "ok" for nil and
// "internal" for errors outside the pool taxonomy.
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// curveError tags a curve failure with the matching pool error.
func curveError(err error) error {
	switch {
	case errors.Is(err, curve.ErrInvalidFee):
		return fmt.Errorf("%w: %w", ErrInvalidFee, err)
	case errors.Is(err, curve.ErrInvalidPrecision):
		return fmt.Errorf("%w: %w", ErrInvalidPrecision, err)
	case errors.Is(err, curve.ErrOverflow):
		return fmt.Errorf("%w: %w", ErrOverflow, err)
	case errors.Is(err, curve.ErrUnderflow):
		return fmt.Errorf("%w: %w", ErrUnderflow, err)
	case errors.Is(err, curve.ErrZeroBalance):
		return fmt.Errorf("%w: %w", ErrZeroBalance, err)
	case errors.Is(err, curve.ErrInsufficientBalance):
		return fmt.Errorf("%w: %w", ErrInsufficientBalance, err)
	default:
		return err
	}
}

// ledgerError tags a ledger failure with the matching pool error.
func ledgerError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return fmt.Errorf("%w: %w", ErrInsufficientBalance, err)
	case errors.Is(err, ledger.ErrOverflow):
		return fmt.Errorf("%w: %w", ErrOverflow, err)
	case errors.Is(err, ledger.ErrZeroAmount):
		return fmt.Errorf("%w: %w", ErrZeroBalance, err)
	default:
		return fmt.Errorf("apply movements: %w", err)
	}
}
