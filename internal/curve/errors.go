package curve

import "errors"

var (
	ErrInvalidPrecision    = errors.New("invalid precision")
	ErrInvalidFee          = errors.New("invalid fee amount")
	ErrOverflow            = errors.New("overflow")
	ErrUnderflow           = errors.New("underflow")
	ErrZeroBalance         = errors.New("zero balance")
	ErrInsufficientBalance = errors.New("insufficient balance")
)
