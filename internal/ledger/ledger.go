// Package ledger defines the asset-movement port used by the pool engine and
// an in-memory implementation of it.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrZeroAmount          = errors.New("zero amount")
	ErrOverflow            = errors.New("balance overflow")
	ErrInvalidMovement     = errors.New("invalid movement")
)

// Kind is the type of a single asset movement.
type Kind uint8

const (
	KindTransfer Kind = iota + 1
	KindMint
	KindBurn
)

func (k Kind) String() string {
	switch k {
	case KindTransfer:
		return "transfer"
	case KindMint:
		return "mint"
	case KindBurn:
		return "burn"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Movement is one transfer, mint or burn of an asset. Mints leave From empty
// and burns leave To empty.
type Movement struct {
	Kind   Kind           `json:"kind"`
	Asset  common.Address `json:"asset"`
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount uint64         `json:"amount"`
}

func Transfer(asset, from, to common.Address, amount uint64) Movement {
	return Movement{Kind: KindTransfer, Asset: asset, From: from, To: to, Amount: amount}
}

func Mint(asset, to common.Address, amount uint64) Movement {
	return Movement{Kind: KindMint, Asset: asset, To: to, Amount: amount}
}

func Burn(asset, from common.Address, amount uint64) Movement {
	return Movement{Kind: KindBurn, Asset: asset, From: from, Amount: amount}
}

// Validate checks the shape of a movement without looking at balances.
func (m Movement) Validate() error {
	if m.Amount == 0 {
		return fmt.Errorf("%s %s: %w", m.Kind, m.Asset, ErrZeroAmount)
	}
	switch m.Kind {
	case KindTransfer:
		if m.From == m.To {
			return fmt.Errorf("transfer to self: %w", ErrInvalidMovement)
		}
	case KindMint, KindBurn:
	default:
		return fmt.Errorf("%s: %w", m.Kind, ErrInvalidMovement)
	}
	return nil
}

// Ledger reads balances and applies batches of movements. Apply is atomic:
// either every movement in the batch takes effect or none does.
type Ledger interface {
	Balance(ctx context.Context, asset, owner common.Address) (uint64, error)
	Supply(ctx context.Context, asset common.Address) (uint64, error)
	Apply(ctx context.Context, movements []Movement) error
}
