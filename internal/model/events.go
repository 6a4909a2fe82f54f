package model

import "github.com/ethereum/go-ethereum/common"

// Event kinds written to the pool journal.
const (
	EventInitialize = "initialize"
	EventDeposit    = "deposit"
	EventWithdraw   = "withdraw"
	EventSwap       = "swap"
	EventLock       = "lock"
	EventUnlock     = "unlock"
)

// PoolEvent records one accepted pool operation.
type PoolEvent struct {
	Kind      string         `json:"kind"`
	Pool      common.Address `json:"pool"`
	Caller    common.Address `json:"caller"`
	Timestamp int64          `json:"timestamp"`

	Direction Direction `json:"direction,omitempty"`
	AmountX   uint64    `json:"amount_x,omitempty"`
	AmountY   uint64    `json:"amount_y,omitempty"`
	AmountIn  uint64    `json:"amount_in,omitempty"`
	AmountOut uint64    `json:"amount_out,omitempty"`
	LPAmount  uint64    `json:"lp_amount,omitempty"`

	ReserveX uint64 `json:"reserve_x"`
	ReserveY uint64 `json:"reserve_y"`
	Supply   uint64 `json:"supply"`
}
