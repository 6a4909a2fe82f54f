// Package aggregate rolls pool journal events up into fixed time windows.
package aggregate

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"ammEngine/internal/model"
)

// WindowStats summarizes one pool over one window. Fee rates are fees over
// the closing reserve of the same asset; APRs annualize that rate.
type WindowStats struct {
	Pool          common.Address `json:"pool"`
	WindowStart   int64          `json:"window_start"`
	WindowEnd     int64          `json:"window_end"`
	SwapCount     uint64         `json:"swap_count"`
	DepositCount  uint64         `json:"deposit_count"`
	WithdrawCount uint64         `json:"withdraw_count"`
	VolumeX       string         `json:"volume_x"`
	VolumeY       string         `json:"volume_y"`
	FeeX          string         `json:"fee_x"`
	FeeY          string         `json:"fee_y"`
	ReserveX      uint64         `json:"reserve_x"`
	ReserveY      uint64         `json:"reserve_y"`
	Supply        uint64         `json:"supply"`
	FeeRateX      *string        `json:"fee_rate_x,omitempty"`
	FeeRateY      *string        `json:"fee_rate_y,omitempty"`
	FeeAPRX       *string        `json:"fee_apr_x,omitempty"`
	FeeAPRY       *string        `json:"fee_apr_y,omitempty"`
}

type windowKey struct {
	pool  common.Address
	start int64
}

// Windows groups events by pool and window. Pools missing from pools are
// aggregated with a zero fee.
func Windows(events []model.PoolEvent, pools []model.PoolConfig, windowSeconds int64) ([]WindowStats, error) {
	if windowSeconds <= 0 {
		return nil, fmt.Errorf("window seconds must be > 0")
	}
	fees := make(map[common.Address]uint16, len(pools))
	for _, p := range pools {
		fees[p.Address] = p.FeeBasisPoints
	}

	accumulators := make(map[windowKey]*Accumulator)
	for _, event := range events {
		switch event.Kind {
		case model.EventSwap, model.EventDeposit, model.EventWithdraw:
		default:
			continue
		}
		start := windowStart(event.Timestamp, windowSeconds)
		key := windowKey{pool: event.Pool, start: start}
		acc := accumulators[key]
		if acc == nil {
			acc = NewAccumulator(event.Pool, fees[event.Pool], start, start+windowSeconds)
			accumulators[key] = acc
		}
		acc.AddEvent(event)
	}

	out := make([]WindowStats, 0, len(accumulators))
	for _, acc := range accumulators {
		out = append(out, acc.Stats())
	}
	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].Pool.Bytes(), out[j].Pool.Bytes()); c != 0 {
			return c < 0
		}
		return out[i].WindowStart < out[j].WindowStart
	})
	return out, nil
}
