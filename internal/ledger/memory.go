package ledger

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type balanceKey struct {
	asset common.Address
	owner common.Address
}

// Balance is one non-zero holding, used for snapshots.
type Balance struct {
	Asset  common.Address `json:"asset"`
	Owner  common.Address `json:"owner"`
	Amount uint64         `json:"amount"`
}

// Memory is a process-local Ledger.
type Memory struct {
	mu       sync.RWMutex
	balances map[balanceKey]uint64
	supply   map[common.Address]uint64
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[balanceKey]uint64),
		supply:   make(map[common.Address]uint64),
	}
}

func (m *Memory) Balance(_ context.Context, asset, owner common.Address) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[balanceKey{asset: asset, owner: owner}], nil
}

func (m *Memory) Supply(_ context.Context, asset common.Address) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.supply[asset], nil
}

// Apply stages every movement against a copy of the touched entries and
// commits only when the whole batch succeeds.
func (m *Memory) Apply(ctx context.Context, movements []Movement) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[balanceKey]uint64)
	stagedSupply := make(map[common.Address]uint64)
	balance := func(k balanceKey) uint64 {
		if v, ok := staged[k]; ok {
			return v
		}
		return m.balances[k]
	}
	supply := func(asset common.Address) uint64 {
		if v, ok := stagedSupply[asset]; ok {
			return v
		}
		return m.supply[asset]
	}

	for i, mv := range movements {
		if err := mv.Validate(); err != nil {
			return fmt.Errorf("movement %d: %w", i, err)
		}

		if mv.Kind == KindTransfer || mv.Kind == KindBurn {
			from := balanceKey{asset: mv.Asset, owner: mv.From}
			have := balance(from)
			if have < mv.Amount {
				return fmt.Errorf("movement %d: %s %s has %d, needs %d: %w",
					i, mv.From, mv.Asset, have, mv.Amount, ErrInsufficientBalance)
			}
			staged[from] = have - mv.Amount
		}
		if mv.Kind == KindTransfer || mv.Kind == KindMint {
			to := balanceKey{asset: mv.Asset, owner: mv.To}
			have := balance(to)
			if have > math.MaxUint64-mv.Amount {
				return fmt.Errorf("movement %d: credit %s: %w", i, mv.To, ErrOverflow)
			}
			staged[to] = have + mv.Amount
		}

		switch mv.Kind {
		case KindMint:
			s := supply(mv.Asset)
			if s > math.MaxUint64-mv.Amount {
				return fmt.Errorf("movement %d: supply of %s: %w", i, mv.Asset, ErrOverflow)
			}
			stagedSupply[mv.Asset] = s + mv.Amount
		case KindBurn:
			stagedSupply[mv.Asset] = supply(mv.Asset) - mv.Amount
		}
	}

	for k, v := range staged {
		if v == 0 {
			delete(m.balances, k)
			continue
		}
		m.balances[k] = v
	}
	for asset, v := range stagedSupply {
		if v == 0 {
			delete(m.supply, asset)
			continue
		}
		m.supply[asset] = v
	}
	return nil
}

// Snapshot returns every non-zero balance ordered by asset then owner.
func (m *Memory) Snapshot() []Balance {
	m.mu.RLock()
	out := make([]Balance, 0, len(m.balances))
	for k, v := range m.balances {
		out = append(out, Balance{Asset: k.asset, Owner: k.owner, Amount: v})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].Asset.Bytes(), out[j].Asset.Bytes()); c != 0 {
			return c < 0
		}
		return bytes.Compare(out[i].Owner.Bytes(), out[j].Owner.Bytes()) < 0
	})
	return out
}

// Restore replaces the ledger contents. Supplies are rebuilt from balances.
func (m *Memory) Restore(balances []Balance) error {
	next := make(map[balanceKey]uint64, len(balances))
	supply := make(map[common.Address]uint64)
	for _, b := range balances {
		if b.Amount == 0 {
			continue
		}
		k := balanceKey{asset: b.Asset, owner: b.Owner}
		if _, dup := next[k]; dup {
			return fmt.Errorf("duplicate balance %s/%s: %w", b.Asset, b.Owner, ErrInvalidMovement)
		}
		if supply[b.Asset] > math.MaxUint64-b.Amount {
			return fmt.Errorf("supply of %s: %w", b.Asset, ErrOverflow)
		}
		next[k] = b.Amount
		supply[b.Asset] += b.Amount
	}

	m.mu.Lock()
	m.balances = next
	m.supply = supply
	m.mu.Unlock()
	return nil
}
