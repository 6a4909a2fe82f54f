package amm

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"ammEngine/internal/model"
)

// PoolStore persists pool configurations.
type PoolStore interface {
	CreatePool(ctx context.Context, cfg model.PoolConfig) error
	GetPool(ctx context.Context, address common.Address) (model.PoolConfig, error)
	UpdatePool(ctx context.Context, cfg model.PoolConfig) error
	ListPools(ctx context.Context) ([]model.PoolConfig, error)
}

// MemoryStore is a process-local PoolStore.
type MemoryStore struct {
	mu    sync.RWMutex
	pools map[common.Address]model.PoolConfig
}

func NewMemoryStore(pools ...model.PoolConfig) *MemoryStore {
	s := &MemoryStore{pools: make(map[common.Address]model.PoolConfig, len(pools))}
	for _, p := range pools {
		s.pools[p.Address] = p
	}
	return s
}

func (s *MemoryStore) CreatePool(_ context.Context, cfg model.PoolConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pools[cfg.Address]; ok {
		return fmt.Errorf("%s: %w", cfg.Address, ErrPoolExists)
	}
	s.pools[cfg.Address] = cfg
	return nil
}

func (s *MemoryStore) GetPool(_ context.Context, address common.Address) (model.PoolConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.pools[address]
	if !ok {
		return model.PoolConfig{}, fmt.Errorf("%s: %w", address, ErrPoolNotFound)
	}
	return cfg, nil
}

func (s *MemoryStore) UpdatePool(_ context.Context, cfg model.PoolConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pools[cfg.Address]; !ok {
		return fmt.Errorf("%s: %w", cfg.Address, ErrPoolNotFound)
	}
	s.pools[cfg.Address] = cfg
	return nil
}

// ListPools returns pools ordered by address.
func (s *MemoryStore) ListPools(_ context.Context) ([]model.PoolConfig, error) {
	s.mu.RLock()
	out := make([]model.PoolConfig, 0, len(s.pools))
	for _, p := range s.pools {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address.Bytes(), out[j].Address.Bytes()) < 0
	})
	return out, nil
}
