package model

import "github.com/ethereum/go-ethereum/common"

// PoolConfig is the persistent record of one constant-product pool.
// AssetX, AssetY and Seed never change after creation.
type PoolConfig struct {
	Seed           uint64         `json:"seed"`
	Authority      common.Address `json:"authority"`
	AssetX         common.Address `json:"asset_x"`
	AssetY         common.Address `json:"asset_y"`
	FeeBasisPoints uint16         `json:"fee_basis_points"`
	Locked         bool           `json:"locked"`
	// Funded is set by the first successful deposit and never cleared after.
	Funded         bool           `json:"funded"`

	Address common.Address `json:"address"`
	Vault   common.Address `json:"vault"`
	LPAsset common.Address `json:"lp_asset"`
}

// NewPoolConfig returns an unlocked pool with its addresses derived from seed.
func NewPoolConfig(seed uint64, authority, assetX, assetY common.Address, feeBasisPoints uint16) PoolConfig {
	pool := PoolAddress(seed)
	return PoolConfig{
		Seed:           seed,
		Authority:      authority,
		AssetX:         assetX,
		AssetY:         assetY,
		FeeBasisPoints: feeBasisPoints,
		Address:        pool,
		Vault:          VaultAddress(pool),
		LPAsset:        LPAssetAddress(pool),
	}
}

// Legs returns the assets a swap direction reads and writes, as (in, out).
func (p PoolConfig) Legs(dir Direction) (in, out common.Address) {
	if dir == YToX {
		return p.AssetY, p.AssetX
	}
	return p.AssetX, p.AssetY
}

// PoolState is a point-in-time view of a pool and its balances.
type PoolState struct {
	Config   PoolConfig `json:"config"`
	ReserveX uint64     `json:"reserve_x"`
	ReserveY uint64     `json:"reserve_y"`
	Supply   uint64     `json:"supply"`
}

// Bootstrapping reports whether the pool has never been funded.
func (s PoolState) Bootstrapping() bool {
	return !s.Config.Funded && s.Supply == 0 && s.ReserveX == 0 && s.ReserveY == 0
}
