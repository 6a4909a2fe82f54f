package model

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Derivation prefixes for pool-scoped addresses.
var (
	poolPrefix    = []byte("config")
	vaultPrefix   = []byte("auth")
	lpAssetPrefix = []byte("liquidity")
)

// LPDecimals is the display precision of claim tokens.
const LPDecimals = 6

// PoolAddress derives the pool identity from its seed.
func PoolAddress(seed uint64) common.Address {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seed)
	return derive(poolPrefix, buf[:])
}

// VaultAddress derives the custody account that holds a pool's reserves.
func VaultAddress(pool common.Address) common.Address {
	return derive(vaultPrefix, pool.Bytes())
}

// LPAssetAddress derives the claim-token asset of a pool.
func LPAssetAddress(pool common.Address) common.Address {
	return derive(lpAssetPrefix, pool.Bytes())
}

func derive(prefix, data []byte) common.Address {
	return common.BytesToAddress(crypto.Keccak256(prefix, data)[12:])
}
