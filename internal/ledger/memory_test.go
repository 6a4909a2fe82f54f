package ledger

import (
	"context"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	assetA = common.HexToAddress("0xaaaa000000000000000000000000000000000001")
	assetB = common.HexToAddress("0xbbbb000000000000000000000000000000000002")
	alice  = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func TestMemoryMintTransferBurn(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	m := NewMemory()

	req.NoError(m.Apply(ctx, []Movement{Mint(assetA, alice, 100)}))
	req.NoError(m.Apply(ctx, []Movement{Transfer(assetA, alice, bob, 40)}))
	req.NoError(m.Apply(ctx, []Movement{Burn(assetA, bob, 10)}))

	balance, err := m.Balance(ctx, assetA, alice)
	req.NoError(err)
	req.Equal(uint64(60), balance)

	balance, err = m.Balance(ctx, assetA, bob)
	req.NoError(err)
	req.Equal(uint64(30), balance)

	supply, err := m.Supply(ctx, assetA)
	req.NoError(err)
	req.Equal(uint64(90), supply)
}

func TestMemoryApplyIsAtomic(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	m := NewMemory()
	req.NoError(m.Apply(ctx, []Movement{Mint(assetA, alice, 50), Mint(assetB, alice, 5)}))

	err := m.Apply(ctx, []Movement{
		Transfer(assetA, alice, bob, 50),
		Transfer(assetB, alice, bob, 6),
	})
	req.ErrorIs(err, ErrInsufficientBalance)

	balance, _ := m.Balance(ctx, assetA, alice)
	req.Equal(uint64(50), balance)
	balance, _ = m.Balance(ctx, assetA, bob)
	req.Zero(balance)
}

func TestMemoryApplySeesEarlierMovements(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.Apply(ctx, []Movement{
		Mint(assetA, alice, 10),
		Transfer(assetA, alice, bob, 10),
		Burn(assetA, bob, 4),
	})
	require.NoError(t, err)

	supply, _ := m.Supply(ctx, assetA)
	require.Equal(t, uint64(6), supply)
}

func TestMemoryRejectsInvalidMovements(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.ErrorIs(t, m.Apply(ctx, []Movement{Mint(assetA, alice, 0)}), ErrZeroAmount)
	require.ErrorIs(t, m.Apply(ctx, []Movement{Transfer(assetA, alice, alice, 1)}), ErrInvalidMovement)
	require.ErrorIs(t, m.Apply(ctx, []Movement{{Asset: assetA, Amount: 1}}), ErrInvalidMovement)
	require.ErrorIs(t, m.Apply(ctx, []Movement{Burn(assetA, alice, 1)}), ErrInsufficientBalance)

	require.NoError(t, m.Apply(ctx, []Movement{Mint(assetA, alice, math.MaxUint64)}))
	require.ErrorIs(t, m.Apply(ctx, []Movement{Mint(assetA, bob, 1)}), ErrOverflow)
}

func TestMemorySnapshotRestore(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)

	m := NewMemory()
	req.NoError(m.Apply(ctx, []Movement{
		Mint(assetB, bob, 3),
		Mint(assetA, alice, 7),
		Mint(assetA, bob, 2),
	}))

	snap := m.Snapshot()
	req.Len(snap, 3)
	req.Equal(assetA, snap[0].Asset)

	restored := NewMemory()
	req.NoError(restored.Restore(snap))
	req.Equal(snap, restored.Snapshot())

	supply, _ := restored.Supply(ctx, assetA)
	req.Equal(uint64(9), supply)

	req.ErrorIs(restored.Restore([]Balance{
		{Asset: assetA, Owner: alice, Amount: 1},
		{Asset: assetA, Owner: alice, Amount: 2},
	}), ErrInvalidMovement)
}
