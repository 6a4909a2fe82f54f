package postgres

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"ammEngine/internal/amm"
	"ammEngine/internal/ledger"
	"ammEngine/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("AMM_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("AMM_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate(ctx))
	return store
}

// uniqueAddress keeps rows from separate runs apart in a shared database.
func uniqueAddress(n int64) common.Address {
	v := new(big.Int).Lsh(big.NewInt(time.Now().UnixNano()), 16)
	return common.BigToAddress(v.Add(v, big.NewInt(n)))
}

func TestNewStoreRequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	require.Error(t, err)
}

func TestStorePools(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	req := require.New(t)

	seed := uint64(time.Now().UnixNano())
	cfg := model.NewPoolConfig(seed, uniqueAddress(1), uniqueAddress(2), uniqueAddress(3), 30)

	req.NoError(store.CreatePool(ctx, cfg))
	req.ErrorIs(store.CreatePool(ctx, cfg), amm.ErrPoolExists)

	got, err := store.GetPool(ctx, cfg.Address)
	req.NoError(err)
	req.Equal(cfg, got)

	cfg.Locked = true
	cfg.Funded = true
	req.NoError(store.UpdatePool(ctx, cfg))
	got, err = store.GetPool(ctx, cfg.Address)
	req.NoError(err)
	req.True(got.Locked)
	req.True(got.Funded)

	_, err = store.GetPool(ctx, model.PoolAddress(seed+1))
	req.ErrorIs(err, amm.ErrPoolNotFound)

	pools, err := store.ListPools(ctx)
	req.NoError(err)
	req.Contains(pools, got)
}

func TestStoreApply(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	req := require.New(t)

	asset, lp := uniqueAddress(10), uniqueAddress(11)
	alice, vault := uniqueAddress(12), uniqueAddress(13)

	req.NoError(store.Apply(ctx, []ledger.Movement{ledger.Mint(asset, alice, 100)}))
	req.NoError(store.Apply(ctx, []ledger.Movement{
		ledger.Transfer(asset, alice, vault, 60),
		ledger.Mint(lp, alice, 5),
	}))

	balance, err := store.Balance(ctx, asset, vault)
	req.NoError(err)
	req.Equal(uint64(60), balance)

	supply, err := store.Supply(ctx, lp)
	req.NoError(err)
	req.Equal(uint64(5), supply)

	err = store.Apply(ctx, []ledger.Movement{
		ledger.Burn(lp, alice, 5),
		ledger.Transfer(asset, vault, alice, 61),
	})
	req.ErrorIs(err, ledger.ErrInsufficientBalance)

	supply, err = store.Supply(ctx, lp)
	req.NoError(err)
	req.Equal(uint64(5), supply)

	req.ErrorIs(store.Apply(ctx, []ledger.Movement{ledger.Mint(asset, alice, 0)}), ledger.ErrZeroAmount)
}

func TestStoreBacksService(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	req := require.New(t)

	svc, err := amm.NewService(amm.Config{}, store, store, nil, nil)
	req.NoError(err)

	authority, user := uniqueAddress(20), uniqueAddress(21)
	x, y := uniqueAddress(22), uniqueAddress(23)
	cfg, err := svc.Initialize(ctx, amm.InitializeRequest{
		Seed: uint64(time.Now().UnixNano()), FeeBasisPoints: 30, Authority: authority, AssetX: x, AssetY: y,
	})
	req.NoError(err)

	req.NoError(store.Apply(ctx, []ledger.Movement{ledger.Mint(x, user, 1_100), ledger.Mint(y, user, 1_000)}))
	expiration := time.Now().Unix() + 60

	_, err = svc.Deposit(ctx, amm.DepositRequest{
		Pool: cfg.Address, Caller: user, LPAmount: 1_000, MaxX: 1_000, MaxY: 1_000, Expiration: expiration,
	})
	req.NoError(err)

	res, err := svc.Swap(ctx, amm.SwapRequest{
		Pool: cfg.Address, Caller: user, Direction: model.XToY, AmountIn: 100, MinOut: 90, Expiration: expiration,
	})
	req.NoError(err)
	req.Equal(uint64(90), res.AmountOut)

	state, err := svc.State(ctx, cfg.Address)
	req.NoError(err)
	req.Equal(uint64(1_100), state.ReserveX)
	req.Equal(uint64(910), state.ReserveY)
}
