package postgres

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ammEngine/internal/amm"
	"ammEngine/internal/ledger"
	"ammEngine/internal/model"
)

//go:embed schema.sql
var schema string

// Store provides Postgres persistence for pool records and asset balances.
// It implements both amm.PoolStore and ledger.Ledger.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ amm.PoolStore = (*Store)(nil)
	_ ledger.Ledger = (*Store)(nil)
)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables the store needs.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) CreatePool(ctx context.Context, cfg model.PoolConfig) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO amm_pools (
			pool_address, seed, authority, asset_x, asset_y, fee_bps, locked, funded, vault, lp_asset, created_at, updated_at
		) VALUES ($1, $2::numeric, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		ON CONFLICT (pool_address) DO NOTHING
	`,
		cfg.Address.Hex(),
		strconv.FormatUint(cfg.Seed, 10),
		cfg.Authority.Hex(),
		cfg.AssetX.Hex(),
		cfg.AssetY.Hex(),
		int32(cfg.FeeBasisPoints),
		cfg.Locked,
		cfg.Funded,
		cfg.Vault.Hex(),
		cfg.LPAsset.Hex(),
	)
	if err != nil {
		return fmt.Errorf("insert pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", cfg.Address, amm.ErrPoolExists)
	}
	return nil
}

const poolColumns = `seed::text, authority, asset_x, asset_y, fee_bps, locked, funded`

func (s *Store) GetPool(ctx context.Context, address common.Address) (model.PoolConfig, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+poolColumns+` FROM amm_pools WHERE pool_address=$1`, address.Hex())
	cfg, err := scanPool(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PoolConfig{}, fmt.Errorf("%s: %w", address, amm.ErrPoolNotFound)
		}
		return model.PoolConfig{}, err
	}
	return cfg, nil
}

// UpdatePool persists the mutable part of a pool record.
func (s *Store) UpdatePool(ctx context.Context, cfg model.PoolConfig) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE amm_pools SET locked=$2, funded=$3, updated_at=now() WHERE pool_address=$1`,
		cfg.Address.Hex(), cfg.Locked, cfg.Funded)
	if err != nil {
		return fmt.Errorf("update pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", cfg.Address, amm.ErrPoolNotFound)
	}
	return nil
}

func (s *Store) ListPools(ctx context.Context) ([]model.PoolConfig, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+poolColumns+` FROM amm_pools ORDER BY pool_address`)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	defer rows.Close()

	var pools []model.PoolConfig
	for rows.Next() {
		cfg, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, cfg)
	}
	return pools, rows.Err()
}

// scanPool rebuilds a pool record; derived addresses are recomputed from the
// seed rather than trusted from the row.
func scanPool(row pgx.Row) (model.PoolConfig, error) {
	var (
		seedText                  string
		authority, assetX, assetY string
		feeBps                    int32
		locked, funded            bool
	)
	if err := row.Scan(&seedText, &authority, &assetX, &assetY, &feeBps, &locked, &funded); err != nil {
		return model.PoolConfig{}, err
	}
	seed, err := strconv.ParseUint(seedText, 10, 64)
	if err != nil {
		return model.PoolConfig{}, fmt.Errorf("parse pool seed %q: %w", seedText, err)
	}
	cfg := model.NewPoolConfig(seed,
		common.HexToAddress(authority),
		common.HexToAddress(assetX),
		common.HexToAddress(assetY),
		uint16(feeBps),
	)
	cfg.Locked = locked
	cfg.Funded = funded
	return cfg, nil
}

func (s *Store) Balance(ctx context.Context, asset, owner common.Address) (uint64, error) {
	return readAmount(s.pool.QueryRow(ctx,
		`SELECT amount::text FROM amm_balances WHERE asset=$1 AND owner=$2`, asset.Hex(), owner.Hex()))
}

func (s *Store) Supply(ctx context.Context, asset common.Address) (uint64, error) {
	return readAmount(s.pool.QueryRow(ctx,
		`SELECT amount::text FROM amm_supply WHERE asset=$1`, asset.Hex()))
}

type balanceKey struct {
	asset common.Address
	owner common.Address
}

// Apply runs the whole batch in one transaction. Touched rows are locked in
// a fixed order before any amount is computed.
func (s *Store) Apply(ctx context.Context, movements []ledger.Movement) error {
	for i, mv := range movements {
		if err := mv.Validate(); err != nil {
			return fmt.Errorf("movement %d: %w", i, err)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	balances, err := lockBalances(ctx, tx, movements)
	if err != nil {
		return err
	}
	supplies, err := lockSupplies(ctx, tx, movements)
	if err != nil {
		return err
	}

	for i, mv := range movements {
		if mv.Kind == ledger.KindTransfer || mv.Kind == ledger.KindBurn {
			from := balanceKey{asset: mv.Asset, owner: mv.From}
			if balances[from] < mv.Amount {
				return fmt.Errorf("movement %d: %s %s has %d, needs %d: %w",
					i, mv.From, mv.Asset, balances[from], mv.Amount, ledger.ErrInsufficientBalance)
			}
			balances[from] -= mv.Amount
		}
		if mv.Kind == ledger.KindTransfer || mv.Kind == ledger.KindMint {
			to := balanceKey{asset: mv.Asset, owner: mv.To}
			if balances[to] > ^uint64(0)-mv.Amount {
				return fmt.Errorf("movement %d: credit %s: %w", i, mv.To, ledger.ErrOverflow)
			}
			balances[to] += mv.Amount
		}
		switch mv.Kind {
		case ledger.KindMint:
			if supplies[mv.Asset] > ^uint64(0)-mv.Amount {
				return fmt.Errorf("movement %d: supply of %s: %w", i, mv.Asset, ledger.ErrOverflow)
			}
			supplies[mv.Asset] += mv.Amount
		case ledger.KindBurn:
			supplies[mv.Asset] -= mv.Amount
		}
	}

	batch := &pgx.Batch{}
	for k, amount := range balances {
		batch.Queue(`
			INSERT INTO amm_balances (asset, owner, amount, updated_at)
			VALUES ($1, $2, $3::numeric, now())
			ON CONFLICT (asset, owner)
			DO UPDATE SET amount = EXCLUDED.amount, updated_at = now()
		`, k.asset.Hex(), k.owner.Hex(), strconv.FormatUint(amount, 10))
	}
	for asset, amount := range supplies {
		batch.Queue(`
			INSERT INTO amm_supply (asset, amount, updated_at)
			VALUES ($1, $2::numeric, now())
			ON CONFLICT (asset)
			DO UPDATE SET amount = EXCLUDED.amount, updated_at = now()
		`, asset.Hex(), strconv.FormatUint(amount, 10))
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("write balances: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("write balances: %w", err)
	}

	return tx.Commit(ctx)
}

func lockBalances(ctx context.Context, tx pgx.Tx, movements []ledger.Movement) (map[balanceKey]uint64, error) {
	seen := make(map[balanceKey]struct{})
	var keys []balanceKey
	add := func(k balanceKey) {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for _, mv := range movements {
		if mv.Kind == ledger.KindTransfer || mv.Kind == ledger.KindBurn {
			add(balanceKey{asset: mv.Asset, owner: mv.From})
		}
		if mv.Kind == ledger.KindTransfer || mv.Kind == ledger.KindMint {
			add(balanceKey{asset: mv.Asset, owner: mv.To})
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if c := bytes.Compare(keys[i].asset.Bytes(), keys[j].asset.Bytes()); c != 0 {
			return c < 0
		}
		return bytes.Compare(keys[i].owner.Bytes(), keys[j].owner.Bytes()) < 0
	})

	out := make(map[balanceKey]uint64, len(keys))
	for _, k := range keys {
		amount, err := readAmount(tx.QueryRow(ctx,
			`SELECT amount::text FROM amm_balances WHERE asset=$1 AND owner=$2 FOR UPDATE`,
			k.asset.Hex(), k.owner.Hex()))
		if err != nil {
			return nil, fmt.Errorf("lock balance %s/%s: %w", k.asset, k.owner, err)
		}
		out[k] = amount
	}
	return out, nil
}

func lockSupplies(ctx context.Context, tx pgx.Tx, movements []ledger.Movement) (map[common.Address]uint64, error) {
	var assets []common.Address
	seen := make(map[common.Address]struct{})
	for _, mv := range movements {
		if mv.Kind != ledger.KindMint && mv.Kind != ledger.KindBurn {
			continue
		}
		if _, ok := seen[mv.Asset]; !ok {
			seen[mv.Asset] = struct{}{}
			assets = append(assets, mv.Asset)
		}
	}
	sort.Slice(assets, func(i, j int) bool {
		return bytes.Compare(assets[i].Bytes(), assets[j].Bytes()) < 0
	})

	out := make(map[common.Address]uint64, len(assets))
	for _, asset := range assets {
		amount, err := readAmount(tx.QueryRow(ctx,
			`SELECT amount::text FROM amm_supply WHERE asset=$1 FOR UPDATE`, asset.Hex()))
		if err != nil {
			return nil, fmt.Errorf("lock supply %s: %w", asset, err)
		}
		out[asset] = amount
	}
	return out, nil
}

// readAmount scans a NUMERIC amount selected as text. A missing row is zero.
func readAmount(row pgx.Row) (uint64, error) {
	var text string
	if err := row.Scan(&text); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	amount, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("amount %s: %w", text, ledger.ErrOverflow)
		}
		return 0, fmt.Errorf("parse amount %q: %w", text, err)
	}
	return amount, nil
}
