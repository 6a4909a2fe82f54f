package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammEngine/internal/amm"
	"ammEngine/internal/chain"
	"ammEngine/internal/config"
	"ammEngine/internal/ledger"
	"ammEngine/internal/storage"
	"ammEngine/internal/storage/postgres"
)

// backend is the engine wired to either Postgres or the local state file.
type backend struct {
	cfg      config.Config
	svc      *amm.Service
	book     ledger.Ledger
	clock    amm.Clock
	registry *prometheus.Registry
	logger   *zap.Logger

	memory    *ledger.Memory
	pools     *amm.MemoryStore
	snapshots *storage.SnapshotStore

	pg    *postgres.Store
	chain *chain.Client
}

func openBackend(cmd *cobra.Command) (*backend, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	b := &backend{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}

	var poolStore amm.PoolStore
	if cfg.PGDSN != "" {
		b.pg, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := b.pg.Migrate(ctx); err != nil {
			b.pg.Close()
			return nil, err
		}
		poolStore, b.book = b.pg, b.pg
	} else {
		b.snapshots = storage.NewSnapshotStore(cfg.StateFile)
		snap, _, err := b.snapshots.Load()
		if err != nil {
			return nil, err
		}
		b.memory = ledger.NewMemory()
		if err := b.memory.Restore(snap.Balances); err != nil {
			return nil, fmt.Errorf("restore balances: %w", err)
		}
		b.pools = amm.NewMemoryStore(snap.Pools...)
		poolStore, b.book = b.pools, b.memory
	}

	b.clock = amm.SystemClock{}
	if cfg.Clock == config.ClockChain {
		b.chain, err = chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect rpc: %w", err)
		}
		chainID, err := b.chain.GetChainID(ctx)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("read chain id: %w", err)
		}
		logger.Info("chain clock connected", zap.Stringer("chain_id", chainID))
		b.clock = chain.NewBlockClock(b.chain, cfg.MaxRetries, cfg.RetryBackoff, logger)
	}

	var sink storage.EventSink = storage.Discard{}
	if cfg.Journal != "" {
		sink = storage.NewJsonlJournal(cfg.Journal)
	}

	b.svc, err = amm.NewService(amm.Config{
		Precision: cfg.Precision,
		Clock:     b.clock,
		Metrics:   amm.NewMetrics(b.registry),
	}, poolStore, b.book, sink, logger)
	if err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// expiration resolves --expiration, falling back to now + --ttl.
func (b *backend) expiration(cmd *cobra.Command) (int64, error) {
	if cmd.Flags().Changed("expiration") {
		return cmd.Flags().GetInt64("expiration")
	}
	ttl, _ := cmd.Flags().GetDuration("ttl")
	now, err := b.clock.Now(cmd.Context())
	if err != nil {
		return 0, err
	}
	return now + int64(ttl.Seconds()), nil
}

// Save persists the local state file. Postgres commits per operation. Pools
// and balances are read while pool operations are held off so both describe
// the same moment.
func (b *backend) Save() error {
	if b.snapshots == nil {
		return nil
	}
	var snap storage.Snapshot
	err := b.svc.Quiesce(func() error {
		pools, err := b.pools.ListPools(context.Background())
		if err != nil {
			return err
		}
		snap = storage.Snapshot{Pools: pools, Balances: b.memory.Snapshot()}
		return nil
	})
	if err != nil {
		return err
	}
	return b.snapshots.Save(snap)
}

func (b *backend) Close() {
	if b.pg != nil {
		b.pg.Close()
	}
	if b.chain != nil {
		b.chain.Close()
	}
	_ = b.logger.Sync()
}

// withBackend opens the backend, runs fn and saves local state when fn
// changed it.
func withBackend(mutates bool, fn func(cmd *cobra.Command, b *backend, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		if err := fn(cmd, b, args); err != nil {
			return err
		}
		if mutates {
			if err := b.Save(); err != nil {
				return fmt.Errorf("save state: %w", err)
			}
		}
		return nil
	}
}
