package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"ammEngine/internal/aggregate"
	"ammEngine/internal/amm"
	"ammEngine/internal/curve"
	"ammEngine/internal/ledger"
	"ammEngine/internal/model"
	"ammEngine/internal/storage"
)

func addressFlag(cmd *cobra.Command, name string) (common.Address, error) {
	value, _ := cmd.Flags().GetString(name)
	addr, err := model.ParseAddress(value)
	if err != nil {
		return common.Address{}, fmt.Errorf("--%s: %w", name, err)
	}
	return addr, nil
}

func addExpirationFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("expiration", 0, "unix expiration; overrides --ttl")
	cmd.Flags().Duration("ttl", 5*time.Minute, "expiration offset from the current clock")
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a pool",
		RunE: withBackend(true, func(cmd *cobra.Command, b *backend, _ []string) error {
			seed, _ := cmd.Flags().GetUint64("seed")
			fee, _ := cmd.Flags().GetUint16("fee")
			authority, err := addressFlag(cmd, "authority")
			if err != nil {
				return err
			}
			assetX, err := addressFlag(cmd, "asset-x")
			if err != nil {
				return err
			}
			assetY, err := addressFlag(cmd, "asset-y")
			if err != nil {
				return err
			}

			cfg, err := b.svc.Initialize(cmd.Context(), amm.InitializeRequest{
				Seed:           seed,
				FeeBasisPoints: fee,
				Authority:      authority,
				AssetX:         assetX,
				AssetY:         assetY,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, cfg)
		}),
	}
	cmd.Flags().Uint64("seed", 0, "pool seed")
	cmd.Flags().Uint16("fee", 30, "swap fee in basis points")
	cmd.Flags().String("authority", "", "address allowed to lock the pool")
	cmd.Flags().String("asset-x", "", "X asset address")
	cmd.Flags().String("asset-y", "", "Y asset address")
	return cmd
}

func newFundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Mint a test balance to an owner",
		RunE: withBackend(true, func(cmd *cobra.Command, b *backend, _ []string) error {
			asset, err := addressFlag(cmd, "asset")
			if err != nil {
				return err
			}
			owner, err := addressFlag(cmd, "owner")
			if err != nil {
				return err
			}
			amount, _ := cmd.Flags().GetUint64("amount")

			if err := b.book.Apply(cmd.Context(), []ledger.Movement{ledger.Mint(asset, owner, amount)}); err != nil {
				return err
			}
			balance, err := b.book.Balance(cmd.Context(), asset, owner)
			if err != nil {
				return err
			}
			return printJSON(cmd, ledger.Balance{Asset: asset, Owner: owner, Amount: balance})
		}),
	}
	cmd.Flags().String("asset", "", "asset address")
	cmd.Flags().String("owner", "", "owner address")
	cmd.Flags().Uint64("amount", 0, "amount to mint")
	return cmd
}

func newDepositCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Add liquidity and mint claim tokens",
		RunE: withBackend(true, func(cmd *cobra.Command, b *backend, _ []string) error {
			pool, err := addressFlag(cmd, "pool")
			if err != nil {
				return err
			}
			caller, err := addressFlag(cmd, "caller")
			if err != nil {
				return err
			}
			expiration, err := b.expiration(cmd)
			if err != nil {
				return err
			}
			lp, _ := cmd.Flags().GetUint64("lp")
			maxX, _ := cmd.Flags().GetUint64("max-x")
			maxY, _ := cmd.Flags().GetUint64("max-y")

			res, err := b.svc.Deposit(cmd.Context(), amm.DepositRequest{
				Pool: pool, Caller: caller, LPAmount: lp, MaxX: maxX, MaxY: maxY, Expiration: expiration,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		}),
	}
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().String("caller", "", "depositor address")
	cmd.Flags().Uint64("lp", 0, "claim tokens to mint")
	cmd.Flags().Uint64("max-x", 0, "maximum X to pay")
	cmd.Flags().Uint64("max-y", 0, "maximum Y to pay")
	addExpirationFlags(cmd)
	return cmd
}

func newWithdrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Burn claim tokens and remove liquidity",
		RunE: withBackend(true, func(cmd *cobra.Command, b *backend, _ []string) error {
			pool, err := addressFlag(cmd, "pool")
			if err != nil {
				return err
			}
			caller, err := addressFlag(cmd, "caller")
			if err != nil {
				return err
			}
			expiration, err := b.expiration(cmd)
			if err != nil {
				return err
			}
			lp, _ := cmd.Flags().GetUint64("lp")
			minX, _ := cmd.Flags().GetUint64("min-x")
			minY, _ := cmd.Flags().GetUint64("min-y")

			res, err := b.svc.Withdraw(cmd.Context(), amm.WithdrawRequest{
				Pool: pool, Caller: caller, LPAmount: lp, MinX: minX, MinY: minY, Expiration: expiration,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		}),
	}
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().String("caller", "", "withdrawer address")
	cmd.Flags().Uint64("lp", 0, "claim tokens to burn")
	cmd.Flags().Uint64("min-x", 0, "minimum X to receive")
	cmd.Flags().Uint64("min-y", 0, "minimum Y to receive")
	addExpirationFlags(cmd)
	return cmd
}

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Swap one pool asset for the other",
		RunE: withBackend(true, func(cmd *cobra.Command, b *backend, _ []string) error {
			pool, err := addressFlag(cmd, "pool")
			if err != nil {
				return err
			}
			caller, err := addressFlag(cmd, "caller")
			if err != nil {
				return err
			}
			dirFlag, _ := cmd.Flags().GetString("direction")
			dir, err := model.ParseDirection(dirFlag)
			if err != nil {
				return err
			}
			expiration, err := b.expiration(cmd)
			if err != nil {
				return err
			}
			amountIn, _ := cmd.Flags().GetUint64("amount-in")
			minOut, _ := cmd.Flags().GetUint64("min-out")

			res, err := b.svc.Swap(cmd.Context(), amm.SwapRequest{
				Pool: pool, Caller: caller, Direction: dir, AmountIn: amountIn, MinOut: minOut, Expiration: expiration,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		}),
	}
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().String("caller", "", "trader address")
	cmd.Flags().String("direction", "x-to-y", "swap direction (x-to-y, y-to-x)")
	cmd.Flags().Uint64("amount-in", 0, "input amount")
	cmd.Flags().Uint64("min-out", 0, "minimum output amount")
	addExpirationFlags(cmd)
	return cmd
}

func newLockCmd(locked bool) *cobra.Command {
	use, short := "unlock", "Re-enable a locked pool"
	if locked {
		use, short = "lock", "Block deposits, withdrawals and swaps on a pool"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: withBackend(true, func(cmd *cobra.Command, b *backend, _ []string) error {
			pool, err := addressFlag(cmd, "pool")
			if err != nil {
				return err
			}
			caller, err := addressFlag(cmd, "caller")
			if err != nil {
				return err
			}

			var cfg model.PoolConfig
			if locked {
				cfg, err = b.svc.Lock(cmd.Context(), pool, caller)
			} else {
				cfg, err = b.svc.Unlock(cmd.Context(), pool, caller)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, cfg)
		}),
	}
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().String("caller", "", "pool authority address")
	return cmd
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price an operation against current reserves without executing it",
	}
	cmd.PersistentFlags().String("pool", "", "pool address")

	swapCmd := &cobra.Command{
		Use:   "swap",
		Short: "Quote a swap output",
		RunE: withBackend(false, func(cmd *cobra.Command, b *backend, _ []string) error {
			pool, err := addressFlag(cmd, "pool")
			if err != nil {
				return err
			}
			dirFlag, _ := cmd.Flags().GetString("direction")
			dir, err := model.ParseDirection(dirFlag)
			if err != nil {
				return err
			}
			amountIn, _ := cmd.Flags().GetUint64("amount-in")
			out, err := b.svc.QuoteSwap(cmd.Context(), pool, dir, amountIn)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"direction": dir, "amount_in": amountIn, "amount_out": out})
		}),
	}
	swapCmd.Flags().String("direction", "x-to-y", "swap direction (x-to-y, y-to-x)")
	swapCmd.Flags().Uint64("amount-in", 0, "input amount")

	liquidity := func(use, short string, quote func(*amm.Service, context.Context, common.Address, uint64) (curve.Amounts, error)) *cobra.Command {
		c := &cobra.Command{
			Use:   use,
			Short: short,
			RunE: withBackend(false, func(cmd *cobra.Command, b *backend, _ []string) error {
				pool, err := addressFlag(cmd, "pool")
				if err != nil {
					return err
				}
				lp, _ := cmd.Flags().GetUint64("lp")
				amounts, err := quote(b.svc, cmd.Context(), pool, lp)
				if err != nil {
					return err
				}
				return printJSON(cmd, amounts)
			}),
		}
		c.Flags().Uint64("lp", 0, "claim token amount")
		return c
	}

	cmd.AddCommand(
		swapCmd,
		liquidity("deposit", "Quote the assets a deposit would take", (*amm.Service).QuoteDeposit),
		liquidity("withdraw", "Quote the assets a withdrawal would pay", (*amm.Service).QuoteWithdraw),
	)
	return cmd
}

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state [pool...]",
		Short: "Show pool reserves, supply and invariant status",
		RunE: withBackend(false, func(cmd *cobra.Command, b *backend, args []string) error {
			pools, err := model.ParseAddresses(args)
			if err != nil {
				return err
			}
			if len(pools) == 0 {
				configs, err := b.svc.Pools(cmd.Context())
				if err != nil {
					return err
				}
				for _, cfg := range configs {
					pools = append(pools, cfg.Address)
				}
			}

			type poolReport struct {
				model.PoolState
				Invariant string `json:"invariant"`
			}
			reports := make([]poolReport, 0, len(pools))
			for _, pool := range pools {
				state, err := b.svc.State(cmd.Context(), pool)
				if err != nil {
					return err
				}
				invariant := "ok"
				if err := b.svc.CheckInvariants(cmd.Context(), pool); err != nil {
					invariant = err.Error()
				}
				reports = append(reports, poolReport{PoolState: state, Invariant: invariant})
			}
			return printJSON(cmd, reports)
		}),
	}
}

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the pool event journal",
		RunE: withBackend(false, func(cmd *cobra.Command, b *backend, _ []string) error {
			if b.cfg.Journal == "" {
				return fmt.Errorf("journal is disabled")
			}
			events, err := storage.ReadEvents(b.cfg.Journal)
			if err != nil {
				return err
			}
			filter, _ := cmd.Flags().GetString("pool")
			if filter == "" {
				return printJSON(cmd, events)
			}
			pool, err := model.ParseAddress(filter)
			if err != nil {
				return err
			}
			matched := make([]model.PoolEvent, 0, len(events))
			for _, e := range events {
				if e.Pool == pool {
					matched = append(matched, e)
				}
			}
			return printJSON(cmd, matched)
		}),
	}
	cmd.Flags().String("pool", "", "only show events for this pool")
	return cmd
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate journal events into per-pool time windows",
		RunE: withBackend(false, func(cmd *cobra.Command, b *backend, _ []string) error {
			if b.cfg.Journal == "" {
				return fmt.Errorf("journal is disabled")
			}
			window, _ := cmd.Flags().GetDuration("window")
			windowSeconds := int64(window / time.Second)
			if windowSeconds <= 0 {
				return fmt.Errorf("--window must be at least 1s")
			}

			events, err := storage.ReadEvents(b.cfg.Journal)
			if err != nil {
				return err
			}
			pools, err := b.svc.Pools(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := aggregate.Windows(events, pools, windowSeconds)
			if err != nil {
				return err
			}

			filter, _ := cmd.Flags().GetString("pool")
			if filter == "" {
				return printJSON(cmd, stats)
			}
			pool, err := model.ParseAddress(filter)
			if err != nil {
				return err
			}
			matched := make([]aggregate.WindowStats, 0, len(stats))
			for _, s := range stats {
				if s.Pool == pool {
					matched = append(matched, s)
				}
			}
			return printJSON(cmd, matched)
		}),
	}
	cmd.Flags().Duration("window", time.Hour, "aggregation window")
	cmd.Flags().String("pool", "", "only show windows for this pool")
	return cmd
}
