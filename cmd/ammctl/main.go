package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ammctl",
		Short:        "Constant-product AMM pool engine",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("pg-dsn", "", "Postgres DSN; empty uses the local state file")
	flags.String("state-file", "./data/state.json", "local state snapshot path")
	flags.String("journal", "./data/events.jsonl", "pool event journal (JSONL); empty disables")
	flags.String("rpc", "", "RPC URL for the chain clock")
	flags.String("clock", "system", "expiration clock (system, chain)")
	flags.Uint8("precision", 6, "share scaling exponent (1..18)")
	flags.Int("max-retries", 5, "maximum RPC retry attempts")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial RPC retry backoff")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newInitCmd(),
		newFundCmd(),
		newDepositCmd(),
		newWithdrawCmd(),
		newSwapCmd(),
		newLockCmd(true),
		newLockCmd(false),
		newQuoteCmd(),
		newStateCmd(),
		newEventsCmd(),
		newStatsCmd(),
		newServeCmd(),
	)
	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
