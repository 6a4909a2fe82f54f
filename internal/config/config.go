package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Clock sources for expiration checks.
const (
	ClockSystem = "system"
	ClockChain  = "chain"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	PGDSN        string
	StateFile    string
	Journal      string
	RPCURL       string
	Clock        string
	Listen       string
	Precision    uint8
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AMM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("state-file", "./data/state.json")
	v.SetDefault("journal", "./data/events.jsonl")
	v.SetDefault("clock", ClockSystem)
	v.SetDefault("listen", ":8080")
	v.SetDefault("precision", 6)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	precision := v.GetUint("precision")
	if precision == 0 || precision > 18 {
		return Config{}, fmt.Errorf("precision must be within 1..18, got %d", precision)
	}

	cfg := Config{
		PGDSN:        v.GetString("pg-dsn"),
		StateFile:    v.GetString("state-file"),
		Journal:      v.GetString("journal"),
		RPCURL:       v.GetString("rpc"),
		Clock:        strings.ToLower(strings.TrimSpace(v.GetString("clock"))),
		Listen:       v.GetString("listen"),
		Precision:    uint8(precision),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}

	switch cfg.Clock {
	case ClockSystem:
	case ClockChain:
		if cfg.RPCURL == "" {
			return Config{}, fmt.Errorf("rpc url is required for the chain clock")
		}
	default:
		return Config{}, fmt.Errorf("unknown clock %q", cfg.Clock)
	}

	return cfg, nil
}
