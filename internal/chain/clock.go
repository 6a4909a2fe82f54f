package chain

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// HeaderSource returns block headers.
type HeaderSource interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// BlockClock uses the latest block timestamp as the current time, so
// expirations are judged against chain time rather than the local clock.
type BlockClock struct {
	source     HeaderSource
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

func NewBlockClock(source HeaderSource, maxRetries int, backoff time.Duration, logger *zap.Logger) *BlockClock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlockClock{source: source, maxRetries: maxRetries, backoff: backoff, logger: logger}
}

// Now returns the latest block timestamp in unix seconds.
func (c *BlockClock) Now(ctx context.Context) (int64, error) {
	var header *types.Header
	err := withRetry(ctx, c.maxRetries, c.backoff, func(ctx context.Context) error {
		h, err := c.source.HeaderByNumber(ctx, nil)
		if err != nil {
			c.logger.Warn("fetch latest header failed", zap.Error(err))
			return err
		}
		header = h
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("latest header: %w", err)
	}
	if header.Time > math.MaxInt64 {
		return 0, fmt.Errorf("block %s timestamp %d out of range", header.Number, header.Time)
	}
	return int64(header.Time), nil
}
