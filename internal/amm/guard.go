package amm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"ammEngine/internal/model"
)

func checkUnlocked(cfg model.PoolConfig) error {
	if cfg.Locked {
		return fmt.Errorf("%s: %w", cfg.Address, ErrPoolLocked)
	}
	return nil
}

func checkAuthority(cfg model.PoolConfig, caller common.Address) error {
	if caller != cfg.Authority {
		return fmt.Errorf("%s is not the authority of %s: %w", caller, cfg.Address, ErrInvalidAuth)
	}
	return nil
}

// DeadlineGuard rejects requests whose expiration lies in the past.
type DeadlineGuard struct {
	clock Clock
}

func NewDeadlineGuard(clock Clock) DeadlineGuard {
	if clock == nil {
		clock = SystemClock{}
	}
	return DeadlineGuard{clock: clock}
}

// Check succeeds while now <= expiration and returns the time it observed.
func (g DeadlineGuard) Check(ctx context.Context, expiration int64) (int64, error) {
	now, err := g.clock.Now(ctx)
	if err != nil {
		return 0, fmt.Errorf("read clock: %w", err)
	}
	if now > expiration {
		return now, fmt.Errorf("expired at %d, now %d: %w", expiration, now, ErrOfferExpired)
	}
	return now, nil
}
