// Package amm orchestrates constant-product pool operations: it reads pool
// state, applies guards, runs the curve math and submits asset movements to
// the ledger as one atomic batch.
package amm

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammEngine/internal/curve"
	"ammEngine/internal/ledger"
	"ammEngine/internal/model"
	"ammEngine/internal/storage"
)

// Config holds engine settings.
type Config struct {
	// Precision is the share scaling exponent; zero selects curve.Precision.
	Precision uint8
	Clock     Clock
	Metrics   *Metrics
}

// Service is the only writer of pool configurations.
type Service struct {
	precision uint8
	pools     PoolStore
	book      ledger.Ledger
	events    storage.EventSink
	deadline  DeadlineGuard
	metrics   *Metrics
	locks     *keyLock
	// gate is held shared by every mutating operation and exclusively by Quiesce.
	gate      sync.RWMutex
	logger    *zap.Logger
}

// NewService builds a Service with its dependencies.
func NewService(cfg Config, pools PoolStore, book ledger.Ledger, events storage.EventSink, logger *zap.Logger) (*Service, error) {
	if pools == nil {
		return nil, fmt.Errorf("pool store is nil")
	}
	if book == nil {
		return nil, fmt.Errorf("ledger is nil")
	}
	if cfg.Precision == 0 {
		cfg.Precision = curve.Precision
	}
	if cfg.Precision > curve.MaxPrecision {
		return nil, fmt.Errorf("precision %d: %w", cfg.Precision, ErrInvalidPrecision)
	}
	if events == nil {
		events = storage.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		precision: cfg.Precision,
		pools:     pools,
		book:      book,
		events:    events,
		deadline:  NewDeadlineGuard(cfg.Clock),
		metrics:   cfg.Metrics,
		locks:     newKeyLock(),
		logger:    logger,
	}, nil
}

type InitializeRequest struct {
	Seed           uint64         `json:"seed"`
	FeeBasisPoints uint16         `json:"fee_basis_points"`
	Authority      common.Address `json:"authority"`
	AssetX         common.Address `json:"asset_x"`
	AssetY         common.Address `json:"asset_y"`
}

type DepositRequest struct {
	Pool       common.Address `json:"pool"`
	Caller     common.Address `json:"caller"`
	LPAmount   uint64         `json:"lp_amount"`
	MaxX       uint64         `json:"max_x"`
	MaxY       uint64         `json:"max_y"`
	Expiration int64          `json:"expiration"`
}

type WithdrawRequest struct {
	Pool       common.Address `json:"pool"`
	Caller     common.Address `json:"caller"`
	LPAmount   uint64         `json:"lp_amount"`
	MinX       uint64         `json:"min_x"`
	MinY       uint64         `json:"min_y"`
	Expiration int64          `json:"expiration"`
}

type SwapRequest struct {
	Pool       common.Address  `json:"pool"`
	Caller     common.Address  `json:"caller"`
	Direction  model.Direction `json:"direction"`
	AmountIn   uint64          `json:"amount_in"`
	MinOut     uint64          `json:"min_out"`
	Expiration int64           `json:"expiration"`
}

// LiquidityResult reports a completed deposit or withdrawal.
type LiquidityResult struct {
	X        uint64          `json:"x"`
	Y        uint64          `json:"y"`
	LPAmount uint64          `json:"lp_amount"`
	State    model.PoolState `json:"state"`
}

// SwapResult reports a completed swap.
type SwapResult struct {
	Direction model.Direction `json:"direction"`
	AmountIn  uint64          `json:"amount_in"`
	AmountOut uint64          `json:"amount_out"`
	State     model.PoolState `json:"state"`
}

// Initialize creates a pool in the bootstrap state.
func (s *Service) Initialize(ctx context.Context, req InitializeRequest) (_ model.PoolConfig, err error) {
	cfg := model.NewPoolConfig(req.Seed, req.Authority, req.AssetX, req.AssetY, req.FeeBasisPoints)
	defer func() { s.finish(model.EventInitialize, cfg.Address, req.Authority, err) }()

	if req.FeeBasisPoints > curve.MaxFeeBasisPoints {
		return model.PoolConfig{}, fmt.Errorf("fee %d bps: %w", req.FeeBasisPoints, ErrInvalidFee)
	}
	if req.AssetX == req.AssetY {
		return model.PoolConfig{}, fmt.Errorf("%s: %w", req.AssetX, ErrIdenticalAssets)
	}

	unlock := s.acquire(cfg.Address)
	defer unlock()

	if err := s.pools.CreatePool(ctx, cfg); err != nil {
		return model.PoolConfig{}, err
	}

	s.emit(model.PoolEvent{
		Kind:   model.EventInitialize,
		Pool:   cfg.Address,
		Caller: req.Authority,
	})
	s.logger.Info("pool initialized",
		zap.Stringer("pool", cfg.Address),
		zap.Uint64("seed", cfg.Seed),
		zap.Uint16("fee_bps", cfg.FeeBasisPoints),
		zap.Stringer("asset_x", cfg.AssetX),
		zap.Stringer("asset_y", cfg.AssetY),
	)
	return cfg, nil
}

// Deposit mints lpAmount claim tokens to the caller in exchange for a
// proportional amount of both assets, bounded by MaxX and MaxY. The first
// deposit into an empty pool takes MaxX and MaxY verbatim and marks the pool
// funded.
func (s *Service) Deposit(ctx context.Context, req DepositRequest) (res LiquidityResult, err error) {
	defer func() { s.finish(model.EventDeposit, req.Pool, req.Caller, err) }()

	unlock := s.acquire(req.Pool)
	defer unlock()

	cfg, err := s.pools.GetPool(ctx, req.Pool)
	if err != nil {
		return LiquidityResult{}, err
	}
	if err := checkUnlocked(cfg); err != nil {
		return LiquidityResult{}, err
	}
	now, err := s.deadline.Check(ctx, req.Expiration)
	if err != nil {
		return LiquidityResult{}, err
	}
	if req.LPAmount == 0 || req.MaxX == 0 || req.MaxY == 0 {
		return LiquidityResult{}, fmt.Errorf("deposit arguments must be non-zero: %w", ErrZeroBalance)
	}

	state, err := s.readState(ctx, cfg)
	if err != nil {
		return LiquidityResult{}, err
	}

	bootstrap := state.Bootstrapping()
	amounts := curve.Amounts{X: req.MaxX, Y: req.MaxY}
	if !bootstrap {
		amounts, err = curve.DepositAmounts(state.ReserveX, state.ReserveY, state.Supply, req.LPAmount, s.precision)
		if err != nil {
			return LiquidityResult{}, curveError(err)
		}
		if amounts.X == 0 || amounts.Y == 0 {
			return LiquidityResult{}, fmt.Errorf("deposit of %d claim tokens rounds to %d/%d: %w",
				req.LPAmount, amounts.X, amounts.Y, ErrZeroBalance)
		}
		if amounts.X > req.MaxX || amounts.Y > req.MaxY {
			return LiquidityResult{}, fmt.Errorf("deposit needs %d/%d, max %d/%d: %w",
				amounts.X, amounts.Y, req.MaxX, req.MaxY, ErrSlippageExceeded)
		}
	}

	if bootstrap {
		cfg.Funded = true
		if err := s.pools.UpdatePool(ctx, cfg); err != nil {
			return LiquidityResult{}, err
		}
	}
	err = s.book.Apply(ctx, []ledger.Movement{
		ledger.Transfer(cfg.AssetX, req.Caller, cfg.Vault, amounts.X),
		ledger.Transfer(cfg.AssetY, req.Caller, cfg.Vault, amounts.Y),
		ledger.Mint(cfg.LPAsset, req.Caller, req.LPAmount),
	})
	if err != nil {
		if bootstrap {
			s.clearFunded(ctx, cfg)
		}
		return LiquidityResult{}, ledgerError(err)
	}

	state.Config = cfg
	state.ReserveX += amounts.X
	state.ReserveY += amounts.Y
	state.Supply += req.LPAmount

	s.emit(model.PoolEvent{
		Kind:      model.EventDeposit,
		Pool:      cfg.Address,
		Caller:    req.Caller,
		Timestamp: now,
		AmountX:   amounts.X,
		AmountY:   amounts.Y,
		LPAmount:  req.LPAmount,
		ReserveX:  state.ReserveX,
		ReserveY:  state.ReserveY,
		Supply:    state.Supply,
	})
	s.logger.Info("pool deposit",
		zap.Stringer("pool", cfg.Address),
		zap.Stringer("caller", req.Caller),
		zap.Uint64("x", amounts.X),
		zap.Uint64("y", amounts.Y),
		zap.Uint64("lp", req.LPAmount),
	)
	return LiquidityResult{X: amounts.X, Y: amounts.Y, LPAmount: req.LPAmount, State: state.PoolState}, nil
}

// Withdraw burns lpAmount claim tokens from the caller and pays out the
// proportional share of both reserves, bounded below by MinX and MinY. A
// funded pool is never drained: a withdrawal that would empty either reserve
// or the claim supply is rejected.
func (s *Service) Withdraw(ctx context.Context, req WithdrawRequest) (res LiquidityResult, err error) {
	defer func() { s.finish(model.EventWithdraw, req.Pool, req.Caller, err) }()

	unlock := s.acquire(req.Pool)
	defer unlock()

	cfg, err := s.pools.GetPool(ctx, req.Pool)
	if err != nil {
		return LiquidityResult{}, err
	}
	if err := checkUnlocked(cfg); err != nil {
		return LiquidityResult{}, err
	}
	now, err := s.deadline.Check(ctx, req.Expiration)
	if err != nil {
		return LiquidityResult{}, err
	}
	if req.LPAmount == 0 {
		return LiquidityResult{}, fmt.Errorf("withdraw amount must be non-zero: %w", ErrZeroBalance)
	}

	state, err := s.readState(ctx, cfg)
	if err != nil {
		return LiquidityResult{}, err
	}

	amounts, err := curve.WithdrawAmounts(state.ReserveX, state.ReserveY, state.Supply, req.LPAmount, s.precision)
	if err != nil {
		return LiquidityResult{}, curveError(err)
	}
	if amounts.X < req.MinX || amounts.Y < req.MinY {
		return LiquidityResult{}, fmt.Errorf("withdraw pays %d/%d, min %d/%d: %w",
			amounts.X, amounts.Y, req.MinX, req.MinY, ErrSlippageExceeded)
	}
	if amounts.X == 0 || amounts.Y == 0 {
		return LiquidityResult{}, fmt.Errorf("withdraw of %d claim tokens rounds to %d/%d: %w",
			req.LPAmount, amounts.X, amounts.Y, ErrZeroBalance)
	}
	if err := checkKeepsLiquidity(state.PoolState, req.LPAmount, amounts); err != nil {
		return LiquidityResult{}, err
	}

	err = s.book.Apply(ctx, []ledger.Movement{
		ledger.Burn(cfg.LPAsset, req.Caller, req.LPAmount),
		ledger.Transfer(cfg.AssetX, cfg.Vault, req.Caller, amounts.X),
		ledger.Transfer(cfg.AssetY, cfg.Vault, req.Caller, amounts.Y),
	})
	if err != nil {
		return LiquidityResult{}, ledgerError(err)
	}

	state.ReserveX -= amounts.X
	state.ReserveY -= amounts.Y
	state.Supply -= req.LPAmount

	s.emit(model.PoolEvent{
		Kind:      model.EventWithdraw,
		Pool:      cfg.Address,
		Caller:    req.Caller,
		Timestamp: now,
		AmountX:   amounts.X,
		AmountY:   amounts.Y,
		LPAmount:  req.LPAmount,
		ReserveX:  state.ReserveX,
		ReserveY:  state.ReserveY,
		Supply:    state.Supply,
	})
	s.logger.Info("pool withdraw",
		zap.Stringer("pool", cfg.Address),
		zap.Stringer("caller", req.Caller),
		zap.Uint64("x", amounts.X),
		zap.Uint64("y", amounts.Y),
		zap.Uint64("lp", req.LPAmount),
	)
	return LiquidityResult{X: amounts.X, Y: amounts.Y, LPAmount: req.LPAmount, State: state.PoolState}, nil
}

// Swap pays AmountIn of the direction's input asset into the pool and the
// curve output of the other asset back to the caller.
func (s *Service) Swap(ctx context.Context, req SwapRequest) (res SwapResult, err error) {
	defer func() {
		s.finish(model.EventSwap, req.Pool, req.Caller, err)
		if err == nil {
			s.metrics.swap(req.Pool.Hex(), req.Direction.String(), res.AmountIn, res.AmountOut)
		}
	}()

	if !req.Direction.Valid() {
		return SwapResult{}, fmt.Errorf("%s: %w", req.Direction, ErrInvalidDirection)
	}

	unlock := s.acquire(req.Pool)
	defer unlock()

	cfg, err := s.pools.GetPool(ctx, req.Pool)
	if err != nil {
		return SwapResult{}, err
	}
	if err := checkUnlocked(cfg); err != nil {
		return SwapResult{}, err
	}
	now, err := s.deadline.Check(ctx, req.Expiration)
	if err != nil {
		return SwapResult{}, err
	}
	if req.AmountIn == 0 {
		return SwapResult{}, fmt.Errorf("swap amount must be non-zero: %w", ErrZeroBalance)
	}

	state, err := s.readState(ctx, cfg)
	if err != nil {
		return SwapResult{}, err
	}

	assetIn, assetOut := cfg.Legs(req.Direction)
	reserveIn, reserveOut := state.legs(req.Direction)

	amountOut, err := curve.SwapOutput(*reserveIn, *reserveOut, cfg.FeeBasisPoints, req.AmountIn)
	if err != nil {
		return SwapResult{}, curveError(err)
	}
	if amountOut < req.MinOut {
		return SwapResult{}, fmt.Errorf("swap pays %d, min %d: %w", amountOut, req.MinOut, ErrSlippageExceeded)
	}
	if amountOut == 0 {
		return SwapResult{}, fmt.Errorf("swap of %d pays nothing: %w", req.AmountIn, ErrZeroBalance)
	}

	err = s.book.Apply(ctx, []ledger.Movement{
		ledger.Transfer(assetIn, req.Caller, cfg.Vault, req.AmountIn),
		ledger.Transfer(assetOut, cfg.Vault, req.Caller, amountOut),
	})
	if err != nil {
		return SwapResult{}, ledgerError(err)
	}

	*reserveIn += req.AmountIn
	*reserveOut -= amountOut

	s.emit(model.PoolEvent{
		Kind:      model.EventSwap,
		Pool:      cfg.Address,
		Caller:    req.Caller,
		Timestamp: now,
		Direction: req.Direction,
		AmountIn:  req.AmountIn,
		AmountOut: amountOut,
		ReserveX:  state.ReserveX,
		ReserveY:  state.ReserveY,
		Supply:    state.Supply,
	})
	s.logger.Info("pool swap",
		zap.Stringer("pool", cfg.Address),
		zap.Stringer("caller", req.Caller),
		zap.Stringer("direction", req.Direction),
		zap.Uint64("amount_in", req.AmountIn),
		zap.Uint64("amount_out", amountOut),
	)
	return SwapResult{
		Direction: req.Direction,
		AmountIn:  req.AmountIn,
		AmountOut: amountOut,
		State:     state.PoolState,
	}, nil
}

// Lock blocks deposits, withdrawals and swaps. Only the authority may lock.
func (s *Service) Lock(ctx context.Context, pool, caller common.Address) (model.PoolConfig, error) {
	return s.setLocked(ctx, pool, caller, true)
}

// Unlock reverses Lock. Only the authority may unlock.
func (s *Service) Unlock(ctx context.Context, pool, caller common.Address) (model.PoolConfig, error) {
	return s.setLocked(ctx, pool, caller, false)
}

func (s *Service) setLocked(ctx context.Context, pool, caller common.Address, locked bool) (cfg model.PoolConfig, err error) {
	kind := model.EventUnlock
	if locked {
		kind = model.EventLock
	}
	defer func() { s.finish(kind, pool, caller, err) }()

	unlock := s.acquire(pool)
	defer unlock()

	cfg, err = s.pools.GetPool(ctx, pool)
	if err != nil {
		return model.PoolConfig{}, err
	}
	if err := checkAuthority(cfg, caller); err != nil {
		return model.PoolConfig{}, err
	}

	cfg.Locked = locked
	if err := s.pools.UpdatePool(ctx, cfg); err != nil {
		return model.PoolConfig{}, err
	}

	s.emit(model.PoolEvent{Kind: kind, Pool: pool, Caller: caller})
	s.logger.Info("pool lock changed", zap.Stringer("pool", pool), zap.Bool("locked", locked))
	return cfg, nil
}

// QuoteDeposit returns the amounts a deposit of lpAmount would take now.
func (s *Service) QuoteDeposit(ctx context.Context, pool common.Address, lpAmount uint64) (curve.Amounts, error) {
	state, err := s.State(ctx, pool)
	if err != nil {
		return curve.Amounts{}, err
	}
	amounts, err := curve.DepositAmounts(state.ReserveX, state.ReserveY, state.Supply, lpAmount, s.precision)
	if err != nil {
		return curve.Amounts{}, curveError(err)
	}
	return amounts, nil
}

// QuoteWithdraw returns the amounts a withdrawal of lpAmount would pay now.
func (s *Service) QuoteWithdraw(ctx context.Context, pool common.Address, lpAmount uint64) (curve.Amounts, error) {
	state, err := s.State(ctx, pool)
	if err != nil {
		return curve.Amounts{}, err
	}
	amounts, err := curve.WithdrawAmounts(state.ReserveX, state.ReserveY, state.Supply, lpAmount, s.precision)
	if err != nil {
		return curve.Amounts{}, curveError(err)
	}
	if err := checkKeepsLiquidity(state, lpAmount, amounts); err != nil {
		return curve.Amounts{}, err
	}
	return amounts, nil
}

// QuoteSwap returns the output a swap of amountIn would pay now.
func (s *Service) QuoteSwap(ctx context.Context, pool common.Address, dir model.Direction, amountIn uint64) (uint64, error) {
	if !dir.Valid() {
		return 0, fmt.Errorf("%s: %w", dir, ErrInvalidDirection)
	}
	state, err := s.State(ctx, pool)
	if err != nil {
		return 0, err
	}
	view := swapView{PoolState: state}
	reserveIn, reserveOut := view.legs(dir)
	out, err := curve.SwapOutput(*reserveIn, *reserveOut, state.Config.FeeBasisPoints, amountIn)
	if err != nil {
		return 0, curveError(err)
	}
	return out, nil
}

// State returns the pool configuration with its current reserves and supply.
func (s *Service) State(ctx context.Context, pool common.Address) (model.PoolState, error) {
	cfg, err := s.pools.GetPool(ctx, pool)
	if err != nil {
		return model.PoolState{}, err
	}
	state, err := s.readState(ctx, cfg)
	if err != nil {
		return model.PoolState{}, err
	}
	return state.PoolState, nil
}

// Pools lists every known pool.
func (s *Service) Pools(ctx context.Context) ([]model.PoolConfig, error) {
	return s.pools.ListPools(ctx)
}

// CheckInvariants verifies that the pool is either untouched or holds
// positive reserves on both sides with a positive claim supply. A funded pool
// that is back at zero fails.
func (s *Service) CheckInvariants(ctx context.Context, pool common.Address) error {
	state, err := s.State(ctx, pool)
	if err != nil {
		return err
	}
	if state.Bootstrapping() {
		return nil
	}
	if state.ReserveX == 0 || state.ReserveY == 0 || state.Supply == 0 {
		return fmt.Errorf("%s has reserves %d/%d and supply %d: %w",
			pool, state.ReserveX, state.ReserveY, state.Supply, ErrInvariantViolated)
	}
	return nil
}

// Quiesce runs fn while no mutating pool operation is in flight. Operations
// that arrive meanwhile wait until fn returns.
func (s *Service) Quiesce(fn func() error) error {
	s.gate.Lock()
	defer s.gate.Unlock()
	return fn()
}

// acquire serializes work on one pool and holds off Quiesce until released.
func (s *Service) acquire(pool common.Address) func() {
	s.gate.RLock()
	unlock := s.locks.Lock(pool)
	return func() {
		unlock()
		s.gate.RUnlock()
	}
}

// checkKeepsLiquidity rejects a withdrawal that would leave a funded pool
// with an empty reserve or no claim supply.
func checkKeepsLiquidity(state model.PoolState, lpAmount uint64, amounts curve.Amounts) error {
	if lpAmount >= state.Supply || amounts.X >= state.ReserveX || amounts.Y >= state.ReserveY {
		return fmt.Errorf("withdraw of %d of %d claim tokens would empty the pool: %w",
			lpAmount, state.Supply, ErrZeroBalance)
	}
	return nil
}

// clearFunded undoes the funded mark when the bootstrap deposit fails to settle.
func (s *Service) clearFunded(ctx context.Context, cfg model.PoolConfig) {
	cfg.Funded = false
	if err := s.pools.UpdatePool(ctx, cfg); err != nil {
		s.logger.Error("restore unfunded pool failed",
			zap.Stringer("pool", cfg.Address),
			zap.Error(err),
		)
	}
}

// swapView lets a direction address the reserve fields it reads and writes.
type swapView struct {
	model.PoolState
}

func (v *swapView) legs(dir model.Direction) (in, out *uint64) {
	if dir == model.YToX {
		return &v.ReserveY, &v.ReserveX
	}
	return &v.ReserveX, &v.ReserveY
}

func (s *Service) readState(ctx context.Context, cfg model.PoolConfig) (*swapView, error) {
	reserveX, err := s.book.Balance(ctx, cfg.AssetX, cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("read reserve x: %w", err)
	}
	reserveY, err := s.book.Balance(ctx, cfg.AssetY, cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("read reserve y: %w", err)
	}
	supply, err := s.book.Supply(ctx, cfg.LPAsset)
	if err != nil {
		return nil, fmt.Errorf("read claim supply: %w", err)
	}
	return &swapView{PoolState: model.PoolState{
		Config:   cfg,
		ReserveX: reserveX,
		ReserveY: reserveY,
		Supply:   supply,
	}}, nil
}

func (s *Service) emit(event model.PoolEvent) {
	if err := s.events.PutEvents([]model.PoolEvent{event}); err != nil {
		s.logger.Warn("write pool event failed",
			zap.String("kind", event.Kind),
			zap.Stringer("pool", event.Pool),
			zap.Error(err),
		)
	}
}

func (s *Service) finish(op string, pool, caller common.Address, err error) {
	s.metrics.observe(op, err)
	if err != nil {
		s.logger.Debug("pool operation rejected",
			zap.String("op", op),
			zap.Stringer("pool", pool),
			zap.Stringer("caller", caller),
			zap.String("code", Code(err)),
			zap.Error(err),
		)
	}
}
