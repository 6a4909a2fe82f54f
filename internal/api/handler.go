// Package api exposes the pool engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ammEngine/internal/amm"
	"ammEngine/internal/model"
)

var errBadRequest = errors.New("bad request")

// Handler serves pool operations.
type Handler struct {
	svc    *amm.Service
	logger *zap.Logger
}

func NewHandler(svc *amm.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// NewRouter wires the pool routes, /healthz and, when gatherer is set, /metrics.
func NewRouter(svc *amm.Service, gatherer prometheus.Gatherer, logger *zap.Logger) *mux.Router {
	h := NewHandler(svc, logger)
	r := mux.NewRouter()
	r.Use(h.logRequests)
	h.RegisterRoutes(r)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return r
}

// RegisterRoutes registers the pool routes on r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/pools", h.handleListPools).Methods(http.MethodGet)
	r.HandleFunc("/pools", h.handleInitialize).Methods(http.MethodPost)
	r.HandleFunc("/pools/{pool}", h.handleState).Methods(http.MethodGet)
	r.HandleFunc("/pools/{pool}/deposit", h.handleDeposit).Methods(http.MethodPost)
	r.HandleFunc("/pools/{pool}/withdraw", h.handleWithdraw).Methods(http.MethodPost)
	r.HandleFunc("/pools/{pool}/swap", h.handleSwap).Methods(http.MethodPost)
	r.HandleFunc("/pools/{pool}/lock", h.handleLock(true)).Methods(http.MethodPost)
	r.HandleFunc("/pools/{pool}/unlock", h.handleLock(false)).Methods(http.MethodPost)
	r.HandleFunc("/pools/{pool}/quote/deposit", h.handleQuoteDeposit).Methods(http.MethodGet)
	r.HandleFunc("/pools/{pool}/quote/withdraw", h.handleQuoteWithdraw).Methods(http.MethodGet)
	r.HandleFunc("/pools/{pool}/quote/swap", h.handleQuoteSwap).Methods(http.MethodGet)
}

type lockRequest struct {
	Caller common.Address `json:"caller"`
}

type quoteSwapResponse struct {
	Direction model.Direction `json:"direction"`
	AmountIn  uint64          `json:"amount_in"`
	AmountOut uint64          `json:"amount_out"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *Handler) handleListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.svc.Pools(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if pools == nil {
		pools = []model.PoolConfig{}
	}
	writeJSON(w, http.StatusOK, pools)
}

func (h *Handler) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req amm.InitializeRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	cfg, err := h.svc.Initialize(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	pool, err := poolFromPath(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	state, err := h.svc.State(r.Context(), pool)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req amm.DepositRequest
	if err := decodePoolRequest(r, &req, &req.Pool); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.svc.Deposit(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req amm.WithdrawRequest
	if err := decodePoolRequest(r, &req, &req.Pool); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.svc.Withdraw(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req amm.SwapRequest
	if err := decodePoolRequest(r, &req, &req.Pool); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.svc.Swap(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleLock(locked bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req lockRequest
		var pool common.Address
		if err := decodePoolRequest(r, &req, &pool); err != nil {
			h.writeError(w, err)
			return
		}

		var (
			cfg model.PoolConfig
			err error
		)
		if locked {
			cfg, err = h.svc.Lock(r.Context(), pool, req.Caller)
		} else {
			cfg, err = h.svc.Unlock(r.Context(), pool, req.Caller)
		}
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func (h *Handler) handleQuoteDeposit(w http.ResponseWriter, r *http.Request) {
	pool, lp, err := liquidityQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	amounts, err := h.svc.QuoteDeposit(r.Context(), pool, lp)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, amounts)
}

func (h *Handler) handleQuoteWithdraw(w http.ResponseWriter, r *http.Request) {
	pool, lp, err := liquidityQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	amounts, err := h.svc.QuoteWithdraw(r.Context(), pool, lp)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, amounts)
}

func (h *Handler) handleQuoteSwap(w http.ResponseWriter, r *http.Request) {
	pool, err := poolFromPath(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	query := r.URL.Query()
	dir, err := model.ParseDirection(query.Get("direction"))
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	amountIn, err := parseAmount(query.Get("amount_in"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	out, err := h.svc.QuoteSwap(r.Context(), pool, dir, amountIn)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteSwapResponse{Direction: dir, AmountIn: amountIn, AmountOut: out})
}

func liquidityQuery(r *http.Request) (common.Address, uint64, error) {
	pool, err := poolFromPath(r)
	if err != nil {
		return common.Address{}, 0, err
	}
	lp, err := parseAmount(r.URL.Query().Get("lp_amount"))
	if err != nil {
		return common.Address{}, 0, err
	}
	return pool, lp, nil
}

func poolFromPath(r *http.Request) (common.Address, error) {
	pool, err := model.ParseAddress(mux.Vars(r)["pool"])
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return pool, nil
}

func parseAmount(input string) (uint64, error) {
	v, err := strconv.ParseUint(input, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid amount %q", errBadRequest, input)
	}
	return v, nil
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: decode body: %w", errBadRequest, err)
	}
	return nil
}

// decodePoolRequest decodes the body into dst and then sets *pool from the
// path, so the URL always names the pool being operated on.
func decodePoolRequest(r *http.Request, dst any, pool *common.Address) error {
	addr, err := poolFromPath(r)
	if err != nil {
		return err
	}
	if err := decodeBody(r, dst); err != nil {
		return err
	}
	*pool = addr
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, amm.ErrInvalidFee),
		errors.Is(err, amm.ErrZeroBalance),
		errors.Is(err, amm.ErrInvalidPrecision),
		errors.Is(err, amm.ErrIdenticalAssets),
		errors.Is(err, amm.ErrInvalidDirection):
		return http.StatusBadRequest
	case errors.Is(err, amm.ErrInvalidAuth):
		return http.StatusForbidden
	case errors.Is(err, amm.ErrPoolNotFound):
		return http.StatusNotFound
	case errors.Is(err, amm.ErrPoolExists):
		return http.StatusConflict
	case errors.Is(err, amm.ErrOfferExpired):
		return http.StatusGone
	case errors.Is(err, amm.ErrPoolLocked):
		return http.StatusLocked
	case errors.Is(err, amm.ErrSlippageExceeded),
		errors.Is(err, amm.ErrInsufficientBalance),
		errors.Is(err, amm.ErrOverflow),
		errors.Is(err, amm.ErrUnderflow),
		errors.Is(err, amm.ErrInvariantViolated):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	code := amm.Code(err)
	if errors.Is(err, errBadRequest) {
		code = "bad_request"
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
