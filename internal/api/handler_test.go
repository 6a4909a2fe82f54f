package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"ammEngine/internal/amm"
	"ammEngine/internal/ledger"
	"ammEngine/internal/model"
)

var (
	authority = common.HexToAddress("0x00000000000000000000000000000000000a0001")
	trader    = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	tokenX    = common.HexToAddress("0x1000000000000000000000000000000000000001")
	tokenY    = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

type testServer struct {
	t    *testing.T
	srv  *httptest.Server
	book *ledger.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	book := ledger.NewMemory()
	reg := prometheus.NewRegistry()
	svc, err := amm.NewService(amm.Config{Metrics: amm.NewMetrics(reg)}, amm.NewMemoryStore(), book, nil, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(svc, reg, nil))
	t.Cleanup(srv.Close)

	require.NoError(t, book.Apply(context.Background(), []ledger.Movement{
		ledger.Mint(tokenX, trader, 10_000),
		ledger.Mint(tokenY, trader, 10_000),
	}))
	return &testServer{t: t, srv: srv, book: book}
}

func (s *testServer) do(method, path string, body any, out any) int {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	require.NoError(s.t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) initPool(seed uint64) model.PoolConfig {
	s.t.Helper()
	var cfg model.PoolConfig
	status := s.do(http.MethodPost, "/pools", amm.InitializeRequest{
		Seed: seed, FeeBasisPoints: 30, Authority: authority, AssetX: tokenX, AssetY: tokenY,
	}, &cfg)
	require.Equal(s.t, http.StatusCreated, status)
	return cfg
}

func TestPoolLifecycle(t *testing.T) {
	s := newTestServer(t)
	cfg := s.initPool(1)
	base := "/pools/" + cfg.Address.Hex()
	expiration := time.Now().Unix() + 300

	var deposit amm.LiquidityResult
	status := s.do(http.MethodPost, base+"/deposit", amm.DepositRequest{
		Caller: trader, LPAmount: 1_000, MaxX: 1_000, MaxY: 1_000, Expiration: expiration,
	}, &deposit)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, uint64(1_000), deposit.State.Supply)

	var quote quoteSwapResponse
	status = s.do(http.MethodGet, base+"/quote/swap?direction=x-to-y&amount_in=100", nil, &quote)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, uint64(90), quote.AmountOut)

	var errResp errorResponse
	status = s.do(http.MethodPost, base+"/swap", map[string]any{
		"caller": trader, "direction": "x-to-y", "amount_in": 100, "min_out": 95, "expiration": expiration,
	}, &errResp)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "slippage_exceeded", errResp.Code)

	var swap amm.SwapResult
	status = s.do(http.MethodPost, base+"/swap", map[string]any{
		"caller": trader, "direction": "x-to-y", "amount_in": 100, "min_out": 90, "expiration": expiration,
	}, &swap)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, uint64(90), swap.AmountOut)
	require.Equal(t, model.XToY, swap.Direction)

	var amounts struct{ X, Y uint64 }
	status = s.do(http.MethodGet, base+"/quote/withdraw?lp_amount=500", nil, &amounts)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, uint64(550), amounts.X)
	require.Equal(t, uint64(455), amounts.Y)

	var state model.PoolState
	status = s.do(http.MethodGet, base, nil, &state)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, uint64(1_100), state.ReserveX)
	require.Equal(t, uint64(910), state.ReserveY)

	var pools []model.PoolConfig
	status = s.do(http.MethodGet, "/pools", nil, &pools)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, pools, 1)
}

func TestLockEndpoints(t *testing.T) {
	s := newTestServer(t)
	cfg := s.initPool(2)
	base := "/pools/" + cfg.Address.Hex()

	var errResp errorResponse
	status := s.do(http.MethodPost, base+"/lock", lockRequest{Caller: trader}, &errResp)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "invalid_auth", errResp.Code)

	var locked model.PoolConfig
	status = s.do(http.MethodPost, base+"/lock", lockRequest{Caller: authority}, &locked)
	require.Equal(t, http.StatusOK, status)
	require.True(t, locked.Locked)

	status = s.do(http.MethodPost, base+"/deposit", amm.DepositRequest{
		Caller: trader, LPAmount: 1, MaxX: 1, MaxY: 1, Expiration: time.Now().Unix() + 60,
	}, &errResp)
	require.Equal(t, http.StatusLocked, status)
	require.Equal(t, "pool_locked", errResp.Code)

	status = s.do(http.MethodPost, base+"/unlock", lockRequest{Caller: authority}, &locked)
	require.Equal(t, http.StatusOK, status)
	require.False(t, locked.Locked)
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	cfg := s.initPool(3)
	base := "/pools/" + cfg.Address.Hex()

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"duplicate pool", http.MethodPost, "/pools", amm.InitializeRequest{
			Seed: 3, FeeBasisPoints: 30, AssetX: tokenX, AssetY: tokenY,
		}, http.StatusConflict, "pool_exists"},
		{"invalid fee", http.MethodPost, "/pools", amm.InitializeRequest{
			Seed: 4, FeeBasisPoints: 10_001, AssetX: tokenX, AssetY: tokenY,
		}, http.StatusBadRequest, "invalid_fee"},
		{"unknown pool", http.MethodGet, "/pools/" + model.PoolAddress(77).Hex(), nil, http.StatusNotFound, "pool_not_found"},
		{"bad pool address", http.MethodGet, "/pools/0x12", nil, http.StatusBadRequest, "bad_request"},
		{"expired", http.MethodPost, base + "/swap", map[string]any{
			"caller": trader, "direction": "y", "amount_in": 1, "expiration": 1,
		}, http.StatusGone, "offer_expired"},
		{"unknown field", http.MethodPost, base + "/withdraw", map[string]any{"lp": 1}, http.StatusBadRequest, "bad_request"},
		{"bad direction", http.MethodGet, base + "/quote/swap?direction=up&amount_in=1", nil, http.StatusBadRequest, "bad_request"},
		{"bad amount", http.MethodGet, base + "/quote/deposit?lp_amount=-1", nil, http.StatusBadRequest, "bad_request"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var errResp errorResponse
			status := s.do(tc.method, tc.path, tc.body, &errResp)
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.code, errResp.Code)
			require.NotEmpty(t, errResp.Error)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.initPool(5)

	resp, err := http.Get(s.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `amm_pool_operations_total{op="initialize",result="ok"} 1`))
}
