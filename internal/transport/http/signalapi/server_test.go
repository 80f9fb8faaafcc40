package signalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tpush/internal/fusion"
	"tpush/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	signals map[string]signal.TradingSignal
	err     error

	lastScope []signal.ProviderKind
}

func (s *stubService) Analyze(ctx context.Context, symbol string, scope ...signal.ProviderKind) (signal.TradingSignal, error) {
	s.lastScope = scope
	if s.err != nil {
		return signal.TradingSignal{}, s.err
	}
	return s.signals[symbol], nil
}

func (s *stubService) AnalyzeBatch(ctx context.Context, symbols []string, concurrency int) map[string]fusion.BatchResult {
	out := make(map[string]fusion.BatchResult, len(symbols))
	for _, sym := range symbols {
		if s.err != nil {
			out[sym] = fusion.BatchResult{Err: s.err}
			continue
		}
		out[sym] = fusion.BatchResult{Signal: s.signals[sym]}
	}
	return out
}

type stubHistory struct {
	signals []signal.TradingSignal
}

func (s *stubHistory) ListRecent(ctx context.Context, symbol string, limit, offset int) ([]signal.TradingSignal, error) {
	return s.signals, nil
}

func (s *stubHistory) CountBySymbol(ctx context.Context, symbol string) (int, error) {
	return len(s.signals), nil
}

func (s *stubHistory) GetByTraceID(ctx context.Context, traceID string) (signal.TradingSignal, bool, error) {
	for _, sig := range s.signals {
		if sig.TraceID == traceID {
			return sig, true, nil
		}
	}
	return signal.TradingSignal{}, false, nil
}

func testSignal(symbol string) signal.TradingSignal {
	return signal.TradingSignal{
		Symbol:          symbol,
		TraceID:         "trace-" + symbol,
		Timestamp:       time.Now(),
		FinalAction:     signal.ActionBuy,
		FinalConfidence: 0.82,
		Strength:        signal.StrengthStrong,
	}
}

func newTestServer(t *testing.T, service SignalService, history HistoryReader) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{Addr: ":0", Service: service, History: history})
	require.NoError(t, err)
	return srv
}

func TestServer_AnalyzeSymbol(t *testing.T) {
	service := &stubService{signals: map[string]signal.TradingSignal{
		"BTCUSDT": testSignal("BTCUSDT"),
	}}
	srv := newTestServer(t, service, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/signal/analyze/btc-usdt", nil)
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Signal signal.TradingSignal `json:"signal"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "BTCUSDT", resp.Signal.Symbol)
	assert.Equal(t, signal.ActionBuy, resp.Signal.FinalAction)
}

func TestServer_AnalyzeSymbolWithProviderScope(t *testing.T) {
	service := &stubService{signals: map[string]signal.TradingSignal{
		"BTCUSDT": testSignal("BTCUSDT"),
	}}
	srv := newTestServer(t, service, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/signal/analyze/BTCUSDT?providers=kronos,technical", nil)
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []signal.ProviderKind{signal.ProviderKronos, signal.ProviderTechnical}, service.lastScope)
}

func TestServer_AnalyzeSymbolUnknownProviderRejected(t *testing.T) {
	srv := newTestServer(t, &stubService{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/signal/analyze/BTCUSDT?providers=oracle", nil)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_AnalyzeFailureReturns500(t *testing.T) {
	srv := newTestServer(t, &stubService{err: errors.New("context cancelled")}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/signal/analyze/BTCUSDT", nil)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_BatchAnalyze(t *testing.T) {
	service := &stubService{signals: map[string]signal.TradingSignal{
		"BTCUSDT": testSignal("BTCUSDT"),
		"ETHUSDT": testSignal("ETHUSDT"),
	}}
	srv := newTestServer(t, service, nil)

	body, _ := json.Marshal(map[string]any{"symbols": []string{"btc", "eth/usdt", "btc"}})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/signal/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Signals  []signal.TradingSignal `json:"signals"`
		Failures map[string]string      `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// btc 去重后只剩两个 symbol
	assert.Len(t, resp.Signals, 2)
	assert.Empty(t, resp.Failures)
}

func TestServer_BatchAnalyzeEmptySymbolsRejected(t *testing.T) {
	srv := newTestServer(t, &stubService{}, nil)

	body, _ := json.Marshal(map[string]any{"symbols": []string{}})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/signal/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_History(t *testing.T) {
	history := &stubHistory{signals: []signal.TradingSignal{testSignal("BTCUSDT")}}
	srv := newTestServer(t, &stubService{}, history)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/signal/history?symbol=BTCUSDT&limit=10", nil)
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Signals    []signal.TradingSignal `json:"signals"`
		TotalCount int                    `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Signals, 1)
	assert.Equal(t, 1, resp.TotalCount)
}

func TestServer_TraceDetailNotFound(t *testing.T) {
	srv := newTestServer(t, &stubService{}, &stubHistory{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/signal/trace/nope", nil)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Healthz(t *testing.T) {
	srv := newTestServer(t, &stubService{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
