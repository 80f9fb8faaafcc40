package signalstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tpush/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "signals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleSignal(traceID, symbol string, ts time.Time) signal.TradingSignal {
	return signal.TradingSignal{
		Symbol:          symbol,
		TraceID:         traceID,
		Timestamp:       ts,
		FinalAction:     signal.ActionBuy,
		FinalConfidence: 0.828,
		Strength:        signal.StrengthStrong,
		EntryPrice:      100,
		Risk: signal.RiskParameters{
			StopLoss:        98.5,
			TakeProfit:      103.0,
			PositionSizeUSD: 200,
			Leverage:        3,
		},
		Regime:     signal.RegimeNormalVolatility,
		Reasoning:  "AI预测: BUY (92%)",
		KeyFactors: []string{"AI预测", "技术分析"},
		ConfidenceBreakdown: map[signal.ProviderKind]float64{
			signal.ProviderKronos:    0.92,
			signal.ProviderTechnical: 0.80,
		},
		Unavailable: []signal.ProviderKind{signal.ProviderML},
		ValidUntil:  ts.Add(4 * time.Hour),
	}
}

func TestStore_SaveAndGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.Now().Truncate(time.Millisecond)

	require.NoError(t, store.Save(ctx, sampleSignal("trace-1", "BTCUSDT", ts)))

	got, found, err := store.GetByTraceID(ctx, "trace-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.Equal(t, signal.ActionBuy, got.FinalAction)
	assert.InDelta(t, 0.828, got.FinalConfidence, 1e-9)
	assert.Equal(t, signal.StrengthStrong, got.Strength)
	assert.InDelta(t, 98.5, got.Risk.StopLoss, 1e-9)
	assert.Equal(t, 3, got.Risk.Leverage)
	assert.Equal(t, []string{"AI预测", "技术分析"}, got.KeyFactors)
	assert.InDelta(t, 0.92, got.ConfidenceBreakdown[signal.ProviderKronos], 1e-9)
	assert.Equal(t, []signal.ProviderKind{signal.ProviderML}, got.Unavailable)
	assert.WithinDuration(t, ts.Add(4*time.Hour), got.ValidUntil, time.Millisecond)
}

func TestStore_GetMissingTraceID(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.GetByTraceID(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_DuplicateTraceIDFails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.Now()

	require.NoError(t, store.Save(ctx, sampleSignal("trace-1", "BTCUSDT", ts)))
	assert.Error(t, store.Save(ctx, sampleSignal("trace-1", "ETHUSDT", ts)))
}

func TestStore_EmptyTraceIDRejected(t *testing.T) {
	store := newTestStore(t)
	err := store.Save(context.Background(), sampleSignal("", "BTCUSDT", time.Now()))
	assert.Error(t, err)
}

func TestStore_ListRecentFiltersAndOrders(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, store.Save(ctx, sampleSignal("t1", "BTCUSDT", base)))
	require.NoError(t, store.Save(ctx, sampleSignal("t2", "ETHUSDT", base.Add(time.Minute))))
	require.NoError(t, store.Save(ctx, sampleSignal("t3", "BTCUSDT", base.Add(2*time.Minute))))

	all, err := store.ListRecent(ctx, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "t3", all[0].TraceID)
	assert.Equal(t, "t1", all[2].TraceID)

	btc, err := store.ListRecent(ctx, "btcusdt", 10, 0)
	require.NoError(t, err)
	require.Len(t, btc, 2)
	for _, sig := range btc {
		assert.Equal(t, "BTCUSDT", sig.Symbol)
	}

	count, err := store.CountBySymbol(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStore_PurgeBeforeRemovesOldRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, sampleSignal("old", "BTCUSDT", now.Add(-48*time.Hour))))
	require.NoError(t, store.Save(ctx, sampleSignal("new", "BTCUSDT", now)))

	removed, err := store.PurgeBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, found, err := store.GetByTraceID(ctx, "old")
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = store.GetByTraceID(ctx, "new")
	require.NoError(t, err)
	assert.True(t, found)
}
