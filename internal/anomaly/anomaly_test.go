package anomaly

import (
	"context"
	"testing"

	"tpush/internal/config"
	"tpush/internal/market"
	"tpush/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	args := m.Called(ctx, symbol, interval, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]market.Candle), args.Error(1)
}

func (m *MockSource) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockSource) GetFundingRate(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockSource) GetOpenInterestHistory(ctx context.Context, symbol, period string, limit int) ([]market.OpenInterestPoint, error) {
	args := m.Called(ctx, symbol, period, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]market.OpenInterestPoint), args.Error(1)
}

func (m *MockSource) Close() error { return nil }

func volumeTestConfig() config.VolumeEnhanceConfig {
	return config.VolumeEnhanceConfig{
		Enabled:       true,
		Interval:      "1h",
		Lookback:      24,
		ZScoreTrigger: 2.0,
		MaxBoost:      0.20,
		MaxPenalty:    0.10,
	}
}

func oiTestConfig() config.OIEnhanceConfig {
	return config.OIEnhanceConfig{
		Enabled:       true,
		Period:        "1h",
		Lookback:      24,
		ChangeTrigger: 0.05,
		MaxBoost:      0.15,
		MaxPenalty:    0.08,
	}
}

// volumeCandles 生成基线成交量恒定、末根为 spike 倍的 K 线序列。
// lastBull 控制末根 bar 的方向。
func volumeCandles(n int, spike float64, lastBull bool) []market.Candle {
	candles := make([]market.Candle, n)
	for i := range candles {
		// 基线加微小扰动，避免标准差为零
		vol := 1000.0
		if i%2 == 0 {
			vol = 1040
		} else {
			vol = 960
		}
		candles[i] = market.Candle{Open: 100, Close: 100, High: 100, Low: 100, Volume: vol}
	}
	last := &candles[n-1]
	last.Volume = 1000 * spike
	if lastBull {
		last.Open, last.Close = 100, 102
	} else {
		last.Open, last.Close = 102, 100
	}
	return candles
}

func TestVolumeDetector_AgreementBoosts(t *testing.T) {
	src := new(MockSource)
	src.On("FetchHistory", mock.Anything, "BTCUSDT", "1h", 25).
		Return(volumeCandles(25, 5, true), nil)

	d, err := NewVolumeDetector(volumeTestConfig(), src)
	require.NoError(t, err)

	adj, ok, err := d.Adjustment(context.Background(), "BTCUSDT", signal.ActionBuy)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, signal.EnhanceVolumeAnomaly, adj.Source)
	assert.Greater(t, adj.Delta, 0.0)
	assert.LessOrEqual(t, adj.Delta, 0.20)
	assert.NotEmpty(t, adj.Rationale)
}

func TestVolumeDetector_ContradictionIsDampened(t *testing.T) {
	src := new(MockSource)
	src.On("FetchHistory", mock.Anything, "BTCUSDT", "1h", 25).
		Return(volumeCandles(25, 5, false), nil)

	d, err := NewVolumeDetector(volumeTestConfig(), src)
	require.NoError(t, err)

	adj, ok, err := d.Adjustment(context.Background(), "BTCUSDT", signal.ActionBuy)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Less(t, adj.Delta, 0.0)
	assert.GreaterOrEqual(t, adj.Delta, -0.10)

	// 同一异动给 SELL 的正增量应大于给 BUY 的负增量绝对值（矛盾被压制）
	adjSell, ok, err := d.Adjustment(context.Background(), "BTCUSDT", signal.ActionSell)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Greater(t, adjSell.Delta, -adj.Delta)
}

func TestVolumeDetector_NoAnomalyNotTriggered(t *testing.T) {
	src := new(MockSource)
	src.On("FetchHistory", mock.Anything, "BTCUSDT", "1h", 25).
		Return(volumeCandles(25, 1.0, true), nil)

	d, err := NewVolumeDetector(volumeTestConfig(), src)
	require.NoError(t, err)

	_, ok, err := d.Adjustment(context.Background(), "BTCUSDT", signal.ActionBuy)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVolumeDetector_HoldActionNotTriggered(t *testing.T) {
	d, err := NewVolumeDetector(volumeTestConfig(), new(MockSource))
	require.NoError(t, err)

	_, ok, err := d.Adjustment(context.Background(), "BTCUSDT", signal.ActionHold)
	require.NoError(t, err)
	assert.False(t, ok)
}

func oiSeries(first, last float64) []market.OpenInterestPoint {
	return []market.OpenInterestPoint{
		{SumOpenInterest: first},
		{SumOpenInterest: (first + last) / 2},
		{SumOpenInterest: last},
	}
}

func TestOpenInterestDetector_RisingOIConfirmsBuy(t *testing.T) {
	src := new(MockSource)
	src.On("GetOpenInterestHistory", mock.Anything, "BTCUSDT", "1h", 24).
		Return(oiSeries(1000, 1100), nil)

	d, err := NewOpenInterestDetector(oiTestConfig(), src)
	require.NoError(t, err)

	adj, ok, err := d.Adjustment(context.Background(), "BTCUSDT", signal.ActionBuy)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Greater(t, adj.Delta, 0.0)
	assert.LessOrEqual(t, adj.Delta, 0.15)
}

func TestOpenInterestDetector_FallingOIDampensBuy(t *testing.T) {
	src := new(MockSource)
	src.On("GetOpenInterestHistory", mock.Anything, "BTCUSDT", "1h", 24).
		Return(oiSeries(1000, 900), nil)

	d, err := NewOpenInterestDetector(oiTestConfig(), src)
	require.NoError(t, err)

	adj, ok, err := d.Adjustment(context.Background(), "BTCUSDT", signal.ActionBuy)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Less(t, adj.Delta, 0.0)
	assert.GreaterOrEqual(t, adj.Delta, -0.08)
}

func TestOpenInterestDetector_SmallChangeNotTriggered(t *testing.T) {
	src := new(MockSource)
	src.On("GetOpenInterestHistory", mock.Anything, "BTCUSDT", "1h", 24).
		Return(oiSeries(1000, 1020), nil)

	d, err := NewOpenInterestDetector(oiTestConfig(), src)
	require.NoError(t, err)

	_, ok, err := d.Adjustment(context.Background(), "BTCUSDT", signal.ActionBuy)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenInterestDetector_SourceErrorPropagates(t *testing.T) {
	src := new(MockSource)
	src.On("GetOpenInterestHistory", mock.Anything, "BTCUSDT", "1h", 24).
		Return(nil, assert.AnError)

	d, err := NewOpenInterestDetector(oiTestConfig(), src)
	require.NoError(t, err)

	_, _, err = d.Adjustment(context.Background(), "BTCUSDT", signal.ActionBuy)
	assert.Error(t, err)
}
