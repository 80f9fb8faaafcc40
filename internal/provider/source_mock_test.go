package provider

import (
	"context"
	"time"

	"tpush/internal/market"

	"github.com/stretchr/testify/mock"
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

type MockPositionReader struct {
	mock.Mock
}

func (m *MockPositionReader) GetPosition(ctx context.Context, symbol string) (market.AccountPosition, bool, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(market.AccountPosition), args.Bool(1), args.Error(2)
}

// trendingCandles 生成按固定比例单调推进的收盘价序列。
func trendingCandles(n int, step float64) []market.Candle {
	candles := make([]market.Candle, 0, n)
	price := 100.0
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price *= 1 + step
		openAt := base.Add(time.Duration(i) * time.Hour)
		candles = append(candles, market.Candle{
			OpenTime:  openAt.UnixMilli(),
			CloseTime: openAt.Add(time.Hour).UnixMilli() - 1,
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    1000,
		})
	}
	return candles
}
