package market

import "context"

// OpenInterestPoint 是某一时刻的全市场持仓量统计。
type OpenInterestPoint struct {
	Symbol               string  `json:"symbol"`
	SumOpenInterest      float64 `json:"sumOpenInterest"`
	SumOpenInterestValue float64 `json:"sumOpenInterestValue"`
	Timestamp            int64   `json:"timestamp"`
}

// AccountPosition 是账户在某合约上的持仓快照。PositionAmt 正为多头、负为空头。
type AccountPosition struct {
	Symbol           string  `json:"symbol"`
	PositionAmt      float64 `json:"position_amt"`
	EntryPrice       float64 `json:"entry_price"`
	MarkPrice        float64 `json:"mark_price"`
	UnrealizedProfit float64 `json:"unrealized_profit"`
	Leverage         int     `json:"leverage"`
}

// Source 是行情数据源抽象，当前唯一实现为 Binance 合约 REST。
type Source interface {
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	LatestPrice(ctx context.Context, symbol string) (float64, error)

	GetFundingRate(ctx context.Context, symbol string) (float64, error)

	GetOpenInterestHistory(ctx context.Context, symbol, period string, limit int) ([]OpenInterestPoint, error)

	Close() error
}
