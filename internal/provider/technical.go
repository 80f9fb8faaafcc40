package provider

import (
	"context"
	"fmt"
	"math"
	"strings"

	"tpush/internal/config"
	"tpush/internal/market"
	"tpush/internal/signal"

	"github.com/markcheno/go-talib"
)

// 中文说明：
// 技术分析 Provider：EMA 趋势、MACD 动量、RSI 超买超卖三路投票，
// 合成 [-1,1] 的方向分数后映射为动作与置信度。

const (
	emaFastPeriod = 20
	emaSlowPeriod = 50
	rsiPeriod     = 14
	macdFast      = 12
	macdSlow      = 26
	macdSignal    = 9

	// 三路投票的分值占比
	emaVoteWeight  = 0.4
	macdVoteWeight = 0.3
	rsiVoteWeight  = 0.3

	directionalCutoff = 0.15
)

// TechnicalProvider 基于 K 线指标产出意见。
type TechnicalProvider struct {
	cfg    config.TechnicalProviderConfig
	source market.Source
}

func NewTechnicalProvider(cfg config.TechnicalProviderConfig, source market.Source) (*TechnicalProvider, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if source == nil {
		return nil, fmt.Errorf("technical provider requires a market source")
	}
	return &TechnicalProvider{cfg: cfg, source: source}, nil
}

func (p *TechnicalProvider) Kind() signal.ProviderKind {
	return signal.ProviderTechnical
}

func (p *TechnicalProvider) Analyze(ctx context.Context, symbol string) (signal.SourceOpinion, error) {
	interval := strings.TrimSpace(p.cfg.Interval)
	if interval == "" {
		interval = "1h"
	}
	lookback := p.cfg.Lookback
	if lookback < emaSlowPeriod*2 {
		lookback = emaSlowPeriod * 2
	}
	candles, err := p.source.FetchHistory(ctx, symbol, interval, lookback)
	if err != nil {
		return signal.SourceOpinion{}, Unavailable(p.Kind(), err)
	}
	if len(candles) < emaSlowPeriod+macdSignal {
		return signal.SourceOpinion{}, Unavailable(p.Kind(), fmt.Errorf("insufficient candles: %d", len(candles)))
	}
	closes := market.Closes(candles)

	score, factors := scoreIndicators(closes)
	action := signal.ActionHold
	switch {
	case score >= directionalCutoff:
		action = signal.ActionBuy
	case score <= -directionalCutoff:
		action = signal.ActionSell
	}
	confidence := 0.5 + math.Min(math.Abs(score), 1.0)/2

	return signal.SourceOpinion{
		Provider:   p.Kind(),
		Action:     action,
		Confidence: confidence,
		Summary:    strings.Join(factors, "; "),
		Metadata: map[string]any{
			"score":    score,
			"interval": interval,
		},
	}, nil
}

// scoreIndicators 计算方向分数与可读的指标说明。
func scoreIndicators(closes []float64) (float64, []string) {
	score := 0.0
	var factors []string

	emaFast := lastValid(talib.Ema(closes, emaFastPeriod))
	emaSlow := lastValid(talib.Ema(closes, emaSlowPeriod))
	if emaFast > 0 && emaSlow > 0 {
		if emaFast > emaSlow {
			score += emaVoteWeight
			factors = append(factors, fmt.Sprintf("EMA%d上穿EMA%d，趋势偏多", emaFastPeriod, emaSlowPeriod))
		} else if emaFast < emaSlow {
			score -= emaVoteWeight
			factors = append(factors, fmt.Sprintf("EMA%d下穿EMA%d，趋势偏空", emaFastPeriod, emaSlowPeriod))
		}
	}

	_, _, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
	if h := lastNonZero(hist); h != 0 {
		if h > 0 {
			score += macdVoteWeight
			factors = append(factors, "MACD柱为正，动量向上")
		} else {
			score -= macdVoteWeight
			factors = append(factors, "MACD柱为负，动量向下")
		}
	}

	rsi := lastValid(talib.Rsi(closes, rsiPeriod))
	switch {
	case rsi >= 70:
		score -= rsiVoteWeight
		factors = append(factors, fmt.Sprintf("RSI=%.1f 超买", rsi))
	case rsi > 0 && rsi <= 30:
		score += rsiVoteWeight
		factors = append(factors, fmt.Sprintf("RSI=%.1f 超卖", rsi))
	case rsi > 0:
		// 中性区间按偏离 50 的程度线性给分
		score += (rsi - 50) / 50 * rsiVoteWeight
		factors = append(factors, fmt.Sprintf("RSI=%.1f 中性", rsi))
	}

	return score, factors
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
	}
	return 0
}

func lastNonZero(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
