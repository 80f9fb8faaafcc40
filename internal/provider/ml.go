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
// ML Provider 是轻量的统计学习器：动量特征与均值回归特征线性组合，
// 输出方向分数。不依赖外部模型服务，权重占比也最低。

const (
	shortROCPeriod = 6
	longROCPeriod  = 24
	smaPeriod      = 20

	momentumFeatureWeight  = 0.6
	reversionFeatureWeight = 0.4

	mlDirectionalCutoff = 0.12
)

// MLProvider 基于动量与均值回归特征产出意见。
type MLProvider struct {
	cfg    config.MLProviderConfig
	source market.Source
}

func NewMLProvider(cfg config.MLProviderConfig, source market.Source) (*MLProvider, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if source == nil {
		return nil, fmt.Errorf("ml provider requires a market source")
	}
	return &MLProvider{cfg: cfg, source: source}, nil
}

func (p *MLProvider) Kind() signal.ProviderKind {
	return signal.ProviderML
}

func (p *MLProvider) Analyze(ctx context.Context, symbol string) (signal.SourceOpinion, error) {
	interval := strings.TrimSpace(p.cfg.Interval)
	if interval == "" {
		interval = "1h"
	}
	lookback := p.cfg.Lookback
	if lookback < longROCPeriod*2 {
		lookback = longROCPeriod * 2
	}
	candles, err := p.source.FetchHistory(ctx, symbol, interval, lookback)
	if err != nil {
		return signal.SourceOpinion{}, Unavailable(p.Kind(), err)
	}
	if len(candles) < longROCPeriod+smaPeriod {
		return signal.SourceOpinion{}, Unavailable(p.Kind(), fmt.Errorf("insufficient candles: %d", len(candles)))
	}
	closes := market.Closes(candles)

	momentum := momentumFeature(closes)
	reversion := reversionFeature(closes)
	score := momentumFeatureWeight*momentum + reversionFeatureWeight*reversion

	action := signal.ActionHold
	switch {
	case score >= mlDirectionalCutoff:
		action = signal.ActionBuy
	case score <= -mlDirectionalCutoff:
		action = signal.ActionSell
	}
	confidence := 0.5 + math.Min(math.Abs(score), 1.0)/2

	return signal.SourceOpinion{
		Provider:   p.Kind(),
		Action:     action,
		Confidence: confidence,
		Summary:    fmt.Sprintf("动量特征=%.3f 均值回归特征=%.3f", momentum, reversion),
		Metadata: map[string]any{
			"momentum":  momentum,
			"reversion": reversion,
			"score":     score,
		},
	}, nil
}

// momentumFeature 结合短周期与长周期 ROC，输出 [-1,1]。
func momentumFeature(closes []float64) float64 {
	short := lastNonZero(talib.Roc(closes, shortROCPeriod)) / 100
	long := lastNonZero(talib.Roc(closes, longROCPeriod)) / 100
	// 短周期占 2/3，放大 10 倍后截断
	raw := (short*2 + long) / 3 * 10
	return clampUnit(raw)
}

// reversionFeature 用价格对 SMA 的 z-score 给出反向分数：偏离越大，回归预期越强。
func reversionFeature(closes []float64) float64 {
	if len(closes) < smaPeriod+1 {
		return 0
	}
	sma := lastValid(talib.Sma(closes, smaPeriod))
	if sma <= 0 {
		return 0
	}
	window := closes[len(closes)-smaPeriod:]
	sd := stddevOf(window)
	if sd <= 0 {
		return 0
	}
	z := (closes[len(closes)-1] - sma) / sd
	// 偏离 2 个标准差记满分，方向取反
	return clampUnit(-z / 2)
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func stddevOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := 0.0
	for _, v := range vals {
		m += v
	}
	m /= float64(len(vals))
	sum := 0.0
	for _, v := range vals {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(vals)))
}
