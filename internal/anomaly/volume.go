package anomaly

import (
	"context"
	"fmt"
	"math"
	"strings"

	"tpush/internal/config"
	"tpush/internal/market"
	"tpush/internal/signal"
)

// 中文说明：
// 量异动检测器：最新一根 K 线的成交量相对 24h 基线的 z-score 超过触发阈值
// 视为异动。异动方向与拟议动作一致时给正增量，矛盾时给打过折的负增量
//（压制而非简单取反），未触发时返回 ok=false。

// VolumeDetector 检测成交量异动并产出置信度增量。
type VolumeDetector struct {
	cfg    config.VolumeEnhanceConfig
	source market.Source
}

func NewVolumeDetector(cfg config.VolumeEnhanceConfig, source market.Source) (*VolumeDetector, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("volume detector disabled")
	}
	if source == nil {
		return nil, fmt.Errorf("volume detector requires a market source")
	}
	return &VolumeDetector{cfg: cfg, source: source}, nil
}

func (d *VolumeDetector) Source() signal.EnhancementSource {
	return signal.EnhanceVolumeAnomaly
}

func (d *VolumeDetector) Adjustment(ctx context.Context, symbol string, proposed signal.Action) (signal.EnhancementAdjustment, bool, error) {
	if !proposed.Directional() {
		return signal.EnhancementAdjustment{}, false, nil
	}
	interval := strings.TrimSpace(d.cfg.Interval)
	if interval == "" {
		interval = "1h"
	}
	lookback := d.cfg.Lookback
	if lookback < 10 {
		lookback = 24
	}
	candles, err := d.source.FetchHistory(ctx, symbol, interval, lookback+1)
	if err != nil {
		return signal.EnhancementAdjustment{}, false, err
	}
	if len(candles) < lookback {
		return signal.EnhancementAdjustment{}, false, fmt.Errorf("insufficient candles: %d", len(candles))
	}

	latest := candles[len(candles)-1]
	baseline := candles[:len(candles)-1]
	z := volumeZScore(market.Volumes(baseline), latest.Volume)
	if z < d.cfg.ZScoreTrigger {
		return signal.EnhancementAdjustment{}, false, nil
	}

	// 异动方向取最新 bar 的涨跌方向
	barDirection := signal.ActionHold
	switch {
	case latest.Close > latest.Open:
		barDirection = signal.ActionBuy
	case latest.Close < latest.Open:
		barDirection = signal.ActionSell
	}

	// 幅度随 z-score 超出触发值的程度线性增长
	magnitude := math.Min(d.cfg.MaxBoost, 0.05+(z-d.cfg.ZScoreTrigger)*0.05)

	adj := signal.EnhancementAdjustment{Source: d.Source()}
	switch {
	case barDirection == proposed:
		adj.Delta = magnitude
		adj.Rationale = fmt.Sprintf("成交量异动(z=%.1f)与%s方向一致", z, proposed)
	case barDirection == signal.ActionHold:
		return signal.EnhancementAdjustment{}, false, nil
	default:
		// 矛盾方向只给打折的负增量
		adj.Delta = -math.Min(d.cfg.MaxPenalty, magnitude*0.5)
		adj.Rationale = fmt.Sprintf("成交量异动(z=%.1f)与%s方向相悖", z, proposed)
	}
	return adj, true, nil
}

// volumeZScore 计算最新成交量相对基线均值的标准化偏离。
func volumeZScore(baseline []float64, latest float64) float64 {
	if len(baseline) == 0 {
		return 0
	}
	m := 0.0
	for _, v := range baseline {
		m += v
	}
	m /= float64(len(baseline))
	variance := 0.0
	for _, v := range baseline {
		variance += (v - m) * (v - m)
	}
	sd := math.Sqrt(variance / float64(len(baseline)))
	if sd <= 0 {
		return 0
	}
	return (latest - m) / sd
}
