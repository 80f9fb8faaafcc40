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
// 持仓量趋势检测器：回看窗口内 OI 变化超过触发阈值时产出增量。
// OI 上升确认 BUY、压制 SELL；OI 下降反之。矛盾增量同样打折。

// OpenInterestDetector 检测持仓量趋势并产出置信度增量。
type OpenInterestDetector struct {
	cfg    config.OIEnhanceConfig
	source market.Source
}

func NewOpenInterestDetector(cfg config.OIEnhanceConfig, source market.Source) (*OpenInterestDetector, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("open interest detector disabled")
	}
	if source == nil {
		return nil, fmt.Errorf("open interest detector requires a market source")
	}
	return &OpenInterestDetector{cfg: cfg, source: source}, nil
}

func (d *OpenInterestDetector) Source() signal.EnhancementSource {
	return signal.EnhanceOpenInterest
}

func (d *OpenInterestDetector) Adjustment(ctx context.Context, symbol string, proposed signal.Action) (signal.EnhancementAdjustment, bool, error) {
	if !proposed.Directional() {
		return signal.EnhancementAdjustment{}, false, nil
	}
	period := strings.TrimSpace(d.cfg.Period)
	if period == "" {
		period = "1h"
	}
	lookback := d.cfg.Lookback
	if lookback < 2 {
		lookback = 24
	}
	points, err := d.source.GetOpenInterestHistory(ctx, symbol, period, lookback)
	if err != nil {
		return signal.EnhancementAdjustment{}, false, err
	}
	if len(points) < 2 {
		return signal.EnhancementAdjustment{}, false, fmt.Errorf("insufficient open interest history")
	}

	first := points[0].SumOpenInterest
	last := points[len(points)-1].SumOpenInterest
	if first <= 0 {
		return signal.EnhancementAdjustment{}, false, nil
	}
	change := (last - first) / first
	if math.Abs(change) < d.cfg.ChangeTrigger {
		return signal.EnhancementAdjustment{}, false, nil
	}

	oiDirection := signal.ActionBuy
	if change < 0 {
		oiDirection = signal.ActionSell
	}
	magnitude := math.Min(d.cfg.MaxBoost, 0.03+math.Abs(change))

	adj := signal.EnhancementAdjustment{Source: d.Source()}
	if oiDirection == proposed {
		adj.Delta = magnitude
		adj.Rationale = fmt.Sprintf("持仓量变化 %+.1f%% 确认%s方向", change*100, proposed)
	} else {
		adj.Delta = -math.Min(d.cfg.MaxPenalty, magnitude*0.5)
		adj.Rationale = fmt.Sprintf("持仓量变化 %+.1f%% 与%s方向相悖", change*100, proposed)
	}
	return adj, true, nil
}
