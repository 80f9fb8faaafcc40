package fusion

import (
	"tpush/internal/config"
	"tpush/internal/signal"

	"github.com/shopspring/decimal"
)

// 中文说明：
// 风控参数计算器是纯函数：同样的 (入场价, 动作, 置信度) 永远得到同样的结果。
// 价格运算用 decimal 避免二进制浮点的尾差进入推送消息。

// RiskCalculator 按配置分层表计算止损/止盈/仓位/杠杆。
type RiskCalculator struct {
	cfg config.RiskConfig
}

func NewRiskCalculator(cfg config.RiskConfig) RiskCalculator {
	return RiskCalculator{cfg: cfg}
}

// Calculate 计算风控参数。HOLD 或入场价缺失时全部字段为零。
func (c RiskCalculator) Calculate(entryPrice float64, action signal.Action, confidence float64) signal.RiskParameters {
	if !action.Directional() || entryPrice <= 0 {
		return signal.RiskParameters{}
	}

	stopPct, targetPct := c.cfg.LowStopPct, c.cfg.LowTargetPct
	if confidence >= c.cfg.CutoffConfidence {
		stopPct, targetPct = c.cfg.HighStopPct, c.cfg.HighTargetPct
	}

	entry := decimal.NewFromFloat(entryPrice)
	stop := decimal.NewFromFloat(stopPct)
	target := decimal.NewFromFloat(targetPct)
	one := decimal.NewFromInt(1)

	var stopLoss, takeProfit decimal.Decimal
	if action == signal.ActionBuy {
		stopLoss = entry.Mul(one.Sub(stop))
		takeProfit = entry.Mul(one.Add(target))
	} else {
		stopLoss = entry.Mul(one.Add(stop))
		takeProfit = entry.Mul(one.Sub(target))
	}

	return signal.RiskParameters{
		StopLoss:        stopLoss.InexactFloat64(),
		TakeProfit:      takeProfit.InexactFloat64(),
		PositionSizeUSD: c.positionSize(confidence),
		Leverage:        c.leverage(confidence),
	}
}

func (c RiskCalculator) positionSize(confidence float64) float64 {
	for _, tier := range c.cfg.PositionTiers {
		if confidence >= tier.MinConfidence {
			return tier.SizeUSD
		}
	}
	if n := len(c.cfg.PositionTiers); n > 0 {
		return c.cfg.PositionTiers[n-1].SizeUSD
	}
	return 0
}

func (c RiskCalculator) leverage(confidence float64) int {
	for _, tier := range c.cfg.LeverageTiers {
		if confidence >= tier.MinConfidence {
			return tier.Leverage
		}
	}
	if n := len(c.cfg.LeverageTiers); n > 0 {
		return c.cfg.LeverageTiers[n-1].Leverage
	}
	return 0
}
