package provider

import (
	"context"
	"fmt"
	"math"

	"tpush/internal/config"
	"tpush/internal/market"
	"tpush/internal/signal"
)

// 中文说明：
// 持仓分析 Provider：读取账户在该合约上的实际持仓，用未实现盈亏评估仓位
// 健康度，产出偏 HOLD 的意见：浮盈顺势、深亏建议反向减仓，其余观望。
// 资金费率对持仓方向不利时小幅折减置信度（持仓成本逆风）。

const (
	// 浮盈超过名义价值 2% 视为趋势在手
	profitRunRatio = 0.02
	// 浮亏超过名义价值 3% 建议反向减仓
	drawdownRatio = 0.03

	// 资金费率超过 ±0.05% 视为持仓成本逆风
	fundingExtreme = 0.0005
	fundingPenalty = 0.05
)

// PositionReader 提供账户持仓快照，由交易所网关实现。
type PositionReader interface {
	GetPosition(ctx context.Context, symbol string) (market.AccountPosition, bool, error)
}

// PositionProvider 基于账户持仓与未实现盈亏产出意见。
type PositionProvider struct {
	cfg    config.PositionProviderConfig
	reader PositionReader
	source market.Source
}

// NewPositionProvider 构造持仓分析 Provider。source 仅用于资金费率核查，可为 nil。
func NewPositionProvider(cfg config.PositionProviderConfig, reader PositionReader, source market.Source) (*PositionProvider, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if reader == nil {
		return nil, fmt.Errorf("position provider requires a position reader")
	}
	return &PositionProvider{cfg: cfg, reader: reader, source: source}, nil
}

func (p *PositionProvider) Kind() signal.ProviderKind {
	return signal.ProviderPosition
}

func (p *PositionProvider) Analyze(ctx context.Context, symbol string) (signal.SourceOpinion, error) {
	pos, found, err := p.reader.GetPosition(ctx, symbol)
	if err != nil {
		return signal.SourceOpinion{}, Unavailable(p.Kind(), err)
	}
	if !found {
		return signal.SourceOpinion{
			Provider:   p.Kind(),
			Action:     signal.ActionHold,
			Confidence: 0.5,
			Summary:    "当前无持仓，观望",
		}, nil
	}

	side := signal.ActionBuy
	sideLabel := "多头"
	if pos.PositionAmt < 0 {
		side = signal.ActionSell
		sideLabel = "空头"
	}

	notional := math.Abs(pos.PositionAmt) * pos.EntryPrice
	pnlRatio := 0.0
	if notional > 0 {
		pnlRatio = pos.UnrealizedProfit / notional
	}

	action := signal.ActionHold
	confidence := 0.5
	var summary string
	switch {
	case pnlRatio >= profitRunRatio:
		action = side
		confidence = 0.55 + math.Min(pnlRatio*2.5, 0.20)
		summary = fmt.Sprintf("%s持仓浮盈 %.2f%%，趋势在手", sideLabel, pnlRatio*100)
	case pnlRatio <= -drawdownRatio:
		action = opposite(side)
		confidence = 0.55 + math.Min(-pnlRatio*2.5, 0.25)
		summary = fmt.Sprintf("%s持仓浮亏 %.2f%%，建议反向减仓", sideLabel, -pnlRatio*100)
	default:
		summary = fmt.Sprintf("%s持仓盈亏 %.2f%%，继续观望", sideLabel, pnlRatio*100)
	}

	// 资金费率逆风核查（尽力而为，行情源缺失或出错时跳过）
	fundingRate := 0.0
	if p.source != nil {
		if funding, ferr := p.source.GetFundingRate(ctx, symbol); ferr == nil {
			fundingRate = funding
			against := (side == signal.ActionBuy && funding >= fundingExtreme) ||
				(side == signal.ActionSell && funding <= -fundingExtreme)
			if against {
				if action == side {
					confidence = math.Max(0.5, confidence-fundingPenalty)
				}
				summary += fmt.Sprintf("；资金费率 %.4f%% 对持仓不利", funding*100)
			}
		}
	}

	return signal.SourceOpinion{
		Provider:   p.Kind(),
		Action:     action,
		Confidence: confidence,
		Summary:    summary,
		Metadata: map[string]any{
			"position_amt":   pos.PositionAmt,
			"entry_price":    pos.EntryPrice,
			"unrealized_pnl": pos.UnrealizedProfit,
			"pnl_ratio":      pnlRatio,
			"leverage":       pos.Leverage,
			"funding_rate":   fundingRate,
		},
	}, nil
}

func opposite(a signal.Action) signal.Action {
	if a == signal.ActionBuy {
		return signal.ActionSell
	}
	return signal.ActionBuy
}
