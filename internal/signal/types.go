package signal

import (
	"strings"
	"time"
)

// 中文说明：
// 本文件定义信号融合链路的通用数据结构，供采集器、融合引擎与装配器使用。

// Action 是单个方向性建议（BUY/SELL/HOLD）。
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Directional 返回动作是否为方向性动作（非观望）。
func (a Action) Directional() bool {
	return a == ActionBuy || a == ActionSell
}

// NormalizeAction 将各 Provider 可能返回的动作别名统一为标准动作。
// 无法识别的输入返回空串，由调用方决定是否丢弃。
func NormalizeAction(raw string) Action {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BUY", "LONG", "OPEN_LONG", "STRONG_BUY":
		return ActionBuy
	case "SELL", "SHORT", "OPEN_SHORT", "STRONG_SELL":
		return ActionSell
	case "HOLD", "WAIT", "NEUTRAL", "OBSERVE":
		return ActionHold
	default:
		return ""
	}
}

// ProviderKind 是封闭的意见来源集合。
type ProviderKind string

const (
	ProviderKronos    ProviderKind = "kronos"
	ProviderTechnical ProviderKind = "technical"
	ProviderML        ProviderKind = "ml"
	ProviderPosition  ProviderKind = "position"
)

// AllProviderKinds 按优先级从高到低排列。
var AllProviderKinds = []ProviderKind{
	ProviderKronos,
	ProviderTechnical,
	ProviderML,
	ProviderPosition,
}

// ParseProviderKind 解析来源名称，大小写不敏感；未知名称返回 false。
func ParseProviderKind(raw string) (ProviderKind, bool) {
	kind := ProviderKind(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range AllProviderKinds {
		if kind == known {
			return known, true
		}
	}
	return "", false
}

// MarketRegime 是粗粒度的市场波动状态，用于选择权重与阈值表。
type MarketRegime string

const (
	RegimeLowVolatility     MarketRegime = "low_volatility"
	RegimeNormalVolatility  MarketRegime = "normal_volatility"
	RegimeHighVolatility    MarketRegime = "high_volatility"
	RegimeExtremeVolatility MarketRegime = "extreme_volatility"
)

// SourceOpinion 是单个 Provider 在一次分析中产出的不可变意见。
type SourceOpinion struct {
	Provider   ProviderKind   `json:"provider"`
	Action     Action         `json:"action"`
	Confidence float64        `json:"confidence"`
	Summary    string         `json:"summary,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// WeightSet 是一次分析请求的权重快照：所有已配置 Provider 的权重之和为 1。
// 只替换不修改；ConfidenceMultiplier 在融合后统一应用。
type WeightSet struct {
	Weights              map[ProviderKind]float64 `json:"weights"`
	Regime               MarketRegime             `json:"regime"`
	ConfidenceMultiplier float64                  `json:"confidence_multiplier"`
	Reasoning            string                   `json:"reasoning,omitempty"`
	GeneratedAt          time.Time                `json:"generated_at"`
}

// Sum 返回权重总和。
func (w WeightSet) Sum() float64 {
	total := 0.0
	for _, v := range w.Weights {
		total += v
	}
	return total
}

// Normalized 返回权重归一化后的副本；总和为 0 时原样返回。
func (w WeightSet) Normalized() WeightSet {
	total := w.Sum()
	if total <= 0 {
		return w
	}
	out := w
	out.Weights = make(map[ProviderKind]float64, len(w.Weights))
	for k, v := range w.Weights {
		out.Weights[k] = v / total
	}
	return out
}

// EnhancementSource 标识二次置信度修正的来源。
type EnhancementSource string

const (
	EnhanceVolumeAnomaly EnhancementSource = "volume_anomaly"
	EnhanceOpenInterest  EnhancementSource = "open_interest"
)

// EnhancementAdjustment 是单个增强器返回的置信度增量（可为负）。
type EnhancementAdjustment struct {
	Source    EnhancementSource `json:"source"`
	Delta     float64           `json:"delta"`
	Rationale string            `json:"rationale,omitempty"`
}

// FusedDecision 是融合引擎在增强与风控之前的输出。
type FusedDecision struct {
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
}

// RiskParameters 描述一笔建议交易的风控参数。
// HOLD 信号所有字段为零。
type RiskParameters struct {
	StopLoss        float64 `json:"stop_loss"`
	TakeProfit      float64 `json:"take_profit"`
	PositionSizeUSD float64 `json:"position_size_usd"`
	Leverage        int     `json:"leverage"`
}

// IsZero 返回风控参数是否全部为零（HOLD 或价格缺失的退化情形）。
func (r RiskParameters) IsZero() bool {
	return r.StopLoss == 0 && r.TakeProfit == 0 && r.PositionSizeUSD == 0 && r.Leverage == 0
}

// TradingSignal 是一次分析的最终产物，按值交付给通知/存储方。
type TradingSignal struct {
	Symbol    string    `json:"symbol"`
	TraceID   string    `json:"trace_id"`
	Timestamp time.Time `json:"timestamp"`

	FinalAction     Action         `json:"final_action"`
	FinalConfidence float64        `json:"final_confidence"`
	Strength        SignalStrength `json:"signal_strength"`

	EntryPrice float64        `json:"entry_price"`
	Risk       RiskParameters `json:"risk"`

	Regime              MarketRegime             `json:"market_regime,omitempty"`
	Reasoning           string                   `json:"reasoning,omitempty"`
	KeyFactors          []string                 `json:"key_factors,omitempty"`
	ConfidenceBreakdown map[ProviderKind]float64 `json:"confidence_breakdown,omitempty"`
	Unavailable         []ProviderKind           `json:"unavailable,omitempty"`

	ValidUntil time.Time `json:"valid_until"`
}

// Expired 返回信号是否超出有效窗口，过期信号不得再用于决策。
func (s TradingSignal) Expired(now time.Time) bool {
	return !s.ValidUntil.IsZero() && now.After(s.ValidUntil)
}
