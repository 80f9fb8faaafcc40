package fusion

import (
	"fmt"
	"strings"
	"time"

	"tpush/internal/signal"
)

// 中文说明：
// 装配器把融合结果、风控参数与各来源意见拼成最终 TradingSignal。
// 这一步不会失败：即使所有来源都不可用，也产出一个退化的 HOLD 信号。

type assembleInput struct {
	symbol      string
	traceID     string
	timestamp   time.Time
	action      signal.Action
	confidence  float64
	strength    signal.SignalStrength
	entryPrice  float64
	risk        signal.RiskParameters
	weights     signal.WeightSet
	result      CollectResult
	adjustments []signal.EnhancementAdjustment
	validity    time.Duration
}

var providerLabels = map[signal.ProviderKind]string{
	signal.ProviderKronos:    "AI预测",
	signal.ProviderTechnical: "技术分析",
	signal.ProviderML:        "ML预测",
	signal.ProviderPosition:  "持仓分析",
}

var enhancementLabels = map[signal.EnhancementSource]string{
	signal.EnhanceVolumeAnomaly: "量异动",
	signal.EnhanceOpenInterest:  "持仓量确认",
}

func assemble(in assembleInput) signal.TradingSignal {
	out := signal.TradingSignal{
		Symbol:          in.symbol,
		TraceID:         in.traceID,
		Timestamp:       in.timestamp,
		FinalAction:     in.action,
		FinalConfidence: in.confidence,
		Strength:        in.strength,
		EntryPrice:      in.entryPrice,
		Risk:            in.risk,
		Regime:          in.weights.Regime,
		Reasoning:       buildReasoning(in),
		KeyFactors:      buildKeyFactors(in),
		Unavailable:     append([]signal.ProviderKind(nil), in.result.Unavailable...),
		ValidUntil:      in.timestamp.Add(in.validity),
	}
	if len(in.result.Opinions) > 0 {
		out.ConfidenceBreakdown = make(map[signal.ProviderKind]float64, len(in.result.Opinions))
		for kind, opinion := range in.result.Opinions {
			out.ConfidenceBreakdown[kind] = opinion.Confidence
		}
	}
	return out
}

// buildReasoning 串联权重依据、各来源意见与增强修正，生成可读说明。
func buildReasoning(in assembleInput) string {
	var parts []string
	if r := strings.TrimSpace(in.weights.Reasoning); r != "" {
		parts = append(parts, r)
	}
	for _, kind := range signal.AllProviderKinds {
		opinion, ok := in.result.Opinions[kind]
		if !ok {
			continue
		}
		entry := fmt.Sprintf("%s: %s (%.0f%%)", providerLabel(kind), opinion.Action, opinion.Confidence*100)
		if s := strings.TrimSpace(opinion.Summary); s != "" {
			entry += " - " + s
		}
		parts = append(parts, entry)
	}
	for _, kind := range in.result.Unavailable {
		parts = append(parts, fmt.Sprintf("%s: 本轮不可用", providerLabel(kind)))
	}
	for _, adj := range in.adjustments {
		entry := fmt.Sprintf("%s: %+.2f", enhancementLabel(adj.Source), adj.Delta)
		if r := strings.TrimSpace(adj.Rationale); r != "" {
			entry += " - " + r
		}
		parts = append(parts, entry)
	}
	if len(parts) == 0 {
		parts = append(parts, "所有来源不可用，默认观望")
	}
	return strings.Join(parts, "；")
}

// buildKeyFactors 生成定性标签列表，推送端用于摘要展示。
func buildKeyFactors(in assembleInput) []string {
	var factors []string
	for _, kind := range signal.AllProviderKinds {
		if in.result.Available(kind) {
			factors = append(factors, providerLabel(kind))
		}
	}
	for _, adj := range in.adjustments {
		if adj.Delta != 0 {
			factors = append(factors, enhancementLabel(adj.Source))
		}
	}
	return factors
}

func providerLabel(kind signal.ProviderKind) string {
	if label, ok := providerLabels[kind]; ok {
		return label
	}
	return string(kind)
}

func enhancementLabel(source signal.EnhancementSource) string {
	if label, ok := enhancementLabels[source]; ok {
		return label
	}
	return string(source)
}
