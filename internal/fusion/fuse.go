package fusion

import (
	"math"

	"tpush/internal/config"
	"tpush/internal/signal"
)

// 中文说明：
// 融合算法分三步：权重修复 → 主导覆盖 → 加权多数表决。
// 权重守恒：修复前后可用来源的权重总和保持 1.0。

// fuser 持有融合所需的阈值配置，无可变状态。
type fuser struct {
	dominance config.DominanceConfig
	fallback  float64
}

// repairWeights 按可用性修复权重：
// 预测器缺席时其权重整体转移给技术分析，其余缺席来源直接剔除后归一化。
func repairWeights(set signal.WeightSet, available func(signal.ProviderKind) bool) signal.WeightSet {
	out := set
	out.Weights = make(map[signal.ProviderKind]float64, len(set.Weights))
	for k, v := range set.Weights {
		out.Weights[k] = v
	}

	if !available(signal.ProviderKronos) && available(signal.ProviderTechnical) {
		out.Weights[signal.ProviderTechnical] += out.Weights[signal.ProviderKronos]
		delete(out.Weights, signal.ProviderKronos)
	}
	for kind := range out.Weights {
		if !available(kind) {
			delete(out.Weights, kind)
		}
	}
	return out.Normalized()
}

// fuse 执行主导覆盖与加权多数表决，产出融合决策。
func (f fuser) fuse(result CollectResult, weights signal.WeightSet) (signal.FusedDecision, signal.WeightSet) {
	repaired := repairWeights(weights, result.Available)

	if len(result.Opinions) == 0 {
		return signal.FusedDecision{Action: signal.ActionHold, Confidence: f.fallback}, repaired
	}

	if decision, ok := f.dominanceOverride(result, repaired, weights.Regime); ok {
		return decision, repaired
	}
	return weightedMajority(result, repaired), repaired
}

// dominanceOverride 检查预测器置信度是否达到主导/极端阈值。
func (f fuser) dominanceOverride(result CollectResult, repaired signal.WeightSet, regime signal.MarketRegime) (signal.FusedDecision, bool) {
	kronos, ok := result.Opinions[signal.ProviderKronos]
	if !ok || !kronos.Action.Directional() {
		return signal.FusedDecision{}, false
	}
	th := f.dominance.ThresholdFor(regime)

	switch {
	case kronos.Confidence >= th.Extreme:
		// 极端置信：无条件采纳，轻微折扣并给下限兜底
		conf := math.Max(f.dominance.ExtremeFloor, kronos.Confidence*f.dominance.ExtremeScale)
		return signal.FusedDecision{Action: kronos.Action, Confidence: conf}, true
	case kronos.Confidence >= th.Dominant:
		// 主导置信：采纳动作，置信度按比例混合其余来源
		rest := restConfidence(result, repaired)
		if rest == 0 {
			rest = kronos.Confidence
		}
		blend := f.dominance.BlendRatio
		conf := blend*kronos.Confidence + (1-blend)*rest
		return signal.FusedDecision{Action: kronos.Action, Confidence: conf}, true
	default:
		return signal.FusedDecision{}, false
	}
}

// restConfidence 计算除预测器外其余可用来源的权重加权平均置信度。
func restConfidence(result CollectResult, repaired signal.WeightSet) float64 {
	sum, weightSum := 0.0, 0.0
	for kind, opinion := range result.Opinions {
		if kind == signal.ProviderKronos {
			continue
		}
		w := repaired.Weights[kind]
		sum += w * opinion.Confidence
		weightSum += w
	}
	if weightSum <= 0 {
		return 0
	}
	return sum / weightSum
}

// weightedMajority 一来源一票选动作（平票观望），置信度取修复权重加权均值。
func weightedMajority(result CollectResult, repaired signal.WeightSet) signal.FusedDecision {
	votes := make(map[signal.Action]int, 3)
	for _, opinion := range result.Opinions {
		votes[opinion.Action]++
	}

	action := signal.ActionHold
	best := 0
	tie := false
	for _, candidate := range []signal.Action{signal.ActionBuy, signal.ActionSell, signal.ActionHold} {
		n := votes[candidate]
		if n > best {
			action, best, tie = candidate, n, false
		} else if n == best && n > 0 && candidate != action {
			tie = true
		}
	}
	if tie {
		action = signal.ActionHold
	}

	confidence := 0.0
	weightSum := 0.0
	for kind, opinion := range result.Opinions {
		w := repaired.Weights[kind]
		confidence += w * opinion.Confidence
		weightSum += w
	}
	if weightSum > 0 {
		confidence /= weightSum
	}
	return signal.FusedDecision{Action: action, Confidence: confidence}
}
