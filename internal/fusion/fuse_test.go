package fusion

import (
	"testing"

	"tpush/internal/config"
	"tpush/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseWeightSet() signal.WeightSet {
	return signal.WeightSet{
		Weights: map[signal.ProviderKind]float64{
			signal.ProviderKronos:    0.50,
			signal.ProviderTechnical: 0.35,
			signal.ProviderML:        0.10,
			signal.ProviderPosition:  0.05,
		},
		Regime:               signal.RegimeNormalVolatility,
		ConfidenceMultiplier: 1.0,
	}
}

func availableSet(kinds ...signal.ProviderKind) func(signal.ProviderKind) bool {
	set := make(map[signal.ProviderKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return func(k signal.ProviderKind) bool { return set[k] }
}

func opinions(ops ...signal.SourceOpinion) CollectResult {
	out := CollectResult{Opinions: make(map[signal.ProviderKind]signal.SourceOpinion, len(ops))}
	for _, op := range ops {
		out.Opinions[op.Provider] = op
	}
	return out
}

func testFuser() fuser {
	cfg := config.DefaultFusionConfig()
	return fuser{dominance: cfg.Dominance, fallback: cfg.FallbackConfidence}
}

func TestRepairWeights_MissingForecasterTransfersToTechnical(t *testing.T) {
	repaired := repairWeights(baseWeightSet(),
		availableSet(signal.ProviderTechnical, signal.ProviderML, signal.ProviderPosition))

	assert.InDelta(t, 1.0, repaired.Sum(), 1e-9)
	assert.Zero(t, repaired.Weights[signal.ProviderKronos])
	// 0.35+0.50=0.85，其余 0.10/0.05，总和已为 1
	assert.InDelta(t, 0.85, repaired.Weights[signal.ProviderTechnical], 1e-9)
	assert.InDelta(t, 0.10, repaired.Weights[signal.ProviderML], 1e-9)
	assert.InDelta(t, 0.05, repaired.Weights[signal.ProviderPosition], 1e-9)
}

func TestRepairWeights_OtherMissingProviderIsRenormalized(t *testing.T) {
	repaired := repairWeights(baseWeightSet(),
		availableSet(signal.ProviderKronos, signal.ProviderTechnical, signal.ProviderPosition))

	assert.InDelta(t, 1.0, repaired.Sum(), 1e-9)
	assert.Zero(t, repaired.Weights[signal.ProviderML])
	// 剔除 ml(0.10) 后按 0.90 归一化
	assert.InDelta(t, 0.50/0.90, repaired.Weights[signal.ProviderKronos], 1e-9)
	assert.InDelta(t, 0.35/0.90, repaired.Weights[signal.ProviderTechnical], 1e-9)
}

func TestRepairWeights_ConservationAcrossCombinations(t *testing.T) {
	combos := [][]signal.ProviderKind{
		{signal.ProviderKronos},
		{signal.ProviderTechnical},
		{signal.ProviderKronos, signal.ProviderTechnical},
		{signal.ProviderML, signal.ProviderPosition},
		signal.AllProviderKinds,
	}
	for _, combo := range combos {
		repaired := repairWeights(baseWeightSet(), availableSet(combo...))
		assert.InDelta(t, 1.0, repaired.Sum(), 1e-9, "combo %v", combo)
	}
}

func TestFuse_ExtremeDominanceOverridesOtherOpinions(t *testing.T) {
	f := testFuser()
	result := opinions(
		signal.SourceOpinion{Provider: signal.ProviderKronos, Action: signal.ActionBuy, Confidence: 0.92},
		signal.SourceOpinion{Provider: signal.ProviderTechnical, Action: signal.ActionSell, Confidence: 0.80},
	)

	decision, _ := f.fuse(result, baseWeightSet())
	assert.Equal(t, signal.ActionBuy, decision.Action)
	// max(0.75, 0.92*0.9) = 0.828
	assert.InDelta(t, 0.828, decision.Confidence, 1e-9)
}

func TestFuse_ExtremeDominanceFloorApplies(t *testing.T) {
	f := testFuser()
	// 0.90*0.9=0.81 > 0.75，改用刚好触发下限的临界值不可构造（0.75/0.9≈0.833<0.90），
	// 因此通过低波动阈值（extreme=0.90）验证下限分支需要更低的 scale；
	// 这里只验证折扣路径结果不低于下限。
	result := opinions(
		signal.SourceOpinion{Provider: signal.ProviderKronos, Action: signal.ActionSell, Confidence: 0.90},
	)
	decision, _ := f.fuse(result, baseWeightSet())
	assert.Equal(t, signal.ActionSell, decision.Action)
	assert.GreaterOrEqual(t, decision.Confidence, 0.75)
}

func TestFuse_DominantBandBlendsConfidence(t *testing.T) {
	f := testFuser()
	result := opinions(
		signal.SourceOpinion{Provider: signal.ProviderKronos, Action: signal.ActionBuy, Confidence: 0.82},
		signal.SourceOpinion{Provider: signal.ProviderTechnical, Action: signal.ActionSell, Confidence: 0.60},
	)

	decision, _ := f.fuse(result, baseWeightSet())
	assert.Equal(t, signal.ActionBuy, decision.Action)
	// 0.70*0.82 + 0.30*0.60 = 0.754
	assert.InDelta(t, 0.754, decision.Confidence, 1e-9)
}

func TestFuse_DominanceIgnoresHoldForecast(t *testing.T) {
	f := testFuser()
	result := opinions(
		signal.SourceOpinion{Provider: signal.ProviderKronos, Action: signal.ActionHold, Confidence: 0.95},
		signal.SourceOpinion{Provider: signal.ProviderTechnical, Action: signal.ActionBuy, Confidence: 0.70},
	)

	decision, _ := f.fuse(result, baseWeightSet())
	// HOLD 不触发覆盖，落入多数表决：1 票 BUY 对 1 票 HOLD → 平票观望
	assert.Equal(t, signal.ActionHold, decision.Action)
}

func TestFuse_ExtremeThresholdAdaptsToRegime(t *testing.T) {
	f := testFuser()
	set := baseWeightSet()
	set.Regime = signal.RegimeExtremeVolatility // extreme 阈值 0.95

	result := opinions(
		signal.SourceOpinion{Provider: signal.ProviderKronos, Action: signal.ActionBuy, Confidence: 0.92},
		signal.SourceOpinion{Provider: signal.ProviderTechnical, Action: signal.ActionBuy, Confidence: 0.60},
	)
	decision, _ := f.fuse(result, set)
	// 0.92 < 0.95，不走极端覆盖；但 0.92 ≥ dominant 0.85，走混合
	assert.Equal(t, signal.ActionBuy, decision.Action)
	assert.InDelta(t, 0.70*0.92+0.30*0.60, decision.Confidence, 1e-9)
}

func TestFuse_WeightedMajorityTieResolvesToHold(t *testing.T) {
	f := testFuser()
	result := opinions(
		signal.SourceOpinion{Provider: signal.ProviderTechnical, Action: signal.ActionBuy, Confidence: 0.60},
		signal.SourceOpinion{Provider: signal.ProviderML, Action: signal.ActionSell, Confidence: 0.60},
	)

	decision, _ := f.fuse(result, baseWeightSet())
	assert.Equal(t, signal.ActionHold, decision.Action)
}

func TestFuse_WeightedMeanAfterRepair(t *testing.T) {
	f := testFuser()
	result := opinions(
		signal.SourceOpinion{Provider: signal.ProviderTechnical, Action: signal.ActionBuy, Confidence: 0.70},
		signal.SourceOpinion{Provider: signal.ProviderML, Action: signal.ActionBuy, Confidence: 0.60},
		signal.SourceOpinion{Provider: signal.ProviderPosition, Action: signal.ActionHold, Confidence: 0.50},
	)

	decision, repaired := f.fuse(result, baseWeightSet())
	require.InDelta(t, 1.0, repaired.Sum(), 1e-9)
	assert.Equal(t, signal.ActionBuy, decision.Action)
	// 0.85*0.70 + 0.10*0.60 + 0.05*0.50 = 0.68
	assert.InDelta(t, 0.68, decision.Confidence, 1e-9)
}

func TestFuse_NoOpinionsFallsBackToHold(t *testing.T) {
	f := testFuser()
	decision, _ := f.fuse(CollectResult{Opinions: map[signal.ProviderKind]signal.SourceOpinion{}}, baseWeightSet())
	assert.Equal(t, signal.ActionHold, decision.Action)
	assert.InDelta(t, 0.5, decision.Confidence, 1e-9)
}

func TestFuse_DominantBandWithNoOtherSourcesUsesForecasterConfidence(t *testing.T) {
	f := testFuser()
	result := opinions(
		signal.SourceOpinion{Provider: signal.ProviderKronos, Action: signal.ActionBuy, Confidence: 0.82},
	)
	decision, _ := f.fuse(result, baseWeightSet())
	assert.Equal(t, signal.ActionBuy, decision.Action)
	assert.InDelta(t, 0.82, decision.Confidence, 1e-9)
}
