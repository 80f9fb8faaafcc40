package fusion

import (
	"context"
	"testing"
	"time"

	"tpush/internal/signal"

	"github.com/stretchr/testify/assert"
)

type stubEnhancer struct {
	source signal.EnhancementSource
	delta  float64
	ok     bool
	err    error
}

func (s stubEnhancer) Source() signal.EnhancementSource { return s.source }

func (s stubEnhancer) Adjustment(ctx context.Context, symbol string, proposed signal.Action) (signal.EnhancementAdjustment, bool, error) {
	if s.err != nil {
		return signal.EnhancementAdjustment{}, false, s.err
	}
	return signal.EnhancementAdjustment{Source: s.source, Delta: s.delta}, s.ok, nil
}

func TestApplyAdjustments_SumsAndClamps(t *testing.T) {
	fused := signal.FusedDecision{Action: signal.ActionBuy, Confidence: 0.70}
	adjustments := []signal.EnhancementAdjustment{
		{Source: signal.EnhanceVolumeAnomaly, Delta: 0.15},
		{Source: signal.EnhanceOpenInterest, Delta: 0.10},
	}
	// 0.70+0.25=0.95 再乘 1.1 = 1.045 → 收敛到 0.95
	final := applyAdjustments(fused, adjustments, 1.1, 0.10, 0.95)
	assert.InDelta(t, 0.95, final, 1e-9)
}

func TestApplyAdjustments_FloorHolds(t *testing.T) {
	fused := signal.FusedDecision{Action: signal.ActionSell, Confidence: 0.20}
	adjustments := []signal.EnhancementAdjustment{
		{Source: signal.EnhanceVolumeAnomaly, Delta: -0.30},
	}
	final := applyAdjustments(fused, adjustments, 0.8, 0.10, 0.95)
	assert.InDelta(t, 0.10, final, 1e-9)
}

func TestApplyAdjustments_MultiplierApplied(t *testing.T) {
	fused := signal.FusedDecision{Action: signal.ActionBuy, Confidence: 0.60}
	final := applyAdjustments(fused, nil, 0.9, 0.10, 0.95)
	assert.InDelta(t, 0.54, final, 1e-9)
}

func TestCollectAdjustments_FailedEnhancerIsSkipped(t *testing.T) {
	enhancers := []Enhancer{
		stubEnhancer{source: signal.EnhanceVolumeAnomaly, delta: 0.1, ok: true},
		stubEnhancer{source: signal.EnhanceOpenInterest, err: assert.AnError},
	}
	adjustments := collectAdjustments(context.Background(), enhancers, "BTCUSDT", signal.ActionBuy, time.Second)
	assert.Len(t, adjustments, 1)
	assert.Equal(t, signal.EnhanceVolumeAnomaly, adjustments[0].Source)
}

func TestCollectAdjustments_NotTriggeredReturnsNothing(t *testing.T) {
	enhancers := []Enhancer{
		stubEnhancer{source: signal.EnhanceVolumeAnomaly, ok: false},
	}
	adjustments := collectAdjustments(context.Background(), enhancers, "BTCUSDT", signal.ActionBuy, time.Second)
	assert.Empty(t, adjustments)
}
