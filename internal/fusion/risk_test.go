package fusion

import (
	"testing"

	"tpush/internal/config"
	"tpush/internal/signal"

	"github.com/stretchr/testify/assert"
)

func testRiskCalculator() RiskCalculator {
	return NewRiskCalculator(config.DefaultRiskConfig())
}

func TestRiskCalculator_SellLowTier(t *testing.T) {
	calc := testRiskCalculator()
	risk := calc.Calculate(100, signal.ActionSell, 0.65)

	// 置信度低于 0.70：止损 2.0%、止盈 2.5%
	assert.InDelta(t, 102.0, risk.StopLoss, 1e-9)
	assert.InDelta(t, 97.5, risk.TakeProfit, 1e-9)
	assert.InDelta(t, 150, risk.PositionSizeUSD, 1e-9)
	assert.Equal(t, 2, risk.Leverage)
}

func TestRiskCalculator_BuyHighTier(t *testing.T) {
	calc := testRiskCalculator()
	risk := calc.Calculate(100, signal.ActionBuy, 0.85)

	assert.InDelta(t, 98.5, risk.StopLoss, 1e-9)
	assert.InDelta(t, 103.0, risk.TakeProfit, 1e-9)
	assert.InDelta(t, 200, risk.PositionSizeUSD, 1e-9)
	assert.Equal(t, 3, risk.Leverage)
}

func TestRiskCalculator_HoldIsZero(t *testing.T) {
	calc := testRiskCalculator()
	assert.True(t, calc.Calculate(100, signal.ActionHold, 0.9).IsZero())
}

func TestRiskCalculator_MissingPriceIsZero(t *testing.T) {
	calc := testRiskCalculator()
	assert.True(t, calc.Calculate(0, signal.ActionBuy, 0.9).IsZero())
	assert.True(t, calc.Calculate(-5, signal.ActionSell, 0.9).IsZero())
}

func TestRiskCalculator_PriceOrderingInvariant(t *testing.T) {
	calc := testRiskCalculator()
	for _, conf := range []float64{0.15, 0.45, 0.65, 0.75, 0.95} {
		buy := calc.Calculate(250, signal.ActionBuy, conf)
		assert.Less(t, buy.StopLoss, 250.0, "buy conf=%.2f", conf)
		assert.Greater(t, buy.TakeProfit, 250.0, "buy conf=%.2f", conf)

		sell := calc.Calculate(250, signal.ActionSell, conf)
		assert.Greater(t, sell.StopLoss, 250.0, "sell conf=%.2f", conf)
		assert.Less(t, sell.TakeProfit, 250.0, "sell conf=%.2f", conf)
	}
}

func TestRiskCalculator_PositionAndLeverageTiers(t *testing.T) {
	calc := testRiskCalculator()
	cases := []struct {
		confidence float64
		sizeUSD    float64
		leverage   int
	}{
		{0.85, 200, 3},
		{0.70, 150, 2},
		{0.50, 100, 1},
		{0.20, 50, 1},
	}
	for _, tc := range cases {
		risk := calc.Calculate(100, signal.ActionBuy, tc.confidence)
		assert.InDelta(t, tc.sizeUSD, risk.PositionSizeUSD, 1e-9, "conf=%.2f", tc.confidence)
		assert.Equal(t, tc.leverage, risk.Leverage, "conf=%.2f", tc.confidence)
	}
}

func TestRiskCalculator_Idempotent(t *testing.T) {
	calc := testRiskCalculator()
	first := calc.Calculate(123.45, signal.ActionBuy, 0.72)
	second := calc.Calculate(123.45, signal.ActionBuy, 0.72)
	assert.Equal(t, first, second)
}
