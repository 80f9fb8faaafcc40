package config

import (
	"fmt"
	"math"
	"strings"

	"tpush/internal/signal"
)

const weightSumTolerance = 1e-6

func validate(c *Config) error {
	if err := c.Providers.validate(); err != nil {
		return err
	}
	if c.Providers.Position.Enabled &&
		(strings.TrimSpace(c.Market.APIKey) == "" || strings.TrimSpace(c.Market.APISecret) == "") {
		return fmt.Errorf("market.api_key/api_secret are required when providers.position is enabled")
	}
	if err := c.Fusion.validate(); err != nil {
		return err
	}
	if err := c.Weights.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Monitor.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (p *ProvidersConfig) validate() error {
	if p.Kronos.Enabled && strings.TrimSpace(p.Kronos.BaseURL) == "" {
		return fmt.Errorf("providers.kronos.base_url is required when enabled")
	}
	if !p.Kronos.Enabled && !p.Technical.Enabled && !p.ML.Enabled && !p.Position.Enabled {
		return fmt.Errorf("providers requires at least one enabled provider")
	}
	return nil
}

func (f *FusionConfig) validate() error {
	if f.ConfidenceFloor <= 0 || f.ConfidenceFloor >= 1 {
		return fmt.Errorf("fusion.confidence_floor=%.3f must be in (0,1)", f.ConfidenceFloor)
	}
	if f.ConfidenceCeiling <= f.ConfidenceFloor || f.ConfidenceCeiling >= 1 {
		return fmt.Errorf("fusion.confidence_ceiling=%.3f must be in (floor,1)", f.ConfidenceCeiling)
	}
	if f.FallbackConfidence < f.ConfidenceFloor || f.FallbackConfidence > f.ConfidenceCeiling {
		return fmt.Errorf("fusion.fallback_confidence=%.3f must be within [floor,ceiling]", f.FallbackConfidence)
	}
	if f.ValidityHours <= 0 {
		return fmt.Errorf("fusion.validity_hours must be > 0")
	}
	if f.Dominance.BlendRatio <= 0 || f.Dominance.BlendRatio >= 1 {
		return fmt.Errorf("fusion.dominance.blend_ratio=%.3f must be in (0,1)", f.Dominance.BlendRatio)
	}
	if f.Dominance.ExtremeFloor <= 0 || f.Dominance.ExtremeFloor >= 1 {
		return fmt.Errorf("fusion.dominance.extreme_floor=%.3f must be in (0,1)", f.Dominance.ExtremeFloor)
	}
	if f.Dominance.ExtremeScale <= 0 || f.Dominance.ExtremeScale > 1 {
		return fmt.Errorf("fusion.dominance.extreme_scale=%.3f must be in (0,1]", f.Dominance.ExtremeScale)
	}
	if _, ok := f.Dominance.Thresholds[string(signal.RegimeNormalVolatility)]; !ok {
		return fmt.Errorf("fusion.dominance.thresholds requires an entry for %s", signal.RegimeNormalVolatility)
	}
	for regime, th := range f.Dominance.Thresholds {
		if !knownRegime(regime) {
			return fmt.Errorf("fusion.dominance.thresholds contains unknown regime %q", regime)
		}
		if th.Dominant <= 0 || th.Dominant >= 1 {
			return fmt.Errorf("fusion.dominance.thresholds.%s.dominant=%.3f must be in (0,1)", regime, th.Dominant)
		}
		if th.Extreme <= th.Dominant || th.Extreme >= 1 {
			return fmt.Errorf("fusion.dominance.thresholds.%s.extreme=%.3f must be in (dominant,1)", regime, th.Extreme)
		}
	}
	if err := f.Strength.Table().Validate(); err != nil {
		return fmt.Errorf("fusion.strength invalid: %w", err)
	}
	return nil
}

func (w *WeightsConfig) validate() error {
	if err := validateWeightMap("weights.base", w.Base); err != nil {
		return err
	}
	for regime, strat := range w.Strategies {
		if !knownRegime(regime) {
			return fmt.Errorf("weights.strategies contains unknown regime %q", regime)
		}
		if err := validateWeightMap("weights.strategies."+regime, strat.Weights); err != nil {
			return err
		}
		if strat.ConfidenceMultiplier <= 0 {
			return fmt.Errorf("weights.strategies.%s.confidence_multiplier must be > 0", regime)
		}
	}
	if w.CacheTTLMinutes <= 0 {
		return fmt.Errorf("weights.cache_ttl_minutes must be > 0")
	}
	if w.VolatilityLow <= 0 || w.VolatilityLow >= w.VolatilityHigh || w.VolatilityHigh >= w.VolatilityExtreme {
		return fmt.Errorf("weights volatility thresholds must satisfy 0 < low < high < extreme")
	}
	return nil
}

func validateWeightMap(path string, weights map[string]float64) error {
	if len(weights) == 0 {
		return fmt.Errorf("%s requires at least one provider weight", path)
	}
	sum := 0.0
	for name, v := range weights {
		if !knownProvider(name) {
			return fmt.Errorf("%s contains unknown provider %q", path, name)
		}
		if v < 0 {
			return fmt.Errorf("%s.%s=%.3f must be >= 0", path, name, v)
		}
		sum += v
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("%s must sum to 1.0, got %.6f", path, sum)
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.CutoffConfidence <= 0 || r.CutoffConfidence >= 1 {
		return fmt.Errorf("risk.cutoff_confidence=%.3f must be in (0,1)", r.CutoffConfidence)
	}
	for _, pct := range []struct {
		name string
		val  float64
	}{
		{"high_stop_pct", r.HighStopPct},
		{"high_target_pct", r.HighTargetPct},
		{"low_stop_pct", r.LowStopPct},
		{"low_target_pct", r.LowTargetPct},
	} {
		if pct.val <= 0 || pct.val >= 1 {
			return fmt.Errorf("risk.%s=%.4f must be in (0,1)", pct.name, pct.val)
		}
	}
	if len(r.PositionTiers) == 0 {
		return fmt.Errorf("risk.position_tiers requires at least one tier")
	}
	prev := math.Inf(1)
	for i, tier := range r.PositionTiers {
		if tier.MinConfidence < 0 || tier.MinConfidence >= prev {
			return fmt.Errorf("risk.position_tiers[%d].min_confidence must descend and be >= 0", i)
		}
		if tier.SizeUSD <= 0 {
			return fmt.Errorf("risk.position_tiers[%d].size_usd must be > 0", i)
		}
		prev = tier.MinConfidence
	}
	if len(r.LeverageTiers) == 0 {
		return fmt.Errorf("risk.leverage_tiers requires at least one tier")
	}
	prev = math.Inf(1)
	for i, tier := range r.LeverageTiers {
		if tier.MinConfidence < 0 || tier.MinConfidence >= prev {
			return fmt.Errorf("risk.leverage_tiers[%d].min_confidence must descend and be >= 0", i)
		}
		if tier.Leverage < 1 {
			return fmt.Errorf("risk.leverage_tiers[%d].leverage must be >= 1", i)
		}
		prev = tier.MinConfidence
	}
	return nil
}

func (m *MonitorConfig) validate() error {
	if m.IntervalMinutes <= 0 {
		return fmt.Errorf("monitor.interval_minutes must be > 0")
	}
	if m.MaxConcurrency <= 0 {
		return fmt.Errorf("monitor.max_concurrency must be > 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(n.MinStrength)) {
	case "very_weak", "weak", "moderate", "strong", "very_strong":
	default:
		return fmt.Errorf("notify.min_strength=%q is not a known strength level", n.MinStrength)
	}
	if n.Telegram.Enabled {
		if strings.TrimSpace(n.Telegram.BotToken) == "" {
			return fmt.Errorf("notify.telegram.bot_token is required when enabled")
		}
		if strings.TrimSpace(n.Telegram.ChatID) == "" {
			return fmt.Errorf("notify.telegram.chat_id is required when enabled")
		}
	}
	return nil
}

func knownRegime(raw string) bool {
	switch signal.MarketRegime(raw) {
	case signal.RegimeLowVolatility, signal.RegimeNormalVolatility,
		signal.RegimeHighVolatility, signal.RegimeExtremeVolatility:
		return true
	}
	return false
}

func knownProvider(raw string) bool {
	switch signal.ProviderKind(raw) {
	case signal.ProviderKronos, signal.ProviderTechnical,
		signal.ProviderML, signal.ProviderPosition:
		return true
	}
	return false
}
