package config

import (
	"strings"

	"tpush/internal/signal"
)

// 默认值常量（阈值均可被配置覆盖，校验在 validation.go）
const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9992"
	defaultAppLogPath  = "/data/logs/tpush.log"

	defaultMarketREST     = "https://fapi.binance.com"
	defaultMarketTimeout  = 10
	defaultKlineMaxCached = 300

	defaultProviderTimeout = 10
	defaultKronosTimeout   = 20
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 120
	defaultTAInterval      = "1h"
	defaultTALookback      = 200
	defaultMLInterval      = "1h"
	defaultMLLookback      = 96

	defaultConfidenceFloor    = 0.10
	defaultConfidenceCeiling  = 0.95
	defaultFallbackConfidence = 0.5
	defaultValidityHours      = 4

	defaultDominanceBlend        = 0.70
	defaultDominanceExtremeFloor = 0.75
	defaultDominanceExtremeScale = 0.90

	defaultStrengthVeryStrong = 0.85
	defaultStrengthStrong     = 0.75
	defaultStrengthModerate   = 0.65
	defaultStrengthWeak       = 0.55

	defaultWeightCacheTTL    = 15
	defaultVolatilityLow     = 0.2
	defaultVolatilityHigh    = 0.5
	defaultVolatilityExtreme = 0.8

	defaultRiskCutoff     = 0.70
	defaultHighStopPct    = 0.015
	defaultHighTargetPct  = 0.030
	defaultLowStopPct     = 0.020
	defaultLowTargetPct   = 0.025

	defaultEnhanceTimeout  = 8
	defaultVolumeInterval  = "1h"
	defaultVolumeLookback  = 24
	defaultVolumeZTrigger  = 2.0
	defaultVolumeMaxBoost  = 0.20
	defaultVolumeMaxPen    = 0.10
	defaultOIPeriod        = "1h"
	defaultOILookback      = 24
	defaultOIChangeTrigger = 0.05
	defaultOIMaxBoost      = 0.15
	defaultOIMaxPen        = 0.08

	defaultMonitorInterval    = 60
	defaultMonitorConcurrency = 5
	defaultWatchlistPath      = "configs/watchlist.yaml"

	defaultNotifyMinStrength = "strong"
	defaultStorePath         = "/data/db/tpush_signals.db"
)

// defaultBaseWeights 是 normal 状态的基础权重（总和 1.0）。
func defaultBaseWeights() map[string]float64 {
	return map[string]float64{
		string(signal.ProviderKronos):    0.50,
		string(signal.ProviderTechnical): 0.35,
		string(signal.ProviderML):        0.10,
		string(signal.ProviderPosition):  0.05,
	}
}

// defaultRegimeStrategies 对应四档波动状态的权重策略。
// 低波动加重 AI 预测，高/极端波动转向技术分析并压低置信度。
func defaultRegimeStrategies() map[string]RegimeStrategy {
	return map[string]RegimeStrategy{
		string(signal.RegimeLowVolatility): {
			Weights: map[string]float64{
				string(signal.ProviderKronos):    0.60,
				string(signal.ProviderTechnical): 0.25,
				string(signal.ProviderML):        0.10,
				string(signal.ProviderPosition):  0.05,
			},
			ConfidenceMultiplier: 1.1,
			Reasoning:            "低波动期：增加AI预测权重，技术指标可能滞后",
		},
		string(signal.RegimeNormalVolatility): {
			Weights: map[string]float64{
				string(signal.ProviderKronos):    0.50,
				string(signal.ProviderTechnical): 0.35,
				string(signal.ProviderML):        0.10,
				string(signal.ProviderPosition):  0.05,
			},
			ConfidenceMultiplier: 1.0,
			Reasoning:            "正常波动期：使用标准权重配置",
		},
		string(signal.RegimeHighVolatility): {
			Weights: map[string]float64{
				string(signal.ProviderKronos):    0.40,
				string(signal.ProviderTechnical): 0.45,
				string(signal.ProviderML):        0.10,
				string(signal.ProviderPosition):  0.05,
			},
			ConfidenceMultiplier: 0.9,
			Reasoning:            "高波动期：增加技术分析权重，AI预测可能不稳定",
		},
		string(signal.RegimeExtremeVolatility): {
			Weights: map[string]float64{
				string(signal.ProviderKronos):    0.30,
				string(signal.ProviderTechnical): 0.55,
				string(signal.ProviderML):        0.10,
				string(signal.ProviderPosition):  0.05,
			},
			ConfidenceMultiplier: 0.8,
			Reasoning:            "极端波动期：主要依赖技术分析，AI预测不可靠",
		},
	}
}

// defaultDominanceThresholds 按市场状态给出主导/极端覆盖阈值。
func defaultDominanceThresholds() map[string]DominanceThreshold {
	return map[string]DominanceThreshold{
		string(signal.RegimeLowVolatility):     {Dominant: 0.78, Extreme: 0.90},
		string(signal.RegimeNormalVolatility):  {Dominant: 0.80, Extreme: 0.90},
		string(signal.RegimeHighVolatility):    {Dominant: 0.82, Extreme: 0.92},
		string(signal.RegimeExtremeVolatility): {Dominant: 0.85, Extreme: 0.95},
	}
}

func defaultPositionTiers() []PositionTier {
	return []PositionTier{
		{MinConfidence: 0.8, SizeUSD: 200},
		{MinConfidence: 0.6, SizeUSD: 150},
		{MinConfidence: 0.4, SizeUSD: 100},
		{MinConfidence: 0, SizeUSD: 50},
	}
}

func defaultLeverageTiers() []LeverageTier {
	return []LeverageTier{
		{MinConfidence: 0.8, Leverage: 3},
		{MinConfidence: 0.6, Leverage: 2},
		{MinConfidence: 0, Leverage: 1},
	}
}

// DefaultWeightsConfig 返回内置权重配置，供测试与退化路径使用。
func DefaultWeightsConfig() WeightsConfig {
	var w WeightsConfig
	w.applyDefaults(nil)
	return w
}

// DefaultFusionConfig 返回内置融合阈值配置。
func DefaultFusionConfig() FusionConfig {
	var f FusionConfig
	f.applyDefaults(nil)
	return f
}

// DefaultRiskConfig 返回内置风控分层配置。
func DefaultRiskConfig() RiskConfig {
	var r RiskConfig
	r.applyDefaults(nil)
	return r
}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Providers.applyDefaults(keys)
	c.Fusion.applyDefaults(keys)
	c.Weights.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Enhance.applyDefaults(keys)
	c.Monitor.applyDefaults(keys)
	c.Notify.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	m.Proxy.normalize()
	applyFieldDefaults(keys,
		stringFieldDefault("market.rest_base_url", &m.RESTBaseURL, defaultMarketREST),
		intFieldDefault("market.timeout_seconds", &m.TimeoutSeconds, defaultMarketTimeout),
		intFieldDefault("market.kline_max_cached", &m.KlineMaxCached, defaultKlineMaxCached),
	)
}

func (p *ProvidersConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("providers.kronos.enabled", &p.Kronos.Enabled, true),
		intFieldDefault("providers.kronos.timeout_seconds", &p.Kronos.TimeoutSeconds, defaultKronosTimeout),
		intFieldDefault("providers.kronos.breaker_threshold", &p.Kronos.BreakerThreshold, defaultBreakerFailures),
		intFieldDefault("providers.kronos.breaker_cooldown_seconds", &p.Kronos.BreakerCooldownSeconds, defaultBreakerCooldown),
		boolFieldDefault("providers.technical.enabled", &p.Technical.Enabled, true),
		stringFieldDefault("providers.technical.interval", &p.Technical.Interval, defaultTAInterval),
		intFieldDefault("providers.technical.lookback", &p.Technical.Lookback, defaultTALookback),
		intFieldDefault("providers.technical.timeout_seconds", &p.Technical.TimeoutSeconds, defaultProviderTimeout),
		boolFieldDefault("providers.ml.enabled", &p.ML.Enabled, true),
		stringFieldDefault("providers.ml.interval", &p.ML.Interval, defaultMLInterval),
		intFieldDefault("providers.ml.lookback", &p.ML.Lookback, defaultMLLookback),
		intFieldDefault("providers.ml.timeout_seconds", &p.ML.TimeoutSeconds, defaultProviderTimeout),
		boolFieldDefault("providers.position.enabled", &p.Position.Enabled, false),
		intFieldDefault("providers.position.timeout_seconds", &p.Position.TimeoutSeconds, defaultProviderTimeout),
	)
}

func (f *FusionConfig) applyDefaults(keys keySet) {
	if f == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("fusion.confidence_floor", &f.ConfidenceFloor, defaultConfidenceFloor),
		floatFieldDefault("fusion.confidence_ceiling", &f.ConfidenceCeiling, defaultConfidenceCeiling),
		floatFieldDefault("fusion.fallback_confidence", &f.FallbackConfidence, defaultFallbackConfidence),
		intFieldDefault("fusion.validity_hours", &f.ValidityHours, defaultValidityHours),
		floatFieldDefault("fusion.dominance.blend_ratio", &f.Dominance.BlendRatio, defaultDominanceBlend),
		floatFieldDefault("fusion.dominance.extreme_floor", &f.Dominance.ExtremeFloor, defaultDominanceExtremeFloor),
		floatFieldDefault("fusion.dominance.extreme_scale", &f.Dominance.ExtremeScale, defaultDominanceExtremeScale),
		floatFieldDefault("fusion.strength.very_strong", &f.Strength.VeryStrong, defaultStrengthVeryStrong),
		floatFieldDefault("fusion.strength.strong", &f.Strength.Strong, defaultStrengthStrong),
		floatFieldDefault("fusion.strength.moderate", &f.Strength.Moderate, defaultStrengthModerate),
		floatFieldDefault("fusion.strength.weak", &f.Strength.Weak, defaultStrengthWeak),
	)
	if len(f.Dominance.Thresholds) == 0 {
		f.Dominance.Thresholds = defaultDominanceThresholds()
	}
}

func (w *WeightsConfig) applyDefaults(keys keySet) {
	if w == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("weights.cache_ttl_minutes", &w.CacheTTLMinutes, defaultWeightCacheTTL),
		floatFieldDefault("weights.volatility_low", &w.VolatilityLow, defaultVolatilityLow),
		floatFieldDefault("weights.volatility_high", &w.VolatilityHigh, defaultVolatilityHigh),
		floatFieldDefault("weights.volatility_extreme", &w.VolatilityExtreme, defaultVolatilityExtreme),
	)
	if len(w.Base) == 0 {
		w.Base = defaultBaseWeights()
	}
	if len(w.Strategies) == 0 {
		w.Strategies = defaultRegimeStrategies()
	}
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("risk.cutoff_confidence", &r.CutoffConfidence, defaultRiskCutoff),
		floatFieldDefault("risk.high_stop_pct", &r.HighStopPct, defaultHighStopPct),
		floatFieldDefault("risk.high_target_pct", &r.HighTargetPct, defaultHighTargetPct),
		floatFieldDefault("risk.low_stop_pct", &r.LowStopPct, defaultLowStopPct),
		floatFieldDefault("risk.low_target_pct", &r.LowTargetPct, defaultLowTargetPct),
	)
	if len(r.PositionTiers) == 0 {
		r.PositionTiers = defaultPositionTiers()
	}
	if len(r.LeverageTiers) == 0 {
		r.LeverageTiers = defaultLeverageTiers()
	}
}

func (e *EnhanceConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("enhance.timeout_seconds", &e.TimeoutSeconds, defaultEnhanceTimeout),
		boolFieldDefault("enhance.volume.enabled", &e.Volume.Enabled, true),
		stringFieldDefault("enhance.volume.interval", &e.Volume.Interval, defaultVolumeInterval),
		intFieldDefault("enhance.volume.lookback", &e.Volume.Lookback, defaultVolumeLookback),
		floatFieldDefault("enhance.volume.zscore_trigger", &e.Volume.ZScoreTrigger, defaultVolumeZTrigger),
		floatFieldDefault("enhance.volume.max_boost", &e.Volume.MaxBoost, defaultVolumeMaxBoost),
		floatFieldDefault("enhance.volume.max_penalty", &e.Volume.MaxPenalty, defaultVolumeMaxPen),
		boolFieldDefault("enhance.open_interest.enabled", &e.OpenInterest.Enabled, true),
		stringFieldDefault("enhance.open_interest.period", &e.OpenInterest.Period, defaultOIPeriod),
		intFieldDefault("enhance.open_interest.lookback", &e.OpenInterest.Lookback, defaultOILookback),
		floatFieldDefault("enhance.open_interest.change_trigger", &e.OpenInterest.ChangeTrigger, defaultOIChangeTrigger),
		floatFieldDefault("enhance.open_interest.max_boost", &e.OpenInterest.MaxBoost, defaultOIMaxBoost),
		floatFieldDefault("enhance.open_interest.max_penalty", &e.OpenInterest.MaxPenalty, defaultOIMaxPen),
	)
}

func (m *MonitorConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("monitor.interval_minutes", &m.IntervalMinutes, defaultMonitorInterval),
		intFieldDefault("monitor.max_concurrency", &m.MaxConcurrency, defaultMonitorConcurrency),
		stringFieldDefault("monitor.watchlist_path", &m.WatchlistPath, defaultWatchlistPath),
	)
}

func (n *NotifyConfig) applyDefaults(keys keySet) {
	if n == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("notify.min_strength", &n.MinStrength, defaultNotifyMinStrength),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && *target <= 0
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && *target == 0
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && !*target
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
