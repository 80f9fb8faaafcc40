package config

import (
	"strings"

	"tpush/internal/signal"
)

// Config 是 tpush 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Market    MarketConfig    `toml:"market"`
	Providers ProvidersConfig `toml:"providers"`
	Fusion    FusionConfig    `toml:"fusion"`
	Weights   WeightsConfig   `toml:"weights"`
	Risk      RiskConfig      `toml:"risk"`
	Enhance   EnhanceConfig   `toml:"enhance"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Notify    NotifyConfig    `toml:"notify"`
	Store     StoreConfig     `toml:"store"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// MarketConfig 描述行情数据源（Binance 合约 REST）。
// APIKey/APISecret 仅持仓查询等账户接口需要，公共行情留空即可。
type MarketConfig struct {
	RESTBaseURL    string      `toml:"rest_base_url"`
	APIKey         string      `toml:"api_key"`
	APISecret      string      `toml:"api_secret"`
	TimeoutSeconds int         `toml:"timeout_seconds"`
	KlineMaxCached int         `toml:"kline_max_cached"`
	Proxy          ProxyConfig `toml:"proxy"`
}

type ProxyConfig struct {
	Enabled bool   `toml:"enabled"`
	RESTURL string `toml:"rest_url"`
}

func (p *ProxyConfig) normalize() {
	if p == nil {
		return
	}
	p.RESTURL = strings.TrimSpace(p.RESTURL)
}

// ProvidersConfig 汇总四类意见 Provider 的开关与超时。
type ProvidersConfig struct {
	Kronos    KronosProviderConfig    `toml:"kronos"`
	Technical TechnicalProviderConfig `toml:"technical"`
	ML        MLProviderConfig        `toml:"ml"`
	Position  PositionProviderConfig  `toml:"position"`
}

// KronosProviderConfig 描述外部 AI 预测服务的访问方式。
type KronosProviderConfig struct {
	Enabled                bool   `toml:"enabled"`
	BaseURL                string `toml:"base_url"`
	APIKey                 string `toml:"api_key"`
	TimeoutSeconds         int    `toml:"timeout_seconds"`
	BreakerThreshold       int    `toml:"breaker_threshold"`
	BreakerCooldownSeconds int    `toml:"breaker_cooldown_seconds"`
}

type TechnicalProviderConfig struct {
	Enabled        bool   `toml:"enabled"`
	Interval       string `toml:"interval"`
	Lookback       int    `toml:"lookback"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type MLProviderConfig struct {
	Enabled        bool   `toml:"enabled"`
	Interval       string `toml:"interval"`
	Lookback       int    `toml:"lookback"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type PositionProviderConfig struct {
	Enabled        bool `toml:"enabled"`
	TimeoutSeconds int  `toml:"timeout_seconds"`
}

// FusionConfig 控制融合引擎的阈值与强度分级。
type FusionConfig struct {
	ConfidenceFloor    float64 `toml:"confidence_floor"`
	ConfidenceCeiling  float64 `toml:"confidence_ceiling"`
	FallbackConfidence float64 `toml:"fallback_confidence"`
	ValidityHours      int     `toml:"validity_hours"`

	Dominance DominanceConfig `toml:"dominance"`
	Strength  StrengthConfig  `toml:"strength"`
}

// DominanceConfig 描述高置信度 Provider 的覆盖规则，阈值随市场状态调整。
type DominanceConfig struct {
	BlendRatio   float64                       `toml:"blend_ratio"`
	ExtremeFloor float64                       `toml:"extreme_floor"`
	ExtremeScale float64                       `toml:"extreme_scale"`
	Thresholds   map[string]DominanceThreshold `toml:"thresholds"`
}

// DominanceThreshold 是某一市场状态下的主导/极端阈值对。
type DominanceThreshold struct {
	Dominant float64 `toml:"dominant"`
	Extreme  float64 `toml:"extreme"`
}

// ThresholdFor 返回指定市场状态的阈值，未配置时退回 normal_volatility。
func (d DominanceConfig) ThresholdFor(regime signal.MarketRegime) DominanceThreshold {
	if th, ok := d.Thresholds[string(regime)]; ok {
		return th
	}
	return d.Thresholds[string(signal.RegimeNormalVolatility)]
}

// StrengthConfig 是信号强度阈值表（必须递减）。
type StrengthConfig struct {
	VeryStrong float64 `toml:"very_strong"`
	Strong     float64 `toml:"strong"`
	Moderate   float64 `toml:"moderate"`
	Weak       float64 `toml:"weak"`
}

// Table 转换为 signal 包的分级表。
func (s StrengthConfig) Table() signal.StrengthTable {
	return signal.StrengthTable{
		VeryStrong: s.VeryStrong,
		Strong:     s.Strong,
		Moderate:   s.Moderate,
		Weak:       s.Weak,
	}
}

// WeightsConfig 描述基础权重与按市场状态切换的权重策略。
type WeightsConfig struct {
	Base              map[string]float64        `toml:"base"`
	Strategies        map[string]RegimeStrategy `toml:"strategies"`
	CacheTTLMinutes   int                       `toml:"cache_ttl_minutes"`
	VolatilityLow     float64                   `toml:"volatility_low"`
	VolatilityHigh    float64                   `toml:"volatility_high"`
	VolatilityExtreme float64                   `toml:"volatility_extreme"`
}

// RegimeStrategy 是单个市场状态下的权重分配与置信度乘数。
type RegimeStrategy struct {
	Weights              map[string]float64 `toml:"weights"`
	ConfidenceMultiplier float64            `toml:"confidence_multiplier"`
	Reasoning            string             `toml:"reasoning"`
}

// BaseWeightSet 将基础权重转换为领域对象（normal 状态，乘数 1）。
func (w WeightsConfig) BaseWeightSet() signal.WeightSet {
	out := signal.WeightSet{
		Weights:              make(map[signal.ProviderKind]float64, len(w.Base)),
		Regime:               signal.RegimeNormalVolatility,
		ConfidenceMultiplier: 1.0,
	}
	for k, v := range w.Base {
		out.Weights[signal.ProviderKind(k)] = v
	}
	return out
}

// RiskConfig 是风控参数计算器的分层表。
type RiskConfig struct {
	CutoffConfidence float64 `toml:"cutoff_confidence"`
	HighStopPct      float64 `toml:"high_stop_pct"`
	HighTargetPct    float64 `toml:"high_target_pct"`
	LowStopPct       float64 `toml:"low_stop_pct"`
	LowTargetPct     float64 `toml:"low_target_pct"`

	PositionTiers []PositionTier `toml:"position_tiers"`
	LeverageTiers []LeverageTier `toml:"leverage_tiers"`
}

// PositionTier 按置信度下限给出建议仓位（计价货币）。
type PositionTier struct {
	MinConfidence float64 `toml:"min_confidence"`
	SizeUSD       float64 `toml:"size_usd"`
}

// LeverageTier 按置信度下限给出建议杠杆。
type LeverageTier struct {
	MinConfidence float64 `toml:"min_confidence"`
	Leverage      int     `toml:"leverage"`
}

// EnhanceConfig 描述两个增强器（量异动、持仓量趋势）。
type EnhanceConfig struct {
	TimeoutSeconds int                 `toml:"timeout_seconds"`
	Volume         VolumeEnhanceConfig `toml:"volume"`
	OpenInterest   OIEnhanceConfig     `toml:"open_interest"`
}

type VolumeEnhanceConfig struct {
	Enabled        bool    `toml:"enabled"`
	Interval       string  `toml:"interval"`
	Lookback       int     `toml:"lookback"`
	ZScoreTrigger  float64 `toml:"zscore_trigger"`
	MaxBoost       float64 `toml:"max_boost"`
	MaxPenalty     float64 `toml:"max_penalty"`
}

type OIEnhanceConfig struct {
	Enabled       bool    `toml:"enabled"`
	Period        string  `toml:"period"`
	Lookback      int     `toml:"lookback"`
	ChangeTrigger float64 `toml:"change_trigger"`
	MaxBoost      float64 `toml:"max_boost"`
	MaxPenalty    float64 `toml:"max_penalty"`
}

// MonitorConfig 控制定时批量分析。
type MonitorConfig struct {
	IntervalMinutes int      `toml:"interval_minutes"`
	RunImmediately  bool     `toml:"run_immediately"`
	MaxConcurrency  int      `toml:"max_concurrency"`
	WatchlistPath   string   `toml:"watchlist_path"`
	Symbols         []string `toml:"symbols"`
}

type NotifyConfig struct {
	MinStrength string         `toml:"min_strength"`
	Telegram    TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
