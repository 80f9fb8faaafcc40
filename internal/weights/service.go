package weights

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tpush/internal/config"
	"tpush/internal/logger"
	"tpush/internal/market"
	"tpush/internal/signal"
)

// 中文说明：
// 权重服务按交易对评估市场状况，选择对应档位的权重策略并做微调。
// 行情不可用时退回基础权重，该退化不视为错误。

const conditionBars = 24

// Service 按市场状况产出权重快照，带 TTL 缓存。
type Service struct {
	cfg    config.WeightsConfig
	source market.Source

	mu          sync.Mutex
	condCache   map[string]cachedCondition
	weightCache map[string]cachedWeights
	now         func() time.Time
}

type cachedCondition struct {
	condition Condition
	expiresAt time.Time
}

type cachedWeights struct {
	set       signal.WeightSet
	expiresAt time.Time
}

func NewService(cfg config.WeightsConfig, source market.Source) *Service {
	return &Service{
		cfg:         cfg,
		source:      source,
		condCache:   make(map[string]cachedCondition),
		weightCache: make(map[string]cachedWeights),
		now:         time.Now,
	}
}

// ActiveWeights 返回指定交易对当前应使用的权重快照。
// 市场数据不足或行情请求失败时返回基础权重，不返回错误。
func (s *Service) ActiveWeights(ctx context.Context, symbol string) signal.WeightSet {
	s.mu.Lock()
	if cached, ok := s.weightCache[symbol]; ok && s.now().Before(cached.expiresAt) {
		s.mu.Unlock()
		return cached.set
	}
	s.mu.Unlock()

	cond, err := s.AnalyzeCondition(ctx, symbol)
	if err != nil {
		logger.Warnf("weights: market condition unavailable for %s, using base weights: %v", symbol, err)
		return s.fallbackWeights("无法获取市场数据，使用默认权重")
	}

	strat, ok := s.cfg.Strategies[string(cond.Regime)]
	if !ok {
		strat, ok = s.cfg.Strategies[string(signal.RegimeNormalVolatility)]
		if !ok {
			return s.fallbackWeights("未配置权重策略，使用默认权重")
		}
	}

	set := signal.WeightSet{
		Weights:              make(map[signal.ProviderKind]float64, len(strat.Weights)),
		Regime:               cond.Regime,
		ConfidenceMultiplier: strat.ConfidenceMultiplier,
		Reasoning:            strat.Reasoning,
		GeneratedAt:          s.now(),
	}
	for k, v := range strat.Weights {
		set.Weights[signal.ProviderKind(k)] = v
	}
	set = fineTune(set, cond)
	set = set.Normalized()

	s.mu.Lock()
	s.weightCache[symbol] = cachedWeights{set: set, expiresAt: s.now().Add(s.cacheTTL())}
	s.mu.Unlock()

	logger.Debugf("weights: %s regime=%s kronos=%.2f technical=%.2f ml=%.2f position=%.2f",
		symbol, set.Regime,
		set.Weights[signal.ProviderKronos], set.Weights[signal.ProviderTechnical],
		set.Weights[signal.ProviderML], set.Weights[signal.ProviderPosition])
	return set
}

// AnalyzeCondition 评估市场状况，结果缓存一个 TTL 周期。
func (s *Service) AnalyzeCondition(ctx context.Context, symbol string) (Condition, error) {
	s.mu.Lock()
	if cached, ok := s.condCache[symbol]; ok && s.now().Before(cached.expiresAt) {
		s.mu.Unlock()
		return cached.condition, nil
	}
	s.mu.Unlock()

	if s.source == nil {
		return Condition{}, fmt.Errorf("market source not configured")
	}
	candles, err := s.source.FetchHistory(ctx, symbol, "1h", conditionBars)
	if err != nil {
		return Condition{}, fmt.Errorf("fetch candles failed: %w", err)
	}
	if len(candles) < minConditionBars {
		return Condition{}, fmt.Errorf("insufficient candles: got %d, need %d", len(candles), minConditionBars)
	}

	volScore := volatilityScore(candles)
	trScore := trendScore(candles)
	cond := Condition{
		Symbol:          symbol,
		Regime:          s.classifyRegime(volScore),
		Trend:           classifyTrend(trScore),
		VolatilityScore: volScore,
		TrendScore:      trScore,
		VolumeActivity:  volumeActivity(candles),
		Timestamp:       s.now(),
	}

	s.mu.Lock()
	s.condCache[symbol] = cachedCondition{condition: cond, expiresAt: s.now().Add(s.cacheTTL())}
	s.mu.Unlock()

	logger.Debugf("weights: %s condition volatility=%s(%.3f) trend=%s(%.3f) volume=%.3f",
		symbol, cond.Regime, cond.VolatilityScore, cond.Trend, cond.TrendScore, cond.VolumeActivity)
	return cond, nil
}

// Invalidate 清除指定交易对的缓存，行情异常后可强制重估。
func (s *Service) Invalidate(symbol string) {
	s.mu.Lock()
	delete(s.condCache, symbol)
	delete(s.weightCache, symbol)
	s.mu.Unlock()
}

func (s *Service) classifyRegime(volScore float64) signal.MarketRegime {
	switch {
	case volScore >= s.cfg.VolatilityExtreme:
		return signal.RegimeExtremeVolatility
	case volScore >= s.cfg.VolatilityHigh:
		return signal.RegimeHighVolatility
	case volScore >= s.cfg.VolatilityLow:
		return signal.RegimeNormalVolatility
	default:
		return signal.RegimeLowVolatility
	}
}

func (s *Service) cacheTTL() time.Duration {
	minutes := s.cfg.CacheTTLMinutes
	if minutes <= 0 {
		minutes = 15
	}
	return time.Duration(minutes) * time.Minute
}

func (s *Service) fallbackWeights(reason string) signal.WeightSet {
	set := s.cfg.BaseWeightSet()
	set.Reasoning = reason
	set.GeneratedAt = s.now()
	return set.Normalized()
}

// fineTune 根据趋势与成交量活跃度对策略权重做轻微修正，之后再归一化。
func fineTune(set signal.WeightSet, cond Condition) signal.WeightSet {
	out := set
	out.Weights = make(map[signal.ProviderKind]float64, len(set.Weights))
	for k, v := range set.Weights {
		out.Weights[k] = v
	}
	if cond.Trend == TrendStrong {
		out.Weights[signal.ProviderTechnical] *= 1.1
		out.Weights[signal.ProviderKronos] *= 0.95
	}
	if cond.VolumeActivity > 0.7 {
		out.Weights[signal.ProviderTechnical] *= 1.05
		out.Weights[signal.ProviderKronos] *= 0.98
	} else if cond.VolumeActivity < 0.3 {
		out.Weights[signal.ProviderKronos] *= 1.05
		out.Weights[signal.ProviderTechnical] *= 0.98
	}
	return out
}
