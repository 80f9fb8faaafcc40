package fusion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tpush/internal/config"
	"tpush/internal/logger"
	"tpush/internal/signal"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// 中文说明：
// Engine 是单交易对分析的入口：采集意见 → 融合 → 增强 → 风控 → 装配。
// 单轮分析内部的任何来源失败都被就地消化，调用方只会拿到完整信号。

// WeightProvider 提供当前市场状态下的权重快照。
type WeightProvider interface {
	ActiveWeights(ctx context.Context, symbol string) signal.WeightSet
}

// PriceSource 提供最新入场价。
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

// Engine 执行完整的信号融合链路。
type Engine struct {
	collector *Collector
	weights   WeightProvider
	enhancers []Enhancer
	prices    PriceSource

	cfg      config.FusionConfig
	risk     RiskCalculator
	strength signal.StrengthTable

	enhanceTimeout time.Duration
	now            func() time.Time
	newTraceID     func() string
}

// EngineDeps 汇总 Engine 的全部依赖。
type EngineDeps struct {
	Collector      *Collector
	Weights        WeightProvider
	Enhancers      []Enhancer
	Prices         PriceSource
	Fusion         config.FusionConfig
	Risk           config.RiskConfig
	EnhanceTimeout time.Duration
}

func NewEngine(deps EngineDeps) (*Engine, error) {
	if deps.Collector == nil {
		return nil, fmt.Errorf("engine requires a collector")
	}
	if deps.Weights == nil {
		return nil, fmt.Errorf("engine requires a weight provider")
	}
	table := deps.Fusion.Strength.Table()
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		collector:      deps.Collector,
		weights:        deps.Weights,
		enhancers:      deps.Enhancers,
		prices:         deps.Prices,
		cfg:            deps.Fusion,
		risk:           NewRiskCalculator(deps.Risk),
		strength:       table,
		enhanceTimeout: deps.EnhanceTimeout,
		now:            time.Now,
		newTraceID:     uuid.NewString,
	}, nil
}

// Analyze 对单个交易对执行一轮完整分析。
// 来源失败不产生错误；仅在上下文取消时返回 error。
func (e *Engine) Analyze(ctx context.Context, symbol string, scope ...signal.ProviderKind) (signal.TradingSignal, error) {
	if err := ctx.Err(); err != nil {
		return signal.TradingSignal{}, err
	}
	start := e.now()
	traceID := e.newTraceID()

	weights := e.weights.ActiveWeights(ctx, symbol)
	result := e.collector.Collect(ctx, symbol, scope)

	f := fuser{dominance: e.cfg.Dominance, fallback: e.cfg.FallbackConfidence}
	fused, repaired := f.fuse(result, weights)

	adjustments := collectAdjustments(ctx, e.enhancers, symbol, fused.Action, e.enhanceTimeout)
	finalConfidence := applyAdjustments(fused, adjustments, weights.ConfidenceMultiplier,
		e.cfg.ConfidenceFloor, e.cfg.ConfidenceCeiling)

	entryPrice := e.entryPrice(ctx, symbol)
	risk := e.risk.Calculate(entryPrice, fused.Action, finalConfidence)
	strength := e.strength.Classify(finalConfidence)

	out := assemble(assembleInput{
		symbol:      symbol,
		traceID:     traceID,
		timestamp:   start,
		action:      fused.Action,
		confidence:  finalConfidence,
		strength:    strength,
		entryPrice:  entryPrice,
		risk:        risk,
		weights:     repaired,
		result:      result,
		adjustments: adjustments,
		validity:    e.validityWindow(),
	})

	logger.Infof("fusion: %s action=%s confidence=%.3f strength=%s regime=%s sources=%d/%d trace=%s",
		symbol, out.FinalAction, out.FinalConfidence, out.Strength, out.Regime,
		len(result.Opinions), len(result.Opinions)+len(result.Unavailable), traceID)
	return out, nil
}

// BatchResult 是批量分析中单个交易对的结果。
type BatchResult struct {
	Signal signal.TradingSignal
	Err    error
}

// BatchRequest 指定批量分析中单个交易对的请求；Scope 为空时查询全部来源。
type BatchRequest struct {
	Symbol string
	Scope  []signal.ProviderKind
}

// AnalyzeBatch 并发分析多个交易对，受信号量限流。
// 单个交易对失败只体现在对应的 BatchResult.Err 中，不影响其余交易对。
func (e *Engine) AnalyzeBatch(ctx context.Context, symbols []string, maxConcurrency int, scope ...signal.ProviderKind) map[string]BatchResult {
	reqs := make([]BatchRequest, 0, len(symbols))
	for _, symbol := range symbols {
		reqs = append(reqs, BatchRequest{Symbol: symbol, Scope: scope})
	}
	return e.AnalyzeBatchRequests(ctx, reqs, maxConcurrency)
}

// AnalyzeBatchRequests 与 AnalyzeBatch 相同，但每个交易对可携带独立的来源范围，
// 供监控列表的按币种 providers 覆盖使用。
func (e *Engine) AnalyzeBatchRequests(ctx context.Context, reqs []BatchRequest, maxConcurrency int) map[string]BatchResult {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	sem := semaphore.NewWeighted(int64(maxConcurrency))

	var mu sync.Mutex
	out := make(map[string]BatchResult, len(reqs))
	var wg sync.WaitGroup

	for _, req := range reqs {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			out[req.Symbol] = BatchResult{Err: err}
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(req BatchRequest) {
			defer wg.Done()
			defer sem.Release(1)
			res := e.analyzeIsolated(ctx, req.Symbol, req.Scope)
			mu.Lock()
			out[req.Symbol] = res
			mu.Unlock()
		}(req)
	}
	wg.Wait()
	return out
}

// analyzeIsolated 带 panic 边界执行单轮分析，保证故障不波及兄弟任务。
func (e *Engine) analyzeIsolated(ctx context.Context, symbol string, scope []signal.ProviderKind) (res BatchResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("fusion: panic analyzing %s: %v", symbol, r)
			res = BatchResult{Err: fmt.Errorf("analysis panic: %v", r)}
		}
	}()
	sig, err := e.Analyze(ctx, symbol, scope...)
	return BatchResult{Signal: sig, Err: err}
}

// entryPrice 获取最新价；不可用时返回 0，风控参数随之退化为零值。
func (e *Engine) entryPrice(ctx context.Context, symbol string) float64 {
	if e.prices == nil {
		return 0
	}
	price, err := e.prices.LatestPrice(ctx, symbol)
	if err != nil {
		logger.Warnf("fusion: entry price unavailable for %s: %v", symbol, err)
		return 0
	}
	return price
}

func (e *Engine) validityWindow() time.Duration {
	hours := e.cfg.ValidityHours
	if hours <= 0 {
		hours = 4
	}
	return time.Duration(hours) * time.Hour
}
