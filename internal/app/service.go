package app

import (
	"context"

	"tpush/internal/fusion"
	"tpush/internal/logger"
	"tpush/internal/notifier"
	"tpush/internal/signal"
	"tpush/internal/store/signalstore"
)

// AnalysisService 在融合引擎外包一层落库与推送。
// 落库/推送失败只记日志，分析结果照常返回。
type AnalysisService struct {
	engine     *fusion.Engine
	store      *signalstore.Store
	dispatcher *notifier.Dispatcher
}

func NewAnalysisService(engine *fusion.Engine, store *signalstore.Store, dispatcher *notifier.Dispatcher) *AnalysisService {
	return &AnalysisService{engine: engine, store: store, dispatcher: dispatcher}
}

// Analyze 执行一轮分析并记录结果。
func (s *AnalysisService) Analyze(ctx context.Context, symbol string, scope ...signal.ProviderKind) (signal.TradingSignal, error) {
	sig, err := s.engine.Analyze(ctx, symbol, scope...)
	if err != nil {
		return sig, err
	}
	s.record(ctx, sig)
	return sig, nil
}

// AnalyzeBatch 并发分析多个交易对并记录成功结果。
func (s *AnalysisService) AnalyzeBatch(ctx context.Context, symbols []string, concurrency int) map[string]fusion.BatchResult {
	return s.recordBatch(ctx, s.engine.AnalyzeBatch(ctx, symbols, concurrency))
}

// AnalyzeBatchRequests 同 AnalyzeBatch，但每个交易对可携带独立的来源范围。
func (s *AnalysisService) AnalyzeBatchRequests(ctx context.Context, reqs []fusion.BatchRequest, concurrency int) map[string]fusion.BatchResult {
	return s.recordBatch(ctx, s.engine.AnalyzeBatchRequests(ctx, reqs, concurrency))
}

func (s *AnalysisService) recordBatch(ctx context.Context, results map[string]fusion.BatchResult) map[string]fusion.BatchResult {
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		s.record(ctx, res.Signal)
	}
	return results
}

func (s *AnalysisService) record(ctx context.Context, sig signal.TradingSignal) {
	if s.store != nil {
		if err := s.store.Save(ctx, sig); err != nil {
			logger.Errorf("信号落库失败 symbol=%s trace=%s: %v", sig.Symbol, sig.TraceID, err)
		}
	}
	if s.dispatcher != nil {
		s.dispatcher.Notify(sig)
	}
}
