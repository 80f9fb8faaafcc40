package fusion

import (
	"context"
	"math"
	"sync"
	"time"

	"tpush/internal/logger"
	"tpush/internal/signal"
)

// Enhancer 是二次置信度修正器（量异动、持仓量趋势）。
// 返回 ok=false 表示本轮无修正；错误按来源不可用处理，不影响信号产出。
type Enhancer interface {
	Source() signal.EnhancementSource

	Adjustment(ctx context.Context, symbol string, proposed signal.Action) (signal.EnhancementAdjustment, bool, error)
}

// collectAdjustments 并发请求所有增强器，失败只记日志。
func collectAdjustments(ctx context.Context, enhancers []Enhancer, symbol string, proposed signal.Action, timeout time.Duration) []signal.EnhancementAdjustment {
	if len(enhancers) == 0 {
		return nil
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	var wg sync.WaitGroup
	results := make(chan signal.EnhancementAdjustment, len(enhancers))
	for _, e := range enhancers {
		wg.Add(1)
		go func(e Enhancer) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			adj, ok, err := e.Adjustment(callCtx, symbol, proposed)
			if err != nil {
				logger.Warnf("enhance: %s unavailable for %s: %v", e.Source(), symbol, err)
				return
			}
			if ok {
				results <- adj
			}
		}(e)
	}
	wg.Wait()
	close(results)

	out := make([]signal.EnhancementAdjustment, 0, len(enhancers))
	for adj := range results {
		out = append(out, adj)
	}
	return out
}

// applyAdjustments 叠加增量、乘以置信度乘数并收敛到 [floor, ceiling]。
func applyAdjustments(fused signal.FusedDecision, adjustments []signal.EnhancementAdjustment, multiplier, floor, ceiling float64) float64 {
	confidence := fused.Confidence
	for _, adj := range adjustments {
		confidence += adj.Delta
	}
	if multiplier > 0 {
		confidence *= multiplier
	}
	return clamp(confidence, floor, ceiling)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
