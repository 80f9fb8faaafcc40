package fusion

import (
	"context"
	"sort"
	"sync"
	"time"

	"tpush/internal/logger"
	"tpush/internal/provider"
	"tpush/internal/signal"
)

// 中文说明：
// 采集器并发向所有启用的 Provider 请求意见，每个调用有独立超时。
// 单个 Provider 超时或出错只记入 unavailable 列表，绝不中断整轮分析。

const defaultProviderTimeout = 10 * time.Second

// CollectResult 是一轮采集的结果：部分意见加不可用来源记录。
type CollectResult struct {
	Opinions    map[signal.ProviderKind]signal.SourceOpinion
	Unavailable []signal.ProviderKind
}

// Available 返回指定来源本轮是否产出意见。
func (r CollectResult) Available(kind signal.ProviderKind) bool {
	_, ok := r.Opinions[kind]
	return ok
}

// Collector 管理 Provider 集合与各自的超时。
type Collector struct {
	providers []provider.OpinionProvider
	timeouts  map[signal.ProviderKind]time.Duration
}

// NewCollector 构造采集器。timeouts 缺失的来源使用默认超时。
func NewCollector(providers []provider.OpinionProvider, timeouts map[signal.ProviderKind]time.Duration) *Collector {
	return &Collector{providers: providers, timeouts: timeouts}
}

// Kinds 返回已注册来源，按既定优先级排序。
func (c *Collector) Kinds() []signal.ProviderKind {
	registered := make(map[signal.ProviderKind]bool, len(c.providers))
	for _, p := range c.providers {
		registered[p.Kind()] = true
	}
	out := make([]signal.ProviderKind, 0, len(registered))
	for _, kind := range signal.AllProviderKinds {
		if registered[kind] {
			out = append(out, kind)
		}
	}
	return out
}

// Collect 并发采集 scope 指定来源的意见；scope 为空时查询全部已注册来源。
// 该方法不返回错误：零意见也是合法结果。
func (c *Collector) Collect(ctx context.Context, symbol string, scope []signal.ProviderKind) CollectResult {
	wanted := make(map[signal.ProviderKind]bool, len(scope))
	for _, kind := range scope {
		wanted[kind] = true
	}

	type outcome struct {
		kind    signal.ProviderKind
		opinion signal.SourceOpinion
		err     error
	}

	var wg sync.WaitGroup
	results := make(chan outcome, len(c.providers))
	queried := make([]signal.ProviderKind, 0, len(c.providers))

	for _, p := range c.providers {
		if len(wanted) > 0 && !wanted[p.Kind()] {
			continue
		}
		queried = append(queried, p.Kind())
		wg.Add(1)
		go func(p provider.OpinionProvider) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, c.timeoutFor(p.Kind()))
			defer cancel()
			opinion, err := p.Analyze(callCtx, symbol)
			results <- outcome{kind: p.Kind(), opinion: opinion, err: err}
		}(p)
	}
	wg.Wait()
	close(results)

	collected := CollectResult{Opinions: make(map[signal.ProviderKind]signal.SourceOpinion, len(queried))}
	failed := make(map[signal.ProviderKind]bool)
	for res := range results {
		if res.err != nil {
			logger.Warnf("collector: %s unavailable for %s: %v", res.kind, symbol, res.err)
			failed[res.kind] = true
			continue
		}
		collected.Opinions[res.kind] = res.opinion
	}
	for _, kind := range queried {
		if failed[kind] {
			collected.Unavailable = append(collected.Unavailable, kind)
		}
	}
	sort.Slice(collected.Unavailable, func(i, j int) bool {
		return kindPriority(collected.Unavailable[i]) < kindPriority(collected.Unavailable[j])
	})
	return collected
}

func (c *Collector) timeoutFor(kind signal.ProviderKind) time.Duration {
	if d, ok := c.timeouts[kind]; ok && d > 0 {
		return d
	}
	return defaultProviderTimeout
}

func kindPriority(kind signal.ProviderKind) int {
	for i, k := range signal.AllProviderKinds {
		if k == kind {
			return i
		}
	}
	return len(signal.AllProviderKinds)
}
