package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tpush/internal/config"
	"tpush/internal/config/loader"
	"tpush/internal/fusion"
	"tpush/internal/logger"
	"tpush/internal/market"
	"tpush/internal/scheduler"
	"tpush/internal/store/signalstore"
	"tpush/internal/transport/http/signalapi"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：装配依赖→启动 HTTP 服务与监控调度。
type App struct {
	cfg        *config.Config
	service    *AnalysisService
	httpServer *signalapi.Server
	watch      *loader.Watchlist
	source     market.Source
	store      *signalstore.Store
}

// Run 启动 HTTP 服务与周期监控，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	a.printSummary()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.httpServer.Start(ctx); err != nil {
			return fmt.Errorf("signal http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		sched := scheduler.NewAlignedScheduler(ctx,
			time.Duration(a.cfg.Monitor.IntervalMinutes)*time.Minute, 0)
		sched.RunImmediately = a.cfg.Monitor.RunImmediately
		sched.Start(func() { a.runBatch(ctx) })
		return nil
	})

	return group.Wait()
}

// Close 释放行情与存储资源。
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.source != nil {
		_ = a.source.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// runBatch 对监控列表执行一轮批量分析，单轮超时取调度周期。
// 监控项可按币种覆盖意见来源范围，逐项传入引擎。
func (a *App) runBatch(ctx context.Context) {
	entries := a.watch.Entries()
	if len(entries) == 0 {
		logger.Warnf("监控列表为空，跳过本轮分析")
		return
	}
	reqs := make([]fusion.BatchRequest, 0, len(entries))
	for _, entry := range entries {
		reqs = append(reqs, fusion.BatchRequest{Symbol: entry.Symbol, Scope: entry.Scope})
	}

	roundCtx, cancel := context.WithTimeout(ctx,
		time.Duration(a.cfg.Monitor.IntervalMinutes)*time.Minute)
	defer cancel()

	start := time.Now()
	results := a.service.AnalyzeBatchRequests(roundCtx, reqs, a.cfg.Monitor.MaxConcurrency)

	ok, failed := 0, 0
	for symbol, res := range results {
		if res.Err != nil {
			failed++
			logger.Errorf("批量分析失败 symbol=%s: %v", symbol, res.Err)
			continue
		}
		ok++
	}
	logger.Infof("本轮批量分析完成 symbols=%d ok=%d failed=%d dur=%s",
		len(entries), ok, failed, time.Since(start).Truncate(time.Millisecond))
}

func (a *App) printSummary() {
	symbols := a.watch.Symbols()
	logger.InfoBlock(strings.Join([]string{
		"================ tpush ================",
		fmt.Sprintf("HTTP 服务：%s", a.httpServer.Addr()),
		fmt.Sprintf("监控币种数：%d", len(symbols)),
		fmt.Sprintf("- 符号：%s", strings.Join(symbols, ", ")),
		fmt.Sprintf("- 分析周期：%d 分钟", a.cfg.Monitor.IntervalMinutes),
		fmt.Sprintf("信号库：%s", a.cfg.Store.Path),
		"=======================================",
	}, "\n"))
}
