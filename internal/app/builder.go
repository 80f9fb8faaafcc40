package app

import (
	"fmt"
	"time"

	"tpush/internal/anomaly"
	"tpush/internal/config"
	"tpush/internal/config/loader"
	"tpush/internal/fusion"
	"tpush/internal/gateway/binance"
	"tpush/internal/logger"
	"tpush/internal/market"
	"tpush/internal/notifier"
	"tpush/internal/provider"
	"tpush/internal/signal"
	"tpush/internal/store/signalstore"
	"tpush/internal/transport/http/signalapi"
	"tpush/internal/weights"
)

// Build 根据配置装配整个应用（不启动）。
func Build(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	source, positions, err := buildMarketSource(cfg)
	if err != nil {
		return nil, err
	}

	providers, timeouts, err := buildProviders(cfg, source, positions)
	if err != nil {
		source.Close()
		return nil, err
	}

	weightSvc := weights.NewService(cfg.Weights, source)
	enhancers := buildEnhancers(cfg, source)

	engine, err := fusion.NewEngine(fusion.EngineDeps{
		Collector:      fusion.NewCollector(providers, timeouts),
		Weights:        weightSvc,
		Enhancers:      enhancers,
		Prices:         source,
		Fusion:         cfg.Fusion,
		Risk:           cfg.Risk,
		EnhanceTimeout: time.Duration(cfg.Enhance.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		source.Close()
		return nil, err
	}

	store, err := signalstore.New(cfg.Store.Path)
	if err != nil {
		source.Close()
		return nil, fmt.Errorf("open signal store failed: %w", err)
	}

	var dispatcher *notifier.Dispatcher
	if cfg.Notify.Telegram.Enabled {
		telegram := notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
		dispatcher = notifier.NewDispatcher(telegram, cfg.Notify.MinStrength)
		logger.Infof("Telegram 推送已启用 min_strength=%s", cfg.Notify.MinStrength)
	}

	service := NewAnalysisService(engine, store, dispatcher)

	watch, err := buildWatchlist(cfg)
	if err != nil {
		store.Close()
		source.Close()
		return nil, err
	}

	httpServer, err := signalapi.NewServer(signalapi.ServerConfig{
		Addr:    cfg.App.HTTPAddr,
		Service: service,
		History: store,
	})
	if err != nil {
		store.Close()
		source.Close()
		return nil, err
	}

	return &App{
		cfg:        cfg,
		service:    service,
		httpServer: httpServer,
		watch:      watch,
		source:     source,
		store:      store,
	}, nil
}

func buildMarketSource(cfg *config.Config) (market.Source, *binance.Source, error) {
	raw, err := binance.New(binance.Config{
		RESTBaseURL:  cfg.Market.RESTBaseURL,
		APIKey:       cfg.Market.APIKey,
		APISecret:    cfg.Market.APISecret,
		HTTPTimeout:  time.Duration(cfg.Market.TimeoutSeconds) * time.Second,
		ProxyEnabled: cfg.Market.Proxy.Enabled,
		RESTProxyURL: cfg.Market.Proxy.RESTURL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init binance source failed: %w", err)
	}
	return market.NewCachedSource(raw, cfg.Market.KlineMaxCached), raw, nil
}

func buildProviders(cfg *config.Config, source market.Source, positions provider.PositionReader) ([]provider.OpinionProvider, map[signal.ProviderKind]time.Duration, error) {
	var providers []provider.OpinionProvider
	timeouts := make(map[signal.ProviderKind]time.Duration)

	if cfg.Providers.Kronos.Enabled {
		p, err := provider.NewKronosProvider(cfg.Providers.Kronos)
		if err != nil {
			return nil, nil, fmt.Errorf("init kronos provider failed: %w", err)
		}
		providers = append(providers, p)
		timeouts[signal.ProviderKronos] = time.Duration(cfg.Providers.Kronos.TimeoutSeconds) * time.Second
	}
	if cfg.Providers.Technical.Enabled {
		p, err := provider.NewTechnicalProvider(cfg.Providers.Technical, source)
		if err != nil {
			return nil, nil, fmt.Errorf("init technical provider failed: %w", err)
		}
		providers = append(providers, p)
		timeouts[signal.ProviderTechnical] = time.Duration(cfg.Providers.Technical.TimeoutSeconds) * time.Second
	}
	if cfg.Providers.ML.Enabled {
		p, err := provider.NewMLProvider(cfg.Providers.ML, source)
		if err != nil {
			return nil, nil, fmt.Errorf("init ml provider failed: %w", err)
		}
		providers = append(providers, p)
		timeouts[signal.ProviderML] = time.Duration(cfg.Providers.ML.TimeoutSeconds) * time.Second
	}
	if cfg.Providers.Position.Enabled {
		p, err := provider.NewPositionProvider(cfg.Providers.Position, positions, source)
		if err != nil {
			return nil, nil, fmt.Errorf("init position provider failed: %w", err)
		}
		providers = append(providers, p)
		timeouts[signal.ProviderPosition] = time.Duration(cfg.Providers.Position.TimeoutSeconds) * time.Second
	}
	if len(providers) == 0 {
		return nil, nil, fmt.Errorf("no opinion provider enabled")
	}
	logger.Infof("已启用 %d 个意见来源", len(providers))
	return providers, timeouts, nil
}

func buildEnhancers(cfg *config.Config, source market.Source) []fusion.Enhancer {
	var enhancers []fusion.Enhancer
	if cfg.Enhance.Volume.Enabled {
		if d, err := anomaly.NewVolumeDetector(cfg.Enhance.Volume, source); err == nil {
			enhancers = append(enhancers, d)
		} else {
			logger.Warnf("量异动增强器未启用: %v", err)
		}
	}
	if cfg.Enhance.OpenInterest.Enabled {
		if d, err := anomaly.NewOpenInterestDetector(cfg.Enhance.OpenInterest, source); err == nil {
			enhancers = append(enhancers, d)
		} else {
			logger.Warnf("持仓量增强器未启用: %v", err)
		}
	}
	return enhancers
}

func buildWatchlist(cfg *config.Config) (*loader.Watchlist, error) {
	if len(cfg.Monitor.Symbols) > 0 {
		logger.Infof("使用配置内联监控列表 symbols=%d", len(cfg.Monitor.Symbols))
		return loader.StaticWatchlist(cfg.Monitor.Symbols), nil
	}
	watch, err := loader.NewWatchlist(cfg.Monitor.WatchlistPath)
	if err != nil {
		return nil, fmt.Errorf("load watchlist failed: %w", err)
	}
	return watch, nil
}
