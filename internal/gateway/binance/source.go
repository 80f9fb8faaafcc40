package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tpush/internal/market"
	symbolpkg "tpush/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2/futures"
)

const (
	maxHistoryLimit = 1500
	maxOIHistLimit  = 500
)

// Source 基于 go-binance SDK 实现 market.Source（合约 REST）。
type Source struct {
	cfg    Config
	client *futures.Client
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := futures.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = strings.TrimSpace(final.RESTBaseURL)
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Source{cfg: final, client: client}, nil
}

func (s *Source) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	cleanSymbol := symbolpkg.Normalize(symbol)
	if cleanSymbol == "" {
		return nil, fmt.Errorf("invalid symbol: %s", symbol)
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	svc := s.client.NewKlinesService().Symbol(cleanSymbol).Interval(interval).Limit(limit)
	kls, err := svc.Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	if dur, ok := market.ParseIntervalDuration(interval); ok {
		out = market.DropUnclosed(out, dur, time.Now())
	}
	return out, nil
}

// LatestPrice 返回合约最新成交价。
func (s *Source) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	cleanSymbol := symbolpkg.Normalize(symbol)
	if cleanSymbol == "" {
		return 0, fmt.Errorf("invalid symbol: %s", symbol)
	}
	prices, err := s.client.NewListPricesService().Symbol(cleanSymbol).Do(ctx)
	if err != nil {
		return 0, err
	}
	for _, entry := range prices {
		if entry == nil {
			continue
		}
		if strings.EqualFold(entry.Symbol, cleanSymbol) {
			price := parseFloat(entry.Price)
			if price <= 0 {
				return 0, fmt.Errorf("non-positive price for %s", symbol)
			}
			return price, nil
		}
	}
	return 0, fmt.Errorf("price not available for %s", symbol)
}

func (s *Source) Close() error {
	return nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
