package binance

import (
	"context"
	"fmt"

	"tpush/internal/market"
	"tpush/internal/pkg/symbol"
)

// GetPosition 查询账户在指定合约上的当前持仓。
// 无持仓返回 found=false；该接口需要签名，未配置凭证时直接报错。
func (s *Source) GetPosition(ctx context.Context, sym string) (market.AccountPosition, bool, error) {
	if s == nil || s.client == nil {
		return market.AccountPosition{}, false, fmt.Errorf("binance source not initialized")
	}
	if s.cfg.APIKey == "" || s.cfg.APISecret == "" {
		return market.AccountPosition{}, false, fmt.Errorf("binance account credentials not configured")
	}
	binanceSymbol := symbol.Normalize(sym)
	if binanceSymbol == "" {
		return market.AccountPosition{}, false, fmt.Errorf("invalid symbol: %s", sym)
	}
	risks, err := s.client.NewGetPositionRiskService().Symbol(binanceSymbol).Do(ctx)
	if err != nil {
		return market.AccountPosition{}, false, err
	}
	for _, risk := range risks {
		if risk == nil {
			continue
		}
		amt := parseFloat(risk.PositionAmt)
		if amt == 0 {
			continue
		}
		return market.AccountPosition{
			Symbol:           risk.Symbol,
			PositionAmt:      amt,
			EntryPrice:       parseFloat(risk.EntryPrice),
			MarkPrice:        parseFloat(risk.MarkPrice),
			UnrealizedProfit: parseFloat(risk.UnRealizedProfit),
			Leverage:         int(parseFloat(risk.Leverage)),
		}, true, nil
	}
	return market.AccountPosition{}, false, nil
}
