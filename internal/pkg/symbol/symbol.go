package symbol

import "strings"

// 中文说明：
// 统一处理合约符号格式。对外接口与存储均使用 Binance 合约格式（BTCUSDT），
// 允许用户输入 BTC、BTC/USDT、btcusdt 等变体。

const DefaultQuote = "USDT"

// Symbol 是拆分后的交易对。
type Symbol struct {
	Base  string
	Quote string
}

// Contract 返回 Binance 合约格式（BTCUSDT）。
func (s Symbol) Contract() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

// Display 返回人类可读格式（BTC/USDT）。
func (s Symbol) Display() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

// Parse 解析任意变体的交易对输入，无法识别时返回零值。
func Parse(raw string) Symbol {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.ReplaceAll(s, "-", "/")
	s = strings.ReplaceAll(s, "_", "/")
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		base := strings.TrimSpace(parts[0])
		quote := strings.TrimSpace(parts[1])
		if base == "" || quote == "" {
			return Symbol{}
		}
		return Symbol{Base: base, Quote: quote}
	}
	quoteCurrencies := []string{"USDT", "USDC", "BUSD", "TUSD", "BTC", "ETH", "BNB"}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{Base: s[:len(s)-len(quote)], Quote: quote}
		}
	}
	// 裸币种按 USDT 本位合约处理
	return Symbol{Base: s, Quote: DefaultQuote}
}

// Normalize 将任意输入统一为合约格式，无法识别时返回空串。
func Normalize(raw string) string {
	return Parse(raw).Contract()
}

// NormalizeList 批量归一化并去重，保持输入顺序。
func NormalizeList(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		norm := Normalize(s)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

// IsValid 返回输入是否能解析为合法交易对。
func IsValid(raw string) bool {
	return Normalize(raw) != ""
}
