package notifier

import (
	"fmt"
	"strings"

	"tpush/internal/logger"
	"tpush/internal/signal"
)

// Dispatcher 按强度阈值过滤信号并推送到底层通知渠道。
// 推送失败只记日志，不影响分析主链路。
type Dispatcher struct {
	sink        TextNotifier
	minStrength signal.SignalStrength
}

func NewDispatcher(sink TextNotifier, minStrength string) *Dispatcher {
	return &Dispatcher{
		sink:        sink,
		minStrength: signal.ParseStrength(strings.TrimSpace(minStrength)),
	}
}

// ShouldNotify 返回信号是否达到推送门槛。
// 方向性动作按强度过滤，HOLD 信号一律不推送。
func (d *Dispatcher) ShouldNotify(sig signal.TradingSignal) bool {
	if d == nil || d.sink == nil {
		return false
	}
	if !sig.FinalAction.Directional() {
		return false
	}
	return sig.Strength >= d.minStrength
}

// Notify 格式化并发送信号，未达门槛时静默跳过。
func (d *Dispatcher) Notify(sig signal.TradingSignal) {
	if !d.ShouldNotify(sig) {
		return
	}
	text := FormatSignal(sig).RenderMarkdown()
	if err := d.sink.SendText(text); err != nil {
		logger.Errorf("信号推送失败 symbol=%s trace=%s: %v", sig.Symbol, sig.TraceID, err)
		return
	}
	logger.Infof("信号已推送 symbol=%s action=%s strength=%s", sig.Symbol, sig.FinalAction, sig.Strength)
}

// FormatSignal 将交易信号渲染为结构化推送。
func FormatSignal(sig signal.TradingSignal) StructuredMessage {
	icon := "⏸"
	switch sig.FinalAction {
	case signal.ActionBuy:
		icon = "📈"
	case signal.ActionSell:
		icon = "📉"
	}

	decision := []string{
		fmt.Sprintf("动作: %s", sig.FinalAction),
		fmt.Sprintf("置信度: %.1f%% (%s)", sig.FinalConfidence*100, strengthLabel(sig.Strength)),
	}
	if sig.Regime != "" {
		decision = append(decision, fmt.Sprintf("市场状态: %s", regimeLabel(sig.Regime)))
	}

	var riskLines []string
	if sig.EntryPrice > 0 && !sig.Risk.IsZero() {
		riskLines = []string{
			fmt.Sprintf("入场参考: %s", formatPrice(sig.EntryPrice)),
			fmt.Sprintf("止损: %s", formatPrice(sig.Risk.StopLoss)),
			fmt.Sprintf("止盈: %s", formatPrice(sig.Risk.TakeProfit)),
			fmt.Sprintf("建议仓位: %.0f USDT x%d", sig.Risk.PositionSizeUSD, sig.Risk.Leverage),
		}
	}

	var factorLines []string
	for _, factor := range sig.KeyFactors {
		factorLines = append(factorLines, factor)
	}

	footer := ""
	if !sig.ValidUntil.IsZero() {
		footer = "有效期至 " + sig.ValidUntil.Format("2006-01-02 15:04 MST")
	}

	return StructuredMessage{
		Icon:  icon,
		Title: fmt.Sprintf("*%s* 交易信号", sig.Symbol),
		Sections: []MessageSection{
			{Title: "决策", Lines: decision},
			{Title: "风控", Lines: riskLines},
			{Title: "关键因素", Lines: factorLines},
		},
		Footer:    footer,
		Timestamp: sig.Timestamp,
	}
}

func strengthLabel(s signal.SignalStrength) string {
	switch s {
	case signal.StrengthVeryStrong:
		return "极强"
	case signal.StrengthStrong:
		return "强"
	case signal.StrengthModerate:
		return "中等"
	case signal.StrengthWeak:
		return "弱"
	default:
		return "极弱"
	}
}

func regimeLabel(r signal.MarketRegime) string {
	switch r {
	case signal.RegimeLowVolatility:
		return "低波动"
	case signal.RegimeHighVolatility:
		return "高波动"
	case signal.RegimeExtremeVolatility:
		return "极端波动"
	default:
		return "正常波动"
	}
}

func formatPrice(v float64) string {
	switch {
	case v >= 100:
		return fmt.Sprintf("%.2f", v)
	case v >= 1:
		return fmt.Sprintf("%.4f", v)
	default:
		return fmt.Sprintf("%.6f", v)
	}
}
