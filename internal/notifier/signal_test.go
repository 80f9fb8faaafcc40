package notifier

import (
	"errors"
	"testing"
	"time"

	"tpush/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	sent []string
	err  error
}

func (c *captureSink) SendText(text string) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, text)
	return nil
}

func strongSignal() signal.TradingSignal {
	return signal.TradingSignal{
		Symbol:          "BTCUSDT",
		TraceID:         "trace-1",
		Timestamp:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		FinalAction:     signal.ActionBuy,
		FinalConfidence: 0.828,
		Strength:        signal.StrengthStrong,
		EntryPrice:      64000,
		Risk: signal.RiskParameters{
			StopLoss:        63040,
			TakeProfit:      65920,
			PositionSizeUSD: 200,
			Leverage:        3,
		},
		Regime:     signal.RegimeNormalVolatility,
		KeyFactors: []string{"AI预测", "技术分析"},
		ValidUntil: time.Date(2025, 6, 1, 16, 0, 0, 0, time.UTC),
	}
}

func TestDispatcher_SendsStrongSignal(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink, "strong")

	d.Notify(strongSignal())

	require.Len(t, sink.sent, 1)
	assert.Contains(t, sink.sent[0], "BTCUSDT")
	assert.Contains(t, sink.sent[0], "BUY")
	assert.Contains(t, sink.sent[0], "82.8%")
	assert.Contains(t, sink.sent[0], "止损")
}

func TestDispatcher_FiltersBelowMinStrength(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink, "strong")

	sig := strongSignal()
	sig.Strength = signal.StrengthModerate
	d.Notify(sig)

	assert.Empty(t, sink.sent)
}

func TestDispatcher_NeverSendsHold(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink, "very_weak")

	sig := strongSignal()
	sig.FinalAction = signal.ActionHold
	sig.Strength = signal.StrengthVeryStrong
	d.Notify(sig)

	assert.Empty(t, sink.sent)
}

func TestDispatcher_SendFailureDoesNotPanic(t *testing.T) {
	d := NewDispatcher(&captureSink{err: errors.New("telegram down")}, "weak")
	assert.NotPanics(t, func() { d.Notify(strongSignal()) })
}

func TestFormatSignal_OmitsRiskWhenZero(t *testing.T) {
	sig := strongSignal()
	sig.EntryPrice = 0
	sig.Risk = signal.RiskParameters{}

	text := FormatSignal(sig).RenderMarkdown()
	assert.NotContains(t, text, "止损")
	assert.Contains(t, text, "BTCUSDT")
}
