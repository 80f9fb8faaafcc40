package weights

import (
	"math"
	"time"

	"tpush/internal/market"
	"tpush/internal/signal"
)

// 中文说明：
// 市场状况分析：用 24 根 1h K 线估算波动性、趋势强度与成交量活跃度，
// 三者共同决定当前的权重策略档位。

// TrendStrength 是粗粒度趋势等级。
type TrendStrength string

const (
	TrendWeak     TrendStrength = "weak"
	TrendModerate TrendStrength = "moderate"
	TrendStrong   TrendStrength = "strong"
)

// Condition 是一次市场状况评估的结果。
type Condition struct {
	Symbol          string
	Regime          signal.MarketRegime
	Trend           TrendStrength
	VolatilityScore float64
	TrendScore      float64
	VolumeActivity  float64
	Timestamp       time.Time
}

const (
	// 年化波动率 50% 记为满分
	volatilityCeiling = 0.5
	minConditionBars  = 20
)

// volatilityScore 计算小时收益率标准差的年化值并归一到 [0,1]。
func volatilityScore(candles []market.Candle) float64 {
	returns := hourlyReturns(candles)
	if len(returns) == 0 {
		return 0
	}
	vol := stddev(returns) * math.Sqrt(24)
	return math.Min(vol/volatilityCeiling, 1.0)
}

// trendScore 用线性回归斜率与拟合度衡量趋势强度，归一到 [0,1]。
func trendScore(candles []market.Candle) float64 {
	if len(candles) < 10 {
		return 0
	}
	prices := market.Closes(candles)
	slope, intercept := linearFit(prices)
	meanPrice := mean(prices)
	if meanPrice <= 0 {
		return 0
	}
	ssRes, ssTot := 0.0, 0.0
	for i, p := range prices {
		pred := slope*float64(i) + intercept
		ssRes += (p - pred) * (p - pred)
		ssTot += (p - meanPrice) * (p - meanPrice)
	}
	rSquared := 0.0
	if ssTot > 0 {
		rSquared = 1 - ssRes/ssTot
	}
	strength := math.Abs(slope/meanPrice) * rSquared
	return math.Min(strength*100, 1.0)
}

// volumeActivity 用成交量变异系数衡量活跃度，归一到 [0,1]。
func volumeActivity(candles []market.Candle) float64 {
	volumes := market.Volumes(candles)
	if len(volumes) == 0 {
		return 0
	}
	m := mean(volumes)
	if m <= 0 {
		return 0
	}
	return math.Min(stddev(volumes)/m, 1.0)
}

func classifyTrend(score float64) TrendStrength {
	switch {
	case score >= 0.7:
		return TrendStrong
	case score >= 0.4:
		return TrendModerate
	default:
		return TrendWeak
	}
}

func hourlyReturns(candles []market.Candle) []float64 {
	out := make([]float64, 0, len(candles))
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev <= 0 {
			continue
		}
		out = append(out, (candles[i].Close-prev)/prev)
	}
	return out
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func stddev(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := mean(vals)
	sum := 0.0
	for _, v := range vals {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(vals)))
}

// linearFit 返回最小二乘直线的斜率与截距，x 取 0..n-1。
func linearFit(y []float64) (slope, intercept float64) {
	n := float64(len(y))
	if n < 2 {
		return 0, mean(y)
	}
	sumX, sumY, sumXY, sumXX := 0.0, 0.0, 0.0, 0.0
	for i, v := range y {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, mean(y)
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}
