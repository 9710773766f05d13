package prediction

import (
	"math"
	"time"

	"crypto_dash/internal/domain"
)

// Heuristic implements the trend/momentum/oscillator projection.
// It is stateless and deterministic.
type Heuristic struct{}

func NewHeuristic() *Heuristic { return &Heuristic{} }

// Predict classifies the series direction and projects price levels.
func (Heuristic) Predict(asset domain.Asset, series []domain.PricePoint, now time.Time) (domain.PredictionResult, error) {
	if len(series) < MinSamples {
		return domain.PredictionResult{}, &domain.ValidationError{Field: "prices", Reason: "need at least 2 samples"}
	}

	prices := make([]float64, len(series))
	for i, p := range series {
		prices[i] = p.Price.InexactFloat64()
	}

	current := prices[len(prices)-1]
	slope := TrendSlope(prices)
	mom := Momentum(prices)
	vol := Volatility(prices)
	rsi := RSIApprox(asset.ChangePct24h)

	dir, conf := Classify(slope, mom, rsi)

	res := domain.PredictionResult{
		AssetID:       asset.ID,
		Direction:     dir,
		ConfidencePct: conf,
		CurrentPrice:  current,
		TargetPrice:   current + slope*current,
		Support:       current - 0.5*vol,
		Resistance:    current + 0.5*vol,
		RSI:           rsi,
		TrendSlope:    slope,
		Momentum:      mom,
		Volatility:    vol,
		Samples:       len(prices),
		GeneratedAt:   now,
	}
	if current != 0 {
		res.VolatilityPct = vol / current * 100
	}
	return res, nil
}

// Classify maps indicator values to a direction and confidence percentage.
func Classify(slope, momentum, rsi float64) (domain.Direction, float64) {
	switch {
	case slope > slopeThreshold && momentum > 0 && rsi < rsiOverbought:
		return domain.Bullish, math.Min(maxConfidence, (slope*1000+momentum*50+(rsiOverbought-rsi))/2)
	case slope < -slopeThreshold && momentum < 0 && rsi > rsiOversold:
		return domain.Bearish, math.Min(maxConfidence, (-slope*1000-momentum*50+(rsi-rsiOversold))/2)
	default:
		return domain.Neutral, neutralConf
	}
}

// TrendSlope is the least-squares slope of price against sample index,
// divided by the last price.
func TrendSlope(prices []float64) float64 {
	n := len(prices)
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, p := range prices {
		x := float64(i)
		sumX += x
		sumY += p
		sumXY += x * p
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	last := prices[n-1]
	if denom == 0 || last == 0 {
		return 0
	}
	return (fn*sumXY - sumX*sumY) / denom / last
}

// Momentum is the fractional change from price[max(0, n-10)] to the last price.
func Momentum(prices []float64) float64 {
	n := len(prices)
	if n == 0 {
		return 0
	}
	base := prices[max(0, n-momentumWindow)]
	if base == 0 {
		return 0
	}
	return (prices[n-1] - base) / base
}

// Volatility is the population standard deviation of prices.
func Volatility(prices []float64) float64 {
	n := len(prices)
	if n == 0 {
		return 0
	}
	var mean float64
	for _, p := range prices {
		mean += p
	}
	mean /= float64(n)

	var ss float64
	for _, p := range prices {
		d := p - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n))
}

// RSIApprox is a 24h-change oscillator clamped to [0, 100]. It is not
// Wilder's RSI; the 70/30 bands in Classify assume this scale.
func RSIApprox(changePct24h float64) float64 {
	return math.Max(0, math.Min(100, 50+changePct24h*5))
}
