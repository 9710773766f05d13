package domain

import "time"

// Direction is the heuristic trend classification.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// PredictionResult is an informational projection. It is recomputed on
// every request and never persisted.
type PredictionResult struct {
	AssetID       string    `json:"asset_id"`
	Direction     Direction `json:"direction"`
	ConfidencePct float64   `json:"confidence_pct"`
	CurrentPrice  float64   `json:"current_price"`
	TargetPrice   float64   `json:"target_price"`
	Support       float64   `json:"support"`
	Resistance    float64   `json:"resistance"`
	RSI           float64   `json:"rsi"`
	TrendSlope    float64   `json:"trend_slope"`
	Momentum      float64   `json:"momentum"`
	Volatility    float64   `json:"volatility"`
	VolatilityPct float64   `json:"volatility_pct"`
	Samples       int       `json:"samples"`
	GeneratedAt   time.Time `json:"generated_at"`
}
