// Package prediction derives informational trend signals from a price series.
// The output is a heuristic projection, not a forecast.
package prediction

import (
	"time"

	"crypto_dash/internal/domain"
)

// Predictor is the interface every projection heuristic implements.
// It is called synchronously by the Orchestrator.
type Predictor interface {
	// Predict evaluates prices (oldest first) for asset.
	Predict(asset domain.Asset, prices []domain.PricePoint, now time.Time) (domain.PredictionResult, error)
}

// MinSamples is the shortest series Predict accepts.
const MinSamples = 2

// Classification thresholds, calibrated to RSIApprox's scale.
const (
	slopeThreshold = 0.01
	rsiOverbought  = 70.0
	rsiOversold    = 30.0
	maxConfidence  = 90.0
	neutralConf    = 50.0
	momentumWindow = 10
)
