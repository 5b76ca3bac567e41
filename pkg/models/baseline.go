package models

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// BaselineModel implements a simple forecasting model using exponential moving averages
// and optional hour-of-day seasonality patterns.
//
// Algorithm:
//  1. Compute EMA over the last 6 and 24 points (hourly data: 6h and 1d)
//  2. Base forecast = 0.7*EMAshort + 0.3*EMAlong
//  3. Optional seasonality: if sufficient hour-of-day data exists,
//     compute Mean_h and blend: yhat = 0.8*Base + 0.2*Mean_h
//  4. All values are non-negative
//
// It is a cheap fallback for the seasonal model and a reference in tests.
type BaselineModel struct {
	// metric is the name of the metric being forecast
	metric string

	// stepSec is the interval in seconds between forecast points
	stepSec int

	// horizon is the total forecast window in seconds
	horizon int

	mu sync.RWMutex

	// seasonality stores hour-of-day means if available
	// map key is hour (0-23), value is mean for that hour
	seasonality map[int]float64
}

// NewBaselineModel creates a new baseline forecasting model.
// The model uses EMA-based forecasting with optional seasonality.
func NewBaselineModel(metric string, stepSec, horizon int) *BaselineModel {
	return &BaselineModel{
		metric:      metric,
		stepSec:     stepSec,
		horizon:     horizon,
		seasonality: make(map[int]float64),
	}
}

// Name returns the model identifier.
func (m *BaselineModel) Name() string {
	return "baseline"
}

// Train extracts seasonality patterns from historical data.
// For the baseline model, this computes hour-of-day means if sufficient data exists.
//
// Returns ErrInsufficientData for fewer than two rows and ErrNonFinite if any
// value is NaN or Inf.
func (m *BaselineModel) Train(ctx context.Context, history FeatureFrame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n := len(history.Rows); n < 2 {
		return fmt.Errorf("%w: need at least 2 points, got %d", ErrInsufficientData, n)
	}

	hourSums := make(map[int]float64)
	hourCounts := make(map[int]int)

	for i, row := range history.Rows {
		value, hasValue := row["value"]
		hour, hasHour := row["hour"]
		if hasValue && (math.IsNaN(value) || math.IsInf(value, 0)) {
			return fmt.Errorf("%w: row %d", ErrNonFinite, i)
		}

		if hasValue && hasHour {
			h := int(hour)
			if h >= 0 && h < 24 {
				hourSums[h] += value
				hourCounts[h]++
			}
		}
	}

	seasonality := make(map[int]float64)
	for h := range 24 {
		if count := hourCounts[h]; count >= 2 {
			seasonality[h] = hourSums[h] / float64(count)
		}
	}

	m.mu.Lock()
	m.seasonality = seasonality
	m.mu.Unlock()

	return nil
}

// Predict generates a forecast using EMA-based prediction with optional seasonality.
//
// The features FeatureFrame should contain recent historical values with:
//   - "value": the metric value (required)
//   - "hour": hour of day 0-23 (optional, for seasonality)
//   - "timestamp": Unix timestamp (required for timestamped points)
//
// History rows are echoed back with their hour-of-day mean as the fitted value,
// followed by horizon/stepSec non-negative future points.
func (m *BaselineModel) Predict(ctx context.Context, features FeatureFrame) (Forecast, error) {
	if err := ctx.Err(); err != nil {
		return Forecast{}, err
	}
	if len(features.Rows) == 0 {
		return Forecast{}, fmt.Errorf("features cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	values := make([]float64, 0, len(features.Rows))
	points := make([]Point, 0, len(features.Rows))
	var last time.Time
	for _, row := range features.Rows {
		v, ok := row["value"]
		if !ok {
			continue
		}
		values = append(values, v)

		t, ok := rowTime(row)
		if !ok {
			continue
		}
		fitted := v
		if mean, ok := m.seasonality[t.Hour()]; ok {
			fitted = mean
		}
		points = append(points, Point{Timestamp: t, Value: fitted})
		last = t
	}

	if len(values) == 0 {
		return Forecast{}, fmt.Errorf("no 'value' field found in features")
	}

	emaShort := computeEMA(values, 6)
	emaLong := computeEMA(values, 24)

	baseForecast := 0.7*emaShort + 0.3*emaLong
	if baseForecast < 0 {
		baseForecast = 0
	}

	numSteps := m.horizon / m.stepSec
	if numSteps <= 0 {
		numSteps = 1
	}

	step := time.Duration(m.stepSec) * time.Second
	for _, t := range futureTimes(last, step, numSteps) {
		value := baseForecast

		if seasonalMean, ok := m.seasonality[t.Hour()]; ok {
			value = 0.8*baseForecast + 0.2*seasonalMean
		}

		if value < 0 {
			value = 0
		}

		points = append(points, Point{Timestamp: t, Value: value})
	}

	return Forecast{
		Metric:  m.metric,
		StepSec: m.stepSec,
		Horizon: numSteps,
		Points:  points,
	}, nil
}

// computeEMA calculates the exponential moving average over the most recent n points.
// If there are fewer than n points, uses all available points.
// Returns 0 if values is empty.
//
// EMA formula: EMA_t = α * value_t + (1-α) * EMA_{t-1}
// where α = 2 / (n + 1)
func computeEMA(values []float64, n int) float64 {
	if len(values) == 0 {
		return 0
	}

	start := 0
	if len(values) > n {
		start = len(values) - n
	}
	window := values[start:]

	alpha := 2.0 / float64(len(window)+1)
	ema := window[0]

	for i := 1; i < len(window); i++ {
		ema = alpha*window[i] + (1-alpha)*ema
	}

	return ema
}
