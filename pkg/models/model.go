// Package models defines the forecasting model contract and its implementations.
//
// A Model is trained on a FeatureFrame of historical observations and then asked
// to predict a Forecast that covers every historical timestamp plus a fixed number
// of future steps. Only the future suffix is usually consumed by callers.
package models

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInsufficientData is returned by Train when the history is too short to fit.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrNonFinite is returned by Train when the history contains NaN or Inf values.
	ErrNonFinite = errors.New("non-finite value in history")
	// ErrNotTrained is returned by Predict when Train has not succeeded yet.
	ErrNotTrained = errors.New("model not trained")
)

// FeatureFrame is a sequence of feature rows ordered by timestamp.
// Rows carry "timestamp" (Unix seconds), "value", "hour" and "day".
type FeatureFrame struct {
	Rows []map[string]float64
}

// Len returns the number of rows in the frame.
func (f FeatureFrame) Len() int {
	return len(f.Rows)
}

// Point is a single forecast value at a timestamp.
type Point struct {
	Timestamp time.Time
	Value     float64
}

// Forecast is the output of Model.Predict.
type Forecast struct {
	Metric  string
	StepSec int
	// Horizon is the number of future points at the end of Points.
	Horizon int
	Points  []Point
}

// Future returns the trailing Horizon points, the part of the forecast
// that lies after the last historical timestamp.
func (f Forecast) Future() []Point {
	if f.Horizon <= 0 || f.Horizon > len(f.Points) {
		return f.Points
	}
	return f.Points[len(f.Points)-f.Horizon:]
}

// Values returns the predicted values of the future points.
func (f Forecast) Values() []float64 {
	future := f.Future()
	values := make([]float64, len(future))
	for i, p := range future {
		values[i] = p.Value
	}
	return values
}

// Model is the two-phase forecasting contract.
type Model interface {
	// Name returns a short identifier, used in logs and metric labels.
	Name() string

	// Train fits the model on history. It must be called before Predict.
	Train(ctx context.Context, history FeatureFrame) error

	// Predict returns one point per row of history followed by the model's
	// horizon of future points, spaced one step apart.
	Predict(ctx context.Context, history FeatureFrame) (Forecast, error)
}

// rowTime extracts the timestamp feature of a row as UTC time.
func rowTime(row map[string]float64) (time.Time, bool) {
	ts, ok := row["timestamp"]
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(ts), 0).UTC(), true
}

// futureTimes returns n timestamps spaced step apart, starting one step after last.
func futureTimes(last time.Time, step time.Duration, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range n {
		out[i] = last.Add(time.Duration(i+1) * step)
	}
	return out
}
