package models

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sartorproj/goarima/arima"
	"github.com/sartorproj/goarima/timeseries"
)

// ARIMAModel forecasts with a non-seasonal ARIMA(p,d,q) fitted by conditional
// sum of squares. It ignores calendar features and extrapolates from the most
// recent observations, so it suits short horizons better than SeasonalModel.
//
// History points in the returned Forecast echo the observed values.
// Future values are clamped to be non-negative.
type ARIMAModel struct {
	metric  string
	stepSec int
	horizon int // number of future points
	p, d, q int

	mu       sync.RWMutex
	trained  bool
	fit      *arima.Model
	flat     bool // history was constant, fit is nil
	level    float64
	lastSeen time.Time
}

// NewARIMAModel creates an ARIMA(p,d,q) model. When p, d and q are all zero
// the order defaults to ARIMA(1,1,1).
//
// Panics if metric is empty, stepSec is not positive, horizonSec is shorter
// than one step or an order is negative.
func NewARIMAModel(metric string, stepSec, horizonSec, p, d, q int) *ARIMAModel {
	if metric == "" {
		panic("arima model: metric cannot be empty")
	}
	if stepSec <= 0 {
		panic(fmt.Sprintf("arima model: stepSec must be positive, got %d", stepSec))
	}
	if horizonSec < stepSec {
		panic(fmt.Sprintf("arima model: horizonSec (%d) must be at least stepSec (%d)", horizonSec, stepSec))
	}
	if p < 0 || d < 0 || q < 0 {
		panic(fmt.Sprintf("arima model: orders must be non-negative, got (%d,%d,%d)", p, d, q))
	}
	if p == 0 && d == 0 && q == 0 {
		p, d, q = 1, 1, 1
	}

	return &ARIMAModel{
		metric:  metric,
		stepSec: stepSec,
		horizon: horizonSec / stepSec,
		p:       p,
		d:       d,
		q:       q,
	}
}

func (m *ARIMAModel) Name() string {
	return fmt.Sprintf("arima(%d,%d,%d)", m.p, m.d, m.q)
}

// MinPoints is the shortest history Train accepts.
func (m *ARIMAModel) MinPoints() int {
	return m.p + m.d + m.q + 10
}

// Train fits the model to the "value" column of history.
func (m *ARIMAModel) Train(ctx context.Context, history FeatureFrame) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n := len(history.Rows)
	if n < m.MinPoints() {
		return fmt.Errorf("%w: need at least %d points for %s, got %d",
			ErrInsufficientData, m.MinPoints(), m.Name(), n)
	}

	values := make([]float64, n)
	stamps := make([]time.Time, n)
	for i, row := range history.Rows {
		v, ok := row["value"]
		if !ok {
			return fmt.Errorf("%w: row %d has no value", ErrInsufficientData, i)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: row %d", ErrNonFinite, i)
		}
		t, ok := rowTime(row)
		if !ok {
			return fmt.Errorf("%w: row %d has no timestamp", ErrInsufficientData, i)
		}
		values[i] = v
		stamps[i] = t
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.trained = false
	m.lastSeen = stamps[n-1]

	if isFlat(values) {
		m.fit = nil
		m.flat = true
		m.level = values[0]
		m.trained = true
		return nil
	}

	series, err := timeseries.NewWithTimestamps(stamps, values)
	if err != nil {
		return fmt.Errorf("arima series: %w", err)
	}
	fit := arima.New(m.p, m.d, m.q)
	if err := fit.Fit(series); err != nil {
		return fmt.Errorf("%w: fit %s: %v", ErrInsufficientData, m.Name(), err)
	}

	m.fit = fit
	m.flat = false
	m.trained = true
	return nil
}

// Predict echoes history and appends the model's horizon of future points.
func (m *ARIMAModel) Predict(ctx context.Context, history FeatureFrame) (Forecast, error) {
	if err := ctx.Err(); err != nil {
		return Forecast{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return Forecast{}, ErrNotTrained
	}

	future, err := m.forecast()
	if err != nil {
		return Forecast{}, err
	}

	points := make([]Point, 0, len(history.Rows)+m.horizon)
	last := m.lastSeen
	for _, row := range history.Rows {
		t, ok := rowTime(row)
		if !ok {
			continue
		}
		points = append(points, Point{Timestamp: t, Value: row["value"]})
		last = t
	}

	step := time.Duration(m.stepSec) * time.Second
	for i, t := range futureTimes(last, step, m.horizon) {
		points = append(points, Point{Timestamp: t, Value: future[i]})
	}

	return Forecast{
		Metric:  m.metric,
		StepSec: m.stepSec,
		Horizon: m.horizon,
		Points:  points,
	}, nil
}

// forecast returns the horizon of future values. Callers must hold m.mu.
func (m *ARIMAModel) forecast() ([]float64, error) {
	out := make([]float64, m.horizon)
	if m.flat {
		for i := range out {
			out[i] = math.Max(0, m.level)
		}
		return out, nil
	}

	values, err := m.fit.Predict(m.horizon)
	if err != nil {
		return nil, fmt.Errorf("arima predict: %w", err)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: forecast step %d", ErrNonFinite, i+1)
		}
		out[i] = math.Max(0, v)
	}
	return out, nil
}

func isFlat(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
