package models

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	secondsPerDay = 86400.0
	dailyPeriod   = 1.0 // days
	weeklyPeriod  = 7.0 // days
)

// SeasonalConfig controls the structure and regularization of SeasonalModel.
type SeasonalConfig struct {
	// DailySeasonality and WeeklySeasonality toggle the two Fourier blocks.
	DailySeasonality  bool
	WeeklySeasonality bool

	// DailyOrder and WeeklyOrder are the number of sin/cos pairs per block.
	DailyOrder  int
	WeeklyOrder int

	// Changepoints is the maximum number of trend changepoints.
	Changepoints int
	// ChangepointRange is the leading fraction of history where changepoints may sit.
	ChangepointRange float64

	// ChangepointPriorScale and SeasonalityPriorScale set the ridge penalty on the
	// changepoint slopes and Fourier coefficients. Smaller means stiffer.
	ChangepointPriorScale float64
	SeasonalityPriorScale float64
}

// DefaultSeasonalConfig returns daily and weekly seasonality with Prophet's default
// Fourier orders, changepoint count and prior scales.
func DefaultSeasonalConfig() SeasonalConfig {
	return SeasonalConfig{
		DailySeasonality:      true,
		WeeklySeasonality:     true,
		DailyOrder:            4,
		WeeklyOrder:           3,
		Changepoints:          25,
		ChangepointRange:      0.8,
		ChangepointPriorScale: 0.05,
		SeasonalityPriorScale: 10,
	}
}

// noiseScale is the assumed residual scale (in max-abs scaled units) used to turn
// prior scales into ridge penalties: lambda = noiseScale^2 / priorScale^2.
const noiseScale = 0.1

// SeasonalModel is an additive forecaster:
//
//	y(t) = trend(t) + daily(t) + weekly(t)
//
// The trend is piecewise linear with changepoints spread over the early part of
// the history. The seasonal terms are Fourier series over absolute time, so
// their phase follows the calendar rather than the position in the series.
// All coefficients are fitted jointly by penalized least squares.
//
// The model is safe for concurrent Predict calls once trained.
type SeasonalModel struct {
	metric  string
	stepSec int
	horizon int
	cfg     SeasonalConfig

	mu           sync.RWMutex
	trained      bool
	coeffs       []float64
	changepoints []float64 // in scaled time
	tStart       float64   // unix seconds
	tSpan        float64   // seconds
	yScale       float64
	lastSeen     time.Time
}

// NewSeasonalModel creates a seasonal-additive model that forecasts horizonSec
// seconds ahead at stepSec resolution.
// Panics if metric is empty, stepSec <= 0 or horizonSec < stepSec.
func NewSeasonalModel(metric string, stepSec, horizonSec int, cfg SeasonalConfig) *SeasonalModel {
	if metric == "" {
		panic("seasonal model: metric cannot be empty")
	}
	if stepSec <= 0 {
		panic("seasonal model: stepSec must be positive")
	}
	if horizonSec < stepSec {
		panic("seasonal model: horizonSec must be >= stepSec")
	}
	if cfg.ChangepointRange <= 0 || cfg.ChangepointRange > 1 {
		cfg.ChangepointRange = 0.8
	}
	if cfg.ChangepointPriorScale <= 0 {
		cfg.ChangepointPriorScale = 0.05
	}
	if cfg.SeasonalityPriorScale <= 0 {
		cfg.SeasonalityPriorScale = 10
	}

	return &SeasonalModel{
		metric:  metric,
		stepSec: stepSec,
		horizon: horizonSec / stepSec,
		cfg:     cfg,
	}
}

// Name returns the model identifier.
func (m *SeasonalModel) Name() string {
	return "seasonal"
}

// Train fits trend and seasonal coefficients to history.
//
// Returns ErrInsufficientData for fewer than two rows or rows without a
// timestamp, and ErrNonFinite if any value is NaN or Inf.
func (m *SeasonalModel) Train(ctx context.Context, history FeatureFrame) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n := len(history.Rows)
	if n < 2 {
		return fmt.Errorf("%w: need at least 2 points, got %d", ErrInsufficientData, n)
	}

	ts := make([]float64, n)
	ys := make([]float64, n)
	for i, row := range history.Rows {
		t, ok := row["timestamp"]
		if !ok {
			return fmt.Errorf("%w: row %d has no timestamp", ErrInsufficientData, i)
		}
		y, ok := row["value"]
		if !ok {
			return fmt.Errorf("%w: row %d has no value", ErrInsufficientData, i)
		}
		if math.IsNaN(y) || math.IsInf(y, 0) || math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("%w: row %d", ErrNonFinite, i)
		}
		ts[i] = t
		ys[i] = y
	}

	tStart := floats.Min(ts)
	tSpan := floats.Max(ts) - tStart
	if tSpan <= 0 {
		tSpan = 1
	}

	yScale := math.Max(math.Abs(floats.Max(ys)), math.Abs(floats.Min(ys)))
	if yScale == 0 {
		yScale = 1
	}

	changepoints := m.placeChangepoints(ts, tStart, tSpan)
	p := m.numFeatures(len(changepoints))

	xtx := make([]float64, p*p)
	xty := make([]float64, p)
	x := make([]float64, p)

	for i := range n {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		m.fillFeatures(x, (ts[i]-tStart)/tSpan, ts[i], changepoints)
		y := ys[i] / yScale
		for a := range p {
			xty[a] += x[a] * y
			for b := a; b < p; b++ {
				xtx[a*p+b] += x[a] * x[b]
			}
		}
	}

	m.addPenalties(xtx, p, len(changepoints), n)

	// mirror the upper triangle so the dense fallback sees the full matrix
	for a := range p {
		for b := a + 1; b < p; b++ {
			xtx[b*p+a] = xtx[a*p+b]
		}
	}

	coeffs, err := solveNormal(xtx, xty, p)
	if err != nil {
		return fmt.Errorf("solve normal equations: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.coeffs = coeffs
	m.changepoints = changepoints
	m.tStart = tStart
	m.tSpan = tSpan
	m.yScale = yScale
	m.lastSeen = time.Unix(int64(floats.Max(ts)), 0).UTC()
	m.trained = true

	return nil
}

// Predict returns a fitted value for every row of history followed by the
// model's horizon of future points. If history is empty the future starts
// one step after the last timestamp seen during training.
func (m *SeasonalModel) Predict(ctx context.Context, history FeatureFrame) (Forecast, error) {
	if err := ctx.Err(); err != nil {
		return Forecast{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return Forecast{}, ErrNotTrained
	}

	points := make([]Point, 0, len(history.Rows)+m.horizon)
	last := m.lastSeen
	for _, row := range history.Rows {
		t, ok := rowTime(row)
		if !ok {
			continue
		}
		points = append(points, Point{Timestamp: t, Value: m.valueAt(t)})
		last = t
	}

	step := time.Duration(m.stepSec) * time.Second
	for _, t := range futureTimes(last, step, m.horizon) {
		points = append(points, Point{Timestamp: t, Value: m.valueAt(t)})
	}

	return Forecast{
		Metric:  m.metric,
		StepSec: m.stepSec,
		Horizon: m.horizon,
		Points:  points,
	}, nil
}

// Components returns the trend, daily and weekly parts of the prediction at t,
// in the original units. Their sum is the predicted value.
func (m *SeasonalModel) Components(t time.Time) (trend, daily, weekly float64, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return 0, 0, 0, ErrNotTrained
	}

	x := make([]float64, len(m.coeffs))
	abs := float64(t.Unix())
	m.fillFeatures(x, (abs-m.tStart)/m.tSpan, abs, m.changepoints)

	nTrend := 2 + len(m.changepoints)
	nDaily := m.dailyTerms()
	trend = floats.Dot(x[:nTrend], m.coeffs[:nTrend])
	daily = floats.Dot(x[nTrend:nTrend+nDaily], m.coeffs[nTrend:nTrend+nDaily])
	weekly = floats.Dot(x[nTrend+nDaily:], m.coeffs[nTrend+nDaily:])

	return trend * m.yScale, daily * m.yScale, weekly * m.yScale, nil
}

// valueAt evaluates the fitted model. Callers must hold m.mu.
func (m *SeasonalModel) valueAt(t time.Time) float64 {
	x := make([]float64, len(m.coeffs))
	abs := float64(t.Unix())
	m.fillFeatures(x, (abs-m.tStart)/m.tSpan, abs, m.changepoints)
	return floats.Dot(x, m.coeffs) * m.yScale
}

// placeChangepoints spreads changepoints evenly over the first ChangepointRange
// of the history, the way Prophet does, and returns them in scaled time.
func (m *SeasonalModel) placeChangepoints(ts []float64, tStart, tSpan float64) []float64 {
	histSize := int(math.Floor(float64(len(ts)) * m.cfg.ChangepointRange))
	k := min(m.cfg.Changepoints, histSize-1)
	if k <= 0 {
		return nil
	}

	cps := make([]float64, 0, k)
	for j := 1; j <= k; j++ {
		idx := int(math.Round(float64(j) * float64(histSize-1) / float64(k)))
		cps = append(cps, (ts[idx]-tStart)/tSpan)
	}
	return cps
}

func (m *SeasonalModel) dailyTerms() int {
	if !m.cfg.DailySeasonality {
		return 0
	}
	return 2 * m.cfg.DailyOrder
}

func (m *SeasonalModel) weeklyTerms() int {
	if !m.cfg.WeeklySeasonality {
		return 0
	}
	return 2 * m.cfg.WeeklyOrder
}

// numFeatures is intercept + slope + changepoints + Fourier terms.
func (m *SeasonalModel) numFeatures(nChangepoints int) int {
	return 2 + nChangepoints + m.dailyTerms() + m.weeklyTerms()
}

// fillFeatures writes the design row for scaled time t and absolute time abs
// (unix seconds) into x.
func (m *SeasonalModel) fillFeatures(x []float64, t, abs float64, changepoints []float64) {
	x[0] = 1
	x[1] = t
	i := 2
	for _, c := range changepoints {
		x[i] = math.Max(0, t-c)
		i++
	}

	days := abs / secondsPerDay
	if m.cfg.DailySeasonality {
		i = fourier(x, i, days, dailyPeriod, m.cfg.DailyOrder)
	}
	if m.cfg.WeeklySeasonality {
		fourier(x, i, days, weeklyPeriod, m.cfg.WeeklyOrder)
	}
}

// fourier writes order sin/cos pairs for the given period into x starting at i
// and returns the next free index.
func fourier(x []float64, i int, days, period float64, order int) int {
	for k := 1; k <= order; k++ {
		arg := 2 * math.Pi * float64(k) * days / period
		x[i] = math.Sin(arg)
		x[i+1] = math.Cos(arg)
		i += 2
	}
	return i
}

// addPenalties adds the ridge diagonal. Intercept and slope get a tiny term
// that keeps the system positive definite when all timestamps coincide.
func (m *SeasonalModel) addPenalties(xtx []float64, p, nChangepoints, n int) {
	eps := 1e-9 * float64(n)
	cpPenalty := noiseScale * noiseScale / (m.cfg.ChangepointPriorScale * m.cfg.ChangepointPriorScale)
	seasonPenalty := noiseScale * noiseScale / (m.cfg.SeasonalityPriorScale * m.cfg.SeasonalityPriorScale)

	xtx[0] += eps
	xtx[p+1] += eps
	for j := 2; j < 2+nChangepoints; j++ {
		xtx[j*p+j] += cpPenalty
	}
	for j := 2 + nChangepoints; j < p; j++ {
		xtx[j*p+j] += seasonPenalty + eps
	}
}

// solveNormal solves (X'X) b = X'y, trying Cholesky first and falling back to
// a general solve when the matrix is not numerically positive definite.
func solveNormal(xtx, xty []float64, p int) ([]float64, error) {
	b := mat.NewVecDense(p, xty)
	var beta mat.VecDense

	var chol mat.Cholesky
	if chol.Factorize(mat.NewSymDense(p, xtx)) {
		if err := chol.SolveVecTo(&beta, b); err == nil {
			return beta.RawVector().Data, nil
		}
	}

	if err := beta.SolveVec(mat.NewDense(p, p, xtx), b); err != nil {
		// an ill-conditioned system still yields a usable least-squares answer
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, err
		}
	}
	return beta.RawVector().Data, nil
}
