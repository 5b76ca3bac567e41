package models

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

// hourlyFrame builds a FeatureFrame with one row per hour starting at start.
func hourlyFrame(start time.Time, values []float64) FeatureFrame {
	rows := make([]map[string]float64, len(values))
	for i, v := range values {
		ts := start.Add(time.Duration(i) * time.Hour)
		rows[i] = map[string]float64{
			"timestamp": float64(ts.Unix()),
			"value":     v,
			"hour":      float64(ts.Hour()),
			"day":       float64(ts.Weekday()),
		}
	}
	return FeatureFrame{Rows: rows}
}

func constantSeries(n int, value float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = value
	}
	return values
}

var seriesStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // a Monday

func newHourlySeasonal(horizonHours int) *SeasonalModel {
	return NewSeasonalModel("load", 3600, horizonHours*3600, DefaultSeasonalConfig())
}

func TestNewSeasonalModel_Panics(t *testing.T) {
	tests := []struct {
		name       string
		metric     string
		stepSec    int
		horizonSec int
	}{
		{"empty metric", "", 3600, 86400},
		{"zero step", "load", 0, 86400},
		{"negative step", "load", -1, 86400},
		{"horizon < step", "load", 3600, 1800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("expected panic for %s", tt.name)
				}
			}()
			NewSeasonalModel(tt.metric, tt.stepSec, tt.horizonSec, DefaultSeasonalConfig())
		})
	}
}

func TestSeasonalModel_Name(t *testing.T) {
	if got := newHourlySeasonal(24).Name(); got != "seasonal" {
		t.Errorf("Name() = %q, want %q", got, "seasonal")
	}
}

func TestSeasonalModel_Train_Errors(t *testing.T) {
	tests := []struct {
		name    string
		history FeatureFrame
		wantErr error
	}{
		{
			name:    "empty",
			history: FeatureFrame{},
			wantErr: ErrInsufficientData,
		},
		{
			name:    "single point",
			history: hourlyFrame(seriesStart, []float64{1}),
			wantErr: ErrInsufficientData,
		},
		{
			name:    "missing timestamp",
			history: FeatureFrame{Rows: []map[string]float64{{"value": 1}, {"value": 2}}},
			wantErr: ErrInsufficientData,
		},
		{
			name:    "NaN value",
			history: hourlyFrame(seriesStart, []float64{1, math.NaN(), 3}),
			wantErr: ErrNonFinite,
		},
		{
			name:    "Inf value",
			history: hourlyFrame(seriesStart, []float64{1, 2, math.Inf(1)}),
			wantErr: ErrNonFinite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := newHourlySeasonal(24)
			err := model.Train(context.Background(), tt.history)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Train() error = %v, want %v", err, tt.wantErr)
			}
			if model.trained {
				t.Error("model should not be marked trained after a failed fit")
			}
		})
	}
}

func TestSeasonalModel_Train_TwoPoints(t *testing.T) {
	model := newHourlySeasonal(24)
	if err := model.Train(context.Background(), hourlyFrame(seriesStart, []float64{10, 12})); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	forecast, err := model.Predict(context.Background(), FeatureFrame{})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	for i, v := range forecast.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("value[%d] = %v, want finite", i, v)
		}
	}
}

func TestSeasonalModel_Predict_NotTrained(t *testing.T) {
	_, err := newHourlySeasonal(24).Predict(context.Background(), FeatureFrame{})
	if !errors.Is(err, ErrNotTrained) {
		t.Errorf("Predict() error = %v, want ErrNotTrained", err)
	}
}

func TestSeasonalModel_ContextCancellation(t *testing.T) {
	model := newHourlySeasonal(24)
	history := hourlyFrame(seriesStart, constantSeries(100, 50))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := model.Train(ctx, history); err != context.Canceled {
		t.Errorf("Train() error = %v, want %v", err, context.Canceled)
	}

	if err := model.Train(context.Background(), history); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if _, err := model.Predict(ctx, history); err != context.Canceled {
		t.Errorf("Predict() error = %v, want %v", err, context.Canceled)
	}
}

func TestSeasonalModel_Predict_Constant(t *testing.T) {
	model := newHourlySeasonal(720)
	history := hourlyFrame(seriesStart, constantSeries(200, 50))

	if err := model.Train(context.Background(), history); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	forecast, err := model.Predict(context.Background(), history)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	if got, want := len(forecast.Points), 200+720; got != want {
		t.Fatalf("len(Points) = %d, want %d", got, want)
	}
	if forecast.Horizon != 720 {
		t.Errorf("Horizon = %d, want 720", forecast.Horizon)
	}
	if forecast.Metric != "load" {
		t.Errorf("Metric = %q, want %q", forecast.Metric, "load")
	}

	for i, p := range forecast.Future()[:24] {
		if math.Abs(p.Value-50) > 0.01 {
			t.Errorf("future[%d] = %.4f, want ~50", i, p.Value)
		}
	}
}

func TestSeasonalModel_Predict_FutureTimestamps(t *testing.T) {
	model := newHourlySeasonal(48)
	history := hourlyFrame(seriesStart, constantSeries(100, 5))

	if err := model.Train(context.Background(), history); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	forecast, err := model.Predict(context.Background(), history)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	for i, p := range forecast.Points[:100] {
		want := seriesStart.Add(time.Duration(i) * time.Hour)
		if !p.Timestamp.Equal(want) {
			t.Fatalf("history point %d at %v, want %v", i, p.Timestamp, want)
		}
	}

	last := seriesStart.Add(99 * time.Hour)
	for i, p := range forecast.Future() {
		want := last.Add(time.Duration(i+1) * time.Hour)
		if !p.Timestamp.Equal(want) {
			t.Fatalf("future point %d at %v, want %v", i, p.Timestamp, want)
		}
	}
}

func TestSeasonalModel_Predict_LinearTrend(t *testing.T) {
	values := make([]float64, 500)
	for i := range values {
		values[i] = 10 + 0.1*float64(i)
	}

	model := newHourlySeasonal(24)
	if err := model.Train(context.Background(), hourlyFrame(seriesStart, values)); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	forecast, err := model.Predict(context.Background(), FeatureFrame{})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	for i, v := range forecast.Values() {
		want := 10 + 0.1*float64(500+i)
		if math.Abs(v-want) > 1.0 {
			t.Errorf("value[%d] = %.3f, want ~%.3f", i, v, want)
		}
	}
}

func TestSeasonalModel_Predict_DailyCycle(t *testing.T) {
	values := make([]float64, 24*28)
	for i := range values {
		values[i] = 100 + 10*math.Sin(2*math.Pi*float64(i%24)/24)
	}

	model := newHourlySeasonal(24)
	if err := model.Train(context.Background(), hourlyFrame(seriesStart, values)); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	forecast, err := model.Predict(context.Background(), FeatureFrame{})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	// the series ends at hour 23, so future point i falls on hour i
	for i, v := range forecast.Values() {
		want := 100 + 10*math.Sin(2*math.Pi*float64(i)/24)
		if math.Abs(v-want) > 1.0 {
			t.Errorf("value[%d] = %.3f, want ~%.3f", i, v, want)
		}
	}
}

func TestSeasonalModel_Components_WeeklyCycle(t *testing.T) {
	values := make([]float64, 24*7*6)
	for i := range values {
		ts := seriesStart.Add(time.Duration(i) * time.Hour)
		values[i] = 100
		if ts.Weekday() == time.Saturday || ts.Weekday() == time.Sunday {
			values[i] = 60
		}
	}

	model := newHourlySeasonal(24)
	if err := model.Train(context.Background(), hourlyFrame(seriesStart, values)); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	wednesday := time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC)
	saturday := time.Date(2024, 2, 17, 12, 0, 0, 0, time.UTC)

	_, _, weekdayWeekly, err := model.Components(wednesday)
	if err != nil {
		t.Fatalf("Components() error = %v", err)
	}
	_, _, weekendWeekly, err := model.Components(saturday)
	if err != nil {
		t.Fatalf("Components() error = %v", err)
	}

	if weekdayWeekly-weekendWeekly < 20 {
		t.Errorf("weekly component weekday=%.2f weekend=%.2f, want weekday well above weekend",
			weekdayWeekly, weekendWeekly)
	}
}

func TestSeasonalModel_Components_SumToPrediction(t *testing.T) {
	values := make([]float64, 24*14)
	for i := range values {
		values[i] = 50 + 5*math.Cos(2*math.Pi*float64(i)/24) + 0.01*float64(i)
	}

	model := newHourlySeasonal(24)
	if err := model.Train(context.Background(), hourlyFrame(seriesStart, values)); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	forecast, err := model.Predict(context.Background(), FeatureFrame{})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	for _, p := range forecast.Future()[:5] {
		trend, daily, weekly, err := model.Components(p.Timestamp)
		if err != nil {
			t.Fatalf("Components() error = %v", err)
		}
		if got := trend + daily + weekly; math.Abs(got-p.Value) > 1e-9 {
			t.Errorf("components sum = %.6f, prediction = %.6f", got, p.Value)
		}
	}
}

func TestSeasonalModel_Deterministic(t *testing.T) {
	values := make([]float64, 24*21)
	for i := range values {
		values[i] = 80 + 15*math.Sin(float64(i)*0.26) + 3*math.Cos(float64(i)*0.04)
	}
	history := hourlyFrame(seriesStart, values)

	run := func() []float64 {
		model := newHourlySeasonal(72)
		if err := model.Train(context.Background(), history); err != nil {
			t.Fatalf("Train() error = %v", err)
		}
		forecast, err := model.Predict(context.Background(), history)
		if err != nil {
			t.Fatalf("Predict() error = %v", err)
		}
		return forecast.Values()
	}

	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("value[%d] differs between runs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestSeasonalModel_Concurrency_Predict(t *testing.T) {
	model := newHourlySeasonal(24)
	if err := model.Train(context.Background(), hourlyFrame(seriesStart, constantSeries(100, 20))); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 5)

	for range 5 {
		wg.Go(func() {
			if _, err := model.Predict(context.Background(), FeatureFrame{}); err != nil {
				errs <- err
			}
		})
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Predict() error: %v", err)
	}
}

func TestSeasonalModel_SeasonalityDisabled(t *testing.T) {
	cfg := DefaultSeasonalConfig()
	cfg.DailySeasonality = false
	cfg.WeeklySeasonality = false

	model := NewSeasonalModel("load", 3600, 24*3600, cfg)
	if err := model.Train(context.Background(), hourlyFrame(seriesStart, constantSeries(48, 7))); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	_, daily, weekly, err := model.Components(seriesStart.Add(50 * time.Hour))
	if err != nil {
		t.Fatalf("Components() error = %v", err)
	}
	if daily != 0 || weekly != 0 {
		t.Errorf("daily=%v weekly=%v, want both 0 with seasonality disabled", daily, weekly)
	}
}

func BenchmarkSeasonalModel_Train_8000Points(b *testing.B) {
	values := make([]float64, 8000)
	for i := range values {
		values[i] = 100 + 10*math.Sin(2*math.Pi*float64(i)/24)
	}
	history := hourlyFrame(seriesStart, values)
	model := newHourlySeasonal(720)
	ctx := context.Background()

	for b.Loop() {
		_ = model.Train(ctx, history)
	}
}
