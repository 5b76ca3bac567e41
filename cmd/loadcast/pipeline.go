package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/HatiCode/loadcast/cmd/loadcast/config"
	"github.com/HatiCode/loadcast/cmd/loadcast/metrics"
	cmdmodels "github.com/HatiCode/loadcast/cmd/loadcast/models"
	"github.com/HatiCode/loadcast/pkg/adapters"
	"github.com/HatiCode/loadcast/pkg/features"
	"github.com/HatiCode/loadcast/pkg/models"
	"github.com/HatiCode/loadcast/pkg/pricing"
	"github.com/HatiCode/loadcast/pkg/report"
	"github.com/HatiCode/loadcast/pkg/storage"
	"github.com/shopspring/decimal"
)

// Error classes of a failed run. Every error returned by Pipeline.Run wraps
// exactly one of them, except for context cancellation.
var (
	ErrInput  = errors.New("input error")
	ErrData   = errors.New("data error")
	ErrOutput = errors.New("output error")
)

// Pipeline runs one forecast: load → features → train → predict → report → write.
type Pipeline struct {
	adapter     adapters.Adapter
	builder     *features.Builder
	model       models.Model
	store       storage.Store
	tariff      pricing.Tariff
	step        time.Duration
	nextDayFile string
	monthlyFile string
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// Result summarizes a successful run.
type Result struct {
	HistoryPoints  int
	SkippedRows    int
	ForecastPoints int
	Cadence        features.Cadence
	NextDay        []report.HourlyRow
	Monthly        []report.DailyPriceRow
	TotalCost      decimal.Decimal
}

// New creates a Pipeline. m may be nil.
func New(
	adapter adapters.Adapter,
	builder *features.Builder,
	model models.Model,
	store storage.Store,
	tariff pricing.Tariff,
	step time.Duration,
	nextDayFile, monthlyFile string,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		adapter:     adapter,
		builder:     builder,
		model:       model,
		store:       store,
		tariff:      tariff,
		step:        step,
		nextDayFile: nextDayFile,
		monthlyFile: monthlyFile,
		metrics:     m,
		logger:      logger,
	}
}

// NewFromConfig wires a Pipeline that reads cfg.Input and writes CSV reports
// into cfg.OutputDir.
func NewFromConfig(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*Pipeline, error) {
	adapter, err := adapters.NewFromPath(cfg.Input, adapters.Options{
		Sheet:           cfg.Sheet,
		TimestampColumn: cfg.TimestampColumn,
		ValueColumn:     cfg.DemandColumn,
	})
	if err != nil {
		return nil, fmt.Errorf("load: %w: %w", ErrInput, err)
	}

	model, err := cmdmodels.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	tariff := pricing.DefaultTariff()
	tariff.PricePerUnit = cfg.PricePerUnit

	return New(
		adapter,
		features.NewBuilder(cfg.ScalingFactor, cfg.HistoryLimit),
		model,
		storage.NewFileStore(cfg.OutputDir),
		tariff,
		cfg.Step,
		cfg.NextDayFile,
		cfg.MonthlyFile,
		m,
		logger,
	), nil
}

// Run performs the forecast. Both reports are built before either is written,
// so a failure before the write stage leaves no report behind.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	p.logger.Debug("starting forecast run")

	df, err := p.collect(ctx)
	if err != nil {
		return Result{}, p.fail("load", ErrInput, err)
	}

	frame, err := p.buildFeatures(df)
	if err != nil {
		return Result{}, p.fail("features", ErrData, err)
	}

	if err := p.train(ctx, frame); err != nil {
		return Result{}, p.fail("train", ErrData, err)
	}

	forecast, err := p.predict(ctx, frame)
	if err != nil {
		return Result{}, p.fail("predict", ErrData, err)
	}

	res := Result{
		HistoryPoints:  frame.Len(),
		SkippedRows:    df.Skipped,
		ForecastPoints: forecast.Horizon,
		Cadence:        features.CheckCadence(frame, p.step),
	}
	if c := res.Cadence; !c.Regular() {
		p.logger.Warn("history is not evenly spaced",
			"step", p.step,
			"gaps", c.Gaps,
			"missing_steps", c.Missing,
			"duplicates", c.Duplicates,
			"irregular", c.Irregular,
		)
	}
	nextDay, monthly, err := p.buildReports(forecast, &res)
	if err != nil {
		return Result{}, p.fail("report", ErrData, err)
	}

	if err := p.write(nextDay, monthly); err != nil {
		return Result{}, p.fail("write", ErrOutput, err)
	}

	if p.metrics != nil {
		p.metrics.SetHistory(res.HistoryPoints, res.SkippedRows)
		p.metrics.SetForecastPoints(res.ForecastPoints)
		p.metrics.SetPredictedCost(res.TotalCost.InexactFloat64())
		p.metrics.MarkRun(time.Now())
	}

	p.logger.Info("forecast run complete",
		"adapter", p.adapter.Name(),
		"model", p.model.Name(),
		"history_points", res.HistoryPoints,
		"forecast_points", res.ForecastPoints,
		"days", len(res.Monthly),
		"predicted_cost", res.TotalCost.String(),
		"total_ms", time.Since(start).Milliseconds(),
	)

	return res, nil
}

// fail tags err with its stage and error class and counts it.
func (p *Pipeline) fail(stage string, class, err error) error {
	if p.metrics != nil {
		p.metrics.RecordError(stage)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return fmt.Errorf("%s: %w: %w", stage, class, err)
}

func (p *Pipeline) observe(stage string, d time.Duration) {
	if p.metrics != nil {
		p.metrics.RecordStage(stage, d)
	}
}

// collect reads the raw observations from the adapter.
func (p *Pipeline) collect(ctx context.Context) (*adapters.DataFrame, error) {
	start := time.Now()

	df, err := p.adapter.Collect(ctx)
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)
	p.observe("load", duration)
	p.logger.Debug("collected observations",
		"adapter", p.adapter.Name(),
		"rows", len(df.Rows),
		"skipped", df.Skipped,
		"duration_ms", duration.Milliseconds(),
	)
	if df.Skipped > 0 {
		p.logger.Warn("skipped rows without a demand value", "rows", df.Skipped)
	}

	return df, nil
}

// buildFeatures scales, orders and truncates the observations.
func (p *Pipeline) buildFeatures(df *adapters.DataFrame) (models.FeatureFrame, error) {
	start := time.Now()

	frame, err := p.builder.BuildFeatures(*df)
	if err != nil {
		return models.FeatureFrame{}, err
	}

	p.observe("features", time.Since(start))
	p.logger.Debug("built features", "rows", frame.Len())
	return frame, nil
}

// train fits the model on the history.
func (p *Pipeline) train(ctx context.Context, frame models.FeatureFrame) error {
	start := time.Now()

	if err := p.model.Train(ctx, frame); err != nil {
		return err
	}

	duration := time.Since(start)
	p.observe("train", duration)
	p.logger.Debug("trained model",
		"model", p.model.Name(),
		"rows", frame.Len(),
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}

// predict generates the forecast using the model.
func (p *Pipeline) predict(ctx context.Context, frame models.FeatureFrame) (models.Forecast, error) {
	start := time.Now()

	forecast, err := p.model.Predict(ctx, frame)
	if err != nil {
		return models.Forecast{}, err
	}

	duration := time.Since(start)
	p.observe("predict", duration)
	p.logger.Debug("predicted forecast",
		"model", p.model.Name(),
		"points", len(forecast.Points),
		"future", forecast.Horizon,
		"duration_ms", duration.Milliseconds(),
	)
	return forecast, nil
}

// buildReports renders both report tables from the future part of the forecast.
func (p *Pipeline) buildReports(forecast models.Forecast, res *Result) (storage.Table, storage.Table, error) {
	start := time.Now()

	future := forecast.Future()
	monthly, err := report.MonthlyPrice(future, p.tariff)
	if err != nil {
		return storage.Table{}, storage.Table{}, err
	}
	res.NextDay = report.NextDay(future)
	res.Monthly = monthly
	res.TotalCost = report.TotalPrice(monthly)

	p.observe("report", time.Since(start))
	return report.NextDayTable(p.nextDayFile, res.NextDay), report.MonthlyPriceTable(p.monthlyFile, res.Monthly), nil
}

// write persists both reports.
func (p *Pipeline) write(tables ...storage.Table) error {
	start := time.Now()

	for _, t := range tables {
		if err := p.store.Put(t); err != nil {
			return err
		}
		p.logger.Debug("wrote report", "name", t.Name, "rows", len(t.Rows))
	}

	p.observe("write", time.Since(start))
	return nil
}
