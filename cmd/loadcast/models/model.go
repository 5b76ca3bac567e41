package models

import (
	"fmt"
	"log/slog"

	"github.com/HatiCode/loadcast/cmd/loadcast/config"
	"github.com/HatiCode/loadcast/pkg/models"
)

// Metric names the forecast series in model output.
const Metric = "load_kvah"

func New(cfg *config.Config, logger *slog.Logger) (models.Model, error) {
	stepSec := int(cfg.Step.Seconds())
	horizonSec := int(cfg.Horizon.Seconds())

	switch cfg.Model {
	case "seasonal":
		sc := models.DefaultSeasonalConfig()
		logger.Info("initializing seasonal model",
			"daily_order", sc.DailyOrder,
			"weekly_order", sc.WeeklyOrder,
			"changepoints", sc.Changepoints,
		)
		return models.NewSeasonalModel(Metric, stepSec, horizonSec, sc), nil

	case "arima":
		m := models.NewARIMAModel(Metric, stepSec, horizonSec, cfg.ARIMAP, cfg.ARIMAD, cfg.ARIMAQ)
		logger.Info("initializing ARIMA model", "order", m.Name(), "min_points", m.MinPoints())
		return m, nil

	case "baseline":
		logger.Info("initializing baseline model")
		return models.NewBaselineModel(Metric, stepSec, horizonSec), nil

	default:
		return nil, fmt.Errorf("invalid model type %q", cfg.Model)
	}
}
