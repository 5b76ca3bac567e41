// Package features turns raw demand observations into the model-ready time series.
package features

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/HatiCode/loadcast/pkg/adapters"
	"github.com/HatiCode/loadcast/pkg/models"
)

// ErrEmpty is returned when a DataFrame holds no usable observations.
var ErrEmpty = errors.New("no observations")

// Builder constructs feature frames from DataFrames: it scales the demand value,
// orders rows by time, keeps the most recent Limit rows and derives calendar features.
type Builder struct {
	// Scale multiplies every raw value, e.g. MW to kVAh-equivalent.
	Scale float64
	// Limit caps the number of rows kept, most recent first. Zero keeps everything.
	Limit int
}

// NewBuilder creates a new feature builder.
func NewBuilder(scale float64, limit int) *Builder {
	return &Builder{Scale: scale, Limit: limit}
}

type observation struct {
	ts    time.Time
	value float64
}

// BuildFeatures converts a DataFrame from an adapter into a FeatureFrame for a model.
// It extracts the following features from each row:
//   - value: the metric value times Scale (required)
//   - timestamp: Unix timestamp in seconds (from the "ts" field, required)
//   - hour: hour of day (0-23) extracted from timestamp
//   - day: day of week (0-6, Sunday=0) extracted from timestamp
//
// Rows without a "value" field are skipped. Rows are sorted by timestamp with
// ties kept in source order, then truncated to the last Limit rows.
func (b *Builder) BuildFeatures(df adapters.DataFrame) (models.FeatureFrame, error) {
	if len(df.Rows) == 0 {
		return models.FeatureFrame{}, fmt.Errorf("dataframe is empty: %w", ErrEmpty)
	}

	obs := make([]observation, 0, len(df.Rows))

	for i, row := range df.Rows {
		valueRaw, hasValue := row["value"]
		if !hasValue {
			continue
		}

		value, ok := toFloat64(valueRaw)
		if !ok {
			continue
		}

		tsRaw, hasTs := row["ts"]
		if !hasTs {
			return models.FeatureFrame{}, fmt.Errorf("row %d: missing timestamp", i)
		}
		ts, err := parseTimestamp(tsRaw)
		if err != nil {
			return models.FeatureFrame{}, fmt.Errorf("row %d: %w", i, err)
		}

		obs = append(obs, observation{ts: ts, value: value * b.Scale})
	}

	if len(obs) == 0 {
		return models.FeatureFrame{}, fmt.Errorf("no valid rows with 'value' field: %w", ErrEmpty)
	}

	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].ts.Before(obs[j].ts)
	})

	if b.Limit > 0 && len(obs) > b.Limit {
		obs = obs[len(obs)-b.Limit:]
	}

	rows := make([]map[string]float64, len(obs))
	for i, o := range obs {
		rows[i] = map[string]float64{
			"value":     o.value,
			"timestamp": float64(o.ts.Unix()),
			"hour":      float64(o.ts.Hour()),
			"day":       float64(o.ts.Weekday()),
		}
	}

	return models.FeatureFrame{Rows: rows}, nil
}

// toFloat64 attempts to convert any numeric type to float64.
// Handles float64, float32, int, int64 and int32.
func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	default:
		return 0, false
	}
}

// parseTimestamp returns the row's timestamp in UTC. Adapters emit time.Time;
// any other type is an error.
func parseTimestamp(v any) (time.Time, error) {
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("unsupported timestamp type: %T", v)
	}
	return t.UTC(), nil
}
