// Package report turns the future part of a forecast into the two tables
// loadcast publishes: the next day's hourly load and the predicted cost per day.
package report

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/HatiCode/loadcast/pkg/models"
	"github.com/HatiCode/loadcast/pkg/pricing"
	"github.com/HatiCode/loadcast/pkg/storage"
	"github.com/shopspring/decimal"
)

const (
	// HoursPerDay is the number of rows in the next-day report.
	HoursPerDay = 24

	hourLayout = "15:04"
	dateLayout = "2006-01-02"
)

// ErrNonFinite is returned when a forecast point to be priced is NaN or Inf.
var ErrNonFinite = errors.New("non-finite forecast value")

var (
	NextDayHeader      = []string{"hour", "predicted_kVAh"}
	MonthlyPriceHeader = []string{"date", "yhat", "predicted_price"}
)

// HourlyRow is one line of the next-day report.
type HourlyRow struct {
	Hour          string
	PredictedKVAh float64
}

// DailyPriceRow is one line of the monthly price report.
type DailyPriceRow struct {
	Date  time.Time
	Yhat  float64
	Price decimal.Decimal
}

// NextDay returns the first 24 future points as hourly rows, or all of them
// when fewer are available.
func NextDay(future []models.Point) []HourlyRow {
	n := min(HoursPerDay, len(future))
	rows := make([]HourlyRow, n)
	for i, p := range future[:n] {
		rows[i] = HourlyRow{
			Hour:          p.Timestamp.Format(hourLayout),
			PredictedKVAh: p.Value,
		}
	}
	return rows
}

// MonthlyPrice sums future points per calendar date and prices each daily
// total with the tariff. Rows are ordered by date. The first and last day may
// be partial.
func MonthlyPrice(future []models.Point, tariff pricing.Tariff) ([]DailyPriceRow, error) {
	index := make(map[time.Time]int)
	var rows []DailyPriceRow

	for _, p := range future {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return nil, fmt.Errorf("%w at %s", ErrNonFinite, p.Timestamp.Format(time.RFC3339))
		}
		day := truncateDay(p.Timestamp)
		i, ok := index[day]
		if !ok {
			i = len(rows)
			index[day] = i
			rows = append(rows, DailyPriceRow{Date: day})
		}
		rows[i].Yhat += p.Value
	}

	slices.SortStableFunc(rows, func(a, b DailyPriceRow) int {
		return a.Date.Compare(b.Date)
	})

	for i := range rows {
		rows[i].Price = tariff.Cost(rows[i].Yhat)
	}
	return rows, nil
}

// TotalPrice is the sum of the daily prices.
func TotalPrice(rows []DailyPriceRow) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Price)
	}
	return total
}

// NextDayTable renders hourly rows as a storage table.
func NextDayTable(name string, rows []HourlyRow) storage.Table {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{r.Hour, formatFloat(r.PredictedKVAh)}
	}
	return storage.Table{Name: name, Header: slices.Clone(NextDayHeader), Rows: out}
}

// MonthlyPriceTable renders daily price rows as a storage table.
func MonthlyPriceTable(name string, rows []DailyPriceRow) storage.Table {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{r.Date.Format(dateLayout), formatFloat(r.Yhat), r.Price.String()}
	}
	return storage.Table{Name: name, Header: slices.Clone(MonthlyPriceHeader), Rows: out}
}

// truncateDay returns midnight of t's calendar date in t's location.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
