package adapters

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// timestampLayouts are tried in order for text timestamp cells.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"02-01-2006 15:04",
	"2006-01-02",
}

// parseTable turns header + records into a DataFrame. line numbers in errors are
// 1-based and count the header row.
func parseTable(source string, records [][]string, opts Options) (*DataFrame, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s has no header row", ErrInput, source)
	}

	tsIdx, valIdx := -1, -1
	for i, h := range records[0] {
		name := strings.ToLower(strings.TrimSpace(h))
		switch name {
		case strings.ToLower(strings.TrimSpace(opts.TimestampColumn)):
			if tsIdx == -1 {
				tsIdx = i
			}
		case strings.ToLower(strings.TrimSpace(opts.ValueColumn)):
			if valIdx == -1 {
				valIdx = i
			}
		}
	}
	if tsIdx == -1 {
		return nil, fmt.Errorf("%w: %s: missing required column %q", ErrInput, source, opts.TimestampColumn)
	}
	if valIdx == -1 {
		return nil, fmt.Errorf("%w: %s: missing required column %q", ErrInput, source, opts.ValueColumn)
	}

	df := &DataFrame{Rows: make([]Row, 0, len(records)-1)}

	for i, record := range records[1:] {
		line := i + 2
		if blankRecord(record) {
			continue
		}

		valCell := cell(record, valIdx)
		if valCell == "" {
			df.Skipped++
			continue
		}

		tsCell := cell(record, tsIdx)
		if tsCell == "" {
			return nil, fmt.Errorf("%w: %s line %d: empty timestamp", ErrInput, source, line)
		}

		ts, err := parseCellTime(tsCell)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrInput, source, line, err)
		}

		value, err := strconv.ParseFloat(valCell, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: invalid value format: %s", ErrInput, source, line, valCell)
		}

		df.Rows = append(df.Rows, Row{"ts": ts, "value": value})
	}

	return df, nil
}

// parseCellTime accepts Excel serial dates and the text layouts above.
// Text timestamps without an offset are read as UTC.
func parseCellTime(s string) (time.Time, error) {
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid excel date %s: %w", s, err)
		}
		return t.UTC().Round(time.Second), nil
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp format: %s", s)
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func blankRecord(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
