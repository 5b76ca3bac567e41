package adapters

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var defaultOpts = Options{
	TimestampColumn: "datetime",
	ValueColumn:     "Southern Region Hourly Demand",
}

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	path := filepath.Join(t.TempDir(), "load.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "load.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"data/load.xlsx", "xlsx", false},
		{"data/LOAD.XLSM", "xlsx", false},
		{"data/load.csv", "csv", false},
		{"data/load.json", "", true},
		{"data/load", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ad, err := NewFromPath(tt.path, defaultOpts)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ad.Name())
		})
	}
}

func TestSpreadsheetAdapter_Collect_DateCells(t *testing.T) {
	start := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	path := writeWorkbook(t, [][]any{
		{"datetime", "Northern Region Hourly Demand", "Southern Region Hourly Demand"},
		{start, 1.0, 41000.5},
		{start.Add(time.Hour), 2.0, 40000},
		{start.Add(2 * time.Hour), 3.0, 39000},
	})

	ad := &SpreadsheetAdapter{Path: path, Options: defaultOpts}
	df, err := ad.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, df.Rows, 3)

	for i, row := range df.Rows {
		ts, ok := row["ts"].(time.Time)
		require.True(t, ok, "row %d ts is %T", i, row["ts"])
		assert.True(t, ts.Equal(start.Add(time.Duration(i)*time.Hour)), "row %d ts = %v", i, ts)
	}
	assert.Equal(t, 41000.5, df.Rows[0]["value"])
	assert.Equal(t, 39000.0, df.Rows[2]["value"])
}

func TestSpreadsheetAdapter_Collect_TextTimestamps(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"DateTime ", "southern region hourly demand"},
		{"2023-05-01 00:00:00", "100"},
		{"2023-05-01 01:00:00", "110"},
	})

	df, err := (&SpreadsheetAdapter{Path: path, Options: defaultOpts}).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, df.Rows, 2)
	assert.Equal(t, time.Date(2023, 5, 1, 1, 0, 0, 0, time.UTC), df.Rows[1]["ts"])
	assert.Equal(t, 110.0, df.Rows[1]["value"])
}

func TestSpreadsheetAdapter_Collect_SkipsBlankValues(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"datetime", "Southern Region Hourly Demand"},
		{"2023-05-01 00:00:00", "100"},
		{"2023-05-01 01:00:00", ""},
		{"2023-05-01 02:00:00", "120"},
	})

	df, err := (&SpreadsheetAdapter{Path: path, Options: defaultOpts}).Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, df.Rows, 2)
	assert.Equal(t, 1, df.Skipped)
}

func TestSpreadsheetAdapter_Collect_Errors(t *testing.T) {
	good := writeWorkbook(t, [][]any{
		{"datetime", "Southern Region Hourly Demand"},
		{"2023-05-01 00:00:00", "100"},
	})
	noColumn := writeWorkbook(t, [][]any{
		{"datetime", "Eastern Region Hourly Demand"},
		{"2023-05-01 00:00:00", "100"},
	})
	badValue := writeWorkbook(t, [][]any{
		{"datetime", "Southern Region Hourly Demand"},
		{"2023-05-01 00:00:00", "lots"},
	})

	tests := []struct {
		name    string
		adapter *SpreadsheetAdapter
		wantMsg string
	}{
		{
			name:    "missing file",
			adapter: &SpreadsheetAdapter{Path: filepath.Join(t.TempDir(), "nope.xlsx"), Options: defaultOpts},
			wantMsg: "open",
		},
		{
			name:    "missing sheet",
			adapter: &SpreadsheetAdapter{Path: good, Options: Options{Sheet: "Data", TimestampColumn: "datetime", ValueColumn: "Southern Region Hourly Demand"}},
			wantMsg: `sheet "Data" not found`,
		},
		{
			name:    "missing column",
			adapter: &SpreadsheetAdapter{Path: noColumn, Options: defaultOpts},
			wantMsg: "missing required column",
		},
		{
			name:    "bad value",
			adapter: &SpreadsheetAdapter{Path: badValue, Options: defaultOpts},
			wantMsg: "line 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.adapter.Collect(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInput)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestCSVAdapter_Collect(t *testing.T) {
	path := writeCSV(t, "datetime,Southern Region Hourly Demand\n"+
		"2023-05-01 00:00:00,100\n"+
		"2023-05-01T01:00:00Z,110.5\n"+
		",\n"+
		"2023-05-01 02:00,120\n")

	df, err := (&CSVAdapter{Path: path, Options: defaultOpts}).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, df.Rows, 3)
	assert.Equal(t, time.Date(2023, 5, 1, 2, 0, 0, 0, time.UTC), df.Rows[2]["ts"])
	assert.Equal(t, 110.5, df.Rows[1]["value"])
}

func TestCSVAdapter_Collect_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"empty file", "", "no header row"},
		{"missing timestamp column", "time,Southern Region Hourly Demand\n2023-05-01,1\n", `missing required column "datetime"`},
		{"bad timestamp", "datetime,Southern Region Hourly Demand\nnot-a-date,1\n", "line 2"},
		{"empty timestamp", "datetime,Southern Region Hourly Demand\n2023-05-01,1\n,2\n", "line 3: empty timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&CSVAdapter{Path: writeCSV(t, tt.content), Options: defaultOpts}).Collect(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInput)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestCSVAdapter_Collect_MissingFile(t *testing.T) {
	_, err := (&CSVAdapter{Path: filepath.Join(t.TempDir(), "missing.csv"), Options: defaultOpts}).Collect(context.Background())
	assert.ErrorIs(t, err, ErrInput)
}

func TestCollect_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&CSVAdapter{Path: "x.csv", Options: defaultOpts}).Collect(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = (&SpreadsheetAdapter{Path: "x.xlsx", Options: defaultOpts}).Collect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseCellTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2023-05-01T13:00:00Z", time.Date(2023, 5, 1, 13, 0, 0, 0, time.UTC)},
		{"2023-05-01 13:00:00", time.Date(2023, 5, 1, 13, 0, 0, 0, time.UTC)},
		{"2023-05-01 13:00", time.Date(2023, 5, 1, 13, 0, 0, 0, time.UTC)},
		{"05/01/2023 13:00", time.Date(2023, 5, 1, 13, 0, 0, 0, time.UTC)},
		{"2023-05-01", time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"45047", time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"45047.5", time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseCellTime(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "parseCellTime(%q) = %v, want %v", tt.in, got, tt.want)
		})
	}

	_, err := parseCellTime("someday")
	assert.Error(t, err)
}
