package adapters

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrInput marks failures to read the source: missing file, unreadable
	// content, missing sheet or missing required column.
	ErrInput = errors.New("input error")
	// ErrUnsupportedFormat is returned by NewFromPath for unknown file extensions.
	ErrUnsupportedFormat = errors.New("unsupported input format")
)

// Row represents a single time-series or tabular observation.
// Example: {"ts": time.Time, "value": 41234.0}
type Row map[string]any

// DataFrame is a lightweight structure for tabular data returned by adapters.
type DataFrame struct {
	Rows []Row
	// Skipped counts source rows dropped because their value cell was blank.
	Skipped int
}

// Adapter is the interface that all loadcast adapters must implement.
//
// Adapters read raw demand data from a source, shape it into a DataFrame
// and leave scaling, ordering and truncation to the features package.
//
// The Collect() call is synchronous and should respect context cancellation.
type Adapter interface {
	// Collect reads every observation from the source.
	Collect(ctx context.Context) (*DataFrame, error)

	// Name returns a short, unique identifier for the adapter.
	// Example: "xlsx", "csv".
	Name() string
}

// Options names the columns to read. Column names match case-insensitively.
type Options struct {
	// Sheet selects a worksheet; empty means the first sheet. Ignored for CSV.
	Sheet           string
	TimestampColumn string
	ValueColumn     string
}

// NewFromPath returns the adapter matching the file extension of path.
func NewFromPath(path string, opts Options) (Adapter, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		return &SpreadsheetAdapter{Path: path, Options: opts}, nil
	case ".csv":
		return &CSVAdapter{Path: path, Options: opts}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
