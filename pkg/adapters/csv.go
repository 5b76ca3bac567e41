package adapters

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
)

// CSVAdapter reads observations from a comma-separated file with a header row.
type CSVAdapter struct {
	Path string
	Options
}

func (c *CSVAdapter) Name() string { return "csv" }

// Collect implements Adapter.
func (c *CSVAdapter) Collect(ctx context.Context) (*DataFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInput, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// rows may omit trailing optional columns
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInput, c.Path, err)
	}

	return parseTable(c.Path, records, c.Options)
}
