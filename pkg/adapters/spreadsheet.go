// Package adapters provides loadcast data source connectors that read historical
// demand observations and normalize them into a common DataFrame structure.
//
// Each adapter implements the Adapter interface. Available adapters:
//   - SpreadsheetAdapter: reads an .xlsx/.xlsm worksheet
//   - CSVAdapter: reads a comma-separated file
//
// Adapters only pull raw data. Scaling, ordering and truncation are left to
// the features package.
package adapters

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// SpreadsheetAdapter reads observations from an Excel workbook. Cells are read
// raw, so date cells arrive as Excel serial numbers and are converted here.
type SpreadsheetAdapter struct {
	Path string
	Options
}

func (s *SpreadsheetAdapter) Name() string { return "xlsx" }

// Collect implements Adapter.
func (s *SpreadsheetAdapter) Collect(ctx context.Context) (*DataFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrInput, s.Path, err)
	}
	defer f.Close()

	sheet := s.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: %s has no worksheets", ErrInput, s.Path)
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx == -1 {
		return nil, fmt.Errorf("%w: %s: sheet %q not found", ErrInput, s.Path, sheet)
	}

	records, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read %s sheet %q: %v", ErrInput, s.Path, sheet, err)
	}

	return parseTable(s.Path, records, s.Options)
}
