package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/ruslano69/wrangle/pkg/core/table"
)

// ToCSV writes a raster as CSV with a header row of plain column names.
func ToCSV(r *table.Raster, w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(r.ColumnNames()); err != nil {
		return fmt.Errorf("export: write csv header: %w", err)
	}
	for i, row := range r.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: write csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flush csv: %w", err)
	}
	return nil
}

// ToCSVFile writes a raster as a CSV file.
func ToCSVFile(r *table.Raster, filePath string) error {
	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("export: create csv file: %w", err)
	}

	if err := ToCSV(r, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
