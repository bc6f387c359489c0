// Package export writes calculated rasters to external file formats.
package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ruslano69/wrangle/pkg/core/table"
)

// ToXLSX writes a raster to an Excel file with formatted headers.
// Headers show field names with types (e.g., "customer_name (text)").
// Key fields are marked with *.
//
// Example:
//
//	err := export.ToXLSX(raster, "output.xlsx", "Orders")
func ToXLSX(r *table.Raster, filePath string, sheetName string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheetName == "" {
		sheetName = "Sheet1"
	}

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("export: create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for col, field := range r.Schema.Fields {
		cell := columnName(col+1) + "1"
		header := fmt.Sprintf("%s (%s)", field.Name, field.Type)
		if field.Key {
			header += " *"
		}
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	styles := newCellStyles(f)
	for rowIdx, row := range r.Rows {
		for col, field := range r.Schema.Fields {
			if col >= len(row) {
				continue
			}
			cell := columnName(col+1) + strconv.Itoa(rowIdx+2)
			f.SetCellValue(sheetName, cell, cellValue(row[col], field.Type))
			if styleID, ok := styles[field.Type]; ok {
				f.SetCellStyle(sheetName, cell, cell, styleID)
			}
		}
	}

	for col := range r.Schema.Fields {
		colName := columnName(col + 1)
		f.SetColWidth(sheetName, colName, colName, 15)
	}

	return f.SaveAs(filePath)
}

// FromXLSX reads an Excel file produced by ToXLSX back into a raster.
// Expects headers in format "field_name (type)" or "field_name (type) *"
// for keys. A header-only sheet yields an empty raster.
func FromXLSX(filePath string, sheetName string) (*table.Raster, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("export: open file: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("export: read rows: %w", err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("export: sheet %s has no header row", sheetName)
	}

	fields := make([]table.Field, 0, len(rows[0]))
	for _, header := range rows[0] {
		name, fieldType, isKey := parseHeader(header)
		fields = append(fields, table.Field{Name: name, Type: fieldType, Key: isKey})
	}

	raster := table.NewRaster(table.Schema{Fields: fields}, nil)
	for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
		dataRow := rows[rowIdx]
		values := make([]string, len(fields))
		for col, field := range fields {
			if col >= len(dataRow) {
				values[col] = ""
				continue
			}
			values[col] = convertFromExcel(dataRow[col], field.Type)
		}
		raster.Rows = append(raster.Rows, values)
	}

	return raster, nil
}

// parseHeader splits "field_name (type)" or "field_name (type) *" into its
// parts. Headers without a type annotation come back as text.
func parseHeader(header string) (name string, fieldType string, isKey bool) {
	name = header
	fieldType = table.TypeText

	if strings.HasSuffix(header, " *") {
		isKey = true
		header = strings.TrimSuffix(header, " *")
	}

	if idx := strings.LastIndex(header, "("); idx > 0 {
		if endIdx := strings.LastIndex(header, ")"); endIdx > idx {
			name = strings.TrimSpace(header[:idx])
			fieldType = table.NormalizeType(strings.TrimSpace(header[idx+1 : endIdx]))
		}
	}

	return name, fieldType, isKey
}

// cellValue converts a raster cell to the native value excelize should
// store. Cells that do not parse as their declared type are written as
// plain strings.
func cellValue(cell string, fieldType string) any {
	if cell == "" {
		return ""
	}

	switch fieldType {
	case table.TypeInteger:
		if v, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return v
		}
	case table.TypeReal:
		if v, err := strconv.ParseFloat(cell, 64); err == nil {
			return v
		}
	case table.TypeBoolean:
		if isTruthy(cell) {
			return "TRUE"
		}
		return "FALSE"
	case table.TypeDatetime:
		if v, err := time.Parse(time.RFC3339, cell); err == nil {
			return v
		}
	}
	return cell
}

// convertFromExcel maps an Excel display value back to the raster cell
// representation. Booleans normalize to 1/0.
func convertFromExcel(value string, fieldType string) string {
	if value == "" {
		return ""
	}
	if fieldType == table.TypeBoolean {
		if value == "TRUE" || value == "true" {
			return "1"
		}
		return "0"
	}
	return value
}

func isTruthy(cell string) bool {
	switch strings.ToLower(cell) {
	case "1", "true", "t", "yes":
		return true
	}
	return false
}

// newCellStyles registers a number format per column type and returns the
// style IDs keyed by type.
func newCellStyles(f *excelize.File) map[string]int {
	styles := make(map[string]int)
	formats := map[string]int{
		table.TypeInteger:  1,  // 0
		table.TypeReal:     2,  // 0.00
		table.TypeDatetime: 22, // m/d/yy h:mm
		table.TypeText:     49, // @
	}
	for fieldType, numFmt := range formats {
		if styleID, err := f.NewStyle(&excelize.Style{NumFmt: numFmt}); err == nil {
			styles[fieldType] = styleID
		}
	}
	return styles
}

// columnName converts a column index to an Excel column name (1 → A, 27 → AA).
func columnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}
