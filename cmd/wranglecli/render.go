package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/ruslano69/wrangle/pkg/core/table"
)

// maxCellWidth bounds how wide a rendered column may grow.
const maxCellWidth = 48

// RenderTable prints a raster as an aligned text table with a row count
// footer.
func RenderTable(w io.Writer, r *table.Raster) {
	names := r.ColumnNames()
	if len(names) == 0 {
		fmt.Fprintf(w, "(no columns)\n")
		return
	}

	widths := make([]int, len(names))
	for i, name := range names {
		widths[i] = len(clip(name))
	}
	for _, row := range r.Rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			if n := len(clip(cell)); n > widths[i] {
				widths[i] = n
			}
		}
	}

	cells := make([]string, len(names))
	for i, name := range names {
		cells[i] = pad(clip(name), widths[i])
	}
	fmt.Fprintln(w, strings.Join(cells, " | "))

	for i, width := range widths {
		cells[i] = strings.Repeat("-", width)
	}
	fmt.Fprintln(w, strings.Join(cells, "-+-"))

	for _, row := range r.Rows {
		for i := range names {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = pad(clip(cell), widths[i])
		}
		fmt.Fprintln(w, strings.Join(cells, " | "))
	}

	fmt.Fprintf(w, "(%d rows)\n", r.NumRows())
}

func clip(s string) string {
	if len(s) <= maxCellWidth {
		return s
	}
	return s[:maxCellWidth-3] + "..."
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
