package table

import (
	"fmt"
	"strings"
)

// Text codec for rasters. The layout is line-oriented:
//
//	line 1: field names, escaped and pipe-joined
//	line 2: field types, pipe-joined
//	line 3: key flags ("1"/"0"), pipe-joined
//	line 4+: one data row per line, cells escaped and pipe-joined
//
// Escaping covers the separator and framing characters: \ -> \\, | -> \|,
// newline -> \n, carriage return -> \r. Everything else passes through.

// EncodeRaster serializes a raster to the text form.
func EncodeRaster(r *Raster) []byte {
	var b strings.Builder

	names := make([]string, len(r.Schema.Fields))
	types := make([]string, len(r.Schema.Fields))
	keys := make([]string, len(r.Schema.Fields))
	for i, f := range r.Schema.Fields {
		names[i] = escapeCell(f.Name)
		types[i] = f.Type
		if f.Key {
			keys[i] = "1"
		} else {
			keys[i] = "0"
		}
	}
	b.WriteString(strings.Join(names, "|"))
	b.WriteByte('\n')
	b.WriteString(strings.Join(types, "|"))
	b.WriteByte('\n')
	b.WriteString(strings.Join(keys, "|"))

	for _, row := range r.Rows {
		b.WriteByte('\n')
		for j, cell := range row {
			if j > 0 {
				b.WriteByte('|')
			}
			b.WriteString(escapeCell(cell))
		}
	}
	return []byte(b.String())
}

// DecodeRaster parses the text form back into a raster.
func DecodeRaster(data []byte) (*Raster, error) {
	lines := strings.Split(string(data), "\n")
	if len(lines) < 3 {
		return nil, fmt.Errorf("table: raster text too short: %d lines", len(lines))
	}

	names := splitCells(lines[0])
	types := splitCells(lines[1])
	keys := splitCells(lines[2])
	if len(types) != len(names) || len(keys) != len(names) {
		return nil, fmt.Errorf("table: header width mismatch: %d names, %d types, %d keys",
			len(names), len(types), len(keys))
	}

	fields := make([]Field, len(names))
	for i := range names {
		fields[i] = Field{Name: names[i], Type: types[i], Key: keys[i] == "1"}
	}

	rows := make([][]string, 0, len(lines)-3)
	for i, line := range lines[3:] {
		row := splitCells(line)
		if len(row) != len(fields) {
			return nil, fmt.Errorf("table: row %d has %d cells, want %d", i, len(row), len(fields))
		}
		rows = append(rows, row)
	}
	return NewRaster(Schema{Fields: fields}, rows), nil
}

func escapeCell(v string) string {
	if !strings.ContainsAny(v, "\\|\n\r") {
		return v
	}
	var b strings.Builder
	b.Grow(len(v) + 2)
	for _, c := range v {
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '|':
			b.WriteString(`\|`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// splitCells splits a pipe-joined line honoring the escape sequences
// produced by escapeCell.
func splitCells(line string) []string {
	values := []string{}
	var current strings.Builder
	escaped := false

	for _, c := range line {
		switch {
		case escaped:
			switch c {
			case 'n':
				current.WriteByte('\n')
			case 'r':
				current.WriteByte('\r')
			default:
				current.WriteRune(c)
			}
			escaped = false
		case c == '\\':
			escaped = true
		case c == '|':
			values = append(values, current.String())
			current.Reset()
		default:
			current.WriteRune(c)
		}
	}
	if escaped {
		current.WriteByte('\\')
	}
	return append(values, current.String())
}
