package table

import "strings"

// Normalized column types. Sources may report richer driver-specific type
// names; NormalizeType folds them onto this set before comparisons.
const (
	TypeInteger  = "integer"
	TypeReal     = "real"
	TypeText     = "text"
	TypeBoolean  = "boolean"
	TypeDatetime = "datetime"
)

// Field describes one column of a raster.
type Field struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Key  bool   `yaml:"key,omitempty"`
}

// Schema describes the column structure of a raster.
type Schema struct {
	Fields []Field `yaml:"fields"`
}

// NewSchema builds a text-typed schema from column names.
func NewSchema(names ...string) Schema {
	fields := make([]Field, len(names))
	for i, name := range names {
		fields[i] = Field{Name: name, Type: TypeText}
	}
	return Schema{Fields: fields}
}

// ColumnNames returns the field names in declaration order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// ColumnIndex returns the position of the named field, or -1.
func (s Schema) ColumnIndex(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// SchemaEqual reports whether two schemas are structurally identical:
// same number of fields, same names and types in the same order.
func SchemaEqual(a, b Schema) bool {
	if len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i].Name != b.Fields[i].Name || a.Fields[i].Type != b.Fields[i].Type {
			return false
		}
	}
	return true
}

// NormalizeType maps a driver-reported type name to one of the Type*
// constants. Matching is case-insensitive; unknown types normalize to text.
func NormalizeType(t string) string {
	switch strings.ToLower(t) {
	case "integer", "int", "int2", "int4", "int8", "bigint", "smallint", "serial":
		return TypeInteger
	case "real", "float", "float4", "float8", "double", "numeric", "decimal", "money":
		return TypeReal
	case "boolean", "bool", "bit":
		return TypeBoolean
	case "datetime", "date", "time", "timestamp", "timestamptz":
		return TypeDatetime
	default:
		return TypeText
	}
}

// Raster is a fully materialized table: a schema plus rows of cell values.
// Cells are stored as strings; typed interpretation happens at comparison
// and export time based on the field type.
type Raster struct {
	Schema Schema
	Rows   [][]string
}

// NewRaster builds a raster over the given schema and rows. Rows are held
// by reference, not copied.
func NewRaster(schema Schema, rows [][]string) *Raster {
	return &Raster{Schema: schema, Rows: rows}
}

// NumRows returns the number of data rows.
func (r *Raster) NumRows() int {
	return len(r.Rows)
}

// NumColumns returns the number of columns.
func (r *Raster) NumColumns() int {
	return len(r.Schema.Fields)
}

// ColumnNames returns the column names in order.
func (r *Raster) ColumnNames() []string {
	return r.Schema.ColumnNames()
}
