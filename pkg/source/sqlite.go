package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/ruslano69/wrangle/pkg/core/table"
	"github.com/ruslano69/wrangle/pkg/step"
)

// Workspace is a local SQLite database that rasters can be loaded into and
// queried back out of. Steps minted by Query share the workspace connection;
// Close invalidates them.
type Workspace struct {
	db  *sql.DB
	dsn string
}

// NewWorkspace opens an in-memory SQLite workspace.
func NewWorkspace() (*Workspace, error) {
	return OpenWorkspace(":memory:")
}

// OpenWorkspace opens a SQLite workspace at the given DSN. Use ":memory:"
// for a throwaway database.
func OpenWorkspace(dsn string) (*Workspace, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("source: open sqlite workspace: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("source: ping sqlite workspace: %w", err)
	}
	return &Workspace{db: db, dsn: dsn}, nil
}

// Close closes the underlying database.
func (w *Workspace) Close() error {
	return w.db.Close()
}

// DB exposes the underlying handle for ad-hoc statements.
func (w *Workspace) DB() *sql.DB {
	return w.db
}

// CreateTable creates a table matching the schema. Key fields form the
// primary key when present.
func (w *Workspace) CreateTable(ctx context.Context, name string, schema table.Schema) error {
	if len(schema.Fields) == 0 {
		return fmt.Errorf("source: create table %s: schema has no fields", name)
	}

	var cols []string
	var keys []string
	for _, f := range schema.Fields {
		cols = append(cols, fmt.Sprintf("%s %s", f.Name, sqliteType(f.Type)))
		if f.Key {
			keys = append(keys, f.Name)
		}
	}
	if len(keys) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(keys, ", ")))
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", name, strings.Join(cols, ", "))
	if _, err := w.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("source: create table %s: %w", name, err)
	}
	return nil
}

// LoadRaster creates the table if needed and inserts every row inside a
// single transaction.
func (w *Workspace) LoadRaster(ctx context.Context, name string, r *table.Raster) error {
	if err := w.CreateTable(ctx, name, r.Schema); err != nil {
		return err
	}

	placeholders := make([]string, len(r.Schema.Fields))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		name, strings.Join(r.Schema.ColumnNames(), ", "), strings.Join(placeholders, ", "))

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("source: begin load %s: %w", name, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("source: prepare load %s: %w", name, err)
	}
	defer stmt.Close()

	for i, row := range r.Rows {
		args := make([]interface{}, len(row))
		for j, cell := range row {
			args[j] = bindValue(cell, r.Schema.Fields[j].Type)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("source: load %s row %d: %w", name, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("source: commit load %s: %w", name, err)
	}
	return nil
}

// Query mints a step that runs the given SQL against the workspace.
// File-backed workspaces derive a stable step identity from the DSN and
// query text; in-memory workspaces get a random one, their data is not
// addressable across processes.
func (w *Workspace) Query(query string) *QueryStep {
	s := NewQueryStep(w.db, query)
	if w.dsn != "" && w.dsn != ":memory:" {
		s.id = step.DeriveID("sqlite", w.dsn, query)
	}
	return s
}

// QueryStep executes a SQL query. Example mode caps the scanned input by
// injecting a LIMIT clause, so the database never materializes more rows
// than the budget allows.
type QueryStep struct {
	id    step.ID
	db    *sql.DB
	query string
}

// NewQueryStep builds a step over an existing database handle. The handle
// stays owned by the caller.
func NewQueryStep(db *sql.DB, query string) *QueryStep {
	return &QueryStep{id: step.NewID(), db: db, query: query}
}

// ID implements step.Step.
func (s *QueryStep) ID() step.ID {
	return s.id
}

// FullData implements step.Step.
func (s *QueryStep) FullData(ctx context.Context) (table.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &queryDataset{db: s.db, query: s.query, limit: -1}, nil
}

// ExampleData implements step.Step.
func (s *QueryStep) ExampleData(ctx context.Context, maxInputRows, maxOutputRows int) (table.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &queryDataset{
		db:    s.db,
		query: limitQuery(s.query, maxInputRows),
		limit: maxOutputRows,
	}, nil
}

// limitQuery bounds the number of rows a query may return. Queries that
// already carry a LIMIT are wrapped in a subselect so the smaller bound
// always wins.
func limitQuery(query string, limit int) string {
	if limit < 0 {
		limit = 0
	}
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
	if strings.Contains(strings.ToLower(trimmed), "limit ") {
		return fmt.Sprintf("SELECT * FROM (%s) LIMIT %d", trimmed, limit)
	}
	return fmt.Sprintf("%s LIMIT %d", trimmed, limit)
}

// queryDataset defers execution until the raster is actually needed, so a
// cancelled calculation never touches the database. Filters are applied
// while scanning rather than after materializing.
type queryDataset struct {
	db    *sql.DB
	query string
	preds []table.RowPredicate
	limit int // output cap, -1 for none
}

// Columns implements table.Dataset.
func (d *queryDataset) Columns(ctx context.Context) ([]string, error) {
	probe := fmt.Sprintf("SELECT * FROM (%s) LIMIT 0",
		strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(d.query), ";")))
	rows, err := d.db.QueryContext(ctx, probe)
	if err != nil {
		return nil, fmt.Errorf("source: probe columns: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("source: read columns: %w", err)
	}
	return cols, rows.Err()
}

// Filter implements table.Dataset.
func (d *queryDataset) Filter(pred table.RowPredicate) table.Dataset {
	clone := &queryDataset{
		db:    d.db,
		query: d.query,
		preds: make([]table.RowPredicate, 0, len(d.preds)+1),
		limit: d.limit,
	}
	clone.preds = append(clone.preds, d.preds...)
	clone.preds = append(clone.preds, pred)
	return clone
}

// Raster implements table.Dataset.
func (d *queryDataset) Raster(ctx context.Context) (*table.Raster, error) {
	rows, err := d.db.QueryContext(ctx, d.query)
	if err != nil {
		return nil, fmt.Errorf("source: execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("source: read columns: %w", err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("source: read column types: %w", err)
	}

	schema := table.Schema{Fields: make([]table.Field, len(cols))}
	for i, col := range cols {
		schema.Fields[i] = table.Field{Name: col, Type: columnType(types[i])}
	}

	raster := table.NewRaster(schema, nil)
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	n := 0
scan:
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("source: scan row %d: %w", n, err)
		}

		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		n++

		for _, pred := range d.preds {
			ok, err := pred(row)
			if err != nil {
				return nil, fmt.Errorf("source: filter row %d: %w", n-1, err)
			}
			if !ok {
				continue scan
			}
		}

		raster.Rows = append(raster.Rows, row)
		if d.limit >= 0 && len(raster.Rows) >= d.limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("source: iterate rows: %w", err)
	}
	return raster, nil
}

// sqliteType maps a field type to its SQLite column type.
func sqliteType(t string) string {
	switch t {
	case table.TypeInteger:
		return "INTEGER"
	case table.TypeReal:
		return "REAL"
	case table.TypeBoolean:
		return "INTEGER"
	case table.TypeDatetime:
		return "TEXT"
	default:
		return "TEXT"
	}
}

// columnType maps a driver-reported column type back to a field type.
func columnType(ct *sql.ColumnType) string {
	return table.NormalizeType(ct.DatabaseTypeName())
}

// bindValue converts a cell to a driver value. Empty cells on non-text
// columns become NULL so numeric columns stay clean.
func bindValue(cell string, t string) interface{} {
	if cell == "" && t != table.TypeText {
		return nil
	}
	return cell
}

// formatValue renders a scanned value as a cell.
func formatValue(v interface{}) string {
	if v == nil {
		return ""
	}
	switch val := v.(type) {
	case []byte:
		return string(val)
	case string:
		return val
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		return fmt.Sprintf("%g", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}
