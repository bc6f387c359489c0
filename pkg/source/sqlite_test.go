package source

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/ruslano69/wrangle/pkg/core/table"
)

func newTestWorkspace(t *testing.T, rows int) *Workspace {
	t.Helper()

	w, err := NewWorkspace()
	if err != nil {
		t.Fatalf("NewWorkspace failed: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	schema := table.Schema{Fields: []table.Field{
		{Name: "id", Type: table.TypeInteger, Key: true},
		{Name: "name", Type: table.TypeText},
		{Name: "age", Type: table.TypeInteger},
	}}
	raster := table.NewRaster(schema, nil)
	for i := 1; i <= rows; i++ {
		raster.Rows = append(raster.Rows, []string{
			strconv.Itoa(i), "person" + strconv.Itoa(i), strconv.Itoa(20 + i),
		})
	}

	if err := w.LoadRaster(context.Background(), "people", raster); err != nil {
		t.Fatalf("LoadRaster failed: %v", err)
	}
	return w
}

func TestWorkspaceLoadAndQuery(t *testing.T) {
	w := newTestWorkspace(t, 10)

	s := w.Query("SELECT name, age FROM people ORDER BY id")
	ds, err := s.FullData(context.Background())
	if err != nil {
		t.Fatalf("FullData failed: %v", err)
	}
	raster, err := ds.Raster(context.Background())
	if err != nil {
		t.Fatalf("Raster failed: %v", err)
	}

	if raster.NumRows() != 10 {
		t.Fatalf("Expected 10 rows, got %d", raster.NumRows())
	}
	cols := raster.ColumnNames()
	if len(cols) != 2 || cols[0] != "name" || cols[1] != "age" {
		t.Errorf("Expected columns [name age], got %v", cols)
	}
	if raster.Rows[0][0] != "person1" || raster.Rows[0][1] != "21" {
		t.Errorf("Unexpected first row: %v", raster.Rows[0])
	}
}

func TestQueryStepExampleLimitsInput(t *testing.T) {
	w := newTestWorkspace(t, 50)

	s := w.Query("SELECT id FROM people ORDER BY id")
	ds, err := s.ExampleData(context.Background(), 3, 500)
	if err != nil {
		t.Fatalf("ExampleData failed: %v", err)
	}
	raster, err := ds.Raster(context.Background())
	if err != nil {
		t.Fatalf("Raster failed: %v", err)
	}
	if raster.NumRows() != 3 {
		t.Errorf("Expected 3 rows under input budget, got %d", raster.NumRows())
	}
}

func TestQueryStepExampleCapsOutput(t *testing.T) {
	w := newTestWorkspace(t, 50)

	s := w.Query("SELECT id FROM people ORDER BY id")
	ds, err := s.ExampleData(context.Background(), 500, 2)
	if err != nil {
		t.Fatalf("ExampleData failed: %v", err)
	}
	raster, err := ds.Raster(context.Background())
	if err != nil {
		t.Fatalf("Raster failed: %v", err)
	}
	if raster.NumRows() != 2 {
		t.Errorf("Expected 2 rows under output cap, got %d", raster.NumRows())
	}
}

func TestQueryDatasetColumns(t *testing.T) {
	w := newTestWorkspace(t, 5)

	s := w.Query("SELECT name, age FROM people")
	ds, err := s.FullData(context.Background())
	if err != nil {
		t.Fatalf("FullData failed: %v", err)
	}
	cols, err := ds.Columns(context.Background())
	if err != nil {
		t.Fatalf("Columns failed: %v", err)
	}
	if len(cols) != 2 || cols[0] != "name" || cols[1] != "age" {
		t.Errorf("Expected columns [name age], got %v", cols)
	}
}

func TestQueryDatasetFilterDuringScan(t *testing.T) {
	w := newTestWorkspace(t, 10)

	s := w.Query("SELECT id, age FROM people ORDER BY id")
	ds, err := s.FullData(context.Background())
	if err != nil {
		t.Fatalf("FullData failed: %v", err)
	}

	filtered := ds.Filter(func(row []string) (bool, error) {
		age, err := strconv.Atoi(row[1])
		if err != nil {
			return false, err
		}
		return age > 25, nil
	})

	raster, err := filtered.Raster(context.Background())
	if err != nil {
		t.Fatalf("Raster failed: %v", err)
	}
	// Ages run 21..30, so 26..30 pass.
	if raster.NumRows() != 5 {
		t.Errorf("Expected 5 filtered rows, got %d", raster.NumRows())
	}

	// The original dataset is unchanged.
	full, err := ds.Raster(context.Background())
	if err != nil {
		t.Fatalf("Raster failed: %v", err)
	}
	if full.NumRows() != 10 {
		t.Errorf("Expected 10 rows on unfiltered dataset, got %d", full.NumRows())
	}
}

func TestQueryDatasetFilterError(t *testing.T) {
	w := newTestWorkspace(t, 5)

	boom := errors.New("bad predicate")
	ds, err := w.Query("SELECT id FROM people").FullData(context.Background())
	if err != nil {
		t.Fatalf("FullData failed: %v", err)
	}
	_, err = ds.Filter(func([]string) (bool, error) { return false, boom }).Raster(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Expected predicate error, got %v", err)
	}
}

func TestQueryDatasetCancelledContext(t *testing.T) {
	w := newTestWorkspace(t, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ds, err := w.Query("SELECT id FROM people").FullData(context.Background())
	if err != nil {
		t.Fatalf("FullData failed: %v", err)
	}
	if _, err := ds.Raster(ctx); err == nil {
		t.Error("Expected error from cancelled context")
	}
}

func TestQueryReportsColumnTypes(t *testing.T) {
	w := newTestWorkspace(t, 1)

	ds, err := w.Query("SELECT id, name FROM people").FullData(context.Background())
	if err != nil {
		t.Fatalf("FullData failed: %v", err)
	}
	raster, err := ds.Raster(context.Background())
	if err != nil {
		t.Fatalf("Raster failed: %v", err)
	}
	if raster.Schema.Fields[0].Type != table.TypeInteger {
		t.Errorf("Expected integer id column, got %s", raster.Schema.Fields[0].Type)
	}
	if raster.Schema.Fields[1].Type != table.TypeText {
		t.Errorf("Expected text name column, got %s", raster.Schema.Fields[1].Type)
	}
}

func TestLoadRasterNullableCells(t *testing.T) {
	w, err := NewWorkspace()
	if err != nil {
		t.Fatalf("NewWorkspace failed: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	schema := table.Schema{Fields: []table.Field{
		{Name: "id", Type: table.TypeInteger},
		{Name: "score", Type: table.TypeReal},
	}}
	raster := table.NewRaster(schema, [][]string{
		{"1", "2.5"},
		{"2", ""},
	})
	if err := w.LoadRaster(context.Background(), "scores", raster); err != nil {
		t.Fatalf("LoadRaster failed: %v", err)
	}

	ds, err := w.Query("SELECT id, score FROM scores ORDER BY id").FullData(context.Background())
	if err != nil {
		t.Fatalf("FullData failed: %v", err)
	}
	out, err := ds.Raster(context.Background())
	if err != nil {
		t.Fatalf("Raster failed: %v", err)
	}
	if out.Rows[0][1] != "2.5" {
		t.Errorf("Expected 2.5, got %q", out.Rows[0][1])
	}
	if out.Rows[1][1] != "" {
		t.Errorf("Expected empty cell for NULL, got %q", out.Rows[1][1])
	}
}

func TestLimitQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		limit    int
		expected string
	}{
		{
			name:     "plain select",
			query:    "SELECT * FROM people",
			limit:    5,
			expected: "SELECT * FROM people LIMIT 5",
		},
		{
			name:     "trailing semicolon",
			query:    "SELECT * FROM people;",
			limit:    5,
			expected: "SELECT * FROM people LIMIT 5",
		},
		{
			name:     "surrounding whitespace",
			query:    "  SELECT * FROM people  ",
			limit:    10,
			expected: "SELECT * FROM people LIMIT 10",
		},
		{
			name:     "existing limit is wrapped",
			query:    "SELECT * FROM people LIMIT 100",
			limit:    5,
			expected: "SELECT * FROM (SELECT * FROM people LIMIT 100) LIMIT 5",
		},
		{
			name:     "negative limit clamps to zero",
			query:    "SELECT * FROM people",
			limit:    -1,
			expected: "SELECT * FROM people LIMIT 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := limitQuery(tt.query, tt.limit)
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestQueryStepIdentity(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "data.db")

	w, err := OpenWorkspace(dsn)
	if err != nil {
		t.Fatalf("OpenWorkspace failed: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	// File-backed workspaces derive a stable ID from DSN and query.
	a := w.Query("SELECT 1")
	b := w.Query("SELECT 1")
	if a.ID() != b.ID() {
		t.Errorf("Expected stable ID for same query, got %s and %s", a.ID(), b.ID())
	}
	if a.ID() == w.Query("SELECT 2").ID() {
		t.Error("Expected different queries to get different IDs")
	}

	// In-memory workspaces are not addressable, so IDs stay random.
	mem := newTestWorkspace(t, 1)
	if mem.Query("SELECT 1").ID() == mem.Query("SELECT 1").ID() {
		t.Error("Expected random IDs for in-memory workspace queries")
	}
}

func TestQueryInvalidSQL(t *testing.T) {
	w := newTestWorkspace(t, 1)

	ds, err := w.Query("SELECT nope FROM missing").FullData(context.Background())
	if err != nil {
		t.Fatalf("FullData failed: %v", err)
	}
	if _, err := ds.Raster(context.Background()); err == nil {
		t.Error("Expected error for invalid SQL")
	}
}
