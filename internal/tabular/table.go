// Package tabular implements the named tabular store backing every
// integration: write-once schemas, positional rows, match-key upserts and
// header/value queries.
//
// Each table is a single JSONL file whose first line holds the schema
// descriptor and whose following lines hold rows. The schema is write-once
// per table name: creation sets it, and every later open binds to the
// on-disk descriptor regardless of what the caller requests. Rows are
// addressed positionally (1-based, header excluded) but carry stable IDs so
// secondary indexes survive top-insertion.
package tabular

import (
	"bufio"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/maruel/ksid"
)

// Record is a flat mapping of header name to scalar or list value, as
// produced by the record decoder and consumed by ingestion callers.
type Record = map[string]any

// Position selects where newly inserted rows are placed.
type Position string

const (
	// PositionTop inserts immediately after the schema header.
	PositionTop Position = "top"
	// PositionBottom inserts after the last existing row.
	PositionBottom Position = "bottom"
)

// Cell is a single table cell: either a literal value or a formula with its
// cached value. A cell with a formula is never overwritten by upsert.
type Cell struct {
	Value   any      `json:"value,omitempty"`
	Formula string   `json:"formula,omitempty"`
	Kind    CellKind `json:"kind,omitempty"`
}

// CellKind describes how a cell value is typed.
type CellKind string

const (
	// CellKindText holds a plain string.
	CellKindText CellKind = "text"
	// CellKindNumber holds a float64.
	CellKindNumber CellKind = "number"
	// CellKindCheckbox holds a bool.
	CellKindCheckbox CellKind = "checkbox"
	// CellKindDate holds an ISO8601 date string.
	CellKindDate CellKind = "date"
	// CellKindFormula marks a computed cell; Value carries the cached result.
	CellKindFormula CellKind = "formula"
)

// IsFormula reports whether the cell is formula-backed.
func (c *Cell) IsFormula() bool {
	return c.Formula != "" || c.Kind == CellKindFormula
}

// newCell builds a literal cell for a value, typing booleans as checkbox
// cells rather than "true"/"false" text.
func newCell(v any) Cell {
	switch t := v.(type) {
	case nil:
		return Cell{Value: "", Kind: CellKindText}
	case bool:
		return Cell{Value: t, Kind: CellKindCheckbox}
	case float64:
		return Cell{Value: t, Kind: CellKindNumber}
	case int:
		return Cell{Value: float64(t), Kind: CellKindNumber}
	case int64:
		return Cell{Value: float64(t), Kind: CellKindNumber}
	default:
		return Cell{Value: v, Kind: CellKindText}
	}
}

// Row is an ordered sequence of cells aligned 1:1 with the table headers.
// The ID is internal identity for indexes; external callers address rows by
// position.
type Row struct {
	ID    ksid.ID `json:"id"`
	Cells []Cell  `json:"cells"`
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	c := Row{ID: r.ID, Cells: make([]Cell, len(r.Cells))}
	copy(c.Cells, r.Cells)
	return c
}

// Table handles storage and in-memory caching for a single named table.
type Table struct {
	name string
	path string

	mu      sync.RWMutex
	columns []Column
	rows    []Row
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// Headers returns the ordered header names.
func (t *Table) Headers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	headers := make([]string, len(t.columns))
	for i := range t.columns {
		headers[i] = t.columns[i].Name
	}
	return headers
}

// Columns returns a copy of the table's column descriptors.
func (t *Table) Columns() []Column {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cols := make([]Column, len(t.columns))
	copy(cols, t.columns)
	return cols
}

// Len returns the number of rows, header excluded.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Row returns a clone of the row at the given 1-based position.
func (t *Table) Row(pos int) (Row, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if pos < 1 || pos > len(t.rows) {
		return Row{}, false
	}
	return t.rows[pos-1].Clone(), true
}

// All returns an iterator over clones of all rows in order.
func (t *Table) All() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		for _, row := range t.rows {
			if !yield(row.Clone()) {
				return
			}
		}
	}
}

// headerIndex returns the column position of a header name.
func (t *Table) headerIndex(header string) (int, bool) {
	for i := range t.columns {
		if t.columns[i].Name == header {
			return i, true
		}
	}
	return 0, false
}

// load reads the schema header and all rows from the file.
func (t *Table) load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("failed to open table file %s: %w", t.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	first := true
	var rows []Row
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if first {
			var hdr schemaHeader
			if err := json.Unmarshal(line, &hdr); err != nil {
				return fmt.Errorf("failed to unmarshal schema header in %s: %w", t.path, err)
			}
			if err := hdr.Validate(); err != nil {
				return fmt.Errorf("invalid schema header in %s: %w", t.path, err)
			}
			t.columns = hdr.Columns
			first = false
			continue
		}
		var row Row
		if err := json.Unmarshal(line, &row); err != nil {
			return fmt.Errorf("failed to unmarshal row in %s: %w", t.path, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read table file %s: %w", t.path, err)
	}
	if first {
		return fmt.Errorf("table file %s has no schema header", t.path)
	}

	t.rows = rows
	return nil
}

// create writes a fresh table file containing only the schema header.
func (t *Table) create(columns []Column) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	hdr := schemaHeader{Version: currentVersion, Columns: columns}
	if err := hdr.Validate(); err != nil {
		return fmt.Errorf("invalid schema for table %q: %w", t.name, err)
	}
	data, err := json.Marshal(&hdr)
	if err != nil {
		return fmt.Errorf("failed to marshal schema header: %w", err)
	}
	if err := os.WriteFile(t.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}
	t.columns = columns
	t.rows = nil
	return nil
}

// appendRows adds rows at the bottom and persists them by appending lines.
func (t *Table) appendRows(rows []Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open table file for append: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	w := bufio.NewWriter(f)
	for i := range rows {
		data, err := json.Marshal(&rows[i])
		if err != nil {
			return fmt.Errorf("failed to marshal row: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	t.rows = append(t.rows, rows...)
	return nil
}

// replace swaps the full row set and rewrites the file atomically via a
// temporary file and rename.
func (t *Table) replace(rows []Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tmp := t.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp table file: %w", err)
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}()

	w := bufio.NewWriter(f)
	hdr := schemaHeader{Version: currentVersion, Columns: t.columns}
	data, err := json.Marshal(&hdr)
	if err != nil {
		return fmt.Errorf("failed to marshal schema header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write schema header: %w", err)
	}
	if err := w.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	for i := range rows {
		data, err := json.Marshal(&rows[i])
		if err != nil {
			return fmt.Errorf("failed to marshal row: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp table file: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("failed to replace table file: %w", err)
	}

	t.rows = rows
	return nil
}

// Path returns the table's on-disk file path.
func (t *Table) Path() string {
	return t.path
}

func tablePath(dir, name string) string {
	return filepath.Join(dir, name+".jsonl")
}
