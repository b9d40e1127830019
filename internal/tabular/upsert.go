// Implements match-key upserts and unconditional appends.

package tabular

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maruel/ksid"
)

// Upsert inserts or updates rows in the table, keyed by matchColumns.
//
// Records are processed in input order. A record matches the first existing
// row whose cells at every match column are exactly equal to the record's
// values at those keys. On a match, every header the record defines with a
// non-nil value is overwritten unless the existing cell is formula-backed;
// formula cells keep their expression and cached value. Without a match a
// new row is inserted at position, with "" for headers the record does not
// define and checkbox-typed cells for booleans.
//
// The returned slice holds one merged record per input record, reflecting
// whichever value is now authoritative per header. A mid-batch persistence
// error aborts the remaining records; rows already written are kept.
func (s *Store) Upsert(ctx context.Context, t *Table, records []Record, matchColumns []string, position Position) ([]Record, error) {
	if err := validatePosition(position); err != nil {
		return nil, err
	}
	if len(matchColumns) == 0 {
		return nil, schemaErrorf(t.name, "at least one match column is required")
	}

	t.mu.RLock()
	columns := make([]Column, len(t.columns))
	copy(columns, t.columns)
	rows := make([]Row, len(t.rows))
	for i := range t.rows {
		rows[i] = t.rows[i].Clone()
	}
	t.mu.RUnlock()

	matchIdx := make([]int, len(matchColumns))
	for i, mc := range matchColumns {
		found := false
		for j := range columns {
			if columns[j].Name == mc {
				matchIdx[i] = j
				found = true
				break
			}
		}
		if !found {
			return nil, schemaErrorf(t.name, "unknown match column %q", mc)
		}
	}

	// At least one record must define at least one match column, else the
	// whole batch would blindly insert. Checked before any write.
	defined := false
	for _, rec := range records {
		for _, mc := range matchColumns {
			if v, ok := rec[mc]; ok && v != nil {
				defined = true
				break
			}
		}
		if defined {
			break
		}
	}
	if !defined {
		return nil, schemaErrorf(t.name, "no record defines any of the match columns %v", matchColumns)
	}

	// First-match-wins index over the current rows. Keys map to stable row
	// IDs so top-insertion does not invalidate positions. Rows inserted by
	// earlier records in this batch are added to the index, so a duplicate
	// key later in the batch merges into them (last value wins).
	index := make(map[string]ksid.ID, len(rows))
	for i := range rows {
		key, err := rowMatchKey(&rows[i], matchIdx)
		if err != nil {
			return nil, err
		}
		if _, ok := index[key]; !ok {
			index[key] = rows[i].ID
		}
	}

	posByID := func(id ksid.ID) int {
		for i := range rows {
			if rows[i].ID == id {
				return i
			}
		}
		return -1
	}

	merged := make([]Record, 0, len(records))
	updated, inserted := 0, 0
	for _, rec := range records {
		tuple := make([]any, len(matchColumns))
		for i, mc := range matchColumns {
			tuple[i] = rec[mc]
		}
		key, err := matchKey(tuple)
		if err != nil {
			return merged, fmt.Errorf("failed to encode match key: %w", err)
		}

		if id, ok := index[key]; ok {
			i := posByID(id)
			row := &rows[i]
			for j := range columns {
				v, defined := rec[columns[j].Name]
				if !defined || v == nil {
					continue
				}
				if row.Cells[j].IsFormula() {
					continue
				}
				row.Cells[j] = newCell(v)
			}
			merged = append(merged, rowRecord(row, columns))
			updated++
		} else {
			row := Row{ID: ksid.NewID(), Cells: make([]Cell, len(columns))}
			for j := range columns {
				v, defined := rec[columns[j].Name]
				if !defined || v == nil {
					row.Cells[j] = newCell("")
					continue
				}
				row.Cells[j] = newCell(v)
			}
			if position == PositionTop {
				rows = append([]Row{row}, rows...)
			} else {
				rows = append(rows, row)
			}
			index[key] = row.ID
			merged = append(merged, rowRecord(&row, columns))
			inserted++
		}

		// Persist after every record: a failure aborts the remainder of the
		// batch but keeps rows already written. The working set is cloned so
		// later iterations never mutate the table's cache in place.
		persist := make([]Row, len(rows))
		for i := range rows {
			persist[i] = rows[i].Clone()
		}
		if err := t.replace(persist); err != nil {
			return merged, err
		}
	}

	slog.InfoContext(ctx, "Upserted records", "table", t.name, "updated", updated, "inserted", inserted)
	s.recordWrite(ctx, t, fmt.Sprintf("upsert %s: %d updated, %d inserted", t.name, updated, inserted))
	return merged, nil
}

// UpsertInto is Upsert keyed by table name, creating the table lazily with
// headers derived from the records in first-seen order.
func (s *Store) UpsertInto(ctx context.Context, name string, records []Record, matchColumns []string, position Position) ([]Record, error) {
	t, err := s.EnsureTable(name, recordHeaders(records))
	if err != nil {
		return nil, err
	}
	return s.Upsert(ctx, t, records, matchColumns, position)
}

// Append inserts every record as a new row at position. No matching and no
// formula protection is involved since all rows are new.
func (s *Store) Append(ctx context.Context, t *Table, records []Record, position Position) error {
	if err := validatePosition(position); err != nil {
		return err
	}

	t.mu.RLock()
	columns := make([]Column, len(t.columns))
	copy(columns, t.columns)
	t.mu.RUnlock()

	fresh := make([]Row, 0, len(records))
	for _, rec := range records {
		row := Row{ID: ksid.NewID(), Cells: make([]Cell, len(columns))}
		for j := range columns {
			v, defined := rec[columns[j].Name]
			if !defined || v == nil {
				row.Cells[j] = newCell("")
				continue
			}
			row.Cells[j] = newCell(v)
		}
		fresh = append(fresh, row)
	}

	var err error
	if position == PositionTop {
		t.mu.RLock()
		rows := make([]Row, 0, len(fresh)+len(t.rows))
		rows = append(rows, fresh...)
		for i := range t.rows {
			rows = append(rows, t.rows[i].Clone())
		}
		t.mu.RUnlock()
		err = t.replace(rows)
	} else {
		err = t.appendRows(fresh)
	}
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Appended records", "table", t.name, "count", len(fresh))
	s.recordWrite(ctx, t, fmt.Sprintf("append %s: %d rows", t.name, len(fresh)))
	return nil
}

// AppendTo is Append keyed by table name, creating the table lazily with
// headers derived from the records in first-seen order.
func (s *Store) AppendTo(ctx context.Context, name string, records []Record, position Position) error {
	t, err := s.EnsureTable(name, recordHeaders(records))
	if err != nil {
		return err
	}
	return s.Append(ctx, t, records, position)
}

// rowMatchKey encodes the row's values at the given column positions.
func rowMatchKey(row *Row, matchIdx []int) (string, error) {
	tuple := make([]any, len(matchIdx))
	for i, j := range matchIdx {
		tuple[i] = row.Cells[j].Value
	}
	key, err := matchKey(tuple)
	if err != nil {
		return "", fmt.Errorf("failed to encode row match key: %w", err)
	}
	return key, nil
}

// rowRecord flattens a row into a header-keyed record. Formula cells
// contribute their cached value.
func rowRecord(row *Row, columns []Column) Record {
	rec := make(Record, len(columns))
	for j := range columns {
		rec[columns[j].Name] = row.Cells[j].Value
	}
	return rec
}

// recordHeaders collects header names from records in first-seen order.
func recordHeaders(records []Record) []string {
	var headers []string
	seen := make(map[string]bool)
	for _, rec := range records {
		for _, k := range sortedKeys(rec) {
			if !seen[k] {
				seen[k] = true
				headers = append(headers, k)
			}
		}
	}
	return headers
}

func validatePosition(position Position) error {
	switch position {
	case PositionTop, PositionBottom:
		return nil
	default:
		return &SchemaError{Reason: fmt.Sprintf("invalid position %q", position)}
	}
}
