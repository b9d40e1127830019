// Implements header/value row queries.

package tabular

import (
	"encoding/json"
	"fmt"
)

// ReturnType selects the shape of query results.
type ReturnType string

const (
	// ReturnRows yields 1-based row positions, header excluded.
	ReturnRows ReturnType = "rows"
	// ReturnData yields one header-keyed record per matching row.
	ReturnData ReturnType = "data"
)

// Condition combines multiple predicates.
type Condition string

const (
	// ConditionAll requires every predicate to hold (AND).
	ConditionAll Condition = "all"
	// ConditionAny requires at least one predicate to hold (OR).
	ConditionAny Condition = "any"
)

// Predicate matches a row when its cell at Header equals any of Values.
// A boolean false value additionally matches an empty-string cell.
type Predicate struct {
	Header string
	Values []any
}

// FormulaCell is the Data-mode representation of a formula-backed cell.
type FormulaCell struct {
	Value   any    `json:"value"`
	Formula string `json:"formula"`
}

// QueryResult holds the result of a find call. Positions is populated for
// ReturnRows, Data for ReturnData.
type QueryResult struct {
	Positions []int
	Data      []Record
}

// messageColumn is parsed as structured data in Data-mode results, falling
// back to the raw string when it does not parse.
const messageColumn = "Message"

// FindByHeaderValue finds rows whose cell at header equals any of values.
func (t *Table) FindByHeaderValue(header string, values []any, returnType ReturnType) (*QueryResult, error) {
	return t.FindByMultipleHeaderValues([]Predicate{{Header: header, Values: values}}, ConditionAll, returnType)
}

// FindByMultipleHeaderValues finds rows matching the predicates, combined
// per condition. Invalid arguments fail before any row is read.
func (t *Table) FindByMultipleHeaderValues(predicates []Predicate, condition Condition, returnType ReturnType) (*QueryResult, error) {
	switch returnType {
	case ReturnRows, ReturnData:
	default:
		return nil, &SchemaError{Table: t.name, Reason: fmt.Sprintf("invalid return type %q", returnType)}
	}
	switch condition {
	case ConditionAll, ConditionAny:
	default:
		return nil, &SchemaError{Table: t.name, Reason: fmt.Sprintf("invalid condition %q", condition)}
	}
	if len(predicates) == 0 {
		return nil, &SchemaError{Table: t.name, Reason: "at least one predicate is required"}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	colIdx := make([]int, len(predicates))
	for i, p := range predicates {
		found := false
		for j := range t.columns {
			if t.columns[j].Name == p.Header {
				colIdx[i] = j
				found = true
				break
			}
		}
		if !found {
			return nil, schemaErrorf(t.name, "unknown header %q", p.Header)
		}
	}

	result := &QueryResult{}
	for i := range t.rows {
		row := &t.rows[i]
		matched := condition == ConditionAll
		for p := range predicates {
			ok := cellMatchesAny(&row.Cells[colIdx[p]], predicates[p].Values)
			if condition == ConditionAll && !ok {
				matched = false
				break
			}
			if condition == ConditionAny && ok {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if returnType == ReturnRows {
			result.Positions = append(result.Positions, i+1)
		} else {
			result.Data = append(result.Data, t.decodeRow(row))
		}
	}
	return result, nil
}

// cellMatchesAny tests the cell against each query value (OR semantics),
// applying the empty-is-false convention.
func cellMatchesAny(c *Cell, values []any) bool {
	for _, v := range values {
		if valueEqual(c.Value, v) {
			return true
		}
		// A false query value also matches an empty cell.
		if b, isBool := v.(bool); isBool && !b && valueEqual(c.Value, "") {
			return true
		}
	}
	return false
}

// decodeRow flattens a row into a record. Formula cells are returned as
// {value, formula} pairs, and the Message column is parsed as JSON with a
// raw-string fallback. Caller holds at least a read lock.
func (t *Table) decodeRow(row *Row) Record {
	rec := make(Record, len(t.columns))
	for j := range t.columns {
		c := &row.Cells[j]
		var v any
		switch {
		case c.IsFormula():
			v = FormulaCell{Value: c.Value, Formula: c.Formula}
		case t.columns[j].Name == messageColumn:
			v = parseMessage(c.Value)
		default:
			v = c.Value
		}
		rec[t.columns[j].Name] = v
	}
	return rec
}

// parseMessage attempts to parse a textual cell as structured data.
func parseMessage(v any) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return v
	}
	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return s
	}
	return parsed
}
