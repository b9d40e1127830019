// Tests for reflection-based header generation.

package tabular

import (
	"testing"
	"time"
)

func TestColumnsFromType(t *testing.T) {
	type submission struct {
		URI      string    `json:"URI" jsonschema:"description=Unique submission URI"`
		Status   string    `json:"Status"`
		Count    int       `json:"Count"`
		Done     bool      `json:"Done"`
		Received time.Time `json:"Received"`
	}

	columns, err := ColumnsFromType[submission]()
	if err != nil {
		t.Fatalf("ColumnsFromType failed: %v", err)
	}

	want := map[string]ColumnType{
		"URI":      ColumnTypeText,
		"Status":   ColumnTypeText,
		"Count":    ColumnTypeNumber,
		"Done":     ColumnTypeCheckbox,
		"Received": ColumnTypeDate,
	}
	if len(columns) != len(want) {
		t.Fatalf("expected %d columns, got %d: %v", len(want), len(columns), columns)
	}
	for _, col := range columns {
		if want[col.Name] != col.Type {
			t.Errorf("column %s: expected type %s, got %s", col.Name, want[col.Name], col.Type)
		}
	}
	if columns[0].Description != "Unique submission URI" {
		t.Errorf("expected description to carry over, got %q", columns[0].Description)
	}
}

func TestColumnsFromTypeRejectsNonStruct(t *testing.T) {
	if _, err := ColumnsFromType[int](); err == nil {
		t.Error("expected an error for a non-struct type")
	}
}

func TestSchemaHeaderValidate(t *testing.T) {
	cases := []struct {
		name    string
		hdr     schemaHeader
		wantErr bool
	}{
		{"valid", schemaHeader{Version: "1.0", Columns: []Column{{Name: "a", Type: ColumnTypeText}}}, false},
		{"missing version", schemaHeader{Columns: []Column{{Name: "a", Type: ColumnTypeText}}}, true},
		{"missing column name", schemaHeader{Version: "1.0", Columns: []Column{{Type: ColumnTypeText}}}, true},
		{"missing column type", schemaHeader{Version: "1.0", Columns: []Column{{Name: "a"}}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.hdr.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
