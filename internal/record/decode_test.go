// Tests for the property decoder dispatch table.

package record

import (
	"context"
	"testing"
	"time"
)

func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }
func boolp(v bool) *bool     { return &v }

func TestDecodeDispatch(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	cases := []struct {
		name string
		prop Property
		want any
	}{
		{"title", Property{Type: TypeTitle, Title: []TextRun{{PlainText: "Hello "}, {PlainText: "World"}}}, "Hello World"},
		{"rich_text", Property{Type: TypeRichText, RichText: []TextRun{{PlainText: "a"}, {PlainText: "b"}}}, "ab"},
		{"number", Property{Type: TypeNumber, Number: f64(12.5)}, 12.5},
		{"number null", Property{Type: TypeNumber}, nil},
		{"select", Property{Type: TypeSelect, Select: &Option{Name: "Open"}}, "Open"},
		{"select null", Property{Type: TypeSelect}, nil},
		{"multi_select", Property{Type: TypeMultiSelect, MultiSelect: []Option{{Name: "a"}, {Name: "b"}}}, "a, b"},
		{"date", Property{Type: TypeDate, Date: &DateValue{Start: "2026-03-14", End: str("2026-03-15")}}, "2026-03-14"},
		{"date null", Property{Type: TypeDate}, nil},
		{"checkbox", Property{Type: TypeCheckbox, Checkbox: boolp(true)}, true},
		{"checkbox absent", Property{Type: TypeCheckbox}, false},
		{"status", Property{Type: TypeStatus, Status: &Option{Name: "In progress"}}, "In progress"},
		{"unique_id", Property{Type: TypeUniqueID, UniqueID: &UniqueIDValue{Number: 42}}, 42.0},
		{"formula string", Property{Type: TypeFormula, Formula: &FormulaValue{Type: "string", String: str("ok")}}, "ok"},
		{"formula number", Property{Type: TypeFormula, Formula: &FormulaValue{Type: "number", Number: f64(3)}}, 3.0},
		{"formula boolean", Property{Type: TypeFormula, Formula: &FormulaValue{Type: "boolean", Boolean: boolp(false)}}, false},
		{"formula date", Property{Type: TypeFormula, Formula: &FormulaValue{Type: "date", Date: &DateValue{Start: "2026-01-02"}}}, "2026-01-02"},
		{"formula unsupported", Property{Type: TypeFormula, Formula: &FormulaValue{Type: "unknown"}}, UnsupportedFormula},
		{"rollup non-array", Property{Type: TypeRollup, Rollup: &RollupValue{Type: "number", Number: f64(9)}}, UnsupportedRollup},
		{"url", Property{Type: TypeURL, URL: str("https://example.com/x")}, "https://example.com/x"},
		{"people named", Property{Type: TypePeople, People: []Person{{ID: "p1", Name: "Ada"}, {ID: "p2"}}}, "Ada, p2"},
		{"created_time", Property{Type: TypeCreatedTime, CreatedTime: &created}, "2026-03-14T09:26:53Z"},
		{"last_edited_time", Property{Type: TypeLastEditedTime, LastEditedTime: &created}, "2026-03-14T09:26:53Z"},
		{"unrecognized tag", Property{Type: "files"}, UnsupportedProperty},
	}

	d := &Decoder{}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := &Document{ID: "doc-1", Properties: map[string]Property{"P": tc.prop}}
			got := d.Decode(doc, []string{"P"})["P"]
			if got != tc.want {
				t.Errorf("decode %s: expected %v (%T), got %v (%T)", tc.prop.Type, tc.want, tc.want, got, got)
			}
		})
	}
}

func TestDecodeRelationInline(t *testing.T) {
	d := &Decoder{}
	doc := &Document{ID: "doc-1", Properties: map[string]Property{
		"Linked": {Type: TypeRelation, Relation: []RelationValue{{ID: "r1"}, {ID: "r2"}}},
	}}
	got, ok := d.Decode(doc, []string{"Linked"})["Linked"].([]string)
	if !ok {
		t.Fatalf("expected []string, got %T", d.Decode(doc, []string{"Linked"})["Linked"])
	}
	if len(got) != 2 || got[0] != "r1" || got[1] != "r2" {
		t.Errorf("unexpected relation ids: %v", got)
	}
}

func TestDecodeRollupArray(t *testing.T) {
	prop := Property{Type: TypeRollup, Rollup: &RollupValue{
		Type: "array",
		Array: []Property{
			{Type: TypeTitle, Title: []TextRun{{PlainText: "First"}}},
			{Type: TypeNumber, Number: f64(2)},
			{Type: TypeCheckbox, Checkbox: boolp(true)},
			{Type: TypeDate, Date: &DateValue{Start: "2026-02-01"}},
			// Unsupported item types are skipped, not fatal.
			{Type: TypeURL, URL: str("https://example.com")},
		},
	}}
	d := &Decoder{}
	doc := &Document{ID: "d", Properties: map[string]Property{"R": prop}}
	got := d.Decode(doc, []string{"R"})["R"]
	if got != "First, 2, true, 2026-02-01" {
		t.Errorf("unexpected rollup join: %v", got)
	}
}

func TestDecodePartialFailureTolerance(t *testing.T) {
	d := &Decoder{}
	doc := &Document{ID: "doc-1", Properties: map[string]Property{
		"Good": {Type: TypeTitle, Title: []TextRun{{PlainText: "ok"}}},
		"Bad":  {Type: "bogus"},
	}}
	out := d.Decode(doc, []string{"Good", "Bad", "Missing"})
	if out["Good"] != "ok" {
		t.Errorf("expected good property to decode, got %v", out["Good"])
	}
	if out["Bad"] != UnsupportedProperty {
		t.Errorf("expected diagnostic for bad property, got %v", out["Bad"])
	}
	if v, present := out["Missing"]; !present || v != nil {
		t.Errorf("expected nil entry for missing name, got %v (present=%v)", v, present)
	}
}

func TestDecodeAll(t *testing.T) {
	d := &Decoder{}
	doc := &Document{ID: "doc-1", Properties: map[string]Property{
		"Name":   {Type: TypeTitle, Title: []TextRun{{PlainText: "n"}}},
		"Count":  {Type: TypeNumber, Number: f64(5)},
		"Linked": {Type: TypeRelation, Relation: []RelationValue{{ID: "r1"}}},
	}}
	out := d.DecodeAll(context.Background(), doc)
	if len(out) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(out))
	}
	if out["Name"] != "n" || out["Count"] != 5.0 {
		t.Errorf("unexpected decode: %v", out)
	}
	// Without a resolver, relations decode to the inline ids.
	if ids, ok := out["Linked"].([]string); !ok || len(ids) != 1 || ids[0] != "r1" {
		t.Errorf("unexpected relation decode: %v", out["Linked"])
	}
}
