// Package record converts nested, tag-typed external documents into flat
// header-keyed records.
//
// Decoding is partial-failure tolerant: one malformed or unsupported
// property never aborts extraction of the others. Unsupported tags yield a
// literal diagnostic string instead of an error so the surrounding record
// still lands in the store.
package record

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Diagnostic values returned in place of a decoded value.
const (
	// UnsupportedProperty is returned for tags outside the closed set.
	UnsupportedProperty = "Unsupported property type"
	// UnsupportedFormula is returned for formula results of unknown inner type.
	UnsupportedFormula = "Unsupported formula type"
	// UnsupportedRollup is returned for rollup results of unknown inner type.
	UnsupportedRollup = "Unsupported rollup type"
)

// Decoder converts tagged documents into flat records.
type Decoder struct {
	// Relations optionally resolves relation properties through paginated
	// fetches. When nil, relation properties decode to the inline target ids.
	Relations RelationResolver
}

// Decode extracts the requested property names from the document. A name
// absent from the document yields a nil entry. Every present property is
// dispatched on its tag; unsupported tags yield a diagnostic string.
func (d *Decoder) Decode(doc *Document, names []string) map[string]any {
	out := make(map[string]any, len(names))
	for _, name := range names {
		p, ok := doc.Properties[name]
		if !ok {
			out[name] = nil
			continue
		}
		out[name] = decodeProperty(&p)
	}
	return out
}

// DecodeAll extracts every property present in the document. Relation
// properties are resolved through the configured [RelationResolver] when one
// is set, accumulating all pages; otherwise the inline target ids are used.
func (d *Decoder) DecodeAll(ctx context.Context, doc *Document) map[string]any {
	out := make(map[string]any, len(doc.Properties))
	for name := range doc.Properties {
		p := doc.Properties[name]
		if p.Type == TypeRelation && d.Relations != nil {
			out[name] = d.ResolveRelation(ctx, doc.ID, p.ID)
			continue
		}
		out[name] = decodeProperty(&p)
	}
	return out
}

// decodeProperty dispatches on the property tag. The switch is exhaustive
// over [PropertyType]; anything else is the diagnostic sentinel.
func decodeProperty(p *Property) any {
	switch p.Type {
	case TypeTitle:
		return textRunsToPlain(p.Title)
	case TypeRichText:
		return textRunsToPlain(p.RichText)
	case TypeNumber:
		if p.Number != nil {
			return *p.Number
		}
		return nil
	case TypeSelect:
		if p.Select != nil {
			return p.Select.Name
		}
		return nil
	case TypeMultiSelect:
		names := make([]string, 0, len(p.MultiSelect))
		for _, opt := range p.MultiSelect {
			names = append(names, opt.Name)
		}
		return strings.Join(names, ", ")
	case TypeDate:
		// The end of a range and the time zone are dropped.
		if p.Date != nil {
			return p.Date.Start
		}
		return nil
	case TypeCheckbox:
		if p.Checkbox != nil {
			return *p.Checkbox
		}
		return false
	case TypeStatus:
		if p.Status != nil {
			return p.Status.Name
		}
		return nil
	case TypeUniqueID:
		if p.UniqueID != nil {
			return p.UniqueID.Number
		}
		return nil
	case TypeFormula:
		return decodeFormula(p.Formula)
	case TypeRollup:
		return decodeRollup(p.Rollup)
	case TypeRelation:
		ids := make([]string, 0, len(p.Relation))
		for _, rel := range p.Relation {
			ids = append(ids, rel.ID)
		}
		return ids
	case TypeURL:
		if p.URL != nil {
			return *p.URL
		}
		return nil
	case TypePeople:
		names := make([]string, 0, len(p.People))
		for _, person := range p.People {
			if person.Name != "" {
				names = append(names, person.Name)
			} else {
				names = append(names, person.ID)
			}
		}
		return strings.Join(names, ", ")
	case TypeCreatedTime:
		if p.CreatedTime != nil {
			return p.CreatedTime.Format(time.RFC3339)
		}
		return nil
	case TypeLastEditedTime:
		if p.LastEditedTime != nil {
			return p.LastEditedTime.Format(time.RFC3339)
		}
		return nil
	}
	return UnsupportedProperty
}

// decodeFormula extracts the computed value of a formula result.
func decodeFormula(f *FormulaValue) any {
	if f == nil {
		return UnsupportedFormula
	}
	switch f.Type {
	case "string":
		if f.String != nil {
			return *f.String
		}
		return nil
	case "number":
		if f.Number != nil {
			return *f.Number
		}
		return nil
	case "boolean":
		if f.Boolean != nil {
			return *f.Boolean
		}
		return nil
	case "date":
		if f.Date != nil {
			return f.Date.Start
		}
		return nil
	}
	return UnsupportedFormula
}

// decodeRollup joins the values of an array rollup. Only the reduced tag set
// (title, rich_text, number, date, checkbox) contributes; other item types
// are skipped.
func decodeRollup(r *RollupValue) any {
	if r == nil || r.Type != "array" {
		return UnsupportedRollup
	}
	parts := make([]string, 0, len(r.Array))
	for i := range r.Array {
		if s, ok := rollupItemString(&r.Array[i]); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// rollupItemString renders one rollup array item as text.
func rollupItemString(p *Property) (string, bool) {
	switch p.Type {
	case TypeTitle:
		return textRunsToPlain(p.Title), true
	case TypeRichText:
		return textRunsToPlain(p.RichText), true
	case TypeNumber:
		if p.Number != nil {
			return strconv.FormatFloat(*p.Number, 'g', -1, 64), true
		}
		return "", false
	case TypeDate:
		if p.Date != nil {
			return p.Date.Start, true
		}
		return "", false
	case TypeCheckbox:
		if p.Checkbox != nil {
			return strconv.FormatBool(*p.Checkbox), true
		}
		return "false", true
	default:
		return "", false
	}
}

// textRunsToPlain concatenates the plain text of all runs.
func textRunsToPlain(runs []TextRun) string {
	parts := make([]string, 0, len(runs))
	for i := range runs {
		parts = append(parts, runs[i].PlainText)
	}
	return strings.Join(parts, "")
}
