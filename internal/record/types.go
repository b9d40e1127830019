// Defines the external tagged document types consumed by the decoder.

package record

import "time"

// PropertyType is the closed set of property tags the decoder understands.
// Adding a tag requires a new decode case; there is no silent coercion.
type PropertyType string

const (
	// TypeTitle is a title made of text runs.
	TypeTitle PropertyType = "title"
	// TypeRichText is formatted text made of text runs.
	TypeRichText PropertyType = "rich_text"
	// TypeNumber is a numeric value.
	TypeNumber PropertyType = "number"
	// TypeSelect is a single selection.
	TypeSelect PropertyType = "select"
	// TypeMultiSelect is a set of selections.
	TypeMultiSelect PropertyType = "multi_select"
	// TypeDate is a date or date range.
	TypeDate PropertyType = "date"
	// TypeCheckbox is a boolean.
	TypeCheckbox PropertyType = "checkbox"
	// TypeStatus is a workflow status.
	TypeStatus PropertyType = "status"
	// TypeUniqueID is an auto-incremented identifier.
	TypeUniqueID PropertyType = "unique_id"
	// TypeFormula is a computed value.
	TypeFormula PropertyType = "formula"
	// TypeRollup aggregates values across a relation.
	TypeRollup PropertyType = "rollup"
	// TypeRelation references records in another database.
	TypeRelation PropertyType = "relation"
	// TypeURL is a literal URL string.
	TypeURL PropertyType = "url"
	// TypePeople is a list of users.
	TypePeople PropertyType = "people"
	// TypeCreatedTime is the record creation timestamp.
	TypeCreatedTime PropertyType = "created_time"
	// TypeLastEditedTime is the record last-edit timestamp.
	TypeLastEditedTime PropertyType = "last_edited_time"
)

// Document is an external record: a set of tagged properties keyed by name.
type Document struct {
	ID         string              `json:"id"`
	Properties map[string]Property `json:"properties"`
}

// Property is a single tagged property value. Only the field matching Type
// is populated.
type Property struct {
	ID   string       `json:"id"`
	Type PropertyType `json:"type"`

	Title          []TextRun       `json:"title,omitempty"`
	RichText       []TextRun       `json:"rich_text,omitempty"`
	Number         *float64        `json:"number,omitempty"`
	Select         *Option         `json:"select,omitempty"`
	MultiSelect    []Option        `json:"multi_select,omitempty"`
	Date           *DateValue      `json:"date,omitempty"`
	Checkbox       *bool           `json:"checkbox,omitempty"`
	Status         *Option         `json:"status,omitempty"`
	UniqueID       *UniqueIDValue  `json:"unique_id,omitempty"`
	Formula        *FormulaValue   `json:"formula,omitempty"`
	Rollup         *RollupValue    `json:"rollup,omitempty"`
	Relation       []RelationValue `json:"relation,omitempty"`
	URL            *string         `json:"url,omitempty"`
	People         []Person        `json:"people,omitempty"`
	CreatedTime    *time.Time      `json:"created_time,omitempty"`
	LastEditedTime *time.Time      `json:"last_edited_time,omitempty"`
}

// TextRun is one run of text content.
type TextRun struct {
	Type      string  `json:"type,omitempty"`
	PlainText string  `json:"plain_text"`
	Href      *string `json:"href,omitempty"`
}

// Option is a select, multi_select or status option.
type Option struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// DateValue is a date property value. End and TimeZone describe ranges and
// are dropped during decode.
type DateValue struct {
	Start    string  `json:"start"`
	End      *string `json:"end,omitempty"`
	TimeZone *string `json:"time_zone,omitempty"`
}

// FormulaValue is a computed formula result.
type FormulaValue struct {
	Type    string     `json:"type"` // "string", "number", "boolean", "date"
	String  *string    `json:"string,omitempty"`
	Number  *float64   `json:"number,omitempty"`
	Boolean *bool      `json:"boolean,omitempty"`
	Date    *DateValue `json:"date,omitempty"`
}

// RollupValue is an aggregated rollup result.
type RollupValue struct {
	Type     string     `json:"type"` // "number", "date", "array", "unsupported", "incomplete"
	Number   *float64   `json:"number,omitempty"`
	Date     *DateValue `json:"date,omitempty"`
	Array    []Property `json:"array,omitempty"`
	Function string     `json:"function,omitempty"`
}

// RelationValue references a single target record.
type RelationValue struct {
	ID string `json:"id"`
}

// Person is a user reference.
type Person struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// UniqueIDValue is an auto-incremented identifier with an optional prefix.
type UniqueIDValue struct {
	Prefix *string `json:"prefix,omitempty"`
	Number float64 `json:"number"`
}
