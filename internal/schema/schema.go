// Package schema declares the expected columns and validation rules for each
// import kind. Definitions are registered once at startup and looked up by key
// when an upload arrives.
package schema

import "time"

// FieldKind represents the expected data type for an uploaded column.
type FieldKind int

const (
	KindText FieldKind = iota
	KindEmail
	KindPhone
	KindDate
	KindDigits
	KindEnum
)

// String returns a human-readable name for the kind, used in error messages.
func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindEmail:
		return "email"
	case KindPhone:
		return "phone"
	case KindDate:
		return "date"
	case KindDigits:
		return "digits"
	case KindEnum:
		return "enum"
	default:
		return "value"
	}
}

// FieldSpec defines validation rules for a single column.
type FieldSpec struct {
	Name       string    // Column header name (must match the uploaded file)
	Payload    string    // JSON key in the downstream request body (derived from Name if empty)
	Kind       FieldKind // Expected data type
	Required   bool      // Row is rejected when the value is missing or empty
	MinLen     int       // Minimum length for KindText values (0 = no minimum)
	DigitCount int       // Exact digit count for KindDigits (phone is fixed at 10)
	EnumValues []string  // Valid values for KindEnum, canonical casing
	Unique     bool      // Value must be unique across the batch
}

// Definition contains everything needed to validate and commit one import kind.
type Definition struct {
	Key        string // Unique identifier: "student-import-v1"
	Label      string // Display name: "Student Import"
	TargetPath string // Downstream creation endpoint path: "/api/students"
	Fields     []FieldSpec

	// Derive computes additional payload fields from a fully validated row.
	// It is only invoked for rows with zero validation errors.
	Derive func(fields map[string]any)
}

// Columns returns the header column names in declaration order.
func (d Definition) Columns() []string {
	cols := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		cols[i] = f.Name
	}
	return cols
}

// RequiredColumns returns the names of all required columns.
func (d Definition) RequiredColumns() []string {
	var cols []string
	for _, f := range d.Fields {
		if f.Required {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// UniqueFields returns the specs that carry a batch-level uniqueness rule.
func (d Definition) UniqueFields() []FieldSpec {
	var specs []FieldSpec
	for _, f := range d.Fields {
		if f.Unique {
			specs = append(specs, f)
		}
	}
	return specs
}

// Age returns the number of whole years between dob and now.
func Age(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
