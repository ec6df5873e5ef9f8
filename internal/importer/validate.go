package importer

// validate.go type-checks and business-rule-checks one RawRow against a
// schema definition.
//
// Validation is a pure function of its inputs: the same row and definition
// always yield the same result, and rows can be validated concurrently.
// Every violated rule is reported; a row with a short phone AND a missing
// city yields two errors, not one.

import (
	"fmt"
	"strings"

	"rosterimport/internal/schema"
)

// Validator applies a schema definition to raw rows.
type Validator struct {
	def schema.Definition
}

// NewValidator creates a validator for the given definition.
func NewValidator(def schema.Definition) *Validator {
	return &Validator{def: def}
}

// ValidateRow checks one row against every field rule. On success it returns
// the normalized record with derived fields applied; otherwise it returns
// the complete list of violations for the row.
func (v *Validator) ValidateRow(row RawRow) (NormalizedRecord, []ValidationError) {
	var errs []ValidationError
	fields := make(map[string]any, len(v.def.Fields))

	for _, spec := range v.def.Fields {
		raw, present := row.Fields[strings.ToLower(spec.Name)]

		if !present || raw == "" {
			if spec.Required {
				errs = append(errs, ValidationError{
					Row:     row.Number,
					Field:   spec.Name,
					Message: "required field is missing",
				})
			}
			continue
		}

		value, err := checkField(raw, spec)
		if err != nil {
			errs = append(errs, ValidationError{
				Row:     row.Number,
				Field:   spec.Name,
				Message: err.Error(),
			})
			continue
		}

		fields[spec.Payload] = value
	}

	if len(errs) > 0 {
		return NormalizedRecord{}, errs
	}

	// Derived fields only exist for fully valid rows; a bad date of birth
	// produces no age and no extra error for it.
	if v.def.Derive != nil {
		v.def.Derive(fields)
	}

	return NormalizedRecord{Row: row.Number, Fields: fields}, nil
}

// checkField validates and normalizes a single non-empty value.
func checkField(raw string, spec schema.FieldSpec) (any, error) {
	switch spec.Kind {
	case schema.KindText:
		if spec.MinLen > 0 && len(raw) < spec.MinLen {
			return nil, fmt.Errorf("must be at least %d characters", spec.MinLen)
		}
		return raw, nil

	case schema.KindEmail:
		if !validEmail(raw) {
			return nil, fmt.Errorf("invalid email address %q", raw)
		}
		return strings.ToLower(raw), nil

	case schema.KindPhone:
		digits := normalizePhone(raw)
		if !allDigits(digits) || len(digits) != 10 {
			return nil, fmt.Errorf("must be exactly 10 digits, got %q", raw)
		}
		return digits, nil

	case schema.KindDate:
		t, ok := parseISODate(raw)
		if !ok {
			return nil, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", raw)
		}
		return t, nil

	case schema.KindDigits:
		if !allDigits(raw) || len(raw) != spec.DigitCount {
			return nil, fmt.Errorf("must be exactly %d digits, got %q", spec.DigitCount, raw)
		}
		return raw, nil

	case schema.KindEnum:
		for _, ev := range spec.EnumValues {
			if strings.EqualFold(ev, raw) {
				return ev, nil
			}
		}
		return nil, fmt.Errorf("must be one of: %s", strings.Join(spec.EnumValues, ", "))

	default:
		return raw, nil
	}
}

// checkBatchUnique enforces schema-level uniqueness rules across one batch of
// validated records. The first occurrence of a value wins; later duplicates
// are rejected with a validation error naming the earlier row. Records are
// expected in row order.
func checkBatchUnique(def schema.Definition, records []NormalizedRecord) (kept []NormalizedRecord, rejected map[int][]ValidationError) {
	specs := def.UniqueFields()
	if len(specs) == 0 {
		return records, nil
	}

	rejected = make(map[int][]ValidationError)
	seen := make(map[string]map[string]int, len(specs)) // field -> value -> first row

	for _, spec := range specs {
		seen[spec.Payload] = make(map[string]int)
	}

	for _, rec := range records {
		var errs []ValidationError
		for _, spec := range specs {
			val, ok := rec.Fields[spec.Payload].(string)
			if !ok || val == "" {
				continue
			}
			if first, dup := seen[spec.Payload][val]; dup {
				errs = append(errs, ValidationError{
					Row:     rec.Row,
					Field:   spec.Name,
					Message: fmt.Sprintf("duplicate value %q (first seen at row %d)", val, first),
				})
			} else {
				seen[spec.Payload][val] = rec.Row
			}
		}

		if len(errs) > 0 {
			rejected[rec.Row] = errs
		} else {
			kept = append(kept, rec)
		}
	}

	if len(rejected) == 0 {
		return records, nil
	}
	return kept, rejected
}
