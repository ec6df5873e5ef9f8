package schema

import (
	"strings"
	"time"
	"unicode"
)

// StudentImportKey is the schema key for the bundled student roster import.
const StudentImportKey = "student-import-v1"

// StudentImport defines the expected columns for a student roster upload.
// Every column is required; phone and PIN code are fixed-width digit fields
// and the date of birth must be a real ISO calendar date.
var StudentImport = Definition{
	Key:        StudentImportKey,
	Label:      "Student Import",
	TargetPath: "/api/students",
	Fields: []FieldSpec{
		{Name: "Student Name", Payload: "studentName", Kind: KindText, Required: true},
		{Name: "Parent Name", Payload: "parentName", Kind: KindText, Required: true},
		{Name: "Parent Email", Payload: "parentEmail", Kind: KindEmail, Required: true},
		{Name: "Parent Phone", Payload: "parentPhone", Kind: KindPhone, Required: true},
		{Name: "Password", Payload: "password", Kind: KindText, Required: true, MinLen: 6},
		{Name: "Date of Birth", Payload: "dateOfBirth", Kind: KindDate, Required: true},
		{Name: "Grade", Payload: "grade", Kind: KindText, Required: true},
		{Name: "Section", Payload: "section", Kind: KindText, Required: true},
		{Name: "Roll Number", Payload: "rollNumber", Kind: KindText, Required: true},
		{Name: "Complete Address", Payload: "address", Kind: KindText, Required: true},
		{Name: "City", Payload: "city", Kind: KindText, Required: true},
		{Name: "State", Payload: "state", Kind: KindText, Required: true},
		{Name: "PIN Code", Payload: "pinCode", Kind: KindDigits, Required: true, DigitCount: 6},
		{Name: "Institute Name", Payload: "instituteName", Kind: KindText, Required: true},
	},
	Derive: deriveStudentFields,
}

func init() {
	Register(StudentImport)
}

// deriveStudentFields adds the student's age, computed from the validated
// date of birth.
func deriveStudentFields(fields map[string]any) {
	dob, ok := fields["dateOfBirth"].(time.Time)
	if !ok {
		return
	}
	fields["age"] = Age(dob, time.Now())
}

// toPayloadKey converts a column header to a camelCase JSON key.
// "Student Name" -> "studentName"
func toPayloadKey(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-'
	})
	if len(words) == 0 {
		return ""
	}

	var b strings.Builder
	for i, w := range words {
		w = strings.ToLower(w)
		if i > 0 {
			w = strings.ToUpper(w[:1]) + w[1:]
		}
		b.WriteString(w)
	}
	return b.String()
}
