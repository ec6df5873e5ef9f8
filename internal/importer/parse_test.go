package importer

import (
	"errors"
	"strings"
	"testing"

	"rosterimport/internal/schema"
)

func testDef() schema.Definition {
	return schema.Definition{
		Key:        "contact-test",
		TargetPath: "/api/contacts",
		Fields: []schema.FieldSpec{
			{Name: "Name", Payload: "name", Kind: schema.KindText, Required: true},
			{Name: "Email", Payload: "email", Kind: schema.KindEmail, Required: true},
			{Name: "Phone", Payload: "phone", Kind: schema.KindPhone, Required: true},
			{Name: "City", Payload: "city", Kind: schema.KindText, Required: true},
		},
	}
}

func TestParseSimpleFile(t *testing.T) {
	input := "Name,Email,Phone,City\n" +
		"Asha,asha@example.com,9876543210,Pune\n" +
		"Ravi,ravi@example.com,9876543211,Delhi\n"

	header, rows, err := Parse(strings.NewReader(input), "text/csv", testDef())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(header) != 4 {
		t.Errorf("header length = %d, want 4", len(header))
	}
	if len(rows) != 2 {
		t.Fatalf("row count = %d, want 2", len(rows))
	}
	if rows[0].Number != 1 || rows[1].Number != 2 {
		t.Errorf("row numbers = %d, %d, want 1, 2", rows[0].Number, rows[1].Number)
	}
	if rows[0].Fields["name"] != "Asha" {
		t.Errorf("Fields[name] = %q, want %q", rows[0].Fields["name"], "Asha")
	}
	if rows[1].Fields["city"] != "Delhi" {
		t.Errorf("Fields[city] = %q, want %q", rows[1].Fields["city"], "Delhi")
	}
}

func TestParseHeaderNotInFirstRow(t *testing.T) {
	// Spreadsheet exports often start with a title row
	input := "Contact Export - June,,,\n" +
		",,,\n" +
		"Name,Email,Phone,City\n" +
		"Asha,asha@example.com,9876543210,Pune\n"

	_, rows, err := Parse(strings.NewReader(input), "text/csv", testDef())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("row count = %d, want 1", len(rows))
	}
	if rows[0].Fields["name"] != "Asha" {
		t.Errorf("Fields[name] = %q, want %q", rows[0].Fields["name"], "Asha")
	}
}

func TestParseCaseInsensitiveHeader(t *testing.T) {
	input := "NAME,email,Phone,CITY\n" +
		"Asha,asha@example.com,9876543210,Pune\n"

	_, rows, err := Parse(strings.NewReader(input), "text/csv", testDef())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if rows[0].Fields["name"] != "Asha" || rows[0].Fields["city"] != "Pune" {
		t.Errorf("case-insensitive header lookup failed: %v", rows[0].Fields)
	}
}

func TestParseBlankRowsKeepNumbering(t *testing.T) {
	input := "Name,Email,Phone,City\n" +
		"Asha,asha@example.com,9876543210,Pune\n" +
		",,,\n" +
		"Ravi,ravi@example.com,9876543211,Delhi\n"

	_, rows, err := Parse(strings.NewReader(input), "text/csv", testDef())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("row count = %d, want 2", len(rows))
	}
	// The blank row is dropped but consumes its position
	if rows[1].Number != 3 {
		t.Errorf("second row Number = %d, want 3", rows[1].Number)
	}
}

func TestParseBOMAndExcelArtifacts(t *testing.T) {
	input := "\xEF\xBB\xBFName,Email,Phone,City\n" +
		`="Asha",asha@example.com,="9876543210",Pune` + "\n"

	_, rows, err := Parse(strings.NewReader(input), "text/csv", testDef())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if rows[0].Fields["name"] != "Asha" {
		t.Errorf("Fields[name] = %q, want %q", rows[0].Fields["name"], "Asha")
	}
	if rows[0].Fields["phone"] != "9876543210" {
		t.Errorf("Fields[phone] = %q, want %q", rows[0].Fields["phone"], "9876543210")
	}
}

func TestParseTabSeparated(t *testing.T) {
	input := "Name\tEmail\tPhone\tCity\n" +
		"Asha\tasha@example.com\t9876543210\tPune\n"

	_, rows, err := Parse(strings.NewReader(input), "text/tab-separated-values", testDef())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if rows[0].Fields["email"] != "asha@example.com" {
		t.Errorf("Fields[email] = %q, want %q", rows[0].Fields["email"], "asha@example.com")
	}
}

func TestParseFatalErrors(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		contentType string
	}{
		{"empty file", "", "text/csv"},
		{"header never found", "a,b,c\n1,2,3\n", "text/csv"},
		{"no data rows", "Name,Email,Phone,City\n", "text/csv"},
		{"unsupported content type", "Name,Email,Phone,City\nx,y,z,w\n", "application/pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(strings.NewReader(tt.input), tt.contentType, testDef())
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Parse() error = %v, want ParseError", err)
			}
		})
	}
}

func TestParseMissingColumnsNamed(t *testing.T) {
	input := "Name,Email\nAsha,asha@example.com\n"

	_, _, err := Parse(strings.NewReader(input), "text/csv", testDef())
	if err == nil {
		t.Fatal("Parse() expected error for missing columns")
	}
	msg := err.Error()
	if !strings.Contains(msg, "Phone") || !strings.Contains(msg, "City") {
		t.Errorf("error should name missing columns, got %q", msg)
	}
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  plain  ", "plain"},
		{`="0042"`, "0042"},
		{"=formula", "formula"},
		{`"quoted"`, "quoted"},
		{"'single'", "single"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := cleanCell(tt.in); got != tt.want {
			t.Errorf("cleanCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeUTF8(t *testing.T) {
	broken := []byte("caf\xffe")
	out := sanitizeUTF8(broken)
	if string(out) != "caf�e" {
		t.Errorf("sanitizeUTF8 = %q, want %q", out, "caf�e")
	}

	clean := []byte("hello")
	if string(sanitizeUTF8(clean)) != "hello" {
		t.Error("sanitizeUTF8 altered valid input")
	}
}
