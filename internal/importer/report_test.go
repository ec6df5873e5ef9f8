package importer

import "testing"

func TestErrorReportOrdering(t *testing.T) {
	r := &errorReport{}

	r.addOutcome(CommitOutcome{Row: 9, Status: StatusFailed, Message: "downstream said no"})
	r.addValidation(ValidationError{Row: 2, Field: "Email", Message: "invalid"})
	r.addOutcome(CommitOutcome{Row: 5, Status: StatusCancelled})
	r.addValidation(ValidationError{Row: 2, Field: "City", Message: "required field is missing"})

	entries := r.sorted()
	if len(entries) != 4 {
		t.Fatalf("len = %d, want 4", len(entries))
	}

	wantRows := []int{2, 2, 5, 9}
	for i, want := range wantRows {
		if entries[i].Row != want {
			t.Errorf("entries[%d].Row = %d, want %d", i, entries[i].Row, want)
		}
	}

	// Same-row entries keep insertion order
	if entries[0].Field != "Email" || entries[1].Field != "City" {
		t.Errorf("row 2 entries out of insertion order: %v", entries[:2])
	}
}

func TestErrorReportStages(t *testing.T) {
	r := &errorReport{}
	r.addValidation(ValidationError{Row: 1, Field: "Phone", Message: "bad"})
	r.addOutcome(CommitOutcome{Row: 2, Status: StatusFailed, Message: "409 Conflict"})
	r.addOutcome(CommitOutcome{Row: 3, Status: StatusCancelled})
	r.addOutcome(CommitOutcome{Row: 4, Status: StatusCommitted}) // no entry

	entries := r.sorted()
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3 (committed outcomes are not errors)", len(entries))
	}

	wantStages := []string{"validation", "commit", "cancelled"}
	for i, want := range wantStages {
		if entries[i].Stage != want {
			t.Errorf("entries[%d].Stage = %q, want %q", i, entries[i].Stage, want)
		}
	}

	if entries[2].Message == "" {
		t.Error("cancelled entries should carry an explanatory message")
	}
}
