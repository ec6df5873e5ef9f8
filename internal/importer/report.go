package importer

// report.go accumulates per-row errors into the ordered report returned
// with the final summary.

import "sort"

// errorReport collects validation and commit errors for one session.
// Appends are cheap; ordering happens once at finalization. Not safe for
// concurrent use; the orchestrator goroutine is the only writer.
type errorReport struct {
	entries []RowError
}

func (r *errorReport) addValidation(errs ...ValidationError) {
	for _, e := range errs {
		r.entries = append(r.entries, RowError{
			Row:     e.Row,
			Field:   e.Field,
			Message: e.Message,
			Stage:   "validation",
		})
	}
}

func (r *errorReport) addOutcome(o CommitOutcome) {
	switch o.Status {
	case StatusFailed:
		r.entries = append(r.entries, RowError{
			Row:     o.Row,
			Message: o.Message,
			Stage:   "commit",
		})
	case StatusCancelled:
		r.entries = append(r.entries, RowError{
			Row:     o.Row,
			Message: "import cancelled before this row was submitted",
			Stage:   "cancelled",
		})
	}
}

// sorted returns all entries ordered by row number ascending. Entries for
// the same row keep their insertion order (validation errors land before
// commit errors, though a single row never has both).
func (r *errorReport) sorted() []RowError {
	out := make([]RowError, len(r.entries))
	copy(out, r.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Row < out[j].Row
	})
	return out
}

func (r *errorReport) len() int {
	return len(r.entries)
}
