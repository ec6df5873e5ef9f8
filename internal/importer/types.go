// Package importer implements the bulk import pipeline: parsing an uploaded
// tabular file into rows, validating every row against a schema definition,
// committing valid rows to the downstream record-creation endpoint, and
// aggregating per-row outcomes into a final summary.
//
// This package has no HTTP-handler dependencies and can be driven by any
// frontend.
package importer

import (
	"fmt"
	"time"
)

// RawRow is one data row from the uploaded file. Number is 1-based among
// data rows; the header row is excluded.
type RawRow struct {
	Number int
	Fields map[string]string // lowercased column name -> cleaned cell value
	Cells  []string          // original cells in file order, kept for error export
}

// ValidationError describes a single rule violation on one row.
// A row may carry several; they are reported together, not one at a time.
type ValidationError struct {
	Row     int    `json:"rowNumber"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ParseError is fatal to the whole session: the file could not be decoded
// into a usable grid, so no rows are processed.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse error: " + e.Reason
}

// NormalizedRecord is a row that passed validation with all fields converted
// to their typed form (dates as time.Time, phones as digit-only strings).
// Keys are the schema's payload keys.
type NormalizedRecord struct {
	Row    int
	Fields map[string]any
}

// CommitStatus describes the result of one downstream creation attempt.
type CommitStatus string

const (
	StatusCommitted CommitStatus = "committed"
	StatusFailed    CommitStatus = "failed"
	StatusCancelled CommitStatus = "cancelled"
)

// CommitOutcome records what happened to one NormalizedRecord. Every record
// handed to the committer produces exactly one outcome.
type CommitOutcome struct {
	Row        int
	Status     CommitStatus
	AssignedID string // created-resource identifier, set when Status is committed
	Message    string // human-readable reason, set when Status is failed
}

// RowError is one entry in the final error report.
type RowError struct {
	Row     int    `json:"rowNumber"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Stage   string `json:"stage"` // "validation", "commit" or "cancelled"
}

// SessionState is the lifecycle state of an import session.
type SessionState string

const (
	StateCreated             SessionState = "created"
	StateParsing             SessionState = "parsing"
	StateValidating          SessionState = "validating"
	StateCommitting          SessionState = "committing"
	StateCompleted           SessionState = "completed"
	StateCompletedWithErrors SessionState = "completed_with_errors"
	StateFailed              SessionState = "failed"
)

// Terminal reports whether the state is final.
func (s SessionState) Terminal() bool {
	switch s {
	case StateCompleted, StateCompletedWithErrors, StateFailed:
		return true
	}
	return false
}

// Summary is the consolidated outcome of one import session. The caller
// always receives one, even for sessions that failed before any row was
// processed.
type Summary struct {
	SessionID            string        `json:"sessionId"`
	SchemaKey            string        `json:"schemaKey"`
	FileName             string        `json:"fileName,omitempty"`
	State                SessionState  `json:"state"`
	TotalRows            int           `json:"totalRows"`
	Committed            int           `json:"committedCount"`
	RejectedAtValidation int           `json:"rejectedAtValidationCount"`
	CommitFailed         int           `json:"commitFailedCount"`
	Cancelled            int           `json:"cancelledCount"`
	Errors               []RowError    `json:"errors"`
	FatalError           string        `json:"fatalError,omitempty"`
	Duration             time.Duration `json:"-"`
	StartedAt            time.Time     `json:"startedAt"`
}
